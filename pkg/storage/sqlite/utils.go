package sqlite

import (
	"strings"
)

// buildWhereClause builds a WHERE clause for run and character filters.
func buildWhereClause(runID, character string) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if runID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, runID)
	}

	if character != "" {
		conditions = append(conditions, "character_name = ?")
		args = append(args, character)
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}
