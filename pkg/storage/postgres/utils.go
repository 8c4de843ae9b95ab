package postgres

import (
	"fmt"
	"strings"
)

// buildWhereClause builds a WHERE clause starting from $1.
func buildWhereClause(runID, character string) (string, []interface{}) {
	return buildWhereClauseWithOffset(runID, character, 1)
}

// buildWhereClauseWithOffset builds a WHERE clause starting from a specific parameter index.
func buildWhereClauseWithOffset(runID, character string, startIndex int) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}
	argIndex := startIndex

	if runID != "" {
		conditions = append(conditions, fmt.Sprintf("run_id = $%d", argIndex))
		args = append(args, runID)
		argIndex++
	}

	if character != "" {
		conditions = append(conditions, fmt.Sprintf("character_name = $%d", argIndex))
		args = append(args, character)
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}
