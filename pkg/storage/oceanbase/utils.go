package oceanbase

import (
	"database/sql"
	"strings"

	"github.com/oceanbase/sociomind-go/pkg/storage"
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

// scanSnapshot reads one full snapshot row. LONGTEXT arrives as bytes.
func scanSnapshot(row *sql.Row) (*storage.Snapshot, error) {
	s := &storage.Snapshot{}
	var payload []byte
	if err := row.Scan(&s.ID, &s.RunID, &s.Character, &s.PlotID, &payload, &s.Hash, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Payload = payload
	return s, nil
}
