package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildWhereClause(t *testing.T) {
	tests := []struct {
		name      string
		runID     string
		character string
		offset    int
		wantSQL   string
		wantArgs  []interface{}
	}{
		{name: "no filter", offset: 1, wantSQL: "", wantArgs: []interface{}{}},
		{name: "run only", runID: "r1", offset: 1, wantSQL: "WHERE run_id = $1", wantArgs: []interface{}{"r1"}},
		{name: "character only", character: "Zhixu", offset: 1, wantSQL: "WHERE character_name = $1", wantArgs: []interface{}{"Zhixu"}},
		{name: "both with offset", runID: "r1", character: "Zhixu", offset: 3, wantSQL: "WHERE run_id = $3 AND character_name = $4", wantArgs: []interface{}{"r1", "Zhixu"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildWhereClauseWithOffset(tt.runID, tt.character, tt.offset)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
