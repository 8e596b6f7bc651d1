package questions

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/upsc-prep/backend/internal/models"
)

func TestInsertStatements_SplitsLargeBatches(t *testing.T) {
	tests := []struct {
		rows     int
		wantRows []int
	}{
		{1, []int{1}},
		{maxRowsPerInsert, []int{maxRowsPerInsert}},
		{5000, []int{maxRowsPerInsert, 5000 - maxRowsPerInsert}},
	}
	for _, tt := range tests {
		qs := make([]models.ExamQuestion, tt.rows)
		for i := range qs {
			qs[i] = curated("Q", 2020, "Polity", models.ExamPrelims, models.QuestionDescriptive)
		}

		stmts := insertStatements(qs, time.Now())
		if len(stmts) != len(tt.wantRows) {
			t.Fatalf("insertStatements(%d rows) = %d statements, want %d", tt.rows, len(stmts), len(tt.wantRows))
		}
		for i, stmt := range stmts {
			if got := len(stmt.args); got != tt.wantRows[i]*insertQuestionCols {
				t.Errorf("%d rows: statement %d has %d args, want %d", tt.rows, i, got, tt.wantRows[i]*insertQuestionCols)
			}
			if len(stmt.args) > 65535 {
				t.Errorf("%d rows: statement %d exceeds the bind parameter limit", tt.rows, i)
			}
			if !strings.Contains(stmt.sql, "VALUES ($1, $2,") {
				t.Errorf("%d rows: statement %d does not number placeholders from $1", tt.rows, i)
			}
		}
		for i := range qs {
			if qs[i].ID == uuid.Nil {
				t.Fatalf("%d rows: question %d has no id", tt.rows, i)
			}
		}
	}
}
