package questions

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/upsc-prep/backend/internal/models"
)

const questionColumns = `id, question_text, year, subject, exam_type, keywords, options,
	correct_answer, explanation, question_type, marks, user_id, is_database_question,
	created_at, updated_at`

var sortColumns = map[models.SortField]string{
	models.SortByYear:         "year",
	models.SortBySubject:      "subject",
	models.SortByExamType:     "exam_type",
	models.SortByQuestionType: "question_type",
}

type searchQuery struct {
	selectSQL  string
	selectArgs []interface{}
	countSQL   string
	countArgs  []interface{}
}

// buildSearchQuery renders normalized params as a page query and a count
// query sharing one WHERE clause. The visibility condition always comes first.
func buildSearchQuery(p models.SearchParams, viewer uuid.UUID) searchQuery {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case p.UserQuestionsOnly && viewer != uuid.Nil:
		conds = append(conds, "user_id = "+arg(viewer))
	case viewer != uuid.Nil:
		conds = append(conds, "(is_database_question = TRUE OR user_id = "+arg(viewer)+")")
	default:
		conds = append(conds, "is_database_question = TRUE")
	}

	if p.Year != nil {
		conds = append(conds, "year = "+arg(*p.Year))
	} else {
		if p.YearStart != nil {
			conds = append(conds, "year >= "+arg(*p.YearStart))
		}
		if p.YearEnd != nil {
			conds = append(conds, "year <= "+arg(*p.YearEnd))
		}
	}
	if p.Subject != "" {
		conds = append(conds, "subject = "+arg(p.Subject))
	}
	if p.ExamType != "" {
		conds = append(conds, "exam_type = "+arg(string(p.ExamType)))
	}
	if p.QuestionType != "" {
		conds = append(conds, "question_type = "+arg(string(p.QuestionType)))
	}
	if len(p.Keywords) > 0 {
		conds = append(conds, "keywords && "+arg(pq.Array(p.Keywords))+"::text[]")
	}

	where := strings.Join(conds, " AND ")
	countArgs := append([]interface{}(nil), args...)

	column, ok := sortColumns[p.SortBy]
	if !ok {
		column = "year"
	}
	direction := "ASC"
	if p.SortOrder == models.SortDesc {
		direction = "DESC"
	}

	selectSQL := fmt.Sprintf(
		`SELECT %s FROM exam_questions WHERE %s ORDER BY %s %s, id ASC LIMIT %s OFFSET %s`,
		questionColumns, where, column, direction, arg(p.Limit), arg(p.Offset),
	)

	return searchQuery{
		selectSQL:  selectSQL,
		selectArgs: args,
		countSQL:   `SELECT COUNT(*) FROM exam_questions WHERE ` + where,
		countArgs:  countArgs,
	}
}
