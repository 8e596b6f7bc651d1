package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/upsc-prep/backend/internal/models"
)

// Columns is the expected CSV header. Unknown columns are ignored and missing
// ones read as empty.
var Columns = []string{
	"question_text", "year", "subject", "exam_type", "keywords", "options",
	"correct_answer", "explanation", "question_type", "marks",
}

// ListSeparator splits the keywords and options cells.
const ListSeparator = ";"

var ErrEmptyFile = errors.New("csv file has no header row")

// RowError reports a row that aborts the whole import. Row counts the header
// as row 1.
type RowError struct {
	Row     int
	Subject string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Invalid subject %q in row %d. Valid subjects: %s",
		e.Subject, e.Row, strings.Join(models.Subjects, ", "))
}

// ParseCSV reads every data row into a curated question. It fails on the first
// row whose subject is outside the taxonomy; year and marks fall back to
// defaults instead of failing.
func ParseCSV(r io.Reader, now time.Time) ([]models.ExamQuestion, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[name] = i
	}

	var questions []models.ExamQuestion
	for i := 0; ; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", i+2, err)
		}
		if blankRecord(record) {
			i--
			continue
		}

		field := func(name string) string {
			if idx, ok := index[name]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}

		subject := field("subject")
		if subject == "" {
			subject = models.DefaultSubject
		}
		if !models.ValidSubject(subject) {
			return nil, &RowError{Row: i + 2, Subject: subject}
		}

		q := models.ExamQuestion{
			QuestionText:       field("question_text"),
			Year:               lenientInt(field("year"), now.Year()),
			Subject:            subject,
			ExamType:           models.ExamType(orDefault(field("exam_type"), string(models.ExamPrelims))),
			Keywords:           splitList(field("keywords")),
			QuestionType:       models.QuestionType(orDefault(field("question_type"), string(models.QuestionMCQ))),
			Marks:              lenientInt(field("marks"), 1),
			IsDatabaseQuestion: true,
		}
		if q.Marks <= 0 {
			q.Marks = 1
		}
		if options := splitList(field("options")); len(options) > 0 {
			q.Options = options
		}
		if v := field("correct_answer"); v != "" {
			q.CorrectAnswer = &v
		}
		if v := field("explanation"); v != "" {
			q.Explanation = &v
		}
		q.Sanitize()
		questions = append(questions, q)
	}
	return questions, nil
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) pq.StringArray {
	if s == "" {
		return nil
	}
	var out pq.StringArray
	for _, part := range strings.Split(s, ListSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// lenientInt parses the leading integer of s ("2019", "5 marks") and returns
// def when there is none.
func lenientInt(s string, def int) int {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return def
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return def
	}
	return v
}
