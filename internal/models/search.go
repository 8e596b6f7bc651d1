package models

import (
	"strings"
	"time"
)

type SortField string

const (
	SortByYear         SortField = "year"
	SortBySubject      SortField = "subject"
	SortByExamType     SortField = "exam_type"
	SortByQuestionType SortField = "question_type"
)

var ValidSortFields = map[SortField]bool{
	SortByYear:         true,
	SortBySubject:      true,
	SortByExamType:     true,
	SortByQuestionType: true,
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 100
)

// SearchParams is the request-scoped filter for a question search.
// Year, when set, overrides YearStart/YearEnd.
type SearchParams struct {
	Year              *int         `json:"year,omitempty"`
	YearStart         *int         `json:"year_start,omitempty"`
	YearEnd           *int         `json:"year_end,omitempty"`
	Subject           string       `json:"subject,omitempty"`
	ExamType          ExamType     `json:"exam_type,omitempty"`
	QuestionType      QuestionType `json:"question_type,omitempty"`
	Keywords          []string     `json:"keywords,omitempty"`
	SortBy            SortField    `json:"sort_by,omitempty"`
	SortOrder         SortOrder    `json:"sort_order,omitempty"`
	Limit             int          `json:"limit,omitempty"`
	Offset            int          `json:"offset,omitempty"`
	UserQuestionsOnly bool         `json:"user_questions_only,omitempty"`
}

// Normalize fills defaults and clamps paging. It never fails: unknown sort
// fields fall back to year, and an inverted year range is kept as-is.
func (p SearchParams) Normalize() SearchParams {
	if !ValidSortFields[p.SortBy] {
		p.SortBy = SortByYear
	}
	if p.SortOrder != SortAsc && p.SortOrder != SortDesc {
		if p.SortBy == SortByYear {
			p.SortOrder = SortDesc
		} else {
			p.SortOrder = SortAsc
		}
	}

	if p.Limit <= 0 {
		p.Limit = DefaultSearchLimit
	}
	if p.Limit > MaxSearchLimit {
		p.Limit = MaxSearchLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	if p.Year != nil {
		p.YearStart = nil
		p.YearEnd = nil
	}

	var keywords []string
	for _, k := range p.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	p.Keywords = keywords

	return p
}

// YearPreset is one of the quick year-range choices offered on the search page.
type YearPreset string

const (
	PresetLast5Years  YearPreset = "last_5"
	PresetLast10Years YearPreset = "last_10"
	PresetAllYears    YearPreset = "all"
)

// EarliestYear is the first exam year covered by the question bank.
const EarliestYear = 1990

// Apply sets the year range of p for the preset relative to now.
func (y YearPreset) Apply(p *SearchParams, now time.Time) {
	end := now.Year()
	start := EarliestYear
	switch y {
	case PresetLast5Years:
		start = end - 5
	case PresetLast10Years:
		start = end - 10
	}
	p.Year = nil
	p.YearStart = &start
	p.YearEnd = &end
}
