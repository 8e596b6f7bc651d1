package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ExamType string

const (
	ExamPrelims ExamType = "Prelims"
	ExamMains   ExamType = "Mains"
)

var ValidExamTypes = map[ExamType]bool{
	ExamPrelims: true,
	ExamMains:   true,
}

type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionDescriptive QuestionType = "descriptive"
	QuestionShortAnswer QuestionType = "short_answer"
	QuestionMatch       QuestionType = "match"
	QuestionCaseStudy   QuestionType = "case_study"
)

var ValidQuestionTypes = map[QuestionType]bool{
	QuestionMCQ:         true,
	QuestionDescriptive: true,
	QuestionShortAnswer: true,
	QuestionMatch:       true,
	QuestionCaseStudy:   true,
}

// DefaultSubject is used when an imported row leaves the subject blank.
const DefaultSubject = "General Studies"

// Subjects is the fixed subject taxonomy, in display order.
var Subjects = []string{
	"History",
	"Geography",
	"Polity",
	"Economy",
	"Environment",
	"Science & Tech",
	"International Relations",
	"Ethics",
	"Essay",
	"General Studies",
	"GS1",
	"GS2",
	"GS3",
	"GS4",
}

var validSubjects = func() map[string]bool {
	m := make(map[string]bool, len(Subjects))
	for _, s := range Subjects {
		m[s] = true
	}
	return m
}()

func ValidSubject(subject string) bool {
	return validSubjects[subject]
}

// ExamQuestion is a previous-year question. Curated rows have IsDatabaseQuestion set
// and no owner changes; user rows are owned by UserID.
type ExamQuestion struct {
	ID                 uuid.UUID      `json:"id"`
	QuestionText       string         `json:"question_text"`
	Year               int            `json:"year"`
	Subject            string         `json:"subject"`
	ExamType           ExamType       `json:"exam_type"`
	Keywords           pq.StringArray `json:"keywords"`
	Options            pq.StringArray `json:"options,omitempty"`
	CorrectAnswer      *string        `json:"correct_answer,omitempty"`
	Explanation        *string        `json:"explanation,omitempty"`
	QuestionType       QuestionType   `json:"question_type"`
	Marks              int            `json:"marks"`
	UserID             *uuid.UUID     `json:"user_id,omitempty"`
	IsDatabaseQuestion bool           `json:"is_database_question"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (q *ExamQuestion) IsMCQ() bool {
	return q.QuestionType == QuestionMCQ
}

// OwnedBy reports whether userID owns the question.
func (q *ExamQuestion) OwnedBy(userID uuid.UUID) bool {
	return q.UserID != nil && *q.UserID == userID
}

// VisibleTo reports whether the question can be read by userID (uuid.Nil for anonymous).
func (q *ExamQuestion) VisibleTo(userID uuid.UUID) bool {
	if q.IsDatabaseQuestion {
		return true
	}
	return userID != uuid.Nil && q.OwnedBy(userID)
}

// OptionLetter returns the label for the option at index i ("A", "B", ...).
func OptionLetter(i int) string {
	return string(rune('A' + i))
}

// OptionText returns the option text labelled by letter, or "" when out of range.
func (q *ExamQuestion) OptionText(letter string) string {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) == 0 {
		return ""
	}
	idx := int(letter[0]) - 'A'
	if idx < 0 || idx >= len(q.Options) {
		return ""
	}
	return q.Options[idx]
}

// Sanitize normalizes the question in place before it is stored. Non-MCQ
// questions lose options and correct answer; keywords become a trimmed set.
func (q *ExamQuestion) Sanitize() {
	q.QuestionText = strings.TrimSpace(q.QuestionText)
	q.Subject = strings.TrimSpace(q.Subject)
	if q.Marks == 0 {
		q.Marks = 1
	}

	seen := make(map[string]bool, len(q.Keywords))
	var keywords pq.StringArray
	for _, k := range q.Keywords {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
	}
	q.Keywords = keywords

	if !q.IsMCQ() {
		q.Options = nil
		q.CorrectAnswer = nil
		return
	}

	var options pq.StringArray
	for _, o := range q.Options {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}
	q.Options = options
	if q.CorrectAnswer != nil {
		answer := strings.ToUpper(strings.TrimSpace(*q.CorrectAnswer))
		if answer == "" {
			q.CorrectAnswer = nil
		} else {
			q.CorrectAnswer = &answer
		}
	}
}

// Validate checks the storage invariants of a sanitized question.
func (q *ExamQuestion) Validate() error {
	var errs []string

	if q.QuestionText == "" {
		errs = append(errs, "question_text is required")
	}
	if q.Year <= 0 {
		errs = append(errs, "year must be a positive integer")
	}
	if !ValidSubject(q.Subject) {
		errs = append(errs, fmt.Sprintf("subject %q is not in the subject list", q.Subject))
	}
	if !ValidExamTypes[q.ExamType] {
		errs = append(errs, "exam_type must be 'Prelims' or 'Mains'")
	}
	if !ValidQuestionTypes[q.QuestionType] {
		errs = append(errs, fmt.Sprintf("invalid question_type %q", q.QuestionType))
	}
	if q.Marks <= 0 {
		errs = append(errs, "marks must be a positive integer")
	}

	if q.IsMCQ() {
		if len(q.Options) < 2 {
			errs = append(errs, "mcq questions need at least 2 options")
		}
		if q.CorrectAnswer != nil {
			a := *q.CorrectAnswer
			if len(a) != 1 || a[0] < 'A' || int(a[0]-'A') >= len(q.Options) {
				errs = append(errs, fmt.Sprintf("correct_answer %q does not name an option", a))
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ── Answers ─────────────────────────────────────────────

// QuestionAnswer is a user's latest answer to a question. There is at most one
// per (question, user) pair.
type QuestionAnswer struct {
	ID              uuid.UUID `json:"id"`
	QuestionID      uuid.UUID `json:"question_id"`
	UserID          uuid.UUID `json:"user_id"`
	AnswerText      string    `json:"answer_text"`
	SimilarityScore *float64  `json:"similarity_score"`
	AwardedMarks    *float64  `json:"awarded_marks"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SubmitAnswerRequest struct {
	AnswerText string `json:"answer_text"`
}

type SubmitAnswerResponse struct {
	Answer          QuestionAnswer `json:"answer"`
	ReferenceAnswer string         `json:"reference_answer"`
	Feedback        string         `json:"feedback"`
	// ScoringUnavailable is set when the score is zero because the similarity
	// service could not be reached.
	ScoringUnavailable bool `json:"scoring_unavailable,omitempty"`
}

type ModelAnswerResponse struct {
	QuestionID  uuid.UUID `json:"question_id"`
	ModelAnswer string    `json:"model_answer"`
}

// ── Requests / Responses ────────────────────────────────

type CreateQuestionRequest struct {
	QuestionText  string       `json:"question_text"`
	Year          int          `json:"year"`
	Subject       string       `json:"subject"`
	ExamType      ExamType     `json:"exam_type"`
	Keywords      []string     `json:"keywords"`
	Options       []string     `json:"options"`
	CorrectAnswer *string      `json:"correct_answer"`
	Explanation   *string      `json:"explanation"`
	QuestionType  QuestionType `json:"question_type"`
	Marks         int          `json:"marks"`
}

// Question builds an unsaved question from the request.
func (r CreateQuestionRequest) Question() ExamQuestion {
	return ExamQuestion{
		QuestionText:  r.QuestionText,
		Year:          r.Year,
		Subject:       r.Subject,
		ExamType:      r.ExamType,
		Keywords:      r.Keywords,
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
		Explanation:   r.Explanation,
		QuestionType:  r.QuestionType,
		Marks:         r.Marks,
	}
}

type SearchResult struct {
	Questions []ExamQuestion `json:"questions"`
	Count     int            `json:"count"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

type SubjectsResponse struct {
	Subjects []string `json:"subjects"`
}

type ImportResult struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationError collects every problem found in one request.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}
