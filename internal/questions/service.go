package questions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/upsc-prep/backend/internal/generator"
	"github.com/upsc-prep/backend/internal/models"
	"github.com/upsc-prep/backend/internal/scoring"
)

// ModelAnswerer is the model-answer boundary; *generator.Generator satisfies it.
type ModelAnswerer interface {
	ModelAnswer(ctx context.Context, topic, question string) (string, error)
}

type Service struct {
	repo      Repository
	generator ModelAnswerer
	scorer    *scoring.Scorer
}

func NewService(repo Repository, gen ModelAnswerer, scorer *scoring.Scorer) *Service {
	return &Service{repo: repo, generator: gen, scorer: scorer}
}

// ── Search ──────────────────────────────────────────────

// Search returns one page of the questions visible to viewer (uuid.Nil when
// anonymous) and the total match count.
func (s *Service) Search(ctx context.Context, params models.SearchParams, viewer uuid.UUID) (*models.SearchResult, error) {
	params = params.Normalize()

	questions, total, err := s.repo.SearchQuestions(ctx, params, viewer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if questions == nil {
		questions = []models.ExamQuestion{}
	}

	return &models.SearchResult{
		Questions: questions,
		Count:     total,
		Limit:     params.Limit,
		Offset:    params.Offset,
	}, nil
}

// GetQuestion returns the question when viewer may see it.
func (s *Service) GetQuestion(ctx context.Context, id, viewer uuid.UUID) (*models.ExamQuestion, error) {
	q, err := s.repo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.VisibleTo(viewer) {
		return nil, ErrNotFound
	}
	return q, nil
}

// ListSubjects merges the subject list with any other subjects in storage.
func (s *Service) ListSubjects(ctx context.Context) ([]string, error) {
	stored, err := s.repo.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}

	subjects := append([]string(nil), models.Subjects...)
	var extra []string
	for _, subject := range stored {
		if subject != "" && !models.ValidSubject(subject) {
			extra = append(extra, subject)
		}
	}
	sort.Strings(extra)
	return append(subjects, extra...), nil
}

// ── User questions ──────────────────────────────────────

func (s *Service) AddQuestion(ctx context.Context, owner uuid.UUID, req models.CreateQuestionRequest) (*models.ExamQuestion, error) {
	if owner == uuid.Nil {
		return nil, ErrAuthRequired
	}

	q := req.Question()
	if q.ExamType == "" {
		q.ExamType = models.ExamPrelims
	}
	if q.QuestionType == "" {
		q.QuestionType = models.QuestionMCQ
	}
	q.Sanitize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	q.UserID = &owner
	q.IsDatabaseQuestion = false
	if err := s.repo.InsertQuestion(ctx, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, id, owner uuid.UUID) error {
	if owner == uuid.Nil {
		return ErrAuthRequired
	}

	q, err := s.GetQuestion(ctx, id, owner)
	if err != nil {
		return err
	}
	if q.IsDatabaseQuestion || !q.OwnedBy(owner) {
		return ErrForbidden
	}

	deleted, err := s.repo.DeleteQuestion(ctx, id, owner)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// ── Model answers & submissions ─────────────────────────

// ModelAnswer returns the coach's model answer for a visible question.
func (s *Service) ModelAnswer(ctx context.Context, id, viewer uuid.UUID) (string, error) {
	q, err := s.GetQuestion(ctx, id, viewer)
	if err != nil {
		return "", err
	}
	answer, err := s.generator.ModelAnswer(ctx, q.Subject, q.QuestionText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelAnswerFailed, err)
	}
	return answer, nil
}

// referenceAnswer resolves the answer a submission is scored against with a
// single generator call: an option letter for MCQ, a model answer otherwise.
func (s *Service) referenceAnswer(ctx context.Context, q *models.ExamQuestion) (string, error) {
	if q.IsMCQ() {
		reply, err := s.generator.ModelAnswer(ctx, q.Subject, generator.MCQKeyQuestion(q))
		if err != nil {
			return "", err
		}
		letter := generator.ParseOptionLetter(reply)
		if letter == "" {
			log.Warn().
				Str("component", "questions").
				Str("question_id", q.ID.String()).
				Str("raw", reply).
				Msg("answer key reply has no option letter")
		}
		return letter, nil
	}
	return s.generator.ModelAnswer(ctx, q.Subject, generator.ReferenceAnswerQuestion(q))
}

// SubmitAnswer scores answerText against a freshly generated reference and
// upserts the caller's answer. Resubmitting overwrites the previous answer.
func (s *Service) SubmitAnswer(ctx context.Context, userID, questionID uuid.UUID, answerText string) (*models.SubmitAnswerResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}
	answerText = strings.TrimSpace(answerText)
	if answerText == "" {
		return nil, ErrEmptyAnswer
	}

	q, err := s.GetQuestion(ctx, questionID, userID)
	if err != nil {
		return nil, err
	}

	reference, err := s.referenceAnswer(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelAnswerFailed, err)
	}

	score := s.scorer.Score(ctx, scoring.Input{
		UserAnswer:      answerText,
		ReferenceAnswer: reference,
		MaxMarks:        q.Marks,
		QuestionType:    q.QuestionType,
	})

	answer := models.QuestionAnswer{
		QuestionID:      q.ID,
		UserID:          userID,
		AnswerText:      answerText,
		SimilarityScore: &score.Similarity,
		AwardedMarks:    &score.AwardedMarks,
	}
	if err := s.repo.UpsertAnswer(ctx, &answer); err != nil {
		return nil, err
	}

	return &models.SubmitAnswerResponse{
		Answer:             answer,
		ReferenceAnswer:    reference,
		Feedback:           feedback(q, answerText, reference, score),
		ScoringUnavailable: score.Unavailable,
	}, nil
}

func feedback(q *models.ExamQuestion, answerText, reference string, score scoring.Score) string {
	if score.Unavailable {
		return "Your answer was saved, but it could not be evaluated right now. Submit again later for a score."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Score: %.2f/%d\n", score.AwardedMarks, q.Marks)

	if q.IsMCQ() {
		selected := strings.ToUpper(string([]rune(answerText)[:1]))
		if score.Similarity == 1 {
			sb.WriteString("Explanation: Correct! ")
		} else {
			sb.WriteString("Explanation: Incorrect. ")
		}
		fmt.Fprintf(&sb, "You selected option %s.\n", selected)
		if reference != "" {
			fmt.Fprintf(&sb, "The correct answer is option %s: %s\n", reference, q.OptionText(reference))
		}
		if q.Explanation != nil && *q.Explanation != "" {
			sb.WriteString("\n" + *q.Explanation + "\n")
		}
		return strings.TrimSpace(sb.String())
	}

	fmt.Fprintf(&sb, "Similarity with the model answer: %.0f%%\n", score.Similarity*100)
	if score.Feedback != "" {
		sb.WriteString(score.Feedback)
	}
	return strings.TrimSpace(sb.String())
}

// ── Answers ─────────────────────────────────────────────

func (s *Service) MyAnswer(ctx context.Context, userID, questionID uuid.UUID) (*models.QuestionAnswer, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}
	return s.repo.GetAnswer(ctx, questionID, userID)
}

// MyAnswers returns the caller's answers keyed by question id.
func (s *Service) MyAnswers(ctx context.Context, userID uuid.UUID, questionIDs []uuid.UUID) (map[uuid.UUID]models.QuestionAnswer, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}
	if len(questionIDs) > models.MaxSearchLimit {
		return nil, &models.ValidationError{Errors: []string{
			fmt.Sprintf("at most %d question ids per request", models.MaxSearchLimit),
		}}
	}

	answers, err := s.repo.ListAnswers(ctx, userID, questionIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.QuestionAnswer, len(answers))
	for _, a := range answers {
		out[a.QuestionID] = a
	}
	return out, nil
}

// IsClientError reports whether err is caused by the request rather than the server.
func IsClientError(err error) bool {
	var verr *models.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, ErrEmptyAnswer) ||
		errors.Is(err, generator.ErrMissingInput)
}
