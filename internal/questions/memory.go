package questions

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/upsc-prep/backend/internal/models"
)

type answerKey struct {
	questionID uuid.UUID
	userID     uuid.UUID
}

// MemoryStore is an in-process Repository with the same search semantics as
// Store. It backs the memory database driver and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	questions map[uuid.UUID]models.ExamQuestion
	answers   map[answerKey]models.QuestionAnswer
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions: make(map[uuid.UUID]models.ExamQuestion),
		answers:   make(map[answerKey]models.QuestionAnswer),
		now:       time.Now,
	}
}

func cloneQuestion(q models.ExamQuestion) models.ExamQuestion {
	q.Keywords = slices.Clone(q.Keywords)
	q.Options = slices.Clone(q.Options)
	return q
}

func matchesSearch(q *models.ExamQuestion, p models.SearchParams, viewer uuid.UUID) bool {
	switch {
	case p.UserQuestionsOnly && viewer != uuid.Nil:
		if !q.OwnedBy(viewer) {
			return false
		}
	case viewer != uuid.Nil:
		if !q.IsDatabaseQuestion && !q.OwnedBy(viewer) {
			return false
		}
	default:
		if !q.IsDatabaseQuestion {
			return false
		}
	}

	if p.Year != nil {
		if q.Year != *p.Year {
			return false
		}
	} else {
		if p.YearStart != nil && q.Year < *p.YearStart {
			return false
		}
		if p.YearEnd != nil && q.Year > *p.YearEnd {
			return false
		}
	}
	if p.Subject != "" && q.Subject != p.Subject {
		return false
	}
	if p.ExamType != "" && q.ExamType != p.ExamType {
		return false
	}
	if p.QuestionType != "" && q.QuestionType != p.QuestionType {
		return false
	}
	if len(p.Keywords) > 0 && !slices.ContainsFunc(p.Keywords, func(k string) bool {
		return slices.Contains(q.Keywords, k)
	}) {
		return false
	}
	return true
}

// compareField orders a and b by the sort column only.
func compareField(a, b *models.ExamQuestion, field models.SortField) int {
	switch field {
	case models.SortBySubject:
		return strings.Compare(a.Subject, b.Subject)
	case models.SortByExamType:
		return strings.Compare(string(a.ExamType), string(b.ExamType))
	case models.SortByQuestionType:
		return strings.Compare(string(a.QuestionType), string(b.QuestionType))
	default:
		return a.Year - b.Year
	}
}

func (s *MemoryStore) SearchQuestions(ctx context.Context, params models.SearchParams, viewer uuid.UUID) ([]models.ExamQuestion, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	var matched []models.ExamQuestion
	for _, q := range s.questions {
		if matchesSearch(&q, params, viewer) {
			matched = append(matched, cloneQuestion(q))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		c := compareField(&matched[i], &matched[j], params.SortBy)
		if params.SortOrder == models.SortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return strings.Compare(matched[i].ID.String(), matched[j].ID.String()) < 0
	})

	total := len(matched)
	start := min(params.Offset, total)
	end := total
	if params.Limit > 0 {
		end = min(start+params.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) GetQuestion(_ context.Context, id uuid.UUID) (*models.ExamQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneQuestion(q)
	return &out, nil
}

// checkRow mirrors the table's CHECK constraints.
func checkRow(q *models.ExamQuestion) error {
	if !models.ValidQuestionTypes[q.QuestionType] {
		return fmt.Errorf("invalid question_type %q", q.QuestionType)
	}
	if q.Marks <= 0 {
		return fmt.Errorf("marks must be positive, got %d", q.Marks)
	}
	return nil
}

func (s *MemoryStore) prepare(q *models.ExamQuestion, now time.Time) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Keywords == nil {
		q.Keywords = pq.StringArray{}
	}
	q.CreatedAt, q.UpdatedAt = now, now
}

func (s *MemoryStore) InsertQuestion(_ context.Context, q *models.ExamQuestion) error {
	if err := checkRow(q); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepare(q, s.now())
	s.questions[q.ID] = cloneQuestion(*q)
	return nil
}

func (s *MemoryStore) InsertQuestions(_ context.Context, qs []models.ExamQuestion) error {
	for i := range qs {
		if err := checkRow(&qs[i]); err != nil {
			return fmt.Errorf("insert question batch: row %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for i := range qs {
		s.prepare(&qs[i], now)
		s.questions[qs[i].ID] = cloneQuestion(qs[i])
	}
	return nil
}

func (s *MemoryStore) DeleteQuestion(_ context.Context, id, ownerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok || q.IsDatabaseQuestion || !q.OwnedBy(ownerID) {
		return false, nil
	}
	delete(s.questions, id)
	for key := range s.answers {
		if key.questionID == id {
			delete(s.answers, key)
		}
	}
	return true, nil
}

func (s *MemoryStore) ListSubjects(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var subjects []string
	for _, q := range s.questions {
		if !seen[q.Subject] {
			seen[q.Subject] = true
			subjects = append(subjects, q.Subject)
		}
	}
	sort.Strings(subjects)
	return subjects, nil
}

func (s *MemoryStore) UpsertAnswer(_ context.Context, a *models.QuestionAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[a.QuestionID]; !ok {
		return fmt.Errorf("upsert answer: %w", ErrNotFound)
	}

	now := s.now()
	key := answerKey{questionID: a.QuestionID, userID: a.UserID}
	if existing, ok := s.answers[key]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	} else {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.answers[key] = *a
	return nil
}

func (s *MemoryStore) GetAnswer(_ context.Context, questionID, userID uuid.UUID) (*models.QuestionAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[answerKey{questionID: questionID, userID: userID}]
	if !ok {
		return nil, ErrAnswerNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListAnswers(_ context.Context, userID uuid.UUID, questionIDs []uuid.UUID) ([]models.QuestionAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.QuestionAnswer
	for _, id := range questionIDs {
		if a, ok := s.answers[answerKey{questionID: id, userID: userID}]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// CountAnswers returns the number of stored answers.
func (s *MemoryStore) CountAnswers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}

// CountQuestions returns the number of stored questions.
func (s *MemoryStore) CountQuestions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions)
}
