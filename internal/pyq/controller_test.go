package pyq

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/upsc-prep/backend/internal/generator"
	"github.com/upsc-prep/backend/internal/models"
	"github.com/upsc-prep/backend/internal/questions"
	"github.com/upsc-prep/backend/internal/scoring"
)

// fakeBackend records calls and returns canned responses.
type fakeBackend struct {
	searches    []models.SearchParams
	searchErr   error
	modelAnswer string
	modelErr    error
	submitErr   error
	submits     int
	answers     map[uuid.UUID]models.QuestionAnswer
}

func (f *fakeBackend) Search(_ context.Context, params models.SearchParams) (*models.SearchResult, error) {
	f.searches = append(f.searches, params)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &models.SearchResult{Questions: []models.ExamQuestion{{ID: uuid.New(), Year: 2020}}, Count: 1}, nil
}

func (f *fakeBackend) ModelAnswer(context.Context, uuid.UUID) (string, error) {
	return f.modelAnswer, f.modelErr
}

func (f *fakeBackend) SubmitAnswer(_ context.Context, id uuid.UUID, text string) (*models.SubmitAnswerResponse, error) {
	f.submits++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &models.SubmitAnswerResponse{Answer: models.QuestionAnswer{ID: uuid.New(), QuestionID: id, AnswerText: text}}, nil
}

func (f *fakeBackend) MyAnswers(context.Context, []uuid.UUID) (map[uuid.UUID]models.QuestionAnswer, error) {
	return f.answers, nil
}

func TestToggleModelAnswer(t *testing.T) {
	backend := &fakeBackend{modelAnswer: "Introduction..."}
	c := NewController(backend, false)
	ctx := context.Background()
	q1, q2 := uuid.New(), uuid.New()

	state, err := c.ToggleModelAnswer(ctx, q1)
	if err != nil || state != PanelModelAnswer {
		t.Fatalf("open = %s, %v", state, err)
	}
	if snap := c.Snapshot(); snap.Panel.ModelAnswer != "Introduction..." || snap.Panel.Loading {
		t.Errorf("panel = %+v", snap.Panel)
	}

	if state, _ := c.ToggleModelAnswer(ctx, q2); state != PanelModelAnswer {
		t.Errorf("second open = %s", state)
	}
	if c.State(q1) != PanelClosed {
		t.Errorf("q1 = %s, want closed after opening q2", c.State(q1))
	}

	if state, _ := c.ToggleModelAnswer(ctx, q2); state != PanelClosed {
		t.Errorf("re-toggle = %s, want closed", state)
	}
}

func TestToggleModelAnswer_Failure(t *testing.T) {
	backend := &fakeBackend{modelErr: errors.New("502")}
	c := NewController(backend, true)
	q := uuid.New()

	if _, err := c.ToggleModelAnswer(context.Background(), q); err == nil {
		t.Fatal("expected error")
	}
	if c.State(q) != PanelClosed {
		t.Errorf("state = %s, want closed after failure", c.State(q))
	}
}

func TestDraftAndSubmit(t *testing.T) {
	backend := &fakeBackend{}
	c := NewController(backend, true)
	ctx := context.Background()
	q := uuid.New()

	if _, err := c.Submit(ctx); !errors.Is(err, ErrNotDrafting) {
		t.Errorf("submit without draft = %v, want ErrNotDrafting", err)
	}

	if err := c.StartDraft(q); err != nil {
		t.Fatalf("StartDraft: %v", err)
	}
	if _, err := c.Submit(ctx); !errors.Is(err, ErrEmptyDraft) {
		t.Errorf("empty submit = %v, want ErrEmptyDraft", err)
	}
	if backend.submits != 0 {
		t.Errorf("empty draft reached the backend")
	}

	_ = c.UpdateDraft("  B  ")
	resp, err := c.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Answer.AnswerText != "B" {
		t.Errorf("submitted %q, want trimmed draft", resp.Answer.AnswerText)
	}
	if c.State(q) != PanelSubmitted || !c.HasAnswer(q) {
		t.Errorf("state = %s, has answer = %v", c.State(q), c.HasAnswer(q))
	}

	// Reopening seeds the editor with the stored answer.
	_ = c.StartDraft(q)
	if snap := c.Snapshot(); snap.Panel.Draft != "B" {
		t.Errorf("draft = %q, want previous answer", snap.Panel.Draft)
	}
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	backend := &fakeBackend{submitErr: errors.New("timeout")}
	c := NewController(backend, true)
	q := uuid.New()
	_ = c.StartDraft(q)
	_ = c.UpdateDraft("my answer")

	if _, err := c.Submit(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	snap := c.Snapshot()
	if snap.Panel.State != PanelDrafting || snap.Panel.Draft != "my answer" || snap.Panel.Loading {
		t.Errorf("panel = %+v, want draft kept for retry", snap.Panel)
	}
	if c.HasAnswer(q) {
		t.Error("failed submission recorded an answer")
	}
}

func TestAnonymousCannotDraft(t *testing.T) {
	c := NewController(&fakeBackend{}, false)
	if err := c.StartDraft(uuid.New()); !errors.Is(err, ErrSignInRequired) {
		t.Errorf("err = %v, want ErrSignInRequired", err)
	}
}

func TestStaleSearchIsDropped(t *testing.T) {
	c := NewController(&fakeBackend{}, false)

	old := c.BeginSearch(models.SearchParams{Subject: "History"})
	latest := c.BeginSearch(models.SearchParams{Subject: "Polity"})

	fresh := &models.SearchResult{Questions: []models.ExamQuestion{{Subject: "Polity"}}, Count: 1}
	if !c.ApplySearch(latest, fresh, nil) {
		t.Fatal("latest search not applied")
	}

	stale := &models.SearchResult{Questions: []models.ExamQuestion{{Subject: "History"}, {Subject: "History"}}, Count: 2}
	if c.ApplySearch(old, stale, nil) {
		t.Error("stale search applied")
	}

	snap := c.Snapshot()
	if snap.Count != 1 || snap.Questions[0].Subject != "Polity" || snap.Searching {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Params.Subject != "Polity" {
		t.Errorf("params = %+v, want latest filters", snap.Params)
	}
}

func TestSearchLoadsAnswers(t *testing.T) {
	answered := uuid.New()
	backend := &fakeBackend{answers: map[uuid.UUID]models.QuestionAnswer{answered: {QuestionID: answered}}}

	c := NewController(backend, true)
	if err := c.Search(context.Background(), models.SearchParams{Limit: 500}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !c.HasAnswer(answered) {
		t.Error("answers map not loaded")
	}
	if backend.searches[0].Limit != models.MaxSearchLimit {
		t.Errorf("limit sent = %d, want normalized", backend.searches[0].Limit)
	}

	backend.searchErr = errors.New("offline")
	if err := c.Search(context.Background(), models.SearchParams{}); err == nil {
		t.Error("expected search error")
	}
	if c.Snapshot().Count != 1 {
		t.Error("failed search should keep previous results")
	}
}

func TestLocalBackend(t *testing.T) {
	store := questions.NewMemoryStore()
	mock := generator.NewMockClient()
	gen := generator.New(mock, "mock")
	svc := questions.NewService(store, gen, scoring.NewScorer(gen, scoring.DefaultSimilarityMinChars))

	q := models.ExamQuestion{
		QuestionText: "Which plateau is the largest in India?", Year: 2018, Subject: "Geography",
		ExamType: models.ExamPrelims, QuestionType: models.QuestionMCQ, Marks: 2, IsDatabaseQuestion: true,
		Options: pq.StringArray{"Deccan", "Chota Nagpur", "Malwa", "Meghalaya"},
	}
	if err := store.InsertQuestion(context.Background(), &q); err != nil {
		t.Fatalf("insert: %v", err)
	}

	c := NewController(LocalBackend{Service: svc, User: uuid.New()}, true)
	ctx := context.Background()
	if err := c.Search(ctx, models.SearchParams{Subject: "Geography"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if snap := c.Snapshot(); snap.Count != 1 {
		t.Fatalf("count = %d", snap.Count)
	}

	_ = c.StartDraft(q.ID)
	_ = c.UpdateDraft("A")
	resp, err := c.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if *resp.Answer.AwardedMarks != 2 {
		t.Errorf("awarded = %v, want 2", *resp.Answer.AwardedMarks)
	}
	if store.CountAnswers() != 1 {
		t.Errorf("answers = %d", store.CountAnswers())
	}
}
