// Package pyq holds the client-side state of the previous-year-question
// browser: the current search, the caller's answers, and the single open
// detail panel. It does no rendering.
package pyq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/upsc-prep/backend/internal/models"
)

var (
	ErrSignInRequired = errors.New("sign in to submit answers")
	ErrEmptyDraft     = errors.New("write an answer before submitting")
	ErrNotDrafting    = errors.New("no answer is being drafted")
)

// Backend is the server API the controller drives.
type Backend interface {
	Search(ctx context.Context, params models.SearchParams) (*models.SearchResult, error)
	ModelAnswer(ctx context.Context, questionID uuid.UUID) (string, error)
	SubmitAnswer(ctx context.Context, questionID uuid.UUID, text string) (*models.SubmitAnswerResponse, error)
	MyAnswers(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]models.QuestionAnswer, error)
}

type PanelState string

const (
	PanelClosed      PanelState = "closed"
	PanelModelAnswer PanelState = "viewing_model_answer"
	PanelDrafting    PanelState = "drafting_answer"
	PanelSubmitted   PanelState = "submitted"
)

// Panel is the open detail panel. At most one exists at a time.
type Panel struct {
	QuestionID  uuid.UUID
	State       PanelState
	Loading     bool
	ModelAnswer string
	Draft       string
	Result      *models.SubmitAnswerResponse
}

// Snapshot is a copy of the controller state for rendering.
type Snapshot struct {
	Params    models.SearchParams
	Questions []models.ExamQuestion
	Count     int
	Searching bool
	Panel     Panel
	Answers   map[uuid.UUID]models.QuestionAnswer
}

type Controller struct {
	backend  Backend
	signedIn bool

	mu        sync.Mutex
	params    models.SearchParams
	questions []models.ExamQuestion
	count     int
	searchSeq uint64
	searching bool
	panel     Panel
	answers   map[uuid.UUID]models.QuestionAnswer
}

// NewController returns a controller with the default search and no open
// panel. signedIn gates drafting and submission.
func NewController(backend Backend, signedIn bool) *Controller {
	return &Controller{
		backend:  backend,
		signedIn: signedIn,
		params:   models.SearchParams{}.Normalize(),
		panel:    Panel{State: PanelClosed},
		answers:  make(map[uuid.UUID]models.QuestionAnswer),
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	answers := make(map[uuid.UUID]models.QuestionAnswer, len(c.answers))
	for k, v := range c.answers {
		answers[k] = v
	}
	return Snapshot{
		Params:    c.params,
		Questions: append([]models.ExamQuestion(nil), c.questions...),
		Count:     c.count,
		Searching: c.searching,
		Panel:     c.panel,
		Answers:   answers,
	}
}

// State returns the panel state of one question.
func (c *Controller) State(questionID uuid.UUID) PanelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panel.QuestionID != questionID {
		return PanelClosed
	}
	return c.panel.State
}

// HasAnswer reports whether the caller already answered questionID, which
// turns "submit" into "view my answer".
func (c *Controller) HasAnswer(questionID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.answers[questionID]
	return ok
}

// ── Search ──────────────────────────────────────────────

// BeginSearch records new filters and returns the token that ApplySearch
// must present. Earlier tokens become stale.
func (c *Controller) BeginSearch(params models.SearchParams) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchSeq++
	c.params = params.Normalize()
	c.searching = true
	return c.searchSeq
}

// ApplySearch stores a search response unless a newer search has started.
// It reports whether the response was applied.
func (c *Controller) ApplySearch(token uint64, result *models.SearchResult, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.searchSeq {
		log.Debug().Str("component", "pyq").Uint64("token", token).Uint64("latest", c.searchSeq).Msg("dropping stale search")
		return false
	}
	c.searching = false
	if err != nil {
		return true
	}
	c.questions = result.Questions
	c.count = result.Count
	return true
}

// Search runs BeginSearch, the request, and ApplySearch, then loads the
// caller's answers for the page.
func (c *Controller) Search(ctx context.Context, params models.SearchParams) error {
	token := c.BeginSearch(params)
	c.mu.Lock()
	normalized := c.params
	c.mu.Unlock()

	result, err := c.backend.Search(ctx, normalized)
	if !c.ApplySearch(token, result, err) || err != nil {
		return err
	}

	if c.signedIn && len(result.Questions) > 0 {
		ids := make([]uuid.UUID, len(result.Questions))
		for i, q := range result.Questions {
			ids[i] = q.ID
		}
		answers, err := c.backend.MyAnswers(ctx, ids)
		if err != nil {
			log.Warn().Err(err).Str("component", "pyq").Msg("could not load answers")
			return nil
		}
		c.mu.Lock()
		for id, a := range answers {
			c.answers[id] = a
		}
		c.mu.Unlock()
	}
	return nil
}

// ── Panel ───────────────────────────────────────────────

// ToggleModelAnswer shows the model answer for questionID, or hides it if it
// is already showing. Opening it closes any other panel.
func (c *Controller) ToggleModelAnswer(ctx context.Context, questionID uuid.UUID) (PanelState, error) {
	c.mu.Lock()
	if c.panel.QuestionID == questionID && c.panel.State == PanelModelAnswer {
		c.panel = Panel{State: PanelClosed}
		c.mu.Unlock()
		return PanelClosed, nil
	}
	c.panel = Panel{QuestionID: questionID, State: PanelModelAnswer, Loading: true}
	c.mu.Unlock()

	answer, err := c.backend.ModelAnswer(ctx, questionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panel.QuestionID != questionID || c.panel.State != PanelModelAnswer {
		return c.stateLocked(questionID), err
	}
	if err != nil {
		c.panel = Panel{State: PanelClosed}
		return PanelClosed, err
	}
	c.panel.Loading = false
	c.panel.ModelAnswer = answer
	return PanelModelAnswer, nil
}

// StartDraft opens the answer editor for questionID, seeded with the
// caller's previous answer if there is one.
func (c *Controller) StartDraft(questionID uuid.UUID) error {
	if !c.signedIn {
		return ErrSignInRequired
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	draft := ""
	if a, ok := c.answers[questionID]; ok {
		draft = a.AnswerText
	}
	c.panel = Panel{QuestionID: questionID, State: PanelDrafting, Draft: draft}
	return nil
}

func (c *Controller) UpdateDraft(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panel.State != PanelDrafting {
		return ErrNotDrafting
	}
	c.panel.Draft = text
	return nil
}

// Submit sends the open draft. The server resolves the reference answer,
// scores and upserts; the response updates the answers map. On failure the
// draft stays open for a retry.
func (c *Controller) Submit(ctx context.Context) (*models.SubmitAnswerResponse, error) {
	c.mu.Lock()
	if c.panel.State != PanelDrafting || c.panel.Loading {
		c.mu.Unlock()
		return nil, ErrNotDrafting
	}
	questionID := c.panel.QuestionID
	draft := strings.TrimSpace(c.panel.Draft)
	if draft == "" {
		c.mu.Unlock()
		return nil, ErrEmptyDraft
	}
	c.panel.Loading = true
	c.mu.Unlock()

	resp, err := c.backend.SubmitAnswer(ctx, questionID, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	active := c.panel.QuestionID == questionID && c.panel.State == PanelDrafting
	if active {
		c.panel.Loading = false
	}
	if err != nil {
		return nil, err
	}

	c.answers[questionID] = resp.Answer
	if active {
		c.panel.State = PanelSubmitted
		c.panel.Result = resp
	}
	return resp, nil
}

func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panel = Panel{State: PanelClosed}
}

func (c *Controller) stateLocked(questionID uuid.UUID) PanelState {
	if c.panel.QuestionID != questionID {
		return PanelClosed
	}
	return c.panel.State
}
