package pyq

import (
	"context"

	"github.com/google/uuid"

	"github.com/upsc-prep/backend/internal/models"
	"github.com/upsc-prep/backend/internal/questions"
)

// LocalBackend drives a questions.Service in-process as User (uuid.Nil for
// anonymous).
type LocalBackend struct {
	Service *questions.Service
	User    uuid.UUID
}

func (b LocalBackend) Search(ctx context.Context, params models.SearchParams) (*models.SearchResult, error) {
	return b.Service.Search(ctx, params, b.User)
}

func (b LocalBackend) ModelAnswer(ctx context.Context, questionID uuid.UUID) (string, error) {
	return b.Service.ModelAnswer(ctx, questionID, b.User)
}

func (b LocalBackend) SubmitAnswer(ctx context.Context, questionID uuid.UUID, text string) (*models.SubmitAnswerResponse, error) {
	return b.Service.SubmitAnswer(ctx, b.User, questionID, text)
}

func (b LocalBackend) MyAnswers(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]models.QuestionAnswer, error) {
	return b.Service.MyAnswers(ctx, b.User, questionIDs)
}
