package questions

import (
	"context"

	"github.com/google/uuid"

	"github.com/upsc-prep/backend/internal/models"
)

// Repository is the question store. viewer is uuid.Nil for anonymous callers.
// SearchQuestions expects normalized params.
type Repository interface {
	SearchQuestions(ctx context.Context, params models.SearchParams, viewer uuid.UUID) ([]models.ExamQuestion, int, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.ExamQuestion, error)
	InsertQuestion(ctx context.Context, q *models.ExamQuestion) error
	// InsertQuestions stores one batch atomically.
	InsertQuestions(ctx context.Context, qs []models.ExamQuestion) error
	// DeleteQuestion removes a user-submitted question owned by ownerID.
	DeleteQuestion(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
	ListSubjects(ctx context.Context) ([]string, error)

	// UpsertAnswer inserts or overwrites the (question, user) answer.
	UpsertAnswer(ctx context.Context, a *models.QuestionAnswer) error
	GetAnswer(ctx context.Context, questionID, userID uuid.UUID) (*models.QuestionAnswer, error)
	ListAnswers(ctx context.Context, userID uuid.UUID, questionIDs []uuid.UUID) ([]models.QuestionAnswer, error)
}
