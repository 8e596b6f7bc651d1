package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/upsc-prep/backend/internal/models"
)

const DefaultBatchSize = 100

// BatchInserter stores one batch atomically. questions.Repository satisfies it.
type BatchInserter interface {
	InsertQuestions(ctx context.Context, qs []models.ExamQuestion) error
}

// Progress is emitted after every committed batch.
type Progress struct {
	Imported int     `json:"imported"`
	Total    int     `json:"total"`
	Fraction float64 `json:"fraction"`
}

type Importer struct {
	store     BatchInserter
	batchSize int
	now       func() time.Time
}

func New(store BatchInserter, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Importer{store: store, batchSize: batchSize, now: time.Now}
}

// Import parses the whole file, then inserts it in sequential batches owned by
// owner. A subject error aborts before anything is written. A failed batch
// stops the import; earlier batches stay committed and are counted in the
// result.
func (im *Importer) Import(ctx context.Context, r io.Reader, owner uuid.UUID, progress func(Progress)) (models.ImportResult, error) {
	questions, err := ParseCSV(r, im.now())
	if err != nil {
		return models.ImportResult{}, err
	}

	total := len(questions)
	result := models.ImportResult{Total: total}
	for i := range questions {
		questions[i].UserID = &owner
	}

	for start := 0; start < total; start += im.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+im.batchSize, total)

		if err := im.store.InsertQuestions(ctx, questions[start:end]); err != nil {
			log.Error().
				Err(err).
				Str("component", "importer").
				Int("batch_start", start).
				Int("imported", result.Imported).
				Int("total", total).
				Msg("batch insert failed")
			return result, fmt.Errorf("insert rows %d-%d: %w", start+2, end+1, err)
		}

		result.Imported = end
		if progress != nil {
			progress(Progress{Imported: end, Total: total, Fraction: float64(end) / float64(total)})
		}
	}

	log.Info().
		Str("component", "importer").
		Str("owner", owner.String()).
		Int("imported", result.Imported).
		Msg("import complete")
	return result, nil
}
