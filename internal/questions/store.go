package questions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/upsc-prep/backend/internal/models"
)

// Store is the Postgres implementation of Repository.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Questions ───────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (*models.ExamQuestion, error) {
	var q models.ExamQuestion
	var owner uuid.NullUUID
	err := row.Scan(&q.ID, &q.QuestionText, &q.Year, &q.Subject, &q.ExamType, &q.Keywords, &q.Options,
		&q.CorrectAnswer, &q.Explanation, &q.QuestionType, &q.Marks, &owner, &q.IsDatabaseQuestion,
		&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if owner.Valid {
		id := owner.UUID
		q.UserID = &id
	}
	return &q, nil
}

func (s *Store) SearchQuestions(ctx context.Context, params models.SearchParams, viewer uuid.UUID) ([]models.ExamQuestion, int, error) {
	query := buildSearchQuery(params, viewer)

	var total int
	if err := s.db.QueryRowContext(ctx, query.countSQL, query.countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query.selectSQL, query.selectArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("search questions: %w", err)
	}
	defer rows.Close()

	var out []models.ExamQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("search questions: %w", err)
	}
	return out, total, nil
}

func (s *Store) GetQuestion(ctx context.Context, id uuid.UUID) (*models.ExamQuestion, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM exam_questions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

const insertQuestionPrefix = `INSERT INTO exam_questions
	(id, question_text, year, subject, exam_type, keywords, options, correct_answer, explanation,
	 question_type, marks, user_id, is_database_question, created_at, updated_at)
	VALUES `

const insertQuestionCols = 15

// prepareInsert assigns id and timestamps and returns the row's arguments.
func prepareInsert(q *models.ExamQuestion, now time.Time) []interface{} {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Keywords == nil {
		q.Keywords = pq.StringArray{}
	}
	q.CreatedAt, q.UpdatedAt = now, now
	return []interface{}{
		q.ID, q.QuestionText, q.Year, q.Subject, string(q.ExamType), q.Keywords, q.Options,
		q.CorrectAnswer, q.Explanation, string(q.QuestionType), q.Marks, q.UserID, q.IsDatabaseQuestion,
		q.CreatedAt, q.UpdatedAt,
	}
}

func placeholders(row, cols int) string {
	ph := make([]string, cols)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", row*cols+i+1)
	}
	return "(" + strings.Join(ph, ", ") + ")"
}

func (s *Store) InsertQuestion(ctx context.Context, q *models.ExamQuestion) error {
	args := prepareInsert(q, time.Now().UTC())
	_, err := s.db.ExecContext(ctx, insertQuestionPrefix+placeholders(0, insertQuestionCols), args...)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// Postgres accepts at most 65535 bind parameters per statement.
const maxRowsPerInsert = 65535 / insertQuestionCols

type insertStatement struct {
	sql  string
	args []interface{}
}

// insertStatements splits qs into multi-row INSERTs that stay under the bind
// parameter limit.
func insertStatements(qs []models.ExamQuestion, now time.Time) []insertStatement {
	var stmts []insertStatement
	for start := 0; start < len(qs); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(qs))

		var sb strings.Builder
		sb.WriteString(insertQuestionPrefix)
		args := make([]interface{}, 0, (end-start)*insertQuestionCols)
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteString(", ")
			}
			sb.WriteString(placeholders(i-start, insertQuestionCols))
			args = append(args, prepareInsert(&qs[i], now)...)
		}
		stmts = append(stmts, insertStatement{sql: sb.String(), args: args})
	}
	return stmts
}

func (s *Store) InsertQuestions(ctx context.Context, qs []models.ExamQuestion) error {
	if len(qs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range insertStatements(qs, time.Now().UTC()) {
		if _, err := tx.ExecContext(ctx, stmt.sql, stmt.args...); err != nil {
			return fmt.Errorf("insert question batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question batch: %w", err)
	}
	return nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM exam_questions WHERE id = $1 AND user_id = $2 AND is_database_question = FALSE`,
		id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete question: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete question: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT subject FROM exam_questions ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

// ── Answers ─────────────────────────────────────────────

const answerColumns = `id, question_id, user_id, answer_text, similarity_score, awarded_marks, created_at, updated_at`

func scanAnswer(row rowScanner) (*models.QuestionAnswer, error) {
	var a models.QuestionAnswer
	if err := row.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.AnswerText, &a.SimilarityScore,
		&a.AwardedMarks, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpsertAnswer(ctx context.Context, a *models.QuestionAnswer) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO question_answers
		 (id, question_id, user_id, answer_text, similarity_score, awarded_marks, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 ON CONFLICT (question_id, user_id) DO UPDATE SET
		     answer_text = EXCLUDED.answer_text,
		     similarity_score = EXCLUDED.similarity_score,
		     awarded_marks = EXCLUDED.awarded_marks,
		     updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		a.ID, a.QuestionID, a.UserID, a.AnswerText, a.SimilarityScore, a.AwardedMarks,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *Store) GetAnswer(ctx context.Context, questionID, userID uuid.UUID) (*models.QuestionAnswer, error) {
	a, err := scanAnswer(s.db.QueryRowContext(ctx,
		`SELECT `+answerColumns+` FROM question_answers WHERE question_id = $1 AND user_id = $2`,
		questionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnswerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	return a, nil
}

func (s *Store) ListAnswers(ctx context.Context, userID uuid.UUID, questionIDs []uuid.UUID) ([]models.QuestionAnswer, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(questionIDs))
	for i, id := range questionIDs {
		ids[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+answerColumns+` FROM question_answers
		 WHERE user_id = $1 AND question_id = ANY($2::uuid[])`,
		userID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []models.QuestionAnswer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, *a)
	}
	return answers, rows.Err()
}
