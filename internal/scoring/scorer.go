package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/upsc-prep/backend/internal/models"
)

// ErrScoringUnavailable means the similarity dependency failed, as opposed to
// the answer genuinely scoring zero.
var ErrScoringUnavailable = errors.New("scoring unavailable")

// DefaultSimilarityMinChars is the length both answers must exceed before the
// semantic similarity function is used.
const DefaultSimilarityMinChars = 30

type SimilarityResult struct {
	SimilarityScore float64
	AwardedMarks    float64
	Feedback        string
}

// Similarity is an external semantic similarity function.
type Similarity interface {
	Compare(ctx context.Context, userAnswer, correctAnswer string, maxMarks int) (SimilarityResult, error)
}

type Policy string

const (
	PolicyOptionLetter Policy = "option_letter"
	PolicySemantic     Policy = "semantic"
	PolicyExactText    Policy = "exact_text"
)

type Input struct {
	UserAnswer      string
	ReferenceAnswer string
	MaxMarks        int
	QuestionType    models.QuestionType
}

type Score struct {
	Similarity   float64
	AwardedMarks float64
	Policy       Policy
	Feedback     string
	// Unavailable is set when the score was forced to zero because the
	// similarity dependency failed.
	Unavailable bool
}

type Scorer struct {
	similarity Similarity
	minChars   int
}

func NewScorer(similarity Similarity, minChars int) *Scorer {
	if minChars < 0 {
		minChars = DefaultSimilarityMinChars
	}
	return &Scorer{similarity: similarity, minChars: minChars}
}

// Evaluate scores in and returns ErrScoringUnavailable when the similarity
// dependency cannot produce a result.
func (s *Scorer) Evaluate(ctx context.Context, in Input) (Score, error) {
	maxMarks := float64(in.MaxMarks)

	if in.QuestionType == models.QuestionMCQ {
		sim := 0.0
		if l := leadingLetter(in.UserAnswer); l != "" && l == leadingLetter(in.ReferenceAnswer) {
			sim = 1
		}
		return Score{Similarity: sim, AwardedMarks: sim * maxMarks, Policy: PolicyOptionLetter}, nil
	}

	user := strings.TrimSpace(in.UserAnswer)
	ref := strings.TrimSpace(in.ReferenceAnswer)
	if utf8.RuneCountInString(user) > s.minChars && utf8.RuneCountInString(ref) > s.minChars {
		if s.similarity == nil {
			return Score{Policy: PolicySemantic}, fmt.Errorf("%w: no similarity function", ErrScoringUnavailable)
		}
		res, err := s.similarity.Compare(ctx, user, ref, in.MaxMarks)
		if err != nil {
			return Score{Policy: PolicySemantic}, fmt.Errorf("%w: %v", ErrScoringUnavailable, err)
		}
		sim := clamp01(res.SimilarityScore)
		return Score{
			Similarity:   sim,
			AwardedMarks: sim * maxMarks,
			Policy:       PolicySemantic,
			Feedback:     res.Feedback,
		}, nil
	}

	sim := 0.0
	if NormalizeText(user) == NormalizeText(ref) {
		sim = 1
	}
	return Score{Similarity: sim, AwardedMarks: sim * maxMarks, Policy: PolicyExactText}, nil
}

// Score is the write-path entry point. A failed similarity dependency yields a
// zero score flagged Unavailable instead of an error.
func (s *Scorer) Score(ctx context.Context, in Input) Score {
	score, err := s.Evaluate(ctx, in)
	if err != nil {
		log.Warn().
			Err(err).
			Str("component", "scoring").
			Str("policy", string(score.Policy)).
			Int("max_marks", in.MaxMarks).
			Msg("scoring unavailable, recording zero score")
		return Score{Policy: score.Policy, Unavailable: true}
	}
	return score
}

const strippedPunctuation = ".,/#!$%^&*;:{}=-_`~()"

// NormalizeText lowercases s and removes the punctuation ignored when
// comparing short answers.
func NormalizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedPunctuation, r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.TrimSpace(s)
}

func leadingLetter(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
