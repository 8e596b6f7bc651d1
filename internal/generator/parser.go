package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/upsc-prep/backend/internal/scoring"
)

// ErrUnparseable is returned when an LLM reply does not have the expected shape.
// The raw reply is logged, never returned to API callers.
var ErrUnparseable = errors.New("failed to parse LLM response")

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

var letterPrefixes = []string{
	"the correct answer is", "the correct option is", "correct answer is", "correct answer:",
	"the answer is", "answer is", "answer:", "option",
}

// ParseOptionLetter returns the option letter an answer-key reply starts with,
// or "" when the reply does not start with one.
func ParseOptionLetter(reply string) string {
	const punct = "*_`\"'([ :\t\n"
	s := strings.TrimLeft(strings.TrimSpace(reply), punct)
	lower := strings.ToLower(s)
	for _, prefix := range letterPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimLeft(s[len(prefix):], punct)
			break
		}
	}
	if s == "" {
		return ""
	}
	r := unicode.ToUpper(rune(s[0]))
	if r < 'A' || r > 'Z' {
		return ""
	}
	return string(r)
}

var scorePattern = regexp.MustCompile(`(?i)Score:\s*(\d+\.?\d*)`)

// ParseScore extracts the number following "Score:". ok is false when absent.
func ParseScore(reply string) (score float64, ok bool) {
	m := scorePattern.FindStringSubmatch(reply)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

type similarityReply struct {
	SimilarityScore *float64 `json:"similarity_score"`
	AwardedMarks    *float64 `json:"awarded_marks"`
	Feedback        string   `json:"feedback"`
}

// ParseSimilarity reads a similarity reply. JSON is preferred; a "Score: N"
// line is accepted as marks out of maxMarks.
func ParseSimilarity(reply string, maxMarks int) (scoring.SimilarityResult, error) {
	cleaned := stripCodeFences(reply)
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		var r similarityReply
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &r); err == nil {
			switch {
			case r.SimilarityScore != nil:
				return scoring.SimilarityResult{
					SimilarityScore: clamp01(*r.SimilarityScore),
					AwardedMarks:    clamp01(*r.SimilarityScore) * float64(maxMarks),
					Feedback:        r.Feedback,
				}, nil
			case r.AwardedMarks != nil && maxMarks > 0:
				sim := clamp01(*r.AwardedMarks / float64(maxMarks))
				return scoring.SimilarityResult{
					SimilarityScore: sim,
					AwardedMarks:    sim * float64(maxMarks),
					Feedback:        r.Feedback,
				}, nil
			}
		}
	}

	if score, ok := ParseScore(cleaned); ok && maxMarks > 0 {
		sim := clamp01(score / float64(maxMarks))
		return scoring.SimilarityResult{
			SimilarityScore: sim,
			AwardedMarks:    sim * float64(maxMarks),
			Feedback:        cleaned,
		}, nil
	}

	return scoring.SimilarityResult{}, fmt.Errorf("%w: no similarity score in reply", ErrUnparseable)
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
