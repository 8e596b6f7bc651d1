package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/upsc-prep/backend/internal/scoring"
)

var ErrMissingInput = errors.New("topic and question are required")

// Generator produces model answers and similarity judgements through an LLMClient.
type Generator struct {
	llm   LLMClient
	model string
}

func New(llm LLMClient, model string) *Generator {
	return &Generator{llm: llm, model: model}
}

func (g *Generator) ModelName() string {
	return g.model
}

// ModelAnswer returns the coach's answer for question under topic. Callers
// that need an answer key or a sized reference pass a purpose-built question
// (see MCQKeyQuestion, ReferenceAnswerQuestion).
func (g *Generator) ModelAnswer(ctx context.Context, topic, question string) (string, error) {
	topic = strings.TrimSpace(topic)
	question = strings.TrimSpace(question)
	if topic == "" || question == "" {
		return "", ErrMissingInput
	}

	resp, err := g.llm.Generate(ctx, ModelAnswerSystemPrompt, ModelAnswerPrompt(topic, question))
	if err != nil {
		return "", fmt.Errorf("generate model answer: %w", err)
	}

	log.Debug().
		Str("component", "generator").
		Str("model", g.model).
		Int("prompt_tokens", resp.PromptTokens).
		Int("output_tokens", resp.OutputTokens).
		Msg("model answer generated")

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("%w: empty model answer", ErrUnparseable)
	}
	return answer, nil
}

// Compare grades userAnswer against correctAnswer. It implements scoring.Similarity.
func (g *Generator) Compare(ctx context.Context, userAnswer, correctAnswer string, maxMarks int) (scoring.SimilarityResult, error) {
	resp, err := g.llm.Generate(ctx, SimilaritySystemPrompt, SimilarityPrompt(userAnswer, correctAnswer, maxMarks))
	if err != nil {
		return scoring.SimilarityResult{}, fmt.Errorf("similarity request: %w", err)
	}

	result, err := ParseSimilarity(resp.Content, maxMarks)
	if err != nil {
		log.Warn().
			Str("component", "generator").
			Str("raw", resp.Content).
			Msg("unparseable similarity reply")
		return scoring.SimilarityResult{}, err
	}
	return result, nil
}
