package generator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// MockClient returns canned replies for local development and tests.
// Reply, when set, overrides the canned behaviour.
type MockClient struct {
	Reply func(systemPrompt, userPrompt string) (string, error)
	calls atomic.Int64
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

// Calls reports how many requests the client has served.
func (m *MockClient) Calls() int {
	return int(m.calls.Load())
}

func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		content string
		err     error
	)
	if m.Reply != nil {
		content, err = m.Reply(systemPrompt, userPrompt)
	} else {
		content = cannedReply(systemPrompt, userPrompt)
	}
	if err != nil {
		return nil, err
	}

	return &LLMResponse{
		Content:      content,
		PromptTokens: len(systemPrompt+userPrompt) / 4,
		OutputTokens: len(content) / 4,
	}, nil
}

func cannedReply(systemPrompt, userPrompt string) string {
	switch {
	case systemPrompt == SimilaritySystemPrompt:
		return `{"similarity_score": 0.6, "awarded_marks": 0, "feedback": "[Mock] Covers the main argument; add data points and a balanced conclusion."}`
	case strings.Contains(userPrompt, mcqKeyInstruction):
		return "A"
	default:
		topic := "the topic"
		for _, line := range strings.Split(userPrompt, "\n") {
			if t, ok := strings.CutPrefix(strings.TrimSpace(line), "Topic: "); ok {
				topic = t
				break
			}
		}
		return fmt.Sprintf("[Mock] Introduction framing %s. Body with facts, perspectives and a case study. "+
			"Conclusion offering a balanced way forward.", topic)
	}
}
