package generator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandClient shells out to a local LLM command line tool. The system and
// user prompts are written to its stdin; stdout is the reply.
type CommandClient struct {
	argv []string
}

func NewCommandClient(command string) *CommandClient {
	return &CommandClient{argv: strings.Fields(command)}
}

func (c *CommandClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	if len(c.argv) == 0 {
		return nil, fmt.Errorf("llm command not configured")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(systemPrompt + "\n\n" + userPrompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("llm command error: %w\nstderr: %s", err, stderr.String())
	}

	responseText := strings.TrimSpace(stdout.String())
	if responseText == "" {
		return nil, fmt.Errorf("llm command returned empty response")
	}

	return &LLMResponse{Content: responseText}, nil
}
