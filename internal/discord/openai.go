package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hunterjsb/animeguess/internal/game"
	"github.com/sashabaranov/go-openai"
)

// announceTimeout caps the wait for a generated win line.
const announceTimeout = 5 * time.Second

// OpenAIClient wraps the OpenAI API client
type OpenAIClient struct {
	client      *openai.Client
	maxTokens   int
	temperature float32
}

func NewOpenAIClient(apiKey string, maxTokens int, temperature float64) *OpenAIClient {
	client := openai.NewClient(apiKey)
	return &OpenAIClient{
		client:      client,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

func (o *OpenAIClient) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4oMini,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are the host of an anime quiz on Discord. Answer with one short, upbeat sentence.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   o.maxTokens,
			Temperature: o.temperature,
		},
	)

	if err != nil {
		return "", fmt.Errorf("ChatCompletion error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Announce writes a congratulation line for a won round. The player mention
// is prepended so the line always pings the winner.
func (o *OpenAIClient) Announce(ctx context.Context, snap game.Snapshot) (string, error) {
	line, err := o.GenerateResponse(ctx, winPrompt(snap))
	if err != nil {
		return "", err
	}
	if line == "" {
		return "", fmt.Errorf("empty announcement")
	}
	return mention(snap.PlayerID) + " " + line, nil
}

func winPrompt(snap game.Snapshot) string {
	return fmt.Sprintf(
		"A player just recognised %s from %s after %d attempt(s) out of %d. Congratulate them without repeating the character's name.",
		snap.Character.FullName(), snap.Character.Series, snap.Attempts, game.MaxAttempts,
	)
}
