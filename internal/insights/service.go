// Package insights turns computed scores into narrative summaries a CSM
// can read before a call. The model only ever sees a rendered breakdown
// of scores that were already computed, so the rubric stays in one place.
package insights

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/scoring"
)

// ErrNoChoices is returned when the completion API responds without content.
var ErrNoChoices = errors.New("completion response contained no choices")

// Service generates narratives and answers follow-up questions.
type Service struct {
	client *openai.Client
	model  string
}

// NewService creates an insights service. baseURL overrides the API
// endpoint and is empty in production.
func NewService(apiKey, baseURL, model string) *Service {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Service{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// NarrateChurn summarizes a computed churn score for an account.
func (s *Service) NarrateChurn(ctx context.Context, acct *account.Account, result scoring.ScoreResult) (string, error) {
	return s.complete(ctx, churnPrompt(acct, result))
}

// NarrateExpansion summarizes a computed expansion score for an account.
func (s *Service) NarrateExpansion(ctx context.Context, acct *account.Account, result scoring.ExpansionResult) (string, error) {
	return s.complete(ctx, expansionPrompt(acct, result))
}

// Chat answers a follow-up question grounded in the account's stored
// snapshot and recent scoring runs.
func (s *Service) Chat(ctx context.Context, acct *account.Account, latest *account.Snapshot, history []account.Prediction, question string) (string, error) {
	return s.complete(ctx, chatPrompt(acct, latest, history, question))
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.4,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate narrative: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
