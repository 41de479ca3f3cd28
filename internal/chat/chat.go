// Package chat backs the registry's chat sidebar. Each user stores their own
// LLM API key, encrypted at rest; queries run against an OpenAI-compatible
// endpoint with the currently visible initiatives as context.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Mdraugelis/ai-programs-registry/internal/config"
	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
	"github.com/Mdraugelis/ai-programs-registry/internal/repo"
)

var (
	ErrNoKey      = errors.New("no chat API key configured")
	ErrInvalidKey = errors.New("chat API key rejected by provider")
)

type Service struct {
	Repo   repo.Repo
	Config *config.Config
	Secret string
	Now    func() time.Time
}

func New(r repo.Repo, cfg *config.Config, secret string) *Service {
	return &Service{Repo: r, Config: cfg, Secret: secret, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) client(apiKey string) *openai.Client {
	c := openai.DefaultConfig(apiKey)
	if s.Config.Chat.BaseURL != "" {
		c.BaseURL = s.Config.Chat.BaseURL
	}
	return openai.NewClientWithConfig(c)
}

// Setup validates the key against the provider with a one-token completion,
// then stores it encrypted. A failed ping stores nothing.
func (s *Service) Setup(ctx context.Context, userID, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("api key is required")
	}
	_, err := s.client(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.Config.Chat.Model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hi"},
		},
	})
	if err != nil {
		if isAuthError(err) {
			return ErrInvalidKey
		}
		return fmt.Errorf("validate key: %w", err)
	}
	enc, err := encryptKey(s.Secret, apiKey)
	if err != nil {
		return err
	}
	return s.Repo.UpsertChatKey(ctx, domain.ChatKey{
		UserID:       userID,
		EncryptedKey: enc,
		Provider:     "openai",
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	})
}

// Status describes a user's chat configuration without exposing the key.
type Status struct {
	Configured bool    `json:"configured"`
	Provider   string  `json:"provider,omitempty"`
	LastUsed   *string `json:"last_used,omitempty"`
	UsageCount int     `json:"usage_count"`
}

func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	k, err := s.Repo.GetChatKey(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Status{}, nil
		}
		return Status{}, err
	}
	return Status{Configured: true, Provider: k.Provider, LastUsed: k.LastUsed, UsageCount: k.UsageCount}, nil
}

func (s *Service) Disconnect(ctx context.Context, userID string) error {
	return s.Repo.DeleteChatKey(ctx, userID)
}

// Query answers a question about the given initiatives with the user's own
// key. A key the provider now rejects is deleted so the user is prompted to
// reconfigure.
func (s *Service) Query(ctx context.Context, userID, question string, visible []domain.Initiative) (string, error) {
	k, err := s.Repo.GetChatKey(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrNoKey
		}
		return "", err
	}
	apiKey, err := decryptKey(s.Secret, k.EncryptedKey)
	if err != nil {
		return "", err
	}

	req := openai.ChatCompletionRequest{
		Model:     s.Config.Chat.Model,
		MaxTokens: s.Config.Chat.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: FormatContext(visible) + "\nUser Question: " + question},
		},
	}
	resp, err := s.client(apiKey).CreateChatCompletion(ctx, req)
	if err != nil {
		if isAuthError(err) {
			_ = s.Repo.DeleteChatKey(ctx, userID)
			return "", ErrInvalidKey
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("provider returned no choices")
	}
	if err := s.Repo.MarkChatKeyUsed(ctx, userID, s.now().UTC().Format(time.RFC3339)); err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

const systemPrompt = "You are an assistant helping users analyze AI initiatives in their organization. " +
	"Reference initiatives by name when the question is about specific ones. Be concise but informative."

// FormatContext renders the visible initiatives as the prompt context block.
func FormatContext(visible []domain.Initiative) string {
	if len(visible) == 0 {
		return "No initiatives are currently visible.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Currently viewing %d AI initiatives:\n\n", len(visible))
	for _, in := range visible {
		fmt.Fprintf(&b, "Initiative: %s\n", in.Title)
		if in.ProgramOwner != "" {
			fmt.Fprintf(&b, "  Owner: %s\n", in.ProgramOwner)
		}
		if in.Department != "" {
			fmt.Fprintf(&b, "  Department: %s\n", in.Department)
		}
		fmt.Fprintf(&b, "  Stage: %s\n", in.Stage)
		if in.Background != "" {
			fmt.Fprintf(&b, "  Background: %s\n", in.Background)
		}
		if in.Goal != "" {
			fmt.Fprintf(&b, "  Goal: %s\n", in.Goal)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func isAuthError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 401 || reqErr.HTTPStatusCode == 403
	}
	return false
}
