package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

const summaryPrompt = "You're a study assistant. Summarize the following text in bullet points for easy revision:\n\n"

const flashcardPrompt = "Based on the following text, generate a list of Q&A flashcards:\n\n%s\n\nReturn the output in JSON with format:\n{ \"cards\": [{ \"question\": \"...\", \"answer\": \"...\" }] }"

// Client calls the OpenAI chat-completions API.
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	maxPromptChars int
	httpc          *http.Client
	logger         *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a logger for debug output (request sizes, parse fallbacks).
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a generation client from cfg. A missing API key is a
// configuration error: the process should refuse to start rather than fail
// on the first generation request.
func NewClient(cfg *config.OpenAIConfig, opts ...ClientOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apperr.New(apperr.KindConfiguration, "OPENAI_API_KEY is not set")
	}
	c := &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		maxPromptChars: cfg.MaxPromptChars,
		httpc:          &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Summarize returns a prose summary of text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	content, err := c.complete(ctx, &chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: summaryPrompt + c.capPrompt(text)}},
		MaxTokens:   1000,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", apperr.New(apperr.KindGeneration, "generation service returned an empty summary")
	}
	return content, nil
}

// GenerateFlashcards returns question/answer pairs derived from text.
func (c *Client) GenerateFlashcards(ctx context.Context, text string) ([]models.CardPair, error) {
	content, err := c.complete(ctx, &chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: fmt.Sprintf(flashcardPrompt, c.capPrompt(text))}},
		MaxTokens:      1500,
		Temperature:    0.3,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}
	cards, err := ParseCardPairs([]byte(content))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGeneration, "generation service returned malformed flashcards", err)
	}
	return cards, nil
}

// capPrompt truncates text to the prompt budget, discarding the remainder.
// Summaries are lossy by nature; chunking is not worth the extra requests.
func (c *Client) capPrompt(text string) string {
	if c.maxPromptChars > 0 && len(text) > c.maxPromptChars {
		if c.logger != nil {
			c.logger.Debug("prompt truncated", zap.Int("original_chars", len(text)), zap.Int("cap", c.maxPromptChars))
		}
		return text[:c.maxPromptChars]
	}
	return text
}

// complete posts a chat-completions request and returns the first choice's content.
func (c *Client) complete(ctx context.Context, reqBody *chatRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, "failed to encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, "generation request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		// Error bodies are not guaranteed to be JSON (a gateway may return
		// HTML), so fall back to a raw snippet when decoding fails.
		msg := fmt.Sprintf("generation service returned %d", resp.StatusCode)
		var out chatResponse
		if json.Unmarshal(respBody, &out) == nil && out.Error != nil && out.Error.Message != "" {
			msg = fmt.Sprintf("%s: %s", msg, out.Error.Message)
		} else if snippet := strings.TrimSpace(string(respBody)); snippet != "" {
			msg = fmt.Sprintf("%s: %s", msg, utils.Truncate(snippet, 200))
		}
		return "", apperr.New(apperr.KindGeneration, msg)
	}
	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, "failed to decode response", err)
	}
	if len(out.Choices) == 0 {
		return "", apperr.New(apperr.KindGeneration, "generation service returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// ParseCardPairs parses the model's structured flashcard output. The service
// is non-deterministic: it may return a bare array, or an object wrapping the
// array under "cards" or "flashcards". Anything else is rejected rather than
// coerced into an empty result, so a failure is never masked as zero cards.
func ParseCardPairs(data []byte) ([]models.CardPair, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	if trimmed[0] == '[' {
		var cards []models.CardPair
		if err := json.Unmarshal(trimmed, &cards); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		return validateCards(cards)
	}

	var wrapper struct {
		Cards      []models.CardPair `json:"cards"`
		Flashcards []models.CardPair `json:"flashcards"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if wrapper.Cards != nil {
		return validateCards(wrapper.Cards)
	}
	if wrapper.Flashcards != nil {
		return validateCards(wrapper.Flashcards)
	}
	return nil, fmt.Errorf("response has neither a cards nor a flashcards array")
}

func validateCards(cards []models.CardPair) ([]models.CardPair, error) {
	for i, card := range cards {
		if strings.TrimSpace(card.Question) == "" || strings.TrimSpace(card.Answer) == "" {
			return nil, fmt.Errorf("card %d has an empty question or answer", i)
		}
	}
	return cards, nil
}
