package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/example/campus-portal/internal/breaker"
)

// Defaults for Config.
const (
	DefaultEndpoint    = "https://api.openai.com/v1/chat/completions"
	DefaultModel       = "gpt-4"
	DefaultVisionModel = "gpt-4-vision-preview"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
	DefaultTimeout     = 30 * time.Second
)

var (
	// ErrUnavailable covers transport failures, unexpected statuses and an open breaker.
	ErrUnavailable = errors.New("chat: completion service unavailable")
	// ErrQuotaExceeded is returned when the endpoint answers 429.
	ErrQuotaExceeded = errors.New("chat: quota exceeded")
	// ErrEmptyResponse is returned when no choice carries any content.
	ErrEmptyResponse = errors.New("chat: empty completion")
	// ErrNotConfigured is returned when no API key was supplied.
	ErrNotConfigured = errors.New("chat: api key is not configured")
)

// Config configures a Client.
type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	VisionModel string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// Client calls a chat completion endpoint behind a circuit breaker.
type Client struct {
	cfg    Config
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewClient fills unset Config fields with the defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.VisionModel) == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		cfg:    cfg,
		cb:     breaker.New(breaker.Chat, logger),
		logger: logger,
	}
}

// Complete sends messages with the text model and returns the assistant reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, c.cfg.Model, messages, true)
}

// Describe sends a single image turn with the vision model.
func (c *Client) Describe(ctx context.Context, message Message) (string, error) {
	return c.complete(ctx, c.cfg.VisionModel, []Message{message}, false)
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, model string, messages []Message, withTemperature bool) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", ErrNotConfigured
	}

	request := completionRequest{
		Model:     model,
		Messages:  toWire(messages),
		MaxTokens: c.cfg.MaxTokens,
	}
	if withTemperature {
		temperature := c.cfg.Temperature
		request.Temperature = &temperature
	}
	body, err := json.Marshal(request)
	if err != nil {
		return "", errors.Wrap(err, "chat: marshal request")
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.send(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "chat: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		c.logger.WarnContext(ctx, "chat completion failed",
			slog.Int("status", res.StatusCode),
			slog.String("body", strings.TrimSpace(string(snippet))),
		)
		if res.StatusCode == http.StatusTooManyRequests {
			return "", ErrQuotaExceeded
		}
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
	}

	var payload completionResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	for _, choice := range payload.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", ErrEmptyResponse
}

func toWire(messages []Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, message := range messages {
		if message.ImageURL == "" {
			out = append(out, wireMessage{Role: message.Role, Content: message.Content})
			continue
		}
		out = append(out, wireMessage{
			Role: message.Role,
			Content: []contentPart{
				{Type: "text", Text: message.Content},
				{Type: "image_url", ImageURL: &imageURL{URL: message.ImageURL}},
			},
		})
	}
	return out
}
