package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/acolita/hydra-sh/internal/adapters/realclock"
	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/ports"
)

// Providers understood by the client.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const maxResponseBytes = 4 << 20

// ErrNoPurpose is returned when a request has no objective.
var ErrNoPurpose = errors.New("audit purpose is required")

// Config selects and tunes the provider.
type Config struct {
	Provider      string
	APIURL        string
	APIKey        string
	Model         string
	SystemPrompt  string
	ContextPrompt string
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
}

// Request is one audit question over a slice of history.
type Request struct {
	Purpose string
	Comment string
	Entries []history.Entry
}

// ProviderError is a failed or unreadable provider response.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Client sends audit requests.
type Client struct {
	cfg    Config
	http   *http.Client
	clock  ports.Clock
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClock sets the clock used to time requests.
func WithClock(clock ports.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client for cfg.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	c := &Client{
		cfg:    cfg,
		clock:  realclock.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	return c
}

// Provider returns the configured provider name.
func (c *Client) Provider() string { return c.cfg.Provider }

// Analyze asks the provider about req. An unknown provider is not an
// error: the reply says so.
func (c *Client) Analyze(ctx context.Context, req Request) (string, error) {
	if req.Purpose == "" {
		return "", ErrNoPurpose
	}
	user := UserPrompt(req.Purpose, req.Comment, req.Entries)

	start := c.clock.Now()
	logger := c.logger.With(
		slog.String("provider", c.cfg.Provider),
		slog.String("model", c.cfg.Model),
		slog.Int("entries", len(req.Entries)))

	var (
		text string
		err  error
	)
	switch c.cfg.Provider {
	case ProviderOpenAI:
		text, err = c.openAI(ctx, user)
	case ProviderGemini:
		text, err = c.gemini(ctx, user)
	default:
		return fmt.Sprintf("[HYDRA-AI] Provider [%s] is not supported yet.", c.cfg.Provider), nil
	}

	elapsed := c.clock.Now().Sub(start)
	if err != nil {
		logger.Error("audit request failed",
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
		return "", err
	}
	logger.Info("audit request completed", slog.Duration("duration", elapsed))
	return text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) openAI(ctx context.Context, user string) (string, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: c.cfg.ContextPrompt + "\n\n" + user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	header := http.Header{"Authorization": {"Bearer " + c.cfg.APIKey}}

	var resp chatResponse
	status, err := c.post(ctx, header, body, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		return resp.Choices[0].Message.Content, nil
	}
	return "", &ProviderError{Provider: ProviderOpenAI, Status: status, Message: errorMessage(resp.Error, "unrecognised OpenAI response")}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

func (c *Client) gemini(ctx context.Context, user string) (string, error) {
	var body geminiRequest
	body.Contents = []geminiContent{{Parts: []geminiPart{{
		Text: c.cfg.SystemPrompt + "\n\n" + c.cfg.ContextPrompt + "\n\n" + user,
	}}}}
	body.GenerationConfig.Temperature = c.cfg.Temperature
	body.GenerationConfig.MaxOutputTokens = c.cfg.MaxTokens
	header := http.Header{"X-Goog-Api-Key": {c.cfg.APIKey}}

	var resp geminiResponse
	status, err := c.post(ctx, header, body, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 && resp.Candidates[0].Content.Parts[0].Text != "" {
		return resp.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", &ProviderError{Provider: ProviderGemini, Status: status, Message: errorMessage(resp.Error, "unrecognised Gemini response")}
}

// post sends body as JSON and decodes the reply into out whatever the
// status, since providers describe failures in the body.
func (c *Client) post(ctx context.Context, header http.Header, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s request: %w", c.cfg.Provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%s response: %w", c.cfg.Provider, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, &ProviderError{Provider: c.cfg.Provider, Status: resp.StatusCode, Message: "response is not JSON"}
	}
	return resp.StatusCode, nil
}

func errorMessage(e *apiError, fallback string) string {
	if e != nil && e.Message != "" {
		return e.Message
	}
	return fallback
}
