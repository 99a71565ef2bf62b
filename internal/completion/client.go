package completion

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "anthropic/claude-3.5-sonnet"
)

// Config holds everything needed to reach the completion API
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Referer    string       // optional HTTP-Referer attribution header
	AppTitle   string       // optional X-Title attribution header
	HTTPClient *http.Client // nil uses http.DefaultClient
}

// Request is a single chat completion
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completer is anything that can turn a Request into text
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client talks to an OpenAI-compatible /chat/completions endpoint
type Client struct {
	api    openai.Client
	model  string
	logger *zap.Logger
}

type Option func(*Client)

// WithLogger sets the logger used for request diagnostics
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient validates cfg and builds a client. A missing API key is a
// configuration error reported here, never per call.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is empty", ErrConfiguration)
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
		option.WithMaxRetries(0),
		// The SDK fills these from OPENAI_ORG_ID and OPENAI_PROJECT_ID.
		option.WithHeaderDel("OpenAI-Organization"),
		option.WithHeaderDel("OpenAI-Project"),
	}
	if cfg.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Referer != "" {
		reqOpts = append(reqOpts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.AppTitle != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-Title", cfg.AppTitle))
	}

	c := &Client{
		api:    openai.NewClient(reqOpts...),
		model:  model,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the model identifier sent with every request
func (c *Client) Model() string {
	return c.model
}

// Complete issues exactly one request and returns the first choice's text.
// Every failure is returned as an *Error.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		cerr := classify(err)
		c.logger.Debug("completion request failed",
			zap.String("model", c.model),
			zap.Stringer("kind", cerr.Kind),
			zap.Int("status", cerr.Status),
			zap.Error(err))
		return "", cerr
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", &Error{Kind: KindEmptyResponse}
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &Error{Kind: KindEmptyResponse}
	}

	c.logger.Debug("completion request succeeded",
		zap.String("model", c.model),
		zap.Int("chars", len(content)))
	return content, nil
}
