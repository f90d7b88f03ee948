// Package coach proxies chat messages to a Gemini model.
package coach

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash-lite"

// FallbackReply is returned when the model answers with no text.
const FallbackReply = "Sorry, I’m here but I couldn’t think of a good answer right now."

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("coach not configured: missing API key")

type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client

	once    sync.Once
	gc      *genai.Client
	initErr error
}

type Option func(*Client)

// WithBaseURL points the client at another Gemini API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/") + "/"
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// client builds the SDK client on first use.
func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		c.gc, c.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      c.apiKey,
			Backend:     genai.BackendGeminiAPI,
			HTTPClient:  c.httpClient,
			HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL},
		})
	})
	if c.initErr != nil {
		return nil, fmt.Errorf("create gemini client: %w", c.initErr)
	}
	return c.gc, nil
}

// Reply sends prompt to the model and returns its trimmed text, or
// FallbackReply when the model returns nothing.
func (c *Client) Reply(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	gc, err := c.client(ctx)
	if err != nil {
		return "", err
	}

	resp, err := gc.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return FallbackReply, nil
	}
	return reply, nil
}
