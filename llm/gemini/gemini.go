// Package gemini implements llm.Client on top of the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/jxucoder/tomoru/llm"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 60 * time.Second
)

// modelsClient is the subset of genai.Models used here.
type modelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newGenaiClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

// Options configures a Client.
type Options struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls generateContent with a system instruction and one user turn.
type Client struct {
	models  modelsClient
	model   string
	timeout time.Duration
}

// New creates a Gemini client. Model defaults to DefaultModel and Timeout to
// DefaultTimeout.
func New(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	gc, err := newGenaiClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	c := newWithModels(gc.Models, opts.Model, opts.Timeout)
	slog.Debug("gemini_client_ready", "model", c.model, "timeout", c.timeout)
	return c, nil
}

func newWithModels(models modelsClient, model string, timeout time.Duration) *Client {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{models: models, model: model, timeout: timeout}
}

// Model returns the model name used for generation.
func (c *Client) Model() string { return c.model }

// Complete sends one stateless generateContent request. Responses without
// candidates or without text yield an empty string and a nil error.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: user}},
		},
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}

	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.models.GenerateContent(callCtx, c.model, contents, cfg)
	if err != nil {
		return "", describeError(err)
	}
	return extractText(resp), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func describeError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gemini API error (%d %s): %w", apiErr.Code, apiErr.Status, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fmt.Errorf("gemini API error (%d %s): %w", apiErrPtr.Code, apiErrPtr.Status, err)
	}
	return fmt.Errorf("gemini request: %w", err)
}

// extractText joins the visible text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

var _ llm.Client = (*Client)(nil)
