package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"
)

type stubModels struct {
	resp *genai.GenerateContentResponse
	err  error

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	gotDeadline bool
}

func (s *stubModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.gotModel = model
	s.gotContents = contents
	s.gotConfig = cfg
	_, s.gotDeadline = ctx.Deadline()
	return s.resp, s.err
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: parts,
				},
			},
		},
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), Options{APIKey: "  "}); err == nil {
		t.Fatal("expected error when api key is missing")
	}
}

func TestNewDefaults(t *testing.T) {
	orig := newGenaiClient
	defer func() { newGenaiClient = orig }()

	var gotCfg *genai.ClientConfig
	newGenaiClient = func(_ context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
		gotCfg = cfg
		return &genai.Client{}, nil
	}

	c, err := New(context.Background(), Options{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if gotCfg == nil || gotCfg.APIKey != "test-key" {
		t.Fatalf("expected api key to be forwarded, got %+v", gotCfg)
	}
	if gotCfg.Backend != genai.BackendGeminiAPI {
		t.Fatalf("expected BackendGeminiAPI, got %v", gotCfg.Backend)
	}
	if c.Model() != DefaultModel {
		t.Fatalf("expected default model %q, got %q", DefaultModel, c.Model())
	}
	if c.timeout != DefaultTimeout {
		t.Fatalf("expected default timeout, got %s", c.timeout)
	}
}

func TestNewClientError(t *testing.T) {
	orig := newGenaiClient
	defer func() { newGenaiClient = orig }()
	newGenaiClient = func(_ context.Context, _ *genai.ClientConfig) (*genai.Client, error) {
		return nil, errors.New("boom")
	}
	if _, err := New(context.Background(), Options{APIKey: "k"}); err == nil {
		t.Fatal("expected error from client constructor")
	}
}

func TestCompleteBuildsSingleTurnRequest(t *testing.T) {
	stub := &stubModels{resp: textResponse(&genai.Part{Text: "ゆっくりしていってくださいね"})}
	c := newWithModels(stub, "gemini-test", time.Second)

	got, err := c.Complete(context.Background(), "persona", "疲れた")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ゆっくりしていってくださいね" {
		t.Fatalf("unexpected reply %q", got)
	}
	if stub.gotModel != "gemini-test" {
		t.Fatalf("expected model gemini-test, got %q", stub.gotModel)
	}
	if len(stub.gotContents) != 1 {
		t.Fatalf("expected exactly one content, got %d", len(stub.gotContents))
	}
	if stub.gotContents[0].Role != genai.RoleUser || stub.gotContents[0].Parts[0].Text != "疲れた" {
		t.Fatalf("unexpected user content: %+v", stub.gotContents[0])
	}
	if stub.gotConfig == nil || stub.gotConfig.SystemInstruction == nil {
		t.Fatal("expected system instruction")
	}
	if stub.gotConfig.SystemInstruction.Parts[0].Text != "persona" {
		t.Fatalf("unexpected system instruction %q", stub.gotConfig.SystemInstruction.Parts[0].Text)
	}
	if !stub.gotDeadline {
		t.Fatal("expected the call to carry the transport timeout")
	}
}

func TestCompleteSkipsThoughtParts(t *testing.T) {
	stub := &stubModels{resp: textResponse(
		&genai.Part{Text: "thinking...", Thought: true},
		&genai.Part{Text: "灯ブレンド"},
		nil,
		&genai.Part{Text: "はいかがですか"},
	)}
	c := newWithModels(stub, "", 0)

	got, err := c.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "灯ブレンドはいかがですか" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestCompleteEmptyResponses(t *testing.T) {
	cases := map[string]*genai.GenerateContentResponse{
		"nil response":  nil,
		"no candidates": {},
		"nil content":   {Candidates: []*genai.Candidate{{}}},
		"no parts":      textResponse(),
		"empty text":    textResponse(&genai.Part{Text: ""}),
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			c := newWithModels(&stubModels{resp: resp}, "", 0)
			got, err := c.Complete(context.Background(), "s", "u")
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got != "" {
				t.Fatalf("expected empty reply, got %q", got)
			}
		})
	}
}

func TestCompleteAPIError(t *testing.T) {
	stub := &stubModels{err: genai.APIError{Code: 503, Status: "UNAVAILABLE", Message: "overloaded"}}
	c := newWithModels(stub, "", 0)

	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status code in error, got %v", err)
	}
}

func TestCompleteTransportError(t *testing.T) {
	transport := errors.New("connection refused")
	c := newWithModels(&stubModels{err: transport}, "", 0)

	_, err := c.Complete(context.Background(), "s", "u")
	if !errors.Is(err, transport) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestCompleteKeepsCallerDeadline(t *testing.T) {
	stub := &stubModels{resp: textResponse(&genai.Part{Text: "ok"})}
	c := newWithModels(stub, "", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := c.Complete(ctx, "s", "u"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !stub.gotDeadline {
		t.Fatal("expected caller deadline to be preserved")
	}
}
