package web

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jxucoder/tomoru/model"
	"github.com/jxucoder/tomoru/site"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	s, err := site.Default()
	if err != nil {
		t.Fatalf("site.Default: %v", err)
	}
	r, err := NewRenderer(s)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestRenderPage(t *testing.T) {
	r := testRenderer(t)

	var buf bytes.Buffer
	if err := r.Render(&buf, "abcd1234", map[string]bool{"menu": true}, model.ChatTurn{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`data-visit="abcd1234"`,
		`data-block="hero" data-visible="false"`,
		`data-block="menu" data-visible="true"`,
		`data-block="footer" data-visible="false"`,
		"灯ブレンド",
		"¥550",
		"いらっしゃいませ。",
		"遊佐町エルパ内",
		"今の気持ちを書いてみて...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
	if !strings.Contains(out, `id="chat-reply" hidden`) {
		t.Error("reply bubble should be hidden before any exchange")
	}
}

func TestRenderTurnIsEscaped(t *testing.T) {
	r := testRenderer(t)

	turn := model.ChatTurn{
		UserText:      "<script>alert(1)</script>",
		AssistantText: "ようこそ",
		Outcome:       model.OutcomeReply,
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, "v", nil, turn); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Fatal("visitor text must be escaped")
	}
	if !strings.Contains(out, "ようこそ") {
		t.Fatal("expected assistant text in page")
	}
}

func TestRenderInputMaxLength(t *testing.T) {
	var buf bytes.Buffer
	if err := testRenderer(t).Render(&buf, "v", nil, model.ChatTurn{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), `<input type="text" maxlength="1000" name="text"`) {
		t.Fatal("expected chat input limited to 1000 characters by default")
	}

	s, _ := site.Default()
	for _, tt := range []struct {
		n    int
		want string
	}{
		{200, `<input type="text" maxlength="200" name="text"`},
		{-1, `<input type="text" name="text"`},
	} {
		r, err := NewRenderer(s, WithMaxInput(tt.n))
		if err != nil {
			t.Fatalf("NewRenderer: %v", err)
		}
		buf.Reset()
		if err := r.Render(&buf, "v", nil, model.ChatTurn{}); err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("WithMaxInput(%d): page missing %q", tt.n, tt.want)
		}
	}
}

func TestRenderPendingDisablesInput(t *testing.T) {
	r := testRenderer(t)

	var buf bytes.Buffer
	turn := model.ChatTurn{UserText: "hi", Pending: true}
	if err := r.Render(&buf, "v", nil, turn); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), `name="text" placeholder="今の気持ちを書いてみて..." disabled`) {
		t.Fatal("expected disabled input while pending")
	}
}

func TestStatic(t *testing.T) {
	srv := httptest.NewServer(http.StripPrefix("/static/", Static()))
	defer srv.Close()

	for _, path := range []string{"/static/tomoru.js", "/static/tomoru.css"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || len(body) == 0 {
			t.Fatalf("%s: status %d, %d bytes", path, resp.StatusCode, len(body))
		}
	}

	resp, err := srv.Client().Get(srv.URL + "/static/page.html")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("templates must not be served, got %d", resp.StatusCode)
	}
}
