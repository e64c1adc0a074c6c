package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jxucoder/tomoru/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newHandler("text", &buf, nil)).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("expected text output, got %q", buf.String())
	}

	buf.Reset()
	slog.New(newHandler("json", &buf, nil)).Info("hello", "k", "v")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if rec["k"] != "v" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestInitWritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "tomoru.log")
	logger, err := Init(&config.Config{LogFile: path, LogLevel: "debug", LogFormat: "json"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	logger.Debug("written")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "written") {
		t.Fatalf("expected record in log file, got %q", data)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("brew"))
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/visits/abc/chat", strings.NewReader(`{"text":"秘密"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["path"] != "/api/visits/abc/chat" || rec["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected record %v", rec)
	}
	if rec["bytes"] != float64(4) {
		t.Fatalf("expected 4 bytes, got %v", rec["bytes"])
	}
	if strings.Contains(buf.String(), "秘密") {
		t.Fatal("request body must not be logged")
	}
}
