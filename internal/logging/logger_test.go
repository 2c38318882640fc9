package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext_Fields(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = WithUserID(ctx, "user-7")

	WithFields(ctx, "table", "users").Info("import started")

	out := buf.String()
	for _, want := range []string{"request_id=req-42", "user_id=user-7", "table=users"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %s", out, want)
		}
	}
}

func TestWithUserID_Empty(t *testing.T) {
	ctx := WithUserID(context.Background(), "")
	if got := UserID(ctx); got != "" {
		t.Errorf("UserID() = %q, want empty", got)
	}
}
