package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	reqcontext "github.com/raglab/raglab/internal/pkg/context"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug text", "debug", "text"},
		{"info json", "info", "json"},
		{"warn text", "warn", "text"},
		{"error json", "error", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level, tt.format)
			if log == nil || log.Logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWithContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	log := &Logger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	ctx := reqcontext.WithRequestID(context.Background(), "req-42")
	log.WithContext(ctx).Info("query received")

	output := buf.String()
	if !strings.Contains(output, `"request_id":"req-42"`) {
		t.Errorf("output missing request_id, got: %s", output)
	}
}

func TestWithContext_NoRequestID(t *testing.T) {
	log := New("info", "text")
	if l := log.WithContext(context.Background()); l != log {
		t.Error("WithContext without a request ID should return the same logger")
	}
}

func TestWithTechnique(t *testing.T) {
	var buf bytes.Buffer
	log := &Logger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	log.WithTechnique("hyde").Info("run complete")

	output := buf.String()
	if !strings.Contains(output, `"technique":"hyde"`) {
		t.Errorf("output missing technique field, got: %s", output)
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := &Logger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	log.WithError(errors.New("qdrant unreachable")).Warn("search degraded")

	output := buf.String()
	if !strings.Contains(output, `"error":"qdrant unreachable"`) {
		t.Errorf("output missing error field, got: %s", output)
	}
}

func TestDefault(t *testing.T) {
	if log := Default(); log == nil {
		t.Fatal("Default() returned nil")
	}
}
