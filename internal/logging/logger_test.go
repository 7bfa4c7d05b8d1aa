// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"DEBUG", zerolog.DebugLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// The tests below reconfigure the global logger and must not run in parallel.

func TestInitAndCtx(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(Config{Level: "info", Output: &bytes.Buffer{}})

	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithNewCorrelationID(ctx)
	Ctx(ctx).Info().Msg("handled")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Errorf("expected request_id in output, got: %s", out)
	}
	if !strings.Contains(out, `"correlation_id"`) {
		t.Errorf("expected correlation_id in output, got: %s", out)
	}
	if !strings.Contains(out, `"message":"handled"`) {
		t.Errorf("expected message in output, got: %s", out)
	}
}

func TestInitDefaults(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Output: &buf})
	defer Init(Config{Level: "info", Output: &bytes.Buffer{}})

	Debug().Msg("hidden")
	Info().Str("list_id", "7").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("zero Config should log at info, got: %s", out)
	}
	if !strings.Contains(out, `"service":"listsync"`) || !strings.Contains(out, `"time":`) {
		t.Errorf("expected service and time fields, got: %s", out)
	}
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Errorf("CorrelationIDFromContext(empty) = %q, want empty", got)
	}

	first := CorrelationIDFromContext(ContextWithNewCorrelationID(context.Background()))
	second := CorrelationIDFromContext(ContextWithNewCorrelationID(context.Background()))
	if len(first) != 8 || len(second) != 8 {
		t.Errorf("correlation ids %q and %q, want 8 characters", first, second)
	}
	if first == second {
		t.Errorf("correlation ids should differ, both %q", first)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(Config{Level: "info", Output: &bytes.Buffer{}})

	l := WithComponent("realtime")
	l.Warn().Msg("dropped frame")

	if !strings.Contains(buf.String(), `"component":"realtime"`) {
		t.Errorf("expected component field, got: %s", buf.String())
	}
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(Config{Level: "info", Output: &bytes.Buffer{}})

	logger := NewSlogLogger().WithGroup("supervisor")
	logger.Info("service started", slog.String("service", "http"), slog.Int("attempt", 2))
	logger.Debug("filtered out")

	out := buf.String()
	if !strings.Contains(out, `"supervisor.service":"http"`) {
		t.Errorf("expected grouped string attr, got: %s", out)
	}
	if !strings.Contains(out, `"supervisor.attempt":2`) {
		t.Errorf("expected grouped int attr, got: %s", out)
	}
	if strings.Contains(out, "filtered out") {
		t.Errorf("debug record should be filtered at info level, got: %s", out)
	}
}
