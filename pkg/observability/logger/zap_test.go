package logger

import (
	"context"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := ParseLogLevel(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseLogLevel(%q): expected error, got none", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLogLevel(%q): unexpected error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseLogFormat(t *testing.T) {
	if got, err := ParseLogFormat("console"); err != nil || got != TextFormat {
		t.Errorf("ParseLogFormat(console) = %q, %v", got, err)
	}
	if got, err := ParseLogFormat("json"); err != nil || got != JSONFormat {
		t.Errorf("ParseLogFormat(json) = %q, %v", got, err)
	}
	if _, err := ParseLogFormat("xml"); err == nil {
		t.Error("ParseLogFormat(xml): expected error, got none")
	}
}

func TestNewZapLoggerDefaults(t *testing.T) {
	log, err := NewZapLogger(DefaultConfig())
	if err != nil {
		t.Fatalf("NewZapLogger failed: %v", err)
	}

	child := log.With("component", "test")
	if child == nil {
		t.Fatal("With returned nil logger")
	}
	child.Info("structured message", "key", "value")
}

func TestWithContextCycleID(t *testing.T) {
	log, err := NewZapLogger(Config{Level: DebugLevel, Format: TextFormat})
	if err != nil {
		t.Fatalf("NewZapLogger failed: %v", err)
	}

	ctx := ContextWithCycleID(context.Background(), "cycle-42")
	child := log.WithContext(ctx)
	if child == nil {
		t.Fatal("WithContext returned nil logger")
	}
	child.Debug("cycle scoped message")

	// Context without a cycle ID returns the logger unchanged.
	if got := log.WithContext(context.Background()); got != Logger(log) {
		t.Error("WithContext without cycle ID should return the same logger")
	}
}
