package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voltlock/voltlock/pkg/config"
	"github.com/voltlock/voltlock/pkg/device"
	"github.com/voltlock/voltlock/pkg/observability/logger"
)

type cliTestLogger struct{}

func (l *cliTestLogger) Debug(string, ...any) {}
func (l *cliTestLogger) Info(string, ...any)  {}
func (l *cliTestLogger) Warn(string, ...any)  {}
func (l *cliTestLogger) Error(string, ...any) {}
func (l *cliTestLogger) With(...any) logger.Logger {
	return l
}
func (l *cliTestLogger) WithContext(context.Context) logger.Logger {
	return l
}

func TestNewRootCommandSubcommands(t *testing.T) {
	root := NewRootCommand(Options{})

	if root.Use != "voltlock" {
		t.Errorf("unexpected root use %q", root.Use)
	}

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "version"} {
		if !names[want] {
			t.Errorf("missing %q subcommand", want)
		}
	}

	if root.PersistentFlags().Lookup("config-file") == nil {
		t.Error("missing config-file persistent flag")
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand(Options{Name: "voltlock"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out.String(), "voltlock@") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestRunServeWiresAndStops(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Device.PollInterval = 10 * time.Millisecond
	cfg.Management.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, &cfg, &cliTestLogger{}, func(dc config.DeviceConfig, log logger.Logger) (device.Transport, error) {
			return device.NewSimulatedTransport(dc.Serial), nil
		})
	}()

	time.Sleep(80 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not stop after cancellation")
	}
}
