package logging

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/c0deZ3R0/go-conflict-kit/errors"
)

func TestLogger(t *testing.T) {
	configs := []Config{
		{Level: "debug", Format: "text", Environment: EnvDevelopment, AddSource: true},
		{Level: "info", Format: "json", Environment: EnvProduction, AddSource: false},
	}

	for _, config := range configs {
		t.Run("Environment_"+config.Environment, func(t *testing.T) {
			logger := NewLogger(config)

			logger.Debug("Debug message", slog.String("key", "value"))
			logger.Info("Info message", slog.Int("count", 42))
			logger.Warn("Warning message", slog.Bool("enabled", true))

			testErr := errors.New(errors.OpDetect, fmt.Errorf("storage error"))
			logger.LogError(context.Background(), testErr, "Operation failed")

			childLogger := logger.WithComponent(Component("test"))
			childLogger.Info("Child logger message")

			domainLogger := logger.WithDomain("shop-1")
			domainLogger.Info("Domain scoped message")

			err := logger.LogOperation(
				context.Background(),
				Operation("test_op"),
				Component("test_component"),
				func() error {
					time.Sleep(10 * time.Millisecond)
					return nil
				},
			)
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestLogOperationPropagatesError(t *testing.T) {
	logger := NewLogger(Config{Level: "error", Format: "text", Environment: EnvTest})

	wantErr := fmt.Errorf("boom")
	err := logger.LogOperation(context.Background(), Operation("failing_op"), Component("test"), func() error {
		return wantErr
	})
	if err != wantErr {
		t.Errorf("expected the callback error back, got %v", err)
	}
}

func TestConflictErrorValuer(t *testing.T) {
	ce := &errors.ConflictError{
		Op:        errors.OpResolve,
		Component: "workflow",
		Kind:      errors.KindAlreadyFinalized,
		Err:       fmt.Errorf("conflict abc already resolved"),
		Metadata:  map[string]interface{}{"conflict_id": "abc"},
	}

	value := ConflictErrorValuer{ConflictError: ce}.LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("expected a group value, got %v", value.Kind())
	}

	attrs := map[string]slog.Value{}
	for _, attr := range value.Group() {
		attrs[attr.Key] = attr.Value
	}
	if attrs["operation"].String() != "resolve" {
		t.Errorf("operation: got %q", attrs["operation"].String())
	}
	if attrs["kind"].String() != string(errors.KindAlreadyFinalized) {
		t.Errorf("kind: got %q", attrs["kind"].String())
	}
	if _, ok := attrs["metadata"]; !ok {
		t.Errorf("metadata group missing")
	}
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_ADD_SOURCE", "true")

	config := GetConfigFromEnv()
	if config.Level != "debug" {
		t.Errorf("level: got %q", config.Level)
	}
	if config.Format != "text" {
		t.Errorf("format: got %q", config.Format)
	}
	if config.Environment != EnvTest {
		t.Errorf("environment: got %q", config.Environment)
	}
	if !config.AddSource {
		t.Errorf("add source: got false")
	}
}
