package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetup_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "eventdesk", "test", testLogger())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Errorf("no-op shutdown вернул ошибку: %v", err)
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	// Немаршрутизируемый адрес: экспорт не выполняется, shutdown проходит чисто.
	shutdown, err := Setup(context.Background(), "http://192.0.2.1:4318", "eventdesk", "test", testLogger())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
