package cli

import (
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"
)

func TestGracefulShutdownRunsCleanupOnSignal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(logger, 5*time.Second, func() {
		close(cleaned)
	})

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("send SIGTERM: %v", err)
	}

	select {
	case <-cleaned:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup not invoked after SIGTERM")
	}

	waited := make(chan struct{})
	go func() {
		WaitForShutdown(ctx, done)
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(10 * time.Second):
		t.Fatal("WaitForShutdown did not return")
	}
}
