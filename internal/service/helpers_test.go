package service_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ocgrimoire/grimoire-api/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestPool(t *testing.T) *worker.Pool {
	t.Helper()
	pool := worker.NewPool(worker.Config{WorkerCount: 2}, testLogger())
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool
}
