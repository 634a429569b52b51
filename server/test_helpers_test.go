package server

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/tlang/compiler"
	"github.com/chazu/tlang/pkg/bytecode"
	"github.com/chazu/tlang/store"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

func bg() context.Context {
	return context.Background()
}

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPool starts a pool that is stopped when the test ends.
func newTestPool(t *testing.T, n int, opts ...bytecode.Option) *WorkerPool {
	t.Helper()
	p := NewWorkerPool(n, opts...)
	t.Cleanup(p.Stop)
	return p
}

// newTestExecService creates an ExecService with two workers and an
// in-memory chunk store.
func newTestExecService(t *testing.T) *ExecService {
	t.Helper()
	chunks, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { chunks.Close() })
	return NewExecService(newTestPool(t, 2), chunks, quietLogger())
}

func assemble(t *testing.T, source string) *bytecode.Chunk {
	t.Helper()
	c, err := compiler.Assemble(source)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return c
}

func encode(t *testing.T, c *bytecode.Chunk) []byte {
	t.Helper()
	data, err := bytecode.MarshalChunk(c)
	if err != nil {
		t.Fatalf("MarshalChunk: %v", err)
	}
	return data
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Errorf("code = %s, want %s (%v)", got, want, err)
	}
}
