// Package testutil holds helpers shared by the package tests: a context
// carrying a test logger, a thread-safe capture buffer and a builder for
// synthetic executor logs. It depends on nothing but ctxlog so any package
// can use it from its internal tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/etp/internal/ctxlog"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a context carrying a debug logger. Logs are dumped with
// t.Logf at cleanup when ETP_TEST_LOGS=true and dropped otherwise.
func Context(t *testing.T) context.Context {
	t.Helper()

	var w io.Writer = io.Discard
	if os.Getenv("ETP_TEST_LOGS") == "true" {
		buf := &SafeBuffer{}
		w = buf
		t.Cleanup(func() {
			t.Logf("--- Log output for %s ---\n%s", t.Name(), buf.String())
		})
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns the full path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
