// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stepwise/internal/observability"
)

// resetForTest restores package state shared between command runs.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	original, originalStore := sessionOpener, storeOpener
	t.Cleanup(func() {
		sessionOpener, storeOpener = original, originalStore
		observability.Sync()
		observability.ResetForTest()
	})
}

// writeConfig writes a config file that keeps every output inside dir.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := "logger:\n" +
		"  level: debug\n" +
		"  log_file: " + filepath.Join(dir, "automation_log.json") + "\n" +
		"report:\n" +
		"  summary_file: " + filepath.Join(dir, "functional_log.txt") + "\n" +
		extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// execute runs the command tree with args and returns stdout and stderr.
func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// lockedBuffer is a bytes.Buffer safe for one writer and one reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
