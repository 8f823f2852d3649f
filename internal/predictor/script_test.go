package predictor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "predict.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bean.jpg")
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0o644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return path
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell based invoker tests require a POSIX shell")
	}
}

func TestInvokeReturnsStdoutOnSuccess(t *testing.T) {
	requireShell(t)

	script := writeScript(t, `echo '{"flavor": 80, "aroma": 75, "body": 70, "acidity": 85}'`)
	invoker := NewScriptInvoker("sh", script, 0, zap.NewNop())

	raw, err := invoker.Invoke(context.Background(), writeImage(t))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !strings.Contains(raw, `"flavor": 80`) {
		t.Fatalf("unexpected stdout: %q", raw)
	}
}

func TestInvokePassesImagePathAsArgument(t *testing.T) {
	requireShell(t)

	script := writeScript(t, `printf '%s' "$1"`)
	invoker := NewScriptInvoker("sh", script, 0, zap.NewNop())

	image := writeImage(t)
	raw, err := invoker.Invoke(context.Background(), image)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if raw != image {
		t.Fatalf("expected argument %q, got %q", image, raw)
	}
}

func TestInvokeRejectsMissingImageBeforeSpawning(t *testing.T) {
	requireShell(t)

	script := writeScript(t, `echo should-not-run`)
	invoker := NewScriptInvoker("sh", script, 0, zap.NewNop())

	_, err := invoker.Invoke(context.Background(), filepath.Join(t.TempDir(), "absent.jpg"))
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvocationError, got %T", err)
	}
	if invErr.Kind != KindPathNotFound {
		t.Fatalf("expected path not found kind, got %s", invErr.Kind)
	}
}

func TestInvokeReportsNonzeroExitWithStderr(t *testing.T) {
	requireShell(t)

	script := writeScript(t, `echo '{"error": "model missing"}'; echo 'boom' >&2; exit 1`)
	invoker := NewScriptInvoker("sh", script, 0, zap.NewNop())

	_, err := invoker.Invoke(context.Background(), writeImage(t))
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvocationError, got %T", err)
	}
	if invErr.Kind != KindProcessFailed {
		t.Fatalf("expected process failed kind, got %s", invErr.Kind)
	}
	if invErr.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", invErr.ExitCode)
	}
	if !strings.Contains(invErr.Stderr, "boom") {
		t.Fatalf("expected stderr captured, got %q", invErr.Stderr)
	}
}

func TestInvokeHonorsTimeout(t *testing.T) {
	requireShell(t)

	script := writeScript(t, `sleep 5`)
	invoker := NewScriptInvoker("sh", script, 100*time.Millisecond, zap.NewNop())

	start := time.Now()
	_, err := invoker.Invoke(context.Background(), writeImage(t))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("invoker did not respect timeout, waited %s", elapsed)
	}
}
