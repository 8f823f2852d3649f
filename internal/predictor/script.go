package predictor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/example/coffee-scan/internal/logging"
)

// ScriptInvoker runs the scoring script as a child process:
//
//	<interpreter> <script> <absoluteImagePath>
//
// Standard output and standard error are captured separately and nothing is
// acted upon before the process exits. A nonzero Timeout bounds the run; the
// reference behavior waited indefinitely, so the timeout is a hardening
// addition, disabled when zero.
type ScriptInvoker struct {
	Interpreter string
	Script      string
	Timeout     time.Duration

	logger *zap.Logger
}

// NewScriptInvoker builds an invoker for the given interpreter and script.
func NewScriptInvoker(interpreter, script string, timeout time.Duration, logger *zap.Logger) *ScriptInvoker {
	return &ScriptInvoker{
		Interpreter: interpreter,
		Script:      script,
		Timeout:     timeout,
		logger:      logger.Named("predictor"),
	}
}

// Invoke runs the predictor against imagePath and returns its accumulated
// standard output on a zero exit code.
func (s *ScriptInvoker) Invoke(ctx context.Context, imagePath string) (string, error) {
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return "", &InvocationError{Kind: KindPathNotFound, Path: imagePath, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", &InvocationError{Kind: KindPathNotFound, Path: abs, Err: err}
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.Interpreter, s.Script, abs)
	cmd.Env = scriptEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		invErr := &InvocationError{
			Kind:     KindProcessFailed,
			Path:     abs,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
		s.logger.Error("predictor process failed",
			zap.Error(logging.NewOperationError("predictor.invoke", "", invErr)),
			zap.Int("exit_code", exitCode),
			zap.Duration("elapsed", elapsed),
			zap.String("image_path", abs))
		return "", invErr
	}

	s.logger.Info("predictor process completed",
		zap.Duration("elapsed", elapsed),
		zap.String("image_path", abs))
	return stdout.String(), nil
}

// scriptEnv builds an isolated environment for the child process, keeping
// only the variables the interpreter needs to locate itself and its modules.
func scriptEnv() []string {
	env := make([]string, 0, 4)
	for _, key := range []string{"PATH", "HOME", "PYTHONPATH", "VIRTUAL_ENV"} {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	return env
}
