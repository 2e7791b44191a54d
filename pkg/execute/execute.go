// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/anvil-sh/anvil/pkg/anvil_err"
	"github.com/anvil-sh/anvil/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options configures a single subprocess invocation. Shell execution is
// deliberately not supported; arguments are always passed as a vector.
type Options struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the inherited environment
	Capture bool
	Timeout time.Duration
	Retries int
	Delay   time.Duration
	DryRun  bool
	Logger  *zap.Logger
}

const defaultTimeout = 5 * time.Minute

// Run executes a command with structured logging, a context timeout, and a
// bounded synchronous retry loop. Combined output is always returned so
// callers can surface collaborator output in failure messages.
func Run(ctx context.Context, opts Options) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runCtx, span := telemetry.Start(runCtx, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)

	cmdStr := opts.Command + " " + strings.Join(opts.Args, " ")

	if opts.DryRun {
		logger.Info("Dry run mode - command not executed", zap.String("command", cmdStr))
		return "", nil
	}

	logger.Debug("Starting execution", zap.String("command", cmdStr))

	attempts := max(1, opts.Retries)
	var output string
	var err error

	for i := 1; i <= attempts; i++ {
		cmd := exec.CommandContext(runCtx, opts.Command, opts.Args...)
		if opts.Dir != "" {
			cmd.Dir = opts.Dir
		}
		if len(opts.Env) > 0 {
			cmd.Env = append(cmd.Environ(), opts.Env...)
		}

		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf

		err = cmd.Run()
		output = buf.String()

		if err == nil {
			logger.Debug("Execution succeeded", zap.String("command", cmdStr))
			break
		}

		span.RecordError(err)
		logger.Warn("Execution failed",
			zap.Int("attempt", i),
			zap.String("command", cmdStr),
			zap.String("summary", anvil_err.ExtractSummary(output, 2)),
			zap.Error(err),
		)

		if i < attempts {
			time.Sleep(opts.Delay)
		}
	}

	if err != nil {
		return output, cerr.Wrapf(err, "command %q failed after %d attempt(s)", opts.Command, attempts)
	}

	if opts.Capture {
		return output, nil
	}
	return "", nil
}

// RunSimple executes a command with minimal options.
func RunSimple(ctx context.Context, cmd string, args ...string) error {
	_, err := Run(ctx, Options{Command: cmd, Args: args})
	return err
}

// CommandExists reports whether a command resolves on PATH.
func CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
