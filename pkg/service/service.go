// pkg/service/service.go

package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anvil-sh/anvil/pkg/anvil_err"
	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/state"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// RunFunc is the subprocess entry point, injectable for tests.
type RunFunc func(ctx context.Context, opts execute.Options) (string, error)

// Configurator registers the Forge agent service and synchronizes client
// integrations through the installed binary's own subcommands. Both steps
// are best-effort and independently failing: by the time they run the
// artifact installation has already succeeded, and the user must not lose
// that success to a secondary convenience step.
type Configurator struct {
	Run RunFunc
}

// NewConfigurator wires the real subprocess runner.
func NewConfigurator() *Configurator {
	return &Configurator{Run: execute.Run}
}

// Result is the outcome of one best-effort configuration step.
type Result struct {
	Attempted bool
	Succeeded bool
	Skipped   bool
	Warning   string
}

// InstallAgent registers and starts the forged agent service. Idempotent:
// an agent that already reports running is left alone. The binary handles
// its own privilege model for service registration, which may differ from
// package-installation privilege. Never returns an error.
func (c *Configurator) InstallAgent(rc *anvil_io.RuntimeContext, artifact state.InstalledArtifact, st *state.InstallationState) Result {
	logger := otelzap.Ctx(rc.Ctx)

	// Idempotence check before any mutation.
	out, err := c.Run(rc.Ctx, execute.Options{
		Command: artifact.InstallPath,
		Args:    []string{"agent", "status"},
		Capture: true,
		Timeout: 30 * time.Second,
	})
	if err == nil {
		logger.Info("Agent service already installed and running",
			zap.String("binary", artifact.BinaryName))
		return Result{Attempted: true, Succeeded: true, Skipped: true}
	}
	logger.Debug("Agent not yet running, installing",
		zap.String("status_output", anvil_err.Truncate(out, 200)))

	out, err = c.Run(rc.Ctx, execute.Options{
		Command: artifact.InstallPath,
		Args:    []string{"agent", "install"},
		Capture: true,
		Timeout: 2 * time.Minute,
	})
	if err != nil {
		warning := fmt.Sprintf("Agent service installation failed: %s",
			anvil_err.ExtractSummary(out, 2))
		logger.Warn("Agent service installation failed; the CLI works without it",
			zap.Error(err))
		printManualHint(warning, artifact.InstallPath+" agent install")
		return Result{Attempted: true, Warning: warning}
	}

	st.ServiceInstalled = true
	logger.Info("Agent service installed and started")
	return Result{Attempted: true, Succeeded: true}
}

// ConfigureClients synchronizes editor/client integrations. Independent of
// agent installation: a failure here neither aborts nor is aborted by the
// agent step. Never returns an error.
func (c *Configurator) ConfigureClients(rc *anvil_io.RuntimeContext, artifact state.InstalledArtifact) Result {
	logger := otelzap.Ctx(rc.Ctx)

	out, err := c.Run(rc.Ctx, execute.Options{
		Command: artifact.InstallPath,
		Args:    []string{"client", "sync"},
		Capture: true,
		Timeout: 2 * time.Minute,
	})
	if err != nil {
		warning := fmt.Sprintf("Client integration sync failed: %s",
			anvil_err.ExtractSummary(out, 2))
		logger.Warn("Client integration sync failed; integrations can be configured later",
			zap.Error(err))
		printManualHint(warning, artifact.InstallPath+" client sync")
		return Result{Attempted: true, Warning: warning}
	}

	logger.Info("Client integrations synchronized")
	return Result{Attempted: true, Succeeded: true}
}

func printManualHint(warning, command string) {
	fmt.Fprintf(os.Stderr, "\nWarning: %s\nTo retry manually, run:\n    %s\n\n", warning, command)
}
