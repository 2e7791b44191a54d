// pkg/rollback/rollback.go

package rollback

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/state"
	"github.com/hashicorp/go-multierror"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// RunFunc is the subprocess entry point, injectable for tests.
type RunFunc func(ctx context.Context, opts execute.Options) (string, error)

// Manager reverts partially-applied installation state after a fatal
// failure. It removes only what the run's state says this run created, in
// strict reverse order of installation, and never raises: every removal is
// best-effort and logged.
type Manager struct {
	Run    RunFunc
	Remove func(path string) error
}

// NewManager wires the real collaborators.
func NewManager() *Manager {
	return &Manager{
		Run:    execute.Run,
		Remove: os.Remove,
	}
}

// Summary is the human-readable account of what was reverted.
type Summary struct {
	Reason           string
	ServiceReverted  bool
	ArtifactsRemoved []string
	Failures         []string
	ManualSteps      []string
}

// Rollback reverts in reverse order: service before artifacts, the
// last-installed artifact before the first. Pre-existing installations the
// run detected but did not create are untouched because they were never
// entered into the state.
func (m *Manager) Rollback(rc *anvil_io.RuntimeContext, st *state.InstallationState, reason string) *Summary {
	logger := otelzap.Ctx(rc.Ctx)
	logger.Warn("Rolling back partially-applied installation",
		zap.String("reason", reason),
		zap.Int("artifacts", len(st.Artifacts)),
		zap.Bool("service_installed", st.ServiceInstalled),
	)

	summary := &Summary{Reason: reason}
	var errs *multierror.Error

	if st.ServiceInstalled {
		if err := m.uninstallService(rc, st); err != nil {
			errs = multierror.Append(errs, err)
			summary.Failures = append(summary.Failures,
				fmt.Sprintf("agent service could not be removed: %v", err))
			summary.ManualSteps = append(summary.ManualSteps,
				"Remove the agent service manually: forge agent uninstall")
		} else {
			summary.ServiceReverted = true
		}
	}

	for i := len(st.Artifacts) - 1; i >= 0; i-- {
		artifact := st.Artifacts[i]
		logger.Info("Removing installed artifact",
			zap.String("binary", artifact.BinaryName),
			zap.String("path", artifact.InstallPath),
		)
		if err := m.Remove(artifact.InstallPath); err != nil && !os.IsNotExist(err) {
			errs = multierror.Append(errs, err)
			summary.Failures = append(summary.Failures,
				fmt.Sprintf("%s could not be removed: %v", artifact.InstallPath, err))
			summary.ManualSteps = append(summary.ManualSteps,
				"Delete manually: rm "+artifact.InstallPath)
		} else {
			summary.ArtifactsRemoved = append(summary.ArtifactsRemoved, artifact.InstallPath)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		logger.Warn("Rollback completed with failures", zap.Error(err))
	} else {
		logger.Info("Rollback complete")
	}

	m.printSummary(summary)
	return summary
}

// uninstallService asks the still-present binary to deregister its agent.
// If the binary is already gone there is nothing to call, and the service
// removal becomes a manual step.
func (m *Manager) uninstallService(rc *anvil_io.RuntimeContext, st *state.InstallationState) error {
	var binPath string
	for _, a := range st.Artifacts {
		if a.BinaryName == "forge" {
			binPath = a.InstallPath
		}
	}
	if binPath == "" {
		return fmt.Errorf("forge binary not recorded in run state")
	}
	if _, err := os.Stat(binPath); err != nil {
		return fmt.Errorf("forge binary no longer present at %s", binPath)
	}

	_, err := m.Run(rc.Ctx, execute.Options{
		Command: binPath,
		Args:    []string{"agent", "uninstall"},
		Capture: true,
		Timeout: 2 * time.Minute,
	})
	return err
}

func (m *Manager) printSummary(s *Summary) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Installation failed and was rolled back:", s.Reason)
	if s.ServiceReverted {
		fmt.Fprintln(os.Stderr, "  - agent service removed")
	}
	for _, p := range s.ArtifactsRemoved {
		fmt.Fprintln(os.Stderr, "  - removed", p)
	}
	for _, f := range s.Failures {
		fmt.Fprintln(os.Stderr, "  ! ", f)
	}
	if len(s.ManualSteps) > 0 {
		fmt.Fprintln(os.Stderr, "Manual steps remaining:")
		for _, step := range s.ManualSteps {
			fmt.Fprintln(os.Stderr, "  *", step)
		}
	}
	fmt.Fprintln(os.Stderr)
}
