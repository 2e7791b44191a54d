// pkg/depends/depends.go

package depends

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/platform"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Checker answers the three satisfaction probes. Split out so tests can
// simulate machines.
type Checker interface {
	CommandExists(name string) bool
	PackageInstalled(ctx context.Context, pm platform.PackageManager, pkg string) bool
	HeaderExists(path string) bool
}

// SystemChecker probes the real machine.
type SystemChecker struct{}

func (SystemChecker) CommandExists(name string) bool {
	return execute.CommandExists(name)
}

func (SystemChecker) PackageInstalled(ctx context.Context, pm platform.PackageManager, pkg string) bool {
	cmd, args := queryArgs(pm, pkg)
	if cmd == "" {
		return false
	}
	_, err := execute.Run(ctx, execute.Options{
		Command: cmd,
		Args:    args,
		Capture: true,
		Timeout: 30 * time.Second,
	})
	return err == nil
}

func (SystemChecker) HeaderExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MissingSet is the subset of requirements not satisfied on this machine,
// plus the package manager that remediates them.
type MissingSet struct {
	Manager      platform.PackageManager
	Requirements []Requirement
}

// Empty reports whether every requirement was satisfied. An empty missing-set
// short-circuits all package-manager invocation and privilege negotiation.
func (m *MissingSet) Empty() bool {
	return len(m.Requirements) == 0
}

// Names lists the missing requirements for prompts and logs.
func (m *MissingSet) Names() []string {
	names := make([]string, 0, len(m.Requirements))
	for _, r := range m.Requirements {
		names = append(names, r.Name)
	}
	return names
}

// Packages lists the remediation packages, deduplicated, in table order.
func (m *MissingSet) Packages() []string {
	seen := make(map[string]bool)
	var packages []string
	for _, r := range m.Requirements {
		pkg, ok := r.Packages[m.Manager]
		if !ok || seen[pkg] {
			continue
		}
		seen[pkg] = true
		packages = append(packages, pkg)
	}
	return packages
}

// ManualCommand renders the exact command a user would run by hand to
// remediate the missing-set. Printed whenever anvil cannot (or may not)
// install the packages itself.
func (m *MissingSet) ManualCommand() string {
	packages := m.Packages()
	if len(packages) == 0 {
		return ""
	}
	cmd, args := installArgs(m.Manager, packages)
	prefix := ""
	if m.Manager != platform.Brew && os.Geteuid() != 0 {
		prefix = "sudo "
	}
	return prefix + cmd + " " + strings.Join(args, " ")
}

// Resolve computes the missing-set for the detected platform. Read-only:
// repeated runs with no intervening state change produce identical results
// and no side effects.
func Resolve(rc *anvil_io.RuntimeContext, p *platform.Platform, checker Checker) (*MissingSet, error) {
	logger := otelzap.Ctx(rc.Ctx)

	pm, ok := p.Manager()
	if !ok {
		return nil, cerr.Newf("no package manager mapping for platform %q", p.OSFamily)
	}

	missing := &MissingSet{Manager: pm}

	for _, req := range requirements {
		if satisfied(rc.Ctx, checker, pm, req) {
			logger.Debug("Requirement satisfied", zap.String("requirement", req.Name))
			continue
		}
		if _, applies := req.Packages[pm]; !applies && len(req.Commands) == 0 {
			continue
		}
		logger.Info("Requirement missing", zap.String("requirement", req.Name))
		missing.Requirements = append(missing.Requirements, req)
	}

	logger.Info("Dependency resolution complete",
		zap.String("package_manager", string(pm)),
		zap.Strings("missing", missing.Names()),
	)
	return missing, nil
}

// satisfied runs the check ladder: command on PATH, then package database,
// then header existence. A requirement is either fully satisfied or missing.
func satisfied(ctx context.Context, checker Checker, pm platform.PackageManager, req Requirement) bool {
	for _, cmd := range req.Commands {
		if checker.CommandExists(cmd) {
			return true
		}
	}
	if pkg, ok := req.Packages[pm]; ok {
		if checker.PackageInstalled(ctx, pm, pkg) {
			return true
		}
	}
	for _, header := range req.Headers {
		if checker.HeaderExists(header) {
			return true
		}
	}
	return false
}

// RunFunc is the subprocess entry point, injectable for tests.
type RunFunc func(ctx context.Context, opts execute.Options) (string, error)

// Install remediates the missing-set in a single package-manager
// transaction, prefixed with sudo when not running as root (brew refuses
// root and is never elevated).
func Install(rc *anvil_io.RuntimeContext, missing *MissingSet, dryRun bool, run RunFunc) error {
	logger := otelzap.Ctx(rc.Ctx)

	if missing.Empty() {
		return nil
	}
	if run == nil {
		run = execute.Run
	}

	packages := missing.Packages()
	cmd, args := installArgs(missing.Manager, packages)

	if missing.Manager != platform.Brew && os.Geteuid() != 0 {
		args = append([]string{cmd}, args...)
		cmd = "sudo"
	}

	logger.Info("Installing missing dependencies",
		zap.String("package_manager", string(missing.Manager)),
		zap.Strings("packages", packages),
		zap.Bool("dry_run", dryRun),
	)

	out, err := run(rc.Ctx, execute.Options{
		Command: cmd,
		Args:    args,
		Capture: true,
		Timeout: 10 * time.Minute,
		DryRun:  dryRun,
	})
	if err != nil {
		return cerr.Wrapf(err, "package installation failed: %s",
			strings.TrimSpace(out))
	}

	logger.Info("Dependencies installed", zap.Strings("packages", packages))
	return nil
}
