// pkg/privilege/privilege.go

package privilege

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/depends"
	"github.com/anvil-sh/anvil/pkg/environment"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/interaction"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Decision is the outcome of privilege negotiation for dependency
// installation.
type Decision int

const (
	// Proceed - elevation is available (or unnecessary); install the
	// missing dependencies.
	Proceed Decision = iota
	// Decline - the user chose to continue without system dependencies. A
	// later source build may fail; this is an accepted risk path, not an
	// error.
	Decline
	// Unavailable - elevation is required but cannot be obtained in this
	// environment. Manual remediation instructions have been printed.
	Unavailable
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Decline:
		return "decline"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// Prompter asks the user to confirm elevated installation. Injectable for
// tests.
type Prompter func(prompt string, defaultYes bool) (bool, error)

// Gate negotiates privileges for package installation. The probe functions
// are fields so tests can simulate machines with and without elevation.
type Gate struct {
	Env        *environment.Environment
	SkipDeps   bool
	Prompt     Prompter
	Run        depends.RunFunc
	Euid       func() int
	SudoExists func() bool
}

// NewGate builds a Gate with the real prompt and subprocess collaborators.
func NewGate(env *environment.Environment, skipDeps bool) *Gate {
	return &Gate{
		Env:        env,
		SkipDeps:   skipDeps,
		Prompt:     interaction.PromptYesNo,
		Run:        execute.Run,
		Euid:       os.Geteuid,
		SudoExists: func() bool { return execute.CommandExists("sudo") },
	}
}

// CanElevate reports whether an elevation mechanism exists at all: already
// root, or sudo present on PATH. With --skip-deps the gate pretends no
// mechanism exists.
func (g *Gate) CanElevate() bool {
	if g.SkipDeps {
		return false
	}
	return g.Euid() == 0 || g.SudoExists()
}

// hasCachedGrant reports a passwordless or cached sudo grant.
func (g *Gate) hasCachedGrant(ctx context.Context) bool {
	if g.Euid() == 0 {
		return true
	}
	_, err := g.Run(ctx, execute.Options{
		Command: "sudo",
		Args:    []string{"-n", "true"},
		Timeout: 10 * time.Second,
	})
	return err == nil
}

// Decide negotiates whether the missing dependencies may be installed with
// elevation. Every branch that cannot install prints explicit manual
// remediation before returning; failure of elevation is never silent.
func (g *Gate) Decide(rc *anvil_io.RuntimeContext, missing *depends.MissingSet) (Decision, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if missing.Empty() {
		return Proceed, nil
	}

	if g.SkipDeps {
		logger.Info("Dependency installation skipped by flag",
			zap.Strings("missing", missing.Names()))
		g.printManualInstructions(missing, "Dependency installation was skipped (--skip-deps).")
		return Decline, nil
	}

	if !g.CanElevate() {
		logger.Warn("No elevation mechanism available",
			zap.Strings("missing", missing.Names()))
		g.printManualInstructions(missing, "No way to elevate privileges was found (sudo is not installed).")
		return Unavailable, nil
	}

	if g.hasCachedGrant(rc.Ctx) {
		logger.Info("Elevation available without prompting",
			zap.Bool("root", g.Euid() == 0))
		return Proceed, nil
	}

	if !g.Env.AllowsPrompts() {
		// Fail closed: a password prompt in CI would hang or echo secrets.
		logger.Warn("Elevation requires a password but the run is non-interactive",
			zap.Bool("ci", g.Env.CI),
			zap.Bool("interactive", g.Env.Interactive),
		)
		g.printManualInstructions(missing, "Installing dependencies needs a sudo password, and this run is non-interactive.")
		return Unavailable, nil
	}

	question := fmt.Sprintf("anvil needs to install missing dependencies (%s) using sudo. Continue?",
		strings.Join(missing.Names(), ", "))
	yes, err := g.Prompt(question, true)
	if err != nil {
		g.printManualInstructions(missing, "Could not read a response to the elevation prompt.")
		return Unavailable, err
	}
	if !yes {
		logger.Info("User declined dependency installation")
		g.printManualInstructions(missing, "Continuing without system dependencies; a source build may fail.")
		return Decline, nil
	}

	return Proceed, nil
}

// printManualInstructions tells the user exactly how to remediate by hand.
func (g *Gate) printManualInstructions(missing *depends.MissingSet, reason string) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, reason)
	fmt.Fprintln(os.Stderr, "To install the missing dependencies yourself, run:")
	fmt.Fprintf(os.Stderr, "    %s\n", missing.ManualCommand())
	fmt.Fprintln(os.Stderr, "Then re-run anvil. To proceed without them, use --skip-deps.")
	fmt.Fprintln(os.Stderr)
}
