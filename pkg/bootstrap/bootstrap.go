// pkg/bootstrap/bootstrap.go

package bootstrap

import (
	"fmt"
	"strings"

	"github.com/anvil-sh/anvil/pkg/acquire"
	"github.com/anvil-sh/anvil/pkg/anvil_err"
	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/depends"
	"github.com/anvil-sh/anvil/pkg/diagnostic"
	"github.com/anvil-sh/anvil/pkg/environment"
	"github.com/anvil-sh/anvil/pkg/inspect"
	"github.com/anvil-sh/anvil/pkg/interaction"
	"github.com/anvil-sh/anvil/pkg/platform"
	"github.com/anvil-sh/anvil/pkg/privilege"
	"github.com/anvil-sh/anvil/pkg/release"
	"github.com/anvil-sh/anvil/pkg/rollback"
	"github.com/anvil-sh/anvil/pkg/service"
	"github.com/anvil-sh/anvil/pkg/state"
	"github.com/anvil-sh/anvil/pkg/verify"
	goversion "github.com/hashicorp/go-version"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Options are the recognized install flags.
type Options struct {
	Force    bool
	SkipDeps bool
	DryRun   bool
}

// Orchestrator sequences the installation: detect platform, decide whether
// to run at all, resolve dependencies, negotiate privileges, acquire
// artifacts, configure services, and roll back on fatal failure. All
// collaborators are injectable; production wiring comes from New.
type Orchestrator struct {
	Env          *environment.Environment
	Checker      depends.Checker
	Acquirer     *acquire.Acquirer
	Configurator *service.Configurator
	Rollbacker   *rollback.Manager
	Index        release.Index
	Prober       verify.Prober
	Prompt       privilege.Prompter
	DepsRun      depends.RunFunc
	// Gate, when set, replaces the gate built per-run; tests use it to
	// simulate machines with and without elevation.
	Gate *privilege.Gate

	phase Phase
}

// New wires an orchestrator with the real collaborators.
func New(env *environment.Environment) *Orchestrator {
	return &Orchestrator{
		Env:          env,
		Checker:      depends.SystemChecker{},
		Acquirer:     acquire.New(env.InstallDir),
		Configurator: service.NewConfigurator(),
		Rollbacker:   rollback.NewManager(),
		Index:        release.NewGitHubIndex(),
		Prober:       verify.ExecProber{},
		Prompt:       interaction.PromptYesNo,
		phase:        PhaseIdle,
	}
}

func (o *Orchestrator) transition(rc *anvil_io.RuntimeContext, next Phase) {
	otelzap.Ctx(rc.Ctx).Debug("Phase transition",
		zap.Stringer("from", o.phase), zap.Stringer("to", next))
	o.phase = next
}

// Phase returns the orchestrator's current phase.
func (o *Orchestrator) Phase() Phase {
	return o.phase
}

// toolNames lists the binaries the acquirer will install.
func (o *Orchestrator) toolNames() []string {
	names := make([]string, 0, len(o.Acquirer.Tools))
	for _, t := range o.Acquirer.Tools {
		names = append(names, t.Name)
	}
	return names
}

// Run executes the full installation sequence. Expected user decisions
// (declined upgrade, declined dependencies) surface as expected user errors
// or plain success, never as fatal failures.
func (o *Orchestrator) Run(rc *anvil_io.RuntimeContext, opts Options) (err error) {
	logger := otelzap.Ctx(rc.Ctx)

	st := state.New()
	// Temporary download and clone directories are removed on every exit
	// path, success or failure.
	defer st.Cleanup(rc.Log)

	// Platform detection is fatal and non-retryable when it fails; nothing
	// has been mutated yet, so there is nothing to roll back.
	p, err := platform.Detect(rc)
	if err != nil {
		return err
	}

	o.transition(rc, PhaseInspecting)
	proceed, err := o.preflight(rc, opts)
	if err != nil || !proceed {
		return err
	}

	o.transition(rc, PhaseResolving)
	missing, err := o.resolveDependencies(rc, p, opts)
	if err != nil {
		return o.fail(rc, st, "dependency resolution", err)
	}

	if opts.DryRun {
		// The resolver's result is reported but never acted upon: no
		// elevation prompt, no package manager, no download.
		logger.Info("Dry run complete - no changes were made")
		fmt.Println("Dry run: anvil would now download or build the Forge binaries. No changes were made.")
		o.transition(rc, PhaseDone)
		return nil
	}

	if missing != nil && !missing.Empty() {
		o.transition(rc, PhaseElevating)
		if err := o.elevateAndInstall(rc, st, missing, opts); err != nil {
			return o.fail(rc, st, "dependency installation", err)
		}
	} else {
		// Idempotence contract: an empty missing-set short-circuits all
		// package-manager invocation and privilege negotiation.
		logger.Info("All dependencies satisfied, skipping privilege negotiation")
	}

	o.transition(rc, PhaseAcquiring)
	artifacts, err := o.Acquirer.Acquire(rc, p, st)
	if err != nil {
		return o.fail(rc, st, "artifact acquisition", err)
	}

	o.transition(rc, PhaseConfiguringServices)
	cli := artifacts[0]
	for _, a := range artifacts {
		if a.BinaryName == "forge" {
			cli = a
		}
	}
	// Best-effort from here: the artifacts are installed and the user keeps
	// that success regardless of what the convenience steps do.
	agentRes := o.Configurator.InstallAgent(rc, cli, st)
	clientRes := o.Configurator.ConfigureClients(rc, cli)

	o.transition(rc, PhaseDone)
	o.printSuccess(artifacts, agentRes, clientRes)
	return nil
}

// preflight applies the skip-if-current decision table. Returns false when
// the run should stop with success (already current, or the user declined an
// offered upgrade).
func (o *Orchestrator) preflight(rc *anvil_io.RuntimeContext, opts Options) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx)

	existing, err := inspect.Inspect(rc, o.Env.InstallDir, o.toolNames(), o.Prober)
	if err != nil {
		return false, err
	}

	outcome := inspect.Decide(existing, opts.Force, o.Env.AllowsPrompts())
	logger.Info("Pre-flight decision", zap.Stringer("outcome", outcome))

	switch outcome {
	case inspect.AlreadyCurrent:
		fmt.Println("Forge is already installed. Nothing to do.")
		return false, nil

	case inspect.CheckForUpdate:
		return o.offerUpgrade(rc, existing)

	default:
		// ProceedFresh, ProceedRepair, ProceedReinstall
		return true, nil
	}
}

// offerUpgrade runs the lightweight release-index query and prompts. Only
// reached on an interactive, non-CI terminal.
func (o *Orchestrator) offerUpgrade(rc *anvil_io.RuntimeContext, existing *inspect.ExistingInstallation) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx)

	rel, err := o.Index.LatestRelease(rc.Ctx, o.Acquirer.Repo)
	if err != nil {
		// The tools are installed and work; a failed update check must not
		// fail the run.
		logger.Warn("Update check failed, treating installation as current", zap.Error(err))
		fmt.Println("Forge is installed (update check unavailable). Nothing to do.")
		return false, nil
	}

	latest, err := rel.Version()
	if err != nil {
		logger.Warn("Could not parse latest release tag", zap.String("tag", rel.Tag), zap.Error(err))
		return false, nil
	}

	installed := existing.OldestVersion()
	if !inspect.UpdateAvailable(installed, latest) {
		logger.Info("Installation is current",
			zap.String("installed", versionString(installed)),
			zap.String("latest", latest.String()),
		)
		fmt.Println("Forge is up to date. Nothing to do.")
		return false, nil
	}

	question := fmt.Sprintf("Forge %s is available (installed: %s). Upgrade now?",
		latest, versionString(installed))
	yes, err := o.Prompt(question, true)
	if err != nil {
		return false, err
	}
	if !yes {
		logger.Info("User declined upgrade")
		fmt.Println("Keeping the installed version.")
		return false, nil
	}
	return true, nil
}

// resolveDependencies computes the missing-set. A platform without a known
// package manager skips dependency handling rather than failing; the source
// build will report anything genuinely absent.
func (o *Orchestrator) resolveDependencies(rc *anvil_io.RuntimeContext, p *platform.Platform, opts Options) (*depends.MissingSet, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if _, ok := p.Manager(); !ok {
		logger.Warn("No package manager known for this platform, skipping dependency checks",
			zap.String("os_family", p.OSFamily))
		return nil, nil
	}

	missing, err := depends.Resolve(rc, p, o.Checker)
	if err != nil {
		return nil, err
	}

	if opts.DryRun && !missing.Empty() {
		fmt.Printf("Dry run: would install missing dependencies: %s\n    %s\n",
			strings.Join(missing.Names(), ", "), missing.ManualCommand())
	}
	return missing, nil
}

// elevateAndInstall negotiates privileges and installs the missing
// dependencies. Decline is an accepted risk path; Unavailable is fatal
// because elevation was required and could not be obtained.
func (o *Orchestrator) elevateAndInstall(rc *anvil_io.RuntimeContext, st *state.InstallationState, missing *depends.MissingSet, opts Options) error {
	logger := otelzap.Ctx(rc.Ctx)

	gate := o.Gate
	if gate == nil {
		gate = privilege.NewGate(o.Env, opts.SkipDeps)
		if o.Prompt != nil {
			gate.Prompt = o.Prompt
		}
		if o.DepsRun != nil {
			gate.Run = o.DepsRun
		}
	} else {
		gate.SkipDeps = opts.SkipDeps
	}

	decision, err := gate.Decide(rc, missing)
	if err != nil {
		return err
	}

	switch decision {
	case privilege.Decline:
		logger.Warn("Continuing without system dependencies; the build may fail downstream",
			zap.Strings("missing", missing.Names()))
		return nil

	case privilege.Unavailable:
		return anvil_err.NewElevationError(
			"Cannot install required dependencies without elevation",
			nil,
			"Run the printed package-manager command manually",
			"Or re-run with --skip-deps to proceed without them",
		)
	}

	st.PrivilegeObtained = true
	if err := depends.Install(rc, missing, opts.DryRun, o.DepsRun); err != nil {
		// Packages failed to install but the user approved the attempt; a
		// prebuilt release may still succeed without them.
		logger.Warn("Dependency installation failed, continuing; acquisition may still succeed",
			zap.Error(err))
		fmt.Printf("Warning: dependency installation failed. To retry manually:\n    %s\n",
			missing.ManualCommand())
	}
	return nil
}

// fail handles a fatal error: write the diagnostic bundle, roll back this
// run's changes, and return the error for the top-level handler.
func (o *Orchestrator) fail(rc *anvil_io.RuntimeContext, st *state.InstallationState, op string, err error) error {
	diagnostic.WriteBundle(rc, op, err, "")
	o.Rollbacker.Rollback(rc, st, fmt.Sprintf("%s failed: %v", op, err))
	o.transition(rc, PhaseRolledBack)
	return err
}

func (o *Orchestrator) printSuccess(artifacts []state.InstalledArtifact, agentRes, clientRes service.Result) {
	fmt.Println()
	fmt.Println("Forge installed successfully:")
	for _, a := range artifacts {
		fmt.Printf("  %s %s (%s)\n", a.BinaryName, versionString(a.Version), a.InstallPath)
	}
	if agentRes.Succeeded {
		fmt.Println("  agent service: running")
	}
	if clientRes.Succeeded {
		fmt.Println("  client integrations: synchronized")
	}
	fmt.Println()
	fmt.Println("Get started with: forge --help")
}

func versionString(v *goversion.Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}
