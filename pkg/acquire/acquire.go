// pkg/acquire/acquire.go

package acquire

import (
	"os"

	"github.com/anvil-sh/anvil/pkg/anvil_err"
	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/platform"
	"github.com/anvil-sh/anvil/pkg/release"
	"github.com/anvil-sh/anvil/pkg/state"
	"github.com/anvil-sh/anvil/pkg/verify"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ToolSpec names one binary to install and the workspace sub-package that
// builds it.
type ToolSpec struct {
	Name    string
	Subpath string
}

// DefaultTools are the Forge binaries anvil installs.
var DefaultTools = []ToolSpec{
	{Name: "forge", Subpath: "crates/forge-cli"},
	{Name: "forged", Subpath: "crates/forged"},
}

// prebuiltTriples is the static allow-list of platforms with prebuilt
// release packages. Anything else goes straight to a source build.
var prebuiltTriples = map[string]bool{
	"x86_64-unknown-linux-gnu":  true,
	"aarch64-unknown-linux-gnu": true,
	"x86_64-apple-darwin":       true,
	"aarch64-apple-darwin":      true,
	"x86_64-pc-windows-msvc":    true,
}

// Acquirer obtains the Forge binaries, preferring a prebuilt release and
// falling back to a source build.
type Acquirer struct {
	Index      release.Index
	Downloader *release.Downloader
	Installer  Installer
	Cloner     Cloner
	Toolchain  Toolchain
	Prober     verify.Prober
	// CommandExists probes PATH for the build toolchain.
	CommandExists func(name string) bool

	Repo       string
	RepoURL    string
	InstallDir string
	Tools      []ToolSpec
	// MinArchiveSize is the sanity floor for downloaded archives.
	MinArchiveSize int64
}

// New wires an Acquirer with the real collaborators.
func New(installDir string) *Acquirer {
	return &Acquirer{
		Index:          release.NewGitHubIndex(),
		Downloader:     release.NewDownloader(),
		Installer:      TarGzInstaller{},
		Cloner:         GitCloner{},
		Toolchain:      CargoToolchain{},
		Prober:         verify.ExecProber{},
		CommandExists:  execute.CommandExists,
		Repo:           "anvil-sh/forge",
		RepoURL:        "https://github.com/anvil-sh/forge.git",
		InstallDir:     installDir,
		Tools:          DefaultTools,
		MinArchiveSize: minArchiveSize,
	}
}

// Acquire runs the acquisition algorithm: prebuilt release when the platform
// is on the allow-list, source build as the unconditional fallback. The
// fallback runs at most once; a failed prebuilt path is never retried within
// a run. Every artifact is appended to the run state as soon as it lands so
// rollback can see it.
func (a *Acquirer) Acquire(rc *anvil_io.RuntimeContext, p *platform.Platform, st *state.InstallationState) ([]state.InstalledArtifact, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if err := os.MkdirAll(a.InstallDir, 0o755); err != nil {
		return nil, anvil_err.NewAcquisitionError(
			"Cannot create install directory "+a.InstallDir, err,
			"Check permissions on the parent directory, or set ANVIL_INSTALL_DIR",
		)
	}

	var prebuiltErr error
	if prebuiltTriples[p.Triple] {
		artifacts, err := a.acquirePrebuilt(rc, p, st)
		if err == nil {
			logger.Info("Prebuilt release installed",
				zap.Int("artifacts", len(artifacts)))
			return artifacts, nil
		}
		prebuiltErr = err

		// Attribute the failure before falling back; operators need to know
		// whether it was the network, the disk, or upstream.
		diag := Diagnose(err)
		logger.Warn("Prebuilt acquisition failed, falling back to source build",
			zap.String("cause", diag.String()),
			zap.String("hint", diag.Hint()),
			zap.Error(err),
		)
	} else {
		logger.Info("No prebuilt release for this platform, building from source",
			zap.String("triple", p.Triple))
	}

	artifacts, err := a.acquireSource(rc, st)
	if err != nil {
		if prebuiltErr != nil {
			return nil, anvil_err.NewAcquisitionError(
				"Both acquisition strategies failed",
				err,
				"Prebuilt: "+prebuiltErr.Error(),
				"Check network connectivity and free disk space, then re-run",
				"Or build manually: git clone "+a.RepoURL+" && cargo install --path crates/forge-cli",
			)
		}
		return nil, anvil_err.NewAcquisitionError(
			"Source build failed", err,
			"Ensure build dependencies are installed (re-run without --skip-deps)",
			"Or build manually: git clone "+a.RepoURL+" && cargo install --path crates/forge-cli",
		)
	}

	logger.Info("Source build installed", zap.Int("artifacts", len(artifacts)))
	return artifacts, nil
}

// verifyInstalled probes one installed binary and converts it into the
// strategy-independent artifact shape.
func (a *Acquirer) verifyInstalled(rc *anvil_io.RuntimeContext, name, path string) (state.InstalledArtifact, error) {
	v, err := verify.Binary(rc.Ctx, a.Prober, path)
	if err != nil {
		return state.InstalledArtifact{}, err
	}
	return state.InstalledArtifact{
		BinaryName:  name,
		InstallPath: path,
		Version:     v,
		Executable:  true,
		Verified:    true,
	}, nil
}
