// pkg/acquire/source.go

package acquire

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/state"
	cerr "github.com/cockroachdb/errors"
	git "github.com/go-git/go-git/v5"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Cloner fetches the Forge source tree.
type Cloner interface {
	Clone(ctx context.Context, url, destDir string) error
}

// GitCloner performs a shallow clone of the default branch; history is not
// needed to build.
type GitCloner struct{}

func (GitCloner) Clone(ctx context.Context, url, destDir string) error {
	_, err := git.PlainCloneContext(ctx, destDir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
	})
	return err
}

// Toolchain builds one workspace sub-package and returns the path of the
// binary it produced.
type Toolchain interface {
	InstallFromPath(ctx context.Context, repoDir, subpath, binName, destDir string) (string, error)
}

// CargoToolchain shells out to cargo, the one build tool anvil knows.
type CargoToolchain struct{}

func (CargoToolchain) InstallFromPath(ctx context.Context, repoDir, subpath, binName, destDir string) (string, error) {
	// cargo places binaries under <root>/bin; install to a staging root
	// inside the clone, then move into the destination.
	stagingRoot := filepath.Join(repoDir, ".anvil-staging")

	out, err := execute.Run(ctx, execute.Options{
		Command: "cargo",
		Args:    []string{"install", "--path", subpath, "--root", stagingRoot, "--force"},
		Dir:     repoDir,
		Capture: true,
		Timeout: 30 * time.Minute,
	})
	if err != nil {
		return "", cerr.Wrapf(err, "cargo install %s failed: %s", subpath, tail(out, 800))
	}

	built := filepath.Join(stagingRoot, "bin", binName)
	dest := filepath.Join(destDir, binName)
	if err := os.Rename(built, dest); err != nil {
		// Rename fails across filesystems; fall back to copy.
		if copyErr := copyFile(built, dest); copyErr != nil {
			return "", cerr.Wrapf(copyErr, "moving %s into place", binName)
		}
	}
	if err := os.Chmod(dest, 0o755); err != nil {
		return "", cerr.Wrapf(err, "marking %s executable", dest)
	}
	return dest, nil
}

// acquireSource clones the Forge repository and builds each sub-package,
// verifying every resulting binary with the same probe the prebuilt path
// uses.
func (a *Acquirer) acquireSource(rc *anvil_io.RuntimeContext, st *state.InstallationState) ([]state.InstalledArtifact, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if !a.CommandExists("cargo") {
		return nil, cerr.New("cargo is not installed; install Rust from https://rustup.rs and re-run")
	}

	tmpDir, err := os.MkdirTemp("", "anvil-src-")
	if err != nil {
		return nil, cerr.Wrap(err, "creating clone directory")
	}
	st.AddTempDir(tmpDir)

	logger.Info("Cloning source repository",
		zap.String("url", a.RepoURL), zap.String("dir", tmpDir))
	if err := a.Cloner.Clone(rc.Ctx, a.RepoURL, tmpDir); err != nil {
		return nil, cerr.Wrap(err, "cloning source repository")
	}

	var artifacts []state.InstalledArtifact
	for _, tool := range a.Tools {
		logger.Info("Building from source",
			zap.String("tool", tool.Name), zap.String("subpath", tool.Subpath))

		path, err := a.Toolchain.InstallFromPath(rc.Ctx, tmpDir, tool.Subpath, tool.Name, a.InstallDir)
		if err != nil {
			return nil, cerr.Wrapf(err, "building %s", tool.Name)
		}

		artifact, err := a.verifyInstalled(rc, tool.Name, path)
		if err != nil {
			return nil, cerr.Wrapf(err, "verifying %s", tool.Name)
		}
		st.AddArtifact(artifact)
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o755)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}
