// pkg/acquire/prebuilt.go

package acquire

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/platform"
	"github.com/anvil-sh/anvil/pkg/state"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// minArchiveSize is the sanity floor for a release archive; anything smaller
// is a truncated download or an error page.
const minArchiveSize = 1 << 20

// Installer unpacks a downloaded release package into the install directory
// and returns the paths it wrote. The platform package format is a
// collaborator concern hidden behind this interface.
type Installer interface {
	Install(ctx context.Context, archivePath, destDir string) ([]string, error)
}

// acquirePrebuilt fetches the latest release, downloads the asset for this
// platform, installs it, and verifies every resulting binary.
func (a *Acquirer) acquirePrebuilt(rc *anvil_io.RuntimeContext, p *platform.Platform, st *state.InstallationState) ([]state.InstalledArtifact, error) {
	logger := otelzap.Ctx(rc.Ctx)

	rel, err := a.Index.LatestRelease(rc.Ctx, a.Repo)
	if err != nil {
		return nil, cerr.Wrap(err, "querying release index")
	}

	assetName := fmt.Sprintf("forge-%s.tar.gz", p.Triple)
	asset, ok := rel.AssetNamed(assetName)
	if !ok {
		return nil, cerr.Newf("release %s has no asset %q", rel.Tag, assetName)
	}

	logger.Info("Found prebuilt release",
		zap.String("tag", rel.Tag),
		zap.String("asset", asset.Name),
		zap.Int64("size", asset.Size),
	)

	tmpDir, err := os.MkdirTemp("", "anvil-download-")
	if err != nil {
		return nil, cerr.Wrap(err, "creating download directory")
	}
	st.AddTempDir(tmpDir)

	// Optional integrity digest from a sibling .sha256 asset.
	var wantSHA string
	if shaAsset, ok := rel.AssetNamed(assetName + ".sha256"); ok {
		wantSHA, err = a.Downloader.FetchChecksum(rc.Ctx, shaAsset.URL)
		if err != nil {
			logger.Warn("Could not fetch checksum, continuing with size check only",
				zap.Error(err))
			wantSHA = ""
		}
	}

	archivePath := filepath.Join(tmpDir, asset.Name)
	if err := a.Downloader.Download(rc.Ctx, asset.URL, archivePath, a.MinArchiveSize, wantSHA); err != nil {
		return nil, cerr.Wrap(err, "downloading release asset")
	}

	installed, err := a.Installer.Install(rc.Ctx, archivePath, a.InstallDir)
	if err != nil {
		return nil, cerr.Wrap(err, "installing release package")
	}

	var artifacts []state.InstalledArtifact
	for _, tool := range a.Tools {
		path, ok := pathForTool(installed, tool.Name)
		if !ok {
			return nil, cerr.Newf("release package did not contain binary %q", tool.Name)
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

func pathForTool(paths []string, name string) (string, bool) {
	for _, p := range paths {
		if filepath.Base(p) == name {
			return p, true
		}
	}
	return "", false
}

// TarGzInstaller unpacks tar.gz release packages. Only regular files are
// extracted, paths are confined to the destination, and the executable bit
// is preserved.
type TarGzInstaller struct{}

func (TarGzInstaller) Install(ctx context.Context, archivePath, destDir string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, cerr.Wrap(err, "opening archive")
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, cerr.Wrap(err, "reading gzip header")
	}
	defer gz.Close()

	var installed []string
	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, cerr.Wrap(err, "reading archive")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(hdr.Name)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		dest := filepath.Join(destDir, name)

		out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
		if err != nil {
			return nil, cerr.Wrapf(err, "creating %s", dest)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return nil, cerr.Wrapf(err, "writing %s", dest)
		}
		if err := out.Close(); err != nil {
			return nil, cerr.Wrapf(err, "closing %s", dest)
		}
		installed = append(installed, dest)
	}

	if len(installed) == 0 {
		return nil, cerr.New("archive contained no binaries")
	}
	return installed, nil
}
