// pkg/bootstrap/bootstrap_test.go

package bootstrap

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/anvil-sh/anvil/pkg/acquire"
	"github.com/anvil-sh/anvil/pkg/anvil_err"
	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/environment"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/platform"
	"github.com/anvil-sh/anvil/pkg/release"
	"github.com/anvil-sh/anvil/pkg/rollback"
	"github.com/anvil-sh/anvil/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRC(t *testing.T) *anvil_io.RuntimeContext {
	t.Helper()
	return anvil_io.NewContext(context.Background(), t.Name())
}

type fakeProber struct {
	out string
	err error
}

func (f fakeProber) Probe(ctx context.Context, binPath string) (string, error) {
	return f.out, f.err
}

// allSatisfiedChecker reports every requirement as met.
type allSatisfiedChecker struct{}

func (allSatisfiedChecker) CommandExists(string) bool { return true }
func (allSatisfiedChecker) PackageInstalled(context.Context, platform.PackageManager, string) bool {
	return true
}
func (allSatisfiedChecker) HeaderExists(string) bool { return true }

type fakeIndex struct {
	rel   *release.Release
	err   error
	calls int
}

func (f *fakeIndex) LatestRelease(ctx context.Context, repo string) (*release.Release, error) {
	f.calls++
	return f.rel, f.err
}

func writeExecutable(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755))
}

func headlessEnv(installDir string) *environment.Environment {
	return &environment.Environment{CI: true, InstallDir: installDir}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("installation flow tests target unix hosts")
	}
}

func TestRunAlreadyCurrentIsANoOp(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("PATH", t.TempDir())

	installDir := t.TempDir()
	writeExecutable(t, installDir, "forge")
	writeExecutable(t, installDir, "forged")

	o := New(headlessEnv(installDir))
	o.Prober = fakeProber{out: "forge 1.2.3"}
	index := &fakeIndex{err: errors.New("must not be queried")}
	o.Index = index

	require.NoError(t, o.Run(testRC(t), Options{}))
	assert.Equal(t, PhaseInspecting, o.Phase())
	assert.Zero(t, index.calls, "a headless run never checks for updates")
}

func TestRunDeclinedUpgradeIsSuccess(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("PATH", t.TempDir())

	installDir := t.TempDir()
	writeExecutable(t, installDir, "forge")
	writeExecutable(t, installDir, "forged")

	env := &environment.Environment{Interactive: true, InstallDir: installDir}
	o := New(env)
	o.Prober = fakeProber{out: "forge 1.2.3"}
	o.Index = &fakeIndex{rel: &release.Release{Tag: "v9.9.9"}}

	prompted := false
	o.Prompt = func(prompt string, defaultYes bool) (bool, error) {
		prompted = true
		return false, nil
	}

	err := o.Run(testRC(t), Options{})
	require.NoError(t, err)
	assert.True(t, prompted, "an available upgrade must be offered")
	assert.Equal(t, 0, anvil_err.GetExitCode(err))
}

func TestRunFailedUpdateCheckTreatsInstallAsCurrent(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("PATH", t.TempDir())

	installDir := t.TempDir()
	writeExecutable(t, installDir, "forge")
	writeExecutable(t, installDir, "forged")

	env := &environment.Environment{Interactive: true, InstallDir: installDir}
	o := New(env)
	o.Prober = fakeProber{out: "forge 1.2.3"}
	o.Index = &fakeIndex{err: errors.New("dial tcp: lookup api.github.com: no such host")}
	o.Prompt = func(string, bool) (bool, error) {
		t.Fatal("must not prompt when the update check fails")
		return false, nil
	}

	require.NoError(t, o.Run(testRC(t), Options{}))
}

func TestRunDryRunStopsBeforeAcquisition(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("PATH", t.TempDir())

	installDir := filepath.Join(t.TempDir(), "bin")
	o := New(headlessEnv(installDir))
	o.Checker = allSatisfiedChecker{}
	index := &fakeIndex{err: errors.New("must not be queried")}
	o.Index = index
	o.Acquirer.Index = index

	require.NoError(t, o.Run(testRC(t), Options{DryRun: true}))
	assert.Equal(t, PhaseDone, o.Phase())
	assert.Zero(t, index.calls)

	entries, err := os.ReadDir(installDir)
	if err == nil {
		assert.Empty(t, entries, "dry run must not install anything")
	}
}

func TestRunFreshInstall(t *testing.T) {
	skipOnWindows(t)
	if runtime.GOOS != "linux" {
		t.Skip("prebuilt fixture is packaged for linux triples")
	}
	arch := map[string]string{"amd64": "x86_64", "arm64": "aarch64"}[runtime.GOARCH]
	if arch == "" {
		t.Skipf("no prebuilt fixture for %s", runtime.GOARCH)
	}
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	installDir := filepath.Join(t.TempDir(), "bin")
	env := headlessEnv(installDir)

	o := New(env)
	o.Checker = allSatisfiedChecker{}
	o.Prober = fakeProber{out: "forge 1.2.3"}

	// Acquisition is served from a local fixture; the service steps fail and
	// must stay best-effort.
	archive := buildTestArchive(t)
	srv := testReleaseServer(t, arch+"-unknown-linux-gnu", archive)
	o.Acquirer = &acquire.Acquirer{
		Index:          &release.GitHubIndex{BaseURL: srv.URL, Client: srv.Client()},
		Downloader:     &release.Downloader{Client: srv.Client(), MaxAttempts: 1},
		Installer:      acquire.TarGzInstaller{},
		Prober:         fakeProber{out: "forge 1.2.3"},
		CommandExists:  func(string) bool { return false },
		Repo:           "anvil-sh/forge",
		InstallDir:     installDir,
		Tools:          acquire.DefaultTools,
		MinArchiveSize: 1,
	}
	o.Configurator = &service.Configurator{
		Run: func(ctx context.Context, opts execute.Options) (string, error) {
			return "", errors.New("no service manager in tests")
		},
	}

	err := o.Run(testRC(t), Options{})
	require.NoError(t, err, "service failures must not fail the install")
	assert.Equal(t, PhaseDone, o.Phase())

	for _, name := range []string{"forge", "forged"} {
		info, statErr := os.Stat(filepath.Join(installDir, name))
		require.NoError(t, statErr, "missing %s", name)
		assert.NotZero(t, info.Mode()&0o111)
	}
}

func TestRunAcquisitionFailureRollsBack(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	installDir := filepath.Join(t.TempDir(), "bin")
	o := New(headlessEnv(installDir))
	o.Checker = allSatisfiedChecker{}
	o.Prober = fakeProber{out: "forge 1.2.3"}
	o.Acquirer.Index = &fakeIndex{err: errors.New("connection refused")}
	o.Acquirer.CommandExists = func(string) bool { return false }

	var removed []string
	o.Rollbacker = &rollback.Manager{
		Run: func(ctx context.Context, opts execute.Options) (string, error) { return "", nil },
		Remove: func(path string) error {
			removed = append(removed, path)
			return nil
		},
	}

	err := o.Run(testRC(t), Options{})
	require.Error(t, err)
	assert.Equal(t, PhaseRolledBack, o.Phase())
	assert.Equal(t, 1, anvil_err.GetExitCode(err))
	assert.Empty(t, removed, "nothing was installed, nothing to remove")
}

// buildTestArchive packages executable forge and forged stubs the way a
// release asset does.
func buildTestArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, name := range []string{"forge", "forged"} {
		content := "#!/bin/sh\nexit 0\n"
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func testReleaseServer(t *testing.T, triple string, archive []byte) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/anvil-sh/forge/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		rel := release.Release{
			Tag: "v1.2.3",
			Assets: []release.Asset{{
				Name: "forge-" + triple + ".tar.gz",
				URL:  srv.URL + "/asset",
				Size: int64(len(archive)),
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(rel))
	})
	mux.HandleFunc("/asset", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
