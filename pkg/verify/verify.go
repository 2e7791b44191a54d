// pkg/verify/verify.go

package verify

import (
	"context"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/anvil-sh/anvil/pkg/anvil_err"
	"github.com/anvil-sh/anvil/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	goversion "github.com/hashicorp/go-version"
)

// versionPattern matches the first semantic version in a --version banner,
// e.g. "forge 1.4.2 (f00dfeed 2026-01-12)".
var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?`)

// Prober runs a binary's version probe. Split out as an interface so tests
// can fake collaborator binaries.
type Prober interface {
	Probe(ctx context.Context, binPath string) (string, error)
}

// ExecProber probes by invoking `<binary> --version`.
type ExecProber struct{}

func (ExecProber) Probe(ctx context.Context, binPath string) (string, error) {
	return execute.Run(ctx, execute.Options{
		Command: binPath,
		Args:    []string{"--version"},
		Capture: true,
		Timeout: 15 * time.Second,
	})
}

// Binary checks that a path exists, is a regular executable file, and
// responds to a version probe with exit status 0. Returns the parsed
// version. A binary that fails any of these is treated as if it were never
// installed.
func Binary(ctx context.Context, prober Prober, binPath string) (*goversion.Version, error) {
	info, err := os.Stat(binPath)
	if err != nil {
		return nil, anvil_err.NewVerificationError(
			"Binary not found: "+binPath, err,
		)
	}
	if !info.Mode().IsRegular() {
		return nil, anvil_err.NewVerificationError(
			"Not a regular file: "+binPath, nil,
		)
	}
	if info.Mode()&0o111 == 0 {
		return nil, anvil_err.NewVerificationError(
			"Binary is not executable: "+binPath, nil,
			"Run: chmod +x "+binPath,
		)
	}

	out, err := prober.Probe(ctx, binPath)
	if err != nil {
		return nil, anvil_err.NewVerificationError(
			"Version probe failed for "+binPath,
			cerr.Wrapf(err, "output: %s", anvil_err.Truncate(out, 400)),
		)
	}

	v, err := ParseVersionOutput(out)
	if err != nil {
		return nil, anvil_err.NewVerificationError(
			"Could not parse version output for "+binPath, err,
		)
	}
	return v, nil
}

// ParseVersionOutput extracts the first semantic version from probe output.
func ParseVersionOutput(out string) (*goversion.Version, error) {
	match := versionPattern.FindString(strings.TrimSpace(out))
	if match == "" {
		return nil, cerr.Newf("no semantic version in output %q", anvil_err.Truncate(out, 120))
	}
	return goversion.NewVersion(match)
}
