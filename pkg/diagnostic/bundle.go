// pkg/diagnostic/bundle.go

package diagnostic

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// WriteBundle saves a diagnostic snapshot after a fatal failure: environment,
// tool versions, disk space, and the tail of the failing step's output.
// Written only on failure; best-effort (a failed bundle write is logged and
// swallowed). Returns the bundle path.
func WriteBundle(rc *anvil_io.RuntimeContext, failedOp string, failure error, outputTail string) string {
	logger := otelzap.Ctx(rc.Ctx)

	home, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("Cannot resolve home directory for diagnostic bundle", zap.Error(err))
		return ""
	}
	dir := filepath.Join(home, ".local", "state", "anvil")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.Warn("Cannot create diagnostic directory", zap.Error(err))
		return ""
	}

	path := filepath.Join(dir, fmt.Sprintf("failure-%s.txt", time.Now().Format("20060102-150405")))

	var b strings.Builder
	fmt.Fprintf(&b, "anvil failure report - %s\n\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "failed operation: %s\n", failedOp)
	fmt.Fprintf(&b, "error: %v\n\n", failure)
	fmt.Fprintf(&b, "os: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "go: %s\n", runtime.Version())
	fmt.Fprintf(&b, "uid: %d\n", os.Getuid())
	fmt.Fprintf(&b, "path: %s\n\n", os.Getenv("PATH"))

	for _, tool := range []string{"git", "cargo", "cc"} {
		fmt.Fprintf(&b, "%s present: %v\n", tool, execute.CommandExists(tool))
	}

	if free, total, err := diskSpace(home); err == nil {
		fmt.Fprintf(&b, "\ndisk: %d MiB free of %d MiB on %s\n", free>>20, total>>20, home)
	}

	if outputTail != "" {
		fmt.Fprintf(&b, "\n--- last output ---\n%s\n", outputTail)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		logger.Warn("Failed to write diagnostic bundle", zap.Error(err))
		return ""
	}

	logger.Info("Diagnostic bundle written", zap.String("path", path))
	return path
}
