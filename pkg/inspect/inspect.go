// pkg/inspect/inspect.go

package inspect

import (
	"os/exec"
	"path/filepath"

	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/verify"
	goversion "github.com/hashicorp/go-version"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ToolStatus describes one tool found (or not) during pre-flight inspection.
type ToolStatus struct {
	Name    string
	Present bool
	Path    string
	Version *goversion.Version
}

// ExistingInstallation is the result of inspecting the machine before any
// mutating step runs.
type ExistingInstallation struct {
	Tools []ToolStatus
}

// AllPresent reports whether every requested tool was found.
func (e *ExistingInstallation) AllPresent() bool {
	for _, t := range e.Tools {
		if !t.Present {
			return false
		}
	}
	return len(e.Tools) > 0
}

// AnyPresent reports whether at least one requested tool was found.
func (e *ExistingInstallation) AnyPresent() bool {
	for _, t := range e.Tools {
		if t.Present {
			return true
		}
	}
	return false
}

// OldestVersion returns the lowest version among present tools. The upgrade
// decision compares against the weakest link so a half-upgraded install
// still offers the newer release.
func (e *ExistingInstallation) OldestVersion() *goversion.Version {
	var oldest *goversion.Version
	for _, t := range e.Tools {
		if !t.Present || t.Version == nil {
			continue
		}
		if oldest == nil || t.Version.LessThan(oldest) {
			oldest = t.Version
		}
	}
	return oldest
}

// Inspect looks for each tool on PATH and in the install directory, probing
// versions for the ones it finds. Read-only: no mutation, no network.
func Inspect(rc *anvil_io.RuntimeContext, installDir string, tools []string, prober verify.Prober) (*ExistingInstallation, error) {
	logger := otelzap.Ctx(rc.Ctx)
	existing := &ExistingInstallation{}

	for _, name := range tools {
		status := ToolStatus{Name: name}

		path, err := exec.LookPath(name)
		if err != nil {
			candidate := filepath.Join(installDir, name)
			if v, verr := verify.Binary(rc.Ctx, prober, candidate); verr == nil {
				status.Present = true
				status.Path = candidate
				status.Version = v
			}
		} else {
			status.Present = true
			status.Path = path
			if v, verr := verify.Binary(rc.Ctx, prober, path); verr == nil {
				status.Version = v
			} else {
				logger.Warn("Installed binary failed its version probe",
					zap.String("tool", name), zap.String("path", path), zap.Error(verr))
				// Unprobeable binaries count as absent so the run repairs them.
				status.Present = false
			}
		}

		logger.Debug("Inspected tool",
			zap.String("tool", name),
			zap.Bool("present", status.Present),
			zap.String("path", status.Path),
			zap.String("version", versionString(status.Version)),
		)
		existing.Tools = append(existing.Tools, status)
	}

	return existing, nil
}

func versionString(v *goversion.Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}
