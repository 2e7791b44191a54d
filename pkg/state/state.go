// pkg/state/state.go

package state

import (
	"os"

	goversion "github.com/hashicorp/go-version"
	"go.uber.org/zap"
)

// InstalledArtifact is a binary produced by either acquisition strategy. The
// two strategies produce the identical shape so nothing downstream can tell
// which path ran.
type InstalledArtifact struct {
	BinaryName  string
	InstallPath string
	Version     *goversion.Version
	Executable  bool
	Verified    bool
}

// InstallationState accumulates what this run has changed on the machine.
// Written only by the orchestrator's main sequence, read by rollback on
// fatal failure, discarded at process exit after temp cleanup. It records
// only what THIS run created; pre-existing installations are never entered
// here and therefore never rolled back.
type InstallationState struct {
	Artifacts         []InstalledArtifact
	ServiceInstalled  bool
	PrivilegeObtained bool
	TempDirs          []string
}

// New returns an empty state for one run.
func New() *InstallationState {
	return &InstallationState{}
}

// AddArtifact records a binary this run installed.
func (s *InstallationState) AddArtifact(a InstalledArtifact) {
	s.Artifacts = append(s.Artifacts, a)
}

// AddTempDir registers a temporary directory for guaranteed cleanup.
func (s *InstallationState) AddTempDir(dir string) {
	s.TempDirs = append(s.TempDirs, dir)
}

// Cleanup removes every temporary directory. Runs on every exit path,
// success or failure; removal failures are logged, never raised.
func (s *InstallationState) Cleanup(log *zap.Logger) {
	for _, dir := range s.TempDirs {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("Failed to remove temp directory",
				zap.String("dir", dir), zap.Error(err))
		} else {
			log.Debug("Removed temp directory", zap.String("dir", dir))
		}
	}
	s.TempDirs = nil
}
