// pkg/environment/environment.go

package environment

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

// ciMarkers are the environment variables recognized as automation signals.
// Any of these being set suppresses prompts and update checks.
var ciMarkers = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"BUILDKITE",
	"JENKINS_URL",
	"TEAMCITY_VERSION",
	"TF_BUILD",
}

// Environment captures the ambient signals a run consults: automation
// markers, terminal interactivity, and install destination. Computed once
// per run.
type Environment struct {
	CI          bool
	Interactive bool
	Home        string
	InstallDir  string
}

// Detect probes the process environment. An optional env file at
// ~/.config/anvil/env is loaded first so users can pin ANVIL_* settings.
func Detect(log *zap.Logger) *Environment {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Warn("Failed to resolve home directory", zap.Error(err))
	}

	if home != "" {
		envFile := filepath.Join(home, ".config", "anvil", "env")
		if _, statErr := os.Stat(envFile); statErr == nil {
			if loadErr := godotenv.Load(envFile); loadErr != nil {
				log.Warn("Failed to load env file", zap.String("path", envFile), zap.Error(loadErr))
			} else {
				log.Debug("Loaded env file", zap.String("path", envFile))
			}
		}
	}

	env := &Environment{
		CI:          detectCI(),
		Interactive: isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()),
		Home:        home,
		InstallDir:  installDir(home),
	}

	log.Debug("Environment detected",
		zap.Bool("ci", env.CI),
		zap.Bool("interactive", env.Interactive),
		zap.String("install_dir", env.InstallDir),
	)
	return env
}

// AllowsPrompts reports whether interactive questions may be asked at all.
func (e *Environment) AllowsPrompts() bool {
	return e.Interactive && !e.CI
}

func detectCI() bool {
	for _, name := range ciMarkers {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

func installDir(home string) string {
	if dir := os.Getenv("ANVIL_INSTALL_DIR"); dir != "" {
		return dir
	}
	if home == "" {
		return filepath.Join(string(os.PathSeparator), "usr", "local", "bin")
	}
	return filepath.Join(home, ".local", "bin")
}
