// pkg/environment/environment_test.go

package environment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearCIMarkers(t *testing.T) {
	t.Helper()
	for _, name := range ciMarkers {
		t.Setenv(name, "")
	}
}

func TestDetectCI(t *testing.T) {
	clearCIMarkers(t)
	assert.False(t, detectCI())

	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, detectCI())
}

func TestDetectCIRecognizesEveryMarker(t *testing.T) {
	for _, name := range ciMarkers {
		t.Run(name, func(t *testing.T) {
			clearCIMarkers(t)
			t.Setenv(name, "1")
			assert.True(t, detectCI())
		})
	}
}

func TestInstallDir(t *testing.T) {
	t.Setenv("ANVIL_INSTALL_DIR", "")
	assert.Equal(t, filepath.Join("/home/dev", ".local", "bin"), installDir("/home/dev"))

	t.Setenv("ANVIL_INSTALL_DIR", "/opt/forge/bin")
	assert.Equal(t, "/opt/forge/bin", installDir("/home/dev"))
}

func TestInstallDirWithoutHome(t *testing.T) {
	t.Setenv("ANVIL_INSTALL_DIR", "")
	assert.Equal(t, filepath.Join("/", "usr", "local", "bin"), installDir(""))
}

func TestAllowsPrompts(t *testing.T) {
	tests := []struct {
		name string
		env  Environment
		want bool
	}{
		{name: "interactive terminal", env: Environment{Interactive: true}, want: true},
		{name: "interactive but CI marker set", env: Environment{Interactive: true, CI: true}, want: false},
		{name: "piped stdin", env: Environment{Interactive: false}, want: false},
		{name: "headless CI", env: Environment{CI: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.env.AllowsPrompts())
		})
	}
}
