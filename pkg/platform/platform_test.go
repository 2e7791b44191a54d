// pkg/platform/platform_test.go

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripleFor(t *testing.T) {
	tests := []struct {
		name    string
		goos    string
		arch    string
		want    string
		wantErr bool
	}{
		{name: "linux x86_64", goos: "linux", arch: "x86_64", want: "x86_64-unknown-linux-gnu"},
		{name: "linux aarch64", goos: "linux", arch: "aarch64", want: "aarch64-unknown-linux-gnu"},
		{name: "linux i686", goos: "linux", arch: "i686", want: "i686-unknown-linux-gnu"},
		{name: "darwin x86_64", goos: "darwin", arch: "x86_64", want: "x86_64-apple-darwin"},
		{name: "darwin aarch64", goos: "darwin", arch: "aarch64", want: "aarch64-apple-darwin"},
		{name: "darwin i686 unsupported", goos: "darwin", arch: "i686", wantErr: true},
		{name: "windows x86_64", goos: "windows", arch: "x86_64", want: "x86_64-pc-windows-msvc"},
		{name: "windows i686 unsupported", goos: "windows", arch: "i686", wantErr: true},
		{name: "freebsd unsupported", goos: "freebsd", arch: "x86_64", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tripleFor(tt.goos, tt.arch)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOSRelease(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantID   string
		wantLike []string
	}{
		{
			name: "ubuntu",
			content: `NAME="Ubuntu"
VERSION="24.04 LTS"
ID=ubuntu
ID_LIKE=debian
PRETTY_NAME="Ubuntu 24.04 LTS"
`,
			wantID:   "ubuntu",
			wantLike: []string{"debian"},
		},
		{
			name: "linuxmint with quoted multi-value ID_LIKE",
			content: `NAME="Linux Mint"
ID=linuxmint
ID_LIKE="ubuntu debian"
`,
			wantID:   "linuxmint",
			wantLike: []string{"ubuntu", "debian"},
		},
		{
			name: "alpine without ID_LIKE",
			content: `NAME="Alpine Linux"
ID=alpine
`,
			wantID:   "alpine",
			wantLike: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "os-release")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			id, like, err := parseOSRelease(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantLike, like)
		})
	}
}

func TestParseOSReleaseMissingFile(t *testing.T) {
	_, _, err := parseOSRelease(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestManager(t *testing.T) {
	tests := []struct {
		name   string
		p      Platform
		want   PackageManager
		wantOK bool
	}{
		{name: "ubuntu", p: Platform{OSFamily: "ubuntu"}, want: Apt, wantOK: true},
		{name: "debian", p: Platform{OSFamily: "debian"}, want: Apt, wantOK: true},
		{name: "fedora", p: Platform{OSFamily: "fedora"}, want: Dnf, wantOK: true},
		{name: "arch", p: Platform{OSFamily: "arch"}, want: Pacman, wantOK: true},
		{name: "alpine", p: Platform{OSFamily: "alpine"}, want: Apk, wantOK: true},
		{name: "macos", p: Platform{OSFamily: "macos"}, want: Brew, wantOK: true},
		{name: "unknown distro falls back to ID_LIKE", p: Platform{OSFamily: "zorin", Like: []string{"ubuntu", "debian"}}, want: Apt, wantOK: true},
		{name: "second ID_LIKE entry resolves", p: Platform{OSFamily: "nobara", Like: []string{"unheard-of", "fedora"}}, want: Dnf, wantOK: true},
		{name: "opensuse-leap resolves by prefix", p: Platform{OSFamily: "opensuse-leap"}, want: Zypper, wantOK: true},
		{name: "opensuse-tumbleweed resolves by prefix", p: Platform{OSFamily: "opensuse-tumbleweed"}, want: Zypper, wantOK: true},
		{name: "windows has no manager", p: Platform{OSFamily: "windows"}},
		{name: "generic linux has no manager", p: Platform{OSFamily: "linux"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, ok := tt.p.Manager()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, pm)
		})
	}
}
