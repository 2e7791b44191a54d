// pkg/depends/table.go

package depends

import (
	"github.com/anvil-sh/anvil/pkg/platform"
)

// Requirement is one native prerequisite with its platform-specific
// satisfaction checks and remediation package. Checks run cheapest first:
// command on PATH, then package database, then header existence for
// headers-only requirements.
type Requirement struct {
	// Name is the requirement's user-facing name, e.g. "c-compiler".
	Name string
	// Commands satisfy the requirement if any resolves on PATH.
	Commands []string
	// Packages maps each package manager to the package that remediates the
	// requirement. A manager missing from the map means the requirement does
	// not apply there.
	Packages map[platform.PackageManager]string
	// Headers satisfy the requirement if any exists on disk. Last-resort
	// check for headers-only requirements that install no command.
	Headers []string
}

// requirements is the fixed, ordered list checked on every platform. Order
// is stable so remediation output reads the same between runs.
var requirements = []Requirement{
	{
		Name:     "git",
		Commands: []string{"git"},
		Packages: map[platform.PackageManager]string{
			platform.Apt:    "git",
			platform.Dnf:    "git",
			platform.Pacman: "git",
			platform.Zypper: "git",
			platform.Apk:    "git",
			platform.Brew:   "git",
		},
	},
	{
		Name:     "curl",
		Commands: []string{"curl"},
		Packages: map[platform.PackageManager]string{
			platform.Apt:    "curl",
			platform.Dnf:    "curl",
			platform.Pacman: "curl",
			platform.Zypper: "curl",
			platform.Apk:    "curl",
			platform.Brew:   "curl",
		},
	},
	{
		Name:     "c-compiler",
		Commands: []string{"cc", "gcc", "clang"},
		Packages: map[platform.PackageManager]string{
			platform.Apt:    "build-essential",
			platform.Dnf:    "gcc",
			platform.Pacman: "base-devel",
			platform.Zypper: "gcc",
			platform.Apk:    "build-base",
			// macOS compilers come from the Xcode command line tools, which
			// ship clang; the command check covers them.
		},
	},
	{
		Name:     "pkg-config",
		Commands: []string{"pkg-config", "pkgconf"},
		Packages: map[platform.PackageManager]string{
			platform.Apt:    "pkg-config",
			platform.Dnf:    "pkgconf-pkg-config",
			platform.Pacman: "pkgconf",
			platform.Zypper: "pkg-config",
			platform.Apk:    "pkgconf",
			platform.Brew:   "pkg-config",
		},
	},
	{
		Name: "tls-dev-headers",
		Packages: map[platform.PackageManager]string{
			platform.Apt:    "libssl-dev",
			platform.Dnf:    "openssl-devel",
			platform.Pacman: "openssl",
			platform.Zypper: "libopenssl-devel",
			platform.Apk:    "openssl-dev",
			platform.Brew:   "openssl@3",
		},
		Headers: []string{
			"/usr/include/openssl/ssl.h",
			"/usr/local/include/openssl/ssl.h",
			"/opt/homebrew/include/openssl/ssl.h",
		},
	},
}

// installArgs builds the package-manager install invocation for a set of
// packages. Exactly one transaction per run.
func installArgs(pm platform.PackageManager, packages []string) (string, []string) {
	switch pm {
	case platform.Apt:
		return "apt-get", append([]string{"install", "-y"}, packages...)
	case platform.Dnf:
		return "dnf", append([]string{"install", "-y"}, packages...)
	case platform.Pacman:
		return "pacman", append([]string{"-S", "--noconfirm", "--needed"}, packages...)
	case platform.Zypper:
		return "zypper", append([]string{"--non-interactive", "install"}, packages...)
	case platform.Apk:
		return "apk", append([]string{"add"}, packages...)
	case platform.Brew:
		return "brew", append([]string{"install"}, packages...)
	}
	return "", nil
}

// queryArgs builds the package-database query for a single package.
func queryArgs(pm platform.PackageManager, pkg string) (string, []string) {
	switch pm {
	case platform.Apt:
		return "dpkg", []string{"-s", pkg}
	case platform.Dnf, platform.Zypper:
		return "rpm", []string{"-q", pkg}
	case platform.Pacman:
		return "pacman", []string{"-Qi", pkg}
	case platform.Apk:
		return "apk", []string{"info", "-e", pkg}
	case platform.Brew:
		return "brew", []string{"list", "--versions", pkg}
	}
	return "", nil
}
