// pkg/platform/platform.go

package platform

import (
	"bufio"
	"os"
	"runtime"
	"strings"

	"github.com/anvil-sh/anvil/pkg/anvil_err"
	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Platform describes the machine anvil is bootstrapping onto. Computed once
// per run and never mutated afterwards.
type Platform struct {
	// OSFamily is the distro ID from /etc/os-release ("ubuntu", "fedora",
	// ...), or "macos" / "windows".
	OSFamily string
	// Like carries ID_LIKE entries ("debian", "rhel fedora", ...) used when
	// OSFamily itself has no package-manager mapping.
	Like []string
	// Arch is the canonical architecture: x86_64, aarch64 or i686.
	Arch string
	// Triple is the release-asset target triple, e.g. x86_64-unknown-linux-gnu.
	Triple string
}

// PackageManager identifies the one OS-native package manager used for
// dependency remediation on this platform.
type PackageManager string

const (
	Apt    PackageManager = "apt"
	Dnf    PackageManager = "dnf"
	Pacman PackageManager = "pacman"
	Zypper PackageManager = "zypper"
	Apk    PackageManager = "apk"
	Brew   PackageManager = "brew"
)

var archNames = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
	"386":   "i686",
}

// osReleasePath is a variable so tests can point detection at a fixture.
var osReleasePath = "/etc/os-release"

// Detect resolves the OS family, architecture and target triple. It reads
// only OS identification files and the runtime environment. Unsupported
// values are fatal and non-retryable.
func Detect(rc *anvil_io.RuntimeContext) (*Platform, error) {
	logger := otelzap.Ctx(rc.Ctx)

	arch, ok := archNames[runtime.GOARCH]
	if !ok {
		return nil, anvil_err.NewPlatformError(
			"Unsupported architecture: "+runtime.GOARCH,
			"anvil supports x86_64, aarch64 and i686 machines",
		)
	}

	p := &Platform{Arch: arch}

	switch runtime.GOOS {
	case "linux":
		id, like, err := parseOSRelease(osReleasePath)
		if err != nil {
			logger.Warn("Could not parse os-release, continuing with generic linux",
				zap.Error(err))
			id = "linux"
		}
		p.OSFamily = id
		p.Like = like
	case "darwin":
		p.OSFamily = "macos"
	case "windows":
		p.OSFamily = "windows"
	default:
		return nil, anvil_err.NewPlatformError(
			"Unsupported operating system: "+runtime.GOOS,
			"anvil supports Linux, macOS and Windows",
		)
	}

	triple, err := tripleFor(runtime.GOOS, arch)
	if err != nil {
		return nil, err
	}
	p.Triple = triple

	logger.Info("Platform detected",
		zap.String("os_family", p.OSFamily),
		zap.Strings("like", p.Like),
		zap.String("arch", p.Arch),
		zap.String("triple", p.Triple),
	)
	return p, nil
}

func tripleFor(goos, arch string) (string, error) {
	switch goos {
	case "linux":
		return arch + "-unknown-linux-gnu", nil
	case "darwin":
		if arch == "i686" {
			return "", anvil_err.NewPlatformError("Unsupported architecture on macOS: i686")
		}
		return arch + "-apple-darwin", nil
	case "windows":
		if arch == "i686" {
			return "", anvil_err.NewPlatformError("Unsupported architecture on Windows: i686")
		}
		return arch + "-pc-windows-msvc", nil
	}
	return "", anvil_err.NewPlatformError("Unsupported operating system: " + goos)
}

// parseOSRelease extracts ID and ID_LIKE from an os-release file.
func parseOSRelease(path string) (id string, like []string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "ID="):
			id = strings.Trim(strings.TrimPrefix(line, "ID="), `"`)
		case strings.HasPrefix(line, "ID_LIKE="):
			raw := strings.Trim(strings.TrimPrefix(line, "ID_LIKE="), `"`)
			like = strings.Fields(raw)
		}
	}
	return id, like, scanner.Err()
}

// managerByFamily maps distro IDs to their package manager. ID_LIKE entries
// resolve through the same table.
var managerByFamily = map[string]PackageManager{
	"debian":    Apt,
	"ubuntu":    Apt,
	"linuxmint": Apt,
	"pop":       Apt,
	"rhel":      Dnf,
	"centos":    Dnf,
	"fedora":    Dnf,
	"rocky":     Dnf,
	"almalinux": Dnf,
	"arch":      Pacman,
	"manjaro":   Pacman,
	"opensuse":  Zypper,
	"sles":      Zypper,
	"suse":      Zypper,
	"alpine":    Apk,
	"macos":     Brew,
}

// Manager resolves the package manager for the platform, trying the distro ID
// first and each ID_LIKE entry after.
func (p *Platform) Manager() (PackageManager, bool) {
	if pm, ok := managerByFamily[p.OSFamily]; ok {
		return pm, true
	}
	for _, like := range p.Like {
		if pm, ok := managerByFamily[like]; ok {
			return pm, true
		}
	}
	// opensuse ships IDs like "opensuse-leap" and "opensuse-tumbleweed"
	if strings.HasPrefix(p.OSFamily, "opensuse") {
		return Zypper, true
	}
	return "", false
}
