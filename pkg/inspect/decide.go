// pkg/inspect/decide.go

package inspect

import (
	goversion "github.com/hashicorp/go-version"
)

// Outcome is the pre-flight decision for this run.
type Outcome int

const (
	// ProceedFresh - nothing installed, full install.
	ProceedFresh Outcome = iota
	// ProceedRepair - partial install found, full install repairs it.
	ProceedRepair
	// ProceedReinstall - everything present but --force was given.
	ProceedReinstall
	// CheckForUpdate - everything present and current as far as we know
	// locally; an interactive run may query the release index and offer an
	// upgrade.
	CheckForUpdate
	// AlreadyCurrent - everything present, no update check allowed; no-op
	// success.
	AlreadyCurrent
)

func (o Outcome) String() string {
	switch o {
	case ProceedFresh:
		return "fresh install"
	case ProceedRepair:
		return "repair partial install"
	case ProceedReinstall:
		return "forced reinstall"
	case CheckForUpdate:
		return "check for update"
	case AlreadyCurrent:
		return "already current"
	}
	return "unknown"
}

// Decide applies the pre-flight decision table. promptsAllowed means an
// interactive terminal with no CI markers; without it no network update
// check and no prompt ever happens.
func Decide(existing *ExistingInstallation, force, promptsAllowed bool) Outcome {
	switch {
	case !existing.AnyPresent():
		return ProceedFresh
	case !existing.AllPresent():
		return ProceedRepair
	case force:
		return ProceedReinstall
	case !promptsAllowed:
		return AlreadyCurrent
	default:
		return CheckForUpdate
	}
}

// UpdateAvailable compares the installed version against the latest release
// tag using strict greater-than semantics; an equal version is current.
func UpdateAvailable(installed, latest *goversion.Version) bool {
	if installed == nil || latest == nil {
		return false
	}
	return latest.GreaterThan(installed)
}
