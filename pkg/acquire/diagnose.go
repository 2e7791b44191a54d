// pkg/acquire/diagnose.go

package acquire

import (
	"strings"
)

// Cause classifies an acquisition failure so the operator gets an actionable
// hint, not just an exhausted-retries message.
type Cause int

const (
	CauseUnknown Cause = iota
	CauseDNS
	CauseConnectionRefused
	CauseDiskFull
	CauseTimeout
	CausePermission
	CauseNotFound
)

func (c Cause) String() string {
	switch c {
	case CauseDNS:
		return "dns-resolution"
	case CauseConnectionRefused:
		return "connection-refused"
	case CauseDiskFull:
		return "disk-full"
	case CauseTimeout:
		return "timeout"
	case CausePermission:
		return "permission-denied"
	case CauseNotFound:
		return "not-found"
	}
	return "unknown"
}

// Hint returns the remediation suggestion for this cause.
func (c Cause) Hint() string {
	switch c {
	case CauseDNS:
		return "DNS resolution failed. Check your network connection and any proxy or VPN settings."
	case CauseConnectionRefused:
		return "The release server refused the connection. Check firewall rules, or try again later."
	case CauseDiskFull:
		return "The disk is full. Free up space (check df -h) and re-run."
	case CauseTimeout:
		return "The download timed out. Check your connection speed, or try again on a faster network."
	case CausePermission:
		return "Permission was denied writing the download. Check ownership of the temp and install directories."
	case CauseNotFound:
		return "No matching release asset exists upstream. A source build will be used instead."
	}
	return "The download failed for an unrecognized reason. Re-running may help; check the log for details."
}

// Diagnose pattern-matches the error text to attribute the failure. Coarse
// by design: it feeds an operator hint, not control flow.
func Diagnose(err error) Cause {
	if err == nil {
		return CauseUnknown
	}
	text := strings.ToLower(err.Error())

	switch {
	case strings.Contains(text, "no such host") ||
		strings.Contains(text, "server misbehaving") ||
		strings.Contains(text, "dns"):
		return CauseDNS
	case strings.Contains(text, "connection refused") ||
		strings.Contains(text, "connection reset"):
		return CauseConnectionRefused
	case strings.Contains(text, "no space left on device") ||
		strings.Contains(text, "disk full") ||
		strings.Contains(text, "file too large"):
		return CauseDiskFull
	case strings.Contains(text, "context deadline exceeded") ||
		strings.Contains(text, "timeout") ||
		strings.Contains(text, "timed out"):
		return CauseTimeout
	case strings.Contains(text, "permission denied") ||
		strings.Contains(text, "operation not permitted"):
		return CausePermission
	case strings.Contains(text, "404") ||
		strings.Contains(text, "not found"):
		return CauseNotFound
	}
	return CauseUnknown
}
