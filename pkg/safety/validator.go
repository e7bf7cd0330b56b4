// Package safety gates a run before any packet is built: target address
// classification, parameter bounds, and (outside dry-run) the process's
// ability to open raw sockets at all.
package safety

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrorKind distinguishes the reason a Validate call failed, mirroring
// the taxonomy's Validation/Permission split so callers can pick the
// right exit code without string-matching messages.
type ErrorKind int

const (
	InvalidIPRange ErrorKind = iota
	InvalidPort
	InvalidThreadCount
	InvalidRate
	NoRawSocketAccess
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidIPRange:
		return "InvalidIpRange"
	case InvalidPort:
		return "InvalidPort"
	case InvalidThreadCount:
		return "InvalidThreadCount"
	case InvalidRate:
		return "InvalidRate"
	case NoRawSocketAccess:
		return "NoRawSocketAccess"
	default:
		return "Unknown"
	}
}

// ValidationError reports a single fatal check failure.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Validator accumulates non-fatal warnings alongside the first fatal
// error it encounters, the way the teacher's scenario validator
// separates Warnings from Errors — except here a single Errors entry is
// enough, since a run either passes every check or refuses to start.
type Validator struct {
	Warnings []string
}

// New returns a ready-to-use Validator.
func New() *Validator {
	return &Validator{}
}

// ClassifyTarget returns nil only if addr lies in an allowed private
// range:
//
//	IPv4: 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16
//	IPv6: fe80::/10 (link-local), fc00::/7 (unique-local)
//
// Loopback, multicast, broadcast, unspecified, documentation prefixes,
// and all public unicast space fail with InvalidIPRange.
func ClassifyTarget(addr net.IP) error {
	if addr == nil {
		return &ValidationError{InvalidIPRange, "empty address"}
	}

	if v4 := addr.To4(); v4 != nil {
		for _, cidr := range privateIPv4Ranges {
			if cidr.Contains(v4) {
				return nil
			}
		}
		return &ValidationError{InvalidIPRange, fmt.Sprintf("%s is not in a private IPv4 range", addr)}
	}

	for _, cidr := range privateIPv6Ranges {
		if cidr.Contains(addr) {
			return nil
		}
	}
	return &ValidationError{InvalidIPRange, fmt.Sprintf("%s is not in a private IPv6 range", addr)}
}

var privateIPv4Ranges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
)

var privateIPv6Ranges = mustParseCIDRs(
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, len(cidrs))
	for i, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("safety: invalid built-in CIDR %q: %v", c, err))
		}
		nets[i] = n
	}
	return nets
}

// RunConfig is the subset of run parameters the validator checks.
// Mirrors the shape of config.TargetConfig + config.AttackConfig
// without importing pkg/config, avoiding an import cycle (config
// constructs and validates structurally; safety enforces the domain
// bounds that config alone cannot express).
type RunConfig struct {
	TargetIP   net.IP
	Ports      []int
	Threads    int
	Rate       int // per-worker packets per second
	MaxThreads int // operator-configured ceiling, defaults applied by caller
	MaxRate    int
}

// ValidateRunConfig performs the comprehensive check: address
// classification, port range, thread count, and rate, in that order;
// it returns the first violation found and does not check the rest.
// Aggregate throughput (threads*rate) is reported as a warning, never a
// failure, per the spec's "SHOULD additionally be reported" language.
func (v *Validator) ValidateRunConfig(cfg RunConfig) error {
	v.Warnings = v.Warnings[:0]

	if err := ClassifyTarget(cfg.TargetIP); err != nil {
		return err
	}

	if len(cfg.Ports) == 0 {
		return &ValidationError{InvalidPort, "at least one port is required"}
	}
	for _, p := range cfg.Ports {
		if p < 1 || p > 65535 {
			return &ValidationError{InvalidPort, fmt.Sprintf("port %d out of range [1,65535]", p)}
		}
	}

	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = 100
	}
	if cfg.Threads < 1 || cfg.Threads > maxThreads {
		return &ValidationError{InvalidThreadCount, fmt.Sprintf("threads %d out of range [1,%d]", cfg.Threads, maxThreads)}
	}

	maxRate := cfg.MaxRate
	if maxRate <= 0 {
		maxRate = 10000
	}
	if cfg.Rate < 1 || cfg.Rate > maxRate {
		return &ValidationError{InvalidRate, fmt.Sprintf("rate %d out of range [1,%d]", cfg.Rate, maxRate)}
	}

	if aggregate := cfg.Threads * cfg.Rate; aggregate > 50000 {
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"aggregate rate %d pps (threads=%d * rate=%d) is high; confirm this is intentional",
			aggregate, cfg.Threads, cfg.Rate))
	}

	return nil
}

// CheckSystemRequirements verifies the process can plausibly open raw
// sockets: effective UID 0, or (best effort) CAP_NET_RAW already in the
// effective capability set. dryRun bypasses this check unconditionally
// — dry-run never opens a socket.
func CheckSystemRequirements(dryRun bool) error {
	if dryRun {
		return nil
	}

	if unix.Geteuid() == 0 {
		return nil
	}

	if hasNetRawCapability() {
		return nil
	}

	return &ValidationError{NoRawSocketAccess,
		"raw socket access requires root or CAP_NET_RAW; re-run as root, " +
			"grant the capability (setcap cap_net_raw+ep <binary>), or pass --dry-run"}
}

// hasNetRawCapability makes a best-effort probe by attempting to open an
// AF_INET RAW socket and immediately closing it; it never fabricates a
// capability result by parsing /proc/self/status, which would silently
// diverge from the kernel's real decision on namespaced or
// capability-restricted processes.
func hasNetRawCapability() bool {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return false
	}
	_ = unix.Close(fd)
	return true
}

// HasWarnings reports whether the last ValidateRunConfig call produced
// operator warnings.
func (v *Validator) HasWarnings() bool {
	return len(v.Warnings) > 0
}

// Report renders accumulated warnings as a human-readable block.
func (v *Validator) Report() string {
	if len(v.Warnings) == 0 {
		return "Validation passed with no warnings.\n"
	}
	var sb strings.Builder
	sb.WriteString("WARNINGS:\n")
	for _, w := range v.Warnings {
		sb.WriteString("  - ")
		sb.WriteString(w)
		sb.WriteString("\n")
	}
	return sb.String()
}
