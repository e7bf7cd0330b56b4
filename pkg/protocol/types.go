// Package protocol defines the packet kinds a run can emit and the
// weighted selector that picks one per send, filtered to the address
// family of the current target.
package protocol

import "fmt"

// Family distinguishes the IP version a PacketType targets.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// PacketType enumerates every wire format the builder knows how to
// synthesize. The zero value is intentionally invalid — callers must
// pick one explicitly.
type PacketType int

const (
	PacketUnknown PacketType = iota
	PacketUDP
	PacketTCPSyn
	PacketTCPAck
	PacketTCPFin
	PacketTCPRst
	PacketICMP
	PacketUDPv6
	PacketTCPSynv6
	PacketICMPv6
	PacketARP
)

// allKinds is the fixed alphabet used to size arrays indexed by
// PacketType (e.g. per-protocol stats counters).
var allKinds = [...]PacketType{
	PacketUDP, PacketTCPSyn, PacketTCPAck, PacketTCPFin, PacketTCPRst,
	PacketICMP, PacketUDPv6, PacketTCPSynv6, PacketICMPv6, PacketARP,
}

// Cardinality is the number of valid PacketType values, usable as an
// array bound for per-protocol counters.
const Cardinality = len(allKinds)

// Index returns a dense, zero-based index for p suitable for array
// indexing. Index panics on PacketUnknown since it must never reach the
// hot path.
func (p PacketType) Index() int {
	for i, k := range allKinds {
		if k == p {
			return i
		}
	}
	panic(fmt.Sprintf("protocol: invalid PacketType %d", p))
}

// Family reports which IP version a packet type belongs to. ARP has no
// IP version; it reports FamilyIPv4, the family of the addresses an ARP
// request carries. The selector still offers ARP for IPv6 targets when
// Layer-2 is allowed.
func (p PacketType) Family() Family {
	switch p {
	case PacketUDPv6, PacketTCPSynv6, PacketICMPv6:
		return FamilyIPv6
	default:
		return FamilyIPv4
	}
}

// ProtocolFamily is the coarse grouping used for statistics attribution
// (distinct from Family, the IP version). One of UDP/TCP/ICMP/IPv6/ARP.
func (p PacketType) ProtocolFamily() string {
	switch p {
	case PacketUDP:
		return "UDP"
	case PacketTCPSyn, PacketTCPAck, PacketTCPFin, PacketTCPRst:
		return "TCP"
	case PacketICMP:
		return "ICMP"
	case PacketUDPv6, PacketTCPSynv6, PacketICMPv6:
		return "IPv6"
	case PacketARP:
		return "ARP"
	default:
		return "unknown"
	}
}

func (p PacketType) String() string {
	switch p {
	case PacketUDP:
		return "udp"
	case PacketTCPSyn:
		return "tcp_syn"
	case PacketTCPAck:
		return "tcp_ack"
	case PacketTCPFin:
		return "tcp_fin"
	case PacketTCPRst:
		return "tcp_rst"
	case PacketICMP:
		return "icmp"
	case PacketUDPv6:
		return "udp_v6"
	case PacketTCPSynv6:
		return "tcp_syn_v6"
	case PacketICMPv6:
		return "icmp_v6"
	case PacketARP:
		return "arp"
	default:
		return "unknown"
	}
}

// Names returns the display name of every PacketType in the same dense,
// zero-based order as Index, suitable for pairing with an array indexed
// by PacketType.Index() (e.g. stats.Snapshot.PerProtocol).
func Names() []string {
	names := make([]string, Cardinality)
	for i, k := range allKinds {
		names[i] = k.String()
	}
	return names
}

// ParsePacketType maps a name (e.g. "tcp_syn") to its PacketType.
// Unrecognized names return PacketUnknown, false.
func ParsePacketType(name string) (PacketType, bool) {
	for _, k := range allKinds {
		if k.String() == name {
			return k, true
		}
	}
	return PacketUnknown, false
}

// SizeRange bounds the total length of a built packet (fixed headers
// plus randomized payload). 20 <= Min <= Max <= 1500. A kind whose
// headers exceed the drawn length is emitted header-only; ARP and
// ICMPv6 packets have a fixed size and ignore the range.
type SizeRange struct {
	Min, Max int
}

// Valid reports whether the range obeys its documented bounds.
func (r SizeRange) Valid() bool {
	return r.Min >= 20 && r.Min <= r.Max && r.Max <= 1500
}

// Clamp returns n bounded to [r.Min, r.Max].
func (r SizeRange) Clamp(n int) int {
	if n < r.Min {
		return r.Min
	}
	if n > r.Max {
		return r.Max
	}
	return n
}
