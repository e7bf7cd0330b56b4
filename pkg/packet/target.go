package packet

import (
	"net"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
)

// Target pairs a destination address with an ordered, non-empty list of
// ports selected round-robin across sends. A Target is owned by exactly
// one worker for the run's duration — NextPort mutates unguarded state and
// must never be called concurrently from more than one goroutine.
type Target struct {
	IP    net.IP
	Ports []int
	next  int
}

// NewTarget constructs a Target. Panics if ports is empty — callers
// validate this via pkg/safety before a Target is ever built.
func NewTarget(ip net.IP, ports []int) *Target {
	if len(ports) == 0 {
		panic("packet: Target requires at least one port")
	}
	cp := make([]int, len(ports))
	copy(cp, ports)
	return &Target{IP: ip, Ports: cp}
}

// Family reports the target's IP version.
func (t *Target) Family() protocol.Family {
	if t.IP.To4() != nil {
		return protocol.FamilyIPv4
	}
	return protocol.FamilyIPv6
}

// NextPort returns the next port in round-robin order.
func (t *Target) NextPort() int {
	p := t.Ports[t.next]
	t.next = (t.next + 1) % len(t.Ports)
	return p
}

// Clone returns an independent copy suitable for handing to a new
// worker — each worker needs its own round-robin cursor.
func (t *Target) Clone() *Target {
	cp := *t
	cp.Ports = make([]int, len(t.Ports))
	copy(cp.Ports, t.Ports)
	cp.next = 0
	return &cp
}
