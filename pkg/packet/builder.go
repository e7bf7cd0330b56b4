// Package packet synthesizes wire-format bytes for every PacketType the
// protocol package defines: IPv4/IPv6 headers, UDP/TCP/ICMP transport
// headers, and a bare ARP request, with checksums computed per RFC.
package packet

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
)

// ErrorKind distinguishes why BuildInto/Build failed.
type ErrorKind int

const (
	BufferTooSmall ErrorKind = iota
	InvalidCombination
)

// BuildError reports a builder failure. Per the buffer semantics, a
// BufferTooSmall error means nothing was written to the destination
// buffer.
type BuildError struct {
	Kind    ErrorKind
	Message string
}

func (e *BuildError) Error() string { return e.Message }

// minHeaderBytes is the smallest buffer BuildInto will accept for each
// kind: fixed headers with no payload.
var minHeaderBytes = map[protocol.PacketType]int{
	protocol.PacketUDP:      20 + 8,
	protocol.PacketTCPSyn:   20 + 20,
	protocol.PacketTCPAck:   20 + 20,
	protocol.PacketTCPFin:   20 + 20,
	protocol.PacketTCPRst:   20 + 20,
	protocol.PacketICMP:     20 + 8,
	protocol.PacketUDPv6:    40 + 8,
	protocol.PacketTCPSynv6: 40 + 20,
	protocol.PacketICMPv6:   40 + 8,
	protocol.PacketARP:      28,
}

// Builder produces packet bytes using a per-worker seeded RNG. A
// Builder is owned by exactly one worker and must never be shared —
// the RNG has no internal locking, matching the rest of this module's
// "exclusive ownership, no cross-worker coordination" posture.
type Builder struct {
	rng        *rand.Rand
	sourceIPv4 net.IP
	sourceIPv6 net.IP
	sourceMAC  net.HardwareAddr
}

// NewBuilder constructs a Builder seeded with seed. sourceIPv4/sourceIPv6
// are the resolved interface addresses used as packet source fields (and,
// for ARP, sourceMAC is the sender hardware address); either IP may be
// nil if the interface lacks that family, in which case building a
// packet of the missing family fails with InvalidCombination.
func NewBuilder(seed int64, sourceIPv4, sourceIPv6 net.IP, sourceMAC net.HardwareAddr) *Builder {
	return &Builder{
		rng:        rand.New(rand.NewSource(seed)), //nolint:gosec
		sourceIPv4: sourceIPv4,
		sourceIPv6: sourceIPv6,
		sourceMAC:  sourceMAC,
	}
}

// Build is the allocating variant of BuildInto: it returns an owned
// byte slice sized exactly to bytes_written. Build and BuildInto MUST
// produce identical bytes for identical inputs and RNG state — Build is
// implemented directly in terms of BuildInto over a max-size scratch
// buffer to guarantee that by construction.
func (b *Builder) Build(kind protocol.PacketType, target *Target, sizeRange protocol.SizeRange) ([]byte, string, error) {
	scratch := make([]byte, 1500)
	n, family, err := b.BuildInto(scratch, kind, target, sizeRange)
	if err != nil {
		return nil, "", err
	}
	out := make([]byte, n)
	copy(out, scratch[:n])
	return out, family, nil
}

// BuildInto writes a PacketType kind's wire-format bytes into buf,
// returning (bytes_written, protocol_family). If buf is smaller than
// the smallest header set for kind, BuildInto fails with
// BufferTooSmall and writes nothing. If kind's family doesn't match
// target's family (e.g. an IPv4-only kind against an IPv6 target),
// BuildInto fails with InvalidCombination.
func (b *Builder) BuildInto(buf []byte, kind protocol.PacketType, target *Target, sizeRange protocol.SizeRange) (int, string, error) {
	if kind.Family() != target.Family() && kind != protocol.PacketARP {
		return 0, "", &BuildError{InvalidCombination, fmt.Sprintf(
			"packet: %s packet kind is incompatible with target family", kind)}
	}

	minLen, ok := minHeaderBytes[kind]
	if !ok {
		return 0, "", &BuildError{InvalidCombination, fmt.Sprintf("packet: unknown kind %v", kind)}
	}
	if len(buf) < minLen {
		return 0, "", &BuildError{BufferTooSmall, fmt.Sprintf(
			"packet: buffer of %d bytes is smaller than the %d-byte minimum for %s", len(buf), minLen, kind)}
	}

	switch kind {
	case protocol.PacketUDP:
		return b.buildUDPv4(buf, target, sizeRange)
	case protocol.PacketTCPSyn:
		return b.buildTCPv4(buf, target, sizeRange, tcpFlagSYN)
	case protocol.PacketTCPAck:
		return b.buildTCPv4(buf, target, sizeRange, tcpFlagACK)
	case protocol.PacketTCPFin:
		return b.buildTCPv4(buf, target, sizeRange, tcpFlagFIN)
	case protocol.PacketTCPRst:
		return b.buildTCPv4(buf, target, sizeRange, tcpFlagRST)
	case protocol.PacketICMP:
		return b.buildICMPv4(buf, target, sizeRange)
	case protocol.PacketUDPv6:
		return b.buildUDPv6(buf, target, sizeRange)
	case protocol.PacketTCPSynv6:
		return b.buildTCPv6(buf, target, sizeRange, tcpFlagSYN)
	case protocol.PacketICMPv6:
		return b.buildICMPv6(buf, target)
	case protocol.PacketARP:
		return b.buildARP(buf, target)
	default:
		return 0, "", &BuildError{InvalidCombination, fmt.Sprintf("packet: unbuildable kind %v", kind)}
	}
}

// --- shared field generators -------------------------------------------------

const (
	tcpFlagFIN = 1 << 0
	tcpFlagSYN = 1 << 1
	tcpFlagRST = 1 << 2
	tcpFlagACK = 1 << 4
)

var tcpWindowSizes = [...]uint16{8192, 16384, 32768, 65535}

func (b *Builder) randTTL() byte        { return byte(32 + b.rng.Intn(128-32)) }
func (b *Builder) randHopLimit() byte   { return byte(32 + b.rng.Intn(128-32)) }
func (b *Builder) randIdentification() uint16 { return uint16(b.rng.Intn(65536)) }
func (b *Builder) randSourcePort() uint16     { return uint16(1024 + b.rng.Intn(65535-1024)) }
func (b *Builder) randSeq() uint32            { return b.rng.Uint32() }
func (b *Builder) randWindow() uint16         { return tcpWindowSizes[b.rng.Intn(len(tcpWindowSizes))] }
func (b *Builder) randFlowLabel() uint32      { return b.rng.Uint32() & 0xFFFFF }
func (b *Builder) randPayloadLen(r protocol.SizeRange, overhead int) int {
	total := r.Min + b.rng.Intn(r.Max-r.Min+1)
	payload := total - overhead
	if payload < 0 {
		payload = 0
	}
	return payload
}

func (b *Builder) fillRandom(p []byte) {
	for i := range p {
		p[i] = byte(b.rng.Intn(256))
	}
}

func to4(ip net.IP) [4]byte {
	var a [4]byte
	copy(a[:], ip.To4())
	return a
}

func to16(ip net.IP) [16]byte {
	var a [16]byte
	copy(a[:], ip.To16())
	return a
}

// --- IPv4 family --------------------------------------------------------------

const (
	protoICMP = 1
	protoTCP  = 6
	protoUDP  = 17
)

// writeIPv4Header writes a 20-byte IPv4 header (no options) into buf,
// including its header checksum.
func (b *Builder) writeIPv4Header(buf []byte, dst net.IP, proto byte, totalLen uint16) {
	buf[0] = 0x45 // version=4, IHL=5
	buf[1] = 0    // DSCP/ECN
	binary.BigEndian.PutUint16(buf[2:4], totalLen)
	binary.BigEndian.PutUint16(buf[4:6], b.randIdentification())
	binary.BigEndian.PutUint16(buf[6:8], 0) // flags=0 (DF cleared), fragment offset 0
	buf[8] = b.randTTL()
	buf[9] = proto
	binary.BigEndian.PutUint16(buf[10:12], 0) // checksum placeholder

	src := to4(b.sourceIPv4)
	copy(buf[12:16], src[:])
	d := to4(dst)
	copy(buf[16:20], d[:])

	cksum := checksum16(buf[0:20])
	binary.BigEndian.PutUint16(buf[10:12], cksum)
}

func (b *Builder) buildUDPv4(buf []byte, target *Target, sizeRange protocol.SizeRange) (int, string, error) {
	if b.sourceIPv4 == nil {
		return 0, "", &BuildError{InvalidCombination, "packet: no IPv4 source address configured"}
	}
	payloadLen := b.randPayloadLen(sizeRange, 20+8)
	total := 20 + 8 + payloadLen
	if total > len(buf) {
		return 0, "", &BuildError{BufferTooSmall, "packet: buffer too small for requested payload size"}
	}

	udp := buf[20 : 20+8+payloadLen]
	srcPort := b.randSourcePort()
	dstPort := uint16(target.NextPort())
	binary.BigEndian.PutUint16(udp[0:2], srcPort)
	binary.BigEndian.PutUint16(udp[2:4], dstPort)
	binary.BigEndian.PutUint16(udp[4:6], uint16(8+payloadLen))
	binary.BigEndian.PutUint16(udp[6:8], 0) // checksum placeholder
	b.fillRandom(udp[8:])

	pseudo := ipv4PseudoHeader(to4(b.sourceIPv4), to4(target.IP), protoUDP, uint16(8+payloadLen))
	cksum := udpChecksum(transportChecksumZeroed(pseudo, udp))
	binary.BigEndian.PutUint16(udp[6:8], cksum)

	b.writeIPv4Header(buf, target.IP, protoUDP, uint16(total))
	return total, "UDP", nil
}

func (b *Builder) buildTCPv4(buf []byte, target *Target, sizeRange protocol.SizeRange, flags byte) (int, string, error) {
	if b.sourceIPv4 == nil {
		return 0, "", &BuildError{InvalidCombination, "packet: no IPv4 source address configured"}
	}
	payloadLen := b.randPayloadLen(sizeRange, 20+20)
	total := 20 + 20 + payloadLen
	if total > len(buf) {
		return 0, "", &BuildError{BufferTooSmall, "packet: buffer too small for requested payload size"}
	}

	tcp := buf[20 : 20+20+payloadLen]
	srcPort := b.randSourcePort()
	dstPort := uint16(target.NextPort())
	binary.BigEndian.PutUint16(tcp[0:2], srcPort)
	binary.BigEndian.PutUint16(tcp[2:4], dstPort)
	binary.BigEndian.PutUint32(tcp[4:8], b.randSeq())
	binary.BigEndian.PutUint32(tcp[8:12], b.randSeq())
	tcp[12] = 5 << 4 // data offset = 5 (no options)
	tcp[13] = flags
	binary.BigEndian.PutUint16(tcp[14:16], b.randWindow())
	binary.BigEndian.PutUint16(tcp[16:18], 0) // checksum placeholder
	binary.BigEndian.PutUint16(tcp[18:20], 0) // urgent pointer
	b.fillRandom(tcp[20:])

	pseudo := ipv4PseudoHeader(to4(b.sourceIPv4), to4(target.IP), protoTCP, uint16(len(tcp)))
	cksum := transportChecksumZeroed(pseudo, tcp)
	binary.BigEndian.PutUint16(tcp[16:18], cksum)

	b.writeIPv4Header(buf, target.IP, protoTCP, uint16(total))
	return total, "TCP", nil
}

func (b *Builder) buildICMPv4(buf []byte, target *Target, sizeRange protocol.SizeRange) (int, string, error) {
	if b.sourceIPv4 == nil {
		return 0, "", &BuildError{InvalidCombination, "packet: no IPv4 source address configured"}
	}
	payloadLen := b.randPayloadLen(sizeRange, 20+8)
	total := 20 + 8 + payloadLen
	if total > len(buf) {
		return 0, "", &BuildError{BufferTooSmall, "packet: buffer too small for requested payload size"}
	}
	icmp := buf[20:total]
	icmp[0] = 8 // type = Echo Request
	icmp[1] = 0 // code
	binary.BigEndian.PutUint16(icmp[2:4], 0) // checksum placeholder
	binary.BigEndian.PutUint16(icmp[4:6], uint16(b.rng.Intn(65536)))
	binary.BigEndian.PutUint16(icmp[6:8], uint16(b.rng.Intn(65536)))
	b.fillRandom(icmp[8:])
	cksum := checksum16(icmp)
	binary.BigEndian.PutUint16(icmp[2:4], cksum)

	b.writeIPv4Header(buf, target.IP, protoICMP, uint16(total))
	return total, "ICMP", nil
}

// --- IPv6 family --------------------------------------------------------------

const (
	nextHeaderICMPv6 = 58
	nextHeaderTCP    = 6
	nextHeaderUDP    = 17
)

func (b *Builder) writeIPv6Header(buf []byte, dst net.IP, nextHeader byte, payloadLen uint16) {
	vtf := uint32(6)<<28 | b.randFlowLabel()
	binary.BigEndian.PutUint32(buf[0:4], vtf)
	binary.BigEndian.PutUint16(buf[4:6], payloadLen)
	buf[6] = nextHeader
	buf[7] = b.randHopLimit()

	src := to16(b.sourceIPv6)
	copy(buf[8:24], src[:])
	d := to16(dst)
	copy(buf[24:40], d[:])
}

func (b *Builder) buildUDPv6(buf []byte, target *Target, sizeRange protocol.SizeRange) (int, string, error) {
	if b.sourceIPv6 == nil {
		return 0, "", &BuildError{InvalidCombination, "packet: no IPv6 source address configured"}
	}
	payloadLen := b.randPayloadLen(sizeRange, 40+8)
	total := 40 + 8 + payloadLen
	if total > len(buf) {
		return 0, "", &BuildError{BufferTooSmall, "packet: buffer too small for requested payload size"}
	}

	udp := buf[40 : 40+8+payloadLen]
	srcPort := b.randSourcePort()
	dstPort := uint16(target.NextPort())
	binary.BigEndian.PutUint16(udp[0:2], srcPort)
	binary.BigEndian.PutUint16(udp[2:4], dstPort)
	binary.BigEndian.PutUint16(udp[4:6], uint16(8+payloadLen))
	binary.BigEndian.PutUint16(udp[6:8], 0)
	b.fillRandom(udp[8:])

	pseudo := ipv6PseudoHeader(to16(b.sourceIPv6), to16(target.IP), nextHeaderUDP, uint32(8+payloadLen))
	cksum := udpChecksum(transportChecksumZeroed(pseudo, udp))
	binary.BigEndian.PutUint16(udp[6:8], cksum)

	b.writeIPv6Header(buf, target.IP, nextHeaderUDP, uint16(8+payloadLen))
	return total, "IPv6", nil
}

func (b *Builder) buildTCPv6(buf []byte, target *Target, sizeRange protocol.SizeRange, flags byte) (int, string, error) {
	if b.sourceIPv6 == nil {
		return 0, "", &BuildError{InvalidCombination, "packet: no IPv6 source address configured"}
	}
	payloadLen := b.randPayloadLen(sizeRange, 40+20)
	total := 40 + 20 + payloadLen
	if total > len(buf) {
		return 0, "", &BuildError{BufferTooSmall, "packet: buffer too small for requested payload size"}
	}

	tcp := buf[40 : 40+20+payloadLen]
	srcPort := b.randSourcePort()
	dstPort := uint16(target.NextPort())
	binary.BigEndian.PutUint16(tcp[0:2], srcPort)
	binary.BigEndian.PutUint16(tcp[2:4], dstPort)
	binary.BigEndian.PutUint32(tcp[4:8], b.randSeq())
	binary.BigEndian.PutUint32(tcp[8:12], b.randSeq())
	tcp[12] = 5 << 4
	tcp[13] = flags
	binary.BigEndian.PutUint16(tcp[14:16], b.randWindow())
	binary.BigEndian.PutUint16(tcp[16:18], 0)
	binary.BigEndian.PutUint16(tcp[18:20], 0)
	b.fillRandom(tcp[20:])

	pseudo := ipv6PseudoHeader(to16(b.sourceIPv6), to16(target.IP), nextHeaderTCP, uint32(len(tcp)))
	cksum := transportChecksumZeroed(pseudo, tcp)
	binary.BigEndian.PutUint16(tcp[16:18], cksum)

	b.writeIPv6Header(buf, target.IP, nextHeaderTCP, uint16(len(tcp)))
	return total, "IPv6", nil
}

func (b *Builder) buildICMPv6(buf []byte, target *Target) (int, string, error) {
	if b.sourceIPv6 == nil {
		return 0, "", &BuildError{InvalidCombination, "packet: no IPv6 source address configured"}
	}
	total := 40 + 8
	icmp := buf[40:48]
	icmp[0] = 128 // ICMPv6 Echo Request
	icmp[1] = 0
	binary.BigEndian.PutUint16(icmp[2:4], 0)
	binary.BigEndian.PutUint16(icmp[4:6], uint16(b.rng.Intn(65536)))
	binary.BigEndian.PutUint16(icmp[6:8], uint16(b.rng.Intn(65536)))

	pseudo := ipv6PseudoHeader(to16(b.sourceIPv6), to16(target.IP), nextHeaderICMPv6, 8)
	cksum := transportChecksumZeroed(pseudo, icmp)
	binary.BigEndian.PutUint16(icmp[2:4], cksum)

	b.writeIPv6Header(buf, target.IP, nextHeaderICMPv6, 8)
	return total, "IPv6", nil
}

// --- ARP ------------------------------------------------------------------

// buildARP writes the bare 28-byte ARP request described in the wire
// format notes: no Ethernet framing (a Layer-2 channel adds that),
// hardware=Ethernet, protocol=IPv4, opcode=request, sender hardware
// from the resolved interface, target hardware all-zero.
func (b *Builder) buildARP(buf []byte, target *Target) (int, string, error) {
	if b.sourceMAC == nil || len(b.sourceMAC) != 6 {
		return 0, "", &BuildError{InvalidCombination, "packet: no interface MAC configured for ARP"}
	}
	if b.sourceIPv4 == nil {
		return 0, "", &BuildError{InvalidCombination, "packet: no IPv4 source address configured for ARP"}
	}

	binary.BigEndian.PutUint16(buf[0:2], 1)      // hardware type = Ethernet
	binary.BigEndian.PutUint16(buf[2:4], 0x0800) // protocol type = IPv4
	buf[4] = 6                                    // hardware address length
	buf[5] = 4                                    // protocol address length
	binary.BigEndian.PutUint16(buf[6:8], 1)      // opcode = request

	copy(buf[8:14], b.sourceMAC)
	src := to4(b.sourceIPv4)
	copy(buf[14:18], src[:])
	for i := 18; i < 24; i++ {
		buf[i] = 0 // target hardware address, unknown
	}
	d := to4(target.IP)
	copy(buf[24:28], d[:])

	return 28, "ARP", nil
}

// transportChecksumZeroed computes a transport checksum. Callers must
// have already written zero into segment's checksum field — checksum16
// relies on that field reading 0 while summing.
func transportChecksumZeroed(pseudoHeader, segment []byte) uint16 {
	return transportChecksum(pseudoHeader, segment)
}

// udpChecksum maps a computed UDP checksum of 0 to the wire value 0xFFFF.
// A computed 0 means "no checksum" for IPv4 (RFC 768) and is invalid for
// IPv6, where UDP checksums are mandatory (RFC 8200 §8.1); both cases are
// transmitted as 0xFFFF, which is itself never a valid computed checksum.
func udpChecksum(sum uint16) uint16 {
	if sum == 0 {
		return 0xFFFF
	}
	return sum
}
