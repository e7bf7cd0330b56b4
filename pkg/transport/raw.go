package transport

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/packet"
)

// IPv4RawChannel sends pre-built IPv4 datagrams (our own header
// included) over an IP_HDRINCL raw socket via golang.org/x/net/ipv4's
// RawConn, which understands our hand-built header well enough to hand
// it to the kernel without re-deriving it.
type IPv4RawChannel struct {
	pc   net.PacketConn
	conn *ipv4.RawConn
}

// NewIPv4RawChannel opens an IPv4 raw socket bound to no single
// protocol (the kernel delivers nothing back to us; we only write).
func NewIPv4RawChannel() (*IPv4RawChannel, error) {
	pc, err := net.ListenPacket("ip4:raw", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("transport: open ipv4 raw socket: %w", err)
	}
	rc, err := ipv4.NewRawConn(pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("transport: wrap ipv4 raw conn: %w", err)
	}
	return &IPv4RawChannel{pc: pc, conn: rc}, nil
}

func (c *IPv4RawChannel) Send(buf []byte, target *packet.Target) error {
	if len(buf) < 20 {
		return fmt.Errorf("transport: buffer too small for an IPv4 header")
	}
	header, err := ipv4.ParseHeader(buf[:20])
	if err != nil {
		return fmt.Errorf("transport: parse pre-built IPv4 header: %w", err)
	}
	return c.conn.WriteTo(header, buf[20:], nil)
}

func (c *IPv4RawChannel) Available() bool { return c.pc != nil }
func (c *IPv4RawChannel) Name() string    { return "ipv4" }

func (c *IPv4RawChannel) Close() error {
	if c.pc == nil {
		return nil
	}
	err := c.pc.Close()
	c.pc = nil
	return err
}

// IPv6RawChannel sends pre-built IPv6 datagrams over a raw socket with
// IPV6_HDRINCL set, so our hand-computed hop limit and flow label reach
// the wire unmodified instead of being overwritten by the kernel's
// per-socket defaults.
type IPv6RawChannel struct {
	fd int
}

// NewIPv6RawChannel opens an AF_INET6 SOCK_RAW socket with
// IPV6_HDRINCL enabled.
func NewIPv6RawChannel() (*IPv6RawChannel, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("transport: open ipv6 raw socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: set IPV6_HDRINCL: %w", err)
	}
	return &IPv6RawChannel{fd: fd}, nil
}

func (c *IPv6RawChannel) Send(buf []byte, target *packet.Target) error {
	var addr unix.SockaddrInet6
	copy(addr.Addr[:], target.IP.To16())
	return unix.Sendto(c.fd, buf, 0, &addr)
}

func (c *IPv6RawChannel) Available() bool { return c.fd >= 0 }
func (c *IPv6RawChannel) Name() string    { return "ipv6" }

func (c *IPv6RawChannel) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

// Layer2Channel sends raw Ethernet frames over an AF_PACKET socket,
// used for ARP requests the Builder emits as a bare 28-byte payload —
// this channel owns the Ethernet framing the builder deliberately
// leaves out.
type Layer2Channel struct {
	fd     int
	ifIdx  int
	srcMAC net.HardwareAddr
}

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

const etherTypeARP = 0x0806

// NewLayer2Channel opens an AF_PACKET raw socket bound to the named
// interface.
func NewLayer2Channel(ifaceName string) (*Layer2Channel, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve interface %q: %w", ifaceName, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(etherTypeARP)))
	if err != nil {
		return nil, fmt.Errorf("transport: open layer2 raw socket: %w", err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(etherTypeARP),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: bind layer2 socket to %q: %w", ifaceName, err)
	}

	return &Layer2Channel{fd: fd, ifIdx: iface.Index, srcMAC: iface.HardwareAddr}, nil
}

func (c *Layer2Channel) Send(buf []byte, target *packet.Target) error {
	frame := make([]byte, 14+len(buf))
	copy(frame[0:6], broadcastMAC)
	copy(frame[6:12], c.srcMAC)
	binary.BigEndian.PutUint16(frame[12:14], etherTypeARP)
	copy(frame[14:], buf)

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(etherTypeARP),
		Ifindex:  c.ifIdx,
		Halen:    6,
	}
	copy(sa.Addr[:6], broadcastMAC)
	return unix.Sendto(c.fd, frame, 0, sa)
}

func (c *Layer2Channel) Available() bool { return c.fd >= 0 }
func (c *Layer2Channel) Name() string    { return "layer2" }

func (c *Layer2Channel) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

func htons(v uint16) uint16 {
	return (v<<8)&0xff00 | (v>>8)&0x00ff
}
