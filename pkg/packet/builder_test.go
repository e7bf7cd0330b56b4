package packet

import (
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
)

func testBuilder(seed int64) *Builder {
	mac, _ := net.ParseMAC("02:00:00:00:00:01")
	return NewBuilder(seed, net.ParseIP("10.0.0.5"), net.ParseIP("fd00::5"), mac)
}

func TestBuildIntoSizeWithinRange(t *testing.T) {
	sizeRange := protocol.SizeRange{Min: 64, Max: 256}
	target := NewTarget(net.ParseIP("10.0.0.1"), []int{80})
	buf := make([]byte, 1500)

	for _, kind := range []protocol.PacketType{
		protocol.PacketUDP, protocol.PacketTCPSyn, protocol.PacketTCPAck,
		protocol.PacketTCPFin, protocol.PacketTCPRst, protocol.PacketICMP,
	} {
		b := testBuilder(1)
		n, family, err := b.BuildInto(buf, kind, target, sizeRange)
		require.NoError(t, err, "kind=%v", kind)
		require.NotEmpty(t, family)
		require.GreaterOrEqual(t, n, sizeRange.Min)
		require.LessOrEqual(t, n, sizeRange.Max)
	}
}

func TestBuildIntoBufferTooSmall(t *testing.T) {
	target := NewTarget(net.ParseIP("10.0.0.1"), []int{80})
	b := testBuilder(1)
	tiny := make([]byte, 4)
	_, _, err := b.BuildInto(tiny, protocol.PacketUDP, target, protocol.SizeRange{Min: 64, Max: 128})
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	require.Equal(t, BufferTooSmall, be.Kind)
}

func TestBuildIntoInvalidCombination(t *testing.T) {
	target := NewTarget(net.ParseIP("fd00::1"), []int{80})
	b := testBuilder(1)
	buf := make([]byte, 1500)
	_, _, err := b.BuildInto(buf, protocol.PacketUDP, target, protocol.SizeRange{Min: 64, Max: 128})
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	require.Equal(t, InvalidCombination, be.Kind)
}

func TestBuildAndBuildIntoAgree(t *testing.T) {
	target := NewTarget(net.ParseIP("10.0.0.1"), []int{80})
	sizeRange := protocol.SizeRange{Min: 64, Max: 128}

	b1 := testBuilder(42)
	allocated, _, err := b1.Build(protocol.PacketTCPSyn, target, sizeRange)
	require.NoError(t, err)

	b2 := testBuilder(42)
	buf := make([]byte, 1500)
	n, _, err := b2.BuildInto(buf, protocol.PacketTCPSyn, NewTarget(net.ParseIP("10.0.0.1"), []int{80}), sizeRange)
	require.NoError(t, err)

	require.Equal(t, buf[:n], allocated)
}

func TestBuildDeterministicGivenSameSeed(t *testing.T) {
	sizeRange := protocol.SizeRange{Min: 64, Max: 128}

	b1 := testBuilder(7)
	a, _, err := b1.Build(protocol.PacketUDP, NewTarget(net.ParseIP("10.0.0.1"), []int{443}), sizeRange)
	require.NoError(t, err)

	b2 := testBuilder(7)
	bb, _, err := b2.Build(protocol.PacketUDP, NewTarget(net.ParseIP("10.0.0.1"), []int{443}), sizeRange)
	require.NoError(t, err)

	require.Equal(t, a, bb)
}

func TestRoundTripUDPv4(t *testing.T) {
	b := testBuilder(1)
	target := NewTarget(net.ParseIP("10.0.0.1"), []int{53})
	out, _, err := b.Build(protocol.PacketUDP, target, protocol.SizeRange{Min: 64, Max: 128})
	require.NoError(t, err)

	pkt := gopacket.NewPacket(out, layers.LayerTypeIPv4, gopacket.Default)
	ipLayer := pkt.Layer(layers.LayerTypeIPv4)
	require.NotNil(t, ipLayer)
	ip := ipLayer.(*layers.IPv4)
	require.Equal(t, "10.0.0.1", ip.DstIP.String())
	require.Equal(t, layers.IPProtocolUDP, ip.Protocol)

	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	require.NotNil(t, udpLayer)
	udp := udpLayer.(*layers.UDP)
	require.Equal(t, layers.UDPPort(53), udp.DstPort)
}

func TestRoundTripTCPSynFlags(t *testing.T) {
	b := testBuilder(2)
	target := NewTarget(net.ParseIP("10.0.0.1"), []int{80})
	out, _, err := b.Build(protocol.PacketTCPSyn, target, protocol.SizeRange{Min: 64, Max: 128})
	require.NoError(t, err)

	pkt := gopacket.NewPacket(out, layers.LayerTypeIPv4, gopacket.Default)
	tcpLayer := pkt.Layer(layers.LayerTypeTCP)
	require.NotNil(t, tcpLayer)
	tcp := tcpLayer.(*layers.TCP)
	require.True(t, tcp.SYN)
	require.False(t, tcp.ACK)
	require.Equal(t, layers.TCPPort(80), tcp.DstPort)
}

func TestRoundTripICMPv4(t *testing.T) {
	b := testBuilder(3)
	target := NewTarget(net.ParseIP("10.0.0.1"), []int{0})
	out, _, err := b.Build(protocol.PacketICMP, target, protocol.SizeRange{Min: 28, Max: 28})
	require.NoError(t, err)

	pkt := gopacket.NewPacket(out, layers.LayerTypeIPv4, gopacket.Default)
	icmpLayer := pkt.Layer(layers.LayerTypeICMPv4)
	require.NotNil(t, icmpLayer)
	icmp := icmpLayer.(*layers.ICMPv4)
	require.Equal(t, layers.ICMPv4TypeEchoRequest, icmp.TypeCode.Type())
}

func TestRoundTripIPv6UDP(t *testing.T) {
	b := testBuilder(4)
	target := NewTarget(net.ParseIP("fd00::1"), []int{53})
	out, _, err := b.Build(protocol.PacketUDPv6, target, protocol.SizeRange{Min: 64, Max: 128})
	require.NoError(t, err)

	pkt := gopacket.NewPacket(out, layers.LayerTypeIPv6, gopacket.Default)
	ipLayer := pkt.Layer(layers.LayerTypeIPv6)
	require.NotNil(t, ipLayer)
	ip := ipLayer.(*layers.IPv6)
	require.Equal(t, "fd00::1", ip.DstIP.String())

	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	require.NotNil(t, udpLayer)
}

func TestRoundTripARP(t *testing.T) {
	b := testBuilder(5)
	target := NewTarget(net.ParseIP("10.0.0.9"), []int{0})
	out, _, err := b.Build(protocol.PacketARP, target, protocol.SizeRange{Min: 28, Max: 28})
	require.NoError(t, err)
	require.Len(t, out, 28)

	pkt := gopacket.NewPacket(out, layers.LayerTypeARP, gopacket.Default)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	require.NotNil(t, arpLayer)
	arp := arpLayer.(*layers.ARP)
	require.Equal(t, net.IP(arp.DstProtAddress).String(), "10.0.0.9")
	require.Equal(t, uint16(layers.ARPRequest), arp.Operation)
}
