package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/packet"
)

func TestMockChannelCountsSends(t *testing.T) {
	ch := NewMockChannel("ipv4", 0, 1)
	target := packet.NewTarget(net.ParseIP("10.0.0.1"), []int{80})
	for i := 0; i < 10; i++ {
		require.NoError(t, ch.Send([]byte("x"), target))
	}
	require.Equal(t, uint64(10), ch.SentCount())
	require.Equal(t, uint64(0), ch.FailedCount())
}

func TestMockChannelInjectsFailures(t *testing.T) {
	ch := NewMockChannel("ipv4", 1.0, 1) // always fail
	target := packet.NewTarget(net.ParseIP("10.0.0.1"), []int{80})
	err := ch.Send([]byte("x"), target)
	require.Error(t, err)
	require.Equal(t, uint64(1), ch.SentCount())
	require.Equal(t, uint64(1), ch.FailedCount())
}

func TestMockChannelCloseIsIdempotent(t *testing.T) {
	ch := NewMockChannel("ipv4", 0, 1)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	require.False(t, ch.Available())
}

func TestDispatcherUnavailableChannel(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	target := packet.NewTarget(net.ParseIP("10.0.0.1"), []int{80})
	err := d.Send(KindIPv4, []byte("x"), target)
	require.Error(t, err)
	var ue *ErrChannelUnavailable
	require.ErrorAs(t, err, &ue)
	require.Equal(t, KindIPv4, ue.Kind)
}

func TestDispatcherRoutesToOpenChannel(t *testing.T) {
	mock := NewMockChannel("ipv4", 0, 1)
	d := NewDispatcher(mock, nil, nil)
	target := packet.NewTarget(net.ParseIP("10.0.0.1"), []int{80})
	require.NoError(t, d.Send(KindIPv4, []byte("x"), target))
	require.Equal(t, uint64(1), mock.SentCount())
}

func TestDispatcherCloseClosesAllNonNilChannels(t *testing.T) {
	m1 := NewMockChannel("ipv4", 0, 1)
	m2 := NewMockChannel("ipv6", 0, 2)
	d := NewDispatcher(m1, m2, nil)
	require.NoError(t, d.Close())
	require.False(t, m1.Available())
	require.False(t, m2.Available())
}
