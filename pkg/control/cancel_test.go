package control

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenStartsRunning(t *testing.T) {
	tok := NewToken()
	require.Equal(t, Running, tok.Level())
	require.False(t, tok.Draining())
}

func TestTriggerDrainIsIdempotent(t *testing.T) {
	tok := NewToken()
	calls := 0
	tok.OnDrain(func() { calls++ })

	tok.TriggerDrain("first")
	tok.TriggerDrain("second")

	require.True(t, tok.Draining())
	require.Equal(t, 1, calls)
}

func TestDoneChannelClosesOnDrain(t *testing.T) {
	tok := NewToken()
	select {
	case <-tok.Done():
		t.Fatal("Done channel closed before drain triggered")
	default:
	}

	tok.TriggerDrain("test")

	select {
	case <-tok.Done():
	default:
		t.Fatal("Done channel not closed after drain triggered")
	}
}

func TestOnDrainRunsImmediatelyIfAlreadyDraining(t *testing.T) {
	tok := NewToken()
	tok.TriggerDrain("already draining")

	ran := false
	tok.OnDrain(func() { ran = true })
	require.True(t, ran)
}
