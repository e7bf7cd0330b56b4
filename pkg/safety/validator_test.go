package safety

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	require.NotNil(t, ip, "invalid test IP literal %q", s)
	return ip
}

func TestClassifyTargetAcceptsPrivateRanges(t *testing.T) {
	for _, addr := range []string{
		"10.0.0.1", "10.255.255.255",
		"172.16.0.1", "172.31.255.255",
		"192.168.0.1", "192.168.255.255",
		"fe80::1",
		"fc00::1", "fd00::1",
	} {
		require.NoError(t, ClassifyTarget(mustIP(t, addr)), "expected %s to be accepted", addr)
	}
}

func TestClassifyTargetRejectsEverythingElse(t *testing.T) {
	for _, addr := range []string{
		"8.8.8.8",             // public
		"127.0.0.1",           // loopback
		"169.254.1.1",         // link-local v4 (not in the allowed list)
		"224.0.0.1",           // multicast
		"255.255.255.255",     // broadcast
		"0.0.0.0",             // unspecified
		"192.0.2.1",           // documentation (TEST-NET-1)
		"172.32.0.0",          // just outside 172.16.0.0/12
		"::1",                 // loopback v6
		"2001:db8::1",         // documentation v6
	} {
		err := ClassifyTarget(mustIP(t, addr))
		require.Error(t, err, "expected %s to be rejected", addr)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		require.Equal(t, InvalidIPRange, ve.Kind)
	}
}

func TestClassifyTargetBoundaries(t *testing.T) {
	require.NoError(t, ClassifyTarget(mustIP(t, "172.31.255.255")))
	require.Error(t, ClassifyTarget(mustIP(t, "172.32.0.0")))
}

func TestValidateRunConfigBoundaries(t *testing.T) {
	base := RunConfig{TargetIP: mustIP(t, "192.168.1.1"), Ports: []int{80}}

	cases := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
		kind    ErrorKind
	}{
		{"threads=1 ok", func(c *RunConfig) { c.Threads = 1; c.Rate = 1 }, false, 0},
		{"threads=100 ok", func(c *RunConfig) { c.Threads = 100; c.Rate = 1 }, false, 0},
		{"threads=0 rejected", func(c *RunConfig) { c.Threads = 0; c.Rate = 1 }, true, InvalidThreadCount},
		{"threads=101 rejected", func(c *RunConfig) { c.Threads = 101; c.Rate = 1 }, true, InvalidThreadCount},
		{"rate=1 ok", func(c *RunConfig) { c.Threads = 1; c.Rate = 1 }, false, 0},
		{"rate=10000 ok", func(c *RunConfig) { c.Threads = 1; c.Rate = 10000 }, false, 0},
		{"rate=0 rejected", func(c *RunConfig) { c.Threads = 1; c.Rate = 0 }, true, InvalidRate},
		{"rate=10001 rejected", func(c *RunConfig) { c.Threads = 1; c.Rate = 10001 }, true, InvalidRate},
		{"port=1 ok", func(c *RunConfig) { c.Threads = 1; c.Rate = 1; c.Ports = []int{1} }, false, 0},
		{"port=65535 ok", func(c *RunConfig) { c.Threads = 1; c.Rate = 1; c.Ports = []int{65535} }, false, 0},
		{"port=0 rejected", func(c *RunConfig) { c.Threads = 1; c.Rate = 1; c.Ports = []int{0} }, true, InvalidPort},
		{"no ports rejected", func(c *RunConfig) { c.Threads = 1; c.Rate = 1; c.Ports = nil }, true, InvalidPort},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			v := New()
			err := v.ValidateRunConfig(cfg)
			if tc.wantErr {
				require.Error(t, err)
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				require.Equal(t, tc.kind, ve.Kind)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateRunConfigWarnsOnHighAggregateRate(t *testing.T) {
	v := New()
	cfg := RunConfig{
		TargetIP: mustIP(t, "10.0.0.1"),
		Ports:    []int{80},
		Threads:  100,
		Rate:     1000,
	}
	require.NoError(t, v.ValidateRunConfig(cfg))
	require.True(t, v.HasWarnings())
}

func TestValidateRunConfigPublicAddressRejected(t *testing.T) {
	v := New()
	cfg := RunConfig{TargetIP: mustIP(t, "8.8.8.8"), Ports: []int{80}, Threads: 1, Rate: 1}
	err := v.ValidateRunConfig(cfg)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, InvalidIPRange, ve.Kind)
}

func TestCheckSystemRequirementsBypassedInDryRun(t *testing.T) {
	require.NoError(t, CheckSystemRequirements(true))
}

func TestValidatorIsDeterministicAndSideEffectFree(t *testing.T) {
	v := New()
	cfg := RunConfig{TargetIP: mustIP(t, "10.0.0.1"), Ports: []int{80}, Threads: 2, Rate: 10}
	err1 := v.ValidateRunConfig(cfg)
	warnings1 := append([]string(nil), v.Warnings...)
	err2 := v.ValidateRunConfig(cfg)
	require.Equal(t, err1, err2)
	require.Equal(t, warnings1, v.Warnings)
}
