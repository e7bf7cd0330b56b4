package protocol

import (
	"math"
	"math/rand"
)

// sumTolerance is how far the six weights may diverge from summing to
// 1.0 and still be accepted — spec'd as 1e-3.
const sumTolerance = 1e-3

// Mix is the canonical six-float weight tuple over {UDP, TCP-SYN,
// TCP-ACK, ICMP, IPv6-*, ARP}. This is the shape named in the design
// notes as canonical; the integer-ratio shape seen elsewhere is rejected
// at config parse time rather than accepted as an alternate encoding.
type Mix struct {
	UDP    float64
	TCPSyn float64
	TCPAck float64
	ICMP   float64
	IPv6   float64
	ARP    float64
}

// Validate checks the non-negative-weights invariant and that the six
// weights sum to 1.0 within sumTolerance.
func (m Mix) Validate() error {
	for _, w := range []float64{m.UDP, m.TCPSyn, m.TCPAck, m.ICMP, m.IPv6, m.ARP} {
		if w < 0 {
			return errNegativeWeight
		}
	}
	total := m.UDP + m.TCPSyn + m.TCPAck + m.ICMP + m.IPv6 + m.ARP
	if total <= 0 {
		return errAllZero
	}
	if math.Abs(total-1.0) > sumTolerance {
		return errSumNotOne
	}
	return nil
}

type mixError string

func (e mixError) Error() string { return string(e) }

const (
	errNegativeWeight = mixError("protocol: mix weights must be non-negative")
	errAllZero        = mixError("protocol: mix must have at least one positive weight")
	errSumNotOne      = mixError("protocol: mix weights must sum to 1.0 within 1e-3")
)

// bucket pairs a weight with the packet type(s) it governs. ipv6Sub is
// non-nil only for the IPv6-* bucket, which fans out to three sibling
// kinds chosen uniformly once the bucket itself is selected.
type bucket struct {
	weight  float64
	kind    PacketType
	ipv6Sub []PacketType
}

// forFamily returns the buckets eligible for addr's family, with ARP
// included only when allowLayer2 is true (Layer-2 framing requires an
// open Layer2 channel; a target without one excludes ARP from the mix
// entirely rather than silently failing every ARP send).
func (m Mix) forFamily(fam Family, allowLayer2 bool) []bucket {
	var buckets []bucket
	switch fam {
	case FamilyIPv4:
		if m.UDP > 0 {
			buckets = append(buckets, bucket{m.UDP, PacketUDP, nil})
		}
		if m.TCPSyn > 0 {
			buckets = append(buckets, bucket{m.TCPSyn, PacketTCPSyn, nil})
		}
		if m.TCPAck > 0 {
			buckets = append(buckets, bucket{m.TCPAck, PacketTCPAck, nil})
		}
		if m.ICMP > 0 {
			buckets = append(buckets, bucket{m.ICMP, PacketICMP, nil})
		}
	case FamilyIPv6:
		if m.IPv6 > 0 {
			buckets = append(buckets, bucket{m.IPv6, PacketUnknown,
				[]PacketType{PacketUDPv6, PacketTCPSynv6, PacketICMPv6}})
		}
	}
	if allowLayer2 && m.ARP > 0 {
		buckets = append(buckets, bucket{m.ARP, PacketARP, nil})
	}
	return buckets
}

// Selector draws a PacketType for a specific target family using a
// private, seeded RNG so two selectors constructed with the same seed
// produce identical sequences — required for reproducible runs and
// deterministic tests. A selector is owned by exactly one worker and
// never shared, so the RNG needs no locking.
//
// The draw walks cumulative weight: accumulate the eligible buckets'
// total weight, draw a uniform value in [0, total), then subtract
// weights in listed order until the remainder goes negative. Ties
// (a zero-length remainder) favor the first listed bucket.
type Selector struct {
	mix         Mix
	allowLayer2 bool
	rng         *rand.Rand
}

// NewSelector constructs a Selector over mix seeded with seed. allowLayer2
// reports whether this worker holds an open Layer-2 channel; when false,
// ARP is never selected regardless of its configured weight.
func NewSelector(mix Mix, allowLayer2 bool, seed int64) *Selector {
	return &Selector{mix: mix, allowLayer2: allowLayer2, rng: rand.New(rand.NewSource(seed))} //nolint:gosec
}

// NextForFamily draws the next PacketType eligible for fam. NextForFamily
// panics if no bucket is eligible — callers validate the mix and the
// target's family compatibility before constructing workers.
func (s *Selector) NextForFamily(fam Family) PacketType {
	buckets := s.mix.forFamily(fam, s.allowLayer2)
	if len(buckets) == 0 {
		panic("protocol: no eligible packet kinds for this target family")
	}
	var total float64
	for _, b := range buckets {
		total += b.weight
	}
	r := s.rng.Float64() * total
	for _, b := range buckets {
		r -= b.weight
		if r < 0 {
			return s.resolve(b)
		}
	}
	return s.resolve(buckets[len(buckets)-1])
}

func (s *Selector) resolve(b bucket) PacketType {
	if b.ipv6Sub == nil {
		return b.kind
	}
	return b.ipv6Sub[s.rng.Intn(len(b.ipv6Sub))]
}
