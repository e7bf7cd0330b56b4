// Package transport implements the fire-and-forget send contract: a
// small Channel interface with real raw-socket implementations per
// address family plus a mock substitutable in tests.
package transport

import "github.com/PaulShpilsher/router-flood-sub002/pkg/packet"

// Kind identifies which of a worker's channels a send targets.
type Kind int

const (
	KindIPv4 Kind = iota
	KindIPv6
	KindLayer2
)

func (k Kind) String() string {
	switch k {
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	case KindLayer2:
		return "layer2"
	default:
		return "unknown"
	}
}

// Channel is the capability interface every transport implementation
// (real or mock) satisfies. The contract is fire-and-forget: Send
// reports only whether the kernel accepted the bytes for transmission,
// never delivery or response.
type Channel interface {
	// Send transmits buf to target, fire-and-forget. Implementations
	// must not block longer than the kernel's own send path would.
	Send(buf []byte, target *packet.Target) error
	// Available reports whether this channel is currently usable.
	Available() bool
	// Name identifies the channel for logging/stats attribution.
	Name() string
	// Close releases the underlying OS resource. Close must be
	// idempotent — calling it more than once is not an error.
	Close() error
}

// ErrChannelUnavailable is returned by Dispatcher.Send when the channel
// kind a packet needs is not open on this worker.
type ErrChannelUnavailable struct {
	Kind Kind
}

func (e *ErrChannelUnavailable) Error() string {
	return "transport: channel unavailable: " + e.Kind.String()
}

// Dispatcher holds up to one Channel per Kind and routes sends to the
// right one, failing with ErrChannelUnavailable if the required
// channel was never opened for this worker. This mirrors a capability
// dispatcher that holds one concrete implementation per concern and
// switches on a closed set of kinds rather than exposing open
// polymorphism.
type Dispatcher struct {
	channels [3]Channel // indexed by Kind
}

// NewDispatcher builds a Dispatcher from the channels a worker was
// given. Any of ipv4, ipv6, layer2 may be nil if that channel wasn't
// opened for this run.
func NewDispatcher(ipv4, ipv6, layer2 Channel) *Dispatcher {
	d := &Dispatcher{}
	d.channels[KindIPv4] = ipv4
	d.channels[KindIPv6] = ipv6
	d.channels[KindLayer2] = layer2
	return d
}

// Send dispatches buf to target over the channel identified by kind.
func (d *Dispatcher) Send(kind Kind, buf []byte, target *packet.Target) error {
	ch := d.channels[kind]
	if ch == nil || !ch.Available() {
		return &ErrChannelUnavailable{kind}
	}
	return ch.Send(buf, target)
}

// Close releases every open channel, tolerating nils and individual
// close errors so one failing channel doesn't prevent releasing the
// others. Close is idempotent because every Channel.Close() must be.
func (d *Dispatcher) Close() error {
	var first error
	for _, ch := range d.channels {
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
