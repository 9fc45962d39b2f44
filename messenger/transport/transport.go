// Package transport abstracts the point-to-point byte transport underneath
// the messenger: peer addressing, fee quoting and authenticated delivery.
package transport

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// Delivery is one inbound message as seen by the transport.
type Delivery struct {
	// Sender is the transport identity of the node that sent the message.
	Sender string
	// MessageID uniquely identifies this message; replays of the same
	// message carry the same id.
	MessageID [32]byte
	// Payload is the opaque protocol frame.
	Payload []byte
}

// Handler consumes inbound deliveries. Handlers must not retain the payload
// slice past the call.
type Handler func(ctx context.Context, d Delivery)

// Transport moves opaque payloads between nodes. Sending is paid for:
// callers quote first, then send with a fee at least as high as the quote.
type Transport interface {
	// ID returns this node's transport identity.
	ID() string
	// ListenAddrs returns the addresses remote peers can dial.
	ListenAddrs() []string
	// SetHandler installs the inbound delivery handler.
	SetHandler(h Handler)
	// EnsurePeer makes a peer's addresses known so Send can reach it.
	EnsurePeer(id string, addrs []string) error
	// Quote prices the delivery of a payload of the given size.
	Quote(ctx context.Context, peerID string, payloadSize int) (sdkmath.Int, error)
	// Send delivers the payload to a peer, paying fee. The fee must cover
	// the current quote for the payload's size.
	Send(ctx context.Context, peerID string, payload []byte, fee sdkmath.Int) error
	// Close releases the transport's resources.
	Close() error
}

// FeeSchedule prices deliveries linearly in payload size.
type FeeSchedule struct {
	BaseWei    sdkmath.Int
	PerByteWei sdkmath.Int
}

// QuoteFor returns the fee for a payload of the given size.
func (f FeeSchedule) QuoteFor(payloadSize int) sdkmath.Int {
	base := f.BaseWei
	if base.IsNil() {
		base = sdkmath.ZeroInt()
	}
	perByte := f.PerByteWei
	if perByte.IsNil() {
		perByte = sdkmath.ZeroInt()
	}
	return base.Add(perByte.MulRaw(int64(payloadSize)))
}

// Covers reports whether fee pays for a payload of the given size.
func (f FeeSchedule) Covers(fee sdkmath.Int, payloadSize int) bool {
	if fee.IsNil() {
		fee = sdkmath.ZeroInt()
	}
	return fee.GTE(f.QuoteFor(payloadSize))
}
