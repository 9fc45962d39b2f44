package transport

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	oerrors "github.com/omnivault/oracle-node/errors"
)

// Network links in-memory transports together. Useful for tests and for
// running a multi-node topology inside one process.
type Network struct {
	mu    sync.RWMutex
	nodes map[string]*MemoryTransport
}

// NewNetwork creates an empty in-memory network.
func NewNetwork() *Network {
	return &Network{nodes: make(map[string]*MemoryTransport)}
}

// Join creates a transport with the given identity attached to the network.
func (n *Network) Join(id string, fees FeeSchedule) *MemoryTransport {
	t := &MemoryTransport{
		id:      id,
		network: n,
		fees:    fees,
	}
	n.mu.Lock()
	n.nodes[id] = t
	n.mu.Unlock()
	return t
}

func (n *Network) lookup(id string) (*MemoryTransport, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	t, ok := n.nodes[id]
	return t, ok
}

func (n *Network) remove(id string) {
	n.mu.Lock()
	delete(n.nodes, id)
	n.mu.Unlock()
}

// MemoryTransport is the in-process Transport implementation. Deliveries are
// synchronous: Send returns after the receiving handler has run.
type MemoryTransport struct {
	id      string
	network *Network
	fees    FeeSchedule

	mu      sync.RWMutex
	handler Handler
	closed  bool
}

var _ Transport = (*MemoryTransport)(nil)

// ID implements Transport.
func (t *MemoryTransport) ID() string { return t.id }

// ListenAddrs implements Transport.
func (t *MemoryTransport) ListenAddrs() []string {
	return []string{fmt.Sprintf("memory://%s", t.id)}
}

// SetHandler implements Transport.
func (t *MemoryTransport) SetHandler(h Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// EnsurePeer implements Transport. The in-memory network needs no dialing;
// the peer just has to exist.
func (t *MemoryTransport) EnsurePeer(id string, _ []string) error {
	if _, ok := t.network.lookup(id); !ok {
		return oerrors.Newf(oerrors.ErrCodeTransport, "unknown peer %s", id)
	}
	return nil
}

// Quote implements Transport.
func (t *MemoryTransport) Quote(_ context.Context, peerID string, payloadSize int) (sdkmath.Int, error) {
	peer, ok := t.network.lookup(peerID)
	if !ok {
		return sdkmath.Int{}, oerrors.Newf(oerrors.ErrCodeTransport, "unknown peer %s", peerID)
	}
	return peer.fees.QuoteFor(payloadSize), nil
}

// Send implements Transport.
func (t *MemoryTransport) Send(ctx context.Context, peerID string, payload []byte, fee sdkmath.Int) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return oerrors.New(oerrors.ErrCodeTransport, "transport closed")
	}

	peer, ok := t.network.lookup(peerID)
	if !ok {
		return oerrors.Newf(oerrors.ErrCodeTransport, "unknown peer %s", peerID)
	}
	if !peer.fees.Covers(fee, len(payload)) {
		return oerrors.ErrInsufficientFee
	}

	peer.deliver(ctx, Delivery{
		Sender:    t.id,
		MessageID: newMessageID(payload),
		Payload:   payload,
	})
	return nil
}

func (t *MemoryTransport) deliver(ctx context.Context, d Delivery) {
	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()
	if handler != nil {
		handler(ctx, d)
	}
}

// Close implements Transport.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.network.remove(t.id)
	return nil
}

// newMessageID derives a unique id for a payload: a random nonce hashed with
// the payload, so identical payloads sent twice still get distinct ids.
func newMessageID(payload []byte) [32]byte {
	var nonce [16]byte
	_, _ = rand.Read(nonce[:])
	h := sha256.New()
	h.Write(nonce[:])
	h.Write(payload)
	var id [32]byte
	copy(id[:], h.Sum(nil))
	return id
}
