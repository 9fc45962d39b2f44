package messenger

import (
	"sync"

	oerrors "github.com/omnivault/oracle-node/errors"
)

// Peer is the messaging counterpart on one remote chain: its transport
// identity and the addresses it can be dialed at.
type Peer struct {
	ChainID     uint64
	TransportID string
	Addrs       []string
}

// PeerTable maps chain ids to their configured peer. Inbound deliveries are
// authenticated against it: a sender whose transport identity is not the
// configured peer for the chain it claims is dropped.
type PeerTable struct {
	mu       sync.RWMutex
	byChain  map[uint64]Peer
	bySender map[string]uint64
}

// NewPeerTable creates an empty table.
func NewPeerTable() *PeerTable {
	return &PeerTable{
		byChain:  make(map[uint64]Peer),
		bySender: make(map[string]uint64),
	}
}

// Set installs or replaces the peer for a chain.
func (t *PeerTable) Set(peer Peer) error {
	if peer.ChainID == 0 {
		return oerrors.ErrInvalidChainID
	}
	if peer.TransportID == "" {
		return oerrors.New(oerrors.ErrCodeValidation, "peer transport id must not be empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if previous, ok := t.byChain[peer.ChainID]; ok {
		delete(t.bySender, previous.TransportID)
	}
	t.byChain[peer.ChainID] = peer
	t.bySender[peer.TransportID] = peer.ChainID
	return nil
}

// Get returns the peer configured for a chain.
func (t *PeerTable) Get(chainID uint64) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	peer, ok := t.byChain[chainID]
	return peer, ok
}

// ChainOf resolves a sender's transport identity to its chain.
func (t *PeerTable) ChainOf(transportID string) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	chainID, ok := t.bySender[transportID]
	return chainID, ok
}

// ChainIDs returns every chain a peer is configured for.
func (t *PeerTable) ChainIDs() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uint64, 0, len(t.byChain))
	for chainID := range t.byChain {
		out = append(out, chainID)
	}
	return out
}

// All returns a copy of every configured peer.
func (t *PeerTable) All() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.byChain))
	for _, peer := range t.byChain {
		out = append(out, peer)
	}
	return out
}
