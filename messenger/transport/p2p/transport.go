// Package p2p implements the messenger transport on top of libp2p streams.
package p2p

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/holiman/uint256"
	libp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/rs/zerolog"

	oerrors "github.com/omnivault/oracle-node/errors"
	"github.com/omnivault/oracle-node/messenger/transport"
)

// Frame layout on the stream, after the uint32 length prefix:
//
//	16-byte nonce | 32-byte fee (uint256) | payload
//
// The nonce makes the message id unique per send; the fee is checked against
// the receiver's schedule before delivery.
const (
	nonceSize    = 16
	feeSize      = 32
	maxFrameSize = 1 << 20
)

// Transport implements transport.Transport on top of libp2p.
type Transport struct {
	cfg        Config
	host       host.Host
	protocolID protocol.ID

	handlerMu sync.RWMutex
	handler   transport.Handler

	peerMu sync.RWMutex
	peers  map[string]peer.AddrInfo

	logger zerolog.Logger
}

var _ transport.Transport = (*Transport)(nil)

// New creates a libp2p transport instance.
func New(_ context.Context, cfg Config, logger zerolog.Logger) (*Transport, error) {
	cfg.setDefaults()

	priv, err := loadIdentity(cfg.PrivateKeyBase64)
	if err != nil {
		return nil, err
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(cfg.ListenAddrs...),
	)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		cfg:        cfg,
		host:       h,
		protocolID: protocol.ID(cfg.ProtocolID),
		peers:      make(map[string]peer.AddrInfo),
		logger:     logger.With().Str("component", "transport_libp2p").Logger(),
	}

	h.SetStreamHandler(t.protocolID, t.handleStream)
	return t, nil
}

// ID implements transport.Transport.
func (t *Transport) ID() string {
	return t.host.ID().String()
}

// ListenAddrs implements transport.Transport.
func (t *Transport) ListenAddrs() []string {
	addrs := t.host.Addrs()
	var filtered []string
	for _, addr := range addrs {
		if isUnspecified(addr) {
			continue
		}
		filtered = append(filtered, addr.String()+"/p2p/"+t.host.ID().String())
	}
	if len(filtered) == 0 {
		out := make([]string, len(addrs))
		for i, addr := range addrs {
			out[i] = addr.String() + "/p2p/" + t.host.ID().String()
		}
		return out
	}
	return filtered
}

// SetHandler implements transport.Transport.
func (t *Transport) SetHandler(h transport.Handler) {
	t.handlerMu.Lock()
	t.handler = h
	t.handlerMu.Unlock()
}

// EnsurePeer implements transport.Transport.
func (t *Transport) EnsurePeer(peerID string, addrs []string) error {
	if peerID == "" || len(addrs) == 0 {
		return oerrors.New(oerrors.ErrCodeTransport, "invalid peer info")
	}
	id, err := peer.Decode(peerID)
	if err != nil {
		return err
	}

	multiaddrs, err := normalizeAddrs(addrs, id)
	if err != nil {
		return err
	}

	t.peerMu.Lock()
	t.peers[peerID] = peer.AddrInfo{ID: id, Addrs: multiaddrs}
	t.peerMu.Unlock()
	return nil
}

// Quote implements transport.Transport. The fee schedule is network-wide
// configuration, so the local schedule prices deliveries to any peer.
func (t *Transport) Quote(_ context.Context, peerID string, payloadSize int) (sdkmath.Int, error) {
	if _, err := t.lookupPeer(peerID); err != nil {
		return sdkmath.Int{}, err
	}
	return t.cfg.Fees.QuoteFor(payloadSize), nil
}

// Send implements transport.Transport.
func (t *Transport) Send(ctx context.Context, peerID string, payload []byte, fee sdkmath.Int) error {
	if !t.cfg.Fees.Covers(fee, len(payload)) {
		return oerrors.ErrInsufficientFee
	}
	info, err := t.lookupPeer(peerID)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()

	// libp2p reuses existing connections.
	if err := t.host.Connect(dialCtx, info); err != nil {
		return oerrors.Newf(oerrors.ErrCodeTransport, "failed to connect to peer %s", peerID).WithCause(err)
	}

	streamCtx, streamCancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer streamCancel()

	stream, err := t.host.NewStream(streamCtx, info.ID, t.protocolID)
	if err != nil {
		return oerrors.Newf(oerrors.ErrCodeTransport, "failed to create stream to peer %s", peerID).WithCause(err)
	}
	defer stream.Close()

	if err := stream.SetWriteDeadline(time.Now().Add(t.cfg.IOTimeout)); err != nil {
		return oerrors.New(oerrors.ErrCodeTransport, "failed to set write deadline").WithCause(err)
	}

	frame, err := buildFrame(payload, fee)
	if err != nil {
		return err
	}
	if err := writeFramed(stream, frame); err != nil {
		return oerrors.Newf(oerrors.ErrCodeTransport, "failed to write payload to peer %s", peerID).WithCause(err)
	}
	return nil
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	return t.host.Close()
}

func (t *Transport) lookupPeer(peerID string) (peer.AddrInfo, error) {
	t.peerMu.RLock()
	info, ok := t.peers[peerID]
	t.peerMu.RUnlock()
	if !ok {
		return peer.AddrInfo{}, oerrors.Newf(oerrors.ErrCodeTransport, "unknown peer %s", peerID)
	}
	return info, nil
}

func (t *Transport) handleStream(stream network.Stream) {
	defer stream.Close()

	_ = stream.SetReadDeadline(time.Now().Add(t.cfg.IOTimeout))

	frame, err := readFramed(stream)
	if err != nil {
		t.logger.Warn().Err(err).Msg("libp2p read failed")
		return
	}

	nonce, fee, payload, err := parseFrame(frame)
	if err != nil {
		t.logger.Warn().Err(err).Msg("malformed frame")
		return
	}
	if !t.cfg.Fees.Covers(fee, len(payload)) {
		t.logger.Warn().
			Str("peer_id", stream.Conn().RemotePeer().String()).
			Str("fee", fee.String()).
			Msg("dropping underpaid frame")
		return
	}

	t.handlerMu.RLock()
	handler := t.handler
	t.handlerMu.RUnlock()
	if handler == nil {
		return
	}

	d := transport.Delivery{
		Sender:    stream.Conn().RemotePeer().String(),
		MessageID: messageID(nonce, payload),
		Payload:   payload,
	}
	go handler(context.Background(), d)
}

func loadIdentity(base64Key string) (crypto.PrivKey, error) {
	if base64Key == "" {
		priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
		return priv, err
	}
	raw, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, err
	}
	return crypto.UnmarshalPrivateKey(raw)
}

func buildFrame(payload []byte, fee sdkmath.Int) ([]byte, error) {
	if fee.IsNil() {
		fee = sdkmath.ZeroInt()
	}
	feeWords, overflow := uint256.FromBig(fee.BigInt())
	if overflow || fee.IsNegative() {
		return nil, oerrors.New(oerrors.ErrCodeTransport, "fee does not fit 256 bits")
	}

	frame := make([]byte, nonceSize+feeSize+len(payload))
	if _, err := rand.Read(frame[:nonceSize]); err != nil {
		return nil, err
	}
	feeBytes := feeWords.Bytes32()
	copy(frame[nonceSize:nonceSize+feeSize], feeBytes[:])
	copy(frame[nonceSize+feeSize:], payload)
	return frame, nil
}

func parseFrame(frame []byte) ([]byte, sdkmath.Int, []byte, error) {
	if len(frame) < nonceSize+feeSize {
		return nil, sdkmath.Int{}, nil, fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	nonce := frame[:nonceSize]
	fee := new(uint256.Int).SetBytes(frame[nonceSize : nonceSize+feeSize])
	payload := frame[nonceSize+feeSize:]
	return nonce, sdkmath.NewIntFromBigInt(fee.ToBig()), payload, nil
}

func messageID(nonce, payload []byte) [32]byte {
	h := sha256.New()
	h.Write(nonce)
	h.Write(payload)
	var id [32]byte
	copy(id[:], h.Sum(nil))
	return id
}

func writeFramed(w io.Writer, frame []byte) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, uint32(len(frame))); err != nil {
		return err
	}
	if _, err := bw.Write(frame); err != nil {
		return err
	}
	return bw.Flush()
}

func readFramed(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	var length uint32
	if err := binary.Read(br, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("frame exceeds %d bytes", maxFrameSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func normalizeAddrs(raw []string, expected peer.ID) ([]ma.Multiaddr, error) {
	var results []ma.Multiaddr
	for _, addr := range raw {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		maddr, err := ma.NewMultiaddr(addr)
		if err != nil {
			return nil, err
		}
		if _, err := maddr.ValueForProtocol(ma.P_P2P); err == nil {
			info, err := peer.AddrInfoFromP2pAddr(maddr)
			if err != nil {
				return nil, err
			}
			if info.ID != expected {
				return nil, fmt.Errorf("multiaddr peer mismatch: expected %s got %s", expected, info.ID)
			}
			results = append(results, info.Addrs...)
			continue
		}
		results = append(results, maddr)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no usable addresses provided")
	}
	return results, nil
}

func isUnspecified(addr ma.Multiaddr) bool {
	if ip, err := manet.ToIP(addr); err == nil {
		return ip.IsUnspecified()
	}
	return false
}
