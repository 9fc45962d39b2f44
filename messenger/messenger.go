package messenger

import (
	"context"
	"encoding/hex"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	oerrors "github.com/omnivault/oracle-node/errors"
	"github.com/omnivault/oracle-node/messenger/transport"
	"github.com/omnivault/oracle-node/metrics"
	"github.com/omnivault/oracle-node/oracle"
	"github.com/omnivault/oracle-node/store"
)

// ReportIngester consumes report batches arriving from peers.
type ReportIngester interface {
	UpdateSharePrices(ctx context.Context, reports []oracle.Report) error
}

// ReportProducer builds the local report set served to requesting peers.
type ReportProducer interface {
	BuildLocalReports(ctx context.Context) []oracle.Report
}

// Messenger runs the cross-chain report protocol on top of a transport.
// Inbound deliveries are authenticated against the peer table and
// deduplicated through the processed-message set before any state changes;
// outbound sends are quoted first and only go out within the fee budget.
type Messenger struct {
	localChainID uint64
	transport    transport.Transport
	peers        *PeerTable
	enforced     *EnforcedOptions
	store        *store.Store
	ingester     ReportIngester
	producer     ReportProducer
	responseFee  sdkmath.Int // budget for answering report requests
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// New creates a messenger and installs it as the transport's handler.
func New(
	localChainID uint64,
	tr transport.Transport,
	peers *PeerTable,
	enforced *EnforcedOptions,
	st *store.Store,
	ingester ReportIngester,
	producer ReportProducer,
	responseFee sdkmath.Int,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Messenger {
	msgr := &Messenger{
		localChainID: localChainID,
		transport:    tr,
		peers:        peers,
		enforced:     enforced,
		store:        st,
		ingester:     ingester,
		producer:     producer,
		responseFee:  responseFee,
		metrics:      m,
		logger:       logger.With().Str("component", "messenger").Logger(),
	}
	tr.SetHandler(msgr.handleDelivery)
	return msgr
}

// Peers exposes the peer table for administrative updates.
func (m *Messenger) Peers() *PeerTable {
	return m.peers
}

// EnforcedOptions exposes the enforced-options table for administrative
// updates.
func (m *Messenger) EnforcedOptions() *EnforcedOptions {
	return m.enforced
}

// SendReports pushes a report batch to the peer on dstChainID. callerOptions
// are merged with the enforced options for the destination; feeBudget bounds
// what the send may cost, with a nil budget meaning "pay whatever is quoted".
func (m *Messenger) SendReports(ctx context.Context, dstChainID uint64, reports []oracle.Report, callerOptions []byte, feeBudget sdkmath.Int) error {
	if len(reports) == 0 {
		return oerrors.New(oerrors.ErrCodeValidation, "no reports to send")
	}
	options, err := m.enforced.Combine(dstChainID, MsgTypeReportPush, callerOptions)
	if err != nil {
		return err
	}
	payload, err := EncodeReportPush(m.localChainID, reports, options)
	if err != nil {
		return err
	}
	if err := m.send(ctx, dstChainID, MsgTypeReportPush, payload, feeBudget); err != nil {
		return err
	}
	m.logger.Info().
		Uint64("dst_chain_id", dstChainID).
		Int("reports", len(reports)).
		Msg("report batch sent")
	return nil
}

// RequestReports asks the peer on dstChainID to push reports for the listed
// vaults back. An empty vault list requests everything the peer has.
// callerOptions govern this request's own send; returnOptions are embedded
// in the message and seed the peer's response send.
func (m *Messenger) RequestReports(ctx context.Context, dstChainID uint64, vaults []common.Address, rewardsDelegate common.Address, callerOptions, returnOptions []byte, feeBudget sdkmath.Int) error {
	if len(returnOptions) > 0 {
		if err := validateOptions(returnOptions); err != nil {
			return err
		}
	}
	options, err := m.enforced.Combine(dstChainID, MsgTypeReportRequest, callerOptions)
	if err != nil {
		return err
	}
	payload, err := EncodeReportRequest(m.localChainID, ReportRequest{
		Vaults:          vaults,
		RewardsDelegate: rewardsDelegate,
		ReturnOptions:   returnOptions,
	}, options)
	if err != nil {
		return err
	}
	if err := m.send(ctx, dstChainID, MsgTypeReportRequest, payload, feeBudget); err != nil {
		return err
	}
	m.logger.Info().
		Uint64("dst_chain_id", dstChainID).
		Int("vaults", len(vaults)).
		Msg("report request sent")
	return nil
}

// send quotes the payload against the destination peer and delivers it,
// paying exactly the quote.
func (m *Messenger) send(ctx context.Context, dstChainID uint64, msgType uint16, payload []byte, feeBudget sdkmath.Int) error {
	peer, ok := m.peers.Get(dstChainID)
	if !ok {
		return oerrors.ErrPeerNotSet.WithChain(dstChainID)
	}
	if err := m.transport.EnsurePeer(peer.TransportID, peer.Addrs); err != nil {
		return oerrors.New(oerrors.ErrCodeTransport, "failed to resolve peer").WithChain(dstChainID).WithCause(err)
	}

	quote, err := m.transport.Quote(ctx, peer.TransportID, len(payload))
	if err != nil {
		return oerrors.New(oerrors.ErrCodeTransport, "fee quote failed").WithChain(dstChainID).WithCause(err)
	}
	if !feeBudget.IsNil() && feeBudget.LT(quote) {
		return oerrors.ErrInsufficientFee.WithChain(dstChainID).WithCause(
			oerrors.Newf(oerrors.ErrCodeInsufficientFee, "quoted %s, budget %s", quote.String(), feeBudget.String()))
	}

	if err := m.transport.Send(ctx, peer.TransportID, payload, quote); err != nil {
		return oerrors.New(oerrors.ErrCodeTransport, "send failed").WithChain(dstChainID).WithCause(err)
	}
	m.metrics.RecordMessageSent(MsgTypeName(msgType))
	return nil
}

// handleDelivery is the transport handler: authenticate, deduplicate,
// dispatch. A message id is recorded before processing, so a message that
// fails mid-processing is never retried with partial effects.
func (m *Messenger) handleDelivery(ctx context.Context, d transport.Delivery) {
	senderChain, ok := m.peers.ChainOf(d.Sender)
	if !ok {
		m.logger.Warn().Str("sender", d.Sender).Msg("dropping message from unknown sender")
		return
	}

	messageID := hex.EncodeToString(d.MessageID[:])
	inserted, err := m.store.MarkProcessed(messageID, senderChain)
	if err != nil {
		m.logger.Error().Err(err).Str("message_id", messageID).Msg("replay check failed")
		return
	}
	if !inserted {
		m.metrics.RecordReplayRejected()
		m.logger.Debug().Str("message_id", messageID).Msg("dropping replayed message")
		return
	}

	env, err := DecodeEnvelope(d.Payload)
	if err != nil {
		m.logger.Warn().Err(err).Uint64("sender_chain_id", senderChain).Msg("dropping malformed message")
		return
	}
	if env.OriginChainID != senderChain {
		m.logger.Warn().
			Uint64("claimed_origin", env.OriginChainID).
			Uint64("sender_chain_id", senderChain).
			Msg("dropping message claiming another chain's origin")
		return
	}
	m.metrics.RecordMessageReceived(MsgTypeName(env.MsgType))

	switch env.MsgType {
	case MsgTypeReportPush:
		m.handleReportPush(ctx, env)
	case MsgTypeReportRequest:
		m.handleReportRequest(ctx, senderChain, env)
	}
}

func (m *Messenger) handleReportPush(ctx context.Context, env Envelope) {
	reports, err := DecodeReportPush(env)
	if err != nil {
		m.logger.Warn().Err(err).Uint64("origin_chain_id", env.OriginChainID).Msg("dropping undecodable report batch")
		return
	}
	if err := m.ingester.UpdateSharePrices(ctx, reports); err != nil {
		m.logger.Error().Err(err).Uint64("origin_chain_id", env.OriginChainID).Msg("report batch rejected")
	}
}

func (m *Messenger) handleReportRequest(ctx context.Context, senderChain uint64, env Envelope) {
	req, err := DecodeReportRequest(env)
	if err != nil {
		m.logger.Warn().Err(err).Uint64("origin_chain_id", env.OriginChainID).Msg("dropping undecodable report request")
		return
	}

	reports := m.producer.BuildLocalReports(ctx)
	if len(req.Vaults) > 0 {
		wanted := make(map[common.Address]struct{}, len(req.Vaults))
		for _, v := range req.Vaults {
			wanted[v] = struct{}{}
		}
		filtered := reports[:0]
		for _, r := range reports {
			if _, ok := wanted[r.VaultAddress]; ok {
				filtered = append(filtered, r)
			}
		}
		reports = filtered
	}
	if (req.RewardsDelegate != common.Address{}) {
		for i := range reports {
			reports[i].RewardsDelegate = req.RewardsDelegate
		}
	}
	if len(reports) == 0 {
		m.logger.Debug().Uint64("requester_chain_id", senderChain).Msg("no reports matching request")
		return
	}

	if err := m.SendReports(ctx, senderChain, reports, req.ReturnOptions, m.responseFee); err != nil {
		m.logger.Error().Err(err).Uint64("requester_chain_id", senderChain).Msg("failed to answer report request")
	}
}
