// Package messenger implements the cross-chain report protocol: pushing
// locally built vault reports to peer chains, requesting reports back, and
// the replay-protected inbound path that feeds ingested reports into storage.
package messenger

import (
	"encoding/binary"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	oerrors "github.com/omnivault/oracle-node/errors"
	"github.com/omnivault/oracle-node/oracle"
)

// Message types on the wire.
const (
	// MsgTypeReportPush carries a batch of vault reports A -> B.
	MsgTypeReportPush uint16 = 1
	// MsgTypeReportRequest asks the receiver to push its reports back,
	// A -> B -> A.
	MsgTypeReportRequest uint16 = 2
)

// Wire layout, all integers big-endian:
//
//	header:  uint16 msgType | uint64 originChainID | uint16 optionsLen | options
//	push:    uint16 count   | count * record
//	record:  20 vault | 20 asset | 1 assetDecimals | 20 rewardsDelegate |
//	         8 lastUpdate | 32 sharePrice
//	request: uint16 vaultCount | vaultCount * 20 vault | 20 rewardsDelegate |
//	         uint16 returnOptionsLen | returnOptions
const (
	headerSize     = 2 + 8 + 2
	reportSize     = 20 + 20 + 1 + 20 + 8 + 32
	maxOptionsSize = 1024
)

// Envelope is a decoded message header plus its undecoded body.
type Envelope struct {
	MsgType       uint16
	OriginChainID uint64
	Options       []byte
	Body          []byte
}

// ReportRequest asks the receiving chain to push reports for the listed
// vaults back to the requester. An empty vault list requests everything.
// ReturnOptions travel inside the body and seed the execution options of the
// response push; they are distinct from the request's own header options.
type ReportRequest struct {
	Vaults          []common.Address
	RewardsDelegate common.Address
	ReturnOptions   []byte
}

// EncodeReportPush serializes a report batch. Every report's share price must
// fit 256 bits; callers validate the tighter storage bound before encoding.
func EncodeReportPush(originChainID uint64, reports []oracle.Report, options []byte) ([]byte, error) {
	if len(reports) > oracle.MaxReportsPerBatch {
		return nil, oerrors.ErrExceedsMaxReports
	}
	buf, err := encodeHeader(MsgTypeReportPush, originChainID, options)
	if err != nil {
		return nil, err
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(reports)))
	for _, r := range reports {
		price, overflow := uint256.FromBig(r.SharePrice.BigInt())
		if overflow || r.SharePrice.IsNegative() {
			return nil, oerrors.ErrInvalidPrice.WithChain(r.OriginChainID)
		}
		buf = append(buf, r.VaultAddress.Bytes()...)
		buf = append(buf, r.Asset.Bytes()...)
		buf = append(buf, r.AssetDecimals)
		buf = append(buf, r.RewardsDelegate.Bytes()...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(r.LastUpdate.Unix()))
		priceBytes := price.Bytes32()
		buf = append(buf, priceBytes[:]...)
	}
	return buf, nil
}

// EncodeReportRequest serializes a report request.
func EncodeReportRequest(originChainID uint64, req ReportRequest, options []byte) ([]byte, error) {
	if len(req.Vaults) > oracle.MaxReportsPerBatch {
		return nil, oerrors.ErrExceedsMaxReports
	}
	if len(req.ReturnOptions) > maxOptionsSize {
		return nil, oerrors.Newf(oerrors.ErrCodeValidation, "return options exceed %d bytes", maxOptionsSize)
	}
	buf, err := encodeHeader(MsgTypeReportRequest, originChainID, options)
	if err != nil {
		return nil, err
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(req.Vaults)))
	for _, v := range req.Vaults {
		buf = append(buf, v.Bytes()...)
	}
	buf = append(buf, req.RewardsDelegate.Bytes()...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(req.ReturnOptions)))
	buf = append(buf, req.ReturnOptions...)
	return buf, nil
}

func encodeHeader(msgType uint16, originChainID uint64, options []byte) ([]byte, error) {
	if originChainID == 0 {
		return nil, oerrors.ErrInvalidChainID
	}
	if len(options) > maxOptionsSize {
		return nil, oerrors.Newf(oerrors.ErrCodeValidation, "options exceed %d bytes", maxOptionsSize)
	}
	buf := make([]byte, 0, headerSize+len(options))
	buf = binary.BigEndian.AppendUint16(buf, msgType)
	buf = binary.BigEndian.AppendUint64(buf, originChainID)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(options)))
	buf = append(buf, options...)
	return buf, nil
}

// DecodeEnvelope splits a raw payload into header and body. Truncated or
// unknown-type payloads are rejected before any body parsing.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	if len(payload) < headerSize {
		return Envelope{}, oerrors.Newf(oerrors.ErrCodeValidation, "payload too short: %d bytes", len(payload))
	}
	env := Envelope{
		MsgType:       binary.BigEndian.Uint16(payload[0:2]),
		OriginChainID: binary.BigEndian.Uint64(payload[2:10]),
	}
	if env.MsgType != MsgTypeReportPush && env.MsgType != MsgTypeReportRequest {
		return Envelope{}, oerrors.Newf(oerrors.ErrCodeValidation, "unknown message type %d", env.MsgType)
	}
	if env.OriginChainID == 0 {
		return Envelope{}, oerrors.ErrInvalidChainID
	}

	optLen := int(binary.BigEndian.Uint16(payload[10:12]))
	if optLen > maxOptionsSize || headerSize+optLen > len(payload) {
		return Envelope{}, oerrors.Newf(oerrors.ErrCodeValidation, "options length %d exceeds payload", optLen)
	}
	env.Options = payload[headerSize : headerSize+optLen]
	env.Body = payload[headerSize+optLen:]
	return env, nil
}

// DecodeReportPush parses a push body into reports. Each report inherits the
// envelope's origin chain; the sender cannot claim a third chain's identity.
func DecodeReportPush(env Envelope) ([]oracle.Report, error) {
	if env.MsgType != MsgTypeReportPush {
		return nil, oerrors.Newf(oerrors.ErrCodeValidation, "not a report push: type %d", env.MsgType)
	}
	if len(env.Body) < 2 {
		return nil, oerrors.New(oerrors.ErrCodeValidation, "truncated report batch")
	}
	count := int(binary.BigEndian.Uint16(env.Body[0:2]))
	if count > oracle.MaxReportsPerBatch {
		return nil, oerrors.ErrExceedsMaxReports
	}
	if len(env.Body) != 2+count*reportSize {
		return nil, oerrors.Newf(oerrors.ErrCodeValidation, "report batch size mismatch: %d bytes for %d reports", len(env.Body), count)
	}

	reports := make([]oracle.Report, 0, count)
	for i := 0; i < count; i++ {
		rec := env.Body[2+i*reportSize : 2+(i+1)*reportSize]
		price := new(uint256.Int).SetBytes(rec[69:101])
		reports = append(reports, oracle.Report{
			VaultAddress:    common.BytesToAddress(rec[0:20]),
			Asset:           common.BytesToAddress(rec[20:40]),
			AssetDecimals:   rec[40],
			RewardsDelegate: common.BytesToAddress(rec[41:61]),
			LastUpdate:      time.Unix(int64(binary.BigEndian.Uint64(rec[61:69])), 0),
			SharePrice:      sdkIntFromUint256(price),
			OriginChainID:   env.OriginChainID,
		})
	}
	return reports, nil
}

// DecodeReportRequest parses a request body.
func DecodeReportRequest(env Envelope) (ReportRequest, error) {
	if env.MsgType != MsgTypeReportRequest {
		return ReportRequest{}, oerrors.Newf(oerrors.ErrCodeValidation, "not a report request: type %d", env.MsgType)
	}
	if len(env.Body) < 2+20+2 {
		return ReportRequest{}, oerrors.New(oerrors.ErrCodeValidation, "truncated report request")
	}
	count := int(binary.BigEndian.Uint16(env.Body[0:2]))
	if count > oracle.MaxReportsPerBatch {
		return ReportRequest{}, oerrors.ErrExceedsMaxReports
	}
	fixed := 2 + count*20 + 20 + 2
	if len(env.Body) < fixed {
		return ReportRequest{}, oerrors.Newf(oerrors.ErrCodeValidation, "report request size mismatch: %d bytes for %d vaults", len(env.Body), count)
	}

	req := ReportRequest{Vaults: make([]common.Address, 0, count)}
	for i := 0; i < count; i++ {
		req.Vaults = append(req.Vaults, common.BytesToAddress(env.Body[2+i*20:2+(i+1)*20]))
	}
	req.RewardsDelegate = common.BytesToAddress(env.Body[2+count*20 : 2+count*20+20])

	retLen := int(binary.BigEndian.Uint16(env.Body[fixed-2 : fixed]))
	if retLen > maxOptionsSize || len(env.Body) != fixed+retLen {
		return ReportRequest{}, oerrors.Newf(oerrors.ErrCodeValidation, "return options length %d exceeds body", retLen)
	}
	req.ReturnOptions = env.Body[fixed : fixed+retLen]
	return req, nil
}

func sdkIntFromUint256(u *uint256.Int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(u.ToBig())
}

// MsgTypeName names a message type for logs and metrics.
func MsgTypeName(msgType uint16) string {
	switch msgType {
	case MsgTypeReportPush:
		return "report_push"
	case MsgTypeReportRequest:
		return "report_request"
	default:
		return "unknown"
	}
}
