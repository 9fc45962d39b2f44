// Package errors defines the typed error taxonomy shared by the oracle
// daemon: price-source exhaustion, validation, authentication, replay and
// liveness failures all carry a machine-readable code so callers can decide
// between failing closed and falling through to the next price source.
package errors

import (
	"fmt"
)

// ErrorCode classifies oracle errors.
type ErrorCode string

const (
	// ErrCodeNoAdapters indicates the resolver has no price adapters configured.
	ErrCodeNoAdapters ErrorCode = "NO_ADAPTERS"

	// ErrCodeNoValidPrice indicates every adapter failed and the cache was stale.
	ErrCodeNoValidPrice ErrorCode = "NO_VALID_PRICE"

	// ErrCodeInvalidPrice indicates a zero, negative or over-wide price.
	ErrCodeInvalidPrice ErrorCode = "INVALID_PRICE"

	// ErrCodeInvalidChainID indicates a report whose embedded chain id does not
	// match the claimed origin.
	ErrCodeInvalidChainID ErrorCode = "INVALID_CHAIN_ID"

	// ErrCodeExceedsMaxReports indicates a report batch above the size cap.
	ErrCodeExceedsMaxReports ErrorCode = "EXCEEDS_MAX_REPORTS"

	// ErrCodeInvalidAssetType indicates a priced conversion between assets
	// where at least one side has no category assigned.
	ErrCodeInvalidAssetType ErrorCode = "INVALID_ASSET_TYPE"

	// ErrCodeValidation indicates malformed or out-of-contract input.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodePeerNotSet indicates no peer is configured for the claimed origin.
	ErrCodePeerNotSet ErrorCode = "PEER_NOT_SET"

	// ErrCodeUnauthenticated indicates the sender did not match the peer table.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// ErrCodeAlreadyProcessed indicates a replayed message id; a no-op, not an
	// operator-facing failure.
	ErrCodeAlreadyProcessed ErrorCode = "ALREADY_PROCESSED"

	// ErrCodeSequencerDown indicates the chain's sequencer feed reports the
	// chain's own data may be unreliable.
	ErrCodeSequencerDown ErrorCode = "SEQUENCER_DOWN"

	// ErrCodeInsufficientFee indicates the supplied fee budget is below the
	// transport quote.
	ErrCodeInsufficientFee ErrorCode = "INSUFFICIENT_FEE"

	// ErrCodeTransport indicates a messaging-transport failure.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeDatabase indicates a database operation failure.
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeConfig indicates a configuration error.
	ErrCodeConfig ErrorCode = "CONFIG"
)

// OracleError is the typed error returned across package boundaries.
type OracleError struct {
	Code    ErrorCode
	Message string
	ChainID uint64
	Cause   error
}

// New creates a new OracleError with the given code and message.
func New(code ErrorCode, message string) *OracleError {
	return &OracleError{Code: code, Message: message}
}

// Newf creates a new OracleError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *OracleError {
	return &OracleError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithChain returns a copy of the error annotated with a chain id.
func (e *OracleError) WithChain(chainID uint64) *OracleError {
	clone := *e
	clone.ChainID = chainID
	return &clone
}

// WithCause returns a copy of the error wrapping an underlying cause.
func (e *OracleError) WithCause(cause error) *OracleError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *OracleError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.ChainID != 0 {
		msg = fmt.Sprintf("%s (chain %d)", msg, e.ChainID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *OracleError) Unwrap() error {
	return e.Cause
}

// Is matches any OracleError carrying the same code, so sentinel values
// compare by code rather than identity.
func (e *OracleError) Is(target error) bool {
	other, ok := target.(*OracleError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// Sentinel errors for errors.Is comparisons. Matching is by code, so wrapped
// and annotated instances still compare equal.
var (
	ErrNoAdaptersConfigured    = New(ErrCodeNoAdapters, "no price adapters configured")
	ErrNoValidPrice            = New(ErrCodeNoValidPrice, "no valid price available")
	ErrInvalidPrice            = New(ErrCodeInvalidPrice, "invalid price")
	ErrInvalidChainID          = New(ErrCodeInvalidChainID, "invalid chain id")
	ErrExceedsMaxReports       = New(ErrCodeExceedsMaxReports, "report batch exceeds maximum size")
	ErrInvalidAssetType        = New(ErrCodeInvalidAssetType, "asset has no category assigned")
	ErrPeerNotSet              = New(ErrCodePeerNotSet, "no peer configured for origin")
	ErrUnauthenticatedSender   = New(ErrCodeUnauthenticated, "sender does not match configured peer")
	ErrMessageAlreadyProcessed = New(ErrCodeAlreadyProcessed, "message already processed")
	ErrSequencerDown           = New(ErrCodeSequencerDown, "sequencer down or grace period not elapsed")
	ErrInsufficientFee         = New(ErrCodeInsufficientFee, "supplied fee below transport quote")
)
