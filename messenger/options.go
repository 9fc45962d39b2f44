package messenger

import (
	"encoding/binary"
	"sync"

	oerrors "github.com/omnivault/oracle-node/errors"
)

// OptionsVersion is the only execution-options encoding the protocol
// understands: a big-endian uint16 version prefix followed by opaque
// executor parameters.
const OptionsVersion uint16 = 3

// optionsKey addresses enforced options per destination and message type.
type optionsKey struct {
	ChainID uint64
	MsgType uint16
}

// EnforcedOptions holds the administratively configured minimum execution
// options per (destination chain, message type). Whatever a caller supplies,
// the enforced suffix is always present in what goes out.
type EnforcedOptions struct {
	mu      sync.RWMutex
	entries map[optionsKey][]byte
}

// NewEnforcedOptions creates an empty table.
func NewEnforcedOptions() *EnforcedOptions {
	return &EnforcedOptions{entries: make(map[optionsKey][]byte)}
}

// Set installs the enforced options for a destination and message type.
func (e *EnforcedOptions) Set(chainID uint64, msgType uint16, options []byte) error {
	if err := validateOptions(options); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[optionsKey{ChainID: chainID, MsgType: msgType}] = append([]byte(nil), options...)
	return nil
}

// Get returns the enforced options for a destination and message type, or
// nil when none are configured.
func (e *EnforcedOptions) Get(chainID uint64, msgType uint16) []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	opts, ok := e.entries[optionsKey{ChainID: chainID, MsgType: msgType}]
	if !ok {
		return nil
	}
	return append([]byte(nil), opts...)
}

// Combine merges caller-supplied options with the enforced set for the
// destination. With no enforced entry the caller options pass through
// unchanged; with no caller options the enforced entry is used as-is; with
// both, the caller's executor parameters are appended after the enforced
// ones so the enforced floor always applies.
func (e *EnforcedOptions) Combine(chainID uint64, msgType uint16, caller []byte) ([]byte, error) {
	enforced := e.Get(chainID, msgType)
	if len(enforced) == 0 {
		if len(caller) == 0 {
			return nil, nil
		}
		if err := validateOptions(caller); err != nil {
			return nil, err
		}
		return append([]byte(nil), caller...), nil
	}
	if len(caller) == 0 {
		return enforced, nil
	}
	if err := validateOptions(caller); err != nil {
		return nil, err
	}

	merged := make([]byte, 0, len(enforced)+len(caller)-2)
	merged = append(merged, enforced...)
	merged = append(merged, caller[2:]...) // strip the caller's version prefix
	return merged, nil
}

// validateOptions checks the version prefix. Options are otherwise opaque.
func validateOptions(options []byte) error {
	if len(options) < 2 {
		return oerrors.New(oerrors.ErrCodeValidation, "options too short for version prefix")
	}
	if v := binary.BigEndian.Uint16(options[0:2]); v != OptionsVersion {
		return oerrors.Newf(oerrors.ErrCodeValidation, "unsupported options version %d", v)
	}
	return nil
}
