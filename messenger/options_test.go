package messenger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinePassesCallerThroughWithoutEnforced(t *testing.T) {
	e := NewEnforcedOptions()
	caller := []byte{0x00, 0x03, 0x01, 0x02}

	merged, err := e.Combine(2, MsgTypeReportPush, caller)
	require.NoError(t, err)
	assert.Equal(t, caller, merged)
}

func TestCombineUsesEnforcedWhenCallerEmpty(t *testing.T) {
	e := NewEnforcedOptions()
	enforced := []byte{0x00, 0x03, 0xAA}
	require.NoError(t, e.Set(2, MsgTypeReportPush, enforced))

	merged, err := e.Combine(2, MsgTypeReportPush, nil)
	require.NoError(t, err)
	assert.Equal(t, enforced, merged)
}

func TestCombineAppendsCallerAfterEnforced(t *testing.T) {
	e := NewEnforcedOptions()
	require.NoError(t, e.Set(2, MsgTypeReportPush, []byte{0x00, 0x03, 0xAA, 0xBB}))

	merged, err := e.Combine(2, MsgTypeReportPush, []byte{0x00, 0x03, 0xCC})
	require.NoError(t, err)
	// Enforced floor first, caller parameters after, one version prefix.
	assert.Equal(t, []byte{0x00, 0x03, 0xAA, 0xBB, 0xCC}, merged)
}

func TestCombineIsScopedByMessageType(t *testing.T) {
	e := NewEnforcedOptions()
	require.NoError(t, e.Set(2, MsgTypeReportPush, []byte{0x00, 0x03, 0xAA}))

	merged, err := e.Combine(2, MsgTypeReportRequest, nil)
	require.NoError(t, err)
	assert.Nil(t, merged, "enforced options for pushes must not leak into requests")
}

func TestCombineRejectsWrongVersion(t *testing.T) {
	e := NewEnforcedOptions()
	_, err := e.Combine(2, MsgTypeReportPush, []byte{0x00, 0x01, 0xAA})
	assert.Error(t, err)

	assert.Error(t, e.Set(2, MsgTypeReportPush, []byte{0x00, 0x02}))
	assert.Error(t, e.Set(2, MsgTypeReportPush, []byte{0x03}))
}
