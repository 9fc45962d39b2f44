package pricing

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedAdapter struct {
	name string
}

func (a *namedAdapter) Describe() string { return a.name }
func (a *namedAdapter) GetPrice(context.Context, common.Address, bool) (PriceData, error) {
	return PriceData{}, nil
}
func (a *namedAdapter) IsSupportedAsset(common.Address) bool { return true }

func orderedNames(r *AdapterRegistry) []string {
	var names []string
	for _, a := range r.Ordered() {
		names = append(names, a.Describe())
	}
	return names
}

func TestAdapterRegistryOrdering(t *testing.T) {
	r := NewAdapterRegistry()
	require.NoError(t, r.Add(3, &namedAdapter{name: "c"}))
	require.NoError(t, r.Add(1, &namedAdapter{name: "a"}))
	require.NoError(t, r.Add(2, &namedAdapter{name: "b"}))

	assert.Equal(t, []string{"a", "b", "c"}, orderedNames(r))
	assert.Equal(t, 3, r.Len())
}

func TestAdapterRegistryDuplicatePriority(t *testing.T) {
	r := NewAdapterRegistry()
	require.NoError(t, r.Add(1, &namedAdapter{name: "a"}))
	require.Error(t, r.Add(1, &namedAdapter{name: "b"}))
}

func TestAdapterRegistryRemove(t *testing.T) {
	r := NewAdapterRegistry()
	require.NoError(t, r.Add(1, &namedAdapter{name: "a"}))
	require.NoError(t, r.Add(2, &namedAdapter{name: "b"}))
	require.NoError(t, r.Add(3, &namedAdapter{name: "c"}))

	t.Run("removing the head preserves remainder order", func(t *testing.T) {
		require.NoError(t, r.Remove(1))
		assert.Equal(t, []string{"b", "c"}, orderedNames(r))
	})

	t.Run("removing a missing priority errors", func(t *testing.T) {
		require.Error(t, r.Remove(42))
	})

	t.Run("re-adding a removed priority works", func(t *testing.T) {
		require.NoError(t, r.Add(1, &namedAdapter{name: "a2"}))
		assert.Equal(t, []string{"a2", "b", "c"}, orderedNames(r))
	})
}

func TestAdapterRegistryRejectsNil(t *testing.T) {
	r := NewAdapterRegistry()
	require.Error(t, r.Add(1, nil))
}
