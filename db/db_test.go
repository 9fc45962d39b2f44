package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnivault/oracle-node/store"
)

func TestOpenInMemoryDB(t *testing.T) {
	database, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer database.Close()

	require.NotNil(t, database.Client())
	assert.True(t, database.Client().Migrator().HasTable(&store.VaultReport{}))
	assert.True(t, database.Client().Migrator().HasTable(&store.ProcessedMessage{}))
}

func TestOpenFileDB(t *testing.T) {
	dir := t.TempDir()

	database, err := OpenFileDB(dir, "oracle.db", true)
	require.NoError(t, err)
	defer database.Close()

	// A write must survive the round trip to disk.
	report := &store.VaultReport{
		OriginChainID: 137,
		VaultAddress:  "0xabc",
		Asset:         "0xdef",
		AssetDecimals: 6,
		SharePrice:    "1000000",
		LastUpdate:    1700000000,
	}
	require.NoError(t, database.Client().Create(report).Error)

	var count int64
	require.NoError(t, database.Client().Model(&store.VaultReport{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	assert.FileExists(t, filepath.Join(dir, "oracle.db"))
}

func TestOpenFileDBEmptyDir(t *testing.T) {
	_, err := OpenFileDB("", "oracle.db", true)
	require.Error(t, err)
}
