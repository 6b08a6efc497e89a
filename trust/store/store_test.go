package store_test

import (
	"testing"
	"time"

	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/trust/store"
	"github.com/stretchr/testify/require"
)

func TestRevocationPersistsAcrossReopen(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	var key ids.PublicKey
	for i := range key {
		key[i] = byte(i)
	}
	rec := store.Record{RevokerID: key, Timestamp: time.Now().Truncate(time.Second)}

	s, err := store.Open(dir)
	require.NoError(err)
	require.NoError(s.Put(key, rec))
	require.NoError(s.Close())

	reopened, err := store.Open(dir)
	require.NoError(err)
	defer reopened.Close()

	all, err := reopened.LoadAll()
	require.NoError(err)
	require.Contains(all, key)
	require.True(all[key].Timestamp.Equal(rec.Timestamp))
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	s, err := store.Open(dir)
	require.NoError(err)
	defer s.Close()

	var key ids.PublicKey
	_, err = s.Get(key)
	require.ErrorIs(err, store.ErrNotFound)
}
