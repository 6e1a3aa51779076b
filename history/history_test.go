package history

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/electrumx-go/electrumx/storage"
)

func newMemKV(t *testing.T) storage.KV {
	t.Helper()
	dir := t.TempDir()
	kv, err := storage.OpenLevelDB(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestHistoryAddUnflushedAndFlush(t *testing.T) {
	kv := newMemKV(t)
	h, err := Open(kv, 0)
	require.NoError(t, err)

	hashX := []byte("01234567890")
	txHash := make([]byte, 32)
	txHash[0] = 0xAB

	h.AddUnflushed([][]byte{hashX}, txHash, 42)
	require.NoError(t, h.Flush(43))

	nums, err := h.GetTxNums(hashX, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, nums)

	txNum, ok, err := h.GetTxNumForTxHash(txHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 42, txNum)

	require.EqualValues(t, 43, h.State().TxCount)
	require.EqualValues(t, 1, h.State().FlushCount)
}

func TestHistoryBackupRemovesEntries(t *testing.T) {
	kv := newMemKV(t)
	h, err := Open(kv, 0)
	require.NoError(t, err)

	hashX := []byte("01234567890")
	txHashA := make([]byte, 32)
	txHashA[0] = 0x01
	txHashB := make([]byte, 32)
	txHashB[0] = 0x02

	h.AddUnflushed([][]byte{hashX}, txHashA, 1)
	require.NoError(t, h.Flush(2))
	h.AddUnflushed([][]byte{hashX}, txHashB, 2)
	require.NoError(t, h.Flush(3))

	require.NoError(t, h.Backup([][]byte{hashX}, [][]byte{txHashB}, nil, 2))

	nums, err := h.GetTxNums(hashX, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, nums)

	_, ok, err := h.GetTxNumForTxHash(txHashB)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSpenderTracking(t *testing.T) {
	kv := newMemKV(t)
	h, err := Open(kv, 0)
	require.NoError(t, err)

	require.NoError(t, h.SetSpenderTxNumForTxo(10, 0, 20))
	require.NoError(t, h.Flush(0))
	spender, ok, err := h.GetSpenderTxNumForTxo(10, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 20, spender)

	_, ok, err = h.GetSpenderTxNumForTxo(10, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIntermediateStatusHashCache(t *testing.T) {
	kv := newMemKV(t)
	h, err := Open(kv, 0)
	require.NoError(t, err)

	hashX := []byte("01234567890")
	statusA := ChainConfirmed(nil, make([]byte, 32), 100)
	require.NoError(t, h.StoreIntermediateStatusHashForHashX(hashX, 5, statusA))

	got, cachedAt, ok, err := h.GetIntermediateStatusHashForHashX(hashX, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 5, cachedAt)
	require.Equal(t, statusA, got)

	_, _, ok, err = h.GetIntermediateStatusHashForHashX(hashX, 4)
	require.NoError(t, err)
	require.False(t, ok)
}
