package history

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/electrumx-go/electrumx/storage"
	"github.com/electrumx-go/electrumx/wire"
)

// History is the durable index of which transactions touched which hashX,
// backed by an ordered KV store. All public methods are safe for
// concurrent use.
type History struct {
	mu    sync.Mutex
	kv    storage.KV
	state State

	// unflushed accumulates H-prefix writes in memory between Flush calls,
	// keyed by the raw hashX bytes.
	unflushed map[string][]byte
	// unflushedTxHashes mirrors unflushed for the t-prefix mapping.
	unflushedTxHashes map[string][]byte
	// unflushedSpends mirrors unflushed for the s-prefix spender map, keyed
	// by the encoded spend key so it flushes in the same batch as the H/t
	// writes for the block that created it.
	unflushedSpends map[string][]byte
}

// SpendKey identifies one txo by the tx_num/out_idx pair its spend record is
// keyed on.
type SpendKey struct {
	TxNum  uint64
	OutIdx uint32
}

// Open loads (or initializes) a History over kv. utxoDBTxCount is the tx
// count the companion UTXO index has durably reached; if history's own tx
// count ran ahead of it (an unclean shutdown between the two flushes),
// Open truncates the excess H/t/s entries so the two stores agree again.
func Open(kv storage.KV, utxoDBTxCount uint64) (*History, error) {
	h := &History{
		kv:                kv,
		unflushed:         make(map[string][]byte),
		unflushedTxHashes: make(map[string][]byte),
		unflushedSpends:   make(map[string][]byte),
	}
	raw, ok, err := kv.Get(stateKey)
	if err != nil {
		return nil, errors.Wrap(err, "read history state")
	}
	if ok {
		h.state = decodeState(raw)
	}
	if err := h.clearExcess(utxoDBTxCount); err != nil {
		return nil, errors.Wrap(err, "clear excess history")
	}
	return h, nil
}

// clearExcess deletes H/t/s entries with tx_num >= utxoDBTxCount and rolls
// the flush state back to match, recovering from a crash between the
// history flush and the UTXO index's own flush of the same block.
func (h *History) clearExcess(utxoDBTxCount uint64) error {
	if h.state.TxCount <= utxoDBTxCount {
		return nil
	}

	batch := h.kv.NewBatch()

	if err := func() error {
		it := h.kv.Iterator([]byte{prefixHistory}, false)
		defer it.Close()
		for it.Next() {
			key := it.Key() // hashX + tx_num, prefix already trimmed
			if len(key) < wire.TxNumLen {
				continue
			}
			txNum := wire.UnpackTxNum(key[len(key)-wire.TxNumLen:])
			if txNum >= utxoDBTxCount {
				batch.Delete(append([]byte{prefixHistory}, key...))
			}
		}
		return it.Err()
	}(); err != nil {
		return errors.Wrap(err, "scan H entries")
	}

	if err := func() error {
		it := h.kv.Iterator([]byte{prefixTxHashToTxNum}, false)
		defer it.Close()
		for it.Next() {
			if wire.UnpackTxNum(it.Value()) >= utxoDBTxCount {
				batch.Delete(append([]byte{prefixTxHashToTxNum}, it.Key()...))
			}
		}
		return it.Err()
	}(); err != nil {
		return errors.Wrap(err, "scan t entries")
	}

	if err := func() error {
		it := h.kv.Iterator([]byte{prefixSpend}, false)
		defer it.Close()
		for it.Next() {
			key := it.Key() // tx_num + out_idx, prefix already trimmed
			if len(key) < wire.TxNumLen {
				continue
			}
			prevTxNum := wire.UnpackTxNum(key[:wire.TxNumLen])
			spenderTxNum := wire.UnpackTxNum(it.Value())
			if prevTxNum >= utxoDBTxCount || spenderTxNum >= utxoDBTxCount {
				batch.Delete(append([]byte{prefixSpend}, key...))
			}
		}
		return it.Err()
	}(); err != nil {
		return errors.Wrap(err, "scan s entries")
	}

	h.state.TxCount = utxoDBTxCount
	batch.Put(stateKey, h.state.encode())
	return errors.Wrap(batch.Write(), "write clear-excess batch")
}

// State returns a copy of the current flush bookkeeping record.
func (h *History) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// AddUnflushed records that tx_num touched each hashX in touched, and
// stages the tx_hash -> tx_num mapping for txHash. It does not write to the
// store; call Flush to persist.
func (h *History) AddUnflushed(touched [][]byte, txHash []byte, txNum uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	packed := wire.PackTxNum(txNum)
	for _, hashX := range touched {
		h.unflushed[string(hashX)] = append(h.unflushed[string(hashX)], packed...)
	}
	h.unflushedTxHashes[string(txHash)] = packed
}

// Flush persists every pending AddUnflushed write as one atomic batch and
// bumps the flush count and tx count.
func (h *History) Flush(txCount uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.unflushed) == 0 && len(h.unflushedTxHashes) == 0 && len(h.unflushedSpends) == 0 && txCount == h.state.TxCount {
		return nil
	}

	batch := h.kv.NewBatch()
	for hashX, packedNums := range h.unflushed {
		// History entries are one row per tx_num rather than one blob per
		// hashX, so each packed tx_num becomes its own H key.
		for i := 0; i+wire.TxNumLen <= len(packedNums); i += wire.TxNumLen {
			txNum := wire.UnpackTxNum(packedNums[i : i+wire.TxNumLen])
			batch.Put(historyKey([]byte(hashX), txNum), nil)
		}
	}
	for txHash, packed := range h.unflushedTxHashes {
		batch.Put(txHashKey([]byte(txHash)), packed)
	}
	for key, packedSpender := range h.unflushedSpends {
		batch.Put([]byte(key), packedSpender)
	}

	h.state.FlushCount++
	h.state.TxCount = txCount
	batch.Put(stateKey, h.state.encode())

	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "flush history batch")
	}
	h.unflushed = make(map[string][]byte)
	h.unflushedTxHashes = make(map[string][]byte)
	h.unflushedSpends = make(map[string][]byte)
	return nil
}

// Backup removes every history, tx_hash, and spend entry at or above
// txCount, undoing the effect of Flush calls made during a chain segment
// that is being reorganized away. touched lists the hashXs whose history
// entries must be rescanned; txHashes lists the tx hashes to unmap; spends
// lists the txo spend records the orphaned block created, which must be
// deleted so the spent outputs reappear as unspent.
func (h *History) Backup(touched [][]byte, txHashes [][]byte, spends []SpendKey, txCount uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	batch := h.kv.NewBatch()
	for _, hashX := range touched {
		if err := func() error {
			it := h.kv.Iterator(historyPrefix(hashX), true)
			defer it.Close()
			for it.Next() {
				txNum := wire.UnpackTxNum(it.Key())
				if txNum < txCount {
					break
				}
				batch.Delete(historyKey(hashX, txNum))
			}
			return it.Err()
		}(); err != nil {
			return errors.Wrap(err, "iterate history for backup")
		}
	}
	for _, txHash := range txHashes {
		batch.Delete(txHashKey(txHash))
	}
	for _, sk := range spends {
		batch.Delete(spendKey(sk.TxNum, sk.OutIdx))
	}

	h.state.TxCount = txCount
	batch.Put(stateKey, h.state.encode())
	return errors.Wrap(batch.Write(), "write history backup batch")
}

// GetTxNums returns up to limit tx_nums recorded for hashX, in ascending
// order. limit <= 0 means unbounded.
func (h *History) GetTxNums(hashX []byte, limit int) ([]uint64, error) {
	it := h.kv.Iterator(historyPrefix(hashX), false)
	defer it.Close()

	var nums []uint64
	for it.Next() {
		if limit > 0 && len(nums) >= limit {
			break
		}
		nums = append(nums, wire.UnpackTxNum(it.Key()))
	}
	if err := it.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate tx_nums for hashX")
	}
	return nums, nil
}

// GetTxNumForTxHash resolves a transaction hash to its tx_num.
func (h *History) GetTxNumForTxHash(txHash []byte) (uint64, bool, error) {
	raw, ok, err := h.kv.Get(txHashKey(txHash))
	if err != nil {
		return 0, false, errors.Wrap(err, "get tx_num for tx hash")
	}
	if !ok {
		return 0, false, nil
	}
	return wire.UnpackTxNum(raw), true, nil
}

// SetSpenderTxNumForTxo records that the output outIdx of transaction
// txNum was spent by the transaction at spenderTxNum. The write is staged
// alongside AddUnflushed's H/t entries and only becomes visible on the next
// Flush, so a block's spend records are never split across batches from its
// other history writes.
func (h *History) SetSpenderTxNumForTxo(txNum uint64, outIdx uint32, spenderTxNum uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unflushedSpends[string(spendKey(txNum, outIdx))] = wire.PackTxNum(spenderTxNum)
	return nil
}

// GetSpenderTxNumForTxo looks up which transaction, if any, spent the given
// output.
func (h *History) GetSpenderTxNumForTxo(txNum uint64, outIdx uint32) (uint64, bool, error) {
	raw, ok, err := h.kv.Get(spendKey(txNum, outIdx))
	if err != nil {
		return 0, false, errors.Wrap(err, "get spender")
	}
	if !ok {
		return 0, false, nil
	}
	return wire.UnpackTxNum(raw), true, nil
}

// StoreIntermediateStatusHashForHashX caches the chained status hash for
// hashX as of txNum. Callers only do this once txNum is behind the
// reorg-safe depth, since a cached value at a height that later reorgs away
// would be wrong.
func (h *History) StoreIntermediateStatusHashForHashX(hashX []byte, txNum uint64, statusHash []byte) error {
	return errors.Wrap(h.kv.Put(statusHashKey(hashX, txNum), statusHash), "store intermediate status hash")
}

// GetIntermediateStatusHashForHashX returns the highest cached status hash
// for hashX at or below txNum, along with the tx_num it was cached at, so
// the caller can chain forward from there instead of from genesis.
func (h *History) GetIntermediateStatusHashForHashX(hashX []byte, txNum uint64) ([]byte, uint64, bool, error) {
	it := h.kv.Iterator([]byte{prefixStatusHash}, true)
	defer it.Close()

	prefix := append([]byte{}, hashX...)
	for it.Next() {
		key := it.Key()
		if len(key) < len(prefix)+wire.TxNumLen || string(key[:len(prefix)]) != string(prefix) {
			continue
		}
		cachedTxNum := wire.UnpackTxNum(key[len(prefix):])
		if cachedTxNum <= txNum {
			return it.Value(), cachedTxNum, true, nil
		}
	}
	if err := it.Err(); err != nil {
		return nil, 0, false, errors.Wrap(err, "iterate status hash cache")
	}
	return nil, 0, false, nil
}
