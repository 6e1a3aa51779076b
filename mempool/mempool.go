// Package mempool tracks unconfirmed transactions: their resolved inputs,
// fee rates, and which hashXs they touch, so sessions can serve mempool
// history and fee estimates without going back to the daemon on every
// request.
package mempool

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/electrumx-go/electrumx/coin"
	"github.com/electrumx-go/electrumx/wire"
)

// API is what MemPool needs from the chain indexer to do its job, mirroring
// the abstract methods the reference daemon integration exposes: current
// sync height, the daemon's own height, the raw mempool hash set, bulk raw
// transaction fetch, and UTXO lookups for resolving inputs.
type API interface {
	Height() uint32
	DBHeight() uint32
	MempoolHashes(ctx context.Context) ([][]byte, error)
	RawTransactions(ctx context.Context, hashes [][]byte) (map[string][]byte, error)
	LookupUTXOs(ctx context.Context, prevouts []Prevout) (map[Prevout]UTXO, error)
	OnMempool(ctx context.Context, touched map[string]struct{}, height uint32) error
}

// Prevout identifies a transaction output being spent.
type Prevout struct {
	TxHash string
	OutIdx uint32
}

// UTXO is the resolved value and hashX of a previous output, as needed to
// compute a new mempool transaction's fee and touched-hashX set.
type UTXO struct {
	Value uint64
	HashX string
}

// Tx is an unconfirmed transaction with its inputs resolved as far as
// possible. InPairs is nil until every input's previous output has been
// located, either on-chain or in another mempool transaction.
type Tx struct {
	Hash    string
	RawSize int
	Fee     uint64
	InPairs []InPair
	OutPairs []OutPair
	HashXs  map[string]struct{}
}

// InPair is one resolved (or still-pending) spent output.
type InPair struct {
	HashX string
	Value uint64
}

// OutPair is one output's hashX and value.
type OutPair struct {
	HashX string
	Value uint64
}

// Summary is the externally visible shape of a mempool entry: its hash
// (raw bytes), fee, and byte size. scripthash.get_mempool reports the hash
// and fee of each.
type Summary struct {
	Hash string
	Fee  uint64
	Size int
}

// MemPool holds the full set of known unconfirmed transactions and derives
// fee histograms and per-hashX summaries from it. The zero value is not
// usable; construct with New.
type MemPool struct {
	api  API
	coin coin.Coin

	mu        sync.RWMutex
	txs       map[string]*Tx
	hashXTxs  map[string]map[string]struct{} // hashX -> set of tx hashes
	histogram []HistogramBucket
}

// HistogramBucket is one (fee_rate, cumulative_size) bucket of the
// compact fee-rate histogram, read high-fee-rate first.
type HistogramBucket struct {
	FeeRate float64
	Size    int
}

// New constructs an empty MemPool.
func New(api API, c coin.Coin) *MemPool {
	return &MemPool{
		api:      api,
		coin:     c,
		txs:      make(map[string]*Tx),
		hashXTxs: make(map[string]map[string]struct{}),
	}
}

// Refresh brings the mempool in line with the daemon's current view: fetch
// the daemon's set of mempool hashes, drop anything we have that the daemon
// no longer does, fetch and accept everything new, and report the touched
// hashX set so sessions can be notified.
func (m *MemPool) Refresh(ctx context.Context) (map[string]struct{}, error) {
	height := m.api.Height()
	hashes, err := m.api.MempoolHashes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch mempool hashes")
	}
	daemonSet := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		daemonSet[string(h)] = struct{}{}
	}

	touched := make(map[string]struct{})

	m.mu.Lock()
	var toFetch [][]byte
	for h := range daemonSet {
		if _, ok := m.txs[h]; !ok {
			toFetch = append(toFetch, []byte(h))
		}
	}
	for h, tx := range m.txs {
		if _, ok := daemonSet[h]; !ok {
			m.removeLocked(h, tx, touched)
		}
	}
	m.mu.Unlock()

	if len(toFetch) == 0 {
		m.updateHistogram()
		return touched, m.api.OnMempool(ctx, touched, height)
	}

	raws, err := m.api.RawTransactions(ctx, toFetch)
	if err != nil {
		return nil, errors.Wrap(err, "fetch raw mempool transactions")
	}
	if err := m.accept(ctx, raws, touched); err != nil {
		return nil, err
	}
	m.updateHistogram()
	return touched, m.api.OnMempool(ctx, touched, height)
}

func (m *MemPool) removeLocked(hash string, tx *Tx, touched map[string]struct{}) {
	delete(m.txs, hash)
	for hashX := range tx.HashXs {
		touched[hashX] = struct{}{}
		set := m.hashXTxs[hashX]
		delete(set, hash)
		if len(set) == 0 {
			delete(m.hashXTxs, hashX)
		}
	}
}

// accept parses and resolves every raw transaction, iterating (like the
// reference implementation's _accept_transactions loop) because one
// transaction's inputs may spend another's still-unresolved outputs.
func (m *MemPool) accept(ctx context.Context, raws map[string][]byte, touched map[string]struct{}) error {
	pending := make(map[string][]byte, len(raws))
	for k, v := range raws {
		pending[k] = v
	}

	for len(pending) > 0 {
		progressed := false
		var prevouts []Prevout
		parsed := make(map[string]*coin.Tx, len(pending))

		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		for hash, raw := range pending {
			hash, raw := hash, raw
			g.Go(func() error {
				d := m.coin.NewDeserializer(raw, 0)
				tx, err := d.ReadTx()
				if err != nil {
					return errors.Wrapf(err, "parse mempool tx %x", hash)
				}
				mu.Lock()
				parsed[hash] = tx
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		_ = gctx

		m.mu.RLock()
		for hash, tx := range parsed {
			for _, in := range tx.Inputs {
				if in.IsGeneration() {
					continue
				}
				if _, ok := pending[string(in.PrevHash)]; ok {
					continue // still pending in this round
				}
				prevouts = append(prevouts, Prevout{TxHash: string(in.PrevHash), OutIdx: in.PrevIdx})
			}
			_ = hash
		}
		m.mu.RUnlock()

		utxos, err := m.api.LookupUTXOs(ctx, prevouts)
		if err != nil {
			return errors.Wrap(err, "lookup prevout utxos")
		}

		m.mu.Lock()
		for hash, tx := range parsed {
			raw := pending[hash]
			resolved, ok := m.resolveInputs(tx, utxos)
			if !ok {
				continue
			}
			progressed = true
			delete(pending, hash)

			entry := &Tx{
				Hash:    hash,
				RawSize: len(raw),
				InPairs: resolved,
				HashXs:  make(map[string]struct{}),
			}
			var inValue uint64
			for _, p := range resolved {
				inValue += p.Value
				entry.HashXs[p.HashX] = struct{}{}
			}
			var outValue uint64
			for _, o := range tx.Outputs {
				hashX := m.coin.HashXFromScript(o.PkScript)
				if hashX == nil {
					continue
				}
				entry.OutPairs = append(entry.OutPairs, OutPair{HashX: string(hashX), Value: uint64(o.Value)})
				entry.HashXs[string(hashX)] = struct{}{}
				outValue += uint64(o.Value)
			}
			if inValue > outValue {
				entry.Fee = inValue - outValue
			}

			m.txs[hash] = entry
			for hashX := range entry.HashXs {
				touched[hashX] = struct{}{}
				if m.hashXTxs[hashX] == nil {
					m.hashXTxs[hashX] = make(map[string]struct{})
				}
				m.hashXTxs[hashX][hash] = struct{}{}
			}
		}
		m.mu.Unlock()

		if !progressed {
			// Remaining entries depend on a prevout this refresh round
			// never resolved (commonly a still-unconfirmed ancestor
			// outside the fetched set); leave them for the next refresh.
			break
		}
	}
	return nil
}

// resolveInputs looks up each input's previous output, first against
// already-accepted mempool transactions, then against the supplied UTXO
// lookup results. ok is false if any input remains unresolved.
func (m *MemPool) resolveInputs(tx *coin.Tx, utxos map[Prevout]UTXO) ([]InPair, bool) {
	pairs := make([]InPair, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if in.IsGeneration() {
			pairs = append(pairs, InPair{})
			continue
		}
		if mpTx, ok := m.txs[string(in.PrevHash)]; ok {
			if int(in.PrevIdx) >= len(mpTx.OutPairs) {
				return nil, false
			}
			op := mpTx.OutPairs[in.PrevIdx]
			pairs = append(pairs, InPair{HashX: op.HashX, Value: op.Value})
			continue
		}
		utxo, ok := utxos[Prevout{TxHash: string(in.PrevHash), OutIdx: in.PrevIdx}]
		if !ok {
			return nil, false
		}
		pairs = append(pairs, InPair{HashX: utxo.HashX, Value: utxo.Value})
	}
	return pairs, true
}

// Summaries returns the mempool entries touching hashX.
func (m *MemPool) Summaries(hashX string) []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Summary
	for hash := range m.hashXTxs[hashX] {
		tx := m.txs[hash]
		out = append(out, Summary{Hash: hash, Fee: tx.Fee, Size: tx.RawSize})
	}
	return out
}

// BalanceDelta returns the confirmed-vs-mempool balance delta for hashX:
// received minus sent, across its mempool transactions only.
func (m *MemPool) BalanceDelta(hashX string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var delta int64
	for hash := range m.hashXTxs[hashX] {
		tx := m.txs[hash]
		for _, in := range tx.InPairs {
			if in.HashX == hashX {
				delta -= int64(in.Value)
			}
		}
		for _, out := range tx.OutPairs {
			if out.HashX == hashX {
				delta += int64(out.Value)
			}
		}
	}
	return delta
}

// TxHashFn exposes the coin's hash function for callers that need to
// compute a status hash over mempool entries.
func (m *MemPool) TxHashFn() wire.HashFn { return m.coin.TxHashFn() }
