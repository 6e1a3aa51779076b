package rpcclient

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/electrumx-go/electrumx/coin"
	"github.com/electrumx-go/electrumx/mempool"
)

// DaemonMemPoolAPI adapts Client to mempool.API, so the mempool tracker can
// pull raw transactions and prevout values straight from the daemon without
// depending on the rest of the indexer's internals.
type DaemonMemPoolAPI struct {
	client *Client
	coin   coin.Coin

	height   func() uint32
	dbHeight func() uint32
	onTouch  func(ctx context.Context, touched map[string]struct{}, height uint32) error
}

// NewDaemonMemPoolAPI returns a mempool.API backed by client. height and
// dbHeight are callbacks into the controller's current view of the chain;
// onTouch is invoked with the set of hashXs the mempool refresh touched.
func NewDaemonMemPoolAPI(
	client *Client,
	c coin.Coin,
	height func() uint32,
	dbHeight func() uint32,
	onTouch func(ctx context.Context, touched map[string]struct{}, height uint32) error,
) *DaemonMemPoolAPI {
	return &DaemonMemPoolAPI{client: client, coin: c, height: height, dbHeight: dbHeight, onTouch: onTouch}
}

// Height implements mempool.API.
func (a *DaemonMemPoolAPI) Height() uint32 { return a.height() }

// DBHeight implements mempool.API.
func (a *DaemonMemPoolAPI) DBHeight() uint32 { return a.dbHeight() }

// OnMempool implements mempool.API.
func (a *DaemonMemPoolAPI) OnMempool(ctx context.Context, touched map[string]struct{}, height uint32) error {
	return a.onTouch(ctx, touched, height)
}

// MempoolHashes implements mempool.API.
func (a *DaemonMemPoolAPI) MempoolHashes(ctx context.Context) ([][]byte, error) {
	txids, err := a.client.RawMempool(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getrawmempool")
	}
	hashes := make([][]byte, len(txids))
	for i, txid := range txids {
		h, err := hex.DecodeString(txid)
		if err != nil {
			return nil, errors.Wrapf(err, "decode mempool txid %s", txid)
		}
		hashes[i] = reverseBytes(h)
	}
	return hashes, nil
}

// RawTransactions implements mempool.API, fetching concurrently since a
// mempool refresh commonly needs hundreds of transactions at once.
func (a *DaemonMemPoolAPI) RawTransactions(ctx context.Context, hashes [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(hashes))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range hashes {
		h := h
		g.Go(func() error {
			txid := hex.EncodeToString(reverseBytes(h))
			raw, err := a.client.RawTransaction(gctx, txid)
			if err != nil {
				return errors.Wrapf(err, "getrawtransaction %s", txid)
			}
			mu.Lock()
			result[string(h)] = raw
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// LookupUTXOs implements mempool.API.
func (a *DaemonMemPoolAPI) LookupUTXOs(ctx context.Context, prevouts []mempool.Prevout) (map[mempool.Prevout]mempool.UTXO, error) {
	result := make(map[mempool.Prevout]mempool.UTXO, len(prevouts))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range prevouts {
		p := p
		g.Go(func() error {
			txid := hex.EncodeToString(reverseBytes([]byte(p.TxHash)))
			out, ok, err := a.client.GetTxOut(gctx, txid, p.OutIdx)
			if err != nil {
				return errors.Wrapf(err, "gettxout %s:%d", txid, p.OutIdx)
			}
			if !ok {
				return nil
			}
			script, err := hex.DecodeString(out.ScriptPubKey.Hex)
			if err != nil {
				return errors.Wrap(err, "decode scriptPubKey hex")
			}
			hashX := a.coin.HashXFromScript(script)
			mu.Lock()
			result[p] = mempool.UTXO{Value: uint64(out.Value * 1e8), HashX: string(hashX)}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
