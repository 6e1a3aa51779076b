package controller

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/electrumx-go/electrumx/coin"
	"github.com/electrumx-go/electrumx/history"
	"github.com/electrumx-go/electrumx/logctx"
	"github.com/electrumx-go/electrumx/notify"
	"github.com/electrumx-go/electrumx/rpcclient"
	"github.com/electrumx-go/electrumx/wire"
)

var bpLog = logctx.Get(logctx.TagController)

// blockProcessor walks the daemon's chain forward one block at a time,
// updating the history index and UTXO set and reporting touched hashXs to
// the notification coalescer. It is the concrete implementation of the
// block-walking role the indexing pipeline is specified only as an
// interface to (see DESIGN.md): simplified to sequential, single-block
// fetches rather than the reference daemon's pipelined batch prefetcher.
type blockProcessor struct {
	daemon *rpcclient.Client
	coin   coin.Coin
	hist   *history.History
	idx    *chainIndex
	notify *notify.Coalescer

	reorgLimit uint32

	tipHash string
	height  uint32
}

func newBlockProcessor(daemon *rpcclient.Client, c coin.Coin, hist *history.History, idx *chainIndex, coalescer *notify.Coalescer, reorgLimit uint32) (*blockProcessor, error) {
	bp := &blockProcessor{daemon: daemon, coin: c, hist: hist, idx: idx, notify: coalescer, reorgLimit: reorgLimit}
	height, hash, _, ok, err := idx.getTip()
	if err != nil {
		return nil, errors.Wrap(err, "load persisted tip")
	}
	if ok {
		bp.height = height
		bp.tipHash = hash
	}
	return bp, nil
}

// Height returns the last height fully processed into the history index.
func (bp *blockProcessor) Height() uint32 {
	return bp.height
}

// Run processes new blocks as they arrive until ctx is cancelled, polling
// the daemon every pollInterval when already caught up.
func (bp *blockProcessor) Run(ctx context.Context, pollInterval time.Duration) error {
	for {
		advanced, err := bp.catchUpOnce(ctx)
		if err != nil {
			bpLog.Warnf("catch up: %v", err)
		}
		if !advanced {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
		}
	}
}

func (bp *blockProcessor) catchUpOnce(ctx context.Context) (bool, error) {
	daemonHeight, err := bp.daemon.BlockCount(ctx)
	if err != nil {
		return false, errors.Wrap(err, "getblockcount")
	}
	if daemonHeight <= bp.height && bp.tipHash != "" {
		return false, nil
	}

	if bp.tipHash != "" {
		if reorged, err := bp.detectAndUndoReorg(ctx); err != nil {
			return false, err
		} else if reorged {
			return true, nil
		}
	}

	next := bp.height + 1
	if bp.tipHash == "" {
		next = bp.height // first block processed is height 0
	}
	if next > daemonHeight {
		return false, nil
	}
	if err := bp.processHeight(ctx, next); err != nil {
		return false, errors.Wrapf(err, "process block %d", next)
	}
	return true, nil
}

// detectAndUndoReorg compares the daemon's hash at our current tip height
// against what we recorded when we processed it; a mismatch means the
// daemon reorganized, and we must back the index out one block at a time
// until the hashes agree again. This is only safe above genesis.
func (bp *blockProcessor) detectAndUndoReorg(ctx context.Context) (bool, error) {
	daemonHash, err := bp.daemon.BlockHash(ctx, bp.height)
	if err != nil {
		return false, errors.Wrap(err, "getblockhash")
	}
	if daemonHash == bp.tipHash {
		return false, nil
	}
	bpLog.Warnf("reorg detected at height %d: local %s, daemon %s", bp.height, bp.tipHash, daemonHash)

	meta, ok, err := bp.idx.blockMeta(bp.height)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errors.Errorf("missing block meta for height %d during reorg", bp.height)
	}
	touched, txHashes, spends, err := bp.undoSetForHeight(ctx, bp.height, meta)
	if err != nil {
		return false, err
	}
	touchedList := make([][]byte, 0, len(touched))
	for k := range touched {
		touchedList = append(touchedList, []byte(k))
	}
	if err := bp.hist.Backup(touchedList, txHashes, spends, meta.FirstTxNum); err != nil {
		return false, errors.Wrap(err, "backup history")
	}
	bp.notify.OnBlock(touched, bp.height)

	if bp.height == 0 {
		bp.tipHash = ""
		bp.height = 0
		if err := bp.idx.putTip(bp.height, bp.tipHash, meta.FirstTxNum); err != nil {
			return false, errors.Wrap(err, "persist tip after reorg")
		}
		return true, nil
	}
	bp.height--
	prevMeta, ok, err := bp.idx.blockMeta(bp.height)
	if err != nil {
		return false, err
	}
	if ok {
		bp.tipHash = headerBlockHash(bp.coin, prevMeta.Header)
	}
	if err := bp.idx.putTip(bp.height, bp.tipHash, meta.FirstTxNum); err != nil {
		return false, errors.Wrap(err, "persist tip after reorg")
	}
	return true, nil
}

// undoSetForHeight reconstructs everything a reorg rollback at height
// touches by re-fetching the orphaned block from the daemon and re-parsing
// it exactly as processHeight originally did: the chain index itself no
// longer has this information once a block is fully applied, since
// spendUTXO deletes the UTXO rows a spend consumes. touched collects every
// hashX the block's outputs or spent inputs belonged to; spends collects
// the txo spend records the block created so Backup can remove them.
func (bp *blockProcessor) undoSetForHeight(ctx context.Context, height uint32, meta blockMeta) (touched map[string]struct{}, txHashes [][]byte, spends []history.SpendKey, err error) {
	blockHash := headerBlockHash(bp.coin, meta.Header)
	raw, err := bp.daemon.RawBlock(ctx, blockHash)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "getblock for undo")
	}
	if len(raw) < coin.BaseHeaderLen {
		return nil, nil, nil, errors.New("orphaned block shorter than header")
	}

	bodyStart := coin.BaseHeaderLen
	if coin.IsAuxPoW(raw) {
		bodyStart, err = coin.ReadAuxPoWHeader(raw, coin.BaseHeaderLen, bp.coin.NewDeserializer)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "parse auxpow header for undo")
		}
	}

	des := bp.coin.NewDeserializer(raw, bodyStart)
	txs, err := des.ReadTxBlock()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "parse orphaned block body")
	}

	touched = make(map[string]struct{})
	for i, tx := range txs {
		txNum := meta.FirstTxNum + uint64(i)

		for _, out := range tx.Outputs {
			hashX := bp.coin.HashXFromScript(out.PkScript)
			if hashX == nil {
				continue
			}
			touched[string(hashX)] = struct{}{}
		}

		if !tx.Inputs[0].IsGeneration() {
			for _, in := range tx.Inputs {
				prevTxNum, found, err := bp.hist.GetTxNumForTxHash(in.PrevHash)
				if err != nil {
					return nil, nil, nil, errors.Wrap(err, "lookup prevout txnum for undo")
				}
				if !found {
					continue
				}
				spends = append(spends, history.SpendKey{TxNum: prevTxNum, OutIdx: in.PrevIdx})
				spentHashX, err := bp.recoverSpentHashX(ctx, in.PrevHash, in.PrevIdx)
				if err != nil {
					return nil, nil, nil, err
				}
				if spentHashX != nil {
					touched[string(spentHashX)] = struct{}{}
				}
			}
		}

		h, found, err := bp.idx.txHash(txNum)
		if err != nil {
			return nil, nil, nil, err
		}
		if found {
			txHashes = append(txHashes, h)
		}
	}
	return touched, txHashes, spends, nil
}

// recoverSpentHashX re-fetches the transaction that created the output at
// (prevHash, prevIdx) to recover the hashX it belonged to: spendUTXO already
// deleted the UTXO rows for it during the forward pass, so this is the only
// place left to learn which hashX a reorg's spent inputs touched.
func (bp *blockProcessor) recoverSpentHashX(ctx context.Context, prevHash []byte, prevIdx uint32) ([]byte, error) {
	raw, err := bp.daemon.RawTransaction(ctx, wire.HashToHexStr(prevHash))
	if err != nil {
		return nil, errors.Wrap(err, "getrawtransaction for undo")
	}
	des := bp.coin.NewDeserializer(raw, 0)
	tx, err := des.ReadTx()
	if err != nil {
		return nil, errors.Wrap(err, "parse prevout transaction for undo")
	}
	if int(prevIdx) >= len(tx.Outputs) {
		return nil, errors.Errorf("prevout index %d out of range for tx with %d outputs", prevIdx, len(tx.Outputs))
	}
	return bp.coin.HashXFromScript(tx.Outputs[prevIdx].PkScript), nil
}

func headerBlockHash(c coin.Coin, header []byte) string {
	return wire.HashToHexStr(c.TxHashFn()(header))
}

func (bp *blockProcessor) processHeight(ctx context.Context, height uint32) error {
	blockHash, err := bp.daemon.BlockHash(ctx, height)
	if err != nil {
		return errors.Wrap(err, "getblockhash")
	}
	raw, err := bp.daemon.RawBlock(ctx, blockHash)
	if err != nil {
		return errors.Wrap(err, "getblock")
	}
	if len(raw) < coin.BaseHeaderLen {
		return errors.New("block shorter than header")
	}

	bodyStart := coin.BaseHeaderLen
	if coin.IsAuxPoW(raw) {
		bodyStart, err = coin.ReadAuxPoWHeader(raw, coin.BaseHeaderLen, bp.coin.NewDeserializer)
		if err != nil {
			return errors.Wrap(err, "parse auxpow header")
		}
	}
	header := raw[:coin.BaseHeaderLen]

	des := bp.coin.NewDeserializer(raw, bodyStart)
	txs, err := des.ReadTxBlock()
	if err != nil {
		return errors.Wrap(err, "parse block body")
	}

	state := bp.hist.State()
	firstTxNum := state.TxCount

	touched := make(map[string]struct{})

	for i, tx := range txs {
		txNum := firstTxNum + uint64(i)
		txTouched := make(map[string]struct{})

		for outIdx, out := range tx.Outputs {
			hashX := bp.coin.HashXFromScript(out.PkScript)
			if hashX == nil {
				continue
			}
			if err := bp.idx.addUTXO(hashX, txNum, uint32(outIdx), uint64(out.Value)); err != nil {
				return errors.Wrap(err, "add utxo")
			}
			txTouched[string(hashX)] = struct{}{}
		}

		if !tx.Inputs[0].IsGeneration() {
			for _, in := range tx.Inputs {
				spentTxNum, found, err := bp.hist.GetTxNumForTxHash(in.PrevHash)
				if err != nil {
					return errors.Wrap(err, "lookup prevout txnum")
				}
				if !found {
					continue // prevout predates this indexer's tracked history
				}
				entry, ok, err := bp.idx.spendUTXO(spentTxNum, in.PrevIdx, coin.HashXLen)
				if err != nil {
					return errors.Wrap(err, "spend utxo")
				}
				if !ok {
					continue
				}
				if err := bp.hist.SetSpenderTxNumForTxo(spentTxNum, in.PrevIdx, txNum); err != nil {
					return errors.Wrap(err, "record spender")
				}
				txTouched[string(entry.HashX)] = struct{}{}
			}
		}

		touchedList := make([][]byte, 0, len(txTouched))
		for k := range txTouched {
			touchedList = append(touchedList, []byte(k))
			touched[k] = struct{}{}
		}
		bp.hist.AddUnflushed(touchedList, tx.TxID, txNum)
		bp.idx.putTxLocation(txNum, tx.TxID, height)
	}

	newTxCount := firstTxNum + uint64(len(txs))
	if err := bp.hist.Flush(newTxCount); err != nil {
		return errors.Wrap(err, "flush history")
	}
	if err := bp.idx.putBlockMeta(height, blockMeta{FirstTxNum: firstTxNum, Header: header}); err != nil {
		return errors.Wrap(err, "store block meta")
	}

	bp.height = height
	bp.tipHash = blockHash
	if err := bp.idx.putTip(height, blockHash, newTxCount); err != nil {
		return errors.Wrap(err, "persist tip")
	}
	bp.notify.OnBlock(touched, height)
	return nil
}
