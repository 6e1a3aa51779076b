package controller

import (
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/electrumx-go/electrumx/history"
)

// statusHash recomputes a hashX's status: the SHA-256 chain over its mined
// history, resumed from the nearest cached intermediate hash, then extended
// with its current mempool transactions. Returns "" if hashX has no history
// at all (mined or mempool), matching the wallet-facing convention that an
// unused address has a null status.
func (c *Controller) statusHash(hashX []byte) (string, error) {
	txNums, err := c.hist.GetTxNums(hashX, 0)
	if err != nil {
		return "", errors.Wrap(err, "get tx nums")
	}

	var chain []byte
	start := 0
	if len(txNums) > 0 {
		upperBound := txNums[len(txNums)-1] + 1
		if cached, cachedTxNum, ok, err := c.hist.GetIntermediateStatusHashForHashX(hashX, upperBound); err != nil {
			return "", errors.Wrap(err, "get cached status")
		} else if ok {
			chain = cached
			for start < len(txNums) && txNums[start] <= cachedTxNum {
				start++
			}
		}
	}

	tip := c.blockProc.Height()
	for i := start; i < len(txNums); i++ {
		txNum := txNums[i]
		txHash, found, err := c.idx.txHash(txNum)
		if err != nil {
			return "", errors.Wrap(err, "resolve tx hash")
		}
		if !found {
			continue
		}
		height, found, err := c.idx.txHeight(txNum)
		if err != nil {
			return "", errors.Wrap(err, "resolve tx height")
		}
		if !found {
			continue
		}
		chain = history.ChainConfirmed(chain, txHash, int32(height))

		if tip >= c.reorgLimit && height <= tip-c.reorgLimit {
			if err := c.hist.StoreIntermediateStatusHashForHashX(hashX, txNum, chain); err != nil {
				return "", errors.Wrap(err, "cache intermediate status")
			}
		}
	}

	mempoolChain := chain
	hadAny := len(txNums) > 0
	for _, summary := range c.mempool.Summaries(string(hashX)) {
		hadAny = true
		mempoolChain = history.ChainMempool(mempoolChain, []byte(summary.Hash), 0, summary.Fee)
	}

	if !hadAny {
		return "", nil
	}
	return hex.EncodeToString(mempoolChain), nil
}
