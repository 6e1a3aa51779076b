// Package controller wires the history index, mempool tracker, notification
// coalescer, and session fabric into one running server, and supplies the
// session.Backend implementation that glues the wallet-facing protocol to
// the indexer's storage.
package controller

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/electrumx-go/electrumx/coin"
	"github.com/electrumx-go/electrumx/config"
	"github.com/electrumx-go/electrumx/history"
	"github.com/electrumx-go/electrumx/logctx"
	"github.com/electrumx-go/electrumx/mempool"
	"github.com/electrumx-go/electrumx/notify"
	"github.com/electrumx-go/electrumx/rpcclient"
	"github.com/electrumx-go/electrumx/session"
	"github.com/electrumx-go/electrumx/storage"
	"github.com/electrumx-go/electrumx/wire"
)

var log = logctx.Get(logctx.TagController)

const serverVersion = "go-electrumx/1.0"

// Controller owns every long-lived subsystem of a running server.
type Controller struct {
	cfg      *config.Config
	coinImpl coin.Coin
	kv       storage.KV
	daemon   *rpcclient.Client

	hist      *history.History
	idx       *chainIndex
	mempool   *mempool.MemPool
	coalescer *notify.Coalescer
	manager   *session.Manager
	blockProc *blockProcessor

	reorgLimit uint32

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New opens storage and wires every subsystem together, ready for Run.
func New(cfg *config.Config) (*Controller, error) {
	c, ok := coin.Registry[cfg.Coin]
	if !ok {
		return nil, errors.Errorf("unknown coin %q", cfg.Coin)
	}

	kv, err := storage.OpenLevelDB(cfg.DBDirectory)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	idx := newChainIndex(kv)
	_, _, utxoDBTxCount, _, err := idx.getTip()
	if err != nil {
		return nil, errors.Wrap(err, "read persisted tip")
	}

	hist, err := history.Open(kv, utxoDBTxCount)
	if err != nil {
		return nil, errors.Wrap(err, "open history")
	}

	daemon := rpcclient.New(cfg.DaemonURL)

	ctl := &Controller{
		cfg:        cfg,
		coinImpl:   c,
		kv:         kv,
		daemon:     daemon,
		hist:       hist,
		idx:        idx,
		reorgLimit: uint32(cfg.ReorgLimit),
		shutdownCh: make(chan struct{}),
	}

	ctl.coalescer = notify.New(notifierFunc(func(height uint32, touched map[string]struct{}) {
		ctl.manager.Notify(height, touched)
	}))

	ctl.mempool = mempool.New(rpcclient.NewDaemonMemPoolAPI(
		daemon, c,
		func() uint32 { return ctl.blockProc.Height() },
		func() uint32 { return ctl.blockProc.Height() },
		func(ctx context.Context, touched map[string]struct{}, height uint32) error {
			ctl.coalescer.OnMempool(touched, height)
			return nil
		},
	), c)

	bp, err := newBlockProcessor(daemon, c, hist, idx, ctl.coalescer, ctl.reorgLimit)
	if err != nil {
		return nil, errors.Wrap(err, "init block processor")
	}
	ctl.blockProc = bp

	ctl.manager = session.NewManager(ctl, cfg.MaxSessions, float64(cfg.CostSoftLimit), float64(cfg.CostHardLimit))

	return ctl, nil
}

// notifierFunc adapts a plain function to notify.Notifier.
type notifierFunc func(height uint32, touched map[string]struct{})

func (f notifierFunc) Notify(height uint32, touched map[string]struct{}) { f(height, touched) }

// Run starts the block-processor catch-up loop, the mempool refresh loop,
// and every configured listener, blocking until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if _, err := c.daemon.BlockCount(ctx); err != nil {
		return errors.Wrap(err, "daemon not reachable")
	}

	c.coalescer.Start(c.blockProc.Height())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.blockProc.Run(gctx, 5*time.Second)
	})

	g.Go(func() error {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := c.mempool.Refresh(gctx); err != nil {
					log.Warnf("mempool refresh: %v", err)
				}
			}
		}
	})

	if c.cfg.TCPPort != 0 {
		g.Go(func() error {
			return c.serveTCPPort(gctx, c.cfg.TCPPort)
		})
	}
	if c.cfg.WSPort != 0 {
		g.Go(func() error {
			return c.manager.ServeWS(gctx, addrFor(c.cfg.Host, c.cfg.WSPort))
		})
	}
	if c.cfg.SSLPort != 0 {
		cert, err := tls.LoadX509KeyPair(c.cfg.SSLCertFile, c.cfg.SSLKeyFile)
		if err != nil {
			return errors.Wrap(err, "load ssl certificate")
		}
		g.Go(func() error {
			return c.manager.ServeTLS(gctx, addrFor(c.cfg.Host, c.cfg.SSLPort), cert)
		})
	}
	if c.cfg.RPCPort != 0 {
		g.Go(func() error {
			return c.serveAdminRPC(gctx, addrFor(c.cfg.Host, c.cfg.RPCPort))
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-c.shutdownCh:
			return errShutdownRequested
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdownRequested) {
		return err
	}
	return nil
}

// errShutdownRequested unwinds Run's errgroup when the admin "stop" command
// fires, without being reported as a failure.
var errShutdownRequested = errors.New("shutdown requested")

// Close releases the underlying storage.
func (c *Controller) Close() error {
	return c.kv.Close()
}

var _ session.Backend = (*Controller)(nil)

// Coin implements session.Backend.
func (c *Controller) Coin() coin.Coin { return c.coinImpl }

// Height implements session.Backend.
func (c *Controller) Height() uint32 { return c.blockProc.Height() }

// HeaderAtHeight implements session.Backend.
func (c *Controller) HeaderAtHeight(ctx context.Context, height uint32) ([]byte, error) {
	meta, ok, err := c.idx.blockMeta(height)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("no header at height %d", height)
	}
	return meta.Header, nil
}

// RawHeaders implements session.Backend.
func (c *Controller) RawHeaders(ctx context.Context, startHeight uint32, count int) ([]byte, error) {
	out := make([]byte, 0, count*coin.BaseHeaderLen)
	for h := startHeight; h < startHeight+uint32(count); h++ {
		header, err := c.HeaderAtHeight(ctx, h)
		if err != nil {
			break
		}
		out = append(out, header...)
	}
	return out, nil
}

// History implements session.Backend.
func (c *Controller) History(hashX []byte, limit int) ([]session.HistItem, error) {
	txNums, err := c.hist.GetTxNums(hashX, limit)
	if err != nil {
		return nil, err
	}
	items := make([]session.HistItem, 0, len(txNums))
	for _, txNum := range txNums {
		txHash, found, err := c.idx.txHash(txNum)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		height, _, err := c.idx.txHeight(txNum)
		if err != nil {
			return nil, err
		}
		items = append(items, session.HistItem{TxHash: wire.HashToHexStr(txHash), Height: int32(height)})
	}
	for _, summary := range c.mempool.Summaries(string(hashX)) {
		items = append(items, session.HistItem{
			TxHash: wire.HashToHexStr([]byte(summary.Hash)),
			Height: 0,
			Fee:    summary.Fee,
		})
	}
	return items, nil
}

// Mempool implements session.Backend.
func (c *Controller) Mempool() *mempool.MemPool { return c.mempool }

// Balance implements session.Backend.
func (c *Controller) Balance(hashX []byte) (confirmed, unconfirmed int64, err error) {
	entries, err := c.idx.listUnspent(hashX)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		confirmed += int64(e.Value)
	}
	unconfirmed = c.mempool.BalanceDelta(string(hashX))
	return confirmed, unconfirmed, nil
}

// ListUnspent implements session.Backend.
func (c *Controller) ListUnspent(hashX []byte) ([]session.UnspentItem, error) {
	entries, err := c.idx.listUnspent(hashX)
	if err != nil {
		return nil, err
	}
	out := make([]session.UnspentItem, 0, len(entries))
	for _, e := range entries {
		txHash, found, err := c.idx.txHash(e.TxNum)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		height, _, err := c.idx.txHeight(e.TxNum)
		if err != nil {
			return nil, err
		}
		out = append(out, session.UnspentItem{
			TxHash: wire.HashToHexStr(txHash),
			TxPos:  e.OutIdx,
			Height: int32(height),
			Value:  e.Value,
		})
	}
	return out, nil
}

// StatusHash implements session.Backend.
func (c *Controller) StatusHash(hashX []byte) (string, error) {
	return c.statusHash(hashX)
}

// Broadcast implements session.Backend.
func (c *Controller) Broadcast(ctx context.Context, raw []byte) (string, error) {
	txid, err := c.daemon.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", err
	}
	return txid, nil
}

// GetTransaction implements session.Backend.
func (c *Controller) GetTransaction(ctx context.Context, txid string, verbose bool) (interface{}, error) {
	raw, err := c.daemon.RawTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	return hex.EncodeToString(raw), nil
}

// MerkleBranch implements session.Backend.
func (c *Controller) MerkleBranch(ctx context.Context, txHashHex string, height uint32) ([]string, int, error) {
	leaves, pos, err := c.leavesForHeight(ctx, height, txHashHex)
	if err != nil {
		return nil, 0, err
	}
	return merkleBranch(c.coinImpl, leaves, pos), pos, nil
}

// TxIDFromPos implements session.Backend.
func (c *Controller) TxIDFromPos(ctx context.Context, height uint32, pos int, wantMerkle bool) (string, []string, error) {
	meta, ok, err := c.idx.blockMeta(height)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, errors.Errorf("no block at height %d", height)
	}
	txHash, found, err := c.idx.txHash(meta.FirstTxNum + uint64(pos))
	if err != nil {
		return "", nil, err
	}
	if !found {
		return "", nil, errors.Errorf("no tx at height %d pos %d", height, pos)
	}
	txid := wire.HashToHexStr(txHash)
	if !wantMerkle {
		return txid, nil, nil
	}
	leaves, _, err := c.leavesForHeight(ctx, height, txid)
	if err != nil {
		return "", nil, err
	}
	return txid, merkleBranch(c.coinImpl, leaves, pos), nil
}

func (c *Controller) leavesForHeight(ctx context.Context, height uint32, txHashHex string) ([][]byte, int, error) {
	meta, ok, err := c.idx.blockMeta(height)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, errors.Errorf("no block at height %d", height)
	}
	nextMeta, ok, err := c.idx.blockMeta(height + 1)
	if err != nil {
		return nil, 0, err
	}
	end := meta.FirstTxNum
	if ok {
		end = nextMeta.FirstTxNum
	}

	var leaves [][]byte
	pos := -1
	for txNum := meta.FirstTxNum; txNum < end; txNum++ {
		h, found, err := c.idx.txHash(txNum)
		if err != nil {
			return nil, 0, err
		}
		if !found {
			continue
		}
		if wire.HashToHexStr(h) == txHashHex {
			pos = len(leaves)
		}
		leaves = append(leaves, h)
	}
	if pos == -1 {
		return nil, 0, errors.New("transaction not found at that height")
	}
	return leaves, pos, nil
}

// EstimateFee implements session.Backend.
func (c *Controller) EstimateFee(ctx context.Context, blocks int) (float64, error) {
	return c.daemon.EstimateSmartFee(ctx, blocks)
}

// RelayFee implements session.Backend.
func (c *Controller) RelayFee() float64 { return 0.00001 }

// DonationAddress implements session.Backend.
func (c *Controller) DonationAddress() string { return "" }

// ServerBanner implements session.Backend.
func (c *Controller) ServerBanner() string {
	return "go-electrumx server"
}

// ServerVersion implements session.Backend.
func (c *Controller) ServerVersion() string { return serverVersion }

// GenesisHash implements session.Backend.
func (c *Controller) GenesisHash(ctx context.Context) (string, error) {
	header, err := c.HeaderAtHeight(ctx, 0)
	if err != nil {
		return "", err
	}
	return wire.HashToHexStr(c.coinImpl.TxHashFn()(header)), nil
}

// OutpointStatus implements session.Backend.
func (c *Controller) OutpointStatus(ctx context.Context, txHash []byte, outIdx uint32) (map[string]interface{}, error) {
	status := map[string]interface{}{}

	txNum, found, err := c.hist.GetTxNumForTxHash(txHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return status, nil
	}
	if height, ok, err := c.idx.txHeight(txNum); err != nil {
		return nil, err
	} else if ok {
		status["height"] = height
	}

	spenderTxNum, found, err := c.hist.GetSpenderTxNumForTxo(txNum, outIdx)
	if err != nil {
		return nil, err
	}
	if !found {
		return status, nil
	}
	spenderHash, found, err := c.idx.txHash(spenderTxNum)
	if err != nil {
		return nil, err
	}
	if found {
		status["spender_txhash"] = wire.HashToHexStr(spenderHash)
	}
	if height, ok, err := c.idx.txHeight(spenderTxNum); err != nil {
		return nil, err
	} else if ok {
		status["spender_height"] = height
	}
	return status, nil
}

// Peers implements session.Backend. Peer discovery/gossip is out of scope;
// the peer list is always empty.
func (c *Controller) Peers() []session.PeerInfo { return nil }

// AddPeer implements session.Backend.
func (c *Controller) AddPeer(features map[string]interface{}, hostsKey string) error {
	return nil
}

// Subscribe implements session.Backend.
func (c *Controller) Subscribe(hashX []byte) (string, error) {
	return c.statusHash(hashX)
}

// Unsubscribe implements session.Backend.
func (c *Controller) Unsubscribe(hashX []byte) {}

func (c *Controller) serveTCPPort(ctx context.Context, port int) error {
	ln, err := newTCPListener(addrFor(c.cfg.Host, port))
	if err != nil {
		return err
	}
	return c.manager.ServeTCP(ctx, ln)
}
