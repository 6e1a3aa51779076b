package session

import (
	"context"

	"github.com/electrumx-go/electrumx/coin"
	"github.com/electrumx-go/electrumx/mempool"
)

// HistItem is one entry of an address's confirmed or mempool history, the
// shape blockchain.scripthash.get_history hands back to the wallet.
type HistItem struct {
	TxHash string
	Height int32 // block height when confirmed, 0 for a mempool entry
	Fee    uint64 // only meaningful when Height <= 0
}

// PeerInfo describes one known Electrum server peer.
type PeerInfo struct {
	Host     string
	Features map[string]interface{}
}

// Backend is everything a Session needs from the rest of the indexer. The
// controller package implements it; keeping it as an interface here lets
// session stay free of a dependency on controller, history's and
// mempool's storage internals.
type Backend interface {
	Coin() coin.Coin
	Height() uint32
	HeaderAtHeight(ctx context.Context, height uint32) ([]byte, error)
	RawHeaders(ctx context.Context, startHeight uint32, count int) ([]byte, error)

	History(hashX []byte, limit int) ([]HistItem, error)
	Mempool() *mempool.MemPool
	Balance(hashX []byte) (confirmed, unconfirmed int64, err error)
	ListUnspent(hashX []byte) ([]UnspentItem, error)
	StatusHash(hashX []byte) (string, error)

	Broadcast(ctx context.Context, raw []byte) (string, error)
	GetTransaction(ctx context.Context, txid string, verbose bool) (interface{}, error)
	MerkleBranch(ctx context.Context, txHash string, height uint32) (branch []string, pos int, err error)
	TxIDFromPos(ctx context.Context, height uint32, pos int, wantMerkle bool) (txid string, branch []string, err error)

	EstimateFee(ctx context.Context, blocks int) (float64, error)
	RelayFee() float64

	DonationAddress() string
	ServerBanner() string
	ServerVersion() string
	GenesisHash(ctx context.Context) (string, error)
	Peers() []PeerInfo
	AddPeer(features map[string]interface{}, hostsKey string) error

	Subscribe(hashX []byte) (status string, err error)
	Unsubscribe(hashX []byte)

	// OutpointStatus reports the confirmation/spend state of one txo, the
	// way blockchain.outpoint.subscribe/unsubscribe surface it: "height" if
	// the output's own transaction is confirmed, plus "spender_txhash" and
	// "spender_height" once something has spent it.
	OutpointStatus(ctx context.Context, txHash []byte, outIdx uint32) (map[string]interface{}, error)
}

// UnspentItem is one unspent output as reported by
// blockchain.scripthash.listunspent.
type UnspentItem struct {
	TxHash string
	TxPos  uint32
	Height int32
	Value  uint64
}
