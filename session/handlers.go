package session

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/electrumx-go/electrumx/coin"
	"github.com/electrumx-go/electrumx/session/rpcwire"
	"github.com/electrumx-go/electrumx/wire"
)

type handlerFunc func(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error)

var methodTable = map[string]handlerFunc{
	"server.version":               handleServerVersion,
	"server.banner":                handleServerBanner,
	"server.donation_address":      handleDonationAddress,
	"server.ping":                  handlePing,
	"server.peers.subscribe":       handlePeersSubscribe,
	"server.add_peer":              handleAddPeer,
	"blockchain.headers.subscribe": handleHeadersSubscribe,
	"blockchain.block.header":      handleBlockHeader,
	"blockchain.block.headers":     handleBlockHeaders,
	"server.features":              handleServerFeatures,

	"blockchain.outpoint.subscribe":   handleOutpointSubscribe,
	"blockchain.outpoint.unsubscribe": handleOutpointUnsubscribe,

	"blockchain.scripthash.subscribe":   handleScripthashSubscribe,
	"blockchain.scripthash.unsubscribe": handleScripthashUnsubscribe,
	"blockchain.scripthash.get_balance": handleGetBalance,
	"blockchain.scripthash.get_history": handleGetHistory,
	"blockchain.scripthash.get_mempool": handleGetMempool,
	"blockchain.scripthash.listunspent": handleListUnspent,

	"blockchain.transaction.get":         handleTransactionGet,
	"blockchain.transaction.broadcast":   handleTransactionBroadcast,
	"blockchain.transaction.get_merkle":  handleTransactionGetMerkle,
	"blockchain.transaction.id_from_pos": handleTransactionIDFromPos,

	"blockchain.estimatefee": handleEstimateFee,
	"blockchain.relayfee":    handleRelayFee,

	"mempool.get_fee_histogram": handleFeeHistogram,
}

func handleServerVersion(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var clientName, clientVersion string
	var arr []json.RawMessage
	if err := json.Unmarshal(params, &arr); err == nil {
		if len(arr) > 0 {
			_ = json.Unmarshal(arr[0], &clientName)
		}
		if len(arr) > 1 {
			_ = json.Unmarshal(arr[1], &clientVersion)
		}
	}
	_ = clientName

	s.mu.Lock()
	s.versioned = true
	s.protocolVersion = clientVersion
	s.mu.Unlock()

	return []string{s.manager.backend.ServerVersion(), protocolMax}, nil
}

func handleServerBanner(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	return s.manager.backend.ServerBanner(), nil
}

func handleDonationAddress(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	return s.manager.backend.DonationAddress(), nil
}

func handlePing(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	return nil, nil
}

func handlePeersSubscribe(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	peers := s.manager.backend.Peers()
	out := make([]interface{}, len(peers))
	for i, p := range peers {
		out[i] = []interface{}{p.Host, p.Host, featureList(p.Features)}
	}
	return out, nil
}

func featureList(features map[string]interface{}) []string {
	out := make([]string, 0, len(features))
	for k := range features {
		out = append(out, k)
	}
	return out
}

func handleAddPeer(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var features map[string]interface{}
	if err := rawParam(params, 0, &features); err != nil {
		return nil, err
	}
	if err := s.manager.backend.AddPeer(features, ""); err != nil {
		return nil, err
	}
	return true, nil
}

func handleHeadersSubscribe(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	s.mu.Lock()
	s.headersSub = true
	s.mu.Unlock()

	height := s.manager.backend.Height()
	header, err := s.manager.backend.HeaderAtHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	return headerNotification(height, header), nil
}

func decodeHashX(s *Session, scripthashHexStr string) ([]byte, error) {
	full, err := hex.DecodeString(scripthashHexStr)
	if err != nil {
		return nil, &rpcwire.Error{Code: rpcwire.ErrInvalidParams, Message: "invalid scripthash"}
	}
	// The wire scripthash is SHA256(script) displayed in reversed-byte hex;
	// hashX is the leading bytes of the same digest in natural order.
	natural := make([]byte, len(full))
	for i, b := range full {
		natural[len(full)-1-i] = b
	}
	const hashXLen = 11
	if len(natural) < hashXLen {
		return nil, &rpcwire.Error{Code: rpcwire.ErrInvalidParams, Message: "scripthash too short"}
	}
	return natural[:hashXLen], nil
}

func handleScripthashSubscribe(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var scripthash string
	if err := rawParam(params, 0, &scripthash); err != nil {
		return nil, err
	}
	hashX, err := decodeHashX(s, scripthash)
	if err != nil {
		return nil, err
	}
	status, err := s.manager.backend.Subscribe(hashX)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.subStatus[string(hashX)] = status
	s.subKey[string(hashX)] = scripthash
	s.mu.Unlock()
	if status == "" {
		return nil, nil
	}
	return status, nil
}

func handleScripthashUnsubscribe(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var scripthash string
	if err := rawParam(params, 0, &scripthash); err != nil {
		return nil, err
	}
	hashX, err := decodeHashX(s, scripthash)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	_, existed := s.subStatus[string(hashX)]
	delete(s.subStatus, string(hashX))
	delete(s.subKey, string(hashX))
	s.mu.Unlock()
	s.manager.backend.Unsubscribe(hashX)
	return existed, nil
}

func handleGetBalance(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var scripthash string
	if err := rawParam(params, 0, &scripthash); err != nil {
		return nil, err
	}
	hashX, err := decodeHashX(s, scripthash)
	if err != nil {
		return nil, err
	}
	confirmed, unconfirmed, err := s.manager.backend.Balance(hashX)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"confirmed": confirmed, "unconfirmed": unconfirmed}, nil
}

// historyFetchLimit caps the confirmed entries of a single get_history
// response so a wallet with an enormous address history can't force one
// reply to hold the whole thing. get_history takes no paging parameter, so
// confirmed entries past the cap are not returned.
const historyFetchLimit = 50000

func handleGetHistory(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var scripthash string
	if err := rawParam(params, 0, &scripthash); err != nil {
		return nil, err
	}
	hashX, err := decodeHashX(s, scripthash)
	if err != nil {
		return nil, err
	}
	items, err := s.manager.backend.History(hashX, historyFetchLimit)
	if err != nil {
		return nil, err
	}
	s.cost.Charge(refreshBalanceCost)
	out := make([]map[string]interface{}, len(items))
	for i, it := range items {
		m := map[string]interface{}{"tx_hash": it.TxHash, "height": it.Height}
		if it.Height <= 0 {
			m["fee"] = it.Fee
		}
		out[i] = m
	}
	return out, nil
}

func handleGetMempool(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var scripthash string
	if err := rawParam(params, 0, &scripthash); err != nil {
		return nil, err
	}
	hashX, err := decodeHashX(s, scripthash)
	if err != nil {
		return nil, err
	}
	summaries := s.manager.backend.Mempool().Summaries(string(hashX))
	out := make([]map[string]interface{}, len(summaries))
	for i, sm := range summaries {
		out[i] = map[string]interface{}{"tx_hash": wire.HashToHexStr([]byte(sm.Hash)), "height": 0, "fee": sm.Fee}
	}
	return out, nil
}

func handleListUnspent(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var scripthash string
	if err := rawParam(params, 0, &scripthash); err != nil {
		return nil, err
	}
	hashX, err := decodeHashX(s, scripthash)
	if err != nil {
		return nil, err
	}
	items, err := s.manager.backend.ListUnspent(hashX)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, len(items))
	for i, it := range items {
		out[i] = map[string]interface{}{
			"tx_hash": it.TxHash, "tx_pos": it.TxPos, "height": it.Height, "value": it.Value,
		}
	}
	return out, nil
}

func handleTransactionGet(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var txid string
	if err := rawParam(params, 0, &txid); err != nil {
		return nil, err
	}
	verbose := false
	_ = rawParam(params, 1, &verbose)
	return s.manager.backend.GetTransaction(ctx, txid, verbose)
}

func handleTransactionBroadcast(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var rawHex string
	if err := rawParam(params, 0, &rawHex); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, &rpcwire.Error{Code: rpcwire.ErrInvalidParams, Message: "invalid transaction hex"}
	}
	return s.manager.backend.Broadcast(ctx, raw)
}

func handleTransactionGetMerkle(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var txHash string
	var height uint32
	if err := rawParam(params, 0, &txHash); err != nil {
		return nil, err
	}
	if err := rawParam(params, 1, &height); err != nil {
		return nil, err
	}
	branch, pos, err := s.manager.backend.MerkleBranch(ctx, txHash, height)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"block_height": height, "merkle": branch, "pos": pos}, nil
}

func handleTransactionIDFromPos(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var height uint32
	var pos int
	if err := rawParam(params, 0, &height); err != nil {
		return nil, err
	}
	if err := rawParam(params, 1, &pos); err != nil {
		return nil, err
	}
	wantMerkle := false
	_ = rawParam(params, 2, &wantMerkle)

	txid, branch, err := s.manager.backend.TxIDFromPos(ctx, height, pos, wantMerkle)
	if err != nil {
		return nil, err
	}
	if !wantMerkle {
		return txid, nil
	}
	return map[string]interface{}{"tx_hash": txid, "merkle": branch}, nil
}

func handleEstimateFee(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var blocks int
	if err := rawParam(params, 0, &blocks); err != nil {
		return nil, err
	}
	return s.manager.backend.EstimateFee(ctx, blocks)
}

func handleRelayFee(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	return s.manager.backend.RelayFee(), nil
}

func handleFeeHistogram(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	buckets := s.manager.backend.Mempool().CompactFeeHistogram()
	out := make([][2]float64, len(buckets))
	for i, b := range buckets {
		out[i] = [2]float64{b.FeeRate, float64(b.Size)}
	}
	return out, nil
}

func handleBlockHeader(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var height uint32
	if err := rawParam(params, 0, &height); err != nil {
		return nil, err
	}
	header, err := s.manager.backend.HeaderAtHeight(ctx, height)
	if err != nil {
		return nil, &rpcwire.Error{Code: rpcwire.ErrInvalidParams, Message: "no header at that height"}
	}
	return hexEncode(header), nil
}

// maxHeaderChunkSize caps a single blockchain.block.headers response, the
// same protection historyFetchLimit gives get_history.
const maxHeaderChunkSize = 2016

func handleBlockHeaders(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	var startHeight uint32
	var count int
	if err := rawParam(params, 0, &startHeight); err != nil {
		return nil, err
	}
	if err := rawParam(params, 1, &count); err != nil {
		return nil, err
	}
	if count > maxHeaderChunkSize {
		count = maxHeaderChunkSize
	}
	if count < 0 {
		count = 0
	}
	raw, err := s.manager.backend.RawHeaders(ctx, startHeight, count)
	if err != nil {
		return nil, err
	}
	actualCount := len(raw) / coin.BaseHeaderLen
	return map[string]interface{}{"hex": hexEncode(raw), "count": actualCount, "max": maxHeaderChunkSize}, nil
}

// protocolMin/protocolMax advertise support for the 1.4-style
// blockchain.block.headers dict response only; the 1.5 array-form
// block_headers_array method is not implemented.
const (
	protocolMin = "1.4"
	protocolMax = "1.4"
)

func handleServerFeatures(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	genesisHash, err := s.manager.backend.GenesisHash(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"hosts":          map[string]interface{}{},
		"pruning":        nil,
		"server_version": s.manager.backend.ServerVersion(),
		"protocol_min":   protocolMin,
		"protocol_max":   protocolMax,
		"genesis_hash":   genesisHash,
		"hash_function":  "sha256",
	}, nil
}

func decodeOutpointParams(params json.RawMessage) (txHash []byte, outIdx uint32, err error) {
	var txHashHex string
	if err := rawParam(params, 0, &txHashHex); err != nil {
		return nil, 0, err
	}
	if err := rawParam(params, 1, &outIdx); err != nil {
		return nil, 0, err
	}
	txHash, err = wire.HexStrToHash(txHashHex)
	if err != nil {
		return nil, 0, &rpcwire.Error{Code: rpcwire.ErrInvalidParams, Message: "invalid tx_hash"}
	}
	return txHash, outIdx, nil
}

func handleOutpointSubscribe(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	txHash, outIdx, err := decodeOutpointParams(params)
	if err != nil {
		return nil, err
	}
	status, err := s.manager.backend.OutpointStatus(ctx, txHash, outIdx)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.subOutpoints[outpointKey(txHash, outIdx)] = outpointSub{txHash: txHash, outIdx: outIdx, status: string(encoded)}
	s.mu.Unlock()
	return status, nil
}

func handleOutpointUnsubscribe(ctx context.Context, s *Session, params json.RawMessage) (interface{}, error) {
	txHash, outIdx, err := decodeOutpointParams(params)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	_, existed := s.subOutpoints[outpointKey(txHash, outIdx)]
	delete(s.subOutpoints, outpointKey(txHash, outIdx))
	s.mu.Unlock()
	return existed, nil
}
