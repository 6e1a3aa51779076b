package mempool

import "sort"

// compressHistogram implements the same compression rule as the reference
// fee estimator: walk fee rates from highest to lowest, accumulating
// transaction size, and emit a bucket once the accumulated size (plus the
// carried remainder from the previous bucket) exceeds binSize. Each emitted
// bucket's target size grows by 10% so that the histogram has fewer, larger
// buckets at lower fee rates where transactions are plentiful.
func compressHistogram(byFeeRate map[float64]int, binSize int) []HistogramBucket {
	rates := make([]float64, 0, len(byFeeRate))
	for r := range byFeeRate {
		rates = append(rates, r)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rates)))

	var result []HistogramBucket
	cumSize := 0
	remainder := 0
	bin := float64(binSize)
	for _, rate := range rates {
		cumSize += byFeeRate[rate]
		if float64(cumSize+remainder) > bin {
			result = append(result, HistogramBucket{FeeRate: rate, Size: cumSize})
			remainder += cumSize - binSize
			cumSize = 0
			bin *= 1.1
		}
	}
	return result
}

// defaultHistogramBinSize is the starting bucket size in bytes, matching
// the reference implementation's constant.
const defaultHistogramBinSize = 100000

// updateHistogram recomputes the compact fee-rate histogram from the
// current mempool contents.
func (m *MemPool) updateHistogram() {
	m.mu.RLock()
	byFeeRate := make(map[float64]int)
	for _, tx := range m.txs {
		if tx.RawSize == 0 {
			continue
		}
		rate := float64(tx.Fee) / float64(tx.RawSize)
		byFeeRate[rate] += tx.RawSize
	}
	m.mu.RUnlock()

	hist := compressHistogram(byFeeRate, defaultHistogramBinSize)

	m.mu.Lock()
	m.histogram = hist
	m.mu.Unlock()
}

// CompactFeeHistogram returns the most recently computed fee-rate
// histogram, highest fee rate first.
func (m *MemPool) CompactFeeHistogram() []HistogramBucket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]HistogramBucket(nil), m.histogram...)
}
