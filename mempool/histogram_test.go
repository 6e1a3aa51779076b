package mempool

import "testing"

func TestCompressHistogramEmitsDescendingBuckets(t *testing.T) {
	byFeeRate := map[float64]int{
		10: 60000,
		8:  60000,
		5:  200000,
		1:  500000,
	}
	buckets := compressHistogram(byFeeRate, 100000)
	if len(buckets) == 0 {
		t.Fatal("expected at least one bucket")
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i].FeeRate > buckets[i-1].FeeRate {
			t.Fatalf("buckets not descending: %v", buckets)
		}
	}
}

func TestCompressHistogramEmptyInput(t *testing.T) {
	if got := compressHistogram(map[float64]int{}, 100000); len(got) != 0 {
		t.Fatalf("expected no buckets, got %v", got)
	}
}
