package notify

import "testing"

type recorder struct {
	calls []call
}

type call struct {
	height  uint32
	touched map[string]struct{}
}

func (r *recorder) Notify(height uint32, touched map[string]struct{}) {
	r.calls = append(r.calls, call{height: height, touched: touched})
}

func TestCoalescerReleasesOnCommonHeight(t *testing.T) {
	rec := &recorder{}
	c := New(rec)

	c.OnBlock(map[string]struct{}{"a": {}}, 100)
	if len(rec.calls) != 0 {
		t.Fatalf("expected no release yet, got %d", len(rec.calls))
	}

	c.OnMempool(map[string]struct{}{"b": {}}, 100)
	if len(rec.calls) != 1 {
		t.Fatalf("expected one release, got %d", len(rec.calls))
	}
	if rec.calls[0].height != 100 {
		t.Fatalf("expected height 100, got %d", rec.calls[0].height)
	}
	if _, ok := rec.calls[0].touched["a"]; !ok {
		t.Fatal("missing block-sourced touch")
	}
	if _, ok := rec.calls[0].touched["b"]; !ok {
		t.Fatal("missing mempool-sourced touch")
	}
}

func TestCoalescerReleasesWhenBPEmptyAndMPCaughtUp(t *testing.T) {
	rec := &recorder{}
	c := New(rec)

	c.OnBlock(map[string]struct{}{"a": {}}, 50)
	// Block processor catches up to height 50 and has nothing more pending.
	delete(c.touchedBP, 50)
	c.highestBlock = 50

	c.OnMempool(map[string]struct{}{"b": {}}, 50)
	if len(rec.calls) != 1 {
		t.Fatalf("expected release once mempool reaches highest block, got %d", len(rec.calls))
	}
}
