// Package notify coalesces touched-hashX events from the block processor
// and the mempool into batched notifications, so a burst of mempool
// refreshes during a new block doesn't fire a storm of per-transaction
// session updates.
package notify

import "sync"

// Notifier receives a coalesced notification: the new best height and the
// set of hashXs touched since the last notification.
type Notifier interface {
	Notify(height uint32, touched map[string]struct{})
}

// Coalescer merges touched-hashX reports from the mempool (mp) and the
// block processor (bp), releasing a notification only once both sources
// agree the chain has settled at a height, mirroring the reference
// Notifications class's _maybe_notify policy.
type Coalescer struct {
	mu sync.Mutex

	notifier Notifier

	touchedMP map[uint32]map[string]struct{}
	touchedBP map[uint32]map[string]struct{}
	highestBlock uint32
}

// New returns a Coalescer that calls notifier.Notify on release.
func New(notifier Notifier) *Coalescer {
	return &Coalescer{
		notifier:  notifier,
		touchedMP: make(map[uint32]map[string]struct{}),
		touchedBP: make(map[uint32]map[string]struct{}),
	}
}

// Start records the indexer's starting height and unconditionally fires the
// initial empty release, mirroring the reference startup handshake: a
// freshly (re)started server always hands subscribers one empty
// notification at its current height before the merge-driven release
// policy in maybeNotify takes over.
func (c *Coalescer) Start(height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.highestBlock = height
	c.notifier.Notify(height, map[string]struct{}{})
}

// OnMempool records a mempool-sourced touch set for the mempool's
// understanding of the current height, and tries to release.
func (c *Coalescer) OnMempool(touched map[string]struct{}, mempoolHeight uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchedMP[mempoolHeight] = union(c.touchedMP[mempoolHeight], touched)
	c.maybeNotify()
}

// OnBlock records a block-processor-sourced touch set for a newly processed
// height, and tries to release.
func (c *Coalescer) OnBlock(touched map[string]struct{}, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchedBP[height] = union(c.touchedBP[height], touched)
	if height > c.highestBlock {
		c.highestBlock = height
	}
	c.maybeNotify()
}

// maybeNotify releases a coalesced notification once the mempool and block
// processor touch sets agree on a common height (taking the highest such
// height, were there more than one), or once the mempool has caught up to
// the highest known block with nothing from the block processor to merge
// in yet. Caller must hold c.mu.
func (c *Coalescer) maybeNotify() {
	var commonHeight uint32
	var found bool
	for h := range c.touchedMP {
		if _, ok := c.touchedBP[h]; ok {
			if !found || h > commonHeight {
				commonHeight = h
				found = true
			}
		}
	}
	if !found {
		mpHeight, ok := highestKey(c.touchedMP)
		if !ok || mpHeight != c.highestBlock {
			// Either a block is still being processed and we're waiting for
			// it, or the mempool hasn't refreshed at the new height yet.
			return
		}
		commonHeight = mpHeight
	}

	// The matched height's own mempool entry seeds the release; any other
	// mempool entry at or below it is stale (superseded by this release)
	// and is discarded, not merged.
	touched, ok := c.touchedMP[commonHeight]
	if !ok {
		return
	}
	delete(c.touchedMP, commonHeight)
	for h := range c.touchedMP {
		if h <= commonHeight {
			delete(c.touchedMP, h)
		}
	}
	for h, set := range c.touchedBP {
		if h <= commonHeight {
			touched = union(touched, set)
			delete(c.touchedBP, h)
		}
	}

	c.notifier.Notify(commonHeight, touched)
}

func union(a, b map[string]struct{}) map[string]struct{} {
	if a == nil {
		a = make(map[string]struct{}, len(b))
	}
	for k := range b {
		a[k] = struct{}{}
	}
	return a
}

func highestKey(m map[uint32]map[string]struct{}) (uint32, bool) {
	var max uint32
	found := false
	for h := range m {
		if !found || h > max {
			max = h
			found = true
		}
	}
	return max, found
}
