package session

import (
	"sync"
	"time"
)

// Cost accounting: every request and every byte sent back to a client adds
// to that session's retained cost. Cost decays linearly over time rather
// than in a burst, so a session that goes quiet recovers its budget
// smoothly instead of snapping back to zero.

const (
	// costDecayDivisor sets the decay rate: retained cost drains away at
	// hardLimit/costDecayDivisor per second.
	costDecayDivisor = 5000.0
	// requestBaseCost is charged per inbound request regardless of size.
	requestBaseCost = 0.1
	// refreshBalanceCost is the relatively expensive address-history scan.
	refreshBalanceCost = 1.0
)

// CostLimiter tracks one session's accumulated cost against the
// soft/hard limits, throttling (via an artificial delay) once the soft
// limit is passed and disconnecting once the hard limit is reached.
type CostLimiter struct {
	mu         sync.Mutex
	cost       float64
	lastUpdate time.Time
	softLimit  float64
	hardLimit  float64
}

// NewCostLimiter returns a CostLimiter with the given thresholds.
func NewCostLimiter(softLimit, hardLimit float64) *CostLimiter {
	return &CostLimiter{lastUpdate: time.Now(), softLimit: softLimit, hardLimit: hardLimit}
}

// Charge adds amount to the session's retained cost after decaying for
// elapsed time, and reports whether the hard limit has now been exceeded.
func (c *CostLimiter) Charge(amount float64) (exceeded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decayLocked()
	c.cost += amount
	return c.cost >= c.hardLimit
}

// ThrottleDelay returns how long the caller should sleep before processing
// the next request, growing linearly with how far retained cost sits above
// the soft limit.
func (c *CostLimiter) ThrottleDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decayLocked()
	if c.cost <= c.softLimit {
		return 0
	}
	over := c.cost - c.softLimit
	return time.Duration(over) * 10 * time.Millisecond
}

// Cost returns the current retained cost after decay.
func (c *CostLimiter) Cost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decayLocked()
	return c.cost
}

func (c *CostLimiter) decayLocked() {
	now := time.Now()
	elapsed := now.Sub(c.lastUpdate).Seconds()
	c.lastUpdate = now
	c.cost -= elapsed * c.hardLimit / costDecayDivisor
	if c.cost < 0 {
		c.cost = 0
	}
}

// Group tracks the sessions sharing an IP address and reports their
// combined cost through TotalCost. The group total does not feed back into
// any session's throttling or disconnect decision.
type Group struct {
	mu       sync.Mutex
	sessions map[uint64]*CostLimiter
}

// NewGroup returns an empty Group.
func NewGroup() *Group {
	return &Group{sessions: make(map[uint64]*CostLimiter)}
}

// Add registers a session's limiter with the group.
func (g *Group) Add(id uint64, limiter *CostLimiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[id] = limiter
}

// Remove drops a session from the group.
func (g *Group) Remove(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, id)
}

// TotalCost sums the current retained cost across every session in the
// group.
func (g *Group) TotalCost() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total float64
	for _, l := range g.sessions {
		total += l.Cost()
	}
	return total
}
