package timerport

import "sort"

type armedTimer struct {
	delayMs int64
	fireAt  Time
	running bool
}

// VirtualClock is a deterministic Port used by tests and by any embedder
// that wants to drive the MAC from its own event loop instead of a real
// wall clock. Time only advances when Advance is called; firing timers
// invoke the registered callback synchronously, in expiry order, exactly
// as a real single-threaded timer source would.
type VirtualClock struct {
	now    Time
	timers [numTimers]armedTimer
	cb     Callback
}

// NewVirtualClock returns a clock starting at t=0.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

func (c *VirtualClock) Now() Time { return c.now }

func (c *VirtualClock) Set(id ID, delayMs int64) {
	c.timers[id] = armedTimer{delayMs: delayMs, fireAt: c.now + Time(delayMs)}
}

func (c *VirtualClock) Start(id ID) {
	t := c.timers[id]
	t.fireAt = c.now + Time(t.delayMs)
	t.running = true
	c.timers[id] = t
}

func (c *VirtualClock) Stop(id ID) {
	t := c.timers[id]
	t.running = false
	c.timers[id] = t
}

func (c *VirtualClock) ElapsedSince(t Time) int64 {
	return int64(c.now - t)
}

func (c *VirtualClock) OnExpire(cb Callback) {
	c.cb = cb
}

// Advance moves the clock forward by deltaMs, firing any timer whose
// deadline falls within the new window in deadline order. A callback
// firing may itself re-arm a timer with an earlier deadline than the
// target; Advance keeps draining until no timer is due before the target.
func (c *VirtualClock) Advance(deltaMs int64) {
	target := c.now + Time(deltaMs)

	for {
		var dueID ID
		found := false
		var dueAt Time

		for id := ID(0); id < numTimers; id++ {
			t := c.timers[id]
			if !t.running || t.fireAt > target {
				continue
			}
			if !found || t.fireAt < dueAt {
				dueID, dueAt, found = id, t.fireAt, true
			}
		}

		if !found {
			break
		}

		c.now = dueAt
		c.timers[dueID] = armedTimer{}
		if c.cb != nil {
			c.cb(dueID)
		}
	}

	if c.now < target {
		c.now = target
	}
}

// pendingIDs is a test helper exposing which timers are currently armed,
// in firing order.
func (c *VirtualClock) pendingIDs() []ID {
	var ids []ID
	for id := ID(0); id < numTimers; id++ {
		if c.timers[id].running {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return c.timers[ids[i]].fireAt < c.timers[ids[j]].fireAt })
	return ids
}
