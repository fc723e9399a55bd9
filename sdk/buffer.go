package sdk

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AdBuffer is an in-memory FIFO cache of pre-fetched creatives keyed by
// orientation and ad type. Expired creatives are never handed out; Purge
// removes them physically.
//
// AdBuffer is safe for concurrent use.
type AdBuffer struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[Key][]*Creative
	logger  logrus.FieldLogger
}

// NewAdBuffer creates an empty buffer. now supplies the current time for
// expiry checks; if nil, time.Now is used.
func NewAdBuffer(now func() time.Time, logger logrus.FieldLogger) *AdBuffer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AdBuffer{
		now:     now,
		entries: make(map[Key][]*Creative),
		logger:  logger,
	}
}

// Add appends a creative to the tail of its key's queue.
func (b *AdBuffer) Add(c *Creative) {
	if c == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(c)
}

func (b *AdBuffer) addLocked(c *Creative) {
	k := c.Key()
	b.entries[k] = append(b.entries[k], c)
}

// AddAll inserts a batch of creatives and logs the resulting occupancy.
func (b *AdBuffer) AddAll(creatives []*Creative) {
	b.mu.Lock()
	for _, c := range creatives {
		if c != nil {
			b.addLocked(c)
		}
	}
	occupancy := b.occupancyLocked()
	b.mu.Unlock()

	fields := logrus.Fields{"added": len(creatives)}
	for k, n := range occupancy {
		fields[k.String()] = n
	}
	b.logger.WithFields(fields).Debug("Buffered creatives")
}

// Count returns the number of unexpired creatives stored for the key.
func (b *AdBuffer) Count(o Orientation, t AdType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.countLocked(Key{Orientation: o, AdType: t}, b.now())
}

func (b *AdBuffer) countLocked(k Key, now time.Time) int {
	n := 0
	for _, c := range b.entries[k] {
		if !c.Expired(now) {
			n++
		}
	}
	return n
}

// Get pops the oldest unexpired creative for the key. Expired creatives
// found at the head are discarded on the way.
func (b *AdBuffer) Get(o Orientation, t AdType) (*Creative, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := Key{Orientation: o, AdType: t}
	now := b.now()
	queue := b.entries[k]
	for len(queue) > 0 {
		head := queue[0]
		queue[0] = nil
		queue = queue[1:]
		if !head.Expired(now) {
			b.setLocked(k, queue)
			return head, true
		}
	}
	b.setLocked(k, queue)
	return nil, false
}

func (b *AdBuffer) setLocked(k Key, queue []*Creative) {
	if len(queue) == 0 {
		delete(b.entries, k)
		return
	}
	b.entries[k] = queue
}

// Empty drops every buffered creative.
func (b *AdBuffer) Empty() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[Key][]*Creative)
}

// Purge removes expired creatives across all keys and returns how many were dropped.
func (b *AdBuffer) Purge() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for k, queue := range b.entries {
		kept := queue[:0]
		for _, c := range queue {
			if c.Expired(now) {
				removed++
				continue
			}
			kept = append(kept, c)
		}
		for i := len(kept); i < len(queue); i++ {
			queue[i] = nil
		}
		b.setLocked(k, kept)
	}
	return removed
}

// Occupancy returns a snapshot of unexpired counts per key.
func (b *AdBuffer) Occupancy() map[Key]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.occupancyLocked()
}

func (b *AdBuffer) occupancyLocked() map[Key]int {
	now := b.now()
	out := make(map[Key]int, len(b.entries))
	for k := range b.entries {
		out[k] = b.countLocked(k, now)
	}
	return out
}
