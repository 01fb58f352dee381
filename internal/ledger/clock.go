package ledger

import (
	"sync"
	"time"
)

// BlockSource supplies the block counter stamped on appended messages. The
// ledger does not interpret its units; values must never decrease.
type BlockSource interface {
	BlockNumber() uint64
}

// UnixBlockClock uses wall-clock seconds as the block counter, clamped so a
// clock step backwards never makes it decrease.
type UnixBlockClock struct {
	mu   sync.Mutex
	last uint64
	now  func() time.Time
}

func NewUnixBlockClock() *UnixBlockClock {
	return &UnixBlockClock{now: time.Now}
}

func (c *UnixBlockClock) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := c.now().Unix(); n > 0 && uint64(n) > c.last {
		c.last = uint64(n)
	}
	return c.last
}

// Floor raises the clock to at least n, used after restoring a snapshot so
// new messages are never stamped below persisted ones.
func (c *UnixBlockClock) Floor(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > c.last {
		c.last = n
	}
}
