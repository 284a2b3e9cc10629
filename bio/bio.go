// Package bio is the buffer cache.
//
// The cache is a fixed pool of Bufs holding copies of disk blocks. Caching
// disk blocks in memory reduces the number of disk reads and also provides a
// synchronization point for disk blocks used by multiple threads: only one
// thread at a time holds a given buffer.
//
// Interface:
//   - To get a buffer for a particular disk block, call Read.
//   - After changing buffer data, call Write to write it to disk (or, inside
//     a transaction, hand it to the log instead).
//   - When done with the buffer, call Release.
//   - Do not use the buffer after calling Release.
//
// A buffer with references is never given a different identity; among
// unreferenced buffers the least recently released one is reused first.
package bio

import (
	"fmt"
	"sync"

	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/disk"
	"github.com/mit-pdos/go-fslog/util"
)

type Cache struct {
	// protects refcnt, identities, and the recency list; never held across
	// I/O or while waiting for a buffer lock
	mu   *sync.Mutex
	devs *disk.Devices
	bufs []*Buf
	lru  *lru
}

// MkCache allocates a pool of nbuf buffers over devs.
func MkCache(devs *disk.Devices, nbuf uint64) *Cache {
	if nbuf == 0 {
		panic("binit: empty cache")
	}
	bufs := make([]*Buf, nbuf)
	for i := range bufs {
		bufs[i] = mkBuf(uint64(i))
	}
	c := &Cache{
		mu:   new(sync.Mutex),
		devs: devs,
		bufs: bufs,
		lru:  mkLru(nbuf),
	}
	util.DPrintf(1, "binit: %d buffers\n", nbuf)
	return c
}

func (c *Cache) Size() uint64 {
	return uint64(len(c.bufs))
}

// lookup finds the buffer with identity (dev, blkno). Assumes c.mu is held.
func (c *Cache) lookup(dev common.Dev, blkno common.Bnum) *Buf {
	var found *Buf
	c.lru.mostRecent(func(i uint64) bool {
		b := c.bufs[i]
		if b.Dev == dev && b.Blockno == blkno {
			found = b
			return false
		}
		return true
	})
	return found
}

// evict reassigns the least recently released unreferenced buffer to (dev,
// blkno). Assumes c.mu is held.
func (c *Cache) evict(dev common.Dev, blkno common.Bnum) *Buf {
	var victim *Buf
	c.lru.leastRecent(func(i uint64) bool {
		b := c.bufs[i]
		if b.refcnt == 0 {
			victim = b
			return false
		}
		return true
	})
	if victim == nil {
		return nil
	}
	util.DPrintf(5, "bget: evict %d:%d for %d:%d\n",
		victim.Dev, victim.Blockno, dev, blkno)
	victim.Dev = dev
	victim.Blockno = blkno
	victim.valid = false
	victim.dirty = false
	victim.refcnt = 1
	return victim
}

// Get returns the locked buffer for (dev, blkno), without reading it from
// disk.
//
// If every buffer is referenced the cache is exhausted, which halts.
func (c *Cache) Get(dev common.Dev, blkno common.Bnum) *Buf {
	c.mu.Lock()
	b := c.lookup(dev, blkno)
	if b != nil {
		b.refcnt += 1
		c.mu.Unlock()
		b.lock.Acquire()
		return b
	}
	b = c.evict(dev, blkno)
	c.mu.Unlock()
	if b == nil {
		panic("bget: no buffers")
	}
	b.lock.Acquire()
	return b
}

// Read returns a locked buffer with the contents of the indicated block.
func (c *Cache) Read(dev common.Dev, blkno common.Bnum) *Buf {
	b := c.Get(dev, blkno)
	if !b.valid {
		c.devs.Rw(dev, blkno, b.Data, false)
		b.valid = true
	}
	return b
}

// Write writes b's contents to disk. Caller must hold b.
func (c *Cache) Write(b *Buf) {
	if !b.Holding() {
		panic("bwrite")
	}
	c.devs.Rw(b.Dev, b.Blockno, b.Data, true)
}

// Release unlocks b and drops the caller's reference; an unreferenced buffer
// becomes the most recently released.
func (c *Cache) Release(b *Buf) {
	if !b.Holding() {
		panic("brelse")
	}
	b.lock.Release()

	c.mu.Lock()
	if b.refcnt == 0 {
		c.mu.Unlock()
		panic("brelse: refcnt")
	}
	b.refcnt -= 1
	if b.refcnt == 0 {
		c.lru.moveToFront(b.slot)
	}
	c.mu.Unlock()
}

// Pin takes an extra reference on b, which keeps it from being evicted
// without requiring exclusive access to it.
func (c *Cache) Pin(b *Buf) {
	c.mu.Lock()
	b.refcnt += 1
	c.mu.Unlock()
}

// Unpin drops a reference taken by Pin.
func (c *Cache) Unpin(b *Buf) {
	c.mu.Lock()
	if b.refcnt == 0 {
		c.mu.Unlock()
		panic("bunpin")
	}
	b.refcnt -= 1
	c.mu.Unlock()
}

func (c *Cache) Refcnt(b *Buf) uint64 {
	c.mu.Lock()
	n := b.refcnt
	c.mu.Unlock()
	return n
}

// FlushAll writes every valid cached block of dev back to disk, skipping
// blocks whose latest contents belong to a transaction that has not yet been
// installed.
func (c *Cache) FlushAll(dev common.Dev) uint64 {
	var n uint64
	for _, b := range c.bufs {
		c.mu.Lock()
		if b.Dev != dev {
			c.mu.Unlock()
			continue
		}
		b.refcnt += 1
		c.mu.Unlock()

		b.lock.Acquire()
		// identity cannot change while we hold a reference
		if b.valid && !b.dirty {
			c.devs.Rw(b.Dev, b.Blockno, b.Data, true)
			n += 1
		}
		b.lock.Release()

		// unlike Release, leave the recency order alone
		c.mu.Lock()
		b.refcnt -= 1
		c.mu.Unlock()
	}
	util.DPrintf(1, "flush_all_blocks: dev %d wrote %d\n", dev, n)
	return n
}

func (b *Buf) String() string {
	return fmt.Sprintf("buf{%d:%d valid=%v dirty=%v}",
		b.Dev, b.Blockno, b.valid, b.dirty)
}
