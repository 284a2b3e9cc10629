package wal

import (
	"sync"

	"github.com/mit-pdos/go-fslog/bio"
	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/super"
	"github.com/mit-pdos/go-fslog/util"
)

func mkLog(cache *bio.Cache, dev common.Dev, sb *super.Super) *Log {
	size := sb.LogCapacity()
	if size > common.HDRADDRS {
		panic("initlog: too big logheader")
	}
	if size < common.MAXOPBLOCKS {
		panic("initlog: log smaller than one operation")
	}
	if cache.Size() <= size {
		panic("initlog: cache smaller than log")
	}
	mu := new(sync.Mutex)
	l := &Log{
		mu:          mu,
		cond:        sync.NewCond(mu),
		cache:       cache,
		dev:         dev,
		start:       sb.Logstart,
		size:        size,
		maxOpBlocks: common.MAXOPBLOCKS,
		lh:          mkLogHeader(size),
	}
	return l
}

// MkLog takes over the log region described by sb and recovers any
// committed transaction found there before returning.
func MkLog(cache *bio.Cache, dev common.Dev, sb *super.Super) *Log {
	l := mkLog(cache, dev, sb)
	l.recoverFromLog()
	util.DPrintf(1, "initlog: dev %d start %d size %d\n", dev, l.start, l.size)
	return l
}

// BeginOp is called at the start of each file-system operation.
//
// It waits while a commit is in progress, or while admitting the operation
// could exhaust the log: every outstanding operation, including this one,
// may still log up to maxOpBlocks blocks.
func (l *Log) BeginOp() {
	l.mu.Lock()
	for {
		if l.committing {
			l.cond.Wait()
		} else if l.lh.n+(l.outstanding+1)*l.maxOpBlocks > l.size {
			// this op might exhaust log space; wait for commit.
			util.DPrintf(5, "begin_op: log full, n %d outstanding %d\n",
				l.lh.n, l.outstanding)
			l.cond.Wait()
		} else {
			l.outstanding += 1
			break
		}
	}
	l.mu.Unlock()
}

// EndOp is called at the end of each file-system operation, and commits if
// this was the last outstanding operation.
func (l *Log) EndOp() {
	var doCommit = false

	l.mu.Lock()
	if l.outstanding == 0 {
		l.mu.Unlock()
		panic("end_op: no outstanding op")
	}
	l.outstanding -= 1
	if l.committing {
		l.mu.Unlock()
		panic("log.committing")
	}
	if l.outstanding == 0 {
		doCommit = true
		l.committing = true
	} else {
		// BeginOp may be waiting for log space, and decrementing
		// outstanding has decreased the amount of reserved space.
		l.cond.Broadcast()
	}
	l.mu.Unlock()

	if doCommit {
		// commit does disk I/O, so call it without holding the lock
		l.commit()
		l.mu.Lock()
		l.committing = false
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

// Write records that the caller has modified b.Data and is done changing
// it for now; the block is written by the commit. It replaces
// bio.Cache.Write inside an operation:
//
//	b := cache.Read(dev, bn)
//	modify b.Data
//	log.Write(b)
//	cache.Release(b)
//
// A block logged more than once in a transaction occupies one log slot
// (absorption). The first time a block is logged it is pinned in the cache
// until the commit installs it.
func (l *Log) Write(b *bio.Buf) {
	if !b.Holding() {
		panic("log_write: buffer not locked")
	}
	l.mu.Lock()
	if l.lh.n >= l.size {
		l.mu.Unlock()
		panic("too big a transaction")
	}
	if l.outstanding < 1 {
		l.mu.Unlock()
		panic("log_write outside of trans")
	}
	if b.Dev != l.dev {
		l.mu.Unlock()
		panic("log_write: wrong device")
	}

	var i uint64
	for i = 0; i < l.lh.n; i++ {
		if l.lh.block[i] == b.Blockno { // log absorption
			break
		}
	}
	b.SetDirty()
	if i == l.lh.n {
		util.DPrintf(5, "log_write: add %d at %d\n", b.Blockno, i)
		l.lh.block[i] = b.Blockno
		l.cache.Pin(b)
		l.lh.n += 1
	} else {
		util.DPrintf(5, "log_write: absorb %d at %d\n", b.Blockno, i)
	}
	l.mu.Unlock()
}

func (l *Log) Outstanding() uint64 {
	l.mu.Lock()
	n := l.outstanding
	l.mu.Unlock()
	return n
}

func (l *Log) Committing() bool {
	l.mu.Lock()
	c := l.committing
	l.mu.Unlock()
	return c
}

// Pending returns the home block numbers logged in the current
// transaction.
func (l *Log) Pending() []common.Bnum {
	l.mu.Lock()
	blks := make([]common.Bnum, l.lh.n)
	copy(blks, l.lh.block[:l.lh.n])
	l.mu.Unlock()
	return blks
}
