// wal implements write-ahead logging of whole blocks.
//
// A log transaction contains the updates of multiple file-system
// operations. The log only commits when no operations are active, so there
// is never any reasoning required about whether a commit might write an
// unfinished operation's updates to disk.
//
// An operation calls BeginOp/EndOp to mark its start and end. Usually
// BeginOp just increments the count of in-progress operations and returns,
// but if the log is close to running out of space it waits until the last
// outstanding EndOp commits.
//
// The log is a physical redo log containing disk blocks. The on-disk
// format:
//
//	[ header | block A | block B | block C | ... ]
//	  ^
//	  logstart
//
// where the header holds the count of valid blocks and the home block
// numbers of A, B, C, ... Appends are synchronous.
package wal

import (
	"sync"

	"github.com/mit-pdos/go-fslog/bio"
	"github.com/mit-pdos/go-fslog/common"
)

// logHeader is both the on-disk header block and the in-memory record of
// the blocks logged in the current transaction.
type logHeader struct {
	n     uint64
	block []common.Bnum // capacity entries, only the first n meaningful
}

type Log struct {
	mu   *sync.Mutex
	cond *sync.Cond // signaled on commit end and on freed reservations

	cache       *bio.Cache
	dev         common.Dev
	start       common.Bnum // block number of the header
	size        uint64      // capacity in data blocks
	maxOpBlocks uint64

	outstanding uint64 // how many operations are executing
	committing  bool   // in commit(), please wait
	lh          *logHeader
}

// Capacity reports the number of data blocks the log can hold.
func (l *Log) Capacity() uint64 {
	return l.size
}
