package wal

import (
	"github.com/mit-pdos/go-fslog/util"
)

// writeLog copies the modified blocks from the cache to their log slots.
func (l *Log) writeLog() {
	for tail := uint64(0); tail < l.lh.n; tail++ {
		to := l.cache.Read(l.dev, l.start+tail+1)     // log block
		from := l.cache.Read(l.dev, l.lh.block[tail]) // cache block
		util.DPrintf(5, "write_log: %d to log block %d\n", from.Blockno, tail)
		copy(to.Data, from.Data)
		l.cache.Write(to)
		l.cache.Release(from)
		l.cache.Release(to)
	}
}

// commit runs with l.committing set and l.mu released; no operation is
// outstanding, so nothing else touches the header or the logged buffers.
func (l *Log) commit() {
	if l.lh.n == 0 {
		return
	}
	util.DPrintf(1, "commit: %d blocks\n", l.lh.n)
	l.writeLog()          // write modified blocks from cache to log
	l.writeHead()         // write header to disk -- the real commit
	l.installTrans(false) // now install writes to home locations
	l.truncate()
}

// truncate erases the installed transaction from the log.
func (l *Log) truncate() {
	l.mu.Lock()
	l.lh.n = 0
	l.mu.Unlock()
	l.writeHead()
}
