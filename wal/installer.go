package wal

import (
	"github.com/mit-pdos/go-fslog/util"
)

// installTrans copies committed blocks from the log to their home
// locations.
//
// During a commit the home buffers are the pinned, cached copies the
// operations modified; the pin taken by Write is dropped here. During
// recovery nothing is pinned.
func (l *Log) installTrans(recovering bool) {
	for tail := uint64(0); tail < l.lh.n; tail++ {
		blkno := l.lh.block[tail]
		if recovering {
			util.DPrintf(1, "recovering tail %d dst %d\n", tail, blkno)
		}
		lbuf := l.cache.Read(l.dev, l.start+tail+1) // read log block
		dbuf := l.cache.Read(l.dev, blkno)          // read dst
		copy(dbuf.Data, lbuf.Data)
		l.cache.Write(dbuf)
		dbuf.ClearDirty()
		if !recovering {
			l.cache.Unpin(dbuf)
		}
		l.cache.Release(lbuf)
		l.cache.Release(dbuf)
	}
}

// recoverFromLog installs a transaction that committed (its header
// reached disk) but may not have been installed, then clears the log.
// Safe to run on a clean log, and to run again after a crash during
// recovery.
func (l *Log) recoverFromLog() {
	l.readHead()
	if l.lh.n > 0 {
		util.DPrintf(1, "recover: %d committed blocks\n", l.lh.n)
	}
	l.installTrans(true) // if committed, copy from log to disk
	l.truncate()
}
