package bio

import (
	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/disk"
	"github.com/mit-pdos/go-fslog/sleeplock"
)

// A Buf is the cached copy of one disk block.
//
// Dev and Blockno are the buffer's identity; they only change while the
// buffer is unreferenced. Data may only be read or written by the holder of
// the buffer's lock.
type Buf struct {
	Dev     common.Dev
	Blockno common.Bnum
	Data    disk.Block

	valid  bool // has data been read from disk?
	dirty  bool // logged in a transaction that has not been installed
	refcnt uint64
	lock   *sleeplock.Lock
	slot   uint64
}

func mkBuf(slot uint64) *Buf {
	return &Buf{
		Dev:  common.NODEV,
		Data: make(disk.Block, disk.BlockSize),
		lock: sleeplock.MkLock("buffer"),
		slot: slot,
	}
}

// Holding reports whether the buffer is locked.
func (b *Buf) Holding() bool {
	return b.lock.Holding()
}

func (b *Buf) Valid() bool {
	return b.valid
}

// Dirty reports whether the buffer holds a logged but uninstalled write.
// Caller holds the buffer lock.
func (b *Buf) Dirty() bool {
	return b.dirty
}

func (b *Buf) SetDirty() {
	b.dirty = true
}

func (b *Buf) ClearDirty() {
	b.dirty = false
}
