// Package jrnl is the top-level API the file system uses: it formats and
// mounts a device, and brackets operations on the mounted log.
//
// The caller uses this interface by beginning an operation Op, reading and
// modifying blocks through it, and finally committing it:
//
//	op := jrnl.Begin(j)
//	b := op.ReadBuf(bn)
//	modify b.Data
//	op.Write(b)
//	op.Release(b)
//	op.Commit()
//
// Writes of all operations open at the same time are committed together,
// atomically, when the last of them commits. An operation may write at most
// common.MAXOPBLOCKS distinct blocks.
package jrnl

import (
	"github.com/mit-pdos/go-fslog/alloc"
	"github.com/mit-pdos/go-fslog/bio"
	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/disk"
	"github.com/mit-pdos/go-fslog/super"
	"github.com/mit-pdos/go-fslog/util"
	"github.com/mit-pdos/go-fslog/wal"
)

// Jrnl is a mounted device. There is one per mounted file system.
type Jrnl struct {
	Dev   common.Dev
	Cache *bio.Cache
	Log   *wal.Log
	Super *super.Super
	alloc *alloc.Alloc
}

// Mkfs formats d with an empty log of nlog blocks and room for ninodes
// inodes, marking the metadata blocks used in the free bitmap.
func Mkfs(d disk.Disk, nlog uint64, ninodes uint64) (*super.Super, error) {
	size, err := d.Size()
	if err != nil {
		return nil, err
	}
	sb := super.MkSuper(size, nlog, ninodes)
	zero := make(disk.Block, disk.BlockSize)

	if err := d.Write(common.SUPERBLK, sb.Encode()); err != nil {
		return nil, err
	}
	// an all-zero header is an empty log
	if err := d.Write(sb.Logstart, zero); err != nil {
		return nil, err
	}
	used := sb.DataStart()
	for bmap := sb.Bmapstart; bmap < sb.DataStart(); bmap++ {
		blk := make(disk.Block, disk.BlockSize)
		first := (bmap - sb.Bmapstart) * common.BPB
		if used > first {
			alloc.MarkUsed(blk, util.Min(used-first, common.BPB))
		}
		if err := d.Write(bmap, blk); err != nil {
			return nil, err
		}
	}
	if err := d.Barrier(); err != nil {
		return nil, err
	}
	util.DPrintf(1, "mkfs: size %d nlog %d data %d..%d\n",
		size, nlog, sb.DataStart(), size)
	return sb, nil
}

// Mount initializes a cache of nbuf buffers, reads the super block of dev,
// and recovers the log.
func Mount(devs *disk.Devices, dev common.Dev, nbuf uint64) *Jrnl {
	cache := bio.MkCache(devs, nbuf)
	sb := super.ReadSuper(cache, dev)
	log := wal.MkLog(cache, dev, sb)
	j := &Jrnl{
		Dev:   dev,
		Cache: cache,
		Log:   log,
		Super: sb,
		alloc: alloc.MkAlloc(cache, log, dev, sb),
	}
	util.DPrintf(1, "mount: dev %d size %d\n", dev, sb.Size)
	return j
}

// Sync writes back cached blocks that are not part of a pending
// transaction.
func (j *Jrnl) Sync() uint64 {
	return j.Cache.FlushAll(j.Dev)
}

// Op is an in-progress operation.
type Op struct {
	j    *Jrnl
	held []*bio.Buf
}

// Begin starts an operation, waiting if the log lacks room for it.
func Begin(j *Jrnl) *Op {
	j.Log.BeginOp()
	op := &Op{j: j}
	util.DPrintf(3, "Begin: %p\n", op)
	return op
}

// ReadBuf returns the locked buffer for bn.
func (op *Op) ReadBuf(bn common.Bnum) *bio.Buf {
	b := op.j.Cache.Read(op.j.Dev, bn)
	op.held = append(op.held, b)
	return b
}

// Write records b as modified by this operation.
func (op *Op) Write(b *bio.Buf) {
	op.j.Log.Write(b)
}

// Release hands b back to the cache.
func (op *Op) Release(b *bio.Buf) {
	for i, h := range op.held {
		if h == b {
			op.held = append(op.held[:i], op.held[i+1:]...)
			op.j.Cache.Release(b)
			return
		}
	}
	panic("Release: buffer not held by op")
}

// OverWrite replaces the contents of block bn with data.
func (op *Op) OverWrite(bn common.Bnum, data disk.Block) {
	if uint64(len(data)) != disk.BlockSize {
		panic("overwrite")
	}
	b := op.ReadBuf(bn)
	copy(b.Data, data)
	op.Write(b)
	op.Release(b)
}

// Balloc allocates a zeroed block, or returns common.NULLBNUM when the disk
// is full.
func (op *Op) Balloc() common.Bnum {
	return op.j.alloc.Balloc()
}

func (op *Op) Bfree(bn common.Bnum) {
	op.j.alloc.Bfree(bn)
}

// Commit releases any buffers the operation still holds and ends it. The
// operation's writes are durable when Commit returns if this was the last
// open operation; otherwise they become durable with the last one.
func (op *Op) Commit() {
	util.DPrintf(3, "Commit: %p held %d\n", op, len(op.held))
	for _, b := range op.held {
		op.j.Cache.Release(b)
	}
	op.held = nil
	op.j.Log.EndOp()
}

func (j *Jrnl) NumFree() uint64 {
	return j.alloc.NumFree()
}
