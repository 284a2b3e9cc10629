// Package alloc allocates and frees disk blocks through the log, using the
// on-disk free bitmap. Bit b of the bitmap is set when block b is in use.
//
// All calls must be made inside an operation (between wal.BeginOp and
// wal.EndOp), since they log the bitmap blocks they change.
package alloc

import (
	"sync"

	"github.com/mit-pdos/go-fslog/bio"
	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/super"
	"github.com/mit-pdos/go-fslog/util"
	"github.com/mit-pdos/go-fslog/wal"
)

type Alloc struct {
	lock  *sync.Mutex // protects next
	cache *bio.Cache
	log   *wal.Log
	dev   common.Dev
	sb    *super.Super
	next  common.Bnum // first block to try
}

func MkAlloc(cache *bio.Cache, log *wal.Log, dev common.Dev, sb *super.Super) *Alloc {
	a := &Alloc{
		lock:  new(sync.Mutex),
		cache: cache,
		log:   log,
		dev:   dev,
		sb:    sb,
		next:  sb.DataStart(),
	}
	return a
}

// startHint returns where the next search starts, advancing the hint so that
// concurrent allocators spread out.
func (a *Alloc) startHint() common.Bnum {
	a.lock.Lock()
	num := a.next
	a.next = a.next + 1
	if a.next >= a.sb.Size {
		a.next = a.sb.DataStart()
	}
	a.lock.Unlock()
	return num
}

// setBit marks bn used if it is free, logging the bitmap block.
func (a *Alloc) setBit(bn common.Bnum) bool {
	b := a.cache.Read(a.dev, a.sb.BBlock(bn))
	bi := bn % common.BPB
	m := byte(1 << (bi % 8))
	var ok = false
	if b.Data[bi/8]&m == 0 {
		b.Data[bi/8] |= m
		a.log.Write(b)
		ok = true
	}
	a.cache.Release(b)
	return ok
}

// bzero zeroes block bn through the log.
func (a *Alloc) bzero(bn common.Bnum) {
	b := a.cache.Read(a.dev, bn)
	for i := range b.Data {
		b.Data[i] = 0
	}
	a.log.Write(b)
	a.cache.Release(b)
}

// Balloc allocates a zeroed data block, returning NULLBNUM if the disk is
// full.
func (a *Alloc) Balloc() common.Bnum {
	start := a.startHint()
	ndata := a.sb.Nblocks
	dstart := a.sb.DataStart()
	for i := uint64(0); i < ndata; i++ {
		bn := dstart + (start-dstart+i)%ndata
		if a.setBit(bn) {
			util.DPrintf(5, "balloc: %d\n", bn)
			a.bzero(bn)
			return bn
		}
	}
	util.DPrintf(1, "balloc: out of blocks\n")
	return common.NULLBNUM
}

// Bfree frees block bn.
func (a *Alloc) Bfree(bn common.Bnum) {
	if bn < a.sb.DataStart() || bn >= a.sb.Size {
		panic("bfree: not a data block")
	}
	b := a.cache.Read(a.dev, a.sb.BBlock(bn))
	bi := bn % common.BPB
	m := byte(1 << (bi % 8))
	if b.Data[bi/8]&m == 0 {
		a.cache.Release(b)
		panic("freeing free block")
	}
	b.Data[bi/8] &^= m
	a.log.Write(b)
	a.cache.Release(b)
	util.DPrintf(5, "bfree: %d\n", bn)
}

func popCnt(b byte) uint64 {
	var count uint64
	var x = b
	for i := uint64(0); i < 8; i++ {
		count += uint64(x & 1)
		x = x >> 1
	}
	return count
}

// NumFree counts free data blocks. It reads the bitmap without logging
// anything.
func (a *Alloc) NumFree() uint64 {
	var used uint64
	for bmap := a.sb.Bmapstart; bmap < a.sb.DataStart(); bmap++ {
		b := a.cache.Read(a.dev, bmap)
		first := (bmap - a.sb.Bmapstart) * common.BPB
		for i, byt := range b.Data {
			if first+uint64(i)*8 >= a.sb.Size {
				break
			}
			used += popCnt(byt)
		}
		a.cache.Release(b)
	}
	return a.sb.Size - used
}

// MarkUsed sets the bits of blocks [0, n) directly on the bitmap image
// bmap; mkfs uses it to reserve the metadata blocks.
func MarkUsed(bmap []byte, n uint64) {
	for bn := uint64(0); bn < n; bn++ {
		bmap[bn/8] |= 1 << (bn % 8)
	}
}
