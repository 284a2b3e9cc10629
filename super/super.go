// Package super describes the on-disk layout.
//
// Disk layout:
// [ boot block | super block | log | inode blocks | free bit map | data blocks ]
//
// Mkfs computes the super block and builds an initial file system. The
// super block describes the disk layout.
package super

import (
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-fslog/bio"
	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/disk"
	"github.com/mit-pdos/go-fslog/util"
)

// INODESZ is the on-disk inode size the layout reserves space for.
const INODESZ uint64 = 64

const IPB = common.BlockSize / INODESZ

type Super struct {
	Magic      uint64
	Size       uint64 // size of file system image (blocks)
	Nblocks    uint64 // number of data blocks
	Ninodes    uint64
	Nlog       uint64 // number of log blocks, including the header
	Logstart   common.Bnum
	Inodestart common.Bnum
	Bmapstart  common.Bnum
}

// MkSuper lays out a file system of size blocks with a log of nlog data
// blocks (plus its header) and room for ninodes inodes.
func MkSuper(size uint64, nlog uint64, ninodes uint64) *Super {
	nloghdr := nlog + 1
	ninodeblks := util.RoundUp(ninodes, IPB)
	nbitmap := util.RoundUp(size, common.BPB)
	nmeta := 2 + nloghdr + ninodeblks + nbitmap
	if nmeta >= size {
		panic("mkfs: disk too small")
	}
	sb := &Super{
		Magic:      common.FSMAGIC,
		Size:       size,
		Nblocks:    size - nmeta,
		Ninodes:    ninodes,
		Nlog:       nloghdr,
		Logstart:   2,
		Inodestart: 2 + nloghdr,
		Bmapstart:  2 + nloghdr + ninodeblks,
	}
	return sb
}

func (sb *Super) Encode() disk.Block {
	enc := marshal.NewEnc(common.BlockSize)
	enc.PutInt(sb.Magic)
	enc.PutInt(sb.Size)
	enc.PutInt(sb.Nblocks)
	enc.PutInt(sb.Ninodes)
	enc.PutInt(sb.Nlog)
	enc.PutInt(sb.Logstart)
	enc.PutInt(sb.Inodestart)
	enc.PutInt(sb.Bmapstart)
	return enc.Finish()
}

func Decode(blk disk.Block) *Super {
	dec := marshal.NewDec(blk)
	sb := &Super{}
	sb.Magic = dec.GetInt()
	sb.Size = dec.GetInt()
	sb.Nblocks = dec.GetInt()
	sb.Ninodes = dec.GetInt()
	sb.Nlog = dec.GetInt()
	sb.Logstart = dec.GetInt()
	sb.Inodestart = dec.GetInt()
	sb.Bmapstart = dec.GetInt()
	return sb
}

// ReadSuper reads the super block of dev through the cache.
func ReadSuper(c *bio.Cache, dev common.Dev) *Super {
	b := c.Read(dev, common.SUPERBLK)
	sb := Decode(b.Data)
	c.Release(b)
	if sb.Magic != common.FSMAGIC {
		panic("invalid file system")
	}
	return sb
}

// LogCapacity is the number of data blocks the log can hold.
func (sb *Super) LogCapacity() uint64 {
	return sb.Nlog - 1
}

func (sb *Super) DataStart() common.Bnum {
	return sb.Size - sb.Nblocks
}

// BBlock is the bitmap block holding the bit for block b.
func (sb *Super) BBlock(b common.Bnum) common.Bnum {
	return b/common.BPB + sb.Bmapstart
}
