package common

import (
	"github.com/tchajed/goose/machine/disk"
)

type Bnum = uint64

// Dev identifies a block device.
type Dev uint32

// NODEV is never registered; buffers that have not been assigned a block
// carry it.
const NODEV Dev = ^Dev(0)

const ROOTDEV Dev = 1

const BlockSize uint64 = disk.BlockSize

const (
	MAXOPBLOCKS uint64 = 10                      // max # of blocks any FS op writes
	LOGBLOCKS   uint64 = MAXOPBLOCKS * 3         // max data blocks in on-disk log
	NBUF        uint64 = LOGBLOCKS + MAXOPBLOCKS // size of disk block cache

	HDRMETA  = uint64(8) // space for the block count
	HDRADDRS = (BlockSize - HDRMETA) / 8
)

const (
	FSMAGIC  uint64 = 0x10203040
	SUPERBLK Bnum   = 1
	BPB      uint64 = BlockSize * 8 // bitmap bits per block

	NULLBNUM Bnum = 0
)
