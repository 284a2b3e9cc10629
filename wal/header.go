package wal

import (
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/disk"
)

func mkLogHeader(size uint64) *logHeader {
	return &logHeader{
		n:     0,
		block: make([]common.Bnum, size),
	}
}

func (lh *logHeader) encode() disk.Block {
	enc := marshal.NewEnc(common.BlockSize)
	enc.PutInt(lh.n)
	enc.PutInts(lh.block)
	return enc.Finish()
}

func decodeHeader(blk disk.Block, size uint64) *logHeader {
	dec := marshal.NewDec(blk)
	n := dec.GetInt()
	block := dec.GetInts(size)
	return &logHeader{n: n, block: block}
}

// readHead reads the log header from disk into the in-memory log header.
func (l *Log) readHead() {
	b := l.cache.Read(l.dev, l.start)
	lh := decodeHeader(b.Data, l.size)
	l.cache.Release(b)
	if lh.n > l.size {
		panic("read_head: corrupt log header")
	}
	l.lh = lh
}

// writeHead writes the in-memory log header to disk. This is the true point
// at which the current transaction commits.
func (l *Log) writeHead() {
	b := l.cache.Read(l.dev, l.start)
	copy(b.Data, l.lh.encode())
	l.cache.Write(b)
	l.cache.Release(b)
}
