// Package repblock stores one block of data mirrored at two adjacent disk
// blocks, updating both copies in a single journal operation.
package repblock

import (
	"sync"

	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/disk"
	"github.com/mit-pdos/go-fslog/jrnl"
	"github.com/mit-pdos/go-fslog/util"
)

type RepBlock struct {
	j *jrnl.Jrnl

	m  *sync.Mutex
	a0 common.Bnum
	a1 common.Bnum
}

func Open(j *jrnl.Jrnl, a common.Bnum) *RepBlock {
	if a < j.Super.DataStart() || a+1 >= j.Super.Size {
		panic("repblock: not a data block")
	}
	return &RepBlock{
		j:  j,
		m:  new(sync.Mutex),
		a0: a,
		a1: a + 1,
	}
}

// Read returns a copy of the primary block. The operation writes nothing,
// so its commit is empty.
func (rb *RepBlock) Read() disk.Block {
	rb.m.Lock()
	op := jrnl.Begin(rb.j)
	buf := op.ReadBuf(rb.a0)
	b := util.CloneByteSlice(buf.Data)
	op.Commit()
	rb.m.Unlock()
	return b
}

func (rb *RepBlock) Write(b disk.Block) {
	rb.m.Lock()
	op := jrnl.Begin(rb.j)
	op.OverWrite(rb.a0, b)
	op.OverWrite(rb.a1, b)
	op.Commit()
	rb.m.Unlock()
}
