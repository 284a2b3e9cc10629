package wal

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/mit-pdos/go-fslog/bio"
	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/disk"
	"github.com/mit-pdos/go-fslog/super"
)

const dev = common.ROOTDEV

type WalSuite struct {
	suite.Suite
	d    disk.Disk
	devs *disk.Devices
	sb   *super.Super
	c    *bio.Cache
	l    *Log
}

func (suite *WalSuite) SetupTest() {
	suite.d = disk.NewMemDisk(1000)
	suite.devs = disk.MkDevices()
	suite.devs.Register(dev, suite.d)
	suite.sb = super.MkSuper(1000, common.LOGBLOCKS, 64)
	suite.c = bio.MkCache(suite.devs, common.NBUF)
	suite.l = MkLog(suite.c, dev, suite.sb)
}

// crash drops all in-memory state (cache and log) and mounts the log
// again, which runs recovery.
func (suite *WalSuite) crash() {
	suite.c = bio.MkCache(suite.devs, common.NBUF)
	suite.l = MkLog(suite.c, dev, suite.sb)
}

func TestWal(t *testing.T) {
	suite.Run(t, new(WalSuite))
}

func (suite *WalSuite) dataBnum(x common.Bnum) common.Bnum {
	return suite.sb.DataStart() + x
}

func mkBlock(b byte) disk.Block {
	block := make(disk.Block, disk.BlockSize)
	for i := range block {
		block[i] = b
	}
	return block
}

var block0 = mkBlock(0)
var block1 = mkBlock(1)
var block2 = mkBlock(2)

// home reads block bn straight from the disk.
func (suite *WalSuite) home(bn common.Bnum) disk.Block {
	b, err := suite.d.Read(bn)
	suite.Require().Nil(err)
	return b
}

func (suite *WalSuite) diskHeader() *logHeader {
	return decodeHeader(suite.home(suite.sb.Logstart), suite.sb.LogCapacity())
}

// logBlock modifies block bn to hold data and logs it; the caller must
// have an operation open.
func (suite *WalSuite) logBlock(bn common.Bnum, data disk.Block) {
	b := suite.c.Read(dev, bn)
	copy(b.Data, data)
	suite.l.Write(b)
	suite.c.Release(b)
}

func (suite *WalSuite) TestSingleTransaction() {
	l := suite.l
	bn := suite.dataBnum(5)
	l.BeginOp()
	suite.logBlock(bn, block1)
	suite.Equal(block0, suite.home(bn), "nothing reaches home before commit")
	l.EndOp()

	suite.Equal(block1, suite.home(bn))
	suite.Equal(uint64(0), suite.diskHeader().n)
	suite.Equal(uint64(0), l.Outstanding())
	suite.False(l.Committing())
	suite.Empty(l.Pending())

	b := suite.c.Read(dev, bn)
	suite.Equal(uint64(1), suite.c.Refcnt(b), "commit should unpin")
	suite.False(b.Dirty())
	suite.c.Release(b)
}

func (suite *WalSuite) TestEmptyCommit() {
	l := suite.l
	l.BeginOp()
	l.EndOp()
	suite.Equal(uint64(0), suite.diskHeader().n)
}

func (suite *WalSuite) TestAbsorption() {
	l := suite.l
	bn := suite.dataBnum(7)
	l.BeginOp()
	l.BeginOp()
	suite.logBlock(bn, block1)
	suite.logBlock(bn, block2)
	suite.logBlock(suite.dataBnum(8), block1)
	suite.logBlock(bn, block2)
	suite.Equal([]common.Bnum{bn, suite.dataBnum(8)}, l.Pending())

	b := suite.c.Read(dev, bn)
	suite.Equal(uint64(2), suite.c.Refcnt(b), "absorbed block is pinned once")
	suite.c.Release(b)

	l.EndOp()
	suite.Equal(block0, suite.home(bn), "commit waits for the last op")
	l.EndOp()
	suite.Equal(block2, suite.home(bn), "latest write should be installed")
	suite.Equal(block1, suite.home(suite.dataBnum(8)))
}

func (suite *WalSuite) TestGroupCommit() {
	l := suite.l
	l.BeginOp()
	suite.logBlock(suite.dataBnum(1), block1)
	l.BeginOp()
	suite.logBlock(suite.dataBnum(2), block2)
	l.EndOp()
	suite.Equal(block0, suite.home(suite.dataBnum(1)))
	l.EndOp()
	suite.Equal(block1, suite.home(suite.dataBnum(1)))
	suite.Equal(block2, suite.home(suite.dataBnum(2)))
}

func (suite *WalSuite) TestRecoverCommitted() {
	sb := suite.sb
	b3 := suite.dataBnum(3)
	b9 := suite.dataBnum(9)
	// header and log blocks reached disk, home locations did not
	suite.d.Write(sb.Logstart+1, block1)
	suite.d.Write(sb.Logstart+2, block2)
	lh := mkLogHeader(sb.LogCapacity())
	lh.n = 2
	lh.block[0] = b3
	lh.block[1] = b9
	suite.d.Write(sb.Logstart, lh.encode())

	suite.crash()
	suite.Equal(block1, suite.home(b3))
	suite.Equal(block2, suite.home(b9))
	suite.Equal(uint64(0), suite.diskHeader().n)

	b := suite.c.Read(dev, b3)
	suite.Equal(uint64(1), suite.c.Refcnt(b), "recovery should not pin")
	suite.c.Release(b)
}

func (suite *WalSuite) TestCrashAfterCommitPoint() {
	l := suite.l
	b1 := suite.dataBnum(1)
	b2 := suite.dataBnum(2)
	l.BeginOp()
	suite.logBlock(b1, block1)
	suite.logBlock(b2, block2)
	// run the commit by hand, stopping after the header write
	l.writeLog()
	l.writeHead()
	suite.Equal(uint64(2), suite.diskHeader().n)
	suite.Equal(block0, suite.home(b1))

	suite.crash()
	suite.Equal(block1, suite.home(b1))
	suite.Equal(block2, suite.home(b2))
	suite.Equal(uint64(0), suite.diskHeader().n)
}

func (suite *WalSuite) TestCrashBeforeCommitPoint() {
	l := suite.l
	b1 := suite.dataBnum(1)
	b2 := suite.dataBnum(2)
	l.BeginOp()
	suite.logBlock(b1, block1)
	suite.logBlock(b2, block2)
	l.writeLog()
	// crash before the header write

	suite.crash()
	suite.Equal(block0, suite.home(b1))
	suite.Equal(block0, suite.home(b2))
	suite.Equal(uint64(0), suite.diskHeader().n)
}

func (suite *WalSuite) TestCrashKeepsPriorCommit() {
	l := suite.l
	b1 := suite.dataBnum(1)
	l.BeginOp()
	suite.logBlock(b1, block1)
	l.EndOp()

	l.BeginOp()
	suite.logBlock(b1, block2)
	suite.crash()
	suite.Equal(block1, suite.home(b1), "only the committed write survives")
}

func (suite *WalSuite) TestCrashDuringRecovery() {
	l := suite.l
	b1 := suite.dataBnum(1)
	b2 := suite.dataBnum(2)
	l.BeginOp()
	suite.logBlock(b1, block1)
	suite.logBlock(b2, block2)
	l.writeLog()
	l.writeHead()

	// recover, but crash before the log is truncated
	suite.c = bio.MkCache(suite.devs, common.NBUF)
	l = mkLog(suite.c, dev, suite.sb)
	l.readHead()
	l.installTrans(true)
	suite.Equal(uint64(2), suite.diskHeader().n)

	suite.crash()
	suite.Equal(block1, suite.home(b1))
	suite.Equal(block2, suite.home(b2))
	suite.Equal(uint64(0), suite.diskHeader().n)
}

func (suite *WalSuite) TestIdempotentRecovery() {
	before := make([]disk.Block, 0)
	for bn := uint64(0); bn < suite.sb.DataStart()+4; bn++ {
		before = append(before, suite.home(bn))
	}
	suite.l.recoverFromLog()
	suite.l.recoverFromLog()
	suite.Equal(uint64(0), suite.diskHeader().n)
	for bn := uint64(0); bn < suite.sb.DataStart()+4; bn++ {
		suite.Equal(before[bn], suite.home(bn), "block %d", bn)
	}
}

func (suite *WalSuite) TestCapacityGuard() {
	l := suite.l
	nops := l.Capacity() / common.MAXOPBLOCKS
	for i := uint64(0); i < nops; i++ {
		l.BeginOp()
	}
	suite.Equal(nops, l.Outstanding())

	admitted := make(chan bool)
	go func() {
		l.BeginOp()
		admitted <- true
	}()
	select {
	case <-admitted:
		suite.Fail("admitted an operation the log cannot hold")
	case <-time.After(50 * time.Millisecond):
	}
	l.EndOp()
	<-admitted
	suite.Equal(nops, l.Outstanding())
	for i := uint64(0); i < nops; i++ {
		l.EndOp()
	}
}

func (suite *WalSuite) TestBeginWaitsForLoggedBlocks() {
	l := suite.l
	l.BeginOp()
	for i := uint64(0); i < common.MAXOPBLOCKS; i++ {
		suite.logBlock(suite.dataBnum(i), block1)
	}
	l.BeginOp()
	l.EndOp()
	// n = MAXOPBLOCKS with one op outstanding: one more fits, the next waits
	l.BeginOp()
	admitted := make(chan bool)
	go func() {
		l.BeginOp()
		admitted <- true
	}()
	select {
	case <-admitted:
		suite.Fail("admitted past the reservation")
	case <-time.After(50 * time.Millisecond):
	}
	l.EndOp()
	l.EndOp()
	<-admitted
	l.EndOp()
	suite.Equal(block1, suite.home(suite.dataBnum(0)))
}

func (suite *WalSuite) TestMisuse() {
	l := suite.l
	suite.PanicsWithValue("end_op: no outstanding op", func() { l.EndOp() })

	b := suite.c.Read(dev, suite.dataBnum(0))
	suite.PanicsWithValue("log_write outside of trans", func() { l.Write(b) })
	suite.c.Release(b)

	l.BeginOp()
	suite.PanicsWithValue("log_write: buffer not locked", func() { l.Write(b) })
	l.EndOp()
}

func (suite *WalSuite) TestTooBigTransaction() {
	l := suite.l
	nops := l.Capacity() / common.MAXOPBLOCKS
	for i := uint64(0); i < nops; i++ {
		l.BeginOp()
	}
	for i := uint64(0); i < l.Capacity(); i++ {
		suite.logBlock(suite.dataBnum(i), block1)
	}
	b := suite.c.Read(dev, suite.dataBnum(l.Capacity()))
	suite.PanicsWithValue("too big a transaction", func() { l.Write(b) })
	suite.c.Release(b)
	for i := uint64(0); i < nops; i++ {
		l.EndOp()
	}
	suite.Equal(block1, suite.home(suite.dataBnum(l.Capacity()-1)))
}

func (suite *WalSuite) TestEndOpDuringCommit() {
	l := suite.l
	l.mu.Lock()
	l.outstanding = 1
	l.committing = true
	l.mu.Unlock()
	suite.PanicsWithValue("log.committing", func() { l.EndOp() })
}

func (suite *WalSuite) TestConcurrentOps() {
	l := suite.l
	const nthread = 16
	const nops = 20
	var wg sync.WaitGroup
	wg.Add(nthread)
	for t := 0; t < nthread; t++ {
		t := t
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(t)))
			for i := 0; i < nops; i++ {
				l.BeginOp()
				// each thread owns its own blocks
				nblk := 1 + r.Intn(int(common.MAXOPBLOCKS))
				for j := 0; j < nblk; j++ {
					bn := suite.dataBnum(uint64(t*20 + j))
					b := suite.c.Read(dev, bn)
					b.Data[0] = byte(i)
					b.Data[1] = byte(t)
					l.Write(b)
					suite.c.Release(b)
				}
				l.mu.Lock()
				used := l.lh.n
				l.mu.Unlock()
				assert.True(suite.T(), used <= l.Capacity())
				l.EndOp()
			}
		}()
	}
	wg.Wait()

	suite.Equal(uint64(0), l.Outstanding())
	suite.Equal(uint64(0), suite.diskHeader().n)
	for t := 0; t < nthread; t++ {
		blk := suite.home(suite.dataBnum(uint64(t * 20)))
		suite.Equal(byte(nops-1), blk[0], "thread %d last op", t)
		suite.Equal(byte(t), blk[1])
		b := suite.c.Read(dev, suite.dataBnum(uint64(t*20)))
		suite.Equal(uint64(1), suite.c.Refcnt(b), "all pins released")
		suite.c.Release(b)
	}
}

func TestMkLogChecks(t *testing.T) {
	devs := disk.MkDevices()
	devs.Register(dev, disk.NewMemDisk(2000))

	sb := super.MkSuper(2000, common.LOGBLOCKS, 64)
	assert.PanicsWithValue(t, "initlog: cache smaller than log", func() {
		MkLog(bio.MkCache(devs, common.LOGBLOCKS), dev, sb)
	})

	sb = super.MkSuper(2000, common.MAXOPBLOCKS-1, 64)
	assert.PanicsWithValue(t, "initlog: log smaller than one operation", func() {
		MkLog(bio.MkCache(devs, common.NBUF), dev, sb)
	})

	sb = super.MkSuper(2000, common.HDRADDRS+1, 64)
	assert.PanicsWithValue(t, "initlog: too big logheader", func() {
		MkLog(bio.MkCache(devs, 1000), dev, sb)
	})
}

func TestHeaderEncoding(t *testing.T) {
	lh := mkLogHeader(common.HDRADDRS)
	lh.n = 3
	lh.block[0], lh.block[1], lh.block[2] = 40, 7, 1<<40
	blk := lh.encode()
	assert.Equal(t, int(common.BlockSize), len(blk))
	assert.Equal(t, lh, decodeHeader(blk, common.HDRADDRS))
}
