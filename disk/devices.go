package disk

import (
	"fmt"
	"sync"

	"github.com/mit-pdos/go-fslog/common"
)

// Devices maps device numbers to disks.
type Devices struct {
	mu    *sync.RWMutex
	disks map[common.Dev]Disk
}

func MkDevices() *Devices {
	return &Devices{
		mu:    new(sync.RWMutex),
		disks: make(map[common.Dev]Disk),
	}
}

// Register attaches d as device dev, replacing any previous disk.
func (devs *Devices) Register(dev common.Dev, d Disk) {
	if dev == common.NODEV {
		panic("Register: NODEV")
	}
	devs.mu.Lock()
	devs.disks[dev] = d
	devs.mu.Unlock()
}

func (devs *Devices) Disk(dev common.Dev) (Disk, bool) {
	devs.mu.RLock()
	d, ok := devs.disks[dev]
	devs.mu.RUnlock()
	return d, ok
}

// Rw reads or writes one block of dev, returning once the transfer is
// complete (and, for writes, durable).
//
// Device failures are not handled by any caller; they halt.
func (devs *Devices) Rw(dev common.Dev, blkno common.Bnum, data Block, write bool) {
	d, ok := devs.Disk(dev)
	if !ok {
		panic(fmt.Errorf("block_rw: no device %d", dev))
	}
	var err error
	if write {
		err = d.Write(blkno, data)
		if err == nil {
			err = d.Barrier()
		}
	} else {
		err = d.ReadTo(blkno, data)
	}
	if err != nil {
		panic(fmt.Errorf("block_rw: dev %d block %d write=%v: %v",
			dev, blkno, write, err))
	}
}
