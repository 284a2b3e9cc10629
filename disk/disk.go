// Package disk is the block device layer underneath the buffer cache.
//
// A Disk is a single device of fixed-size blocks; Devices maps device
// numbers to disks and performs the synchronous block reads and writes the
// buffer cache issues.
package disk

import (
	"fmt"

	goosedisk "github.com/tchajed/goose/machine/disk"
)

// Block is a BlockSize-byte buffer
type Block = goosedisk.Block

const BlockSize uint64 = goosedisk.BlockSize

// Disk provides access to a logical block-based disk
type Disk interface {
	// Read reads a disk block by address
	//
	// Expects a < Size().
	Read(a uint64) (Block, error)

	// ReadTo reads the disk block at a and stores the result in b
	//
	// Expects a < Size().
	ReadTo(a uint64, b Block) error

	// Write updates a disk block by address
	//
	// Expects a < Size().
	Write(a uint64, v Block) error

	// Size reports how big the disk is, in blocks
	Size() (uint64, error)

	// Barrier ensures data is persisted.
	//
	// When it returns, all outstanding writes are guaranteed to be durably on
	// disk
	Barrier() error

	// Close releases any resources used by the disk and makes it unusable.
	Close() error
}

var _ Disk = (*memDisk)(nil)

// memDisk adapts goose's in-memory disk to the error-returning interface.
type memDisk struct {
	d         goosedisk.Disk
	numBlocks uint64
}

func NewMemDisk(numBlocks uint64) Disk {
	return &memDisk{
		d:         goosedisk.NewMemDisk(numBlocks),
		numBlocks: numBlocks,
	}
}

func (d *memDisk) check(a uint64) error {
	if a >= d.numBlocks {
		return fmt.Errorf("out-of-bounds access at %v", a)
	}
	return nil
}

func (d *memDisk) ReadTo(a uint64, buf Block) error {
	if uint64(len(buf)) != BlockSize {
		return fmt.Errorf("buffer is not block-sized (%d bytes)", len(buf))
	}
	if err := d.check(a); err != nil {
		return err
	}
	copy(buf, d.d.Read(a))
	return nil
}

func (d *memDisk) Read(a uint64) (Block, error) {
	buf := make(Block, BlockSize)
	err := d.ReadTo(a, buf)
	return buf, err
}

func (d *memDisk) Write(a uint64, v Block) error {
	if uint64(len(v)) != BlockSize {
		return fmt.Errorf("v is not block-sized (%d bytes)", len(v))
	}
	if err := d.check(a); err != nil {
		return err
	}
	d.d.Write(a, v)
	return nil
}

func (d *memDisk) Size() (uint64, error) {
	return d.numBlocks, nil
}

func (d *memDisk) Barrier() error { return nil }

func (d *memDisk) Close() error { return nil }
