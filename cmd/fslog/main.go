// Command fslog creates and inspects file-backed disk images formatted with
// a write-ahead log.
//
//	fslog -disk PATH -size N mkfs
//	fslog -disk PATH recover
//	fslog -disk PATH write BN BYTE
//	fslog -disk PATH read BN
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/mit-pdos/go-fslog/common"
	"github.com/mit-pdos/go-fslog/disk"
	"github.com/mit-pdos/go-fslog/jrnl"
)

var (
	diskPath = flag.String("disk", "", "path to the disk image")
	size     = flag.Uint64("size", 1000, "image size in blocks (mkfs)")
	ninodes  = flag.Uint64("ninodes", 200, "number of inodes (mkfs)")
	nbuf     = flag.Uint64("nbuf", common.NBUF, "buffer cache size")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -disk PATH [flags] mkfs|recover|write BN BYTE|read BN\n", os.Args[0])
	flag.PrintDefaults()
}

func mkfs(path string) error {
	d, err := disk.NewFileDisk(path, *size)
	if err != nil {
		return err
	}
	defer d.Close()
	sb, err := jrnl.Mkfs(d, common.LOGBLOCKS, *ninodes)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d blocks, log %d@%d, data starts at %d\n",
		path, sb.Size, sb.Nlog, sb.Logstart, sb.DataStart())
	return nil
}

func mount(path string) (disk.Disk, *jrnl.Jrnl, error) {
	d, err := disk.OpenFileDisk(path)
	if err != nil {
		return nil, nil, err
	}
	devs := disk.MkDevices()
	devs.Register(common.ROOTDEV, d)
	return d, jrnl.Mount(devs, common.ROOTDEV, *nbuf), nil
}

func parseBnum(j *jrnl.Jrnl, s string) (common.Bnum, error) {
	bn, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if bn < j.Super.DataStart() || bn >= j.Super.Size {
		return 0, fmt.Errorf("block %d outside data area [%d, %d)",
			bn, j.Super.DataStart(), j.Super.Size)
	}
	return bn, nil
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command")
	}
	if *diskPath == "" {
		return fmt.Errorf("-disk is required")
	}
	if args[0] == "mkfs" {
		return mkfs(*diskPath)
	}

	d, j, err := mount(*diskPath)
	if err != nil {
		return err
	}
	defer d.Close()

	switch args[0] {
	case "recover":
		sb := j.Super
		fmt.Printf("size %d nblocks %d ninodes %d nlog %d\n",
			sb.Size, sb.Nblocks, sb.Ninodes, sb.Nlog)
		fmt.Printf("logstart %d inodestart %d bmapstart %d free %d\n",
			sb.Logstart, sb.Inodestart, sb.Bmapstart, j.NumFree())
	case "write":
		if len(args) != 3 {
			return fmt.Errorf("usage: write BN BYTE")
		}
		bn, err := parseBnum(j, args[1])
		if err != nil {
			return err
		}
		v, err := strconv.ParseUint(args[2], 0, 8)
		if err != nil {
			return err
		}
		blk := make(disk.Block, disk.BlockSize)
		for i := range blk {
			blk[i] = byte(v)
		}
		op := jrnl.Begin(j)
		op.OverWrite(bn, blk)
		op.Commit()
	case "read":
		if len(args) != 2 {
			return fmt.Errorf("usage: read BN")
		}
		bn, err := parseBnum(j, args[1])
		if err != nil {
			return err
		}
		op := jrnl.Begin(j)
		b := op.ReadBuf(bn)
		fmt.Printf("%d: % x\n", bn, b.Data[:32])
		op.Commit()
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "fslog: %v\n", err)
		usage()
		os.Exit(1)
	}
}
