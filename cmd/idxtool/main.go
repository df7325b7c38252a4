// idxtool drives a disk-backed block index from the command line.
//
// Usage:
//
//	idxtool create  <path> <blocksize> <numblocks> <keysize> <valuesize>
//	idxtool put     <path> <blocksize> <keysize> <valuesize> <key> <value>
//	idxtool get     <path> <blocksize> <keysize> <valuesize> <key>
//	idxtool update  <path> <blocksize> <keysize> <valuesize> <key> <value>
//	idxtool dump    <path> <blocksize> <keysize> <valuesize> [depth|dot|sorted]
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"

	"blockindex/internal/blockdev"
	"blockindex/internal/bptree"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "put":
		err = runPut(os.Args[2:])
	case "get":
		err = runGet(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "idxtool: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  idxtool create  <path> <blocksize> <numblocks> <keysize> <valuesize>")
	fmt.Fprintln(os.Stderr, "  idxtool put     <path> <blocksize> <keysize> <valuesize> <key> <value>")
	fmt.Fprintln(os.Stderr, "  idxtool get     <path> <blocksize> <keysize> <valuesize> <key>")
	fmt.Fprintln(os.Stderr, "  idxtool update  <path> <blocksize> <keysize> <valuesize> <key> <value>")
	fmt.Fprintln(os.Stderr, "  idxtool dump    <path> <blocksize> <keysize> <valuesize> [depth|dot|sorted]")
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "idxtool: %q is not a number\n", s)
		os.Exit(1)
	}
	return n
}

func atoi64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "idxtool: %q is not a number\n", s)
		os.Exit(1)
	}
	return n
}

// fixedWidth packs a human-typed string argument into the index's
// fixed-width field, NUL-padding the remainder.
func fixedWidth(s string, size int) ([]byte, error) {
	if len(s) > size {
		return nil, fmt.Errorf("%q is %d bytes, exceeds fixed width %d", s, len(s), size)
	}
	out := make([]byte, size)
	copy(out, s)
	return out, nil
}

func runCreate(args []string) error {
	if len(args) != 5 {
		usage()
		os.Exit(1)
	}
	path, blockSize, numBlocks, keysize, valuesize := args[0], atoi(args[1]), atoi64(args[2]), atoi(args[3]), atoi(args[4])

	dev, err := blockdev.Create(path, blockSize, numBlocks)
	if err != nil {
		log.Fatalf("create %s: %v", path, err)
	}
	cached, err := blockdev.NewCachedDevice(dev, numBlocks)
	if err != nil {
		dev.Close()
		log.Fatalf("create cache for %s: %v", path, err)
	}
	defer cached.Close()

	idx, err := bptree.Attach(cached, 0, keysize, valuesize, true)
	if err != nil {
		log.Fatalf("attach %s: %v", path, err)
	}
	if err := idx.Detach(); err != nil {
		return err
	}

	total := uint64(blockSize) * uint64(numBlocks)
	fmt.Printf("created %s: %s across %d blocks of %d bytes\n", path, humanize.Bytes(total), numBlocks, blockSize)
	return nil
}

// attachExisting opens and attaches an index file, or exits the process:
// a missing/corrupt index file is an unrecoverable setup failure, not an
// operational error, so it is reported the same way the reference repo's
// cmd/seed reports a failed WAL/heap-file open — log.Fatalf, not a
// returned error.
func attachExisting(path string, blockSize, keysize, valuesize int) (*bptree.Index, *blockdev.CachedDevice) {
	dev, err := blockdev.Open(path, blockSize)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	cached, err := blockdev.NewCachedDevice(dev, dev.GetNumBlocks())
	if err != nil {
		dev.Close()
		log.Fatalf("create cache for %s: %v", path, err)
	}
	idx, err := bptree.Attach(cached, 0, keysize, valuesize, false)
	if err != nil {
		cached.Close()
		log.Fatalf("attach %s: %v", path, err)
	}
	return idx, cached
}

func runPut(args []string) error {
	if len(args) != 6 {
		usage()
		os.Exit(1)
	}
	path, blockSize, keysize, valuesize, keyArg, valArg := args[0], atoi(args[1]), atoi(args[2]), atoi(args[3]), args[4], args[5]

	idx, dev := attachExisting(path, blockSize, keysize, valuesize)
	defer dev.Close()

	key, err := fixedWidth(keyArg, keysize)
	if err != nil {
		return err
	}
	value, err := fixedWidth(valArg, valuesize)
	if err != nil {
		return err
	}

	if err := idx.Insert(key, value); err != nil {
		return err
	}
	return idx.Detach()
}

func runGet(args []string) error {
	if len(args) != 5 {
		usage()
		os.Exit(1)
	}
	path, blockSize, keysize, valuesize, keyArg := args[0], atoi(args[1]), atoi(args[2]), atoi(args[3]), args[4]

	idx, dev := attachExisting(path, blockSize, keysize, valuesize)
	defer dev.Close()

	key, err := fixedWidth(keyArg, keysize)
	if err != nil {
		return err
	}

	value, err := idx.Lookup(key)
	if err != nil {
		return err
	}
	fmt.Println(bptreeFormatDisplay(value))
	return nil
}

func runUpdate(args []string) error {
	if len(args) != 6 {
		usage()
		os.Exit(1)
	}
	path, blockSize, keysize, valuesize, keyArg, valArg := args[0], atoi(args[1]), atoi(args[2]), atoi(args[3]), args[4], args[5]

	idx, dev := attachExisting(path, blockSize, keysize, valuesize)
	defer dev.Close()

	key, err := fixedWidth(keyArg, keysize)
	if err != nil {
		return err
	}
	value, err := fixedWidth(valArg, valuesize)
	if err != nil {
		return err
	}

	if err := idx.Update(key, value); err != nil {
		return err
	}
	return idx.Detach()
}

func runDump(args []string) error {
	if len(args) != 4 && len(args) != 5 {
		usage()
		os.Exit(1)
	}
	path, blockSize, keysize, valuesize := args[0], atoi(args[1]), atoi(args[2]), atoi(args[3])

	mode := bptree.DisplayDepth
	if len(args) == 5 {
		switch args[4] {
		case "depth":
			mode = bptree.DisplayDepth
		case "dot":
			mode = bptree.DisplayDepthDot
		case "sorted":
			mode = bptree.DisplaySortedKeyVal
		default:
			return fmt.Errorf("unknown dump mode %q (want depth, dot, or sorted)", args[4])
		}
	}

	idx, dev := attachExisting(path, blockSize, keysize, valuesize)
	defer dev.Close()

	return idx.Display(os.Stdout, mode)
}

// bptreeFormatDisplay trims the NUL padding a fixed-width field carries
// so the CLI prints what the caller typed, not what's on disk.
func bptreeFormatDisplay(b []byte) string {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return string(b[:i])
}
