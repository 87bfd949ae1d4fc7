package main

import (
	"bytes"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faker/faker/v4"

	"github.com/pillairaunak/bptreeindex/storage/btree"
	"github.com/pillairaunak/bptreeindex/storage/buffer"
)

func main() {
	dir := flag.String("dir", "./bptree_data", "storage directory for the block file")
	fileName := flag.String("file", "demo.blocks", "name of the block file within -dir")
	blockSize := flag.Int("blocksize", 4096, "bytes per block")
	blockCount := flag.Int("blockcount", 4096, "number of addressable blocks")
	cacheCapacity := flag.Int64("cachebytes", 32<<20, "byte budget for the read cache")
	keySize := flag.Int("keysize", 16, "fixed key size in bytes")
	valueSize := flag.Int("valuesize", 32, "fixed value size in bytes")
	numInserts := flag.Int("inserts", 0, "number of faker-generated key/value pairs to insert")
	displayMode := flag.String("display", "", "after the workload, print the tree: depth, dot, or sorted")
	flag.Parse()

	log.Println("--- bptreeindex demo ---")

	create := isFreshFile(*dir, *fileName)
	store, err := buffer.NewFileBlockStore(*fileName,
		buffer.WithDirectory(*dir),
		buffer.WithBlockSize(*blockSize),
		buffer.WithBlockCount(*blockCount),
		buffer.WithCacheCapacity(*cacheCapacity),
	)
	if err != nil {
		log.Fatalf("opening block store: %v", err)
	}
	defer store.Close()

	index, err := btree.Attach(store, create, *keySize, *valueSize, bytes.Compare)
	if err != nil {
		log.Fatalf("attaching index: %v", err)
	}
	log.Printf("attached index (fresh=%v, keysize=%d, valuesize=%d)", create, *keySize, *valueSize)

	if *numInserts > 0 {
		runWorkload(index, *numInserts, *keySize, *valueSize)
	} else {
		log.Println("no workload specified (use -inserts)")
	}

	if err := index.SanityCheck(); err != nil {
		log.Printf("sanity check failed: %v", err)
	} else {
		log.Println("sanity check passed")
	}

	switch *displayMode {
	case "depth":
		must(index.Display(os.Stdout, btree.Depth))
	case "dot":
		must(index.Display(os.Stdout, btree.DepthDot))
	case "sorted":
		must(index.Display(os.Stdout, btree.SortedKeyVal))
	case "":
		// no display requested
	default:
		log.Printf("unknown -display mode %q (want depth, dot, or sorted)", *displayMode)
	}

	if _, err := index.Detach(); err != nil {
		log.Fatalf("detaching index: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	log.Println("demo complete; index detached and flushed.")
	select {
	case <-quit:
	default:
	}
}

// runWorkload inserts n faker-generated (key, value) pairs, padded/truncated
// to the index's fixed widths, stopping early on ErrNoSpace the same way a
// real caller must.
func runWorkload(index *btree.Index, n, keySize, valueSize int) {
	inserted := 0
	for i := 0; i < n; i++ {
		key := fixedWidth(faker.Username(), keySize)
		value := fixedWidth(faker.Sentence(), valueSize)
		if err := index.Insert(key, value); err != nil {
			if errors.Is(err, btree.ErrNoSpace) {
				log.Printf("workload stopped at insert %d/%d: %v", i, n, err)
				break
			}
			log.Printf("insert %d failed: %v", i, err)
			continue
		}
		inserted++
	}
	log.Printf("workload inserted %d/%d key/value pairs", inserted, n)
}

// fixedWidth truncates or zero-pads s to exactly width bytes, since the
// index requires every key and value to be a fixed size.
func fixedWidth(s string, width int) []byte {
	out := make([]byte, width)
	copy(out, s)
	return out
}

func isFreshFile(dir, name string) bool {
	_, err := os.Stat(dir + string(os.PathSeparator) + name)
	return os.IsNotExist(err)
}

func must(err error) {
	if err != nil {
		log.Fatalf("display: %v", err)
	}
}
