package buffer

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
)

// Config holds the knobs a FileBlockStore is constructed with, built up
// with functional options.
type Config struct {
	Directory     string
	BlockSize     int
	BlockCount    int
	CacheCapacity int64
}

// Option configures a FileBlockStore at construction time.
type Option func(*Config)

// WithDirectory sets the directory the backing file is created in.
func WithDirectory(dir string) Option {
	return func(c *Config) { c.Directory = dir }
}

// WithBlockSize sets the fixed size, in bytes, of every block.
func WithBlockSize(n int) Option {
	return func(c *Config) { c.BlockSize = n }
}

// WithBlockCount sets the fixed number of addressable blocks.
func WithBlockCount(n int) Option {
	return func(c *Config) { c.BlockCount = n }
}

// WithCacheCapacity sets the ristretto cost budget for the hot-block cache.
// Cost is counted in bytes, so this is roughly the cache's byte footprint.
func WithCacheCapacity(n int64) Option {
	return func(c *Config) { c.CacheCapacity = n }
}

// FileBlockStore is a reference BlockStore backed by a single flat file,
// with a ristretto-backed read cache in front of it and an xxhash checksum
// guarding every cached block against a truncated or bit-rotted backing
// file. It is not part of the index's CORE; it exists so the index has
// something real to run its own tests and demo command against.
type FileBlockStore struct {
	cfg  Config
	file *os.File

	cache *ristretto.Cache[uint64, cachedBlock]

	mu         sync.Mutex
	checksums  map[uint64]uint64
	allocCount int
}

type cachedBlock struct {
	data     []byte
	checksum uint64
}

// NewFileBlockStore opens name under cfg.Directory, creating and
// zero-filling it to cfg.BlockSize*cfg.BlockCount bytes if it does not
// already exist.
func NewFileBlockStore(name string, opts ...Option) (*FileBlockStore, error) {
	cfg := Config{
		Directory:     ".",
		BlockSize:     4096,
		BlockCount:    1024,
		CacheCapacity: 32 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BlockSize <= 0 || cfg.BlockCount <= 0 {
		return nil, fmt.Errorf("buffer: block size and block count must be positive (got %d, %d)", cfg.BlockSize, cfg.BlockCount)
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("buffer: creating directory %q: %w", cfg.Directory, err)
	}

	path := cfg.Directory + string(os.PathSeparator) + name
	wantSize := int64(cfg.BlockSize) * int64(cfg.BlockCount)

	created := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		created = true
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("buffer: opening %q: %w", path, err)
	}
	if created {
		if err := f.Truncate(wantSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("buffer: sizing %q to %d bytes: %w", path, wantSize, err)
		}
		log.Printf("buffer: created %q (%d blocks x %d bytes)", path, cfg.BlockCount, cfg.BlockSize)
	} else {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("buffer: stat %q: %w", path, err)
		}
		if info.Size() != wantSize {
			f.Close()
			return nil, fmt.Errorf("buffer: %q is %d bytes, want %d for %d blocks of %d bytes",
				path, info.Size(), wantSize, cfg.BlockCount, cfg.BlockSize)
		}
		log.Printf("buffer: opened existing %q (%d blocks x %d bytes)", path, cfg.BlockCount, cfg.BlockSize)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint64, cachedBlock]{
		NumCounters: int64(cfg.BlockCount) * 10,
		MaxCost:     cfg.CacheCapacity,
		BufferItems: 64,
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("buffer: constructing cache: %w", err)
	}

	return &FileBlockStore{
		cfg:       cfg,
		file:      f,
		cache:     cache,
		checksums: make(map[uint64]uint64),
	}, nil
}

// Close flushes the cache and closes the backing file.
func (s *FileBlockStore) Close() error {
	s.cache.Close()
	return s.file.Close()
}

func (s *FileBlockStore) BlockSize() int  { return s.cfg.BlockSize }
func (s *FileBlockStore) BlockCount() int { return s.cfg.BlockCount }

func (s *FileBlockStore) checkRange(index uint64) error {
	if index >= uint64(s.cfg.BlockCount) {
		return fmt.Errorf("%w: index %d, count %d", ErrOutOfRange, index, s.cfg.BlockCount)
	}
	return nil
}

// ReadBlock returns a copy of the bytes at index, serving from the cache
// when possible and verifying the stored checksum on every cache hit. A disk
// read is verified only for a block this store has written since it was
// opened; checksums are kept in memory and are not persisted.
func (s *FileBlockStore) ReadBlock(index uint64) ([]byte, error) {
	if err := s.checkRange(index); err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(index); ok {
		if xxhash.Sum64(cached.data) != cached.checksum {
			return nil, fmt.Errorf("block %d: %w", index, ErrCorrupt)
		}
		out := make([]byte, len(cached.data))
		copy(out, cached.data)
		return out, nil
	}

	buf := make([]byte, s.cfg.BlockSize)
	off := int64(index) * int64(s.cfg.BlockSize)
	if _, err := s.file.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("buffer: reading block %d: %w", index, err)
	}

	s.mu.Lock()
	want, have := s.checksums[index]
	s.mu.Unlock()
	sum := xxhash.Sum64(buf)
	if have && sum != want {
		return nil, fmt.Errorf("block %d: %w", index, ErrCorrupt)
	}

	s.cache.Set(index, cachedBlock{data: buf, checksum: sum}, int64(len(buf)))
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// WriteBlock overwrites the bytes at index, on disk and in the cache.
func (s *FileBlockStore) WriteBlock(index uint64, data []byte) error {
	if err := s.checkRange(index); err != nil {
		return err
	}
	if len(data) != s.cfg.BlockSize {
		return fmt.Errorf("buffer: write to block %d is %d bytes, want %d", index, len(data), s.cfg.BlockSize)
	}

	off := int64(index) * int64(s.cfg.BlockSize)
	if _, err := s.file.WriteAt(data, off); err != nil {
		return fmt.Errorf("buffer: writing block %d: %w", index, err)
	}

	sum := xxhash.Sum64(data)
	s.mu.Lock()
	s.checksums[index] = sum
	s.mu.Unlock()

	cached := make([]byte, len(data))
	copy(cached, data)
	s.cache.Set(index, cachedBlock{data: cached, checksum: sum}, int64(len(cached)))
	return nil
}

// NotifyAllocate logs the block leaving the free-list. The reference store
// has no eviction policy that depends on allocation state, so this is
// observational only.
func (s *FileBlockStore) NotifyAllocate(index uint64) {
	s.mu.Lock()
	s.allocCount++
	count := s.allocCount
	s.mu.Unlock()
	log.Printf("buffer: block %d allocated (%d blocks allocated total)", index, count)
}

// NotifyDeallocate logs the block returning to the free-list.
func (s *FileBlockStore) NotifyDeallocate(index uint64) {
	s.mu.Lock()
	s.allocCount--
	count := s.allocCount
	s.mu.Unlock()
	log.Printf("buffer: block %d deallocated (%d blocks allocated total)", index, count)
}
