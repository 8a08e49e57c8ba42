// Package cache provides a set-associative data cache model built on
// Akita cache components.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size" yaml:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity" yaml:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size" yaml:"block_size"`
	// HitLatency in cycles
	HitLatency uint64 `json:"hit_latency" yaml:"hit_latency"`
	// MissLatency in cycles (includes the memory access)
	MissLatency uint64 `json:"miss_latency" yaml:"miss_latency"`
}

// DefaultL1DConfig returns the default L1 data cache: 8 KiB, 4-way,
// 32-byte lines.
func DefaultL1DConfig() Config {
	return Config{
		Size:          8 * 1024,
		Associativity: 4,
		BlockSize:     32,
		HitLatency:    3,
		MissLatency:   50,
	}
}

// Validate checks that the geometry describes at least one set of
// power-of-two lines no smaller than a doubleword.
func (c Config) Validate() error {
	if c.BlockSize < 8 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("block_size must be a power of two >= 8, got %d", c.BlockSize)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be > 0")
	}
	if c.Size <= 0 || c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("size must be a positive multiple of associativity*block_size")
	}
	if c.HitLatency == 0 || c.MissLatency < c.HitLatency {
		return fmt.Errorf("need 0 < hit_latency <= miss_latency")
	}
	return nil
}

// NumSets returns the number of sets the geometry implies.
func (c Config) NumSets() int {
	return c.Size / (c.Associativity * c.BlockSize)
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Data is the data read (for load operations).
	Data uint64
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint64
}

// StoreForwardLatency is the extra latency (in cycles) of a load that
// reads the address written by the immediately preceding store.
const StoreForwardLatency uint64 = 1

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns hits over accesses, or 0 before the first access.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// BackingStore is the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches size bytes starting at addr.
	Read(addr uint64, size int) ([]byte, error)
	// Write stores data starting at addr.
	Write(addr uint64, data []byte) error
}

// Cache is a write-back, write-allocate cache. Akita's directory tracks
// tags, validity, dirtiness and LRU order; line data lives in dataStore.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl

	// Line data, indexed by setID*associativity + wayID.
	dataStore [][]byte

	stats   Statistics
	backing BackingStore

	lastStoreAddr  uint64
	lastStoreValid bool
}

// New creates a new cache. A nil backing store makes every fill read
// zeros and drops write-backs.
func New(config Config, backing BackingStore) *Cache {
	totalBlocks := config.NumSets() * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.NumSets(),
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return addr &^ uint64(c.config.BlockSize-1)
}

func (c *Cache) blockData(block *akitacache.Block) []byte {
	return c.dataStore[block.SetID*c.config.Associativity+block.WayID]
}

// lookup returns the valid block holding addr, or nil.
func (c *Cache) lookup(addr uint64) *akitacache.Block {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block == nil || !block.IsValid {
		return nil
	}
	return block
}

// Contains reports whether the line holding addr is cached.
func (c *Cache) Contains(addr uint64) bool {
	return c.lookup(addr) != nil
}

// Read performs a cache read of size bytes at addr.
func (c *Cache) Read(addr uint64, size int) (AccessResult, error) {
	c.stats.Reads++

	block := c.lookup(addr)
	result := AccessResult{Hit: block != nil, Latency: c.config.HitLatency}
	if block == nil {
		c.stats.Misses++
		var err error
		block, err = c.fill(addr, &result)
		if err != nil {
			return result, err
		}
	} else {
		c.stats.Hits++
		if c.lastStoreValid && c.lastStoreAddr == addr {
			result.Latency += StoreForwardLatency
		}
	}

	c.lastStoreValid = false
	c.directory.Visit(block)
	result.Data = extractData(c.blockData(block), addr%uint64(c.config.BlockSize), size)

	return result, nil
}

// Write performs a cache write of the low size bytes of data at addr.
func (c *Cache) Write(addr uint64, size int, data uint64) (AccessResult, error) {
	c.stats.Writes++

	block := c.lookup(addr)
	result := AccessResult{Hit: block != nil, Latency: c.config.HitLatency}
	if block == nil {
		c.stats.Misses++
		var err error
		block, err = c.fill(addr, &result)
		if err != nil {
			return result, err
		}
	} else {
		c.stats.Hits++
	}

	c.lastStoreAddr = addr
	c.lastStoreValid = true
	c.directory.Visit(block)
	storeData(c.blockData(block), addr%uint64(c.config.BlockSize), size, data)
	block.IsDirty = true

	return result, nil
}

// fill replaces a victim with the line holding addr.
func (c *Cache) fill(addr uint64, result *AccessResult) (*akitacache.Block, error) {
	result.Latency = c.config.MissLatency
	blockAddr := c.blockAddr(addr)

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return nil, fmt.Errorf("no victim for block 0x%X", blockAddr)
	}
	data := c.blockData(victim)

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag

		if err := c.writeBack(victim); err != nil {
			return nil, err
		}
	}

	if c.backing != nil {
		fetched, err := c.backing.Read(blockAddr, c.config.BlockSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fill block 0x%X: %w", blockAddr, err)
		}
		copy(data, fetched)
	} else {
		clear(data)
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false

	return victim, nil
}

func (c *Cache) writeBack(block *akitacache.Block) error {
	if !block.IsDirty || c.backing == nil {
		return nil
	}
	c.stats.Writebacks++
	if err := c.backing.Write(block.Tag, c.blockData(block)); err != nil {
		return fmt.Errorf("failed to write back block 0x%X: %w", block.Tag, err)
	}
	return nil
}

// Invalidate drops the line holding addr without writing it back.
func (c *Cache) Invalidate(addr uint64) {
	if block := c.lookup(addr); block != nil {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back all dirty lines and invalidates every line. It stops
// at the first write-back error.
func (c *Cache) Flush() error {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				if err := c.writeBack(block); err != nil {
					return err
				}
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
	return nil
}

// Reset invalidates all lines without write-back and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
	c.lastStoreValid = false
	c.lastStoreAddr = 0
}

// extractData reads a little-endian value of size bytes at offset.
func extractData(data []byte, offset uint64, size int) uint64 {
	if int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData writes the low size bytes of value at offset, little-endian.
func storeData(data []byte, offset uint64, size int, value uint64) {
	if int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
