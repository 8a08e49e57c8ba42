package emu

// PageSize is the allocation granule of PagedMemory in bytes.
const PageSize = 4096

const (
	pageShift    = 12
	wordsPerPage = PageSize / WordSize
)

// PagedMemory is a sparse memory that allocates 4 KiB pages of words on
// first write. Unwritten pages read as zero. The capacity bounds the
// address space exactly as FlatMemory does.
type PagedMemory struct {
	pages    map[uint64][]uint64
	numWords uint64
}

// NewPagedMemory creates a sparse memory with a capacity of at least size
// bytes.
func NewPagedMemory(size uint64) *PagedMemory {
	return &PagedMemory{
		pages:    make(map[uint64][]uint64),
		numWords: (size + WordSize - 1) / WordSize,
	}
}

// Size returns the capacity in bytes.
func (m *PagedMemory) Size() uint64 {
	return m.numWords * WordSize
}

// PageCount returns the number of pages allocated so far.
func (m *PagedMemory) PageCount() int {
	return len(m.pages)
}

func pageOf(index uint64) (uint64, uint64) {
	return index / wordsPerPage, index % wordsPerPage
}

// Read implements Memory.
func (m *PagedMemory) Read(addr uint64, size int) (uint64, error) {
	index, shift, mask, err := checkAccess("read", addr, size, m.numWords)
	if err != nil {
		return 0, err
	}

	page, slot := pageOf(index)
	words, ok := m.pages[page]
	if !ok {
		return 0, nil
	}
	return (words[slot] >> shift) & mask, nil
}

// Write implements Memory.
func (m *PagedMemory) Write(addr uint64, size int, value uint64) error {
	index, shift, mask, err := checkAccess("write", addr, size, m.numWords)
	if err != nil {
		return err
	}

	page, slot := pageOf(index)
	words, ok := m.pages[page]
	if !ok {
		words = make([]uint64, wordsPerPage)
		m.pages[page] = words
	}
	words[slot] = words[slot]&^(mask<<shift) | (value&mask)<<shift
	return nil
}
