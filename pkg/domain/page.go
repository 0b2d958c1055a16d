package domain

import "sync"

// Page is a fixed-size unit of coherent memory.
//
// Tag and backing bytes are guarded by the page mutex. Callers of Tag, SetTag and
// Bytes must hold it; Snapshot takes it on its own.
type Page struct {
	Addr uint64

	mu   sync.Mutex
	tag  Tag
	data []byte
}

// NewPage creates an Invalid page over the given backing bytes.
func NewPage(addr uint64, backing []byte) *Page {
	return &Page{
		Addr: addr,
		tag:  TagInvalid,
		data: backing,
	}
}

// Lock acquires the page mutex.
func (p *Page) Lock() { p.mu.Lock() }

// Unlock releases the page mutex.
func (p *Page) Unlock() { p.mu.Unlock() }

// Tag returns the current coherence tag.
func (p *Page) Tag() Tag { return p.tag }

// SetTag replaces the tag and returns the previous one.
func (p *Page) SetTag(t Tag) Tag {
	prev := p.tag
	p.tag = t
	return prev
}

// Bytes returns the backing bytes. The slice aliases page memory.
func (p *Page) Bytes() []byte { return p.data }

// Size returns the page size in bytes.
func (p *Page) Size() int { return len(p.data) }

// Contains reports whether addr falls inside this page.
func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr < p.Addr+uint64(len(p.data))
}

// Snapshot returns a consistent view of the page metadata.
func (p *Page) Snapshot() PageInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PageInfo{
		Addr: p.Addr,
		Tag:  p.tag,
		Size: len(p.data),
	}
}

// PageInfo is a read-only view of a page used for inspection.
type PageInfo struct {
	Addr uint64 `json:"addr"`
	Tag  Tag    `json:"tag"`
	Size int    `json:"size"`
}

// FaultResult describes a completed local fault.
type FaultResult struct {
	Addr   uint64
	// NoData is set when the peer had no valid copy either; the page is then zero filled.
	NoData bool
	// Local is set when the page was already valid and no message was exchanged.
	Local  bool
	Kind   AccessKind
}
