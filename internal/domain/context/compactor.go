// Package context implements the three orthogonal context-shrinking
// techniques: observation masking, content compaction, and
// summarization.
package context

import (
	"crypto/rand"
	"fmt"
	"sync"
)

// ContentId is an opaque 128-bit identifier for a compacted content
// blob. Created inside the Compactor; outlives individual messages.
type ContentId [16]byte

func (id ContentId) String() string {
	return fmt.Sprintf("%x", [16]byte(id))
}

func newContentId() ContentId {
	var id ContentId
	// crypto/rand never errors on a fixed-size read in practice; a zero
	// ContentId would collide silently, so treat failure as fatal to the
	// caller's expectations rather than returning a degraded id.
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("compactor: generating content id: %v", err))
	}
	return id
}

// ContentType tags what kind of blob a CompactedEntry holds.
type ContentType int

const (
	ContentGeneric ContentType = iota
	ContentFile
	ContentToolResult
)

// CompactedEntry is one stored blob.
type CompactedEntry struct {
	Content   string
	Type      ContentType
	Path      string // set when Type == ContentFile
	ToolName  string // set when Type == ContentToolResult
	CreatedAt int64  // monotonic insertion counter, not wall time
}

// CompactResult is what Compact returns to the caller: a short textual
// reference to put in the message history, and the id to restore the
// full content later.
type CompactResult struct {
	Reference string
	ID        ContentId
}

// Compactor is an arena-like store for large content blobs, indexed by
// ContentId, with FIFO eviction once capacity is reached. Keys never
// dangle while the compactor lives, except once evicted.
type Compactor struct {
	mu        sync.Mutex
	threshold int
	capacity  int
	storage   map[ContentId]CompactedEntry
	order     []ContentId
	seq       int64
}

func NewCompactor(threshold, capacity int) *Compactor {
	return &Compactor{
		threshold: threshold,
		capacity:  capacity,
		storage:   make(map[ContentId]CompactedEntry),
	}
}

// CompactFile compacts file content if it exceeds the threshold; below
// threshold, returns the content verbatim with a nil id (no side
// effect).
func (c *Compactor) CompactFile(path, content string) (string, *ContentId) {
	if len(content) < c.threshold {
		return content, nil
	}
	id := c.store(CompactedEntry{Content: content, Type: ContentFile, Path: path})
	ref := fmt.Sprintf("[File: %s (%d bytes) - use Read tool to view full content]", path, len(content))
	return ref, &id
}

// CompactToolOutput compacts tool output if it exceeds the threshold,
// keeping a short preview in the reference text.
func (c *Compactor) CompactToolOutput(toolName, output string) (string, *ContentId) {
	if len(output) < c.threshold {
		return output, nil
	}
	id := c.store(CompactedEntry{Content: output, Type: ContentToolResult, ToolName: toolName})
	preview := output
	const previewLen = 200
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	ref := fmt.Sprintf("[%s output (%d bytes)]\n%s...", toolName, len(output), preview)
	return ref, &id
}

func (c *Compactor) store(entry CompactedEntry) ContentId {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := newContentId()
	c.seq++
	entry.CreatedAt = c.seq
	c.storage[id] = entry
	c.order = append(c.order, id)

	for len(c.storage) > c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.storage, oldest)
	}
	return id
}

// Restore returns the original content for id, or false if id was never
// stored or has since been evicted. Callers must tolerate a false return
// — eviction invalidates keys.
func (c *Compactor) Restore(id ContentId) (CompactedEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.storage[id]
	return entry, ok
}

func (c *Compactor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.storage)
}
