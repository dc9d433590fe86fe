package context

import (
	"strings"
	"testing"
)

func TestCompactor_BelowThresholdVerbatim(t *testing.T) {
	c := NewCompactor(100, 10)

	text, id := c.CompactFile("/tmp/a.txt", "short")
	if text != "short" || id != nil {
		t.Fatalf("below-threshold content must pass through verbatim, got %q id=%v", text, id)
	}
	if c.Len() != 0 {
		t.Fatal("below-threshold compaction must have no side effect")
	}
}

func TestCompactor_RestoreRoundTrip(t *testing.T) {
	c := NewCompactor(100, 10)
	content := strings.Repeat("x", 500)

	ref, id := c.CompactFile("/tmp/big.txt", content)
	if id == nil {
		t.Fatal("expected a content id")
	}
	if !strings.Contains(ref, "/tmp/big.txt") {
		t.Fatalf("reference should name the path: %q", ref)
	}

	entry, ok := c.Restore(*id)
	if !ok {
		t.Fatal("restore must succeed before eviction")
	}
	if entry.Content != content {
		t.Fatal("restored content must equal original")
	}
	if entry.Type != ContentFile || entry.Path != "/tmp/big.txt" {
		t.Fatalf("unexpected entry metadata: %+v", entry)
	}
}

func TestCompactor_ToolOutputPreview(t *testing.T) {
	c := NewCompactor(100, 10)
	output := strings.Repeat("y", 400)

	ref, id := c.CompactToolOutput("bash", output)
	if id == nil {
		t.Fatal("expected a content id")
	}
	if !strings.HasPrefix(ref, "[bash output (400 bytes)]") {
		t.Fatalf("reference should carry tool and size: %q", ref)
	}
	if !strings.Contains(ref, output[:200]) {
		t.Fatal("reference should carry a preview")
	}
}

func TestCompactor_FIFOEviction(t *testing.T) {
	c := NewCompactor(10, 3)

	var ids []ContentId
	for i := 0; i < 5; i++ {
		_, id := c.CompactToolOutput("bash", strings.Repeat("z", 20))
		ids = append(ids, *id)
	}

	if c.Len() != 3 {
		t.Fatalf("expected storage bounded at 3, got %d", c.Len())
	}
	// Oldest two are gone, newest three remain.
	for i, id := range ids {
		_, ok := c.Restore(id)
		if i < 2 && ok {
			t.Fatalf("entry %d should have been evicted first (FIFO)", i)
		}
		if i >= 2 && !ok {
			t.Fatalf("entry %d should still be restorable", i)
		}
	}
}
