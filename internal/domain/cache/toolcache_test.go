package cache

import (
	"testing"
	"time"
)

func newTestToolCache() *ToolResultCache {
	return NewToolResultCache(5*time.Second, 100, []string{"read_file", "glob"})
}

func TestToolCache_AllowListOnly(t *testing.T) {
	c := newTestToolCache()

	c.Put("bash", map[string]any{"command": "ls"}, "out", false, nil)
	if _, _, hit := c.Get("bash", map[string]any{"command": "ls"}); hit {
		t.Fatal("non-allow-listed tool must never cache")
	}

	c.Put("read_file", map[string]any{"path": "/a"}, "content", false, []string{"/a"})
	out, isErr, hit := c.Get("read_file", map[string]any{"path": "/a"})
	if !hit || out != "content" || isErr {
		t.Fatalf("expected hit with content, got %q isErr=%v hit=%v", out, isErr, hit)
	}
}

func TestToolCache_InvalidateForFile(t *testing.T) {
	c := newTestToolCache()
	c.Put("read_file", map[string]any{"path": "/src/a.go"}, "a", false, []string{"/src/a.go"})
	c.Put("read_file", map[string]any{"path": "/src/b.go"}, "b", false, []string{"/src/b.go"})

	c.InvalidateForFile("/src/a.go")

	if _, _, hit := c.Get("read_file", map[string]any{"path": "/src/a.go"}); hit {
		t.Fatal("entry for invalidated path must be gone")
	}
	if _, _, hit := c.Get("read_file", map[string]any{"path": "/src/b.go"}); !hit {
		t.Fatal("unrelated entry must survive")
	}
}

func TestToolCache_InvalidateDirectoryScope(t *testing.T) {
	c := newTestToolCache()
	// A glob over /src touched the directory itself.
	c.Put("glob", map[string]any{"pattern": "/src/*.go"}, "a.go\nb.go", false, []string{"/src"})

	// Writing a file under /src invalidates the glob whose involved path
	// is an ancestor of the written file.
	c.InvalidateForFile("/src/new.go")

	if _, _, hit := c.Get("glob", map[string]any{"pattern": "/src/*.go"}); hit {
		t.Fatal("directory-scoped entry must be invalidated by a write underneath it")
	}
}

func TestToolCache_SizeEvictionOldestFirst(t *testing.T) {
	c := NewToolResultCache(5*time.Second, 2, []string{"read_file"})
	c.Put("read_file", map[string]any{"path": "1"}, "1", false, nil)
	c.Put("read_file", map[string]any{"path": "2"}, "2", false, nil)
	c.Put("read_file", map[string]any{"path": "3"}, "3", false, nil)

	if c.Size() != 2 {
		t.Fatalf("expected bounded size 2, got %d", c.Size())
	}
	if _, _, hit := c.Get("read_file", map[string]any{"path": "1"}); hit {
		t.Fatal("oldest entry must be evicted first")
	}
}

func TestMcpCache_HitMissExpiry(t *testing.T) {
	c := NewMcpCache(20*time.Millisecond, 2)

	c.Put("srv", []McpToolDef{{Name: "a"}})
	if _, ok := c.Get("srv"); !ok {
		t.Fatal("expected hit")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("srv"); ok {
		t.Fatal("expected expiry miss")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("expected hits=1 misses=1, got %d/%d", hits, misses)
	}
}

func TestMcpCache_MaxServersEviction(t *testing.T) {
	c := NewMcpCache(time.Minute, 2)
	c.Put("a", nil)
	c.Put("b", nil)
	c.Put("c", nil)

	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest server must be evicted at capacity")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("newest server must remain")
	}
}
