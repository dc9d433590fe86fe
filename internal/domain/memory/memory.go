// Package memory is the write-behind session log: when the context
// manager condenses history, the condensed-away knowledge is appended
// to a per-day file so it survives the context window even though the
// conversation no longer carries it.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EntryKind tags what produced a log entry.
type EntryKind string

const (
	KindSummary    EntryKind = "summary"    // head-of-history condensation
	KindRunOutcome EntryKind = "run"        // a completed agent run
	KindNote       EntryKind = "note"       // explicit caller note
)

// Writer appends entries to daily markdown files under its root
// directory. Writes are serialized and best-effort: a failed append is
// logged and dropped, never surfaced into the agent loop.
type Writer struct {
	mu     sync.Mutex
	root   string
	now    func() time.Time
	logger *zap.Logger
}

func NewWriter(root string, logger *zap.Logger) *Writer {
	return &Writer{root: root, now: time.Now, logger: logger.With(zap.String("component", "memory"))}
}

// Append records one entry in today's file.
func (w *Writer) Append(kind EntryKind, sessionID, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	path := filepath.Join(w.root, now.Format("2006-01-02")+".md")
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		w.logger.Warn("memory dir create failed", zap.Error(err))
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		w.logger.Warn("memory file open failed", zap.Error(err))
		return
	}
	defer f.Close()

	entry := fmt.Sprintf("## %s [%s] session=%s\n\n%s\n\n", now.Format("15:04:05"), kind, sessionID, content)
	if _, err := f.WriteString(entry); err != nil {
		w.logger.Warn("memory append failed", zap.Error(err))
	}
}

// ReadDay returns the raw contents of one day's file (empty if none).
func (w *Writer) ReadDay(day time.Time) string {
	data, err := os.ReadFile(filepath.Join(w.root, day.Format("2006-01-02")+".md"))
	if err != nil {
		return ""
	}
	return string(data)
}
