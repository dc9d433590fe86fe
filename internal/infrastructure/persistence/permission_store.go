package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/permission"
)

// grantRecord is the on-disk shape of one permanent grant.
type grantRecord struct {
	ToolName string `json:"tool_name"`
	Arg      string `json:"arg"`
}

// PermissionStore persists permanent permission grants to a JSON file
// and hot-reloads it on external changes via fsnotify, so another
// process editing the file takes effect without a restart.
type PermissionStore struct {
	mu       sync.Mutex
	path     string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	onReload func([]grantRecord)
}

func NewPermissionStore(path string, logger *zap.Logger) *PermissionStore {
	return &PermissionStore{path: path, logger: logger}
}

// Load reads the grant file (if present) and applies every record to
// engine via LoadPersistentGrant. A missing file is not an error — it
// means no grants have been persisted yet.
func (s *PermissionStore) Load(engine *permission.Engine) error {
	records, err := s.read()
	if err != nil {
		return err
	}
	for _, r := range records {
		engine.LoadPersistentGrant(r.ToolName, r.Arg)
	}
	return nil
}

func (s *PermissionStore) read() ([]grantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []grantRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Persist appends one grant to the file, writing the whole file back
// atomically (write to a temp file, then rename) so a crash mid-write
// never leaves a truncated grant file behind.
func (s *PermissionStore) Persist(toolName, arg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	var records []grantRecord
	if err == nil {
		_ = json.Unmarshal(data, &records)
	}
	for _, r := range records {
		if r.ToolName == toolName && r.Arg == arg {
			return nil
		}
	}
	records = append(records, grantRecord{ToolName: toolName, Arg: arg})

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Watch starts an fsnotify watch on the grant file's directory and,
// whenever the file is written or created, re-reads it and loads every
// record into engine via LoadPersistentGrant — grants added by another
// process (or the CLI's `grant` subcommand) take effect without a
// restart. Records removed from the file are not revoked in engine.
// The returned stop function closes the watcher; callers must call it
// on shutdown.
func (s *PermissionStore) Watch(engine *permission.Engine) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				records, err := s.read()
				if err != nil {
					s.logger.Warn("permission grant file reload failed", zap.Error(err))
					continue
				}
				for _, r := range records {
					engine.LoadPersistentGrant(r.ToolName, r.Arg)
				}
				s.logger.Info("reloaded permission grants", zap.Int("count", len(records)))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("permission watcher error", zap.Error(err))
			}
		}
	}()

	return watcher.Close, nil
}
