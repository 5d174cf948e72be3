package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/onwardjourney/agent/internal/knowledge"
	logx "github.com/onwardjourney/agent/pkg/logger"
)

// JSONStore is a Store with file-backed persistence. Writes are batched:
// nothing touches disk until Flush or Close is called.
type JSONStore struct {
	*Store
	path string
}

func NewJSONStore(embedder knowledge.Embedder, path string, maxItemsPerSession int) (*JSONStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir %s: %w", dir, err)
	}
	js := &JSONStore{Store: NewStore(embedder, maxItemsPerSession), path: path}
	if err := js.load(); err != nil {
		return nil, err
	}
	return js, nil
}

func (s *JSONStore) load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read memory file %s: %w", s.path, err)
	}
	var items []Item
	if err := json.Unmarshal(b, &items); err != nil {
		logx.Warn().Err(err).Str("path", s.path).Msg("ignoring corrupt memory file")
		return nil
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// Flush writes the current items to disk if anything changed since the last
// flush. The file is replaced atomically via a temp file rename.
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	items := make([]Item, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal memory items: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace memory file: %w", err)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	logx.Debug().Str("path", s.path).Int("items", len(items)).Msg("memory flushed")
	return nil
}

// Close flushes any pending changes. The store must not be used afterwards.
func (s *JSONStore) Close() error {
	return s.Flush()
}
