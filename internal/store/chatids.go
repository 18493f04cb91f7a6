package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ChatIDStore persists the Telegram group title → numeric chat id mapping in
// chatids.json under the state directory. Chat ids are discovered from
// inbound traffic because the Bot API offers no title lookup; once learned
// they survive restarts so the bridge can speak first after a restart.
type ChatIDStore struct {
	mu    sync.Mutex
	dir   string
	path  string
	ids   map[string]int64
	dirty bool

	logger *slog.Logger
}

// OpenChatIDStore loads chatids.json from dir. Legacy per-group
// "<group>.chatid" files from older deployments are folded into the combined
// file the first time they are seen, then removed.
func OpenChatIDStore(dir string, logger *slog.Logger) (*ChatIDStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create state dir: %w", err)
	}
	s := &ChatIDStore{
		dir:    dir,
		path:   filepath.Join(dir, "chatids.json"),
		ids:    make(map[string]int64),
		logger: logger.With("component", "store"),
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("store: read chat ids: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.ids); err != nil {
			s.logger.Warn("chat id file corrupt, starting empty", "path", s.path, "error", err)
			s.ids = make(map[string]int64)
		}
	}

	s.migrateLegacy()
	return s, nil
}

// migrateLegacy imports "<group>.chatid" files left behind by earlier
// versions that kept one file per group.
func (s *ChatIDStore) migrateLegacy() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".chatid") {
			continue
		}
		group := strings.TrimSuffix(name, ".chatid")
		full := filepath.Join(s.dir, name)
		raw, err := os.ReadFile(full)
		if err != nil {
			s.logger.Warn("legacy chat id file unreadable", "path", full, "error", err)
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			s.logger.Warn("legacy chat id file malformed", "path", full, "error", err)
			continue
		}
		if _, exists := s.ids[group]; !exists {
			s.ids[group] = id
			s.dirty = true
			s.logger.Info("migrated legacy chat id", "group", group, "chat_id", id)
		}
		if err := os.Remove(full); err != nil {
			s.logger.Warn("could not remove legacy chat id file", "path", full, "error", err)
		}
	}
	if s.dirty {
		if err := s.flushLocked(); err != nil {
			s.logger.Warn("could not persist migrated chat ids", "error", err)
		}
	}
}

// Lookup returns the stored chat id for a group title.
func (s *ChatIDStore) Lookup(group string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[group]
	return id, ok
}

// Set records a chat id for a group and persists immediately. Discovery is
// rare (first contact, or a supergroup migration), so the extra write is
// cheap and losing a learned id to a crash would mean waiting for the group
// to speak again.
func (s *ChatIDStore) Set(group string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[group] == id {
		return nil
	}
	s.ids[group] = id
	s.dirty = true
	return s.flushLocked()
}

// Flush persists pending changes, if any.
func (s *ChatIDStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.flushLocked()
}

func (s *ChatIDStore) flushLocked() error {
	if err := writeJSONAtomic(s.path, s.ids); err != nil {
		return fmt.Errorf("store: flush chat ids: %w", err)
	}
	s.dirty = false
	return nil
}
