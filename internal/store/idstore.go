// Package store persists the bridge's small key-value state: the short-id →
// native-id message mapping and the group → chat-id mapping. Both live in
// plain JSON files that stay human-editable.
package store

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/flemzord/ircgram/pkg/message"
)

// MessageStore maps relay-assigned short ids to the originating protocol's
// native message ids, and keeps an in-memory append-only log of every
// message relayed this session.
//
// The mapping is best-effort reply context, not transactional state: it is
// flushed on a fixed schedule rather than on every write, so a crash loses
// at most one interval of new mappings. That degrades reply snippets and
// nothing else.
type MessageStore struct {
	mu    sync.Mutex
	path  string
	ids   map[string]string
	dirty bool
	log   []*message.Message

	logger *slog.Logger
}

// OpenMessageStore loads the mapping from path. A missing or corrupt file is
// not fatal; it is treated as no prior state.
func OpenMessageStore(path string, logger *slog.Logger) *MessageStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MessageStore{
		path:   path,
		ids:    make(map[string]string),
		logger: logger.With("component", "store"),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// first run
	case err != nil:
		s.logger.Warn("message id file unreadable, starting empty", "path", path, "error", err)
	default:
		if err := json.Unmarshal(raw, &s.ids); err != nil {
			s.logger.Warn("message id file corrupt, starting empty", "path", path, "error", err)
			s.ids = make(map[string]string)
		}
	}
	return s
}

// ComputeID derives the deterministic 4-hex-char short id for a message from
// its canonical fields. Recomputing for the same logical message always
// yields the same id. Collisions across the 65536 buckets are a cosmetic
// risk and deliberately not disambiguated.
func (s *MessageStore) ComputeID(msg *message.Message) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s",
		msg.Protocol, msg.Channel.IRCChan, msg.User, msg.Text, msg.NativeID)
	return hex.EncodeToString(h.Sum(nil)[:2])
}

// Record stores a short id → native id mapping. Re-recording the same pair
// is a no-op; a different native id for an existing short id overwrites it.
func (s *MessageStore) Record(shortID, nativeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[shortID] == nativeID {
		return
	}
	s.ids[shortID] = nativeID
	s.dirty = true
}

// Resolve returns the native id recorded for a short id.
func (s *MessageStore) Resolve(shortID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[shortID]
	return id, ok
}

// Append adds a message to the in-memory relay log.
func (s *MessageStore) Append(msg *message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, msg)
}

// Messages returns a snapshot of the relay log.
func (s *MessageStore) Messages() []*message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*message.Message, len(s.log))
	copy(out, s.log)
	return out
}

// Flush writes the mapping to disk when it changed since the last flush.
// The write goes through a temp file and rename, so a crash mid-write leaves
// either the previous file or the new one, never a torn file.
func (s *MessageStore) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snapshot := make(map[string]string, len(s.ids))
	for k, v := range s.ids {
		snapshot[k] = v
	}
	s.dirty = false
	s.mu.Unlock()

	if err := writeJSONAtomic(s.path, snapshot); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return fmt.Errorf("store: flush message ids: %w", err)
	}
	return nil
}

// writeJSONAtomic marshals v with indentation (the files are meant to be
// human-editable) and renames it into place.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
