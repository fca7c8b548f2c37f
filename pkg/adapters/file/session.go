// Package file stores flows and sessions on the local filesystem: flows as
// YAML documents in a directory, sessions as one JSON file per chat.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/ramal/pkg/domain"
)

// ErrInvalidChatID is returned for chat IDs that cannot be used as a file name.
var ErrInvalidChatID = errors.New("invalid chat id")

// SessionStore implements ports.SessionStore with JSON files.
type SessionStore struct {
	BasePath string
}

// NewSessionStore creates a store rooted at basePath
// (default ".ramal/sessions").
func NewSessionStore(basePath string) *SessionStore {
	if basePath == "" {
		basePath = filepath.Join(".ramal", "sessions")
	}
	return &SessionStore{BasePath: basePath}
}

func (s *SessionStore) path(chatID string) (string, error) {
	if chatID == "" || strings.ContainsAny(chatID, `/\`) || chatID == "." || chatID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
	}
	return filepath.Join(s.BasePath, chatID+".json"), nil
}

// Save writes the session atomically: temp file, fsync, rename.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	dest, err := s.path(session.ChatID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return writeAtomic(s.BasePath, dest, data)
}

// Load reads the session of a chat.
func (s *SessionStore) Load(ctx context.Context, chatID string) (*domain.Session, error) {
	p, err := s.path(chatID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", chatID, err)
	}
	return &session, nil
}

// Delete removes the session file.
func (s *SessionStore) Delete(ctx context.Context, chatID string) error {
	p, err := s.path(chatID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete session file: %w", err)
	}
	return nil
}

// List returns the chat IDs with a session file, sorted.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	chats := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		chats = append(chats, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(chats)
	return chats, nil
}

func writeAtomic(dir, dest string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "tmp-*"+filepath.Ext(dest))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
