package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"agendaaberta/internal/model"
)

// TokenStore is durable key/value storage for the token pair. It must
// survive process restarts.
type TokenStore interface {
	// Load returns the stored pair and whether one was present.
	Load() (model.Tokens, bool, error)
	Save(model.Tokens) error
	Clear() error
}

// persisted is the on-disk shape; the key names are fixed.
type persisted struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// FileStore keeps tokens in a JSON file with 0600 permissions.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path. The file is created on first
// Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (model.Tokens, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Tokens{}, false, nil
		}
		return model.Tokens{}, false, fmt.Errorf("read token file %s: %w", s.path, err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Tokens{}, false, fmt.Errorf("decode token file %s: %w", s.path, err)
	}
	tokens := model.Tokens{Access: p.AccessToken, Refresh: p.RefreshToken}
	return tokens, !tokens.Empty(), nil
}

// Save writes atomically via a temp file + rename.
func (s *FileStore) Save(tokens model.Tokens) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir %s: %w", dir, err)
	}

	payload, err := json.MarshalIndent(persisted{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	payload = append(payload, '\n')

	tmp, err := os.CreateTemp(dir, ".agendaaberta-tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace token file %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the token file. A missing file is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore is an in-process TokenStore.
type MemoryStore struct {
	mu     sync.Mutex
	tokens model.Tokens
}

func (m *MemoryStore) Load() (model.Tokens, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens, !m.tokens.Empty(), nil
}

func (m *MemoryStore) Save(tokens model.Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = model.Tokens{}
	return nil
}
