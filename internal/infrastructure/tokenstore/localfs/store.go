package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kirillkom/docassist/internal/core/domain"
)

const tokenFile = "token.json"

// Store keeps the delivered credential in a single JSON file.
type Store struct {
	basePath string
}

func New(basePath string) (*Store, error) {
	if basePath == "" {
		basePath = "./data/session"
	}
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

func (s *Store) Load(_ context.Context) (*domain.StoredToken, error) {
	raw, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var token domain.StoredToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	if len(token.Token) == 0 {
		return nil, nil
	}
	return &token, nil
}

// Save replaces the file atomically so a crash never leaves half a token.
func (s *Store) Save(_ context.Context, token domain.StoredToken) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	f, err := os.CreateTemp(s.basePath, tokenFile+".*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (s *Store) path() string {
	return filepath.Join(s.basePath, tokenFile)
}
