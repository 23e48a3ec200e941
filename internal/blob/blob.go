// Package blob stores generated media and hands back the URL the calling engine downloads it from.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrInvalidKey = errors.New("blob: invalid key")

// Store saves content under key and returns its public URL.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// LocalStore writes to a directory served by the API under PublicURL.
type LocalStore struct {
	Dir       string
	PublicURL string
}

func NewLocalStore(dir, publicURL string) *LocalStore {
	return &LocalStore{Dir: dir, PublicURL: strings.TrimRight(publicURL, "/")}
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("blob: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("blob: rename: %w", err)
	}
	return s.PublicURL + "/" + clean, nil
}

// MemoryStore keeps blobs in memory. Useful for tests.
type MemoryStore struct {
	mu       sync.Mutex
	BaseURL  string
	Objects  map[string][]byte
	FailWith error
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{BaseURL: baseURL, Objects: map[string][]byte{}}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return "", s.FailWith
	}
	s.Objects[clean] = append([]byte(nil), data...)
	return s.BaseURL + "/" + clean, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Objects)
}

func cleanKey(key string) (string, error) {
	k := strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+key)), "/")
	if k == "" || k == "." || k != strings.TrimLeft(key, "/") {
		return "", ErrInvalidKey
	}
	return k, nil
}
