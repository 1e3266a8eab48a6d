// Package blobstore keeps uploaded images and rendered artifacts on the
// local filesystem under a public root.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/smallbiznis/nanolite/internal/config"
	"go.uber.org/zap"
)

var ErrInvalidPath = errors.New("invalid blob path")

// Store is the contract the claim pipeline writes through.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	PublicURL(key string) string
	Exists(key string) bool
	LocalPath(key string) (string, error)
}

// LocalStore writes blobs below Root and serves them under PublicURL.
type LocalStore struct {
	root      string
	publicURL string
	log       *zap.Logger
}

func NewLocalStore(cfg config.Config, log *zap.Logger) (*LocalStore, error) {
	root := strings.TrimSpace(cfg.Storage.Root)
	if root == "" {
		return nil, errors.New("storage root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{
		root:      root,
		publicURL: strings.TrimRight(cfg.Storage.PublicURL, "/"),
		log:       log.Named("blobstore"),
	}, nil
}

// Root is the directory served at the public URL.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.LocalPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit blob: %w", err)
	}
	s.log.Debug("blob stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.LocalPath(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// PublicURL maps a stored key to the URL it is served at. Keys that are
// already absolute URLs pass through.
func (s *LocalStore) PublicURL(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}
	return s.publicURL + "/" + NormalizeKey(key)
}

func (s *LocalStore) Exists(key string) bool {
	full, err := s.LocalPath(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// LocalPath resolves key below the root, refusing keys that escape it.
func (s *LocalStore) LocalPath(key string) (string, error) {
	clean := NormalizeKey(key)
	if clean == "" || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// NormalizeKey strips leading slashes and a leading "storage/" segment so
// public paths and stored keys compare equal.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimLeft(key, "/")
	key = strings.TrimPrefix(key, "storage/")
	if key == "" {
		return ""
	}
	return path.Clean(key)
}
