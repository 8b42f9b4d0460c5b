package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/phrasebook-app/apiserver/config"
)

// Backend names accepted by Open.
const (
	BackendNone  = "none"
	BackendMinio = "minio"
	BackendGCS   = "gcs"
)

const (
	avatarPrefix       = "avatars"
	avatarCacheControl = "public, max-age=86400"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend and knows the public URL objects
// are served from.
type Storage struct {
	backend ObjectStorage
	baseURL string
}

// NewStorage constructs a Storage wrapper for the provided backend.
// baseURL is the public prefix objects are reachable under.
func NewStorage(backend ObjectStorage, baseURL string) *Storage {
	return &Storage{backend: backend, baseURL: strings.TrimRight(baseURL, "/")}
}

// Open constructs the storage selected by cfg.Backend and ensures its
// bucket exists. It returns nil when object storage is disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		baseURL string
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, nil
	case BackendMinio:
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		scheme := "http"
		if cfg.Minio.UseSSL {
			scheme = "https"
		}
		backend = client
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Minio.Endpoint, cfg.Minio.Bucket)
	case BackendGCS:
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
		baseURL = "https://storage.googleapis.com/" + cfg.GCS.Bucket
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if strings.TrimSpace(cfg.PublicURL) != "" {
		baseURL = cfg.PublicURL
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return NewStorage(backend, baseURL), nil
}

// PutAvatar stores an avatar image for userID and returns its public URL.
func (s *Storage) PutAvatar(ctx context.Context, userID int, r io.Reader, size int64, contentType string) (string, error) {
	key := path.Join(avatarPrefix, fmt.Sprint(userID), uuid.NewString()+extension(contentType))
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return s.URL(key), nil
}

// DeleteByURL removes an object previously returned by PutAvatar. URLs
// outside this storage are ignored.
func (s *Storage) DeleteByURL(ctx context.Context, url string) error {
	key, ok := s.KeyFromURL(url)
	if !ok {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// URL returns the public URL of key.
func (s *Storage) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL is the inverse of URL.
func (s *Storage) KeyFromURL(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if url == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

func contentTypeOrDefault(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return "application/octet-stream"
	}
	return contentType
}
