package photostore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"matchbot/pkg/logger"
	"matchbot/pkg/metrics"
	"matchbot/pkg/s3"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ObjectStorage is the blob backend, implemented by *s3.Client.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
}

// Cache is the bytes cache, implemented by *cache.PhotoCache.
type Cache interface {
	Put(ctx context.Context, url string, data []byte) error
	Get(ctx context.Context, url string) ([]byte, bool, error)
	Delete(ctx context.Context, url string) error
}

var ErrEmptyPhoto = errors.New("photo is empty")

const keyPrefix = "avatars/"

type Store struct {
	storage ObjectStorage
	cache   Cache
	logger  *logger.Logger
}

func New(storage ObjectStorage, cache Cache, log *logger.Logger) *Store {
	return &Store{storage: storage, cache: cache, logger: log}
}

// ObjectKey builds the storage key for an uploaded avatar.
func ObjectKey(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "photo"
	}
	return keyPrefix + uuid.New().String() + "_" + name
}

// Store uploads data and writes it through to the cache. A cache failure
// does not fail the upload.
func (s *Store) Store(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPhoto
	}

	contentType := mimetype.Detect(data).String()
	url, err := s.storage.Upload(ctx, ObjectKey(filename), data, contentType)
	if err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}

	if err := s.cache.Put(ctx, url, data); err != nil {
		s.logger.Warn("[PHOTO] Failed to cache %s: %v", url, err)
	}

	s.logger.Debug("[PHOTO] Stored %s (%s, %d bytes)", url, contentType, len(data))
	return url, nil
}

// Fetch is a read-through lookup. found is false when neither the cache nor
// the object store has the photo.
func (s *Store) Fetch(ctx context.Context, url string) ([]byte, bool, error) {
	data, ok, err := s.cache.Get(ctx, url)
	if err != nil {
		s.logger.Warn("[PHOTO] Cache lookup failed for %s: %v", url, err)
	}
	if ok {
		metrics.PhotoCacheLookups.WithLabelValues("hit").Inc()
		return data, true, nil
	}
	metrics.PhotoCacheLookups.WithLabelValues("miss").Inc()

	data, err = s.storage.Download(ctx, url)
	if errors.Is(err, s3.ErrObjectNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch photo: %w", err)
	}

	if err := s.cache.Put(ctx, url, data); err != nil {
		s.logger.Warn("[PHOTO] Failed to cache %s: %v", url, err)
	}
	return data, true, nil
}

// Remove deletes a replaced photo from the object store and evicts it from
// the cache. A cache failure does not fail the removal.
func (s *Store) Remove(ctx context.Context, url string) error {
	if err := s.storage.Delete(ctx, url); err != nil {
		return fmt.Errorf("remove photo: %w", err)
	}
	if err := s.cache.Delete(ctx, url); err != nil {
		s.logger.Warn("[PHOTO] Failed to evict %s: %v", url, err)
	}
	s.logger.Debug("[PHOTO] Removed %s", url)
	return nil
}
