package blobstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KakiharaShingo/Routy-sub000/internal/db"

	"github.com/google/uuid"
)

// Tier selects the upload quality for a photo.
type Tier string

const (
	// TierOriginal stores the bytes untouched (premium accounts).
	TierOriginal Tier = "original"
	// TierCompressed re-encodes down to the configured photo target size.
	TierCompressed Tier = "compressed"
)

const downloadCacheSize = 64

// Store persists photo bytes and hands back stable URLs under the configured
// base URL. Re-uploading the same path overwrites the blob so a retried
// upload stays idempotent.
type Store struct {
	db      db.Querier
	baseURL string
	photoKB int
	thumbKB int
	cache   *lruCache
}

func NewStore(q db.Querier, baseURL string, photoTargetKB, thumbnailTargetKB int) *Store {
	return &Store{
		db:      q,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		photoKB: photoTargetKB,
		thumbKB: thumbnailTargetKB,
		cache:   newLRUCache(downloadCacheSize),
	}
}

// UploadPhoto stores the full photo at the tier's quality and returns its URL.
func (s *Store) UploadPhoto(ctx context.Context, data []byte, userID, photoID string, tier Tier) (string, error) {
	payload := data
	if tier != TierOriginal {
		img, err := decodeImage(data)
		if err != nil {
			return "", err
		}
		payload, err = Compress(img, s.photoKB)
		if err != nil {
			return "", err
		}
	}

	path := fmt.Sprintf("users/%s/photos/%s.jpg", userID, photoID)
	return s.put(ctx, userID, path, payload)
}

// UploadThumbnail stores a small preview encoding and returns its URL.
func (s *Store) UploadThumbnail(ctx context.Context, data []byte, userID, photoID string) (string, error) {
	img, err := decodeImage(data)
	if err != nil {
		return "", err
	}
	payload, err := Compress(img, s.thumbKB)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("users/%s/thumbnails/%s_thumb.jpg", userID, photoID)
	return s.put(ctx, userID, path, payload)
}

func (s *Store) put(ctx context.Context, userID, path string, payload []byte) (string, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO photo_blobs (id, user_id, path, content, content_type, size_bytes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (path) DO UPDATE SET content=EXCLUDED.content, size_bytes=EXCLUDED.size_bytes
	`, uuid.NewString(), userID, path, payload, "image/jpeg", len(payload), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	url := s.baseURL + "/" + path
	s.cache.put(url, payload)
	return url, nil
}

// Download returns the blob behind a URL, serving repeat reads from the
// bounded cache.
func (s *Store) Download(ctx context.Context, url string) ([]byte, error) {
	if data, ok := s.cache.get(url); ok {
		return data, nil
	}

	path := strings.TrimPrefix(url, s.baseURL+"/")
	var content []byte
	err := s.db.QueryRow(ctx, `SELECT content FROM photo_blobs WHERE path=$1`, path).Scan(&content)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}

	s.cache.put(url, content)
	return content, nil
}

// Delete removes the blob behind a URL.
func (s *Store) Delete(ctx context.Context, url string) error {
	path := strings.TrimPrefix(url, s.baseURL+"/")
	if _, err := s.db.Exec(ctx, `DELETE FROM photo_blobs WHERE path=$1`, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.cache.remove(url)
	return nil
}
