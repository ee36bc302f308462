package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrAssetNotFound is returned when no image exists for an asset id.
var ErrAssetNotFound = errors.New("assets: asset not found")

// Resolver turns a device-local photo asset id into image bytes.
type Resolver interface {
	FetchImage(ctx context.Context, assetID string) ([]byte, error)
}

// FSResolver reads photo assets from a filesystem directory. Assets are laid
// out flat as <baseDir>/<assetID>.jpg.
type FSResolver struct {
	fs      afero.Fs
	baseDir string
}

func NewFSResolver(fs afero.Fs, baseDir string) *FSResolver {
	return &FSResolver{fs: fs, baseDir: baseDir}
}

func (r *FSResolver) FetchImage(ctx context.Context, assetID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(r.baseDir, assetID+".jpg")
	exists, err := afero.Exists(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("stat asset %s: %w", assetID, err)
	}
	if !exists {
		return nil, ErrAssetNotFound
	}

	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", assetID, err)
	}
	return data, nil
}
