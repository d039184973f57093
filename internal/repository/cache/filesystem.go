package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jktrn/MemoLanes/internal/tile"
)

const (
	tileFileExt = ".tile"
	tmpPattern  = ".tmp-*"
)

// FilesystemCache stores one file per tile.
// Structure: {dir}/{z}/{x}/{y}.tile
type FilesystemCache struct {
	dir string
}

func NewFilesystemCache(dir string) (*FilesystemCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FilesystemCache{
		dir: dir,
	}, nil
}

var _ TileCache = (*FilesystemCache)(nil)

func (c *FilesystemCache) Name() string {
	return "filesystem"
}

func (c *FilesystemCache) pathFor(k tile.Key) (string, error) {
	coord, err := tile.ParseKey(k)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.dir, fmt.Sprint(coord.Z), fmt.Sprint(coord.X), fmt.Sprint(coord.Y)+tileFileExt), nil
}

func (c *FilesystemCache) Get(_ context.Context, k tile.Key) ([]byte, bool, error) {
	path, err := c.pathFor(k)
	if err != nil {
		return nil, false, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return content, true, nil
}

// Set writes to a temporary file in the target directory and renames it over
// the final path, so readers never see a partial tile.
func (c *FilesystemCache) Set(_ context.Context, e Entry) error {
	path, err := c.pathFor(e.Key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(e.Data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chtimes(tmpPath, e.StoredAt, e.StoredAt)
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}

func (c *FilesystemCache) Delete(_ context.Context, k tile.Key) error {
	path, err := c.pathFor(k)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Scan walks the cache directory. Leftover temporary files from an
// interrupted write are removed; anything else that is not a tile is ignored.
func (c *FilesystemCache) Scan(ctx context.Context) ([]EntryInfo, error) {
	var infos []EntryInfo

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".tmp-") {
			os.Remove(path)
			return nil
		}

		rel, err := filepath.Rel(c.dir, path)
		if err != nil {
			return err
		}
		name, ok := strings.CutSuffix(filepath.ToSlash(rel), tileFileExt)
		if !ok {
			return nil
		}
		coord, err := tile.ParseKey(tile.Key(name))
		if err != nil {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, EntryInfo{
			Key:      coord.Key(),
			Size:     info.Size(),
			StoredAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return infos, nil
}

func (c *FilesystemCache) Clear(_ context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (c *FilesystemCache) Close() error {
	return nil
}
