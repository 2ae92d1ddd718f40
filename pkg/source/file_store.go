package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

var fileExtensions = []string{".yaml", ".yml", ".json"}

// FileStore reads "<dir>/<key>.yaml", ".yml" or ".json", first match wins.
// ETags are content hashes. Saves always write YAML.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) Load(_ context.Context, ref Ref) (map[string]any, Meta, bool, error) {
	key, err := ref.Key()
	if err != nil {
		return nil, Meta{}, false, err
	}

	for _, ext := range fileExtensions {
		path := filepath.Join(s.Dir, key+ext)
		data, info, err := readWithInfo(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, Meta{}, false, err
		}
		format, _ := FormatFromPath(path)
		tree, err := Decode(data, format)
		if err != nil {
			return nil, Meta{}, false, fmt.Errorf("source: %s: %w", path, err)
		}
		return tree, Meta{
			Source:    path,
			ETag:      contentTag(data),
			UpdatedAt: info.ModTime().UTC(),
		}, true, nil
	}
	return nil, Meta{}, false, nil
}

func (s *FileStore) Save(ctx context.Context, ref Ref, tree map[string]any, meta Meta) (Meta, error) {
	key, err := ref.Key()
	if err != nil {
		return Meta{}, err
	}
	if meta.ETag != "" {
		_, current, ok, err := s.Load(ctx, ref)
		if err != nil {
			return Meta{}, err
		}
		if ok && current.ETag != meta.ETag {
			return Meta{}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current.ETag)
		}
	}

	data, err := Encode(tree, FormatYAML)
	if err != nil {
		return Meta{}, fmt.Errorf("source: encode %s: %w", key, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("source: create %s: %w", s.Dir, err)
	}
	path := filepath.Join(s.Dir, key+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Meta{}, fmt.Errorf("source: write %s: %w", path, err)
	}

	saved := cloneMeta(meta)
	saved.Source = path
	saved.ETag = contentTag(data)
	saved.UpdatedAt = time.Now().UTC()
	return saved, nil
}

func readWithInfo(path string) ([]byte, fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("source: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}

func contentTag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
