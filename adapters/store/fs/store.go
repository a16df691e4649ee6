package storefs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-schooldocs/docgen"
)

const metaSuffix = ".meta.json"

// Store keeps exported documents on disk next to a JSON metadata sidecar.
type Store struct {
	Root string
	Now  func() time.Time
}

var _ docgen.ArtifactStore = (*Store)(nil)

// NewStore creates a filesystem-backed artifact store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put writes r atomically under key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta docgen.ArtifactMeta) (docgen.ArtifactRef, error) {
	if err := s.check(ctx, key); err != nil {
		return docgen.ArtifactRef{}, err
	}
	if r == nil {
		return docgen.ArtifactRef{}, docgen.NewError(docgen.KindValidation, "artifact reader is nil", nil)
	}

	target, err := s.resolvePath(key)
	if err != nil {
		return docgen.ArtifactRef{}, err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return docgen.ArtifactRef{}, docgen.NewError(docgen.KindExport, "create artifact directory", err)
	}

	size, err := writeAtomic(dir, ".artifact-*", target, r)
	if err != nil {
		return docgen.ArtifactRef{}, docgen.NewError(docgen.KindExport, fmt.Sprintf("write artifact %q", key), err)
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(target))
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return docgen.ArtifactRef{}, docgen.NewError(docgen.KindInternal, "encode artifact metadata", err)
	}
	if _, err := writeAtomic(dir, ".meta-*", target+metaSuffix, strings.NewReader(string(payload))); err != nil {
		return docgen.ArtifactRef{}, docgen.NewError(docgen.KindExport, "write artifact metadata", err)
	}

	return docgen.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open returns the artifact stored under key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, docgen.ArtifactMeta, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, docgen.ArtifactMeta{}, err
	}
	target, err := s.resolvePath(key)
	if err != nil {
		return nil, docgen.ArtifactMeta{}, err
	}

	file, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, docgen.ArtifactMeta{}, docgen.NewError(docgen.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, docgen.ArtifactMeta{}, docgen.NewError(docgen.KindInternal, fmt.Sprintf("open artifact %q", key), err)
	}

	meta := readMeta(target)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(target))
	}
	if meta.Size == 0 || meta.CreatedAt.IsZero() {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}
	return file, meta, nil
}

// Delete removes an artifact and its sidecar. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	target, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	_ = os.Remove(target)
	_ = os.Remove(target + metaSuffix)
	return nil
}

// Prune deletes artifacts created before now minus maxAge and reports how
// many were removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	if s == nil {
		return 0, docgen.NewError(docgen.KindInternal, "store is nil", nil)
	}
	if maxAge <= 0 {
		return 0, docgen.NewError(docgen.KindValidation, "prune age must be positive", nil)
	}
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return 0, docgen.NewError(docgen.KindInternal, "resolve store root", err)
	}
	cutoff := s.now().Add(-maxAge)

	removed := 0
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		name := d.Name()
		if d.IsDir() || strings.HasSuffix(name, metaSuffix) || strings.HasPrefix(name, ".") {
			return nil
		}
		created := readMeta(p).CreatedAt
		if created.IsZero() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			created = info.ModTime()
		}
		if created.Before(cutoff) {
			_ = os.Remove(p)
			_ = os.Remove(p + metaSuffix)
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, docgen.NewError(docgen.KindInternal, "prune artifacts", err)
	}
	return removed, nil
}

func (s *Store) check(ctx context.Context, key string) error {
	if s == nil {
		return docgen.NewError(docgen.KindInternal, "store is nil", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if s.Root == "" {
		return docgen.NewError(docgen.KindValidation, "store root is required", nil)
	}
	if strings.TrimSpace(key) == "" {
		return docgen.NewError(docgen.KindValidation, "artifact key is required", nil)
	}
	return nil
}

func (s *Store) resolvePath(key string) (string, error) {
	rel := strings.TrimPrefix(path.Clean("/"+key), "/")
	if rel == "" || rel == "." || strings.HasSuffix(rel, metaSuffix) {
		return "", docgen.NewError(docgen.KindValidation, "invalid artifact key", nil)
	}
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", docgen.NewError(docgen.KindInternal, "resolve store root", err)
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", docgen.NewError(docgen.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}

func writeAtomic(dir, pattern, target string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	size, err := io.Copy(tmp, r)
	if err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	return size, os.Rename(tmp.Name(), target)
}

func readMeta(target string) docgen.ArtifactMeta {
	data, err := os.ReadFile(target + metaSuffix)
	if err != nil {
		return docgen.ArtifactMeta{}
	}
	var meta docgen.ArtifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return docgen.ArtifactMeta{}
	}
	return meta
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
