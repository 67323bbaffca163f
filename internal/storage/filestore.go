package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"ttseval/internal/items"
)

// ErrInvalidKey signals a sheet or item name that cannot be used as a path segment.
var ErrInvalidKey = errors.New("invalid storage key")

// FileStore keeps one JSON document per (sheet, item) under root.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the annotation root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Get reads and parses the annotation for sheet/itemID.
func (s *FileStore) Get(ctx context.Context, sheet, itemID string) (items.Annotation, error) {
	path, err := s.path(sheet, itemID)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, items.ErrNotFound
		}
		return nil, fmt.Errorf("read annotation: %w", err)
	}

	var ann items.Annotation
	if err := json.Unmarshal(raw, &ann); err != nil {
		return nil, fmt.Errorf("decode annotation %s: %w", path, err)
	}
	if ann == nil {
		ann = items.Annotation{}
	}
	return ann, nil
}

// Put overwrites the annotation file. The document is written to a temp
// file in the same directory and renamed into place.
func (s *FileStore) Put(ctx context.Context, sheet, itemID string, ann items.Annotation) error {
	path, err := s.path(sheet, itemID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(ann); err != nil {
		return fmt.Errorf("encode annotation: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create annotation dir: %w", err)
	}
	return writeFileAtomic(dir, path, bytes.TrimRight(buf.Bytes(), "\n"))
}

// Exists reports whether an annotation file is present.
func (s *FileStore) Exists(ctx context.Context, sheet, itemID string) (bool, error) {
	path, err := s.path(sheet, itemID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat annotation: %w", err)
	}
	return !info.IsDir(), nil
}

// Sheets lists the sheet directories present under root.
func (s *FileStore) Sheets(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list annotation root: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) path(sheet, itemID string) (string, error) {
	if err := validateSegment(sheet); err != nil {
		return "", err
	}
	if err := validateSegment(itemID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, sheet, itemID+".json"), nil
}

func validateSegment(v string) error {
	if strings.TrimSpace(v) == "" || v == "." || v == ".." ||
		strings.ContainsAny(v, `/\`) || strings.ContainsRune(v, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, v)
	}
	return nil
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
