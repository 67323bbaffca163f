package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/patrickmn/go-cache"

	"ttseval/internal/items"
)

const (
	ColumnItemID = "ItemID"
	ColumnText   = "Text"
)

type cachedWorkbook struct {
	modTime time.Time
	size    int64
	wb      *Workbook
}

// Source serves sheets of a workbook file to the annotation service.
// Parsed workbooks are cached until the file changes on disk.
type Source struct {
	path  string
	cache *cache.Cache
}

// NewSource creates a Source for path. ttl bounds how long a parsed
// workbook is kept without being re-validated against the file.
func NewSource(path string, ttl time.Duration) *Source {
	return &Source{
		path:  path,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Workbook returns the parsed workbook, re-reading it when its size or
// modification time changed.
func (s *Source) Workbook(ctx context.Context) (*Workbook, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat workbook: %w", err)
	}

	if v, ok := s.cache.Get(s.path); ok {
		entry := v.(cachedWorkbook)
		if entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			return entry.wb, nil
		}
	}

	wb, err := Open(s.path)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(s.path, cachedWorkbook{modTime: info.ModTime(), size: info.Size(), wb: wb})
	return wb, nil
}

// SheetNames implements items.SheetSource.
func (s *Source) SheetNames(ctx context.Context) ([]string, error) {
	wb, err := s.Workbook(ctx)
	if err != nil {
		return nil, err
	}
	return wb.SheetNames(), nil
}

// Rows implements items.SheetSource.
func (s *Source) Rows(ctx context.Context, sheet string) ([]items.Row, error) {
	wb, err := s.Workbook(ctx)
	if err != nil {
		return nil, err
	}
	sh, err := wb.Sheet(sheet)
	if err != nil {
		if errors.Is(err, ErrSheetNotFound) {
			return nil, fmt.Errorf("%w: %s", items.ErrSheetNotFound, sheet)
		}
		return nil, err
	}
	return ItemRows(sh)
}

// ItemRows extracts (ItemID, Text) pairs from a sheet.
func ItemRows(sh *Sheet) ([]items.Row, error) {
	idCol := sh.ColumnIndex(ColumnItemID)
	textCol := sh.ColumnIndex(ColumnText)
	if idCol == -1 || textCol == -1 {
		return nil, fmt.Errorf("sheet %s: missing %q or %q column", sh.Name, ColumnItemID, ColumnText)
	}

	rows := make([]items.Row, 0, len(sh.Rows))
	for _, row := range sh.Rows {
		rows = append(rows, items.Row{ID: row[idCol], Text: row[textCol]})
	}
	return rows, nil
}
