package workbook

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound signals a sheet missing from the workbook.
var ErrSheetNotFound = errors.New("sheet not found")

// Sheet is a header row plus data rows, all as cell text. Cells read from
// a file as numbers or booleans keep that type when saved, until
// overwritten with SetAt.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string

	kinds map[cellRef]cellKind
}

type cellKind uint8

const (
	kindText cellKind = iota
	kindNumber
	kindBool
)

type cellRef struct{ row, col int }

// ColumnIndex returns the position of column name, or -1.
func (s *Sheet) ColumnIndex(name string) int {
	for i, h := range s.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// HasColumns reports whether every name is a header of s.
func (s *Sheet) HasColumns(names ...string) bool {
	for _, name := range names {
		if s.ColumnIndex(name) == -1 {
			return false
		}
	}
	return true
}

// Value returns the cell at row for column name.
func (s *Sheet) Value(row int, name string) string {
	col := s.ColumnIndex(name)
	if col == -1 || row < 0 || row >= len(s.Rows) {
		return ""
	}
	return s.Rows[row][col]
}

// SetAt writes a cell by column position.
func (s *Sheet) SetAt(row, col int, value string) {
	s.Rows[row][col] = value
	delete(s.kinds, cellRef{row, col})
}

func (s *Sheet) setKind(row, col int, kind cellKind) {
	if s.kinds == nil {
		s.kinds = make(map[cellRef]cellKind)
	}
	s.kinds[cellRef{row, col}] = kind
}

// cellValue returns the cell in the Go type it should be written as.
func (s *Sheet) cellValue(row, col int) any {
	v := s.Rows[row][col]
	switch s.kinds[cellRef{row, col}] {
	case kindNumber:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	case kindBool:
		return v == "1" || strings.EqualFold(v, "true")
	}
	return v
}

// AddColumn appends an empty column and returns its index.
func (s *Sheet) AddColumn(name string) int {
	s.Header = append(s.Header, name)
	for i := range s.Rows {
		s.Rows[i] = append(s.Rows[i], "")
	}
	return len(s.Header) - 1
}

// Clone deep-copies the sheet.
func (s *Sheet) Clone() *Sheet {
	out := &Sheet{
		Name:   s.Name,
		Header: append([]string(nil), s.Header...),
		Rows:   make([][]string, len(s.Rows)),
	}
	for i, row := range s.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	for ref, kind := range s.kinds {
		out.setKind(ref.row, ref.col, kind)
	}
	return out
}

// Workbook is an ordered set of sheets.
type Workbook struct {
	Sheets []*Sheet
}

// New returns an empty workbook.
func New() *Workbook {
	return &Workbook{}
}

// SheetNames lists sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, 0, len(w.Sheets))
	for _, s := range w.Sheets {
		names = append(names, s.Name)
	}
	return names
}

// Sheet looks up a sheet by exact name.
func (w *Workbook) Sheet(name string) (*Sheet, error) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
}

// AddSheet appends a sheet.
func (w *Workbook) AddSheet(s *Sheet) {
	w.Sheets = append(w.Sheets, s)
}

// Open reads every sheet of an .xlsx file. The first row of each sheet is
// the header; data rows are padded to the header width. Cell values are
// read unformatted. Blank rows between data rows are kept so row positions
// survive a save; trailing blank rows are dropped.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	wb := New()
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		sheet := &Sheet{Name: name}
		if len(rows) > 0 {
			sheet.Header = rows[0]
			data := trimTrailingBlank(rows[1:])
			sheet.Rows = make([][]string, 0, len(data))
			for r, row := range data {
				sheet.Rows = append(sheet.Rows, pad(row, len(sheet.Header)))
				for c, v := range row {
					if v == "" {
						continue
					}
					kind, err := readKind(f, name, c+1, r+2, v)
					if err != nil {
						return nil, err
					}
					if kind != kindText {
						sheet.setKind(r, c, kind)
					}
				}
			}
		}
		wb.AddSheet(sheet)
	}
	return wb, nil
}

func readKind(f *excelize.File, sheet string, col, row int, raw string) (cellKind, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return kindText, fmt.Errorf("cell name: %w", err)
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return kindText, fmt.Errorf("read %s!%s type: %w", sheet, cell, err)
	}
	switch typ {
	case excelize.CellTypeBool:
		return kindBool, nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		// cells without a type attribute are numbers
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return kindNumber, nil
		}
	}
	return kindText, nil
}

// Save writes the workbook to path, replacing any existing file.
func (w *Workbook) Save(path string) error {
	if len(w.Sheets) == 0 {
		return errors.New("workbook has no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	for i, s := range w.Sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, s.Name); err != nil {
				return fmt.Errorf("rename sheet %s: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.Name, err)
		}

		header := make([]any, len(s.Header))
		for c, h := range s.Header {
			header[c] = h
		}
		if err := writeRow(f, s.Name, 1, header); err != nil {
			return err
		}
		for r, row := range s.Rows {
			if isBlank(row) {
				continue
			}
			values := make([]any, len(row))
			for c := range row {
				values[c] = s.cellValue(r, c)
			}
			if err := writeRow(f, s.Name, r+2, values); err != nil {
				return err
			}
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, rowNum, err)
	}
	return nil
}

func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

func trimTrailingBlank(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isBlank(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
