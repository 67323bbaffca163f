package workbook

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ttseval/internal/items"
)

func sampleWorkbook() *Workbook {
	wb := New()
	wb.AddSheet(&Sheet{
		Name:   "Atika - Male",
		Header: []string{"ItemID", "Text", "\nIntelligibility: Can you understand every word clearly?", "সংখ্যা (Any mistakes reading numbers)"},
		Rows: [][]string{
			{"T-0001", "আমি ভাত খাই", "", ""},
			{"T-0002", "hello", "5", ""},
		},
	})
	wb.AddSheet(&Sheet{
		Name:   "Atika - Female",
		Header: []string{"ItemID", "Text"},
		Rows:   [][]string{{"T-0001", "আমি ভাত খাই"}},
	})
	return wb
}

func TestSaveAndOpenPreservesSheetsAndHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, sampleWorkbook().Save(path))

	wb, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, []string{"Atika - Male", "Atika - Female"}, wb.SheetNames())

	male, err := wb.Sheet("Atika - Male")
	require.NoError(t, err)
	require.Equal(t, sampleWorkbook().Sheets[0].Header, male.Header)
	require.Len(t, male.Rows, 2)
	require.Equal(t, "আমি ভাত খাই", male.Value(0, "Text"))
	require.Equal(t, "5", male.Value(1, "\nIntelligibility: Can you understand every word clearly?"))
	require.Len(t, male.Rows[0], len(male.Header), "short rows are padded to header width")

	_, err = wb.Sheet("Missing")
	require.ErrorIs(t, err, ErrSheetNotFound)
}

func writeTypedFixture(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Male"))
	require.NoError(t, f.SetSheetRow("Male", "A1", &[]any{"ItemID", "Text", "Score", "Checked"}))
	require.NoError(t, f.SetSheetRow("Male", "A2", &[]any{"T-0001", "hello", 4, true}))
	require.NoError(t, f.SetSheetRow("Male", "A4", &[]any{"T-0002", "bye", 0.5}))
	require.NoError(t, f.SaveAs(path))
}

func TestOpenKeepsCellTypesAndRowPositions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.xlsx")
	writeTypedFixture(t, src)

	wb, err := Open(src)
	require.NoError(t, err)
	male, err := wb.Sheet("Male")
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"T-0001", "hello", "4", "1"},
		{"", "", "", ""},
		{"T-0002", "bye", "0.5", ""},
	}, male.Rows)

	clone := male.Clone()
	clone.SetAt(2, 2, "0.75")
	out := New()
	out.AddSheet(clone)
	dst := filepath.Join(dir, "dst.xlsx")
	require.NoError(t, out.Save(dst))

	f, err := excelize.OpenFile(dst)
	require.NoError(t, err)
	defer f.Close()

	typ, err := f.GetCellType("Male", "C2")
	require.NoError(t, err)
	require.NotContains(t, []excelize.CellType{excelize.CellTypeSharedString, excelize.CellTypeInlineString}, typ)
	v, err := f.GetCellValue("Male", "C2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Equal(t, "4", v)

	typ, err = f.GetCellType("Male", "D2")
	require.NoError(t, err)
	require.Equal(t, excelize.CellTypeBool, typ)

	typ, err = f.GetCellType("Male", "C4")
	require.NoError(t, err)
	require.Equal(t, excelize.CellTypeSharedString, typ, "overwritten cells are text")

	v, err = f.GetCellValue("Male", "A4")
	require.NoError(t, err)
	require.Equal(t, "T-0002", v)
	v, err = f.GetCellValue("Male", "A3")
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestOpenDropsTrailingBlankRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	wb := sampleWorkbook()
	wb.Sheets[1].Rows = append(wb.Sheets[1].Rows, []string{"", ""}, []string{"T-0002", "x"}, []string{"", ""})
	require.NoError(t, wb.Save(path))

	reopened, err := Open(path)
	require.NoError(t, err)
	female, err := reopened.Sheet("Atika - Female")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"T-0001", "আমি ভাত খাই"}, {"", ""}, {"T-0002", "x"}}, female.Rows)
}

func TestSheetHelpers(t *testing.T) {
	sh := sampleWorkbook().Sheets[1]
	clone := sh.Clone()

	col := clone.AddColumn("Notes")
	clone.SetAt(0, col, "note")

	require.Equal(t, 2, col)
	require.Equal(t, "note", clone.Value(0, "Notes"))
	require.Equal(t, -1, sh.ColumnIndex("Notes"), "clone must not alias the original")
	require.True(t, clone.HasColumns("ItemID", "Text", "Notes"))
	require.False(t, sh.HasColumns("ItemID", "Notes"))
}

func TestSourceReloadsChangedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, sampleWorkbook().Save(path))

	src := NewSource(path, time.Minute)
	rows, err := src.Rows(ctx, "Atika - Female")
	require.NoError(t, err)
	require.Equal(t, []items.Row{{ID: "T-0001", Text: "আমি ভাত খাই"}}, rows)

	_, err = src.Rows(ctx, "Nope")
	require.ErrorIs(t, err, items.ErrSheetNotFound)

	updated := sampleWorkbook()
	updated.Sheets[1].Rows = append(updated.Sheets[1].Rows, []string{"T-0002", "hello"})
	require.NoError(t, updated.Save(path))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	rows, err = src.Rows(ctx, "Atika - Female")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestItemRowsRequiresColumns(t *testing.T) {
	_, err := ItemRows(&Sheet{Name: "Bad", Header: []string{"ID", "Sentence"}})
	require.Error(t, err)
}
