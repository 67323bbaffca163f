package compiler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ttseval/internal/items"
	"ttseval/internal/storage"
	"ttseval/internal/workbook"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func templateWorkbook() *workbook.Workbook {
	header := []string{"ItemID", "Text", "Naturalness: Does it sound robotic or human?", "Notes", "NumberMistakes"}
	wb := workbook.New()
	wb.AddSheet(&workbook.Sheet{
		Name:   "Male",
		Header: header,
		Rows: [][]string{
			{"T-0001", "one", "", "", ""},
			{"T-0002", "two", "", "keep", ""},
		},
	})
	wb.AddSheet(&workbook.Sheet{
		Name:   "Female",
		Header: header,
		Rows:   [][]string{{"T-0001", "one", "", "", ""}},
	})
	return wb
}

func TestCompileUpdatesMatchingColumns(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "Male", "T-0001", items.Annotation{
		"Naturalness": float64(4),
		"Notes":       "clear",
		"Unmapped":    "ignored",
	}))

	in := templateWorkbook()
	out, report, err := New(discard, store, PolicySkip).Compile(ctx, in)
	require.NoError(t, err)

	male, err := out.Sheet("Male")
	require.NoError(t, err)
	require.Equal(t, "4", male.Value(0, "Naturalness: Does it sound robotic or human?"))
	require.Equal(t, "clear", male.Value(0, "Notes"))
	require.Equal(t, in.Sheets[0].Rows[1], male.Rows[1], "row without annotation is unchanged")
	require.Equal(t, "", in.Sheets[0].Rows[0][3], "input workbook is not modified")

	female, err := out.Sheet("Female")
	require.NoError(t, err)
	require.Equal(t, in.Sheets[1].Rows, female.Rows)

	require.Equal(t, 1, report.Updated())
	require.True(t, report.Sheets[1].CopiedThrough)
}

func TestCompileMissingColumnPolicies(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "Male", "T-0002", items.Annotation{"NumberMistakes": "১২ → বারো"}))
	numberColumn := "সংখ্যা (Any mistakes reading numbers)"

	out, report, err := New(discard, store, PolicySkip).Compile(ctx, templateWorkbook())
	require.NoError(t, err)
	male, _ := out.Sheet("Male")
	require.Equal(t, -1, male.ColumnIndex(numberColumn))
	require.Equal(t, "", male.Value(1, "NumberMistakes"))
	require.Equal(t, []string{numberColumn}, report.Sheets[0].SkippedColumns)

	out, report, err = New(discard, store, PolicyCreate).Compile(ctx, templateWorkbook())
	require.NoError(t, err)
	male, _ = out.Sheet("Male")
	require.Equal(t, "১২ → বারো", male.Value(1, numberColumn))
	require.Equal(t, "", male.Value(0, numberColumn))
	require.Equal(t, []string{numberColumn}, report.Sheets[0].CreatedColumns)

	_, _, err = New(discard, store, PolicyError).Compile(ctx, templateWorkbook())
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestCompileMatchesNormalisedHeaders(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "Male", "T-0001", items.Annotation{"Intelligibility": "5"}))

	wb := workbook.New()
	wb.AddSheet(&workbook.Sheet{
		Name:   "Male",
		Header: []string{"ItemID", "Text", "Intelligibility:  Can you understand every word clearly? "},
		Rows:   [][]string{{"T-0001", "one", ""}},
	})

	out, _, err := New(discard, store, PolicyError).Compile(ctx, wb)
	require.NoError(t, err)
	require.Equal(t, "5", out.Sheets[0].Rows[0][2])
}

func TestCompiledFileKeepsTypesAndBlankRows(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "results.xlsx")
	outPath := filepath.Join(dir, "compiled.xlsx")

	src := excelize.NewFile()
	require.NoError(t, src.SetSheetName("Sheet1", "Male"))
	require.NoError(t, src.SetSheetRow("Male", "A1", &[]any{"ItemID", "Text", "Score"}))
	require.NoError(t, src.SetSheetRow("Male", "A2", &[]any{"T-0001", "hello", 4}))
	require.NoError(t, src.SetSheetRow("Male", "A4", &[]any{"T-0002", "bye", 0.5}))
	_, err := src.NewSheet("Female")
	require.NoError(t, err)
	require.NoError(t, src.SetSheetRow("Female", "A1", &[]any{"ItemID", "Text", "Notes", "Score"}))
	require.NoError(t, src.SetSheetRow("Female", "A2", &[]any{"T-0001", "hello", "", 3}))
	require.NoError(t, src.SetSheetRow("Female", "A4", &[]any{"T-0002", "bye", "", 2}))
	require.NoError(t, src.SaveAs(srcPath))
	require.NoError(t, src.Close())

	store := storage.NewFileStore(filepath.Join(dir, "annotations"))
	require.NoError(t, store.Put(ctx, "Female", "T-0002", items.Annotation{"Notes": "clear"}))

	in, err := workbook.Open(srcPath)
	require.NoError(t, err)
	out, report, err := New(discard, store, PolicySkip).Compile(ctx, in)
	require.NoError(t, err)
	require.True(t, report.Sheets[0].CopiedThrough)
	require.Equal(t, 1, report.Updated())
	require.NoError(t, out.Save(outPath))

	f, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer f.Close()

	textTypes := []excelize.CellType{excelize.CellTypeSharedString, excelize.CellTypeInlineString}
	for _, ref := range []struct{ sheet, cell, raw string }{
		{"Male", "C2", "4"},
		{"Male", "C4", "0.5"},
		{"Female", "D2", "3"},
		{"Female", "D4", "2"},
	} {
		typ, err := f.GetCellType(ref.sheet, ref.cell)
		require.NoError(t, err)
		require.NotContains(t, textTypes, typ, "%s!%s stays numeric", ref.sheet, ref.cell)
		v, err := f.GetCellValue(ref.sheet, ref.cell, excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		require.Equal(t, ref.raw, v)
	}

	rows, err := f.GetRows("Male")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Empty(t, rows[2])
	require.Equal(t, "T-0002", rows[3][0])

	v, err := f.GetCellValue("Female", "C4")
	require.NoError(t, err)
	require.Equal(t, "clear", v)
	v, err = f.GetCellValue("Female", "A3")
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, PolicySkip, p)

	p, err = ParsePolicy("Create")
	require.NoError(t, err)
	require.Equal(t, PolicyCreate, p)

	_, err = ParsePolicy("merge")
	require.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "3.5", FormatValue(3.5))
	require.Equal(t, "true", FormatValue(true))
	require.Equal(t, "a, b", FormatValue([]any{"a", "b"}))
	require.Equal(t, "", FormatValue(nil))
}
