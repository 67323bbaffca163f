package tts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ttseval/internal/workbook"
)

func TestCollectJobs(t *testing.T) {
	wb := workbook.New()
	wb.AddSheet(&workbook.Sheet{
		Name:   "Male",
		Header: []string{"ItemID", "Text"},
		Rows:   [][]string{{"T-0001", "hello"}, {"T-0002", "   "}, {"", "stray"}, {"", ""}, {"T-0003", "world"}},
	})
	wb.AddSheet(&workbook.Sheet{
		Name:   "Scratch",
		Header: []string{"ID", "Sentence"},
		Rows:   [][]string{{"1", "ignored"}},
	})
	wb.AddSheet(&workbook.Sheet{
		Name:   "Female",
		Header: []string{"Text", "ItemID"},
		Rows:   [][]string{{"hello", "T-0001"}},
	})

	jobs := CollectJobs(discard, wb)
	require.Equal(t, []Job{
		{Sheet: "Male", ItemID: "T-0001", Text: "hello"},
		{Sheet: "Male", ItemID: "T-0003", Text: "world"},
		{Sheet: "Female", ItemID: "T-0001", Text: "hello"},
	}, jobs)
}

func TestGender(t *testing.T) {
	require.Equal(t, "female", Gender("Atika - FEMALE"))
	require.Equal(t, "male", Gender("Atika - Male"))
	require.Equal(t, "male", Gender("Narrator"))
}
