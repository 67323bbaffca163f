package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"ttseval/internal/workbook"
)

var (
	// ErrMissingColumn signals a required CSV column is absent.
	ErrMissingColumn = errors.New("column not found")

	// ErrInvalidID signals an ID cell that is not an integer.
	ErrInvalidID = errors.New("invalid ID")
)

// AnnotationColumns are the empty rating columns added to every sheet.
var AnnotationColumns = []string{
	"Naturalness: Does it sound robotic or human?",
	"\nIntelligibility: Can you understand every word clearly?",
	"\nContext: Did it get the question/sarcasm tone right?",
	"List of IncorrectWords",
	"NumberMistakes",
	"ConjunctMistakes",
	"Notes",
	"Preference",
}

// VoiceSheets are the sheets created for each migrated test set.
var VoiceSheets = []string{"Male", "Female"}

// passthroughColumns are copied from the CSV when present.
var passthroughColumns = []string{"Category", "Target_Feature"}

// Migrate converts a test-case CSV (ID, Sentence, ...) into a workbook with
// one identical sheet per voice.
func Migrate(r io.Reader) (*workbook.Workbook, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	idCol, ok := index["ID"]
	if !ok {
		return nil, fmt.Errorf("%w: 'ID'", ErrMissingColumn)
	}
	textCol, ok := index["Sentence"]
	if !ok {
		return nil, fmt.Errorf("%w: 'Sentence'", ErrMissingColumn)
	}

	outHeader := []string{workbook.ColumnItemID, workbook.ColumnText}
	var extra []int
	for _, name := range passthroughColumns {
		if col, ok := index[name]; ok {
			outHeader = append(outHeader, name)
			extra = append(extra, col)
		}
	}
	outHeader = append(outHeader, AnnotationColumns...)

	var rows [][]string
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		itemID, err := FormatItemID(cell(record, idCol))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make([]string, len(outHeader))
		row[0] = itemID
		row[1] = cell(record, textCol)
		for i, col := range extra {
			row[2+i] = cell(record, col)
		}
		rows = append(rows, row)
	}

	wb := workbook.New()
	for _, name := range VoiceSheets {
		sheet := &workbook.Sheet{Name: name, Header: outHeader, Rows: rows}
		wb.AddSheet(sheet.Clone())
	}
	return wb, nil
}

// FormatItemID renders a numeric CSV ID as T-NNNN. Float spellings such
// as "7.0" are accepted and truncated toward zero.
func FormatItemID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return fmt.Sprintf("T-%04d", n), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return fmt.Sprintf("T-%04d", int(f)), nil
}

func cell(record []string, col int) string {
	if col < len(record) {
		return record[col]
	}
	return ""
}
