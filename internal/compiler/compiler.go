package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"ttseval/internal/items"
	"ttseval/internal/workbook"
)

// ErrMissingColumn is returned under PolicyError when a mapped column is absent.
var ErrMissingColumn = errors.New("target column missing from sheet")

// FieldColumn binds an annotation field to its output column.
type FieldColumn struct {
	Field  string
	Column string
}

// ColumnMap is the output contract consumed by downstream reports; the
// column strings must match the template byte for byte.
var ColumnMap = []FieldColumn{
	{Field: "Naturalness", Column: "Naturalness: Does it sound robotic or human?"},
	{Field: "Intelligibility", Column: "\nIntelligibility: Can you understand every word clearly?"},
	{Field: "Context", Column: "\nContext: Did it get the question/sarcasm tone right?"},
	{Field: "IncorrectWords", Column: "List of IncorrectWords"},
	{Field: "NumberMistakes", Column: "সংখ্যা (Any mistakes reading numbers)"},
	{Field: "ConjunctMistakes", Column: "যুক্তাক্ষর (Any issues reading them)"},
	{Field: "Notes", Column: "Notes"},
}

// MissingColumnPolicy decides what happens when an annotation carries a
// mapped field whose column the sheet lacks.
type MissingColumnPolicy string

const (
	PolicySkip   MissingColumnPolicy = "skip"
	PolicyCreate MissingColumnPolicy = "create"
	PolicyError  MissingColumnPolicy = "error"
)

// ParsePolicy validates a policy name.
func ParsePolicy(v string) (MissingColumnPolicy, error) {
	switch p := MissingColumnPolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case PolicySkip, PolicyCreate, PolicyError:
		return p, nil
	case "":
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown missing-column policy %q (want skip, create, or error)", v)
	}
}

// SheetReport summarises one sheet of a compile run.
type SheetReport struct {
	Sheet          string
	Rows           int
	Updated        int
	CopiedThrough  bool
	SkippedColumns []string
	CreatedColumns []string
}

// Report summarises a compile run.
type Report struct {
	Sheets []SheetReport
}

// Updated totals updated rows across sheets.
func (r Report) Updated() int {
	total := 0
	for _, s := range r.Sheets {
		total += s.Updated
	}
	return total
}

// Compiler projects stored annotations onto workbook columns.
type Compiler struct {
	logger  *slog.Logger
	store   items.Store
	columns []FieldColumn
	policy  MissingColumnPolicy
}

// New constructs a Compiler using ColumnMap.
func New(logger *slog.Logger, store items.Store, policy MissingColumnPolicy) *Compiler {
	if policy == "" {
		policy = PolicySkip
	}
	return &Compiler{
		logger:  logger,
		store:   store,
		columns: ColumnMap,
		policy:  policy,
	}
}

// Compile returns a fresh workbook with annotations applied. The input is
// not modified.
func (c *Compiler) Compile(ctx context.Context, in *workbook.Workbook) (*workbook.Workbook, Report, error) {
	annotated, err := c.store.Sheets(ctx)
	if err != nil {
		return nil, Report{}, fmt.Errorf("list annotated sheets: %w", err)
	}
	has := make(map[string]bool, len(annotated))
	for _, name := range annotated {
		has[name] = true
	}

	out := workbook.New()
	var report Report
	for _, src := range in.Sheets {
		sheet := src.Clone()
		sr := SheetReport{Sheet: sheet.Name, Rows: len(sheet.Rows)}

		if !has[sheet.Name] {
			c.logger.Info("no annotations for sheet, copying original", slog.String("sheet", sheet.Name))
			sr.CopiedThrough = true
		} else if err := c.applySheet(ctx, sheet, &sr); err != nil {
			return nil, Report{}, err
		}

		c.logger.Info("sheet compiled",
			slog.String("sheet", sheet.Name),
			slog.Int("rows", sr.Rows),
			slog.Int("updated", sr.Updated),
		)
		out.AddSheet(sheet)
		report.Sheets = append(report.Sheets, sr)
	}
	return out, report, nil
}

func (c *Compiler) applySheet(ctx context.Context, sheet *workbook.Sheet, sr *SheetReport) error {
	idCol := sheet.ColumnIndex(workbook.ColumnItemID)
	if idCol == -1 {
		c.logger.Warn("sheet has no ItemID column, copying original", slog.String("sheet", sheet.Name))
		sr.CopiedThrough = true
		return nil
	}

	resolved := make(map[string]int, len(c.columns))
	missing := make(map[string]bool)

	for r, row := range sheet.Rows {
		itemID := row[idCol]
		if itemID == "" {
			continue
		}
		ann, err := c.store.Get(ctx, sheet.Name, itemID)
		if errors.Is(err, items.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load annotation %s/%s: %w", sheet.Name, itemID, err)
		}

		for _, fc := range c.columns {
			value, ok := ann[fc.Field]
			if !ok {
				continue
			}
			col, found := resolved[fc.Column]
			if !found {
				col, err = c.resolveColumn(sheet, fc, sr)
				if err != nil {
					return err
				}
				resolved[fc.Column] = col
			}
			if col == -1 {
				if !missing[fc.Column] {
					missing[fc.Column] = true
					c.logger.Warn("annotation field has no matching column, skipping",
						slog.String("sheet", sheet.Name),
						slog.String("field", fc.Field),
						slog.String("column", fc.Column),
					)
				}
				continue
			}
			sheet.SetAt(r, col, FormatValue(value))
		}
		sr.Updated++
	}
	return nil
}

func (c *Compiler) resolveColumn(sheet *workbook.Sheet, fc FieldColumn, sr *SheetReport) (int, error) {
	if col := sheet.ColumnIndex(fc.Column); col != -1 {
		return col, nil
	}
	want := normalizeHeader(fc.Column)
	for i, h := range sheet.Header {
		if normalizeHeader(h) == want {
			c.logger.Debug("matched column after normalisation",
				slog.String("sheet", sheet.Name),
				slog.String("column", fc.Column),
				slog.String("header", h),
			)
			return i, nil
		}
	}

	switch c.policy {
	case PolicyCreate:
		sr.CreatedColumns = append(sr.CreatedColumns, fc.Column)
		c.logger.Info("creating missing column",
			slog.String("sheet", sheet.Name),
			slog.String("column", fc.Column),
		)
		return sheet.AddColumn(fc.Column), nil
	case PolicyError:
		return -1, fmt.Errorf("%w: sheet %q column %q", ErrMissingColumn, sheet.Name, fc.Column)
	default:
		sr.SkippedColumns = append(sr.SkippedColumns, fc.Column)
		return -1, nil
	}
}

func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(norm.NFC.String(h)), " ")
}

// FormatValue renders an annotation value as cell text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, FormatValue(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}
