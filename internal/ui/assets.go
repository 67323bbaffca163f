package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"ttseval/internal/i18n"
	"ttseval/internal/items"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// RatingField is one control of the annotation form.
type RatingField struct {
	Key   string
	Label string
	Scale bool
}

// RatingFields lists the form controls in display order. Keys are the
// annotation JSON keys the compiler maps onto workbook columns.
var RatingFields = []RatingField{
	{Key: "Naturalness", Label: "naturalness", Scale: true},
	{Key: "Intelligibility", Label: "intelligibility", Scale: true},
	{Key: "Context", Label: "context", Scale: true},
	{Key: "IncorrectWords", Label: "incorrect_words"},
	{Key: "NumberMistakes", Label: "number_mistakes"},
	{Key: "ConjunctMistakes", Label: "conjunct_mistakes"},
	{Key: "Notes", Label: "notes"},
}

// ScaleValues are the choices offered for scale fields.
var ScaleValues = []string{"1", "2", "3", "4", "5"}

// ParseTemplates builds the template set with common functions.
func ParseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"t": func(lang, key string) template.HTML {
			return template.HTML(i18n.Get(lang, key))
		},
		"pathEscape":     url.PathEscape,
		"fieldValue":     fieldValue,
		"formatDuration": formatDuration,
		"statusClass":    statusClass,
		"progress":       progress,
		"ratingFields":   func() []RatingField { return RatingFields },
		"scaleValues":    func() []string { return ScaleValues },
		"list":           func(v ...string) []string { return v },
	}

	root := template.New("base").Funcs(funcMap)
	err := fs.WalkDir(templateFS, "templates", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		bytes, err := templateFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}
		name := strings.TrimPrefix(path, "templates/")
		if _, err := root.New(name).Parse(string(bytes)); err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// StaticFiles exposes embedded static assets.
func StaticFiles() http.FileSystem {
	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static assets missing: %v", err))
	}
	return http.FS(fsys)
}

// fieldValue renders an annotation value for a form control. JSON numbers
// decode as float64, so whole numbers are printed without a fraction.
func fieldValue(ann items.Annotation, key string) string {
	v, ok := ann[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", seconds)
}

func statusClass(s items.Status) string {
	if s == items.StatusAnnotated {
		return "status-done"
	}
	return "status-pending"
}

func progress(list []items.Item) string {
	done := 0
	for _, item := range list {
		if item.Status == items.StatusAnnotated {
			done++
		}
	}
	return fmt.Sprintf("%d/%d", done, len(list))
}
