package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ttseval/internal/compiler"
	"ttseval/internal/storage"
	"ttseval/internal/workbook"
	"ttseval/migrations"
)

func newCompileCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Write collected annotations into a compiled copy of the workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.compile(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("output", a.v.GetString("compiled_path"), "Compiled workbook path")
	flags.String("annotations", a.v.GetString("annotation_dir"), "Annotation directory for the file store")
	flags.String("store", a.v.GetString("store_backend"), "Annotation store backend (file or postgres)")
	flags.String("missing-columns", a.v.GetString("missing_columns"), "What to do when a sheet lacks a rating column: skip, create, or error")

	for key, name := range map[string]string{
		"compiled_path":   "output",
		"annotation_dir":  "annotations",
		"store_backend":   "store",
		"missing_columns": "missing-columns",
	} {
		cobra.CheckErr(a.v.BindPFlag(key, flags.Lookup(name)))
	}

	return cmd
}

func (a *app) compile(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := a.cfg

	policy, err := compiler.ParsePolicy(cfg.MissingColumns)
	if err != nil {
		return err
	}

	in, err := workbook.Open(cfg.WorkbookPath)
	if err != nil {
		return err
	}

	store, closeStore, err := storage.Open(ctx, a.logger, cfg, migrations.Files)
	if err != nil {
		return err
	}
	defer closeStore()

	out, report, err := compiler.New(a.logger, store, policy).Compile(ctx, in)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.CompiledPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := out.Save(cfg.CompiledPath); err != nil {
		return err
	}

	for _, sr := range report.Sheets {
		if len(sr.SkippedColumns) > 0 {
			a.logger.Warn("columns skipped",
				slog.String("sheet", sr.Sheet),
				slog.Any("columns", sr.SkippedColumns),
			)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compiled %d sheets, %d rows updated, saved to %s\n",
		len(report.Sheets), report.Updated(), cfg.CompiledPath)
	return nil
}
