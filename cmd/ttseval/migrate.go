package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ttseval/internal/importer"
)

func newMigrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert the test-case CSV into the evaluation workbook",
		Long:  "Reads the ID/Sentence CSV and writes a workbook with identical Male and Female sheets and empty rating columns.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.migrate(cmd)
		},
	}

	cmd.Flags().String("csv", a.v.GetString("csv_path"), "Input CSV with ID and Sentence columns")
	cobra.CheckErr(a.v.BindPFlag("csv_path", cmd.Flags().Lookup("csv")))

	return cmd
}

func (a *app) migrate(cmd *cobra.Command) error {
	in, err := os.Open(a.cfg.CSVPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer in.Close()

	wb, err := importer.Migrate(in)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", a.cfg.CSVPath, err)
	}
	rows := 0
	if len(wb.Sheets) > 0 {
		rows = len(wb.Sheets[0].Rows)
	}
	a.logger.Info("read csv", slog.String("path", a.cfg.CSVPath), slog.Int("rows", rows))

	if err := os.MkdirAll(filepath.Dir(a.cfg.WorkbookPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := wb.Save(a.cfg.WorkbookPath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s with sheets %v\n", a.cfg.WorkbookPath, wb.SheetNames())
	return nil
}
