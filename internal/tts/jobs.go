package tts

import (
	"log/slog"
	"strings"

	"ttseval/internal/workbook"
)

// CollectJobs flattens every sheet's rows into synthesis jobs in workbook
// order. Sheets without ItemID/Text columns and rows with a blank item ID
// or blank text are skipped.
func CollectJobs(logger *slog.Logger, wb *workbook.Workbook) []Job {
	var jobs []Job
	for _, sheet := range wb.Sheets {
		logger.Info("processing sheet", slog.String("sheet", sheet.Name))
		if !sheet.HasColumns(workbook.ColumnItemID, workbook.ColumnText) {
			logger.Warn("skipping sheet: missing ItemID or Text column", slog.String("sheet", sheet.Name))
			continue
		}
		rows, err := workbook.ItemRows(sheet)
		if err != nil {
			logger.Warn("skipping sheet", slog.String("sheet", sheet.Name), slog.String("error", err.Error()))
			continue
		}
		for i, row := range rows {
			if strings.TrimSpace(row.ID) == "" {
				if strings.TrimSpace(row.Text) != "" {
					logger.Warn("skipping row without item id", slog.String("sheet", sheet.Name), slog.Int("row", i))
				}
				continue
			}
			if strings.TrimSpace(row.Text) == "" {
				logger.Info("skipping empty text", slog.String("sheet", sheet.Name), slog.String("item_id", row.ID))
				continue
			}
			jobs = append(jobs, Job{Sheet: sheet.Name, ItemID: row.ID, Text: row.Text})
		}
	}
	return jobs
}
