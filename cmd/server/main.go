package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ttseval/internal/config"
	apphttp "ttseval/internal/http"
	"ttseval/internal/items"
	"ttseval/internal/storage"
	"ttseval/internal/ui"
	"ttseval/internal/workbook"
	"ttseval/migrations"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))

	store, closeStore, err := storage.Open(ctx, logger, cfg, migrations.Files)
	if err != nil {
		return err
	}
	defer closeStore()

	sheets := workbook.NewSource(cfg.WorkbookPath, cfg.WorkbookCacheTTL)
	audio := storage.NewAudioDir(cfg.AudioDir)
	service := items.NewService(logger, sheets, store, audio)

	tmpl, err := ui.ParseTemplates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	staticFS := ui.StaticFiles()

	handler := apphttp.NewServer(logger, service, audio, tmpl, staticFS, apphttp.NewMetrics(), cfg.DefaultSheet)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", server.Addr),
			slog.String("workbook", cfg.WorkbookPath),
			slog.String("store", cfg.StoreBackend),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown server: %w", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
