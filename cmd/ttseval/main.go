package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ttseval/internal/config"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	v      *viper.Viper
	cfg    config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ttseval",
		Short:         "Offline tools for the TTS evaluation workbook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional YAML/TOML/JSON config file")
	rootCmd.PersistentFlags().String("log-level", a.v.GetString("log_level"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("workbook", a.v.GetString("workbook_path"), "Path to the evaluation workbook")
	cobra.CheckErr(a.v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(a.v.BindPFlag("workbook_path", rootCmd.PersistentFlags().Lookup("workbook")))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if configPath != "" {
			a.v.SetConfigFile(configPath)
			if err := a.v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file %s: %w", configPath, err)
			}
		}
		cfg, err := config.FromViper(a.v)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
		a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))
		return nil
	}

	rootCmd.AddCommand(
		newMigrateCommand(a),
		newGenerateCommand(a),
		newCompileCommand(a),
	)

	return rootCmd
}
