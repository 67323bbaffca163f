package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds runtime configuration shared by the server and the CLI.
type Config struct {
	Port         string
	LogLevel     string
	StoreBackend string
	DBDSN        string

	WorkbookPath     string
	WorkbookCacheTTL time.Duration
	AudioDir         string
	AnnotationDir    string
	DefaultSheet     string

	CSVPath        string
	CompiledPath   string
	MissingColumns string

	TTSURL                string
	TTSModel              string
	TTSSpeaker            int
	TTSInterval           time.Duration
	TTSTimeout            time.Duration
	TTSPollInterval       time.Duration
	TTSInsecureSkipVerify bool
}

// SetDefaults registers every key with its default value. Each key is also
// read from the upper-cased environment variable of the same name.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "3002")
	v.SetDefault("log_level", "info")
	v.SetDefault("store_backend", BackendFile)
	v.SetDefault("db_dsn", "")

	v.SetDefault("workbook_path", "model_eval/Model Evaluation Results.xlsx")
	v.SetDefault("workbook_cache_ttl", 30*time.Second)
	v.SetDefault("audio_dir", "model_eval/audio")
	v.SetDefault("annotation_dir", "model_eval/annotations")
	v.SetDefault("default_sheet", "Atika - Male")

	v.SetDefault("csv_path", "model_eval/texts_to_test.csv")
	v.SetDefault("compiled_path", "model_eval/Model Evaluation Results_Compiled.xlsx")
	v.SetDefault("missing_columns", "skip")

	v.SetDefault("tts_url", "https://read.bangla.gov.bd:9395")
	v.SetDefault("tts_model", "vits")
	v.SetDefault("tts_speaker", 0)
	v.SetDefault("tts_interval", 200*time.Millisecond)
	v.SetDefault("tts_timeout", 600*time.Second)
	v.SetDefault("tts_poll_interval", time.Second)
	v.SetDefault("tts_insecure_skip_verify", true)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load parses environment variables into Config and validates required values.
func Load() (Config, error) {
	v := viper.New()
	SetDefaults(v)
	return FromViper(v)
}

// LoadFile is Load with an optional YAML/TOML/JSON file underneath the
// environment.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:         v.GetString("port"),
		LogLevel:     v.GetString("log_level"),
		StoreBackend: strings.ToLower(v.GetString("store_backend")),
		DBDSN:        v.GetString("db_dsn"),

		WorkbookPath:     v.GetString("workbook_path"),
		WorkbookCacheTTL: v.GetDuration("workbook_cache_ttl"),
		AudioDir:         v.GetString("audio_dir"),
		AnnotationDir:    v.GetString("annotation_dir"),
		DefaultSheet:     v.GetString("default_sheet"),

		CSVPath:        v.GetString("csv_path"),
		CompiledPath:   v.GetString("compiled_path"),
		MissingColumns: v.GetString("missing_columns"),

		TTSURL:                v.GetString("tts_url"),
		TTSModel:              v.GetString("tts_model"),
		TTSSpeaker:            v.GetInt("tts_speaker"),
		TTSInterval:           v.GetDuration("tts_interval"),
		TTSTimeout:            v.GetDuration("tts_timeout"),
		TTSPollInterval:       v.GetDuration("tts_poll_interval"),
		TTSInsecureSkipVerify: v.GetBool("tts_insecure_skip_verify"),
	}

	switch cfg.StoreBackend {
	case BackendFile:
	case BackendPostgres:
		if cfg.DBDSN == "" {
			return Config{}, errors.New("DB_DSN is required for the postgres store backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.WorkbookCacheTTL <= 0 {
		cfg.WorkbookCacheTTL = 30 * time.Second
	}

	return cfg, nil
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
