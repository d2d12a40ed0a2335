// Package config loads the rucksack configuration file and sets up
// process logging from it.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/agentic-research/rucksack/internal/rucksack"
)

// FileName is the configuration file looked up under Dir.
const FileName = "config.hcl"

// Config is the tool configuration. Every field is optional in the
// file; zero values fall back to the defaults below.
type Config struct {
	GlobalDir     string `hcl:"global_dir,optional"`
	StoreDirname  string `hcl:"store_dirname,optional"`
	KritaBinary   string `hcl:"krita_binary,optional"`
	OxipngBinary  string `hcl:"oxipng_binary,optional"`
	JournalPath   string `hcl:"journal_path,optional"`
	LogLevel      string `hcl:"log_level,optional"`
	LogFile       string `hcl:"log_file,optional"`
	LogMaxSizeMB  int    `hcl:"log_max_size_mb,optional"`
	LogMaxBackups int    `hcl:"log_max_backups,optional"`
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "rucksack"), nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{
		StoreDirname:  rucksack.LocalDirName,
		KritaBinary:   "krita",
		OxipngBinary:  "oxipng",
		LogLevel:      "info",
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
	}
	if dir, err := Dir(); err == nil {
		cfg.GlobalDir = filepath.Join(dir, "global")
		cfg.JournalPath = filepath.Join(dir, "journal.db")
	}
	return cfg
}

// Load reads the configuration at path. An empty path means the
// default location, and a missing file there is not an error, just
// the defaults. Fields left out of the file keep their defaults.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		dir, err := Dir()
		if err != nil {
			return Default(), err
		}
		path = filepath.Join(dir, FileName)
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("load config %s: %w", path, err)
	}

	cfg := Config{}
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return Default(), fmt.Errorf("load config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.GlobalDir == "" {
		cfg.GlobalDir = def.GlobalDir
	}
	if cfg.StoreDirname == "" {
		cfg.StoreDirname = def.StoreDirname
	}
	if cfg.KritaBinary == "" {
		cfg.KritaBinary = def.KritaBinary
	}
	if cfg.OxipngBinary == "" {
		cfg.OxipngBinary = def.OxipngBinary
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = def.JournalPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.LogMaxSizeMB == 0 {
		cfg.LogMaxSizeMB = def.LogMaxSizeMB
	}
	if cfg.LogMaxBackups == 0 {
		cfg.LogMaxBackups = def.LogMaxBackups
	}
}

// SetupLogging installs the default slog logger: text on stderr, or
// rotating JSON files when log_file is set.
func (c Config) SetupLogging() {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}

	var handler slog.Handler
	if c.LogFile != "" {
		var w io.Writer = &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    c.LogMaxSizeMB,
			MaxBackups: c.LogMaxBackups,
		}
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
