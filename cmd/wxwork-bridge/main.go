package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/marcogenualdo/wxwork-bridge/internal/config"
	"github.com/marcogenualdo/wxwork-bridge/internal/server"
	"github.com/marcogenualdo/wxwork-bridge/internal/state"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "/etc/wxwork-bridge/config.yaml", "path to configuration file")
	configPathShort := flag.String("c", "/etc/wxwork-bridge/config.yaml", "path to configuration file (short)")
	showVersion := flag.Bool("version", false, "show version and exit")
	showHelp := flag.Bool("help", false, "show help and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wxwork-bridge v%s\n", version)
		os.Exit(0)
	}

	if *showHelp {
		fmt.Println("wxwork-bridge - WeChat Work SSO and notification bridge")
		fmt.Println("\nUsage:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfgPath := *configPath
	if *configPathShort != "/etc/wxwork-bridge/config.yaml" {
		cfgPath = *configPathShort
	}

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("starting wxwork-bridge",
		"version", version,
		"corp_id", cfg.WXWork.CorpID,
		"projects", len(cfg.Projects),
	)

	store, err := state.New(cfg.State)
	if err != nil {
		return fmt.Errorf("failed to create state store: %w", err)
	}
	logger.Info("state store initialized", "backend", cfg.State.Backend)

	srv, err := server.New(*cfg, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
