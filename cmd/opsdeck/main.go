package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/opsdeck/internal/board"
	"github.com/tinytelemetry/opsdeck/internal/config"
	"github.com/tinytelemetry/opsdeck/internal/logging"
	"github.com/tinytelemetry/opsdeck/internal/tui"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var envFile string
	var showVersion bool
	var dumpConfig bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/opsdeck/config.yml)")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&dumpConfig, "dump-config", false, "print the effective configuration as YAML and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("opsdeck - Operations Dashboard\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if dumpConfig {
		out, err := config.Dump(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg config.Config) error {
	// The terminal belongs to the TUI, so logs go to a file or nowhere.
	logCfg := logging.Config{Level: cfg.LogLevel, File: cfg.LogFile}
	if logCfg.File == "" {
		logCfg.File = logging.DefaultFile("opsdeck")
	}
	if logCfg.File == "" {
		logCfg.Out = io.Discard
	}
	logger, closeLog, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := board.New(ctx, cfg.Board, board.Deps{Log: logger})
	app := tui.NewApp(b, logger)

	logger.Info().Str("version", version).Str("base_url", cfg.BaseURL).Int("contexts", len(cfg.Contexts)).Msg("starting")

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}

	logger.Info().Msg("stopped")
	return nil
}
