package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/opsdeck/internal/board"
	"github.com/tinytelemetry/opsdeck/internal/config"
	"github.com/tinytelemetry/opsdeck/internal/httpserver"
	"github.com/tinytelemetry/opsdeck/internal/logging"
)

// loop is the renderer-less model: every message goes to the board.
type loop struct {
	board *board.Board
}

func (l loop) Init() tea.Cmd { return l.board.Init() }

func (l loop) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return l, l.board.Update(msg)
}

func (l loop) View() string { return "" }

// runServer runs the board headless with the HTTP API.
func runServer(cfg config.Config) error {
	logger, closeLog, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Pretty: cfg.LogFile == "" && isatty.IsTerminal(os.Stderr.Fd()),
	})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := board.New(ctx, cfg.Board, board.Deps{Log: logger})
	p := tea.NewProgram(loop{board: b},
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)

	apiServer := httpserver.NewServer(cfg.APIAddr, b, p, logger)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(cfg)

	g, gctx := errgroup.WithContext(ctx)

	// Event loop. Cancelling ctx kills the program and aborts in-flight fetches.
	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("event loop: %w", err)
		}
		return nil
	})

	// API goes down with the loop, so no write waits on a dead program.
	g.Go(func() error {
		return shutdownOnDone(gctx, apiServer.Stop)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}

	signal.Stop(sigCh)
	logger.Info().Msg("stopped")
	return nil
}

// shutdownOnDone blocks until ctx is done, then runs stop.
func shutdownOnDone(ctx context.Context, stop func() error) error {
	<-ctx.Done()
	if err := stop(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

func printStartupBanner(cfg config.Config) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, cyan.Bold(true).Render("    opsdeckd")+" "+dim.Render("v"+version))
	lines = append(lines, "")
	lines = append(lines, dim.Render("    ─────────────────────────────────"))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Endpoints"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	lines = append(lines, fmt.Sprintf("    %s  Backend        %s", check, cyan.Render(cfg.BaseURL)))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Contexts"))
	lines = append(lines, "")
	for _, c := range cfg.Contexts {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s %s", check, c.DisplayName(),
			dim.Render("every "+c.Cadence.String()+":"), strings.Join(c.Sources, ", ")))
	}
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}
