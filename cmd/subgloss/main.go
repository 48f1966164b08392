package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/subgloss/subgloss/internal/analysis"
	"github.com/subgloss/subgloss/internal/config"
	"github.com/subgloss/subgloss/internal/mirror"
	"github.com/subgloss/subgloss/internal/modal"
	"github.com/subgloss/subgloss/internal/selection"
	"github.com/subgloss/subgloss/internal/surface"
	"github.com/subgloss/subgloss/internal/tui"
)

const (
	overlayID = "overlay"
	panelID   = "panel"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := buildLogger(cfg.Debug)
	defer func() { _ = logger.Sync() }()

	var mirrorStore *mirror.Store
	if cfg.Mirror.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			log.Fatalf("mkdir db dir: %v", err)
		}
		db, err := mirror.Open(cfg.Database.Path)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer db.Close()
		mirrorStore = mirror.NewStore(db, cfg.Mirror.TTL())
		if n, err := mirrorStore.Sweep(ctx); err == nil && n > 0 {
			logger.Debug("expired snapshots swept", zap.Int64("rows", n))
		}
	}

	provider := analysisProvider(cfg)
	transport := surface.NewInprocTransport()

	analysisCfg := analysis.Config{
		DebounceWindow:  cfg.Analysis.DebounceWindow(),
		ProviderTimeout: cfg.Analysis.Timeout(),
		MaxAttempts:     cfg.Analysis.MaxAttempts,
		RateCap:         cfg.Analysis.RatePerMin,
		RateWindow:      analysis.DefaultConfig().RateWindow,
	}
	syncCfg := surface.SyncConfig{
		ResyncMinInterval: cfg.Sync.ResyncMinInterval(),
		StalenessWindow:   cfg.Sync.StalenessWindow(),
	}

	// The overlay captured the sentence, so it owns the canonical order.
	overlay := buildSurface(overlayID, cfg, provider, transport, analysisCfg, syncCfg, logger)
	panel := buildSurface(panelID, cfg, provider, transport, analysisCfg, syncCfg, logger)

	app := tui.New(ctx, cfg, []*tui.Surface{overlay, panel}, mirrorStore, logger)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func buildSurface(id string, cfg config.Config, provider analysis.Provider, transport *surface.InprocTransport,
	analysisCfg analysis.Config, syncCfg surface.SyncConfig, logger *zap.Logger) *tui.Surface {
	slog := logger.With(zap.String("surface", id))
	store := selection.NewStore(cfg.Languages.Source, cfg.Languages.Target, slog)
	machine := modal.NewMachine(slog)
	manager := analysis.NewManager(provider, machine, analysisCfg, slog)
	syncer := surface.NewSyncer(id, overlayID, store, transport, syncCfg, slog)
	transport.Connect(id, syncer)
	return &tui.Surface{ID: id, Store: store, Machine: machine, Manager: manager, Syncer: syncer}
}

func analysisProvider(cfg config.Config) analysis.Provider {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider.Name)) {
	case "gemini":
		if key := cfg.Provider.ResolveAPIKey(); key != "" {
			return analysis.NewGeminiProvider(key, cfg.Provider.Model)
		}
		return analysis.NewHeuristicProvider()
	default:
		return analysis.NewHeuristicProvider()
	}
}

func buildLogger(debug bool) *zap.Logger {
	if !debug {
		return zap.NewNop()
	}
	// A TUI owns stdout, so debug logs go to a file next to the config.
	path := filepath.Join(os.TempDir(), "subgloss-debug.log")
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
