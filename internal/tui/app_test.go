package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/subgloss/subgloss/internal/analysis"
	"github.com/subgloss/subgloss/internal/config"
	"github.com/subgloss/subgloss/internal/modal"
	"github.com/subgloss/subgloss/internal/selection"
	"github.com/subgloss/subgloss/internal/surface"
)

type scriptedProvider struct {
	res analysis.Result
	err error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Analyze(ctx context.Context, q analysis.Query) (analysis.Result, error) {
	return p.res, p.err
}

func testConfig() config.Config {
	return config.Config{
		Analysis: config.AnalysisConfig{
			DebounceMs:   500,
			TimeoutSec:   30,
			MaxAttempts:  3,
			RatePerMin:   60,
			ContextTypes: []string{analysis.ContextLinguistic},
		},
		Sync:      config.SyncConfig{ResyncMinMs: 600, StalenessMs: 50},
		Languages: config.LanguageConfig{Source: "es", Target: "en"},
	}
}

func newTestApp(t *testing.T, provider analysis.Provider) *App {
	t.Helper()
	cfg := testConfig()
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

	var surfaces []*Surface
	for _, id := range []string{"overlay", "panel"} {
		store := selection.NewStore(cfg.Languages.Source, cfg.Languages.Target, nil)
		machine := modal.NewMachine(nil)
		manager := analysis.NewManager(provider, machine, analysisCfg, nil)
		syncer := surface.NewSyncer(id, "overlay", store, transport, syncCfg, nil)
		transport.Connect(id, syncer)
		surfaces = append(surfaces, &Surface{ID: id, Store: store, Machine: machine, Manager: manager, Syncer: syncer})
	}
	return New(context.Background(), cfg, surfaces, nil, nil)
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runeKey(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func TestToggleWordShowsOverlay(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{})
	s := app.focused()

	app.Update(key(tea.KeySpace))
	require.Equal(t, 1, s.Store.Len())
	require.Equal(t, modal.Selection, s.Machine.State())

	// Toggling the same word off again hides the overlay.
	app.Update(key(tea.KeySpace))
	require.Equal(t, 0, s.Store.Len())
	require.Equal(t, modal.Hidden, s.Machine.State())
}

func TestToggleSyncsToOtherSurface(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{})

	app.Update(key(tea.KeyRight))
	app.Update(key(tea.KeySpace))

	overlay, panel := app.surfaces[0], app.surfaces[1]
	require.Equal(t, []string{"hay"}, overlay.Store.Words())
	require.Equal(t, []string{"hay"}, panel.Store.Words())
}

func TestAnalyzeRoundTrip(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{res: analysis.Result{Analysis: "an idiom", Summary: "an idiom"}})
	s := app.focused()

	app.Update(key(tea.KeySpace))
	_, cmd := app.Update(runeKey('a'))
	require.NotNil(t, cmd)
	require.Equal(t, modal.Processing, s.Machine.State())

	// The other surface sees the advisory analyzing flag.
	require.True(t, app.surfaces[1].Syncer.RemoteAnalyzing())

	msg := cmd()
	res, ok := msg.(analysisResultMsg)
	require.True(t, ok)
	app.Update(res)

	require.Equal(t, modal.Display, s.Machine.State())
	require.NotNil(t, s.result)
	require.False(t, app.surfaces[1].Syncer.RemoteAnalyzing())
	require.Contains(t, app.View(), "an idiom")
}

func TestToggleAfterDisplayReturnsToSelection(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{res: analysis.Result{Analysis: "an idiom"}})
	s := app.focused()

	app.Update(key(tea.KeySpace))
	_, cmd := app.Update(runeKey('a'))
	app.Update(cmd())
	require.Equal(t, modal.Display, s.Machine.State())

	// Changing the selection abandons the shown result.
	app.Update(key(tea.KeyRight))
	app.Update(key(tea.KeySpace))
	require.Equal(t, modal.Selection, s.Machine.State())
	require.Nil(t, s.result)
}

func TestAnalyzeWithEmptySelection(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{})
	_, cmd := app.Update(runeKey('a'))
	require.Nil(t, cmd)
	require.Equal(t, modal.Hidden, app.focused().Machine.State())
	require.Contains(t, app.focused().status, "select at least one word")
}

func TestTransientFailureKeepsProcessing(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{err: errors.New("connection reset")})
	s := app.focused()

	app.Update(key(tea.KeySpace))
	_, cmd := app.Update(runeKey('a'))
	msg := cmd()

	_, retryCmd := app.Update(msg)
	require.NotNil(t, retryCmd, "a retry tick should be scheduled")
	require.Equal(t, modal.Processing, s.Machine.State())
	require.Contains(t, s.status, "attempt 2/3")
}

func TestPermanentFailureShowsError(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{err: errors.New("invalid api key")})
	s := app.focused()

	app.Update(key(tea.KeySpace))
	_, cmd := app.Update(runeKey('a'))
	app.Update(cmd())

	require.Equal(t, modal.Error, s.Machine.State())
	require.NotEmpty(t, s.errorText)

	// Manual retry re-arms from the error state.
	_, retryCmd := app.Update(runeKey('r'))
	require.NotNil(t, retryCmd)
	require.Equal(t, modal.Processing, s.Machine.State())
}

func TestAnalyzeAfterErrorStartsOver(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("invalid api key")}
	app := newTestApp(t, provider)
	s := app.focused()

	app.Update(key(tea.KeySpace))
	_, cmd := app.Update(runeKey('a'))
	app.Update(cmd())
	require.Equal(t, modal.Error, s.Machine.State())

	// The service comes back and the user presses analyze again instead
	// of retry. That must behave like a fresh request, not get stuck on
	// the old error.
	provider.err = nil
	provider.res = analysis.Result{Analysis: "an idiom"}
	s.Manager.SetClock(func() time.Time { return time.Now().Add(time.Second) })

	_, cmd = app.Update(runeKey('a'))
	require.NotNil(t, cmd)
	require.Equal(t, modal.Processing, s.Machine.State())
	require.Empty(t, s.errorText)

	app.Update(cmd())
	require.Equal(t, modal.Display, s.Machine.State())
	require.NotNil(t, s.result)
	require.Equal(t, "an idiom", s.result.Analysis)
}

func TestSyncedSelectionHighlightsOnPeer(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{})

	app.Update(key(tea.KeySpace))

	// The panel only learns the words, not the cue positions, so it
	// must still treat matching words as selected.
	panel := app.surfaces[1]
	word := selection.Tokenize(app.script[0].Original)[0]
	require.True(t, panel.Store.Selected(word, selection.Position{
		ContainerID: app.script[0].ID,
		Subtitle:    selection.SubtitleOriginal,
		Index:       0,
	}))
}

func TestPauseDiscardsLateResult(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{res: analysis.Result{Analysis: "late"}})
	s := app.focused()

	app.Update(key(tea.KeySpace))
	_, cmd := app.Update(runeKey('a'))

	app.Update(runeKey('p'))
	require.Equal(t, modal.Selection, s.Machine.State())

	// The in-flight answer arrives after the pause and is dropped.
	app.Update(cmd())
	require.Equal(t, modal.Selection, s.Machine.State())
	require.Nil(t, s.result)
}

func TestClicksBlockedWhilePeerAnalyzing(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{})

	// The overlay starts analyzing, then focus moves to the panel.
	app.Update(key(tea.KeySpace))
	app.Update(runeKey('a'))
	app.Update(key(tea.KeyTab))

	panel := app.focused()
	require.Equal(t, "panel", panel.ID)
	before := panel.Store.Len()
	app.Update(key(tea.KeySpace))
	require.Equal(t, before, panel.Store.Len())
	require.Contains(t, panel.status, "analyzing")
}

func TestTabSwitchesFocusAndCursorMoves(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{})

	require.Equal(t, "overlay", app.focused().ID)
	app.Update(key(tea.KeyTab))
	require.Equal(t, "panel", app.focused().ID)
	app.Update(key(tea.KeyTab))
	require.Equal(t, "overlay", app.focused().ID)

	app.Update(key(tea.KeyRight))
	app.Update(key(tea.KeyRight))
	require.Equal(t, 2, app.wordCursor)
	app.Update(key(tea.KeyLeft))
	require.Equal(t, 1, app.wordCursor)

	app.Update(key(tea.KeyDown))
	require.Equal(t, 1, app.lineCursor)
	require.Equal(t, 0, app.wordCursor, "line change resets the word cursor")
}

func TestClearEmptiesSelectionEverywhere(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{})

	app.Update(key(tea.KeySpace))
	app.Update(runeKey('x'))

	require.Equal(t, 0, app.surfaces[0].Store.Len())
	require.Equal(t, modal.Hidden, app.surfaces[0].Machine.State())
}

func TestViewRendersWithoutPanicking(t *testing.T) {
	app := newTestApp(t, &scriptedProvider{})
	out := app.View()
	require.True(t, strings.Contains(out, "Subgloss"))
	require.Contains(t, out, "overlay")
	require.Contains(t, out, "panel")
}
