package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/subgloss/subgloss/internal/analysis"
	"github.com/subgloss/subgloss/internal/config"
	"github.com/subgloss/subgloss/internal/mirror"
	"github.com/subgloss/subgloss/internal/modal"
	"github.com/subgloss/subgloss/internal/selection"
	"github.com/subgloss/subgloss/internal/surface"
)

// Surface bundles everything one rendering surface owns: its selection
// store, its modal machine, its request manager, and its sync endpoint.
// The overlay surface owns the canonical Selection Order; the panel
// resyncs against it.
type Surface struct {
	ID      string
	Store   *selection.Store
	Machine *modal.Machine
	Manager *analysis.Manager
	Syncer  *surface.Syncer

	result    *analysis.Result
	errorText string
	status    string
}

// App drives two surfaces from one event loop.
type App struct {
	ctx      context.Context
	cfg      config.Config
	log      *zap.Logger
	surfaces []*Surface
	mirror   *mirror.Store // nil when mirroring is off

	script     []Line
	lineCursor int
	wordCursor int
	focus      int // index into surfaces
}

// New builds the app over an already-wired pair of surfaces. The first
// surface is treated as the overlay (canonical order owner).
func New(ctx context.Context, cfg config.Config, surfaces []*Surface, mirrorStore *mirror.Store, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		ctx:      ctx,
		cfg:      cfg,
		log:      log,
		surfaces: surfaces,
		mirror:   mirrorStore,
		script:   demoScript(),
	}
}

func (a *App) Init() tea.Cmd {
	if a.mirror == nil {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(a.surfaces))
	for _, s := range a.surfaces {
		cmds = append(cmds, a.restoreCmd(s.ID))
	}
	return tea.Batch(cmds...)
}

func (a *App) focused() *Surface { return a.surfaces[a.focus] }

func (a *App) currentLine() Line { return a.script[a.lineCursor] }

func (a *App) currentTokens() []string {
	return selection.Tokenize(a.currentLine().Original)
}

func (a *App) surfaceByID(id string) *Surface {
	for _, s := range a.surfaces {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(m)

	case analysisResultMsg:
		return a.handleResult(m)

	case retryDispatchMsg:
		s := a.surfaceByID(m.surfaceID)
		if s == nil {
			return a, nil
		}
		// The request may have been paused or replaced while the timer ran;
		// OnResult discards the answer in that case, so dispatch is safe.
		return a, a.dispatchCmd(s, m.req)

	case restoredMsg:
		s := a.surfaceByID(m.surfaceID)
		if s == nil || m.snap.Empty() {
			return a, nil
		}
		s.Store.ApplySnapshot(m.snap)
		s.Machine.ShowRequested(false)
		s.status = "selection restored"

	case errMsg:
		a.log.Warn("background command failed", zap.Error(m.error))
		a.focused().status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := a.focused()
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "tab":
		a.focus = (a.focus + 1) % len(a.surfaces)
	case "up", "k":
		if a.lineCursor > 0 {
			a.lineCursor--
			a.wordCursor = 0
		}
	case "down", "j":
		if a.lineCursor < len(a.script)-1 {
			a.lineCursor++
			a.wordCursor = 0
		}
	case "left", "h":
		if a.wordCursor > 0 {
			a.wordCursor--
		}
	case "right", "l":
		if a.wordCursor < len(a.currentTokens())-1 {
			a.wordCursor++
		}
	case " ", "enter":
		return a.toggleAtCursor()
	case "a":
		return a.startAnalysis()
	case "p":
		if s.Manager.Pause() {
			s.Syncer.BroadcastAnalyzing(false)
			s.status = "analysis paused"
		}
	case "n":
		if s.Machine.NewAnalysis() {
			s.result = nil
			s.errorText = ""
			s.status = ""
		}
	case "r":
		return a.manualRetry()
	case "c", "esc":
		if s.Machine.Close() {
			s.result = nil
			s.errorText = ""
			s.status = ""
		}
	case "x":
		s.Store.Clear()
		s.Machine.SelectionEmptied()
		s.result = nil
		s.errorText = ""
		s.Syncer.AfterLocalMutation(a.ctx)
		return a, a.mirrorCmd(s)
	}
	return a, nil
}

// toggleAtCursor flips the word under the cursor on the focused surface.
// Clicks are ignored while this surface is processing or while another
// surface advertises an analysis in flight.
func (a *App) toggleAtCursor() (tea.Model, tea.Cmd) {
	s := a.focused()
	if s.Machine.State() == modal.Processing {
		s.status = "analysis in progress"
		return a, nil
	}
	if s.Syncer.RemoteAnalyzing() {
		s.status = "another surface is analyzing"
		return a, nil
	}
	tokens := a.currentTokens()
	if len(tokens) == 0 {
		return a, nil
	}
	if a.wordCursor >= len(tokens) {
		a.wordCursor = len(tokens) - 1
	}
	intent := surface.WordIntent{
		Kind: surface.IntentToggle,
		Word: tokens[a.wordCursor],
		Pos: &selection.Position{
			ContainerID: a.currentLine().ID,
			Subtitle:    selection.SubtitleOriginal,
			Index:       a.wordCursor,
		},
	}
	if err := a.applyIntent(s, intent); err != nil {
		s.status = err.Error()
		return a, nil
	}
	if s.Store.Len() == 0 {
		s.Machine.SelectionEmptied()
	} else if st := s.Machine.State(); st == modal.Display || st == modal.Error {
		// Editing the selection abandons the shown result.
		s.Machine.NewAnalysis()
		s.result = nil
		s.errorText = ""
	} else {
		s.Machine.ShowRequested(false)
	}
	s.status = ""
	s.Syncer.AfterLocalMutation(a.ctx)
	return a, a.mirrorCmd(s)
}

// applyIntent routes a normalized word intent into the store. Intents
// without a position land on the fallback-key path.
func (a *App) applyIntent(s *Surface, intent surface.WordIntent) error {
	switch intent.Kind {
	case surface.IntentAdd:
		if intent.Pos == nil {
			s.Store.ToggleFallback(intent.Word)
			return nil
		}
		return s.Store.Add(intent.Word, *intent.Pos)
	case surface.IntentRemove:
		if intent.Pos == nil {
			s.Store.RemoveWord(intent.Word)
			return nil
		}
		s.Store.Remove(intent.Word, *intent.Pos)
		return nil
	default:
		if intent.Pos == nil {
			s.Store.ToggleFallback(intent.Word)
			return nil
		}
		_, err := s.Store.Toggle(intent.Word, *intent.Pos)
		return err
	}
}

func (a *App) startAnalysis() (tea.Model, tea.Cmd) {
	s := a.focused()
	// Reopen the overlay if it was closed with the selection intact.
	s.Machine.ShowRequested(s.Store.Len() == 0)
	req, err := s.Manager.Start(s.Store.Snapshot(), a.cfg.Analysis.ContextTypes)
	if err != nil {
		s.status = startFailureText(err)
		return a, nil
	}
	s.result = nil
	s.errorText = ""
	s.status = s.Manager.ProcessingStatus()
	s.Syncer.BroadcastAnalyzing(true)
	return a, a.dispatchCmd(s, req)
}

func (a *App) manualRetry() (tea.Model, tea.Cmd) {
	s := a.focused()
	req, err := s.Manager.ManualRetry()
	if err != nil {
		s.status = startFailureText(err)
		return a, nil
	}
	s.errorText = ""
	s.status = s.Manager.ProcessingStatus()
	s.Syncer.BroadcastAnalyzing(true)
	return a, a.dispatchCmd(s, req)
}

func (a *App) handleResult(m analysisResultMsg) (tea.Model, tea.Cmd) {
	s := a.surfaceByID(m.surfaceID)
	if s == nil {
		return a, nil
	}
	dec := s.Manager.OnResult(m.correlationID, m.res, m.err)
	switch dec.Disposition {
	case analysis.Displayed:
		s.result = dec.Result
		s.status = ""
		s.Syncer.BroadcastAnalyzing(false)
	case analysis.Retrying:
		s.status = dec.StatusText
		return a, retryTick(s.ID, dec.Request, dec.Delay)
	case analysis.Failed:
		s.errorText = dec.StatusText
		s.status = ""
		s.Syncer.BroadcastAnalyzing(false)
	}
	// Stale results fall through with no state change.
	return a, nil
}

// commands

func (a *App) dispatchCmd(s *Surface, req analysis.Request) tea.Cmd {
	return func() tea.Msg {
		res, err := s.Manager.Do(a.ctx, req)
		return analysisResultMsg{surfaceID: s.ID, correlationID: req.CorrelationID, res: res, err: err}
	}
}

func retryTick(surfaceID string, req analysis.Request, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return retryDispatchMsg{surfaceID: surfaceID, req: req}
	})
}

func (a *App) mirrorCmd(s *Surface) tea.Cmd {
	if a.mirror == nil {
		return nil
	}
	snap := s.Store.Snapshot()
	id := s.ID
	return func() tea.Msg {
		if snap.Empty() {
			if err := a.mirror.Delete(a.ctx, id); err != nil {
				return errMsg{err}
			}
			return nil
		}
		if err := a.mirror.Save(a.ctx, id, snap); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (a *App) restoreCmd(surfaceID string) tea.Cmd {
	return func() tea.Msg {
		snap, ok, err := a.mirror.Load(a.ctx, surfaceID)
		if err != nil {
			return errMsg{err}
		}
		if !ok {
			return nil
		}
		return restoredMsg{surfaceID: surfaceID, snap: snap}
	}
}

func startFailureText(err error) string {
	switch err {
	case analysis.ErrEmptySelection:
		return "select at least one word first"
	case analysis.ErrAlreadyInFlight:
		return "hold on, a request just went out"
	case analysis.ErrRateLimited:
		return "rate limit reached, wait a moment"
	default:
		return err.Error()
	}
}

// messages

type analysisResultMsg struct {
	surfaceID     string
	correlationID string
	res           analysis.Result
	err           error
}

type retryDispatchMsg struct {
	surfaceID string
	req       analysis.Request
}

type restoredMsg struct {
	surfaceID string
	snap      selection.Snapshot
}

type errMsg struct{ error }
