package tui

import (
	"fmt"
	"strings"

	"github.com/subgloss/subgloss/internal/modal"
	"github.com/subgloss/subgloss/internal/selection"
)

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Subgloss"))
	b.WriteString("\n\n")
	b.WriteString(a.renderScript())
	b.WriteString("\n")
	for i, s := range a.surfaces {
		b.WriteString(a.renderSurface(s, i == a.focus))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("[space] toggle word  [←/→] word  [↑/↓] line  [tab] surface  [a] analyze  [p] pause  [n] new  [r] retry  [x] clear  [c] close  [q] quit"))
	return b.String()
}

// renderScript shows the dual subtitles with the word cursor and the
// focused surface's selection highlighted on the original line.
func (a *App) renderScript() string {
	var b strings.Builder
	focused := a.focused()
	for i, line := range a.script {
		marker := "  "
		if i == a.lineCursor {
			marker = "▶ "
		}
		b.WriteString(marker + a.renderOriginal(line, i == a.lineCursor, focused) + "\n")
		b.WriteString("  " + translatedStyle.Render(line.Translated) + "\n")
	}
	return b.String()
}

func (a *App) renderOriginal(line Line, active bool, s *Surface) string {
	tokens := selection.Tokenize(line.Original)
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		pos := selection.Position{
			ContainerID: line.ID,
			Subtitle:    selection.SubtitleOriginal,
			Index:       i,
		}
		styled := tok
		if s.Store.Selected(tok, pos) {
			styled = selectedStyle.Render(tok)
		}
		if active && i == a.wordCursor {
			styled = cursorStyle.Render(tok)
		}
		parts[i] = styled
	}
	return strings.Join(parts, " ")
}

func (a *App) renderSurface(s *Surface, focused bool) string {
	var b strings.Builder

	name := s.ID
	if s.Syncer.IsOwner() {
		name += " (owner)"
	}
	header := fmt.Sprintf("%s  %s", name, badgeStyle.Render(s.Machine.State().String()))
	if s.Syncer.RemoteAnalyzing() {
		header += "  " + remoteBusyStyle.Render("peer analyzing")
	}
	b.WriteString(header + "\n")

	switch s.Machine.State() {
	case modal.Hidden:
		b.WriteString(dimStyle.Render("no selection") + "\n")
	case modal.Selection:
		b.WriteString("selected: " + s.Store.SelectedText() + "\n")
	case modal.Processing:
		text := s.status
		if text == "" {
			text = s.Manager.ProcessingStatus()
		}
		b.WriteString("selected: " + s.Store.SelectedText() + "\n")
		b.WriteString(text + "\n")
	case modal.Display:
		b.WriteString("selected: " + s.Store.SelectedText() + "\n")
		b.WriteString(renderResult(s) + "\n")
	case modal.Error:
		b.WriteString("selected: " + s.Store.SelectedText() + "\n")
		b.WriteString(errorStyle.Render(s.errorText) + "\n")
	}
	if s.status != "" && s.Machine.State() != modal.Processing {
		b.WriteString(dimStyle.Render(s.status) + "\n")
	}

	style := surfaceStyle
	if focused {
		style = focusedSurfaceStyle
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func renderResult(s *Surface) string {
	if s.result == nil {
		return ""
	}
	res := s.result
	if !res.IsStructured {
		return res.Analysis
	}
	var b strings.Builder
	if res.Summary != "" {
		b.WriteString(res.Summary + "\n")
	}
	for _, sec := range res.Sections {
		b.WriteString(sectionTitleStyle.Render(sec.Title) + "\n")
		b.WriteString(sec.Body + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
