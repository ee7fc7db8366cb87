package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/stats"
	"github.com/verte-zerg/kicktrain/internal/timer"
)

const keyHints = "1-5 shot  0 miss  g goal  s save  n new game  q quit"

// View implements tea.Model.
func (m *Model) View() string {
	var blocks []string
	if m.prompt {
		blocks = []string{
			m.renderPrompt(),
			footerStyle.Render("y restore  n discard  q quit"),
		}
	} else {
		blocks = []string{
			m.renderHeader(),
			m.renderGoal(),
			m.renderStatus(),
		}
		if m.summary != nil {
			blocks = append(blocks, m.renderSummary())
		}
		if m.notice != "" {
			blocks = append(blocks, footerStyle.Render(m.notice))
		}
		blocks = append(blocks, footerStyle.Render(keyHints))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, blocks...)
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderPrompt() string {
	s := m.pending
	return statusStyle.Render(fmt.Sprintf("Restore unfinished %s session (%d/%d hits)?", s.Mode, s.Hits, s.Total))
}

func (m *Model) renderHeader() string {
	s := m.snap.Session
	header := fmt.Sprintf("kicktrain · %s", s.Mode)
	switch s.Mode {
	case model.ModeTarget:
		header += fmt.Sprintf(" · %d/%d goals", s.Hits, s.TargetGoal)
	case model.ModePerfection:
		header += fmt.Sprintf(" · %d in a row per segment", s.PerfectionTarget)
	case model.ModeTimer:
		if m.hasPhase && m.phase.Round > 0 {
			header += fmt.Sprintf(" · round %d/%d", m.phase.Round, m.phase.Rounds)
		}
	}
	return header
}

// renderGoal draws the five segments with the current target highlighted.
func (m *Model) renderGoal() string {
	boxes := make([]string, 0, model.SegmentCount)
	for _, seg := range model.Segments {
		style := segmentStyle
		if seg == m.snap.Target && m.showTarget() {
			style = targetStyle
		}
		label := fmt.Sprintf("%d", seg)
		if m.snap.Session.Mode == model.ModePerfection {
			prog := m.snap.Session.PerfectionProgress[seg.Index()]
			if prog.Completed {
				label += " ✓"
			} else {
				label += fmt.Sprintf(" %d", prog.Current)
			}
		}
		boxes = append(boxes, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

// showTarget hides the timer target until the shoot cue.
func (m *Model) showTarget() bool {
	if m.snap.Session.Mode != model.ModeTimer {
		return true
	}
	return m.hasPhase && m.phase.Phase != timer.PhaseIdle && m.phase.Phase != timer.PhaseWaiting
}

func (m *Model) renderStatus() string {
	if !m.snap.Active {
		return footerStyle.Render("No active session")
	}
	if m.snap.Session.Mode == model.ModeTimer && m.hasPhase {
		return m.timerStatus()
	}
	if m.last != nil {
		return outcomeText(m.last.Hit, m.last.Target, m.last.Shot)
	}
	if m.snap.Target.Valid() {
		return statusStyle.Render(fmt.Sprintf("Shoot at %d", m.snap.Target))
	}
	return ""
}

func (m *Model) timerStatus() string {
	e := m.phase
	if e.Corrected {
		text := fmt.Sprintf("Corrected: shot at %d", m.lastShot())
		if m.last != nil && m.last.Hit {
			return hitStyle.Render(text)
		}
		return missStyle.Render(text)
	}
	switch e.Phase {
	case timer.PhaseReady:
		return statusStyle.Render(fmt.Sprintf("Get ready · target %d", e.Target))
	case timer.PhaseWaiting:
		return statusStyle.Render("Wait for it...")
	case timer.PhaseShoot:
		return hitStyle.Render(fmt.Sprintf("SHOOT at %d!", e.Target))
	case timer.PhaseResolved:
		return m.timerResult(e)
	}
	if m.engine.Timer().Running() {
		return statusStyle.Render("Get ready")
	}
	return ""
}

func (m *Model) timerResult(e timer.Event) string {
	switch e.Result {
	case timer.ResultHit:
		text := fmt.Sprintf("Hit in %.0f ms (%s)", e.ReactionMs, stats.RateReaction(e.ReactionMs).Label)
		if m.engine.Timer().CorrectionOpen() {
			text += " · press the actual segment to correct"
		}
		return hitStyle.Render(text)
	case timer.ResultMiss:
		if shot := m.lastShot(); shot.Valid() {
			return missStyle.Render(fmt.Sprintf("Miss: shot at %d in %.0f ms", shot, e.ReactionMs))
		}
		return missStyle.Render("Miss")
	case timer.ResultTooEarly:
		return missStyle.Render("Too early!")
	case timer.ResultTimeout:
		return missStyle.Render("Too slow!")
	}
	return ""
}

func (m *Model) lastShot() model.Segment {
	if m.last == nil {
		return 0
	}
	return m.last.Shot
}

func outcomeText(hit bool, target, shot model.Segment) string {
	if hit {
		return hitStyle.Render(fmt.Sprintf("Hit %d!", target))
	}
	if shot.Valid() {
		return missStyle.Render(fmt.Sprintf("Miss: aimed %d, shot %d", target, shot))
	}
	return missStyle.Render(fmt.Sprintf("Miss on %d", target))
}

func (m *Model) renderSummary() string {
	s := m.summary
	lines := []string{
		statusStyle.Render(capitalize(s.Reason)),
		fmt.Sprintf("%d/%d hits · best streak %d", s.Entry.Hits, s.Entry.Total, s.Entry.StreakBest),
	}
	if ts := s.Entry.TimerStats; ts != nil {
		rep := stats.SummarizeTimer(*ts)
		if rep.Hits > 0 {
			lines = append(lines, fmt.Sprintf("Reaction avg %.0f ms · best %.0f ms (%s)", rep.Avg, rep.Best, stats.RateReaction(rep.Avg).Label))
		}
		lines = append(lines, fmt.Sprintf("Too early %d · timeouts %d", ts.TooEarlyShots, ts.Timeouts))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	s := m.snap.Session
	if s.Mode == "" {
		return ""
	}
	segments := []string{
		fmt.Sprintf("Hits %d/%d %.1f%%", s.Hits, s.Total, s.HitRate()*100),
		fmt.Sprintf("Streak %d", m.snap.Streak),
		fmt.Sprintf("Score %d", m.snap.Score),
		fmt.Sprintf("Best %d", m.snap.MaxStreak),
	}
	if lt := m.snap.Lifetime; lt.TotalShots > 0 {
		segments = append(segments, fmt.Sprintf("All-time %.1f%%", stats.HitRate(lt.TotalHits, lt.TotalShots)*100))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
