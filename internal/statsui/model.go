// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/stats"
	"github.com/verte-zerg/kicktrain/internal/store"
)

type tab int

const (
	tabOverview tab = iota
	tabSegments
	tabHistory
	tabTrends
	tabTimer
	tabCount
)

var tabTitles = [tabCount]string{"Overview", "Segments", "History", "Trends", "Timer"}

const (
	colorAccent = lipgloss.Color("#C89A3A")
	colorText   = lipgloss.Color("#F0F0F0")
	colorMuted  = lipgloss.Color("#8C8C8C")
	colorFaint  = lipgloss.Color("#6E6E6E")
	colorBorder = lipgloss.Color("#4A4A4A")
)

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(colorMuted)
	activeTabStyle = tabStyle.Copy().Foreground(colorAccent).Bold(true).Underline(true)
	hintStyle      = lipgloss.NewStyle().Foreground(colorFaint)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle      = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(colorBorder)
	cardLabelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	cardValueStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true)
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	repo *store.Repo
	cfg  model.StatsConfig

	report  stats.Report
	weights [model.SegmentCount]float64

	active tab
	pages  [tabCount]viewport.Model
	table  table.Model
	form   *settingsForm

	width  int
	height int
}

// NewModel constructs a stats UI model.
func NewModel(repo *store.Repo, cfg model.StatsConfig) *Model {
	m := &Model{
		repo:  repo,
		cfg:   cfg,
		table: table.New(table.WithColumns(segColumns()), table.WithStyles(segTableStyles())),
	}
	for i := range m.pages {
		m.pages[i] = viewport.New(0, 0)
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.fillPages()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.form != nil {
			return m.updateForm(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h", "shift+tab":
		m.switchTab(-1)
		return m, nil
	case "right", "l", "tab":
		m.switchTab(1)
		return m, nil
	case "=", "+":
		m.cfg.CurveWindow = stepWindow(m.cfg.CurveWindow, 1)
		m.fillPages()
		return m, nil
	case "-":
		m.cfg.CurveWindow = stepWindow(m.cfg.CurveWindow, -1)
		m.fillPages()
		return m, nil
	case "/":
		m.form = newSettingsForm(m.cfg, m.width)
		return m, m.form.focus(0)
	case "r":
		m.reload()
		return m, nil
	}
	var cmd tea.Cmd
	if m.active == tabSegments {
		m.table, cmd = m.table.Update(msg)
	} else {
		m.pages[m.active], cmd = m.pages[m.active].Update(msg)
	}
	return m, cmd
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.form = nil
		return m, nil
	case tea.KeyEnter:
		cfg, err := m.form.apply(m.cfg)
		if err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		m.cfg = cfg
		m.form = nil
		m.reload()
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		return m, m.form.focus(m.form.index + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.form.focus(m.form.index - 1)
	}
	return m, m.form.update(msg)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	body := m.bodyHeight()
	return strings.Join([]string{
		fit(m.renderTabs(), m.width, 1),
		fit(hintStyle.Render(m.settingsLine()), m.width, 1),
		fit(m.renderBody(), m.width, body),
		fit(m.renderHelp(), m.width, 1),
	}, "\n")
}

func (m *Model) bodyHeight() int {
	return maxInt(1, m.height-3)
}

func (m *Model) resize() {
	h := m.bodyHeight()
	for i := range m.pages {
		m.pages[i].Width = m.width
		m.pages[i].Height = h
	}
	m.table.SetWidth(m.width)
	m.table.SetHeight(maxInt(1, h-1))
}

func (m *Model) switchTab(delta int) {
	m.active = tab((int(m.active) + delta + int(tabCount)) % int(tabCount))
	if m.active == tabSegments {
		m.table.Focus()
	} else {
		m.table.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(tabTitles))
	for i, title := range tabTitles {
		style := tabStyle
		if tab(i) == m.active {
			style = activeTabStyle
		}
		parts = append(parts, style.Render(title))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) settingsLine() string {
	mode := "all"
	if m.cfg.Mode != "" {
		mode = string(m.cfg.Mode)
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	return fmt.Sprintf("mode=%s  last=%s  window=%d  sessions=%d", mode, last, m.cfg.CurveWindow, len(m.report.History))
}

func (m *Model) renderHelp() string {
	if m.form != nil {
		if m.form.err != "" {
			return errorStyle.Render(m.form.err)
		}
		return hintStyle.Render("tab: next field  enter: apply  esc: cancel")
	}
	return hintStyle.Render("←/→ tabs  ↑/↓ scroll  -/= window  / settings  r reload  q quit")
}

func (m *Model) renderBody() string {
	if m.form != nil {
		return m.form.view()
	}
	if m.active == tabSegments {
		if m.report.Lifetime.TotalShots == 0 {
			return "No shots recorded yet."
		}
		return m.table.View()
	}
	return m.pages[m.active].View()
}

// reload reads stats and weights from the repo and refreshes every tab.
func (m *Model) reload() {
	ctx := context.Background()
	m.report = stats.BuildReport(ctx, m.repo, m.cfg)
	m.weights = [model.SegmentCount]float64{1, 1, 1, 1, 1}
	var weights [model.SegmentCount]float64
	if m.repo.Load(ctx, store.KeyAdaptiveWeights, &weights) {
		m.weights = weights
	}
	m.table.SetRows(segRows(m.report.Lifetime.SegmentStats, m.weights))
	m.fillPages()
}

func (m *Model) fillPages() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	rep := m.report
	window := m.cfg.CurveWindow
	m.pages[tabOverview].SetContent(overview(rep, window, width))
	m.pages[tabHistory].SetContent(capture(func(w io.Writer) error {
		return stats.RenderHistory(w, rep.History, 0)
	}))
	m.pages[tabTrends].SetContent(capture(func(w io.Writer) error {
		return stats.RenderTrends(w, rep.History)
	}))
	if !rep.HasTimer {
		m.pages[tabTimer].SetContent("No timer sessions yet.")
		return
	}
	m.pages[tabTimer].SetContent(capture(func(w io.Writer) error {
		return stats.RenderTimer(w, rep.Timer)
	}))
}

// capture runs a text renderer into a string.
func capture(fn func(w io.Writer) error) string {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return errorStyle.Render(fmt.Sprintf("Failed to render: %v", err))
	}
	return strings.TrimRight(buf.String(), "\n")
}

func overview(rep stats.Report, window, width int) string {
	lt := rep.Lifetime
	if lt.TotalShots == 0 && len(rep.History) == 0 {
		return "No sessions found."
	}
	cards := []string{
		card("Sessions", strconv.Itoa(lt.TotalSessions)),
		card("Shots", strconv.Itoa(lt.TotalShots)),
		card("Hit rate", fmt.Sprintf("%.1f%%", stats.HitRate(lt.TotalHits, lt.TotalShots)*100)),
		card("Best streak", strconv.Itoa(lt.BestStreak)),
	}
	if rep.HasTimer && rep.Timer.AvgReactionTime > 0 {
		cards = append(cards, card("Avg reaction", fmt.Sprintf("%.0f ms", rep.Timer.AvgReactionTime)))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	if lipgloss.Width(row) > width {
		row = lipgloss.JoinVertical(lipgloss.Left, cards...)
	}
	sections := []string{row}
	if weak := stats.WeakestSegments(lt.SegmentStats, 2); len(weak) > 0 {
		labels := make([]string, len(weak))
		for i, seg := range weak {
			labels[i] = strconv.Itoa(int(seg))
		}
		sections = append(sections, "Focus segments: "+strings.Join(labels, ", "))
	}
	sections = append(sections, capture(func(w io.Writer) error {
		return stats.RenderCurves(w, rep.History, window, stats.PlotWidthFor(width), true)
	}))
	return strings.Join(sections, "\n\n")
}

func card(label, value string) string {
	return cardStyle.Render(cardLabelStyle.Render(label) + "\n" + cardValueStyle.Render(value))
}

func segColumns() []table.Column {
	return []table.Column{
		{Title: "Segment", Width: 8},
		{Title: "Hit rate", Width: 9},
		{Title: "Hits", Width: 6},
		{Title: "Attempts", Width: 9},
		{Title: "Weight", Width: 7},
	}
}

func segRows(segs model.SegmentStats, weights [model.SegmentCount]float64) []table.Row {
	rows := make([]table.Row, 0, model.SegmentCount)
	for _, seg := range model.Segments {
		st := segs[seg.Index()]
		rate := "-"
		if st.Attempts > 0 {
			rate = fmt.Sprintf("%.1f%%", st.HitRate(0)*100)
		}
		rows = append(rows, table.Row{
			strconv.Itoa(int(seg)),
			rate,
			strconv.Itoa(st.Hits),
			strconv.Itoa(st.Attempts),
			fmt.Sprintf("%.2f", weights[seg.Index()]),
		})
	}
	return rows
}

func segTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorText).
		PaddingRight(1).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(colorBorder)
	s.Cell = lipgloss.NewStyle().PaddingRight(1).Foreground(lipgloss.Color("#B8B8B8"))
	s.Selected = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	return s
}

// stepWindow moves the moving-average window to the next multiple of 5 in
// direction dir, never below 1.
func stepWindow(n, dir int) int {
	if dir > 0 {
		return (n/5 + 1) * 5
	}
	if n <= 5 {
		return 1
	}
	return ((n - 1) / 5) * 5
}

// fit pads or clips s to exactly width columns and height lines.
func fit(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			line = runewidth.Truncate(line, width, "...")
		}
		lines[i] = line + strings.Repeat(" ", maxInt(0, width-lipgloss.Width(line)))
	}
	return strings.Join(lines, "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
