// Package tui provides the Bubble Tea play screen.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/kicktrain/internal/clock"
	"github.com/verte-zerg/kicktrain/internal/game"
	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/sensor"
	"github.com/verte-zerg/kicktrain/internal/timer"
)

// Config selects the game started by the play screen.
type Config struct {
	Mode   model.Mode
	Params model.ModeParams
	// Autosave is the snapshot interval; zero disables periodic autosave.
	Autosave time.Duration
}

// Model implements the Bubble Tea play screen. The engine is only touched
// from Update, so scheduler callbacks and sensor events are funnelled
// through messages.
type Model struct {
	engine *game.Engine
	loop   *clock.Loop
	events <-chan sensor.Event
	config Config

	width  int
	height int

	prompt  bool
	pending model.SessionState

	snap     game.Snapshot
	last     *game.Outcome
	phase    timer.Event
	hasPhase bool
	summary  *game.Summary
	notice   string
}

type loopMsg func()

type sensorMsg sensor.Event

type autosaveMsg struct{}

var (
	segmentStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			Foreground(lipgloss.Color("#8C8C8C")).
			BorderForeground(lipgloss.Color("#8C8C8C"))
	targetStyle = segmentStyle.Copy().
			Bold(true).
			Foreground(lipgloss.Color("#C89A3A")).
			BorderForeground(lipgloss.Color("#C89A3A"))
	hitStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	missStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel subscribes to engine signals. A pending autosave is offered for
// restore; otherwise a new game starts right away.
func NewModel(engine *game.Engine, loop *clock.Loop, events <-chan sensor.Event, cfg Config) (*Model, error) {
	m := &Model{
		engine: engine,
		loop:   loop,
		events: events,
		config: cfg,
	}
	engine.Subscribe(m)
	if session, _, ok := engine.PendingSnapshot(); ok && session.Mode != model.ModeTimer {
		m.prompt = true
		m.pending = session
		m.snap = engine.Snapshot()
		return m, nil
	}
	if err := m.startGame(); err != nil {
		return nil, err
	}
	return m, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitLoop(), m.waitSensor(), m.autosaveTick())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case loopMsg:
		msg()
		return m, m.waitLoop()
	case sensorMsg:
		if !m.prompt {
			m.handleSensor(sensor.Event(msg))
		}
		return m, m.waitSensor()
	case autosaveMsg:
		if m.engine.Autosave() {
			logrus.Debug("session autosaved")
		}
		return m, m.autosaveTick()
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || key == "q" {
		if !m.prompt {
			m.engine.Shutdown()
		}
		return m, tea.Quit
	}
	if m.prompt {
		switch key {
		case "y":
			m.prompt = false
			m.resetView()
			if !m.engine.RestoreSnapshot() {
				m.notice = "Snapshot could not be restored"
				m.startOrNotice()
			}
		case "n":
			m.prompt = false
			m.engine.DiscardSnapshot()
			m.startOrNotice()
		}
		return m, nil
	}
	switch key {
	case "1", "2", "3", "4", "5":
		m.engine.ShotAt(model.Segment(key[0] - '0'))
	case "0", "x":
		m.engine.RegisterMiss()
	case "g":
		m.engine.GoalDetected()
	case "s":
		if entry, ok := m.engine.SaveSession(); ok {
			m.notice = fmt.Sprintf("Session saved: %d/%d hits", entry.Hits, entry.Total)
		} else {
			m.notice = "Nothing to save yet"
		}
	case "n":
		m.startOrNotice()
	}
	return m, nil
}

func (m *Model) handleSensor(ev sensor.Event) {
	logrus.WithFields(logrus.Fields{"kind": ev.Kind, "segment": ev.Segment}).Debug("sensor event")
	switch ev.Kind {
	case sensor.KindShot:
		m.engine.ShotAt(ev.Segment)
	case sensor.KindMiss:
		m.engine.RegisterMiss()
	case sensor.KindGoal:
		m.engine.GoalDetected()
	}
}

func (m *Model) startGame() error {
	m.resetView()
	if err := m.engine.StartSession(m.config.Mode, m.config.Params); err != nil {
		return fmt.Errorf("failed to start %s session: %w", m.config.Mode, err)
	}
	return nil
}

func (m *Model) startOrNotice() {
	if err := m.startGame(); err != nil {
		m.notice = err.Error()
	}
}

func (m *Model) resetView() {
	m.last = nil
	m.summary = nil
	m.hasPhase = false
	m.phase = timer.Event{}
	m.notice = ""
}

func (m *Model) waitLoop() tea.Cmd {
	if m.loop == nil {
		return nil
	}
	ch := m.loop.C()
	return func() tea.Msg {
		return loopMsg(<-ch)
	}
}

func (m *Model) waitSensor() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return sensorMsg(ev)
	}
}

func (m *Model) autosaveTick() tea.Cmd {
	if m.config.Autosave <= 0 {
		return nil
	}
	return tea.Tick(m.config.Autosave, func(time.Time) tea.Msg {
		return autosaveMsg{}
	})
}

// TargetChanged implements game.Listener.
func (m *Model) TargetChanged(seg model.Segment) {
	m.snap.Target = seg
	if m.snap.Session.Mode != model.ModeTimer {
		m.last = nil
	}
}

// OutcomeOccurred implements game.Listener.
func (m *Model) OutcomeOccurred(o game.Outcome) {
	m.last = &o
	m.notice = ""
}

// ModeCompleted implements game.Listener.
func (m *Model) ModeCompleted(s game.Summary) {
	m.summary = &s
}

// TimerPhaseChanged implements game.Listener.
func (m *Model) TimerPhaseChanged(e timer.Event) {
	m.phase = e
	m.hasPhase = true
}

// StatsUpdated implements game.Listener.
func (m *Model) StatsUpdated(s game.Snapshot) {
	m.snap = s
}
