package statsui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/kicktrain/internal/model"
)

const (
	fieldMode = iota
	fieldLast
	fieldWindow
	fieldCount
)

var fieldLabels = [fieldCount]string{"Mode", "Last", "Curve window"}

var (
	labelStyle       = lipgloss.NewStyle().Width(14).Foreground(colorMuted)
	activeLabelStyle = labelStyle.Copy().Foreground(colorAccent).Bold(true)
)

// settingsForm edits the report filter in place of the tab body.
type settingsForm struct {
	inputs [fieldCount]textinput.Model
	index  int
	err    string
}

func newSettingsForm(cfg model.StatsConfig, width int) *settingsForm {
	f := &settingsForm{}
	values := [fieldCount]string{"all", "", strconv.Itoa(cfg.CurveWindow)}
	if cfg.Mode != "" {
		values[fieldMode] = string(cfg.Mode)
	}
	if cfg.Last > 0 {
		values[fieldLast] = strconv.Itoa(cfg.Last)
	}
	placeholders := [fieldCount]string{"all|free|target|perfection|timer", "all", "5"}
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholders[i]
		in.Width = maxInt(10, width-20)
		in.SetValue(values[i])
		f.inputs[i] = in
	}
	return f
}

// focus moves the cursor to field i, wrapping around.
func (f *settingsForm) focus(i int) tea.Cmd {
	f.index = (i + fieldCount) % fieldCount
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == f.index {
			cmd = f.inputs[j].Focus()
			continue
		}
		f.inputs[j].Blur()
	}
	return cmd
}

func (f *settingsForm) update(msg tea.Msg) tea.Cmd {
	f.err = ""
	var cmd tea.Cmd
	f.inputs[f.index], cmd = f.inputs[f.index].Update(msg)
	return cmd
}

// apply returns cfg with the form values, or an error naming the bad field.
func (f *settingsForm) apply(cfg model.StatsConfig) (model.StatsConfig, error) {
	mode := strings.ToLower(strings.TrimSpace(f.inputs[fieldMode].Value()))
	switch mode {
	case "", "all":
		cfg.Mode = ""
	default:
		parsed, ok := model.ParseMode(mode)
		if !ok {
			return cfg, fmt.Errorf("unknown mode %q", mode)
		}
		cfg.Mode = parsed
	}

	last, err := parseCount(f.inputs[fieldLast].Value(), 0)
	if err != nil || last < 0 {
		return cfg, errors.New("last must be a non-negative number")
	}
	cfg.Last = last

	window, err := parseCount(f.inputs[fieldWindow].Value(), cfg.CurveWindow)
	if err != nil || window < 1 {
		return cfg, errors.New("curve window must be at least 1")
	}
	cfg.CurveWindow = window
	return cfg, nil
}

func (f *settingsForm) view() string {
	lines := make([]string, 0, fieldCount+2)
	lines = append(lines, "Report settings", "")
	for i, in := range f.inputs {
		label := labelStyle
		if i == f.index {
			label = activeLabelStyle
		}
		lines = append(lines, label.Render(fieldLabels[i])+in.View())
	}
	return strings.Join(lines, "\n")
}

func parseCount(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "all" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
