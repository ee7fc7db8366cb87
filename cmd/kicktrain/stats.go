package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/kicktrain/internal/clock"
	"github.com/verte-zerg/kicktrain/internal/config"
	"github.com/verte-zerg/kicktrain/internal/game"
	"github.com/verte-zerg/kicktrain/internal/generator"
	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/stats"
	"github.com/verte-zerg/kicktrain/internal/statsui"
	"github.com/verte-zerg/kicktrain/internal/store"
)

const (
	defaultCurveWindow = 5
	defaultHistoryRows = 10
)

var (
	statsMode        string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool
	exportFormat     string
	resetYes         bool
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.PersistentFlags().StringVar(&statsMode, "mode", "", "mode filter (free, target, perfection, timer)")
	cmd.PersistentFlags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the TUI")
	cmd.AddCommand(newExportCmd())
	return cmd
}

func statsConfig() (model.StatsConfig, error) {
	cfg := model.StatsConfig{Last: statsLast, CurveWindow: statsCurveWindow}
	if statsMode != "" {
		mode, ok := model.ParseMode(statsMode)
		if !ok {
			return cfg, fmt.Errorf("--mode must be one of free, target, perfection, timer")
		}
		cfg.Mode = mode
	}
	if cfg.Last < 0 {
		return cfg, fmt.Errorf("--last must be >= 0")
	}
	if cfg.CurveWindow < 1 {
		return cfg, fmt.Errorf("--curve-window must be >= 1")
	}
	return cfg, nil
}

// openRepoFor applies config layers, logging and the backend for the
// commands that only read or wipe stats.
func openRepoFor(cmd *cobra.Command, logPath string) (*store.Repo, func(), error) {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return nil, nil, err
	}
	applyCommonConfig(cmd, fileCfg)
	closeLog, err := setupLogging(logLevel, logPath)
	if err != nil {
		return nil, nil, err
	}
	kv, err := openKV(context.Background())
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	return store.NewRepo(kv), func() {
		closeKV(kv)
		closeLog()
	}, nil
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := statsConfig()
	if err != nil {
		return err
	}
	logPath := config.DefaultLogPath()
	if statsPlain {
		logPath = ""
	}
	repo, closeAll, err := openRepoFor(cmd, logPath)
	if err != nil {
		return err
	}
	defer closeAll()

	if statsPlain {
		report := stats.BuildReport(context.Background(), repo, cfg)
		return renderPlain(cmd.OutOrStdout(), report, stats.TerminalWidth(), stats.ColorEnabled(cmd.OutOrStdout()))
	}
	m := statsui.NewModel(repo, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func renderPlain(w io.Writer, report stats.Report, width int, color bool) error {
	if err := stats.RenderSummary(w, report.Lifetime); err != nil {
		return err
	}
	if err := stats.RenderSegmentTable(w, "Segments (lifetime)", report.Lifetime.SegmentStats); err != nil {
		return err
	}
	if err := stats.RenderHistory(w, report.History, defaultHistoryRows); err != nil {
		return err
	}
	if report.HasTrends {
		if err := stats.RenderTrends(w, report.History); err != nil {
			return err
		}
	}
	if report.HasTimer {
		if err := stats.RenderTimer(w, report.Timer); err != nil {
			return err
		}
	}
	return stats.RenderCurves(w, report.History, report.Config.CurveWindow, stats.PlotWidthFor(width), color)
}

// exportDoc is the document written by stats export.
type exportDoc struct {
	Lifetime model.LifetimeStats  `json:"lifetime"`
	History  []model.HistoryEntry `json:"history"`
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export lifetime stats and history",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json or yaml)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := statsConfig()
	if err != nil {
		return err
	}
	repo, closeAll, err := openRepoFor(cmd, "")
	if err != nil {
		return err
	}
	defer closeAll()

	report := stats.BuildReport(context.Background(), repo, cfg)
	doc := exportDoc{Lifetime: report.Lifetime, History: report.History}
	if doc.History == nil {
		doc.History = []model.HistoryEntry{}
	}
	return writeExport(cmd.OutOrStdout(), doc, exportFormat)
}

func writeExport(w io.Writer, doc exportDoc, format string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	switch format {
	case "json":
		return writeOut(w, "%s\n", data)
	case "yaml":
		// Round-trip through JSON so YAML keys match the persisted field names.
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("--format must be json or yaml, got %q", format)
	}
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all statistics, history and adaptive weights",
		Args:  cobra.NoArgs,
		RunE:  runResetCmd,
	}
	cmd.Flags().BoolVar(&resetYes, "yes", false, "skip the confirmation prompt")
	return cmd
}

func runResetCmd(cmd *cobra.Command, _ []string) error {
	if !resetYes {
		ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all kicktrain statistics? [y/N] ")
		if err != nil {
			return err
		}
		if !ok {
			return writeOut(cmd.OutOrStdout(), "Aborted.\n")
		}
	}
	repo, closeAll, err := openRepoFor(cmd, "")
	if err != nil {
		return err
	}
	defer closeAll()

	loop := clock.NewLoop()
	defer loop.Close()
	engine := game.New(context.Background(), repo, clock.System{}, loop, generator.NewRand(), game.DefaultOptions())
	engine.Load()
	engine.ResetStats()
	return writeOut(cmd.OutOrStdout(), "Statistics reset.\n")
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if err := writeOut(out, "%s", prompt); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
