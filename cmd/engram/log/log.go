// Package logcmder provides the log command for inspecting the consolidation
// audit log.
package logcmder

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/config"
	"github.com/loomworks/engram/pkg/logger"
	"github.com/loomworks/engram/pkg/memory"
	"github.com/loomworks/engram/pkg/service"
)

var (
	actionStyles = map[string]lipgloss.Style{
		"MERGE":         lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		"REPLACE":       lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		"KEEP_SEPARATE": lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true),
		"UPDATE":        lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		"SKIP":          lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
	plainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type logCommander struct {
	area   string
	action string
	since  time.Duration
	limit  int
	debug  bool

	cfg    *config.Config
	logger *zap.Logger
}

const logLongDesc string = `Inspect the consolidation audit log.

Every decision the consolidation engine makes is recorded: the action taken,
the memories involved, and the model's reasoning. Entries are shown newest
first.

Examples:
  engram log
  engram log --action SKIP
  engram log --area solutions --since 24h --limit 20`

const logShortDesc string = "Inspect the consolidation audit log"

func NewLogCmd() *cobra.Command {
	cmder := &logCommander{}

	cmd := &cobra.Command{
		Use:   "log",
		Short: logShortDesc,
		Long:  logLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cmder.cfg, err = cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.area, "area", "a", "", "Filter by memory area")
	cmd.Flags().StringVar(&cmder.action, "action", "", "Filter by decision action (MERGE, REPLACE, KEEP_SEPARATE, UPDATE, SKIP)")
	cmd.Flags().DurationVar(&cmder.since, "since", 0, "Only show entries newer than this duration (e.g. 24h)")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 0, "Maximum number of entries to show")

	return cmd
}

func (c *logCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ctx := cmd.Context()
	svc, err := service.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	filter := memory.LogFilter{
		Action: c.action,
		Limit:  c.limit,
	}
	if c.area != "" {
		filter.Area = memory.NormalizeArea(memory.Area(c.area))
	}
	if c.since > 0 {
		filter.Since = time.Now().Add(-c.since).UnixMilli()
	}

	entries, err := svc.Log(ctx, filter)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No log entries found.")
		return nil
	}

	fmt.Println()
	for _, entry := range entries {
		printEntry(entry)
	}

	return nil
}

func printEntry(entry *memory.LogEntry) {
	style, ok := actionStyles[entry.Action]
	if !ok {
		style = plainStyle
	}

	ts := time.UnixMilli(entry.Timestamp).Local().Format("2006-01-02 15:04:05")
	fmt.Printf("  %s  %s  %s\n",
		timeStyle.Render(ts),
		style.Render(fmt.Sprintf("%-13s", entry.Action)),
		dimStyle.Render(fmt.Sprintf("[%s]", entry.Area)),
	)

	if entry.ResultID != nil {
		fmt.Printf("    result: %s\n", idStyle.Render(*entry.ResultID))
	}
	if len(entry.SourceIDs) > 0 {
		fmt.Printf("    sources: %s\n", dimStyle.Render(fmt.Sprintf("%v", entry.SourceIDs)))
	}
	fmt.Printf("    %s\n\n", plainStyle.Render(entry.Reasoning))
}
