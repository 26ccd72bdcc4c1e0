// Package remembercmder provides the remember command for storing a single
// memory through the consolidation pipeline.
package remembercmder

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/config"
	"github.com/loomworks/engram/pkg/git"
	"github.com/loomworks/engram/pkg/logger"
	"github.com/loomworks/engram/pkg/memory"
	"github.com/loomworks/engram/pkg/service"
)

var (
	actionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	skipStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	reasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type rememberCommander struct {
	text       string
	area       string
	importance float64
	source     string
	debug      bool

	cfg    *config.Config
	logger *zap.Logger
}

const rememberLongDesc string = `Store a single memory.

The memory is embedded and checked against existing memories before anything
is written: near-duplicates may be merged into or replace an existing memory,
and redundant text is skipped. The decision and its reasoning are printed
and recorded in the audit log.

Areas partition the store: main (default), fragments, solutions, instruments.

Examples:
  engram remember "the deploy script lives in ops/deploy.sh"
  engram remember "prefers table-driven tests" --area fragments --importance 0.8`

const rememberShortDesc string = "Store a single memory"

func NewRememberCmd() *cobra.Command {
	cmder := &rememberCommander{}

	cmd := &cobra.Command{
		Use:   "remember <text>",
		Short: rememberShortDesc,
		Long:  rememberLongDesc,
		Args:  cobra.ExactArgs(1),
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
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.text = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.area, "area", "a", "main", "Memory area (main, fragments, solutions, instruments)")
	cmd.Flags().Float64VarP(&cmder.importance, "importance", "i", memory.DefaultImportance, "Retrieval weight between 0 and 1")
	cmd.Flags().StringVar(&cmder.source, "source", "", "Source identifier recorded with the memory (defaults to the current git repo name)")

	return cmd
}

func (c *rememberCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if c.source == "" {
		c.source = git.RepoName()
		if c.source == "" {
			c.source = "direct"
		}
	}

	ctx := cmd.Context()
	svc, err := service.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	result, err := svc.Remember(ctx, c.text, memory.Area(c.area), c.importance, c.source)
	if err != nil {
		return err
	}

	style := actionStyle
	if !result.Stored {
		style = skipStyle
	}

	fmt.Printf("\n  %s", style.Render(string(result.Decision.Action)))
	if result.Stored {
		fmt.Printf("  %s", idStyle.Render(result.ChunkID))
	}
	fmt.Println()

	if len(result.Decision.TargetIDs) > 0 {
		fmt.Printf("  targets: %s\n", idStyle.Render(fmt.Sprintf("%v", result.Decision.TargetIDs)))
	}
	fmt.Printf("  %s\n\n", reasoningStyle.Render(result.Decision.Reasoning))

	return nil
}
