// Package searchcmder provides the search command for semantic search over
// stored memories.
package searchcmder

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/config"
	"github.com/loomworks/engram/pkg/logger"
	"github.com/loomworks/engram/pkg/service"
)

var (
	rankStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	areaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	query string
	topK  int
	quiet bool
	debug bool

	cfg    *config.Config
	logger *zap.Logger
}

const searchLongDesc string = `Search stored memories by semantic similarity.

The query is embedded and matched against stored memory embeddings,
returning the closest memories with their similarity scores.

Use --quiet to output only memory ids, one per line, for piping into
other commands.

Examples:
  engram search "how do we configure logging"
  engram search "deploy process" --top 10
  engram search "database credentials" --quiet`

const searchShortDesc string = "Search stored memories"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
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
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd)
		},
	}

	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only memory ids, one per line (for piping)")

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ctx := cmd.Context()
	svc, err := service.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	results, err := svc.Search(ctx, c.query, c.topK)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range results {
			fmt.Println(result.ID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headStyle.Render("Search Results for:"),
		idStyle.Render(fmt.Sprintf("%q", c.query)),
	)

	for i, result := range results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result service.SearchResult) {
	fmt.Printf("  %s  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		idStyle.Render(result.ID),
		areaStyle.Render(fmt.Sprintf("[%s]", result.Area)),
	)

	text := result.Text
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Printf("     %s\n", textStyle.Render(line))
	}

	if result.SourcePath != "" {
		fmt.Printf("     %s\n", dimStyle.Render("source: "+result.SourcePath))
	}
	fmt.Println()
}
