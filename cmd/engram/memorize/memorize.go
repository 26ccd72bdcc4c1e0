// Package memorizecmder provides the memorize command for extracting
// memories from a conversation transcript.
package memorizecmder

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/cliui"
	"github.com/loomworks/engram/pkg/config"
	"github.com/loomworks/engram/pkg/dotdir"
	"github.com/loomworks/engram/pkg/extraction"
	"github.com/loomworks/engram/pkg/logger"
	"github.com/loomworks/engram/pkg/service"
)

type memorizeCommander struct {
	transcriptPath string
	configDir      string
	debug          bool

	cfg    *config.Config
	logger *zap.Logger
}

const memorizeLongDesc string = `Extract memories from a conversation transcript.

The transcript is a JSONL file of conversation messages. Three extraction
strategies run concurrently (problem/solution pairs, standalone facts, and
tool descriptions); each stores what it finds through the consolidation
pipeline, so duplicates of existing memories are merged or skipped.

When no transcript path is given, the most recently processed transcript
(recorded in .engram/memorize.json) is re-run.

Examples:
  engram memorize ./session.jsonl
  engram memorize`

const memorizeShortDesc string = "Extract memories from a transcript"

func NewMemorizeCmd() *cobra.Command {
	cmder := &memorizeCommander{}

	cmd := &cobra.Command{
		Use:   "memorize [transcript]",
		Short: memorizeShortDesc,
		Long:  memorizeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
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
			if len(args) > 0 {
				cmder.transcriptPath = args[0]
			}

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd)
		},
	}

	return cmd
}

func (c *memorizeCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	dotdirManager := dotdir.NewManager()

	if c.transcriptPath == "" {
		state, err := dotdirManager.LoadMemorizeState(c.configDir)
		if err != nil {
			return fmt.Errorf("loading memorize state: %w", err)
		}
		if state == nil || state.TranscriptPath == "" {
			return errors.New("no transcript given and no previous transcript recorded; pass a transcript path")
		}
		c.transcriptPath = state.TranscriptPath
		fmt.Printf("Re-running last transcript: %s\n", c.transcriptPath)
	}

	// The command is an explicit request, so extraction runs even when the
	// config leaves it disabled.
	c.cfg.Extraction.Enabled = true

	ctx := cmd.Context()
	svc, err := service.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	var run *extraction.AutoMemorizeResult
	err = cliui.Step(cmd.OutOrStdout(), "Extracting memories", func() error {
		var runErr error
		run, runErr = svc.Memorize(ctx, c.transcriptPath)
		return runErr
	})
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Println("Extraction is disabled; nothing to do")
		return nil
	}

	skipped := 0
	for _, result := range run.Strategies {
		skipped += result.Skipped

		switch {
		case result.Err != "":
			fmt.Printf("  %s %-12s %s\n", cliui.FailMark, result.Strategy, result.Err)
		case result.SkipReason != "":
			fmt.Printf("  %s %-12s skipped (%s)\n", cliui.FailMark, result.Strategy, result.SkipReason)
		default:
			fmt.Printf("  %s %-12s %d extracted, %d stored, %d skipped\n",
				cliui.SuccessMark, result.Strategy, len(result.Extracted), result.Stored, result.Skipped)
		}
	}

	fmt.Printf("\nStored %d of %d memories in %s (%d skipped)\n",
		run.TotalStored, run.TotalExtracted, run.Duration.Round(time.Millisecond), skipped)

	state := &dotdir.MemorizeState{
		TranscriptPath: c.transcriptPath,
		ProcessedAt:    time.Now().UTC(),
		Stored:         run.TotalStored,
		Skipped:        skipped,
	}
	if err := dotdirManager.SaveMemorizeState(state, c.configDir); err != nil {
		c.logger.Warn("could not save memorize state", zap.Error(err))
	}

	return nil
}
