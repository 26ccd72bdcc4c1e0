// Package engramcmder
package engramcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/loomworks/engram/cmd/engram/auth"
	configcmder "github.com/loomworks/engram/cmd/engram/config"
	initcmder "github.com/loomworks/engram/cmd/engram/init"
	logcmder "github.com/loomworks/engram/cmd/engram/log"
	memorizecmder "github.com/loomworks/engram/cmd/engram/memorize"
	remembercmder "github.com/loomworks/engram/cmd/engram/remember"
	searchcmder "github.com/loomworks/engram/cmd/engram/search"
	servecmder "github.com/loomworks/engram/cmd/engram/serve"
	versioncmder "github.com/loomworks/engram/cmd/version"
)

const engramLongDesc string = `Engram is a deduplicated semantic memory store for conversational agents.

Every new memory is checked against what is already stored before it lands:
similar memories are retrieved by vector search and a language model decides
whether to merge, replace, update, keep, or skip. Every decision is recorded
in an append-only audit log.

Store and query memories using:
  engram remember      Store a single memory
  engram search        Semantic search over stored memories
  engram memorize      Extract memories from a conversation transcript
  engram log           Inspect the consolidation audit log
  engram serve         Run the HTTP API and MCP server
  engram auth          Store API credentials for LLM providers`

const engramShortDesc string = "Engram - Agent Memory"

func NewEngramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engram",
		Short: engramShortDesc,
		Long:  engramLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .engram/ directory")

	// Add subcommands
	cmd.AddCommand(remembercmder.NewRememberCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(memorizecmder.NewMemorizeCmd())
	cmd.AddCommand(logcmder.NewLogCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
