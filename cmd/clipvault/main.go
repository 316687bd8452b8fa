// clipvault: clipboard history daemon with a local query API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipvault",
		Short: "Clipboard history manager",
		Long: `clipvault watches the system clipboard and keeps a searchable history
of text, links, and images in a local SQLite database.

Run "clipvault run" to start the capture daemon. While it is running, the
other subcommands (and any frontend speaking the local HTTP API) operate on
the shared history.

Settings live in $HOME/.clipvault/config.json and can be overridden with
CLIPVAULT_* environment variables.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newListCmd(),
		newSearchCmd(),
		newCopyCmd(),
		newDeleteCmd(),
		newClearCmd(),
		newCleanupCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipvault %s\n", Version)
		},
	}
}
