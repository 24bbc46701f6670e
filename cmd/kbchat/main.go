package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/kbchat/internal/cli"
	"github.com/cloo-solutions/kbchat/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kbchat",
		Short: "kbchat CLI - grounded answers from your knowledge base",
		Long: `kbchat talks to a running kbchatd server.

Environment variables:
  KBCHAT_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.IngestCmd())

	if handled, err := cli.HandleHelpJSON(rootCmd, client.Env(), os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
