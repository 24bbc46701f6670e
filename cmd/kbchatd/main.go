package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/kbchat/internal/cli"
	"github.com/cloo-solutions/kbchat/internal/cli/admin"
	"github.com/cloo-solutions/kbchat/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kbchatd",
		Short: "kbchat daemon and admin CLI",
		Long:  "kbchat daemon for running the API server, applying migrations and ingesting documents",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.AskCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if handled, err := cli.HandleHelpJSON(rootCmd, config.EnvVars(), os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
