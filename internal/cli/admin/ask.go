package admin

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/cloo-solutions/kbchat/internal/service"
	"github.com/spf13/cobra"
)

// AskCmd returns the ask command
func AskCmd() *cobra.Command {
	var in service.ChatInput

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask a question directly against the knowledge base",
		Long:  "Run one chat request in-process, bypassing the HTTP server, and print the JSON result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.TenantID == "" {
				return errors.New("--tenant is required")
			}
			in.Message = strings.Join(args, " ")

			rt, err := newRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.chatService().Chat(rt.withLogger(cmd.Context()), in)
			if err != nil {
				return err
			}
			return printResult(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&in.TenantID, "tenant", "t", "", "Tenant to answer for")
	cmd.Flags().StringVar(&in.Profile.Role, "role", "", "Caller role")
	cmd.Flags().StringVar(&in.Profile.Plan, "plan", "", "Caller plan")
	cmd.Flags().StringVar(&in.Profile.Name, "name", "", "Caller display name")

	return cmd
}

func printResult(cmd *cobra.Command, result *domain.ChatResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
