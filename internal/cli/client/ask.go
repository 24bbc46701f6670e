package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ChatUser mirrors the caller object of the chat API.
type ChatUser struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	Plan     string `json:"plan,omitempty"`
	Name     string `json:"name,omitempty"`
}

// ChatRequest represents the chat API request.
type ChatRequest struct {
	Message string   `json:"message"`
	User    ChatUser `json:"user"`
}

// ChatResponse represents the chat API response.
type ChatResponse struct {
	Answer     string   `json:"answer"`
	Refusal    bool     `json:"refusal"`
	Citations  []int    `json:"citations"`
	ChunksUsed []string `json:"chunks_used"`
	Greeting   bool     `json:"greeting"`
}

var (
	refusalStyle  = color.New(color.FgYellow).SprintFunc()
	greetingStyle = color.New(color.FgCyan).SprintFunc()
	dimStyle      = color.New(color.Faint).SprintFunc()
)

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var user ChatUser

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the assistant a question",
		Long:  "Sends a chat request and prints the grounded answer with its citations.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user.TenantID == "" {
				return fmt.Errorf("--tenant is required")
			}
			outputJSON, _ := cmd.Flags().GetBool("output")

			api := NewAPIClientWithCmd(cmd)
			var resp ChatResponse
			req := ChatRequest{Message: strings.Join(args, " "), User: user}
			if err := api.Post(cmd.Context(), "/v1/chat", req, &resp); err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printAnswer(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user.TenantID, "tenant", "t", "", "Tenant to ask (required)")
	cmd.Flags().StringVar(&user.Role, "role", "", "Caller role")
	cmd.Flags().StringVar(&user.Plan, "plan", "", "Caller plan")
	cmd.Flags().StringVar(&user.Name, "name", "", "Caller name")

	return cmd
}

func printAnswer(w io.Writer, resp ChatResponse) {
	switch {
	case resp.Refusal:
		fmt.Fprintln(w, refusalStyle(resp.Answer))
	case resp.Greeting:
		fmt.Fprintln(w, greetingStyle(resp.Answer))
	default:
		fmt.Fprintln(w, resp.Answer)
	}

	if len(resp.Citations) > 0 {
		refs := make([]string, len(resp.Citations))
		for i, c := range resp.Citations {
			refs[i] = fmt.Sprintf("[%d]", c)
		}
		fmt.Fprintln(w, dimStyle("sources: "+strings.Join(refs, " ")))
	}
}
