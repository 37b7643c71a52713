package main

import (
	"fmt"
	"net/url"

	"agentwatch/internal/model"
	"agentwatch/internal/ui"

	"github.com/spf13/cobra"
)

type conversationResponse struct {
	AgentID string                   `json:"agentId"`
	Turns   []model.ConversationTurn `json:"turns"`
}

var conversationCmd = &cobra.Command{
	Use:   "conversation <agent-id>",
	Short: "Print an agent's conversation history from a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, _ := cmd.Flags().GetString("url")
		width, _ := cmd.Flags().GetInt("width")
		style, _ := cmd.Flags().GetString("style")

		var resp conversationResponse
		endpoint := serverURL(base) + "/agents/" + url.PathEscape(args[0]) + "/conversation"
		if err := getJSON(cmd.Context(), endpoint, &resp); err != nil {
			return err
		}

		out, err := ui.RenderConversation(resp.Turns, width, style)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	conversationCmd.Flags().String("url", "", "Base URL of the agentwatch server (default http://127.0.0.1:<port>)")
	conversationCmd.Flags().Int("width", 100, "Word wrap width")
	conversationCmd.Flags().String("style", "auto", "Markdown style (auto, dark, light, notty)")
	rootCmd.AddCommand(conversationCmd)
}
