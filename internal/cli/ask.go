package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/restoration-assistant/internal/assistant/app"
	"github.com/yungbote/restoration-assistant/internal/assistant/engine"
	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one message through the pipeline and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk,
	}

	cmd.Flags().StringP("conversation", "c", "", "Conversation id (default: a new one)")
	cmd.Flags().StringP("lang", "l", "en", "Message language: en, es, zh, vi or ar")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	convID, _ := cmd.Flags().GetString("conversation")
	lang, _ := cmd.Flags().GetString("lang")
	if strings.TrimSpace(convID) == "" {
		convID = uuid.New().String()
	}

	a, err := app.New(cmd.Context())
	if err != nil {
		exitErr("init app", err)
	}
	defer a.Close()

	res, err := a.Engine.ProcessMessage(cmd.Context(), engine.Request{
		Message:        strings.Join(args, " "),
		ConversationID: convID,
		Language:       chat.Language(lang),
	})
	if err != nil {
		a.Close()
		exitErr("ask", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
