package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	clientapi "github.com/iudanet/passprotect/internal/client/api"
	"github.com/iudanet/passprotect/pkg/api"
)

func newChatCommand(get func() *Cli) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant; it runs tools on your behalf",
		Long: `Starts an interactive conversation. Type 'exit' or 'quit' to leave.
With --message a single turn is sent and the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runChat(cmd, message)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "send one message and exit")

	return cmd
}

func (c *Cli) runChat(cmd *cobra.Command, oneShot string) error {
	ctx := cmd.Context()

	client, err := c.authedClient(ctx)
	if err != nil {
		return err
	}

	var history []api.ChatMessage

	turn := func(message string) error {
		resp, err := client.Chat(ctx, api.ChatRequest{Message: message, History: history})
		if err != nil {
			return err
		}

		for _, call := range resp.ToolCalls {
			if call.Error != "" {
				c.io.Printf("  [%s] %s\n", call.Name, call.Error)
				continue
			}
			c.io.Printf("  [%s] %s\n", call.Name, string(call.Arguments))
		}
		c.io.Println(resp.Response)

		history = append(history,
			api.ChatMessage{Role: "user", Content: message},
			api.ChatMessage{Role: "assistant", Content: resp.Response},
		)
		return nil
	}

	if strings.TrimSpace(oneShot) != "" {
		if err := turn(oneShot); err != nil {
			return c.checkSession(ctx, err)
		}
		return nil
	}

	c.io.Println("PassProtect chat. Type 'exit' to quit.")
	for {
		line, err := c.io.ReadInput("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := turn(line); err != nil {
			if clientapi.IsSessionError(err) {
				return c.checkSession(ctx, err)
			}
			// Остальные ошибки не завершают диалог
			c.io.Printf("Error: %v\n", err)
		}
	}
}
