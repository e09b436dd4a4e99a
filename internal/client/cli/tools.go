package cli

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

func newToolsCommand(get func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools your roles allow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runTools(cmd)
		},
	}
}

func (c *Cli) runTools(cmd *cobra.Command) error {
	ctx := cmd.Context()

	client, err := c.authedClient(ctx)
	if err != nil {
		return err
	}

	tools, err := client.Tools(ctx)
	if err != nil {
		return c.checkSession(ctx, err)
	}

	if len(tools) == 0 {
		c.io.Println("No tools available for your roles.")
		return nil
	}

	for _, t := range tools {
		c.io.Printf("%-22s %s\n", t.Name, firstLine(t.Description))
	}
	return nil
}

func newToolCommand(get func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tool <name> [json-args]",
		Short: "Invoke one tool directly",
		Example: `  passprotect tool read_password '{"company":"gmail"}'
  passprotect tool read_records '{"conditions":{"archived":false},"limit":10}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := "{}"
			if len(args) == 2 {
				raw = args[1]
			}
			return get().runTool(cmd, args[0], raw)
		},
	}
}

func (c *Cli) runTool(cmd *cobra.Command, name, raw string) error {
	ctx := cmd.Context()

	if !json.Valid([]byte(raw)) {
		return errors.New("arguments must be a JSON object")
	}

	client, err := c.authedClient(ctx)
	if err != nil {
		return err
	}

	res, err := client.InvokeTool(ctx, name, json.RawMessage(raw))
	if err != nil {
		return c.checkSession(ctx, err)
	}

	c.io.Println(res.Text)
	if res.Payload != nil {
		data, err := json.MarshalIndent(res.Payload, "", "  ")
		if err == nil {
			c.io.Println(string(data))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
