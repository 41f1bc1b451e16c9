package commands

import (
	"github.com/spf13/cobra"

	"github.com/moasq/submint/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the SubMint MCP server over stdio",
	Long: `Starts an MCP server on stdin/stdout so AI assistants can generate
artwork, pin metadata, run the health check, read and update the payment
ledger and look up the burner wallet. Tools whose service has no credentials
report that they are not configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		deps := mcpserver.Deps{Wallets: a.wallets()}
		if gen, err := a.images(); err == nil {
			deps.Images = gen
		}
		if pin, err := a.pinata(); err == nil {
			deps.Pinata = pin
		}
		if adv, err := a.advisor(ctx); err == nil {
			deps.Advisor = adv
		}
		if subs, err := a.subscriptions(); err == nil {
			deps.Ledger = subs
		}
		return mcpserver.Run(ctx, deps, Version)
	},
}
