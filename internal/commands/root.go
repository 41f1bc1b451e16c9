package commands

import (
	"github.com/spf13/cobra"

	"github.com/moasq/submint/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "submint",
	Short:         "Subscription NFTs on Solana",
	Long:          "SubMint mints shared subscriptions as Metaplex NFTs on Solana devnet, tracks who paid each month and reviews what you spend.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String(config.KeyHome, "", "SubMint home directory (default $HOME/.submint)")
	pf.String(config.KeyConfig, "", "config file, relative to home unless absolute (default config.yaml)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error or none")
	pf.String("log-format", "", "log format: console, text or json")
	pf.String("log-file", "", "log destination: stderr, stdout, discard or a file path")
	pf.String("rpc-url", "", "Solana RPC endpoint (default devnet)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(paymentsCmd)
	rootCmd.AddCommand(healthCheckCmd)
	rootCmd.AddCommand(imageCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
