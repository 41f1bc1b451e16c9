package commands

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/moasq/submint/internal/secrets"
	"github.com/moasq/submint/internal/terminal"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the burner wallet that pays for minting",
}

var walletShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the burner wallet address and balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		w, err := a.wallets().Load()
		if errors.Is(err, secrets.ErrNotFound) {
			terminal.Info("No burner wallet yet. One is created on first mint, or run `submint wallet reset`.")
			return nil
		}
		if err != nil {
			return err
		}

		sol := -1.0
		if lamports, err := a.wallets().Balance(cmd.Context(), w.Address()); err == nil {
			sol = lamportsToSOL(lamports)
		} else {
			a.log.Debug("balance lookup failed", "err", err)
		}
		terminal.WalletStatus(w.Address().String(), sol, a.network())
		if w.Mnemonic == "" {
			terminal.Detail("Recovery phrase", "none (imported key)")
		}
		return nil
	},
}

var walletResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace the burner wallet with a new one",
	Long:  "Generates a new burner wallet, links it to the signed-in user's profile and requests devnet SOL for it. The old key is discarded.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if yes, _ := cmd.Flags().GetBool("yes"); !yes && !terminal.Confirm("This discards the current burner wallet. Continue?") {
			terminal.Info("Cancelled.")
			return nil
		}
		userID, _ := a.userID(cmd)

		w, err := a.wallets().Reset(cmd.Context(), userID)
		if err != nil {
			return err
		}
		terminal.Success("New burner wallet created")
		terminal.Detail("Address", w.Address().String())
		if userID != "" {
			terminal.Detail("Linked to", userID)
		}
		terminal.Info("Requesting devnet SOL...")
		return nil
	},
}

var walletAirdropCmd = &cobra.Command{
	Use:   "airdrop",
	Short: "Request devnet SOL for the burner wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		w, err := a.wallets().Load()
		if err != nil {
			return fmt.Errorf("load burner wallet: %w", err)
		}
		amount, _ := cmd.Flags().GetFloat64("sol")
		if amount <= 0 {
			return fmt.Errorf("--sol must be positive")
		}

		spin := terminal.NewSpinner("Requesting airdrop...")
		spin.Start()
		sig, err := a.wallets().Airdrop(cmd.Context(), w.Address(), uint64(amount*float64(solana.LAMPORTS_PER_SOL)))
		if err != nil {
			spin.Stop()
			return fmt.Errorf("Failed to get devnet SOL. Please request SOL from a devnet faucet manually: %w", err)
		}
		spin.StopWithSuccess(fmt.Sprintf("Received %.2f SOL", amount))
		terminal.Detail("Signature", sig.String())
		return nil
	},
}

var walletExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the burner wallet's recovery phrase and secret key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		w, err := a.wallets().Load()
		if err != nil {
			return fmt.Errorf("load burner wallet: %w", err)
		}
		if !terminal.Confirm("Anyone with these words controls the wallet. Print them?") {
			terminal.Info("Cancelled.")
			return nil
		}
		terminal.Detail("Address", w.Address().String())
		if w.Mnemonic != "" {
			terminal.Detail("Recovery phrase", w.Mnemonic)
		}
		terminal.Detail("Secret key", w.Key.String())
		return nil
	},
}

var walletRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the burner wallet from a recovery phrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		phrase, err := terminal.ReadSecret("Recovery phrase")
		if err != nil {
			return err
		}
		userID, _ := a.userID(cmd)

		w, err := a.wallets().Restore(cmd.Context(), userID, phrase)
		if err != nil {
			return err
		}
		terminal.Success("Burner wallet restored")
		terminal.Detail("Address", w.Address().String())
		return nil
	},
}

func init() {
	walletCmd.PersistentFlags().String("user", "", "SubMint user ID whose profile should point at the wallet (default: signed-in user)")
	walletResetCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	walletAirdropCmd.Flags().Float64("sol", 1, "amount of SOL to request")

	walletCmd.AddCommand(walletShowCmd)
	walletCmd.AddCommand(walletResetCmd)
	walletCmd.AddCommand(walletAirdropCmd)
	walletCmd.AddCommand(walletExportCmd)
	walletCmd.AddCommand(walletRestoreCmd)
}
