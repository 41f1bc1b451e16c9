package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/moasq/submint/internal/terminal"
	"github.com/moasq/submint/internal/update"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		out, err := a.cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# home: %s\n", a.cfg.Home)
		fmt.Fprintf(cmd.OutOrStdout(), "# secrets fallback: %s\n", filepath.Clean(a.cfg.SecretsDir()))
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// updateChecker is replaced in tests.
var updateChecker = update.Checker{}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and check for updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "submint %s\n", Version)
		if skip, _ := cmd.Flags().GetBool("offline"); skip {
			return nil
		}
		if res := updateChecker.Check(cmd.Context(), "moasq", "submint", Version); res.NeedsUpdate() {
			terminal.Info(fmt.Sprintf("SubMint %s is available: %s", res.Latest, res.UpdateURL))
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("offline", false, "skip the update check")
}
