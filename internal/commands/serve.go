package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moasq/submint/internal/api"
	"github.com/moasq/submint/internal/config"
	"github.com/moasq/submint/internal/terminal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SubMint HTTP API",
	Long: `Starts the HTTP API used by the SubMint web app: IPFS uploads, image
generation, the subscription health check, sign-up and sign-in, minting and
the shared payment ledger. Services without credentials answer 503.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.cfg.Require(config.NeedAPIKey); err != nil && !a.cfg.Development {
			return fmt.Errorf("%w (set development: true to run without one)", err)
		}

		deps := api.Deps{}
		warn := func(name string, err error) {
			a.log.WarnContext(ctx, name+" routes disabled", "err", err)
		}

		if pin, err := a.pinata(); err == nil {
			deps.Pinata = pin
		} else {
			warn("pinata", err)
		}
		if gen, err := a.images(); err == nil {
			deps.Images = gen
		} else {
			warn("image generation", err)
		}
		if adv, err := a.advisor(ctx); err == nil {
			deps.Advisor = adv
		} else {
			warn("health check", err)
		}
		if auth, err := a.auth(); err == nil {
			deps.Tokens = auth
		} else {
			warn("authenticated", err)
		}
		if accts, err := a.accounts(); err == nil {
			deps.Accounts = accts
			deps.Wallets = a.wallets()
		} else {
			warn("account", err)
		}
		if subs, err := a.subscriptions(); err == nil {
			deps.Subscriptions = subs
		} else {
			warn("subscription", err)
		}

		srv := api.New(api.Config{
			AllowedOrigins: a.cfg.AllowedOrigins,
			APIKeys:        a.cfg.APIKeys(),
			Development:    a.cfg.Development,
		}, deps, a.log)

		terminal.Banner(Version)
		if w, err := a.wallets().LoadOrCreate(ctx); err == nil {
			sol := -1.0
			if lamports, err := a.wallets().Balance(ctx, w.Address()); err == nil {
				sol = lamportsToSOL(lamports)
			}
			terminal.WalletStatus(w.Address().String(), sol, a.network())
		} else {
			terminal.Warning(fmt.Sprintf("Burner wallet unavailable: %v", err))
		}
		terminal.Info(fmt.Sprintf("Listening on %s", a.cfg.ListenAddr))

		return srv.ListenAndServe(ctx, a.cfg.ListenAddr)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "address to listen on (default :8080)")
	serveCmd.Flags().Bool("development", false, "accept any CORS origin")
}
