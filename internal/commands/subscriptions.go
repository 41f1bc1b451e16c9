package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/moasq/submint/internal/advisor"
	"github.com/moasq/submint/internal/mint"
	"github.com/moasq/submint/internal/storage"
	"github.com/moasq/submint/internal/subscription"
	"github.com/moasq/submint/internal/terminal"
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a subscription NFT",
	Long: `Uploads the artwork and metadata to IPFS, mints the subscription NFT to
the burner wallet and a child NFT for every co-payer, then opens this month's
payment records.

Co-payers are given as --share name or --share name:wallet_address.`,
	Example: `  submint mint --title Netflix --price 15.99 --recurring 15 \
    --start 2025-01-01 --end 2025-12-31 --share alice --share bob:7xKX...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		form, err := formFromFlags(cmd)
		if err != nil {
			return err
		}
		userID, err := a.userID(cmd)
		if err != nil {
			return err
		}
		subs, err := a.subscriptions()
		if err != nil {
			return err
		}

		spin := terminal.NewSpinner("Minting " + form.Title + "...")
		spin.Start()
		created, err := subs.Create(cmd.Context(), userID, form)
		spin.Stop()
		if errors.Is(err, mint.ErrInsufficientFunds) {
			terminal.Error(err.Error())
			terminal.Info("Run `submint wallet airdrop` and try again.")
			return err
		}
		if err != nil {
			return err
		}

		terminal.Success(fmt.Sprintf("Minted %s", form.Title))
		terminal.Detail("Mint", created.MintAddress)
		terminal.Detail("Signature", created.Signature)
		terminal.Detail("Metadata", created.MetadataURI)
		for _, c := range created.Children {
			terminal.Detail("Co-payer NFT", fmt.Sprintf("%s → %s", c.UserName, c.MintAddress))
		}
		for _, e := range created.ChildErrors {
			terminal.Warning(fmt.Sprintf("No NFT for %s: %s", e.UserName, e.Error))
		}

		err = a.mintLog().Append(storage.MintEntry{
			UserID:      userID,
			Title:       form.Title,
			MintAddress: created.MintAddress,
			Signature:   created.Signature,
			MetadataURI: created.MetadataURI,
			CoPayers:    len(created.Children),
		})
		if err != nil {
			a.log.Warn("recording mint locally", "err", err)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List subscriptions minted from this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		userID, _ := cmd.Flags().GetString("user")
		entries, err := a.mintLog().List(userID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			terminal.Info("Nothing minted from this machine yet.")
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.MintedAt.Local().Format("02/01/2006 15:04"), e.Title, e.MintAddress, fmt.Sprint(e.CoPayers)})
		}
		terminal.Table([]string{"Minted", "Subscription", "Mint", "Co-payers"}, rows)
		return nil
	},
}

func formFromFlags(cmd *cobra.Command) (subscription.Form, error) {
	f := cmd.Flags()
	var form subscription.Form
	form.Title, _ = f.GetString("title")
	form.Price, _ = f.GetString("price")
	form.RecurringDate, _ = f.GetString("recurring")
	form.Proof, _ = f.GetString("proof")
	form.ImageURL, _ = f.GetString("image")

	for name, dst := range map[string]*subscription.Date{"start": &form.StartDate, "end": &form.EndDate} {
		raw, _ := f.GetString(name)
		if raw == "" {
			continue
		}
		t, err := subscription.ParseDate(raw)
		if err != nil {
			return form, fmt.Errorf("--%s: %w", name, err)
		}
		dst.Time = t
	}

	shares, _ := f.GetStringArray("share")
	users, err := parseShares(shares)
	if err != nil {
		return form, err
	}
	form.SharedUsers = users
	return form, form.Validate()
}

// parseShares reads "name" or "name:wallet" entries.
func parseShares(raw []string) ([]subscription.SharedUserInput, error) {
	out := make([]subscription.SharedUserInput, 0, len(raw))
	for _, s := range raw {
		name, wallet, _ := strings.Cut(s, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("--share %q: %w", s, subscription.ErrNameRequired)
		}
		out = append(out, subscription.SharedUserInput{Name: name, WalletAddress: strings.TrimSpace(wallet)})
	}
	return out, nil
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"subscriptions", "ls"},
	Short:   "List your subscription NFTs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := a.userID(cmd)
		if err != nil {
			return err
		}
		subs, err := a.subscriptions()
		if err != nil {
			return err
		}
		list, err := subs.Subscriptions(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			terminal.Info("No subscriptions yet. Mint one with `submint mint`.")
			return nil
		}

		rows := make([][]string, 0, len(list))
		for _, s := range list {
			rows = append(rows, []string{s.Title, s.Price.StringFixed(2), s.PaymentDate, s.StartDate + " – " + s.EndDate, s.Status})
		}
		terminal.Table([]string{"Subscription", "Price", "Due day", "Period", "Status"}, rows)

		st := advisor.Stats(list)
		terminal.Detail("Monthly", st.TotalMonthly.StringFixed(2))
		terminal.Detail("Yearly", st.Yearly.StringFixed(2))
		terminal.Detail("Daily", st.Daily.StringFixed(2))
		if st.MostExpensive != nil {
			terminal.Detail("Most expensive", st.MostExpensive.Title)
		}
		return nil
	},
}

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Track who has paid their share",
}

var paymentsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show each co-payer's status for a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := a.userID(cmd)
		if err != nil {
			return err
		}
		period, err := periodFlag(cmd, time.Now())
		if err != nil {
			return err
		}
		uri, _ := cmd.Flags().GetString("uri")
		subs, err := a.subscriptions()
		if err != nil {
			return err
		}
		statuses, err := subs.MonthlyStatus(cmd.Context(), userID, uri, period)
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			terminal.Info("No co-payers yet. Add one with `submint payments add`.")
			return nil
		}

		terminal.Header(period.String())
		rows := make([][]string, 0, len(statuses))
		for _, s := range statuses {
			paid := ""
			if s.PaidDate != nil {
				paid = s.PaidDate.Format("02/01/2006")
			}
			rows = append(rows, []string{s.UserName, subscription.FormatWalletAddress(s.Wallet), terminal.Mark(s.Paid), s.Amount.StringFixed(2), paid})
		}
		terminal.Table([]string{"Co-payer", "Wallet", "Paid", "Amount", "Paid on"}, rows)
		return nil
	},
}

var paymentsSetCmd = &cobra.Command{
	Use:   "set <payer-id>",
	Short: "Mark a co-payer's month as paid or unpaid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		period, err := periodFlag(cmd, time.Now())
		if err != nil {
			return err
		}
		upd := subscription.PaymentUpdate{
			UserID: args[0],
			Year:   period.Year,
			Month:  int(period.Month),
		}
		upd.Paid, _ = cmd.Flags().GetBool("paid")
		upd.MetadataURI, _ = cmd.Flags().GetString("uri")
		if raw, _ := cmd.Flags().GetString("amount"); raw != "" {
			if upd.Amount, err = decimal.NewFromString(raw); err != nil {
				return fmt.Errorf("invalid amount %q", raw)
			}
		}

		subs, err := a.subscriptions()
		if err != nil {
			return err
		}
		userID, err := a.userID(cmd)
		if err != nil {
			return err
		}
		rec, err := subs.SetPayment(cmd.Context(), userID, upd)
		if err != nil {
			return err
		}
		state := "unpaid"
		if rec.PaymentStatus {
			state = "paid"
		}
		terminal.Success(fmt.Sprintf("%s marked %s (%s)", rec.PaymentDate, state, rec.PaymentAmount.StringFixed(2)))
		return nil
	},
}

var paymentsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List paid months for a subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		uri, _ := cmd.Flags().GetString("uri")
		year, _ := cmd.Flags().GetInt("year")
		subs, err := a.subscriptions()
		if err != nil {
			return err
		}
		userID, err := a.userID(cmd)
		if err != nil {
			return err
		}
		ledger, err := subs.Ledger(cmd.Context(), userID, uri)
		if err != nil {
			return err
		}
		payers, err := subs.ListSharedUsers(cmd.Context(), userID)
		if err != nil {
			return err
		}

		records := ledger.PaymentsByYear(year)
		if len(records) == 0 {
			terminal.Info(fmt.Sprintf("No payments recorded in %d.", year))
			return nil
		}
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{r.PaymentDate, subscription.UserName(payers, r.SharedUserID), r.PaymentAmount.StringFixed(2)})
		}
		terminal.Table([]string{"Month", "Co-payer", "Amount"}, rows)
		return nil
	},
}

var paymentsPayersCmd = &cobra.Command{
	Use:   "payers",
	Short: "List your co-payers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := a.userID(cmd)
		if err != nil {
			return err
		}
		subs, err := a.subscriptions()
		if err != nil {
			return err
		}
		users, err := subs.ListSharedUsers(cmd.Context(), userID)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(users))
		for _, u := range users {
			rows = append(rows, []string{u.ID, u.UserName, subscription.FormatWalletAddress(u.Wallet())})
		}
		terminal.Table([]string{"ID", "Name", "Wallet"}, rows)
		return nil
	},
}

var paymentsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a co-payer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := a.userID(cmd)
		if err != nil {
			return err
		}
		in := subscription.SharedUserInput{Name: args[0]}
		in.Email, _ = cmd.Flags().GetString("email")
		in.WalletAddress, _ = cmd.Flags().GetString("wallet")

		subs, err := a.subscriptions()
		if err != nil {
			return err
		}
		u, err := subs.AddSharedUser(cmd.Context(), userID, in)
		if err != nil {
			return err
		}
		terminal.Success(fmt.Sprintf("Added %s", u.UserName))
		terminal.Detail("ID", u.ID)
		return nil
	},
}

var paymentsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create co-payers listed in a subscription's metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		uri, _ := cmd.Flags().GetString("uri")
		if uri == "" {
			return fmt.Errorf("--uri is required")
		}
		subs, err := a.subscriptions()
		if err != nil {
			return err
		}
		userID, err := a.userID(cmd)
		if err != nil {
			return err
		}
		users, err := subs.SyncSharedUsers(cmd.Context(), userID, uri)
		if err != nil {
			return err
		}
		terminal.Success(fmt.Sprintf("%d co-payers in sync", len(users)))
		return nil
	},
}

// periodFlag reads --month (YYYY-MM), defaulting to the month of now.
func periodFlag(cmd *cobra.Command, now time.Time) (subscription.Period, error) {
	raw, _ := cmd.Flags().GetString("month")
	if raw == "" {
		return subscription.PeriodOf(now), nil
	}
	return subscription.ParsePeriod(raw)
}

func init() {
	historyCmd.Flags().String("user", "", "only list mints for this user ID")
	for _, c := range []*cobra.Command{mintCmd, listCmd, paymentsCmd} {
		c.PersistentFlags().String("user", "", "SubMint user ID (default: signed-in user)")
	}

	mf := mintCmd.Flags()
	mf.String("title", "", "subscription name")
	mf.String("price", "", "monthly price")
	mf.String("recurring", "", "day of the month the payment is due")
	mf.String("start", "", "start date (YYYY-MM-DD)")
	mf.String("end", "", "end date (YYYY-MM-DD)")
	mf.String("image", "", "artwork URL (default stock image)")
	mf.String("proof", "", "proof of payment reference")
	mf.StringArray("share", nil, "co-payer as name or name:wallet (repeatable)")

	for _, c := range []*cobra.Command{paymentsStatusCmd, paymentsSetCmd, paymentsHistoryCmd, paymentsSyncCmd} {
		c.Flags().String("uri", "", "metadata URI of the subscription")
	}
	paymentsStatusCmd.Flags().String("month", "", "month as YYYY-MM (default current)")
	paymentsSetCmd.Flags().String("month", "", "month as YYYY-MM (default current)")
	paymentsSetCmd.Flags().Bool("paid", true, "mark paid; --paid=false marks unpaid")
	paymentsSetCmd.Flags().String("amount", "", "amount paid (default subscription price)")
	paymentsHistoryCmd.Flags().Int("year", time.Now().Year(), "year to list")
	paymentsAddCmd.Flags().String("email", "", "co-payer email")
	paymentsAddCmd.Flags().String("wallet", "", "co-payer Solana address")

	paymentsCmd.AddCommand(paymentsStatusCmd)
	paymentsCmd.AddCommand(paymentsSetCmd)
	paymentsCmd.AddCommand(paymentsHistoryCmd)
	paymentsCmd.AddCommand(paymentsPayersCmd)
	paymentsCmd.AddCommand(paymentsAddCmd)
	paymentsCmd.AddCommand(paymentsSyncCmd)
}
