package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moasq/submint/internal/advisor"
	"github.com/moasq/submint/internal/terminal"
)

var healthCheckCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Review your subscriptions and suggest savings",
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
		adv, err := a.advisor(cmd.Context())
		if err != nil {
			return err
		}

		spin := terminal.NewSpinner("Analysing subscriptions...")
		spin.Start()
		report, err := adv.HealthCheck(cmd.Context(), userID)
		spin.Stop()
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

func printReport(r *advisor.Report) {
	terminal.Header(fmt.Sprintf("Overall score: %.1f/10", r.OverallScore))
	if r.Stats != nil {
		terminal.Detail("Monthly", r.Stats.TotalMonthly.StringFixed(2))
		terminal.Detail("Yearly", r.Stats.TotalYearly.StringFixed(2))
		terminal.Detail("Annualized", r.Stats.AnnualizedSpending.StringFixed(2))
	}
	for _, c := range r.Categories {
		terminal.Header(fmt.Sprintf("%s (%.1f)", c.Title, c.Score))
		for _, rec := range c.Recommendations {
			fmt.Fprintf(terminal.Output, "  • %s\n", rec)
		}
	}
	for _, w := range r.WebAlternatives {
		if len(w.Alternatives) == 0 {
			continue
		}
		terminal.Header("Alternatives to " + w.For)
		rows := make([][]string, 0, len(w.Alternatives))
		for _, alt := range w.Alternatives {
			rows = append(rows, []string{alt.Name, alt.Savings, alt.URL})
		}
		terminal.Table([]string{"Service", "Savings", "Link"}, rows)
	}
	switch {
	case r.Recommendations != "":
		terminal.Info(r.Recommendations)
	case r.RawRecommendations != "":
		terminal.Divider()
		fmt.Fprintln(terminal.Output, strings.TrimSpace(r.RawRecommendations))
	}
}

var imageCmd = &cobra.Command{
	Use:   "image <prompt>",
	Short: "Generate subscription artwork",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		gen, err := a.images()
		if err != nil {
			return err
		}
		spin := terminal.NewSpinner("Generating image...")
		spin.Start()
		res, err := gen.Generate(cmd.Context(), strings.Join(args, " "))
		spin.Stop()
		if err != nil {
			return err
		}
		if res.Fallback {
			terminal.Warning(res.Error)
		} else {
			terminal.Success("Image generated")
		}
		terminal.Detail("URL", res.ImageURL)
		return nil
	},
}

func init() {
	healthCheckCmd.Flags().String("user", "", "SubMint user ID (default: signed-in user)")
}
