package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/books/internal/cli"
	"github.com/theirongolddev/books/internal/model"
)

var flagTrendsAll bool

var trendsCmd = &cobra.Command{
	Use:     "trends",
	Aliases: []string{"trend"},
	Short:   "Standing overspend alerts",
	RunE:    runTrendsList,
}

var trendsScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Look for budgets overspent several months in a row",
	Args:  cobra.NoArgs,
	RunE:  runTrendsScan,
}

var trendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trend alerts",
	Args:  cobra.NoArgs,
	RunE:  runTrendsList,
}

var trendsResolveCmd = &cobra.Command{
	Use:   "resolve ID",
	Short: "Mark a trend alert as handled",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrendsResolve,
}

func init() {
	trendsCmd.PersistentFlags().BoolVar(&flagTrendsAll, "all", false, "Include resolved alerts")

	trendsCmd.AddCommand(trendsScanCmd, trendsListCmd, trendsResolveCmd)
	rootCmd.AddCommand(trendsCmd)
}

func runTrendsScan(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ledger.ScanTrends(context.Background(), a.ledger.Now())
	if err != nil {
		return err
	}
	info("Checked %d budgets: %d new alerts, %d already flagged", res.Checked, len(res.Raised), res.Suppressed)
	if len(res.Raised) > 0 && !flagQuiet {
		fmt.Println()
		renderTrends(res.Raised)
	}
	return nil
}

func runTrendsList(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	as, err := a.ledger.ListTrendAlerts(context.Background(), !flagTrendsAll)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("TREND ALERTS"))
	fmt.Println()
	if len(as) == 0 {
		fmt.Println("  No trend alerts.")
		return nil
	}
	renderTrends(as)
	return nil
}

func renderTrends(as []model.TrendAlert) {
	rows := make([][]string, 0, len(as))
	for _, t := range as {
		state := cli.SeverityStyle(t.Severity).Render(string(t.Severity))
		if !t.Active {
			state = cli.Muted("resolved " + cli.FormatTime(t.ResolvedAt))
		}
		rows = append(rows, []string{
			fmt.Sprintf("#%d", t.ID),
			cli.Truncate(t.Key().String(), 26),
			fmt.Sprint(t.ConsecutiveMonths),
			cli.FormatPercent(t.AveragePercentUsed),
			"+" + cli.FormatPercent(t.ExcessPercent),
			cli.FormatDate(t.DetectedAt),
			state,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"ID", "Budget", "Months", "Avg used", "Over", "Detected", "State"},
		Rows:    rows,
	}))
}

func runTrendsResolve(_ *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ledger.ResolveTrendAlert(context.Background(), id, a.ledger.Now()); err != nil {
		return err
	}
	info("Resolved trend alert #%d", id)
	return nil
}
