package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/books/internal/cli"
)

var (
	flagMonthMonth string
	flagMonthLimit int
)

var monthCmd = &cobra.Command{
	Use:   "month",
	Short: "Month start operations",
}

var monthInstantiateCmd = &cobra.Command{
	Use:   "instantiate",
	Short: "Create a month's budgets from the active templates (safe to repeat)",
	Args:  cobra.NoArgs,
	RunE:  runMonthInstantiate,
}

var monthLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent instantiation runs",
	Args:  cobra.NoArgs,
	RunE:  runMonthLog,
}

func init() {
	monthInstantiateCmd.Flags().StringVar(&flagMonthMonth, "month", "", "Month (YYYY-MM, default current)")
	monthLogCmd.Flags().IntVar(&flagMonthLimit, "limit", 20, "Number of runs to show")

	monthCmd.AddCommand(monthInstantiateCmd, monthLogCmd)
	rootCmd.AddCommand(monthCmd)
}

func runMonthInstantiate(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := parseMonth(flagMonthMonth, a.ledger.Now())
	if err != nil {
		return err
	}
	res, err := a.ledger.InstantiateMonth(context.Background(), m)
	if err != nil {
		return err
	}

	info("%s: %s created, %d already existed, %s",
		res.Period,
		cli.OK(fmt.Sprint(res.Created)),
		res.Existing,
		errorCount(res.Errors),
	)
	if !flagQuiet {
		for _, d := range res.Details {
			fmt.Printf("    %s\n", cli.Muted(d))
		}
	}
	return nil
}

func errorCount(n int) string {
	s := fmt.Sprintf("%d errors", n)
	if n == 0 {
		return s
	}
	return cli.Warn(s)
}

func runMonthLog(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.ledger.InstantiationLog(context.Background(), flagMonthLimit)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("INSTANTIATION LOG"))
	fmt.Println()
	if len(runs) == 0 {
		fmt.Println("  No runs yet.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		at := r.RanAt
		rows = append(rows, []string{
			cli.FormatTime(&at),
			r.Period.String(),
			fmt.Sprint(r.Created),
			fmt.Sprint(r.Existing),
			errorCount(r.Errors),
			cli.Truncate(strings.ReplaceAll(r.Details, "\n", "; "), 50),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Ran", "Month", "Created", "Existing", "Errors", "Details"},
		Rows:    rows,
	}))
	return nil
}
