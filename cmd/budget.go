package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/books/internal/cli"
	"github.com/theirongolddev/books/internal/ledger"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

var (
	flagBudMonth    string
	flagBudCategory string
	flagBudTag      string
	flagBudAmount   string
	flagBudPIN      string
	flagBudAll      bool
)

var budgetCmd = &cobra.Command{
	Use:     "budget",
	Aliases: []string{"budgets"},
	Short:   "Manage monthly budgets",
}

var budgetAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a budget for one month",
	Args:  cobra.NoArgs,
	RunE:  runBudgetAdd,
}

var budgetEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change the amount of a current or future budget",
	Args:  cobra.ExactArgs(1),
	RunE:  runBudgetEdit,
}

var budgetDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a budget (budgets with spend need the PIN)",
	Args:  cobra.ExactArgs(1),
	RunE:  runBudgetDelete,
}

var budgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show budgets with usage and trend alerts",
	Args:  cobra.NoArgs,
	RunE:  runBudgetList,
}

var budgetSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Totals for one month",
	Args:  cobra.NoArgs,
	RunE:  runBudgetSummary,
}

var budgetRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild the spent column of every budget from paid expenses",
	Args:  cobra.NoArgs,
	RunE:  runBudgetRecompute,
}

func init() {
	budgetAddCmd.Flags().StringVar(&flagBudMonth, "month", "", "Month (YYYY-MM, default current)")
	budgetAddCmd.Flags().StringVarP(&flagBudCategory, "category", "c", "", "Category")
	budgetAddCmd.Flags().StringVarP(&flagBudTag, "tag", "t", "", "Tag within the category")
	budgetAddCmd.Flags().StringVar(&flagBudAmount, "amount", "", "Budgeted amount")
	_ = budgetAddCmd.MarkFlagRequired("category")
	_ = budgetAddCmd.MarkFlagRequired("amount")

	budgetEditCmd.Flags().StringVar(&flagBudAmount, "amount", "", "New budgeted amount")
	_ = budgetEditCmd.MarkFlagRequired("amount")

	budgetDeleteCmd.Flags().StringVar(&flagBudPIN, "pin", "", "PIN authorizing the deletion (prompted when omitted)")

	budgetListCmd.Flags().StringVar(&flagBudMonth, "month", "", "Month (YYYY-MM, default current)")
	budgetListCmd.Flags().BoolVar(&flagBudAll, "all", false, "Every month")
	budgetSummaryCmd.Flags().StringVar(&flagBudMonth, "month", "", "Month (YYYY-MM, default current)")

	budgetCmd.AddCommand(budgetAddCmd, budgetEditCmd, budgetDeleteCmd, budgetListCmd, budgetSummaryCmd, budgetRecomputeCmd)
	rootCmd.AddCommand(budgetCmd)
}

func runBudgetAdd(_ *cobra.Command, _ []string) error {
	amount, err := parseMoney("amount", flagBudAmount)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := parseMonth(flagBudMonth, a.ledger.Now())
	if err != nil {
		return err
	}
	b, err := a.ledger.CreateBudget(context.Background(), ledger.BudgetInput{
		Period:   m,
		Category: flagBudCategory,
		Tag:      flagBudTag,
		Amount:   amount,
	})
	if err != nil {
		return err
	}
	info("Budget #%d %s %s: %s (spent so far %s)", b.ID, b.Period, b.Key(), cli.FormatMoney(b.Budgeted), cli.FormatMoney(b.Spent))
	return nil
}

func runBudgetEdit(_ *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := parseMoney("amount", flagBudAmount)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.ledger.EditBudget(context.Background(), id, amount)
	if err != nil {
		return err
	}
	info("Budget #%d %s %s is now %s", b.ID, b.Period, b.Key(), cli.FormatMoney(b.Budgeted))
	return nil
}

func runBudgetDelete(_ *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	b, err := a.ledger.GetBudget(ctx, id)
	if err != nil {
		return err
	}
	pin := flagBudPIN
	if b.Spent.IsPositive() && pin == "" && isTerminal(os.Stdin) {
		if pin, err = promptPIN(fmt.Sprintf("Budget %s %s has %s spent. PIN to delete:", b.Period, b.Key(), cli.FormatMoney(b.Spent))); err != nil {
			return err
		}
	}

	if err := a.ledger.DeleteBudget(ctx, id, pin); err != nil {
		return err
	}
	info("Deleted budget #%d %s %s", id, b.Period, b.Key())
	return nil
}

func promptPIN(title string) (string, error) {
	var pin string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&pin).
		Run()
	if err != nil {
		return "", fmt.Errorf("reading PIN: %w", err)
	}
	return pin, nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func runBudgetList(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()
	now := a.ledger.Now()

	var m period.Month
	if !flagBudAll {
		if m, err = parseMonth(flagBudMonth, now); err != nil {
			return err
		}
	}

	// The budgets view is where standing overspend is surfaced, so scan first.
	scan, err := a.ledger.ScanTrends(ctx, now)
	if err != nil {
		return err
	}
	views, err := a.ledger.ListBudgets(ctx, m)
	if err != nil {
		return err
	}
	active, err := a.ledger.ListTrendAlerts(ctx, true)
	if err != nil {
		return err
	}

	title := "BUDGETS  all months"
	if !m.IsZero() {
		title = "BUDGETS  " + m.String()
	}
	fmt.Println()
	fmt.Println(cli.RenderTitle(title))
	fmt.Println()

	if len(views) == 0 {
		fmt.Println("  No budgets. Create one with `books budget add` or `books month instantiate`.")
	} else {
		flagged := make(map[model.Key]model.TrendAlert, len(active))
		for _, t := range active {
			flagged[t.Key()] = t
		}

		rows := make([][]string, 0, len(views)+2)
		for _, v := range views {
			key := v.Category
			if v.Tag != "" {
				key += "/" + v.Tag
			}
			note := v.SpecialLabel
			if t, ok := flagged[v.Key()]; ok {
				if note != "" {
					note += " "
				}
				note += cli.SeverityStyle(t.Severity).Render("▲ " + string(t.Severity))
			}
			row := []string{fmt.Sprintf("#%d", v.ID)}
			if m.IsZero() {
				row = append(row, v.Period.String())
			}
			row = append(row,
				cli.Truncate(key, 26),
				cli.FormatMoney(v.Budgeted),
				cli.FormatMoney(v.Spent),
				cli.FormatMoney(v.Remaining()),
				cli.RenderUsageBar(v.UsagePercent, 12),
				note,
			)
			rows = append(rows, row)
		}

		sum := ledger.Summarize(m, views)
		rows = append(rows, []string{"---"})
		total := []string{""}
		if m.IsZero() {
			total = append(total, "")
		}
		total = append(total, "TOTAL",
			cli.FormatMoney(sum.Budgeted),
			cli.FormatMoney(sum.Spent),
			cli.FormatMoney(sum.Remaining),
			cli.FormatPercent(sum.UsagePercent),
			"",
		)
		rows = append(rows, total)

		headers := []string{"ID"}
		if m.IsZero() {
			headers = append(headers, "Month")
		}
		headers = append(headers, "Budget", "Budgeted", "Spent", "Remaining", "Usage", "")
		fmt.Print(cli.RenderTable(cli.Table{Headers: headers, Rows: rows}))
	}

	if len(scan.Raised) > 0 {
		fmt.Println()
		for _, t := range scan.Raised {
			fmt.Printf("  %s %s\n", cli.SeverityStyle(t.Severity).Render("New trend alert:"), t.Message)
		}
	}
	return nil
}

func runBudgetSummary(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := parseMonth(flagBudMonth, a.ledger.Now())
	if err != nil {
		return err
	}
	sum, err := a.ledger.BudgetSummary(context.Background(), m)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("BUDGET SUMMARY  " + m.String()))
	fmt.Println()
	fmt.Print(cli.RenderKV([][2]string{
		{"Budgets", cli.FormatNumber(int64(sum.Count))},
		{"Budgeted", cli.FormatMoney(sum.Budgeted)},
		{"Spent", cli.FormatMoney(sum.Spent)},
		{"Remaining", cli.FormatMoney(sum.Remaining)},
		{"Usage", cli.RenderUsageBar(sum.UsagePercent, 20)},
		{"Within budget", cli.LevelStyle(model.UsageOK).Render(fmt.Sprint(sum.OK))},
		{"Near limit", cli.LevelStyle(model.UsageNear).Render(fmt.Sprint(sum.Near))},
		{"Exceeded", cli.LevelStyle(model.UsageExceeded).Render(fmt.Sprint(sum.Exceeded))},
	}))
	return nil
}

func runBudgetRecompute(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.ledger.RecomputeAll(context.Background())
	if err != nil {
		return err
	}
	info("Recomputed %d budgets", n)
	return nil
}
