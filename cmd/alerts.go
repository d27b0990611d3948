package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/books/internal/cli"
	"github.com/theirongolddev/books/internal/model"
)

var alertsCmd = &cobra.Command{
	Use:     "alerts",
	Aliases: []string{"dashboard", "due"},
	Short:   "What needs paying, grouped by urgency",
	Args:    cobra.NoArgs,
	RunE:    runAlerts,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.ledger.Dashboard(context.Background(), a.ledger.Now())
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("PAYMENTS  %s  next %dd", cli.FormatDate(d.Today), d.HorizonDays)))
	fmt.Println()

	if !d.Enabled {
		fmt.Println(cli.Muted("  Alerts are disabled (books settings set alerts_enabled 1)."))
		fmt.Println()
	}
	if len(d.Items) == 0 {
		fmt.Println("  Nothing pending.")
		return nil
	}

	counts := make([][2]string, 0, len(model.Urgencies)+1)
	for _, u := range model.Urgencies {
		counts = append(counts, [2]string{u.Label(), cli.UrgencyStyle(u).Render(fmt.Sprint(d.Count(u)))})
	}
	counts = append(counts, [2]string{"Total pending", cli.FormatMoney(d.TotalPending)})
	fmt.Print(cli.RenderKV(counts))
	fmt.Println()

	rows := make([][]string, 0, len(d.Items))
	for _, it := range d.Items {
		e := it.Expense
		key := e.Category
		if e.Tag != "" {
			key += "/" + e.Tag
		}
		rows = append(rows, []string{
			fmt.Sprintf("#%d", e.ID),
			cli.Truncate(e.Description, 28),
			cli.Truncate(key, 22),
			cli.FormatMoney(e.Amount),
			cli.FormatDate(e.DueDate),
			cli.UrgencyStyle(it.Urgency).Render(cli.FormatDays(it.DaysRemaining)),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"ID", "Description", "Category", "Amount", "Due", "When"},
		Rows:    rows,
	}))

	if len(d.ExpiringDiscounts) > 0 {
		fmt.Println()
		fmt.Println(cli.Warn(fmt.Sprintf("  Discounts expiring soon (%s at risk):", cli.FormatMoney(d.AtRisk))))
		for _, n := range d.ExpiringDiscounts {
			fmt.Printf("    #%d %s  save %s if paid %s\n",
				n.Expense.ID, cli.Truncate(n.Expense.Description, 28), cli.FormatMoney(n.Amount), cli.FormatDays(n.DaysLeft))
		}
	}
	if len(d.ForfeitedDiscounts) > 0 {
		fmt.Println()
		fmt.Println(cli.Muted(fmt.Sprintf("  Discounts already lost: %s", cli.FormatMoney(d.Lost))))
	}
	return nil
}
