package cmd

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/cli"
	"github.com/theirongolddev/books/internal/ledger"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/store"
)

var (
	flagExpDesc        string
	flagExpAmount      string
	flagExpDue         string
	flagExpCategory    string
	flagExpTag         string
	flagExpNotes       string
	flagExpDiscPct     string
	flagExpDiscUntil   string
	flagExpNoDiscount  bool
	flagExpRecurring   bool
	flagExpFrequency   string
	flagExpPaidBy      string
	flagExpListStatus  string
	flagExpListMonth   string
	flagExpListAllTime bool
)

var expenseCmd = &cobra.Command{
	Use:     "expense",
	Aliases: []string{"expenses", "exp"},
	Short:   "Record, pay and list expenses",
}

var expenseAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a pending expense",
	Args:  cobra.NoArgs,
	RunE:  runExpenseAdd,
}

var expenseEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change an expense; omitted flags keep their value",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpenseEdit,
}

var expensePayCmd = &cobra.Command{
	Use:   "pay ID",
	Short: "Mark an expense paid (recurring expenses schedule their next occurrence)",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpensePay,
}

var expenseDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an expense",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpenseDelete,
}

var expenseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses of a month",
	Args:  cobra.NoArgs,
	RunE:  runExpenseList,
}

var expenseSeriesCmd = &cobra.Command{
	Use:   "series ID",
	Short: "List every occurrence of a recurring expense",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpenseSeries,
}

func init() {
	for _, c := range []*cobra.Command{expenseAddCmd, expenseEditCmd} {
		c.Flags().StringVar(&flagExpDesc, "desc", "", "Description")
		c.Flags().StringVar(&flagExpAmount, "amount", "", "Amount")
		c.Flags().StringVar(&flagExpDue, "due", "", "Due date (YYYY-MM-DD)")
		c.Flags().StringVarP(&flagExpCategory, "category", "c", "", "Category")
		c.Flags().StringVarP(&flagExpTag, "tag", "t", "", "Tag within the category")
		c.Flags().StringVar(&flagExpNotes, "notes", "", "Free-text notes")
		c.Flags().StringVar(&flagExpDiscPct, "discount", "", "Early-payment discount percent")
		c.Flags().StringVar(&flagExpDiscUntil, "discount-until", "", "Last day the discount applies (YYYY-MM-DD)")
		c.Flags().BoolVar(&flagExpRecurring, "recurring", false, "Schedule the next occurrence when paid")
		c.Flags().StringVar(&flagExpFrequency, "frequency", "", "monthly, quarterly, semiannual or annual")
	}
	expenseEditCmd.Flags().BoolVar(&flagExpNoDiscount, "no-discount", false, "Remove the discount")

	expensePayCmd.Flags().StringVar(&flagExpPaidBy, "by", "", "Who paid (default: config default_user)")

	expenseListCmd.Flags().StringVar(&flagExpListStatus, "status", "", "pending or paid")
	expenseListCmd.Flags().StringVar(&flagExpListMonth, "month", "", "Month (YYYY-MM, default current)")
	expenseListCmd.Flags().StringVarP(&flagExpCategory, "category", "c", "", "Only this category")
	expenseListCmd.Flags().StringVarP(&flagExpTag, "tag", "t", "", "Only this tag")
	expenseListCmd.Flags().BoolVar(&flagExpListAllTime, "all", false, "Every month")

	expenseCmd.AddCommand(expenseAddCmd, expenseEditCmd, expensePayCmd, expenseDeleteCmd, expenseListCmd, expenseSeriesCmd)
	rootCmd.AddCommand(expenseCmd)
}

func runExpenseAdd(cmd *cobra.Command, _ []string) error {
	in := ledger.ExpenseInput{}
	if err := applyExpenseFlags(cmd, &in); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	e, err := a.ledger.CreateExpense(context.Background(), in)
	if err != nil {
		return err
	}
	info("Recorded expense #%d: %s %s due %s", e.ID, e.Description, cli.FormatMoney(e.Amount), cli.FormatDate(e.DueDate))
	if e.Discount != nil {
		info("Pay by %s to save %s", cli.FormatDate(e.Discount.Deadline), cli.FormatMoney(e.Discount.Amount))
	}
	return nil
}

func runExpenseEdit(cmd *cobra.Command, args []string) error {
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

	before, err := a.ledger.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	in := inputFromExpense(before)
	if err := applyExpenseFlags(cmd, &in); err != nil {
		return err
	}
	if flagExpNoDiscount {
		in.Discount = nil
	}

	after, err := a.ledger.EditExpense(ctx, id, in)
	if err != nil {
		return err
	}
	// A paid expense moved between periods, keys or amounts leaves stale
	// spend on both sides.
	if after.IsPaid() {
		if err := a.ledger.RecomputeExpense(ctx, before); err != nil {
			return err
		}
		if err := a.ledger.RecomputeExpense(ctx, after); err != nil {
			return err
		}
	}
	info("Updated expense #%d", after.ID)
	return nil
}

func runExpensePay(_ *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	by := flagExpPaidBy
	if by == "" {
		by = a.cfg.General.DefaultUser
	}
	res, err := a.ledger.PayExpense(context.Background(), id, by, a.ledger.Now())
	if err != nil {
		return err
	}
	if res.AlreadyPaid {
		info("Expense #%d was already paid on %s", id, cli.FormatTime(res.Expense.PaidAt))
		return nil
	}
	info("Paid #%d %s (%s)", id, res.Expense.Description, cli.FormatMoney(res.Expense.Amount))
	if res.Successor != nil {
		info("Next occurrence #%d due %s", res.Successor.ID, cli.FormatDate(res.Successor.DueDate))
	}
	return nil
}

func runExpenseDelete(_ *cobra.Command, args []string) error {
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

	deleted, err := a.ledger.DeleteExpense(ctx, id)
	if err != nil {
		return err
	}
	if deleted.IsPaid() {
		if err := a.ledger.RecomputeExpense(ctx, deleted); err != nil {
			return err
		}
	}
	info("Deleted expense #%d (%s)", id, deleted.Description)
	return nil
}

func runExpenseList(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var f store.ExpenseFilter
	title := "EXPENSES  all months"
	if !flagExpListAllTime {
		m, err := parseMonth(flagExpListMonth, a.ledger.Now())
		if err != nil {
			return err
		}
		f.From, f.To = m.Start(), m.End()
		title = "EXPENSES  " + m.String()
	}
	if flagExpListStatus != "" {
		st, err := model.ParseExpenseStatus(flagExpListStatus)
		if err != nil {
			return apperr.Validation("%v", err)
		}
		f.Status = &st
	}
	f.Category = flagExpCategory
	f.Tag = flagExpTag

	es, err := a.ledger.ListExpenses(context.Background(), f)
	if err != nil {
		return err
	}
	renderExpenses(title, es)
	return nil
}

func runExpenseSeries(_ *cobra.Command, args []string) error {
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

	e, err := a.ledger.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	es, err := a.ledger.ListSeries(ctx, e.SeriesID)
	if err != nil {
		return err
	}
	renderExpenses(fmt.Sprintf("SERIES  %s", cli.Truncate(e.Description, 30)), es)
	return nil
}

func renderExpenses(title string, es []model.Expense) {
	fmt.Println()
	fmt.Println(cli.RenderTitle(title))
	fmt.Println()
	if len(es) == 0 {
		fmt.Println("  No expenses.")
		return
	}

	rows := make([][]string, 0, len(es)+2)
	total, paid := decimal.Zero, decimal.Zero
	for _, e := range es {
		status := cli.Warn(e.Status.String())
		if e.IsPaid() {
			status = cli.OK(e.Status.String())
			paid = paid.Add(e.Amount)
		}
		total = total.Add(e.Amount)
		key := e.Category
		if e.Tag != "" {
			key += "/" + e.Tag
		}
		extra := ""
		if e.Recurring {
			extra = e.Frequency.String()
		}
		if e.Discount != nil {
			if extra != "" {
				extra += " "
			}
			extra += "-" + e.Discount.Percent.String() + "%"
		}
		rows = append(rows, []string{
			fmt.Sprintf("#%d", e.ID),
			cli.Truncate(e.Description, 28),
			cli.Truncate(key, 24),
			cli.FormatDate(e.DueDate),
			cli.FormatMoney(e.Amount),
			status,
			extra,
		})
	}
	rows = append(rows, []string{"---"})
	rows = append(rows, []string{"", "TOTAL", "", "", cli.FormatMoney(total), cli.Muted("paid " + cli.FormatMoney(paid)), ""})

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"ID", "Description", "Category", "Due", "Amount", "Status", ""},
		Rows:    rows,
	}))
}

// inputFromExpense returns the editable fields of e as an input.
func inputFromExpense(e model.Expense) ledger.ExpenseInput {
	in := ledger.ExpenseInput{
		Description: e.Description,
		Amount:      e.Amount,
		DueDate:     e.DueDate,
		Category:    e.Category,
		Tag:         e.Tag,
		Notes:       e.Notes,
		Recurring:   e.Recurring,
		Frequency:   e.Frequency,
	}
	if e.Discount != nil {
		in.Discount = &ledger.DiscountInput{Deadline: e.Discount.Deadline, Percent: e.Discount.Percent}
	}
	return in
}

// applyExpenseFlags copies the flags the user set onto in.
func applyExpenseFlags(cmd *cobra.Command, in *ledger.ExpenseInput) error {
	fl := cmd.Flags()
	if fl.Changed("desc") {
		in.Description = flagExpDesc
	}
	if fl.Changed("amount") {
		amt, err := parseMoney("amount", flagExpAmount)
		if err != nil {
			return err
		}
		in.Amount = amt
	}
	if fl.Changed("due") {
		due, err := parseDate("due", flagExpDue)
		if err != nil {
			return err
		}
		in.DueDate = due
	}
	if fl.Changed("category") {
		in.Category = flagExpCategory
	}
	if fl.Changed("tag") {
		in.Tag = flagExpTag
	}
	if fl.Changed("notes") {
		in.Notes = flagExpNotes
	}
	if fl.Changed("discount") || fl.Changed("discount-until") {
		d := ledger.DiscountInput{}
		if in.Discount != nil {
			d = *in.Discount
		}
		if fl.Changed("discount") {
			pct, err := parseMoney("discount", flagExpDiscPct)
			if err != nil {
				return err
			}
			d.Percent = pct
		}
		if fl.Changed("discount-until") {
			until, err := parseDate("discount-until", flagExpDiscUntil)
			if err != nil {
				return err
			}
			d.Deadline = until
		}
		in.Discount = &d
	}
	if fl.Changed("frequency") {
		freq, err := model.ParseFrequency(flagExpFrequency)
		if err != nil {
			return apperr.Validation("%v", err)
		}
		in.Frequency = freq
		in.Recurring = freq != model.FrequencyNone
	}
	if fl.Changed("recurring") {
		in.Recurring = flagExpRecurring
	}
	return nil
}
