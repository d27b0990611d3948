package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/books/internal/cli"
	"github.com/theirongolddev/books/internal/ledger"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
)

var (
	flagTplCategory string
	flagTplTag      string
	flagTplBase     string
	flagTplFeb      string
	flagTplJun      string
	flagTplDec      string
	flagTplNotes    string
	flagTplAll      bool
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"templates", "tpl"},
	Short:   "Manage budget templates used to create each month's budgets",
}

var templateAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a template",
	Args:  cobra.NoArgs,
	RunE:  runTemplateAdd,
}

var templateEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change a template (existing budgets are not touched)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateEdit,
}

var templatePauseCmd = &cobra.Command{
	Use:   "pause ID",
	Short: "Stop creating budgets from a template",
	Args:  cobra.ExactArgs(1),
	RunE:  func(_ *cobra.Command, args []string) error { return setTemplateActive(args[0], false) },
}

var templateResumeCmd = &cobra.Command{
	Use:   "resume ID",
	Short: "Resume a paused template",
	Args:  cobra.ExactArgs(1),
	RunE:  func(_ *cobra.Command, args []string) error { return setTemplateActive(args[0], true) },
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a template (budgets created from it are kept)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateDelete,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates with their seasonal overrides",
	Args:  cobra.NoArgs,
	RunE:  runTemplateList,
}

var templateHistoryCmd = &cobra.Command{
	Use:   "history [ID]",
	Short: "Show the change history of one or all templates",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTemplateHistory,
}

func init() {
	for _, c := range []*cobra.Command{templateAddCmd, templateEditCmd} {
		c.Flags().StringVarP(&flagTplCategory, "category", "c", "", "Category")
		c.Flags().StringVarP(&flagTplTag, "tag", "t", "", "Tag within the category")
		c.Flags().StringVar(&flagTplBase, "base", "", "Amount for ordinary months")
		c.Flags().StringVar(&flagTplFeb, "february", "", "February override (Cesantías); \"none\" clears it")
		c.Flags().StringVar(&flagTplJun, "june", "", "June override (Prima); \"none\" clears it")
		c.Flags().StringVar(&flagTplDec, "december", "", "December override (Liquidaciones); \"none\" clears it")
		c.Flags().StringVar(&flagTplNotes, "notes", "", "Free-text notes")
	}
	_ = templateAddCmd.MarkFlagRequired("category")
	_ = templateAddCmd.MarkFlagRequired("base")

	templateListCmd.Flags().BoolVar(&flagTplAll, "all", false, "Include paused templates")

	templateCmd.AddCommand(templateAddCmd, templateEditCmd, templatePauseCmd, templateResumeCmd,
		templateDeleteCmd, templateListCmd, templateHistoryCmd)
	rootCmd.AddCommand(templateCmd)
}

func runTemplateAdd(cmd *cobra.Command, _ []string) error {
	var in ledger.TemplateInput
	if err := applyTemplateFlags(cmd, &in); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.ledger.CreateTemplate(context.Background(), in, a.actor())
	if err != nil {
		return err
	}
	info("Template #%d %s: %s per month", t.ID, t.Key(), cli.FormatMoney(t.BaseAmount))
	return nil
}

func runTemplateEdit(cmd *cobra.Command, args []string) error {
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

	cur, err := a.ledger.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	in := ledger.TemplateInput{
		Category:   cur.Category,
		Tag:        cur.Tag,
		BaseAmount: cur.BaseAmount,
		February:   cur.February,
		June:       cur.June,
		December:   cur.December,
		Notes:      cur.Notes,
	}
	if err := applyTemplateFlags(cmd, &in); err != nil {
		return err
	}

	t, err := a.ledger.EditTemplate(ctx, id, in, a.actor())
	if err != nil {
		return err
	}
	info("Updated template #%d %s", t.ID, t.Key())
	return nil
}

func setTemplateActive(arg string, active bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.ledger.SetTemplateActive(context.Background(), id, active, a.actor())
	if err != nil {
		return err
	}
	state := "paused"
	if t.Active {
		state = "active"
	}
	info("Template #%d %s is %s", t.ID, t.Key(), state)
	return nil
}

func runTemplateDelete(_ *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ledger.DeleteTemplate(context.Background(), id, a.actor()); err != nil {
		return err
	}
	info("Deleted template #%d", id)
	return nil
}

func runTemplateList(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ts, err := a.ledger.ListTemplates(context.Background(), !flagTplAll)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("BUDGET TEMPLATES"))
	fmt.Println()
	if len(ts) == 0 {
		fmt.Println("  No templates. Create one with `books template add`.")
		return nil
	}

	// Annual cost assumes twelve months with each override in its month.
	year := period.Of(a.ledger.Now()).Year
	rows := make([][]string, 0, len(ts))
	for _, t := range ts {
		annual := decimal.Zero
		for mo := time.January; mo <= time.December; mo++ {
			annual = annual.Add(ledger.ResolveAmount(t, period.Month{Year: year, Month: mo}))
		}
		state := cli.OK("active")
		if !t.Active {
			state = cli.Muted("paused")
		}
		key := t.Category
		if t.Tag != "" {
			key += "/" + t.Tag
		}
		rows = append(rows, []string{
			fmt.Sprintf("#%d", t.ID),
			cli.Truncate(key, 26),
			cli.FormatMoney(t.BaseAmount),
			formatOverride(t.February),
			formatOverride(t.June),
			formatOverride(t.December),
			cli.FormatMoney(annual),
			state,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"ID", "Budget", "Base", "Feb", "Jun", "Dec", "Annual", "State"},
		Rows:    rows,
	}))
	return nil
}

func formatOverride(o decimal.NullDecimal) string {
	if !o.Valid {
		return cli.Muted("-")
	}
	return cli.FormatMoney(o.Decimal)
}

func runTemplateHistory(_ *cobra.Command, args []string) error {
	var id int64
	if len(args) == 1 {
		var err error
		if id, err = parseID(args[0]); err != nil {
			return err
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	changes, err := a.ledger.TemplateHistory(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("TEMPLATE HISTORY"))
	fmt.Println()
	if len(changes) == 0 {
		fmt.Println("  No changes recorded.")
		return nil
	}

	rows := make([][]string, 0, len(changes))
	for _, c := range changes {
		at := c.At
		rows = append(rows, []string{
			cli.FormatTime(&at),
			fmt.Sprintf("#%d", c.TemplateID),
			actionStyle(c.Action),
			c.Actor,
			cli.Truncate(changeSummary(c), 60),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"When", "Template", "Action", "By", "Values"},
		Rows:    rows,
	}))
	return nil
}

func actionStyle(a model.TemplateAction) string {
	switch a {
	case model.TemplateCreated, model.TemplateResumed:
		return cli.OK(string(a))
	case model.TemplateDeleted, model.TemplatePaused:
		return cli.Warn(string(a))
	case model.TemplateEdited:
		return string(a)
	}
	return string(a)
}

func changeSummary(c model.TemplateChange) string {
	switch {
	case c.NewValues != "":
		return c.NewValues
	case c.OldValues != "":
		return c.OldValues
	}
	return ""
}

// applyTemplateFlags copies the flags the user set onto in. An override of
// "none" clears it.
func applyTemplateFlags(cmd *cobra.Command, in *ledger.TemplateInput) error {
	fl := cmd.Flags()
	if fl.Changed("category") {
		in.Category = flagTplCategory
	}
	if fl.Changed("tag") {
		in.Tag = flagTplTag
	}
	if fl.Changed("notes") {
		in.Notes = flagTplNotes
	}
	if fl.Changed("base") {
		base, err := parseMoney("base", flagTplBase)
		if err != nil {
			return err
		}
		in.BaseAmount = base
	}
	overrides := []struct {
		flag  string
		value string
		dst   *decimal.NullDecimal
	}{
		{"february", flagTplFeb, &in.February},
		{"june", flagTplJun, &in.June},
		{"december", flagTplDec, &in.December},
	}
	for _, o := range overrides {
		if !fl.Changed(o.flag) {
			continue
		}
		if o.value == "none" {
			*o.dst = decimal.NullDecimal{}
			continue
		}
		v, err := parseOptionalMoney(o.flag, o.value)
		if err != nil {
			return err
		}
		*o.dst = v
	}
	return nil
}
