package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/books/internal/cli"
)

var (
	flagCatAll         bool
	flagCatDescription string
	flagCatColor       string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Alert thresholds and other stored settings",
	RunE:  runSettingsList,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change a setting (anticipated_days, critical_days, alerts_enabled)",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"category"},
	Short:   "The category catalogue",
	RunE:    runCategoriesList,
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	Args:  cobra.NoArgs,
	RunE:  runCategoriesList,
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoriesAdd,
}

var categoriesEnableCmd = &cobra.Command{
	Use:   "enable NAME",
	Short: "Show a hidden category",
	Args:  cobra.ExactArgs(1),
	RunE:  func(_ *cobra.Command, args []string) error { return setCategoryActive(args[0], true) },
}

var categoriesDisableCmd = &cobra.Command{
	Use:   "disable NAME",
	Short: "Hide a category from the catalogue",
	Args:  cobra.ExactArgs(1),
	RunE:  func(_ *cobra.Command, args []string) error { return setCategoryActive(args[0], false) },
}

func init() {
	settingsCmd.AddCommand(settingsListCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)

	categoriesCmd.PersistentFlags().BoolVar(&flagCatAll, "all", false, "Include hidden categories")
	categoriesAddCmd.Flags().StringVar(&flagCatDescription, "description", "", "Description")
	categoriesAddCmd.Flags().StringVar(&flagCatColor, "color", "", "Display colour (#rrggbb)")
	categoriesCmd.AddCommand(categoriesListCmd, categoriesAddCmd, categoriesEnableCmd, categoriesDisableCmd)
	rootCmd.AddCommand(categoriesCmd)
}

func runSettingsList(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ss, err := a.ledger.Settings(context.Background())
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("SETTINGS"))
	fmt.Println()
	rows := make([][]string, 0, len(ss))
	for _, s := range ss {
		at := s.UpdatedAt
		rows = append(rows, []string{s.Key, s.Value, cli.Truncate(s.Description, 40), cli.FormatTime(&at)})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Key", "Value", "Description", "Updated"},
		Rows:    rows,
	}))
	return nil
}

func runSettingsSet(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ledger.SetSetting(context.Background(), args[0], args[1]); err != nil {
		return err
	}
	info("%s = %s", args[0], args[1])
	return nil
}

func runCategoriesList(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cs, err := a.ledger.Categories(context.Background(), !flagCatAll)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("CATEGORIES"))
	fmt.Println()
	rows := make([][]string, 0, len(cs))
	for _, c := range cs {
		state := ""
		if !c.Active {
			state = cli.Muted("hidden")
		}
		rows = append(rows, []string{c.Name, cli.Truncate(c.Description, 40), c.Color, state})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Name", "Description", "Color", ""},
		Rows:    rows,
	}))
	return nil
}

func runCategoriesAdd(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.ledger.AddCategory(context.Background(), args[0], flagCatDescription, flagCatColor)
	if err != nil {
		return err
	}
	info("Added category %s", c.Name)
	return nil
}

func setCategoryActive(name string, active bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ledger.SetCategoryActive(context.Background(), name, active); err != nil {
		return err
	}
	if active {
		info("Category %s is visible", name)
	} else {
		info("Category %s is hidden", name)
	}
	return nil
}
