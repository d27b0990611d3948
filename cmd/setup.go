package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/books/internal/auth"
	"github.com/theirongolddev/books/internal/config"
	"github.com/theirongolddev/books/internal/daemon"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Load existing config or defaults
	cfg, _ := config.Load()

	var (
		user      = cfg.General.DefaultUser
		horizon   = cfg.Dashboard.HorizonDays
		months    = strconv.Itoa(cfg.Trends.Months)
		threshold = strconv.FormatFloat(cfg.Trends.ThresholdPercent, 'f', -1, 64)
		schedule  = cfg.Daemon.InstantiateSchedule
		setPIN    = cfg.Security.PINHash == ""
		pin       string
		confirm   string
	)

	fmt.Println()
	fmt.Println("  Welcome to books!")
	fmt.Println()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Your name").
				Description("Recorded as the payer and as the author of template changes.").
				Value(&user),
			huh.NewSelect[int]().
				Title("Payment horizon").
				Description("How far ahead the payments view looks.").
				Options(
					huh.NewOption("15 days", 15),
					huh.NewOption("30 days", 30),
					huh.NewOption("60 days", 60),
					huh.NewOption("90 days", 90),
				).
				Value(&horizon),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Trend window (months)").
				Description("Consecutive months a budget must be overspent before it is flagged.").
				Validate(positiveInt).
				Value(&months),
			huh.NewInput().
				Title("Trend threshold (%)").
				Description("Usage a month must exceed to count as overspent.").
				Validate(positiveFloat).
				Value(&threshold),
			huh.NewInput().
				Title("Month instantiation schedule").
				Description("Cron spec the daemon uses to create each month's budgets.").
				Validate(daemon.ValidateSchedule).
				Value(&schedule),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Set the PIN for deleting budgets with spend?").
				Value(&setPIN),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled.")
			return nil
		}
		return err
	}

	if setPIN {
		pinForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("PIN").EchoMode(huh.EchoModePassword).Value(&pin),
			huh.NewInput().Title("Repeat PIN").EchoMode(huh.EchoModePassword).Value(&confirm),
		))
		if err := pinForm.Run(); err != nil {
			return err
		}
		if pin != confirm {
			return errors.New("PINs do not match")
		}
		hash, err := auth.HashPIN(pin)
		if err != nil {
			return err
		}
		cfg.Security.PINHash = hash
	}

	cfg.General.DefaultUser = strings.TrimSpace(user)
	cfg.Dashboard.HorizonDays = horizon
	cfg.Trends.Months, _ = strconv.Atoi(strings.TrimSpace(months))
	cfg.Trends.ThresholdPercent, _ = strconv.ParseFloat(strings.TrimSpace(threshold), 64)
	cfg.Daemon.InstantiateSchedule = strings.TrimSpace(schedule)

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `books setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return errors.New("enter a whole number above zero")
	}
	return nil
}

func positiveFloat(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return errors.New("enter a number above zero")
	}
	return nil
}
