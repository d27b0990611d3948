package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/books/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	db := flagDB
	if db == "" {
		db = config.DBPath(cfg)
	}
	fmt.Println("  [General]")
	fmt.Printf("    Database:     %s\n", db)
	fmt.Printf("    Currency:     %s\n", cfg.General.Currency)
	if cfg.General.DefaultUser != "" {
		fmt.Printf("    Default user: %s\n", cfg.General.DefaultUser)
	}
	fmt.Println()

	fmt.Println("  [Dashboard]")
	fmt.Printf("    Horizon: %d days\n", cfg.Dashboard.HorizonDays)
	fmt.Println()

	fmt.Println("  [Trends]")
	fmt.Printf("    Months:    %d\n", cfg.Trends.Months)
	fmt.Printf("    Threshold: %.0f%%\n", cfg.Trends.ThresholdPercent)
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:              %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Poll interval:        %s\n", cfg.Daemon.PollInterval())
	fmt.Printf("    Instantiate schedule: %s\n", cfg.Daemon.InstantiateSchedule)
	fmt.Printf("    Events buffer:        %d\n", cfg.Daemon.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Security]")
	if config.GetPINHash(cfg) != "" {
		fmt.Println("    PIN: configured")
	} else {
		fmt.Println("    PIN: not configured (budgets with spend cannot be deleted)")
	}
	fmt.Println()

	fmt.Println("  Alert thresholds live in the database: `books settings`.")
	fmt.Println("  Run `books setup` to reconfigure.")
	return nil
}
