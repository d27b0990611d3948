// Package cmd implements the books CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/auth"
	"github.com/theirongolddev/books/internal/config"
	"github.com/theirongolddev/books/internal/ledger"
	"github.com/theirongolddev/books/internal/metrics"
	"github.com/theirongolddev/books/internal/store"
)

var (
	flagDB      string
	flagQuiet   bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "books",
	Short:         "Office bookkeeping: expenses, budgets and payment alerts",
	Long:          "Track office expenses, monthly budgets and budget templates, and see what needs paying next.",
	RunE:          runAlerts,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  %s\n", describeError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (default: $XDG_DATA_HOME/books/books.db)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log ledger activity to stderr")
}

// app holds everything a command needs to talk to the ledger.
type app struct {
	cfg    config.Config
	store  *store.Store
	ledger *ledger.Service
	log    *zap.Logger
}

// openApp loads the config, opens the database and builds the ledger.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := zap.NewNop()
	if flagVerbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
	}
	return openAppWith(cfg, log, nil)
}

func openAppWith(cfg config.Config, log *zap.Logger, m *metrics.Metrics) (*app, error) {
	path := flagDB
	if path == "" {
		path = config.DBPath(cfg)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	l := ledger.New(st,
		ledger.WithLogger(log),
		ledger.WithAuthorizer(auth.FromHash(config.GetPINHash(cfg))),
		ledger.WithMetrics(m),
		ledger.WithTrendConfig(ledger.TrendConfig{
			Months:           cfg.Trends.Months,
			ThresholdPercent: cfg.Trends.ThresholdPercent,
		}),
		ledger.WithHorizonDays(cfg.Dashboard.HorizonDays),
	)
	log.Debug("database opened", zap.String("path", path))
	return &app{cfg: cfg, store: st, ledger: l, log: log}, nil
}

func (a *app) Close() {
	_ = a.log.Sync()
	_ = a.store.Close()
}

// actor names who performs a change.
func (a *app) actor() string {
	if a.cfg.General.DefaultUser != "" {
		return a.cfg.General.DefaultUser
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "system"
}

// describeError turns a ledger error into a one-line message.
func describeError(err error) string {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return "error: " + err.Error()
	}
	switch ae.Kind {
	case apperr.KindValidation:
		return "invalid input: " + ae.Message
	case apperr.KindNotFound:
		return ae.Message
	case apperr.KindDuplicate:
		return "already exists: " + ae.Message
	case apperr.KindPolicy:
		return "blocked: " + ae.Message
	case apperr.KindInternal:
		return "error: " + err.Error()
	}
	return "error: " + err.Error()
}

// info prints an informational line unless --quiet.
func info(format string, args ...any) {
	if flagQuiet {
		return
	}
	fmt.Printf("  "+format+"\n", args...)
}
