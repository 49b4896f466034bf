package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/warp/repledger/config"
	"github.com/warp/repledger/engine"
	"github.com/warp/repledger/engine/store"
	"github.com/warp/repledger/logging"
	"github.com/warp/repledger/store/sqlite"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "repledger",
		Short: "Stock and ledger reconciliation for field sales reps",
		Long: `repledger keeps product stock, order payment state and the rep's cash
position consistent while orders and transactions are created, edited
and deleted.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to a TOML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newStatsCmd())
	return root
}

// loadConfig reads --config and the environment layers.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
}

// openStore selects the repository backend once for the process lifetime.
func openStore(cfg config.Config) (engine.TxRepository, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemory(), func() error { return nil }, nil
	case config.BackendSQLite:
		s, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
