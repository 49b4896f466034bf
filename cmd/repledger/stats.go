package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/warp/repledger/engine"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print financial figures as JSON",
		Long:  `Aggregates every stored transaction and order and prints cash on hand, HQ transfers, collections, expenses and sales.`,
		RunE:  runStats,
	}
}

type statsOutput struct {
	RepCashOnHand   string `json:"repCashOnHand"`
	TransferredToHQ string `json:"transferredToHQ"`
	TotalCollected  string `json:"totalCollected"`
	TotalExpenses   string `json:"totalExpenses"`
	TotalSales      string `json:"totalSales"`
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	repo, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := engine.New(repo).Stats.Stats(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(statsOutput{
		RepCashOnHand:   stats.RepCashOnHand.StringFixed(2),
		TransferredToHQ: stats.TransferredToHQ.StringFixed(2),
		TotalCollected:  stats.TotalCollected.StringFixed(2),
		TotalExpenses:   stats.TotalExpenses.StringFixed(2),
		TotalSales:      stats.TotalSales.StringFixed(2),
	})
}
