package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"artifact-sync-service/internal/adapters/secondary/indexer"
	"artifact-sync-service/internal/core/services"
)

func newSyncOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-once",
		Short: "Run a single reconciliation cycle and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			repo, closeStore, err := openStore(cmd.Context(), &cfg.Store, false)
			if err != nil {
				return err
			}
			defer closeStore()

			coordinator := services.NewSyncCoordinator(repo, indexer.NewIndexerClient(&cfg.Sync),
				services.WithBatchSize(cfg.Sync.BatchSize))
			report := coordinator.RunCycle(cmd.Context(), services.TriggerOnce)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
