package main

import (
	"fmt"

	"github.com/entrylog/internal/db"
	"github.com/entrylog/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(gdb) }()

			a.logger.Info("database migrated", zap.String("database", a.cfg.DatabasePath))
			return nil
		},
	}
}

func newReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text search index from stored entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(gdb) }()

			indexed, err := service.NewEntryService(gdb, a.logger).RebuildSearchIndex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d entries\n", indexed)
			return nil
		},
	}
}
