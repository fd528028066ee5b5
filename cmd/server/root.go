package main

import (
	"context"
	"fmt"

	"github.com/entrylog/internal/config"
	"github.com/entrylog/internal/db"
	"github.com/entrylog/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app 汇总子命令共享的配置与依赖
type app struct {
	envFile string
	dbPath  string

	cfg    config.AppConfig
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "entrylog",
		Short:         "A single-author blog with drafts and full-text search",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path (overrides DATABASE_PATH)")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newReindexCmd(a),
		newSeedCmd(a),
	)
	return root
}

func (a *app) init() error {
	if a.envFile != "" {
		// .env 可选，缺失时直接使用进程环境变量
		_ = godotenv.Load(a.envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DatabasePath = a.dbPath
	}
	a.cfg = cfg

	l, err := logger.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = l
	return nil
}

// openDB opens and migrates the database.
func (a *app) openDB(ctx context.Context) (*gorm.DB, error) {
	gdb, err := db.Open(a.cfg.DatabasePath, db.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, gdb); err != nil {
		_ = db.Close(gdb)
		return nil, fmt.Errorf("migrate %s: %w", a.cfg.DatabasePath, err)
	}
	return gdb, nil
}
