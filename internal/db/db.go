package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DriverName 是注册了 rank() 函数的 SQLite 驱动名称。
const DriverName = "sqlite3_entrylog"

const defaultDatabasePath = "blog.db"

//go:embed migrations/*.sql
var migrations embed.FS

var registerDriverOnce sync.Once

type openOptions struct {
	logger   *zap.Logger
	logLevel logger.LogLevel
}

// Option customises Open.
type Option func(*openOptions)

// WithLogger routes gorm's SQL logging through the given zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *openOptions) {
		o.logger = l
	}
}

// WithLogLevel sets gorm's log level (logger.Silent in tests).
func WithLogLevel(level logger.LogLevel) Option {
	return func(o *openOptions) {
		o.logLevel = level
	}
}

// Open 打开 SQLite 数据库连接。
// databasePath 为空时回退到 blog.db；支持 file:...?mode=memory 形式的内存库。
func Open(databasePath string, opts ...Option) (*gorm.DB, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = defaultDatabasePath
	}

	options := openOptions{logLevel: logger.Warn}
	for _, opt := range opts {
		opt(&options)
	}

	memory := isMemoryDSN(path)
	if !memory {
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
	}

	registerDriver()

	gdb, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: DriverName,
		DSN:        path,
	}), &gorm.Config{
		Logger:         newGormLogger(options),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if !memory {
		if err := gdb.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			return nil, fmt.Errorf("enabling WAL: %w", err)
		}
	}

	return gdb, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func registerDriver() {
	registerDriverOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				// pragma 按连接生效，必须在每个新连接上设置
				for _, pragma := range []string{
					"PRAGMA foreign_keys = ON",
					"PRAGMA busy_timeout = 5000",
				} {
					if _, err := conn.Exec(pragma, nil); err != nil {
						return err
					}
				}
				return conn.RegisterFunc("rank", Rank, true)
			},
		})
	})
}

func newGormLogger(o openOptions) logger.Interface {
	if o.logger == nil {
		return logger.Default.LogMode(o.logLevel)
	}
	return logger.New(zap.NewStdLog(o.logger.Named("gorm")), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  o.logLevel,
		IgnoreRecordNotFoundError: true,
	})
}

func isMemoryDSN(path string) bool {
	return strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
}

func ensureParentDir(path string) error {
	path = strings.TrimPrefix(path, "file:")
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
