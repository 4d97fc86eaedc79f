package gormstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// errInvalidConfig marks dsn/driver mistakes that no retry can fix.
var errInvalidConfig = errors.New("invalid database config")

// dialector maps a driver name to its gorm dialector.
func dialector(driver, dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: dsn cannot be empty", errInvalidConfig)
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return sqliteDialector(dsn)
	case "postgres", "postgresql":
		// 提前解析，配置错误在连接重试之前暴露
		if _, err := pgx.ParseConfig(dsn); err != nil {
			return nil, fmt.Errorf("%w: postgres dsn: %v", errInvalidConfig, err)
		}
		return postgres.New(postgres.Config{DSN: dsn}), nil
	case "mysql":
		if !strings.Contains(dsn, "parseTime=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "parseTime=true"
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", errInvalidConfig, driver)
	}
}

func sqliteDialector(path string) (gorm.Dialector, error) {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return sqlite.Open(path), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return sqlite.Open(sqliteFileDSN(path)), nil
}

// sqliteFileDSN 使用 mattn/go-sqlite3 的连接参数：忙等 5s，WAL 日志。
func sqliteFileDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
}

// describe renders a dsn without credentials for logs.
func describe(driver, dsn string) string {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		if cfg, err := pgx.ParseConfig(dsn); err == nil {
			return fmt.Sprintf("postgres://%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
		}
		return "postgres"
	case "mysql":
		if i := strings.LastIndex(dsn, "@"); i >= 0 {
			return "mysql://" + dsn[i+1:]
		}
		return "mysql"
	default:
		return "sqlite://" + dsn
	}
}
