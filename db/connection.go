package db

import (
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/sym"
)

// SQLiteBusyTimeoutMS is how long a sqlite writer waits on a locked database.
const SQLiteBusyTimeoutMS = 5000

// Open opens a database for the given dialect. source is a file path for
// sqlite3 and a DSN otherwise. If logger is provided, logs database
// operations; otherwise operates silently.
func Open(dialect Dialect, source string, log *zap.SugaredLogger) (*sql.DB, error) {
	switch dialect {
	case SQLite:
		return openSQLite(source, log)
	case Postgres:
		return openNetworked("postgres", source, log)
	case MySQL:
		dsn, err := MySQLDSN(source)
		if err != nil {
			return nil, err
		}
		return openNetworked("mysql", dsn, log)
	}
	return nil, errors.Newf("unsupported dialect %q", dialect)
}

func openSQLite(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	if log != nil {
		log.Debugw("Opening database", "path", path, logger.FieldSymbol, sym.DB)
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to apply %q", pragma)
		}
	}

	if log != nil {
		log.Infow("Database opened successfully",
			"driver", SQLite,
			"path", path,
			logger.FieldSymbol, sym.DB,
			"wal_mode", true,
		)
	}
	return conn, nil
}

func openNetworked(driver, dsn string, log *zap.SugaredLogger) (*sql.DB, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", driver)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to reach %s database", driver),
			"check database.dsn and that the server accepts connections",
		)
	}

	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if log != nil {
		log.Infow("Database opened successfully", "driver", driver, logger.FieldSymbol, sym.DB)
	}
	return conn, nil
}

// MySQLDSN forces parseTime so DATETIME columns scan into time.Time, and
// UTC so stored timestamps compare consistently. ClientFoundRows makes
// RowsAffected count matched rows, which conditional updates rely on.
func MySQLDSN(source string) (string, error) {
	cfg, err := mysql.ParseDSN(source)
	if err != nil {
		return "", errors.Wrap(err, "invalid mysql dsn")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = false
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}
