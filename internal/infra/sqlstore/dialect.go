package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Dialect holds what differs between the supported SQL backends. Queries are
// written with '?' placeholders and rebound per dialect.
type Dialect struct {
	Name       string
	DriverName string

	// numbered placeholders ($1, $2, ...) instead of '?'
	numbered bool

	upsertBankTransaction string
	schema                []string
}

// Postgres uses pgx through database/sql.
var Postgres = Dialect{
	Name:       "postgres",
	DriverName: "pgx",
	numbered:   true,
	upsertBankTransaction: `
		INSERT INTO bank_transactions (id, date, type, description, amount, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, description, amount)
		DO UPDATE SET type = EXCLUDED.type, source = EXCLUDED.source, updated_at = EXCLUDED.created_at`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sales_transactions (
			sale_id TEXT,
			date DATE NOT NULL,
			item TEXT,
			price NUMERIC(14, 2)
		)`,
		`CREATE INDEX IF NOT EXISTS sales_transactions_date_idx ON sales_transactions (date)`,
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
			expense_id TEXT,
			date DATE NOT NULL,
			category TEXT,
			supplier TEXT,
			description TEXT,
			amount NUMERIC(14, 2),
			payment_method TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS ledger_transactions_date_idx ON ledger_transactions (date)`,
		`CREATE TABLE IF NOT EXISTS bank_transactions (
			id TEXT PRIMARY KEY,
			date DATE NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL,
			amount NUMERIC(14, 2) NOT NULL,
			source TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ,
			CONSTRAINT bank_transactions_natural_key UNIQUE (date, description, amount)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
			run_id TEXT PRIMARY KEY,
			window_start TEXT NOT NULL,
			window_end TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			rows_written INTEGER,
			error_message TEXT
		)`,
	},
}

// MySQL uses go-sql-driver/mysql.
var MySQL = Dialect{
	Name:       "mysql",
	DriverName: "mysql",
	upsertBankTransaction: `
		INSERT INTO bank_transactions (id, date, type, description, amount, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE type = VALUES(type), source = VALUES(source), updated_at = VALUES(created_at)`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sales_transactions (
			sale_id VARCHAR(64),
			date DATE NOT NULL,
			item VARCHAR(255),
			price DECIMAL(14, 2),
			INDEX sales_transactions_date_idx (date)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
			expense_id VARCHAR(64),
			date DATE NOT NULL,
			category VARCHAR(255),
			supplier VARCHAR(255),
			description VARCHAR(1024),
			amount DECIMAL(14, 2),
			payment_method VARCHAR(64),
			INDEX ledger_transactions_date_idx (date)
		)`,
		`CREATE TABLE IF NOT EXISTS bank_transactions (
			id VARCHAR(36) PRIMARY KEY,
			date DATE NOT NULL,
			type VARCHAR(16) NOT NULL,
			description VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_bin NOT NULL,
			amount DECIMAL(14, 2) NOT NULL,
			source VARCHAR(32),
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6),
			UNIQUE KEY bank_transactions_natural_key (date, description, amount)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
			run_id VARCHAR(36) PRIMARY KEY,
			window_start VARCHAR(10) NOT NULL,
			window_end VARCHAR(10) NOT NULL,
			started_at DATETIME(6) NOT NULL,
			finished_at DATETIME(6),
			status VARCHAR(16) NOT NULL,
			rows_written INT,
			error_message TEXT
		)`,
	},
}

// DialectFor returns the dialect for a STORE_BACKEND value.
func DialectFor(backend string) (Dialect, error) {
	switch strings.ToLower(backend) {
	case Postgres.Name, "postgresql":
		return Postgres, nil
	case MySQL.Name:
		return MySQL, nil
	default:
		return Dialect{}, fmt.Errorf("sqlstore: unsupported backend %q", backend)
	}
}

// Rebind rewrites '?' placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DSN adjusts a connection string for the dialect. MySQL DSNs get parseTime
// so DATE and DATETIME columns scan into time.Time.
func (d Dialect) DSN(dsn string) (string, error) {
	if d.Name != MySQL.Name {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("sqlstore: parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
