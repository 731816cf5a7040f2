package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/store"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store is a database/sql implementation of store.Repository for Postgres
// and MySQL. The unique constraint on (date, description, amount) backs the
// natural key.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the database and pings it.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	dsn, err := dialect.DSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: %s: %w", dialect.Name, err)
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("Open: ping %s: %w", dialect.Name, err)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables and the natural-key constraint if missing.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("Migrate: statement %d: %w", i+1, err)
		}
	}
	return nil
}

const salesByDateRangeSelect = `
		SELECT date, price
		FROM sales_transactions
		WHERE date >= ? AND date <= ?
		ORDER BY date`

// QuerySalesByDateRange implements store.SourceReader. Rows come back oldest
// first.
func (s *Store) QuerySalesByDateRange(ctx context.Context, window domain.DateRange) ([]domain.SalesRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(salesByDateRangeSelect), dateArg(window.Start), dateArg(window.End))
	if err != nil {
		return nil, fmt.Errorf("QuerySalesByDateRange: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SalesRecord
	for rows.Next() {
		var (
			day   time.Time
			price sql.NullString
		)
		if err := rows.Scan(&day, &price); err != nil {
			return nil, fmt.Errorf("QuerySalesByDateRange: scan: %w", err)
		}
		out = append(out, domain.SalesRecord{Date: civil.DateOf(day), Price: nullAmount(price)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("QuerySalesByDateRange: rows: %w", err)
	}
	return out, nil
}

const ledgerSelect = `
		SELECT expense_id, date, category, supplier, description, amount, payment_method
		FROM ledger_transactions`

// QueryLedgerByDateRange implements store.SourceReader.
func (s *Store) QueryLedgerByDateRange(ctx context.Context, window domain.DateRange, excludeCategory string) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(ledgerSelect+`
		WHERE date >= ? AND date <= ?
		  AND (? = '' OR COALESCE(category, '') <> ?)
		ORDER BY date
	`), dateArg(window.Start), dateArg(window.End), excludeCategory, excludeCategory)
	if err != nil {
		return nil, fmt.Errorf("QueryLedgerByDateRange: query: %w", err)
	}
	defer rows.Close()

	out, err := scanLedger(rows)
	if err != nil {
		return nil, fmt.Errorf("QueryLedgerByDateRange: %w", err)
	}
	return out, nil
}

// ListLedgerEntries implements store.FullTableReader.
func (s *Store) ListLedgerEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, ledgerSelect+` ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("ListLedgerEntries: query: %w", err)
	}
	defer rows.Close()

	out, err := scanLedger(rows)
	if err != nil {
		return nil, fmt.Errorf("ListLedgerEntries: %w", err)
	}
	return out, nil
}

func scanLedger(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for rows.Next() {
		var expenseID, category, supplier, description, amount, method sql.NullString
		var day time.Time
		if err := rows.Scan(&expenseID, &day, &category, &supplier, &description, &amount, &method); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, domain.LedgerEntry{
			ExpenseID:     expenseID.String,
			Date:          civil.DateOf(day),
			Category:      category.String,
			Supplier:      supplier.String,
			Description:   description.String,
			Amount:        nullAmount(amount),
			PaymentMethod: method.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsert(ctx context.Context, ex execer, tx domain.BankTransaction) error {
	_, err := ex.ExecContext(ctx, s.dialect.Rebind(s.dialect.upsertBankTransaction),
		uuid.NewString(),
		dateArg(tx.Date),
		string(tx.Type),
		tx.Description,
		tx.Amount.StringFixed(domain.AmountPlaces),
		tx.Source,
		time.Now().UTC(),
	)
	if err != nil {
		logDriverError(logger.FromContext(ctx), err, tx)
	}
	return err
}

// UpsertBankTransaction implements store.BankTransactionWriter with a single
// INSERT ... ON CONFLICT / ON DUPLICATE KEY statement.
func (s *Store) UpsertBankTransaction(ctx context.Context, tx domain.BankTransaction) error {
	if err := s.upsert(ctx, s.db, tx); err != nil {
		return fmt.Errorf("UpsertBankTransaction: %w", err)
	}
	return nil
}

// UpsertBankTransactionsAtomic implements store.AtomicUpserter. Rows are
// still written one statement at a time, inside one transaction.
func (s *Store) UpsertBankTransactionsAtomic(ctx context.Context, txs []domain.BankTransaction) error {
	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("UpsertBankTransactionsAtomic: begin: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	for i, row := range txs {
		if err := s.upsert(ctx, dbTx, row); err != nil {
			return &store.WriteError{Index: i, Row: row, Err: err}
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("UpsertBankTransactionsAtomic: commit: %w", err)
	}
	return nil
}

// ListBankTransactions implements store.FullTableReader.
func (s *Store) ListBankTransactions(ctx context.Context) ([]domain.BankTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, type, description, amount, source
		FROM bank_transactions
		ORDER BY date DESC, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("ListBankTransactions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.BankTransaction
	for rows.Next() {
		var day time.Time
		var typ, description, amount string
		var source sql.NullString
		if err := rows.Scan(&day, &typ, &description, &amount, &source); err != nil {
			return nil, fmt.Errorf("ListBankTransactions: scan: %w", err)
		}
		out = append(out, domain.BankTransaction{
			Date:        civil.DateOf(day),
			Type:        domain.TransactionType(typ),
			Description: description,
			Amount:      domain.AmountOrZero(domain.ParseAmount(amount)),
			Source:      source.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListBankTransactions: rows: %w", err)
	}
	return out, nil
}

// StartSyncRun implements store.RunRecorder.
func (s *Store) StartSyncRun(ctx context.Context, run *store.SyncRun) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO sync_runs (run_id, window_start, window_end, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`), run.RunID, run.WindowStart, run.WindowEnd, run.StartedAt, store.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("StartSyncRun: insert: %w", err)
	}
	return nil
}

// MarkSyncRunSucceeded implements store.RunRecorder.
func (s *Store) MarkSyncRunSucceeded(ctx context.Context, runID string, rowsWritten int) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE sync_runs
		SET status = ?, finished_at = ?, rows_written = ?, error_message = ''
		WHERE run_id = ?
	`), store.RunStatusSucceeded, time.Now().UTC(), rowsWritten, runID)
	if err != nil {
		return fmt.Errorf("MarkSyncRunSucceeded: update: %w", err)
	}
	return nil
}

// MarkSyncRunFailed implements store.RunRecorder. Update failures are logged.
func (s *Store) MarkSyncRunFailed(ctx context.Context, runID string, rowsWritten int, runErr error) {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE sync_runs
		SET status = ?, finished_at = ?, rows_written = ?, error_message = ?
		WHERE run_id = ?
	`), store.RunStatusFailed, time.Now().UTC(), rowsWritten, store.TruncateError(runErr), runID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkSyncRunFailed: update failed")
	}
}

func dateArg(d civil.Date) time.Time {
	return d.In(time.UTC)
}

func nullAmount(s sql.NullString) decimal.NullDecimal {
	if !s.Valid {
		return decimal.NullDecimal{}
	}
	return domain.ParseAmount(s.String)
}

// logDriverError records backend error codes so constraint and connection
// failures can be told apart in the logs.
func logDriverError(log zerolog.Logger, err error, tx domain.BankTransaction) {
	ev := log.Error().Err(err).Str("key", tx.Key().String())

	var pgErr *pgconn.PgError
	var myErr *mysql.MySQLError
	switch {
	case errors.As(err, &pgErr):
		ev = ev.Str("sqlstate", pgErr.Code).Str("constraint", pgErr.ConstraintName)
	case errors.As(err, &myErr):
		ev = ev.Uint16("mysql_errno", myErr.Number)
	}
	ev.Msg("Bank transaction upsert failed")
}

var (
	_ store.Repository     = (*Store)(nil)
	_ store.AtomicUpserter = (*Store)(nil)
	_ store.RunRecorder    = (*Store)(nil)
)
