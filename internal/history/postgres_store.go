package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// PostgresStore is the production Store, backed by a pgxpool.Pool against
// the single order_history table (spec.md §6).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PoolConfig configures the pgxpool.Pool (spec.md §6's POSTGRES_* variables).
type PoolConfig struct {
	URL            string
	MaxConns       int32
	IdleTimeout    time.Duration
}

// NewPostgresStore opens a pool against cfg.URL and verifies connectivity
// with a ping. It does not create or check the schema; EnsureSchema does.
func NewPostgresStore(ctx context.Context, cfg PoolConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.IdleTimeout > 0 {
		poolCfg.MaxConnIdleTime = cfg.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Schema is the order_history DDL (spec.md §6's persisted-state table).
const Schema = `
CREATE TABLE IF NOT EXISTS order_history (
    order_id        TEXT PRIMARY KEY,
    order_type      TEXT NOT NULL,
    token_in        TEXT NOT NULL,
    token_out       TEXT NOT NULL,
    amount          BIGINT NOT NULL,
    status          TEXT NOT NULL,
    venue           TEXT,
    tx_hash         TEXT,
    executed_amount BIGINT,
    quote_response  JSONB,
    status_history  JSONB NOT NULL DEFAULT '[]'::jsonb,
    last_error      TEXT,
    explorer_link   TEXT,
    received_at     TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS order_history_updated_at_idx ON order_history (updated_at DESC);
CREATE INDEX IF NOT EXISTS order_history_status_idx ON order_history (status);
`

// EnsureSchema creates the order_history table and its indexes if absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, job *order.Job, detail string) error {
	now := time.Now()
	initial := []order.StatusHistoryEntry{{Status: order.StatusPending, Detail: detail, RecordedAt: now}}
	historyJSON, err := json.Marshal(initial)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO order_history (order_id, order_type, token_in, token_out, amount, status, status_history, received_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (order_id) DO NOTHING
	`, job.OrderID, string(job.Type), job.TokenIn, job.TokenOut, int64(job.Amount), string(order.StatusPending), historyJSON, job.ReceivedAt, now)
	return err
}

func (s *PostgresStore) AppendStatus(ctx context.Context, orderID string, entry order.StatusHistoryEntry) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		rec, err := loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		rec.Status = entry.Status
		rec.StatusHistory = appendCapped(rec.StatusHistory, entry)
		if entry.Link != "" {
			rec.ExplorerLink = entry.Link
		}
		return saveMutable(ctx, tx, rec)
	})
}

func (s *PostgresStore) RecordRoutingDecision(ctx context.Context, orderID, venue string, quote order.QuoteResponse) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		rec, err := loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		rec.Venue = venue
		q := quote
		rec.QuoteResponse = &q
		return saveMutable(ctx, tx, rec)
	})
}

func (s *PostgresStore) RecordSubmission(ctx context.Context, orderID, txHash, explorerLink string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		rec, err := loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		rec.TxHash = txHash
		rec.ExplorerLink = explorerLink
		return saveMutable(ctx, tx, rec)
	})
}

func (s *PostgresStore) RecordConfirmation(ctx context.Context, orderID string, executedAmount uint64) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		rec, err := loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		rec.ExecutedAmount = executedAmount
		return saveMutable(ctx, tx, rec)
	})
}

func (s *PostgresStore) RecordFailure(ctx context.Context, orderID, lastError string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		rec, err := loadForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		rec.LastError = lastError
		return saveMutable(ctx, tx, rec)
	})
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (Record, bool, error) {
	row := s.pool.QueryRow(ctx, selectColumns+` WHERE order_id = $1`, orderID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) (Page, error) {
	limit := opts.ClampLimit()

	var rows pgx.Rows
	var err error
	if opts.Cursor != nil {
		rows, err = s.pool.Query(ctx, selectColumns+` WHERE updated_at < $1 ORDER BY updated_at DESC LIMIT $2`, *opts.Cursor, limit+1)
	} else {
		rows, err = s.pool.Query(ctx, selectColumns+` ORDER BY updated_at DESC LIMIT $1`, limit+1)
	}
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return Page{}, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}

	var next *time.Time
	if hasMore && len(records) > 0 {
		cursor := records[len(records)-1].UpdatedAt
		next = &cursor
	}

	return Page{Data: records, NextCursor: next, HasMore: hasMore}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const selectColumns = `
	SELECT order_id, order_type, token_in, token_out, amount, status, venue, tx_hash,
	       executed_amount, quote_response, status_history, last_error, explorer_link,
	       received_at, updated_at
	FROM order_history`

// rowScanner abstracts pgx.Row / pgx.Rows so scanRecord works for both
// Get (QueryRow) and List (Query).
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec            Record
		venue          *string
		txHash         *string
		executedAmount *int64
		quoteJSON      []byte
		historyJSON    []byte
		lastError      *string
		explorerLink   *string
		amount         int64
	)

	err := row.Scan(&rec.OrderID, &rec.OrderType, &rec.TokenIn, &rec.TokenOut, &amount, &rec.Status,
		&venue, &txHash, &executedAmount, &quoteJSON, &historyJSON, &lastError, &explorerLink,
		&rec.ReceivedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, err
	}

	rec.Amount = uint64(amount)
	if venue != nil {
		rec.Venue = *venue
	}
	if txHash != nil {
		rec.TxHash = *txHash
	}
	if executedAmount != nil {
		rec.ExecutedAmount = uint64(*executedAmount)
	}
	if lastError != nil {
		rec.LastError = *lastError
	}
	if explorerLink != nil {
		rec.ExplorerLink = *explorerLink
	}
	if len(quoteJSON) > 0 {
		var q order.QuoteResponse
		if err := json.Unmarshal(quoteJSON, &q); err != nil {
			return Record{}, err
		}
		rec.QuoteResponse = &q
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &rec.StatusHistory); err != nil {
			return Record{}, err
		}
	}
	return rec, nil
}

func loadForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (Record, error) {
	row := tx.QueryRow(ctx, selectColumns+` WHERE order_id = $1 FOR UPDATE`, orderID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, apperrors.Newf(apperrors.KindInternal, "history: unknown order %s", orderID)
	}
	return rec, err
}

func saveMutable(ctx context.Context, tx pgx.Tx, rec Record) error {
	historyJSON, err := json.Marshal(rec.StatusHistory)
	if err != nil {
		return err
	}
	var quoteJSON []byte
	if rec.QuoteResponse != nil {
		quoteJSON, err = json.Marshal(rec.QuoteResponse)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_history
		SET status = $2, venue = $3, tx_hash = $4, executed_amount = $5,
		    quote_response = $6, status_history = $7, last_error = $8,
		    explorer_link = $9, updated_at = now()
		WHERE order_id = $1
	`, rec.OrderID, string(rec.Status), nullableString(rec.Venue), nullableString(rec.TxHash),
		nullableAmount(rec.ExecutedAmount), quoteJSON, historyJSON, nullableString(rec.LastError),
		nullableString(rec.ExplorerLink))
	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableAmount(v uint64) *int64 {
	if v == 0 {
		return nil
	}
	n := int64(v)
	return &n
}
