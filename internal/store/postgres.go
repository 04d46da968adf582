package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/accountpulse/accountpulse/internal/account"
)

// PostgresStore implements account.Store on top of Postgres. Metric
// snapshots and prediction documents are stored as JSONB so the rubric
// can evolve without schema churn.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and ensures the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			tier TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			arr_cents BIGINT NOT NULL DEFAULT 0,
			csm_email TEXT NOT NULL DEFAULT '',
			stripe_customer_id TEXT NOT NULL DEFAULT '',
			stripe_subscription_id TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metric_snapshots (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			metrics JSONB NOT NULL,
			source TEXT NOT NULL DEFAULT 'api',
			captured_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_account ON metric_snapshots(account_id, captured_at DESC)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			metrics JSONB NOT NULL,
			result JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_account ON predictions(account_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping reports database reachability for health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *account.Account) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, tier, status, arr_cents, csm_email,
			stripe_customer_id, stripe_subscription_id, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.Name, a.Tier, a.Status, a.ARRCents, a.CSMEmail,
		a.StripeCustomerID, a.StripeSubscriptionID, meta, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", a.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, tier, status, arr_cents, csm_email,
			stripe_customer_id, stripe_subscription_id, metadata, created_at, updated_at
		 FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, a *account.Account) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET name = $2, tier = $3, status = $4, arr_cents = $5,
			csm_email = $6, stripe_customer_id = $7, stripe_subscription_id = $8,
			metadata = $9, updated_at = $10
		 WHERE id = $1`,
		a.ID, a.Name, a.Tier, a.Status, a.ARRCents, a.CSMEmail,
		a.StripeCustomerID, a.StripeSubscriptionID, meta, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", a.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]*account.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, tier, status, arr_cents, csm_email,
			stripe_customer_id, stripe_subscription_id, metadata, created_at, updated_at
		 FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var a account.Account
	var meta []byte
	err := row.Scan(&a.ID, &a.Name, &a.Tier, &a.Status, &a.ARRCents, &a.CSMEmail,
		&a.StripeCustomerID, &a.StripeSubscriptionID, &meta, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &a, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *account.Snapshot) error {
	metrics, err := json.Marshal(snap.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO metric_snapshots (id, account_id, metrics, source, captured_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		snap.ID, snap.AccountID, metrics, snap.Source, snap.CapturedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", snap.AccountID, err)
	}
	return nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, accountID string) (*account.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, metrics, source, captured_at
		 FROM metric_snapshots WHERE account_id = $1
		 ORDER BY captured_at DESC LIMIT 1`, accountID)
	return scanSnapshot(row)
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, accountID string, limit int) ([]*account.Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, metrics, source, captured_at
		 FROM metric_snapshots WHERE account_id = $1
		 ORDER BY captured_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots for %s: %w", accountID, err)
	}
	defer rows.Close()

	var snaps []*account.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(row rowScanner) (*account.Snapshot, error) {
	var snap account.Snapshot
	var metrics []byte
	err := row.Scan(&snap.ID, &snap.AccountID, &metrics, &snap.Source, &snap.CapturedAt)
	if err == sql.ErrNoRows {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	if err := json.Unmarshal(metrics, &snap.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	return &snap, nil
}

func (s *PostgresStore) SavePrediction(ctx context.Context, p *account.Prediction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, account_id, kind, metrics, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.AccountID, p.Kind, []byte(p.Metrics), []byte(p.Result), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save prediction for %s: %w", p.AccountID, err)
	}
	return nil
}

func (s *PostgresStore) ListPredictions(ctx context.Context, accountID string, limit int) ([]*account.Prediction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, kind, metrics, result, created_at
		 FROM predictions WHERE account_id = $1
		 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions for %s: %w", accountID, err)
	}
	defer rows.Close()

	var preds []*account.Prediction
	for rows.Next() {
		var p account.Prediction
		var metrics, result []byte
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Kind, &metrics, &result, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		p.Metrics = json.RawMessage(metrics)
		p.Result = json.RawMessage(result)
		preds = append(preds, &p)
	}
	return preds, rows.Err()
}
