package account

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines persistence for accounts, metric snapshots and
// prediction results.
type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context) ([]*Account, error)

	SaveSnapshot(ctx context.Context, s *Snapshot) error
	LatestSnapshot(ctx context.Context, accountID string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, accountID string, limit int) ([]*Snapshot, error)

	SavePrediction(ctx context.Context, p *Prediction) error
	ListPredictions(ctx context.Context, accountID string, limit int) ([]*Prediction, error)
}
