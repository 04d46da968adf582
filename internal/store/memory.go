package store

import (
	"context"
	"sort"
	"sync"

	"github.com/accountpulse/accountpulse/internal/account"
)

// MemoryStore is an in-memory account.Store used in tests and for
// DSN-less development runs. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*account.Account
	snapshots   map[string][]*account.Snapshot
	predictions map[string][]*account.Prediction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*account.Account),
		snapshots:   make(map[string][]*account.Snapshot),
		predictions: make(map[string][]*account.Prediction),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) UpdateAccount(ctx context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return account.ErrNotFound
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return account.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.snapshots, id)
	delete(s.predictions, id)
	return nil
}

func (s *MemoryStore) ListAccounts(ctx context.Context) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*account.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, snap *account.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	s.snapshots[snap.AccountID] = append(s.snapshots[snap.AccountID], &cp)
	return nil
}

func (s *MemoryStore) LatestSnapshot(ctx context.Context, accountID string) (*account.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := s.snapshots[accountID]
	if len(snaps) == 0 {
		return nil, account.ErrNotFound
	}
	latest := snaps[0]
	for _, snap := range snaps[1:] {
		if snap.CapturedAt.After(latest.CapturedAt) {
			latest = snap
		}
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) ListSnapshots(ctx context.Context, accountID string, limit int) ([]*account.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := s.snapshots[accountID]
	out := make([]*account.Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		cp := *snap
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SavePrediction(ctx context.Context, p *account.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.predictions[p.AccountID] = append(s.predictions[p.AccountID], &cp)
	return nil
}

func (s *MemoryStore) ListPredictions(ctx context.Context, accountID string, limit int) ([]*account.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	preds := s.predictions[accountID]
	out := make([]*account.Prediction, 0, len(preds))
	for _, p := range preds {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
