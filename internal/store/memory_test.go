package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/scoring"
)

func TestMemoryStore_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	acct := &account.Account{ID: "acct-1", Name: "Globex", Status: account.StatusActive}
	require.NoError(t, st.CreateAccount(ctx, acct))

	fetched, err := st.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "Globex", fetched.Name)

	fetched.Name = "Mutated"
	again, err := st.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "Globex", again.Name, "reads must return copies")

	acct.Name = "Globex International"
	require.NoError(t, st.UpdateAccount(ctx, acct))
	updated, err := st.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "Globex International", updated.Name)

	require.NoError(t, st.DeleteAccount(ctx, "acct-1"))
	_, err = st.GetAccount(ctx, "acct-1")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestMemoryStore_NotFoundErrors(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := st.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, account.ErrNotFound)
	assert.ErrorIs(t, st.UpdateAccount(ctx, &account.Account{ID: "missing"}), account.ErrNotFound)
	assert.ErrorIs(t, st.DeleteAccount(ctx, "missing"), account.ErrNotFound)
	_, err = st.LatestSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestMemoryStore_LatestSnapshotPicksNewest(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	old := &account.Snapshot{
		ID:         "snap-old",
		AccountID:  "acct-1",
		Metrics:    scoring.MetricSet{Usage30dChange: scoring.Float(-0.10)},
		CapturedAt: time.Now().Add(-48 * time.Hour),
	}
	recent := &account.Snapshot{
		ID:         "snap-new",
		AccountID:  "acct-1",
		Metrics:    scoring.MetricSet{Usage30dChange: scoring.Float(0.05)},
		CapturedAt: time.Now(),
	}
	require.NoError(t, st.SaveSnapshot(ctx, old))
	require.NoError(t, st.SaveSnapshot(ctx, recent))

	latest, err := st.LatestSnapshot(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "snap-new", latest.ID)

	snaps, err := st.ListSnapshots(ctx, "acct-1", 1)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "snap-new", snaps[0].ID)
}

func TestMemoryStore_ListPredictionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	for i, ts := range []time.Duration{-2 * time.Hour, -1 * time.Hour, 0} {
		require.NoError(t, st.SavePrediction(ctx, &account.Prediction{
			ID:        string(rune('a' + i)),
			AccountID: "acct-1",
			Kind:      account.PredictionChurn,
			CreatedAt: time.Now().Add(ts),
		}))
	}

	preds, err := st.ListPredictions(ctx, "acct-1", 2)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "c", preds[0].ID)
	assert.Equal(t, "b", preds[1].ID)
}
