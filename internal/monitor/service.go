// Package monitor runs the periodic at-risk sweep. Every interval it
// rescores each active account from its latest metric snapshot and
// raises alerts when an account lands in the High risk tier.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/kafka"
	"github.com/accountpulse/accountpulse/internal/scoring"
)

// SignalEnricher fills billing-derived metrics into a snapshot.
type SignalEnricher interface {
	Enrich(ctx context.Context, acct *account.Account, m *scoring.MetricSet) error
}

// Alerter notifies the account's CSM about a high-risk account.
type Alerter interface {
	SendAtRiskAlert(acct *account.Account, result scoring.ScoreResult) error
}

// Service sweeps accounts on a fixed interval.
type Service struct {
	store    account.Store
	enricher SignalEnricher // may be nil
	alerter  Alerter        // may be nil
	producer kafka.Producer // may be nil
	interval time.Duration
}

// NewService creates a monitor. enricher, alerter and producer are
// optional; a nil dependency disables that side effect.
func NewService(store account.Store, enricher SignalEnricher, alerter Alerter, producer kafka.Producer, interval time.Duration) *Service {
	return &Service{
		store:    store,
		enricher: enricher,
		alerter:  alerter,
		producer: producer,
		interval: interval,
	}
}

// Run sweeps immediately, then on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Printf("Monitor: starting at-risk sweep every %s", s.interval)

	if err := s.Sweep(ctx); err != nil {
		log.Printf("Monitor: sweep failed: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Monitor: stopping")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("Monitor: sweep failed: %v", err)
			}
		}
	}
}

// Sweep rescores every active account once. Per-account failures are
// logged and skipped so one bad account cannot stall the sweep.
func (s *Service) Sweep(ctx context.Context) error {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	flagged := 0
	for _, acct := range accounts {
		if acct.Status != account.StatusActive {
			continue
		}
		atRisk, err := s.sweepAccount(ctx, acct)
		if err != nil {
			log.Printf("Monitor: skipping account %s: %v", acct.ID, err)
			continue
		}
		if atRisk {
			flagged++
		}
	}

	log.Printf("Monitor: sweep complete, %d accounts checked, %d at risk", len(accounts), flagged)
	return nil
}

func (s *Service) sweepAccount(ctx context.Context, acct *account.Account) (bool, error) {
	snap, err := s.store.LatestSnapshot(ctx, acct.ID)
	if errors.Is(err, account.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	metrics := snap.Metrics
	if s.enricher != nil {
		if err := s.enricher.Enrich(ctx, acct, &metrics); err != nil {
			// Score from the snapshot alone rather than dropping the account.
			log.Printf("Monitor: billing enrichment failed for account %s: %v", acct.ID, err)
			metrics = snap.Metrics
		}
	}

	if err := scoring.Validate(metrics); err != nil {
		return false, err
	}

	result := scoring.Score(metrics)
	if err := s.recordPrediction(ctx, acct, metrics, result); err != nil {
		log.Printf("Monitor: failed to record prediction for account %s: %v", acct.ID, err)
	}

	if result.RiskTier != scoring.TierHigh {
		return false, nil
	}

	log.Printf("Monitor: account %s (%s) is at risk, score %d", acct.ID, acct.Name, result.HealthScore)

	if s.alerter != nil {
		if err := s.alerter.SendAtRiskAlert(acct, result); err != nil {
			log.Printf("Monitor: failed to alert CSM for account %s: %v", acct.ID, err)
		}
	}

	if s.producer != nil {
		event := kafka.AtRiskEvent{
			EventID:     uuid.New().String(),
			AccountID:   acct.ID,
			AccountName: acct.Name,
			HealthScore: result.HealthScore,
			RiskTier:    result.RiskTier,
			Drivers:     result.Drivers,
			DetectedAt:  time.Now().UTC(),
		}
		if err := s.producer.SendJSON(ctx, kafka.TopicAccountAtRisk, acct.ID, event); err != nil {
			log.Printf("Monitor: failed to publish at-risk event for account %s: %v", acct.ID, err)
		}
	}

	return true, nil
}

func (s *Service) recordPrediction(ctx context.Context, acct *account.Account, metrics scoring.MetricSet, result scoring.ScoreResult) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.store.SavePrediction(ctx, &account.Prediction{
		ID:        uuid.New().String(),
		AccountID: acct.ID,
		Kind:      account.PredictionChurn,
		Metrics:   metricsJSON,
		Result:    resultJSON,
		CreatedAt: time.Now().UTC(),
	})
}
