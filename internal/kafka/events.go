package kafka

import (
	"time"

	"github.com/accountpulse/accountpulse/internal/scoring"
)

// ChurnScoredEvent is published after every churn scoring run.
type ChurnScoredEvent struct {
	EventID     string           `json:"event_id"`
	AccountID   string           `json:"account_id,omitempty"`
	HealthScore int              `json:"health_score"`
	RiskTier    scoring.RiskTier `json:"risk_tier"`
	Drivers     []string         `json:"drivers"`
	ScoredAt    time.Time        `json:"scored_at"`
}

// UpsellScoredEvent is published after every expansion scoring run.
type UpsellScoredEvent struct {
	EventID            string                     `json:"event_id"`
	AccountID          string                     `json:"account_id,omitempty"`
	ExpansionScore     int                        `json:"expansion_score"`
	ExpansionPotential scoring.ExpansionPotential `json:"expansion_potential"`
	ScoredAt           time.Time                  `json:"scored_at"`
}

// AtRiskEvent is published when the monitor sweep finds a High tier account.
type AtRiskEvent struct {
	EventID     string           `json:"event_id"`
	AccountID   string           `json:"account_id"`
	AccountName string           `json:"account_name"`
	HealthScore int              `json:"health_score"`
	RiskTier    scoring.RiskTier `json:"risk_tier"`
	Drivers     []string         `json:"drivers"`
	DetectedAt  time.Time        `json:"detected_at"`
}
