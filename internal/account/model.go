package account

import (
	"encoding/json"
	"time"

	"github.com/accountpulse/accountpulse/internal/scoring"
)

// Account represents a customer account under management.
type Account struct {
	ID                   string                 `json:"id"`
	Name                 string                 `json:"name"`
	Tier                 string                 `json:"tier"` // enterprise, mid-market, smb
	Status               Status                 `json:"status"`
	ARRCents             int64                  `json:"arr_cents"`
	CSMEmail             string                 `json:"csm_email,omitempty"`
	StripeCustomerID     string                 `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string                 `json:"stripe_subscription_id,omitempty"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// Status is an account lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusOnboarding Status = "onboarding"
	StatusSuspended  Status = "suspended"
	StatusChurned    Status = "churned"
)

// Snapshot is one captured MetricSet for an account. Snapshots are
// immutable once written; scoring always works from a copy.
type Snapshot struct {
	ID         string            `json:"id"`
	AccountID  string            `json:"account_id"`
	Metrics    scoring.MetricSet `json:"metrics"`
	Source     string            `json:"source"` // api, monitor, billing-sync
	CapturedAt time.Time         `json:"captured_at"`
}

// Prediction persists one scoring run as an opaque pair of input and
// output documents. No downstream consumer depends on its layout.
type Prediction struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Kind      string          `json:"kind"` // churn, upsell
	Metrics   json.RawMessage `json:"metrics"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	PredictionChurn  = "churn"
	PredictionUpsell = "upsell"
)
