// Package billing fills gaps in metric snapshots from Stripe. Renewal
// timing and overdue invoices live in the billing system of record, so
// accounts linked to a Stripe customer get those signals collected here
// instead of relying on whatever the snapshot carried.
package billing

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/invoice"
	"github.com/stripe/stripe-go/v74/subscription"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/scoring"
)

// SignalService derives billing metrics for Stripe-linked accounts.
type SignalService struct {
	now func() time.Time
}

// NewSignalService creates a billing signal service using apiKey.
func NewSignalService(apiKey string) *SignalService {
	stripe.Key = apiKey
	return &SignalService{now: time.Now}
}

// Enrich fills renewal_days_out and invoices_overdue_count on m when
// they are absent and the account is linked to Stripe. Signals already
// present in the snapshot win over derived ones.
func (s *SignalService) Enrich(ctx context.Context, acct *account.Account, m *scoring.MetricSet) error {
	if acct.StripeCustomerID == "" {
		return nil
	}

	if m.RenewalDaysOut == nil && acct.StripeSubscriptionID != "" {
		days, err := s.renewalDaysOut(ctx, acct.StripeSubscriptionID)
		if err != nil {
			return fmt.Errorf("failed to fetch renewal timing for account %s: %w", acct.ID, err)
		}
		if days != nil {
			m.RenewalDaysOut = days
		}
	}

	if m.InvoicesOverdueCount == nil {
		overdue, err := s.overdueInvoiceCount(ctx, acct.StripeCustomerID)
		if err != nil {
			return fmt.Errorf("failed to fetch invoices for account %s: %w", acct.ID, err)
		}
		m.InvoicesOverdueCount = &overdue
	}

	return nil
}

func (s *SignalService) renewalDaysOut(ctx context.Context, subscriptionID string) (*int, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, err
	}
	if sub.CurrentPeriodEnd == 0 {
		return nil, nil
	}

	until := time.Unix(sub.CurrentPeriodEnd, 0).Sub(s.now())
	days := int(math.Ceil(until.Hours() / 24))
	if days < 0 {
		// Period already ended; treat the renewal as due now.
		days = 0
	}
	return &days, nil
}

func (s *SignalService) overdueInvoiceCount(ctx context.Context, customerID string) (int, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.InvoiceStatusOpen)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	count := 0
	now := s.now().Unix()
	it := invoice.List(params)
	for it.Next() {
		inv := it.Invoice()
		if inv.DueDate > 0 && inv.DueDate < now {
			count++
		}
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	if count > 0 {
		log.Printf("Billing: customer %s has %d overdue invoices", customerID, count)
	}
	return count, nil
}
