package scoring

import (
	"fmt"
	"strings"
)

// ValidationError reports a present metric whose value falls outside
// its declared domain. Scoring must not proceed while any exist.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates per-field failures so callers can surface
// every problem at once instead of one per round trip.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return "invalid metrics: " + strings.Join(msgs, "; ")
}

// Validate checks every present field of a MetricSet against its
// domain. Absent fields are fine; they are skipped during scoring. A
// nil return means the set is safe to score.
func Validate(m MetricSet) error {
	var errs ValidationErrors

	if m.Usage30dChange != nil && (*m.Usage30dChange < -0.99 || *m.Usage30dChange > 0.99) {
		errs = append(errs, ValidationError{"usage_30d_change", "must be between -0.99 and 0.99"})
	}
	if m.ActiveUsers != nil && *m.ActiveUsers < 0 {
		errs = append(errs, ValidationError{"active_users", "cannot be negative"})
	}
	if m.LicensedSeats != nil && *m.LicensedSeats < 1 {
		errs = append(errs, ValidationError{"licensed_seats", "must be at least 1"})
	}
	if m.CSATScoreCurrent != nil && (*m.CSATScoreCurrent < 0 || *m.CSATScoreCurrent > 5) {
		errs = append(errs, ValidationError{"csat_score_current", "must be between 0 and 5"})
	}
	if m.NPSCurrent != nil && (*m.NPSCurrent < -100 || *m.NPSCurrent > 100) {
		errs = append(errs, ValidationError{"nps_current", "must be between -100 and 100"})
	}
	if m.FeatureAdoptionScore != nil && (*m.FeatureAdoptionScore < 0 || *m.FeatureAdoptionScore > 1) {
		errs = append(errs, ValidationError{"feature_adoption_score", "must be between 0 and 1"})
	}

	for _, c := range []struct {
		name  string
		value *int
	}{
		{"days_since_last_meeting", m.DaysSinceLastMeeting},
		{"meetings_last_30d", m.MeetingsLast30d},
		{"emails_last_30d", m.EmailsLast30d},
		{"open_critical_tickets", m.OpenCriticalTickets},
		{"open_tickets_total", m.OpenTicketsTotal},
		{"renewal_days_out", m.RenewalDaysOut},
		{"invoices_overdue_count", m.InvoicesOverdueCount},
		{"last_exec_sponsor_touch_days", m.LastExecSponsorTouchDays},
		{"key_contacts_changed_6m", m.KeyContactsChanged6m},
	} {
		if c.value != nil && *c.value < 0 {
			errs = append(errs, ValidationError{c.name, "cannot be negative"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateUpsell checks an UpsellMetrics set the same way, including
// the cross-field check the intake form performs.
func ValidateUpsell(m UpsellMetrics) error {
	var errs ValidationErrors

	if m.ActiveUsers != nil && *m.ActiveUsers < 0 {
		errs = append(errs, ValidationError{"active_users", "cannot be negative"})
	}
	if m.LicensedSeats != nil && *m.LicensedSeats < 1 {
		errs = append(errs, ValidationError{"licensed_seats", "must be at least 1"})
	}
	if m.ActiveUsers != nil && m.LicensedSeats != nil && *m.ActiveUsers > *m.LicensedSeats {
		errs = append(errs, ValidationError{"active_users", "exceed licensed seats, likely a data error"})
	}
	if m.NPSCurrent != nil && (*m.NPSCurrent < -100 || *m.NPSCurrent > 100) {
		errs = append(errs, ValidationError{"nps_current", "must be between -100 and 100"})
	}
	if m.CSATScoreCurrent != nil && (*m.CSATScoreCurrent < 1 || *m.CSATScoreCurrent > 5) {
		errs = append(errs, ValidationError{"csat_score_current", "must be between 1 and 5"})
	}
	if m.FeatureAdoptionScore != nil && (*m.FeatureAdoptionScore < 0 || *m.FeatureAdoptionScore > 1) {
		errs = append(errs, ValidationError{"feature_adoption_score", "must be between 0 and 1"})
	}
	if m.APIIntegrationDepth != nil && (*m.APIIntegrationDepth < 0 || *m.APIIntegrationDepth > 10) {
		errs = append(errs, ValidationError{"api_integration_depth", "must be between 0 and 10"})
	}
	if m.ExecEngagementScore != nil && (*m.ExecEngagementScore < 0 || *m.ExecEngagementScore > 10) {
		errs = append(errs, ValidationError{"exec_engagement_score", "must be between 0 and 10"})
	}

	for _, c := range []struct {
		name  string
		value *int
	}{
		{"active_champions", m.ActiveChampions},
		{"success_milestone_hits_90d", m.SuccessMilestoneHits90d},
		{"budget_cycle_proximity_days", m.BudgetCycleProximityDays},
		{"support_interactions_30d", m.SupportInteractions30d},
		{"training_sessions_attended_90d", m.TrainingSessionsAttended90},
	} {
		if c.value != nil && *c.value < 0 {
			errs = append(errs, ValidationError{c.name, "cannot be negative"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
