package scoring

// MetricSet is a sparse collection of account-health signals. Every
// field is optional: a nil pointer means the signal was not supplied
// and the categories that need it are skipped. It never means zero.
type MetricSet struct {
	Usage30dChange           *float64 `json:"usage_30d_change,omitempty"`
	ActiveUsers              *int     `json:"active_users,omitempty"`
	LicensedSeats            *int     `json:"licensed_seats,omitempty"`
	DaysSinceLastMeeting     *int     `json:"days_since_last_meeting,omitempty"`
	MeetingsLast30d          *int     `json:"meetings_last_30d,omitempty"`
	EmailsLast30d            *int     `json:"emails_last_30d,omitempty"`
	OpenCriticalTickets      *int     `json:"open_critical_tickets,omitempty"`
	OpenTicketsTotal         *int     `json:"open_tickets_total,omitempty"`
	CSATScoreCurrent         *float64 `json:"csat_score_current,omitempty"`
	NPSCurrent               *int     `json:"nps_current,omitempty"`
	RenewalDaysOut           *int     `json:"renewal_days_out,omitempty"`
	InvoicesOverdueCount     *int     `json:"invoices_overdue_count,omitempty"`
	SpendTrendYoY            *float64 `json:"spend_trend_yoy,omitempty"`
	LastExecSponsorTouchDays *int     `json:"last_exec_sponsor_touch_days,omitempty"`
	KeyContactsChanged6m     *int     `json:"key_contacts_changed_6m,omitempty"`
	FeatureAdoptionScore     *float64 `json:"feature_adoption_score,omitempty"`
}

// UpsellMetrics is the expansion-side counterpart of MetricSet. The
// same sparse semantics apply.
type UpsellMetrics struct {
	ActiveUsers                *int     `json:"active_users,omitempty"`
	LicensedSeats              *int     `json:"licensed_seats,omitempty"`
	Usage30dChange             *float64 `json:"usage_30d_change,omitempty"`
	NPSCurrent                 *int     `json:"nps_current,omitempty"`
	CSATScoreCurrent           *float64 `json:"csat_score_current,omitempty"`
	FeatureAdoptionScore       *float64 `json:"feature_adoption_score,omitempty"`
	ActiveChampions            *int     `json:"active_champions,omitempty"`
	SuccessMilestoneHits90d    *int     `json:"success_milestone_hits_90d,omitempty"`
	TeamSizeGrowth6mo          *float64 `json:"team_size_growth_6mo,omitempty"`
	ExecEngagementScore        *int     `json:"exec_engagement_score,omitempty"`
	BudgetCycleProximityDays   *int     `json:"budget_cycle_proximity_days,omitempty"`
	SupportInteractions30d     *int     `json:"support_interactions_30d,omitempty"`
	TrainingSessionsAttended90 *int     `json:"training_sessions_attended_90d,omitempty"`
	APIIntegrationDepth        *int     `json:"api_integration_depth,omitempty"`
}

// Float returns a pointer to v. Convenience for building sparse metric sets.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
