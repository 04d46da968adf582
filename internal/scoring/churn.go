package scoring

import (
	"fmt"
	"math"
	"sort"
)

// RiskTier is the discrete churn-risk band derived from the health score.
type RiskTier string

const (
	TierLow    RiskTier = "Low"
	TierMedium RiskTier = "Medium"
	TierHigh   RiskTier = "High"
)

// Category identifiers, in rubric order.
const (
	CategoryUsageDecline    = "usage_decline"
	CategorySeatUtilization = "seat_utilization"
	CategoryEngagement      = "engagement"
	CategorySupport         = "support_sentiment"
	CategoryRenewalTiming   = "renewal_timing"
	CategoryBilling         = "billing"
	CategoryRelationship    = "relationship"
)

// Fixed category weights. They are not renormalized when a category's
// inputs are missing: an absent category contributes 0 to the weighted
// sum, so sparse metric sets trend toward lower scores.
var categoryWeights = map[string]float64{
	CategoryUsageDecline:    0.25,
	CategorySeatUtilization: 0.15,
	CategoryEngagement:      0.20,
	CategorySupport:         0.20,
	CategoryRenewalTiming:   0.10,
	CategoryBilling:         0.05,
	CategoryRelationship:    0.05,
}

var categoryOrder = []string{
	CategoryUsageDecline,
	CategorySeatUtilization,
	CategoryEngagement,
	CategorySupport,
	CategoryRenewalTiming,
	CategoryBilling,
	CategoryRelationship,
}

var categoryLabels = map[string]string{
	CategoryUsageDecline:    "usage",
	CategorySeatUtilization: "seat utilization",
	CategoryEngagement:      "engagement",
	CategorySupport:         "support & sentiment",
	CategoryRenewalTiming:   "renewal timing",
	CategoryBilling:         "billing",
	CategoryRelationship:    "relationship",
}

// Tier thresholds on the 0-100 health score.
const (
	tierLowFloor    = 75
	tierMediumFloor = 50
)

// CategoryScore is one category's computed contribution.
type CategoryScore struct {
	Category     string  `json:"category"`
	Weight       float64 `json:"weight"`
	SubScore     float64 `json:"sub_score"`
	Present      bool    `json:"present"`
	Contribution float64 `json:"contribution"`
}

// ScoreResult is the churn-side output: an integer health score in
// [0,100], its tier, exactly three drivers citing input values, one to
// three recommended actions, and the per-category sub-scores so that
// downstream text generation never re-derives the rubric.
type ScoreResult struct {
	HealthScore     int             `json:"health_score"`
	RiskTier        RiskTier        `json:"risk_tier"`
	Drivers         []string        `json:"drivers"`
	Recommendations []string        `json:"recommendations"`
	Categories      []CategoryScore `json:"categories"`
}

// Score computes the weighted account health score from a sparse metric
// set. Pure and deterministic: identical input always yields an
// identical result, and the input is taken by value and never mutated.
// Missing fields are skipped, never imputed; range validation is the
// caller's responsibility (see Validate).
func Score(m MetricSet) ScoreResult {
	categories := make([]CategoryScore, 0, len(categoryOrder))
	var total float64

	for _, name := range categoryOrder {
		sub, present := subScore(name, m)
		cs := CategoryScore{
			Category: name,
			Weight:   categoryWeights[name],
			Present:  present,
		}
		if present {
			cs.SubScore = sub
			cs.Contribution = cs.Weight * sub
			total += cs.Contribution
		}
		categories = append(categories, cs)
	}

	health := int(math.Round(clamp(total, 0, 100)))

	return ScoreResult{
		HealthScore:     health,
		RiskTier:        TierFor(health),
		Drivers:         buildDrivers(m, categories),
		Recommendations: buildRecommendations(categories),
		Categories:      categories,
	}
}

// TierFor maps a health score to its risk tier using the fixed
// thresholds: >=75 Low, [50,75) Medium, <50 High.
func TierFor(health int) RiskTier {
	switch {
	case health >= tierLowFloor:
		return TierLow
	case health >= tierMediumFloor:
		return TierMedium
	default:
		return TierHigh
	}
}

func subScore(category string, m MetricSet) (float64, bool) {
	switch category {
	case CategoryUsageDecline:
		return usageSubScore(m)
	case CategorySeatUtilization:
		return utilizationSubScore(m)
	case CategoryEngagement:
		return engagementSubScore(m)
	case CategorySupport:
		return supportSubScore(m)
	case CategoryRenewalTiming:
		return renewalSubScore(m)
	case CategoryBilling:
		return billingSubScore(m)
	case CategoryRelationship:
		return relationshipSubScore(m)
	}
	return 0, false
}

func usageSubScore(m MetricSet) (float64, bool) {
	if m.Usage30dChange == nil {
		return 0, false
	}
	change := *m.Usage30dChange
	switch {
	case change < -0.20:
		return 10, true
	case change < -0.05:
		return 35, true
	case change <= 0.05:
		return 65, true
	default:
		return 90, true
	}
}

func utilizationSubScore(m MetricSet) (float64, bool) {
	if m.ActiveUsers == nil || m.LicensedSeats == nil {
		return 0, false
	}
	seats := *m.LicensedSeats
	if seats < 1 {
		seats = 1
	}
	utilization := float64(*m.ActiveUsers) / float64(seats)
	switch {
	case utilization < 0.50:
		return 30, true
	case utilization < 0.70:
		return 55, true
	case utilization < 0.90:
		return 80, true
	default:
		return 95, true
	}
}

// engagementSubScore combines meeting recency and meeting volume. When
// both signals are present and disagree the more pessimistic one wins.
// A nonzero meeting count on its own reads as healthy.
func engagementSubScore(m MetricSet) (float64, bool) {
	var scores []float64
	if m.DaysSinceLastMeeting != nil {
		days := *m.DaysSinceLastMeeting
		switch {
		case days > 30:
			scores = append(scores, 20)
		case days >= 15:
			scores = append(scores, 50)
		default:
			scores = append(scores, 85)
		}
	}
	if m.MeetingsLast30d != nil {
		if *m.MeetingsLast30d == 0 {
			scores = append(scores, 20)
		} else {
			scores = append(scores, 85)
		}
	}
	if len(scores) == 0 {
		return 0, false
	}
	return minOf(scores), true
}

// supportSubScore starts from a healthy baseline and lets each
// triggered signal pull it down; the lowest applicable value wins.
func supportSubScore(m MetricSet) (float64, bool) {
	if m.OpenCriticalTickets == nil && m.CSATScoreCurrent == nil && m.NPSCurrent == nil {
		return 0, false
	}
	score := 85.0
	if m.OpenCriticalTickets != nil {
		switch {
		case *m.OpenCriticalTickets >= 2:
			score = math.Min(score, 10)
		case *m.OpenCriticalTickets == 1:
			score = math.Min(score, 35)
		}
	}
	if m.CSATScoreCurrent != nil && *m.CSATScoreCurrent < 3.5 {
		score = math.Min(score, 40)
	}
	if m.NPSCurrent != nil && *m.NPSCurrent < 0 {
		score = math.Min(score, 45)
	}
	return score, true
}

func renewalSubScore(m MetricSet) (float64, bool) {
	if m.RenewalDaysOut == nil {
		return 0, false
	}
	days := *m.RenewalDaysOut
	switch {
	case days < 30:
		return 15, true
	case days <= 90:
		return 45, true
	case days > 180:
		return 90, true
	default:
		return 65, true
	}
}

func billingSubScore(m MetricSet) (float64, bool) {
	if m.InvoicesOverdueCount == nil {
		return 0, false
	}
	switch {
	case *m.InvoicesOverdueCount >= 2:
		return 15, true
	case *m.InvoicesOverdueCount == 1:
		return 50, true
	default:
		return 95, true
	}
}

func relationshipSubScore(m MetricSet) (float64, bool) {
	if m.LastExecSponsorTouchDays == nil && m.KeyContactsChanged6m == nil {
		return 0, false
	}
	score := 85.0
	if m.LastExecSponsorTouchDays != nil && *m.LastExecSponsorTouchDays > 60 {
		score = math.Min(score, 40)
	}
	if m.KeyContactsChanged6m != nil && *m.KeyContactsChanged6m >= 2 {
		score = math.Min(score, 35)
	}
	return score, true
}

// buildDrivers renders exactly three driver strings for the three
// lowest-contributing categories. Absent categories contribute 0, so a
// sparse metric set surfaces "no data" drivers that cite the zero
// contribution explicitly.
func buildDrivers(m MetricSet, categories []CategoryScore) []string {
	ranked := make([]CategoryScore, len(categories))
	copy(ranked, categories)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Contribution < ranked[j].Contribution
	})

	drivers := make([]string, 0, 3)
	for _, cs := range ranked {
		if len(drivers) == 3 {
			break
		}
		drivers = append(drivers, driverText(m, cs))
	}
	return drivers
}

func driverText(m MetricSet, cs CategoryScore) string {
	if !cs.Present {
		return fmt.Sprintf("No %s signals were provided; the category contributed 0 of a possible %.0f points.",
			categoryLabels[cs.Category], cs.Weight*100)
	}
	switch cs.Category {
	case CategoryUsageDecline:
		return fmt.Sprintf("Usage changed %+.0f%% over the last 30 days.", *m.Usage30dChange*100)
	case CategorySeatUtilization:
		seats := *m.LicensedSeats
		if seats < 1 {
			seats = 1
		}
		pct := float64(*m.ActiveUsers) / float64(seats) * 100
		return fmt.Sprintf("Seat utilization is %.0f%% (%d of %d licensed seats active).",
			pct, *m.ActiveUsers, *m.LicensedSeats)
	case CategoryEngagement:
		if m.DaysSinceLastMeeting != nil && m.MeetingsLast30d != nil {
			return fmt.Sprintf("Last meeting was %d days ago with %d meetings in the last 30 days.",
				*m.DaysSinceLastMeeting, *m.MeetingsLast30d)
		}
		if m.DaysSinceLastMeeting != nil {
			return fmt.Sprintf("Last meeting was %d days ago.", *m.DaysSinceLastMeeting)
		}
		return fmt.Sprintf("%d meetings were held in the last 30 days.", *m.MeetingsLast30d)
	case CategorySupport:
		return supportDriverText(m)
	case CategoryRenewalTiming:
		return fmt.Sprintf("Renewal is %d days out.", *m.RenewalDaysOut)
	case CategoryBilling:
		return fmt.Sprintf("%d invoices are overdue.", *m.InvoicesOverdueCount)
	case CategoryRelationship:
		if m.LastExecSponsorTouchDays != nil && m.KeyContactsChanged6m != nil {
			return fmt.Sprintf("Last executive sponsor touch was %d days ago and %d key contacts changed in 6 months.",
				*m.LastExecSponsorTouchDays, *m.KeyContactsChanged6m)
		}
		if m.LastExecSponsorTouchDays != nil {
			return fmt.Sprintf("Last executive sponsor touch was %d days ago.", *m.LastExecSponsorTouchDays)
		}
		return fmt.Sprintf("%d key contacts changed in the last 6 months.", *m.KeyContactsChanged6m)
	}
	return ""
}

func supportDriverText(m MetricSet) string {
	if m.OpenCriticalTickets != nil {
		s := fmt.Sprintf("%d critical support tickets are open", *m.OpenCriticalTickets)
		if m.CSATScoreCurrent != nil {
			s += fmt.Sprintf("; CSAT is %.1f", *m.CSATScoreCurrent)
		}
		if m.NPSCurrent != nil {
			s += fmt.Sprintf("; NPS is %d", *m.NPSCurrent)
		}
		return s + "."
	}
	if m.CSATScoreCurrent != nil {
		if m.NPSCurrent != nil {
			return fmt.Sprintf("CSAT is %.1f and NPS is %d.", *m.CSATScoreCurrent, *m.NPSCurrent)
		}
		return fmt.Sprintf("CSAT is %.1f.", *m.CSATScoreCurrent)
	}
	return fmt.Sprintf("NPS is %d.", *m.NPSCurrent)
}

// Fixed category -> action templates, checked in priority order. Text
// generation downstream must not invent actions beyond these.
type recommendationRule struct {
	category  string
	threshold float64
	action    string
}

var recommendationRules = []recommendationRule{
	{CategorySupport, 35, "Escalate open critical tickets and confirm resolution this week."},
	{CategorySupport, 45, "Follow up on low satisfaction scores with the account team this week."},
	{CategoryEngagement, 50, "Schedule a QBR with the executive sponsor within 14 days."},
	{CategoryUsageDecline, 35, "Run a re-adoption campaign targeting teams with declining usage."},
	{CategoryRenewalTiming, 45, "Build a renewal save plan ahead of the upcoming renewal date."},
	{CategoryBilling, 50, "Work with the billing contact to clear overdue invoices."},
	{CategorySeatUtilization, 55, "Provide training to drive adoption across unused seats."},
	{CategoryRelationship, 40, "Re-establish a regular executive sponsor cadence this month."},
}

func buildRecommendations(categories []CategoryScore) []string {
	byName := make(map[string]CategoryScore, len(categories))
	for _, cs := range categories {
		byName[cs.Category] = cs
	}

	recs := make([]string, 0, 3)
	used := make(map[string]bool)
	for _, rule := range recommendationRules {
		if used[rule.category] {
			continue
		}
		cs := byName[rule.category]
		if cs.Present && cs.SubScore <= rule.threshold {
			recs = append(recs, rule.action)
			used[rule.category] = true
			if len(recs) == 3 {
				break
			}
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "Maintain the current engagement cadence and review health next quarter.")
	}
	return recs
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func minOf(values []float64) float64 {
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
