package scoring

import (
	"fmt"
	"math"
)

// ExpansionPotential is the discrete band derived from the expansion score.
type ExpansionPotential string

const (
	PotentialVeryHigh ExpansionPotential = "Very High"
	PotentialHigh     ExpansionPotential = "High"
	PotentialMedium   ExpansionPotential = "Medium"
	PotentialLow      ExpansionPotential = "Low"
)

// Expansion category identifiers with their maximum point values. Unlike
// the churn rubric the sub-scores are additive points, not 0-100 values,
// so the maxima double as the weights.
const (
	ExpansionUtilization = "utilization"
	ExpansionUsageGrowth = "usage_growth"
	ExpansionEngagement  = "engagement_success"
	ExpansionGrowth      = "growth_signals"
	ExpansionReadiness   = "readiness_timing"

	maxUtilizationPoints = 30
	maxUsageGrowthPoints = 25
	maxEngagementPoints  = 20
	maxGrowthPoints      = 15
	maxReadinessPoints   = 10
)

// ExpansionCategory is one expansion category's point contribution.
type ExpansionCategory struct {
	Category string  `json:"category"`
	Points   float64 `json:"points"`
	Max      float64 `json:"max"`
	Present  bool    `json:"present"`
}

// ProductRecommendation is an allow-listed product with a priority and
// a reasoning string that cites the triggering metric.
type ProductRecommendation struct {
	Product   string `json:"product"`
	Priority  string `json:"priority"`
	Reasoning string `json:"reasoning"`
}

// ExpansionResult is the upsell-side output.
type ExpansionResult struct {
	ExpansionScore      int                     `json:"expansion_score"`
	ExpansionPotential  ExpansionPotential      `json:"expansion_potential"`
	RecommendedProducts []ProductRecommendation `json:"recommended_products"`
	KeySignals          []string                `json:"key_signals"`
	Categories          []ExpansionCategory     `json:"categories"`
}

// Known product names the recommendation table can emit. Only products
// also present in the caller-supplied allow-list are recommended.
const (
	ProductAdditionalSeats   = "Additional Seats"
	ProductPremiumTier       = "Premium Tier Upgrade"
	ProductAdvancedFeatures  = "Advanced Features Package"
	ProductEnterpriseSupport = "Enterprise Support"
	ProductAPIAccess         = "API Access"
	ProductTraining          = "Training & Onboarding"
	ProductCustomIntegration = "Custom Integration"
)

// ScoreExpansion computes the 0-100 expansion score from a sparse
// metric set plus the caller's product allow-list. Same contract as
// Score: pure, deterministic, missing signals contribute nothing.
func ScoreExpansion(m UpsellMetrics, availableProducts []string) ExpansionResult {
	categories := make([]ExpansionCategory, 0, 5)
	for _, def := range []struct {
		name   string
		max    float64
		points func(UpsellMetrics) (float64, bool)
	}{
		{ExpansionUtilization, maxUtilizationPoints, utilizationPoints},
		{ExpansionUsageGrowth, maxUsageGrowthPoints, usageGrowthPoints},
		{ExpansionEngagement, maxEngagementPoints, engagementPoints},
		{ExpansionGrowth, maxGrowthPoints, growthPoints},
		{ExpansionReadiness, maxReadinessPoints, readinessPoints},
	} {
		points, present := def.points(m)
		categories = append(categories, expansionCategory(def.name, def.max, points, present))
	}

	var total float64
	for _, c := range categories {
		total += c.Points
	}
	score := int(math.Round(clamp(total, 0, 100)))

	return ExpansionResult{
		ExpansionScore:      score,
		ExpansionPotential:  PotentialFor(score),
		RecommendedProducts: recommendProducts(m, availableProducts),
		KeySignals:          buildKeySignals(m, categories),
		Categories:          categories,
	}
}

// PotentialFor maps an expansion score to its band: >=80 Very High,
// >=60 High, >=35 Medium, else Low.
func PotentialFor(score int) ExpansionPotential {
	switch {
	case score >= 80:
		return PotentialVeryHigh
	case score >= 60:
		return PotentialHigh
	case score >= 35:
		return PotentialMedium
	default:
		return PotentialLow
	}
}

func expansionCategory(name string, max float64, points float64, present bool) ExpansionCategory {
	c := ExpansionCategory{Category: name, Max: max, Present: present}
	if present {
		c.Points = points
	}
	return c
}

func utilization(m UpsellMetrics) (float64, bool) {
	if m.ActiveUsers == nil || m.LicensedSeats == nil {
		return 0, false
	}
	seats := *m.LicensedSeats
	if seats < 1 {
		seats = 1
	}
	return float64(*m.ActiveUsers) / float64(seats), true
}

func utilizationPoints(m UpsellMetrics) (float64, bool) {
	util, ok := utilization(m)
	if !ok {
		return 0, false
	}
	switch {
	case util > 0.90:
		return 30, true
	case util >= 0.70:
		return 20, true
	case util >= 0.50:
		return 10, true
	default:
		return 5, true
	}
}

func usageGrowthPoints(m UpsellMetrics) (float64, bool) {
	if m.Usage30dChange == nil {
		return 0, false
	}
	growth := *m.Usage30dChange
	switch {
	case growth > 0.30:
		return 25, true
	case growth >= 0.15:
		return 20, true
	case growth >= 0.05:
		return 10, true
	default:
		return 5, true
	}
}

// engagementPoints rewards sentiment and demonstrated success. Additive
// per signal, capped at the category maximum.
func engagementPoints(m UpsellMetrics) (float64, bool) {
	if m.NPSCurrent == nil && m.CSATScoreCurrent == nil && m.FeatureAdoptionScore == nil &&
		m.ActiveChampions == nil && m.SuccessMilestoneHits90d == nil {
		return 0, false
	}
	var points float64
	if m.NPSCurrent != nil && *m.NPSCurrent > 40 {
		points += 8
	}
	if m.CSATScoreCurrent != nil && *m.CSATScoreCurrent > 4.0 {
		points += 6
	}
	if m.FeatureAdoptionScore != nil && *m.FeatureAdoptionScore > 0.60 {
		points += 4
	}
	if m.ActiveChampions != nil && *m.ActiveChampions >= 2 {
		points += 3
	}
	if m.SuccessMilestoneHits90d != nil && *m.SuccessMilestoneHits90d >= 1 {
		points += 3
	}
	return math.Min(points, maxEngagementPoints), true
}

func growthPoints(m UpsellMetrics) (float64, bool) {
	if m.TeamSizeGrowth6mo == nil && m.ExecEngagementScore == nil && m.APIIntegrationDepth == nil {
		return 0, false
	}
	switch {
	case m.TeamSizeGrowth6mo != nil && *m.TeamSizeGrowth6mo > 0.15:
		return 15, true
	case m.ExecEngagementScore != nil && *m.ExecEngagementScore >= 7:
		return 10, true
	case m.APIIntegrationDepth != nil && *m.APIIntegrationDepth >= 5:
		return 8, true
	case m.TeamSizeGrowth6mo != nil && *m.TeamSizeGrowth6mo > 0:
		return 5, true
	default:
		return 0, true
	}
}

func readinessPoints(m UpsellMetrics) (float64, bool) {
	if m.BudgetCycleProximityDays == nil && m.TrainingSessionsAttended90 == nil && m.SupportInteractions30d == nil {
		return 0, false
	}
	switch {
	case m.BudgetCycleProximityDays != nil && *m.BudgetCycleProximityDays < 90:
		return 10, true
	case m.TrainingSessionsAttended90 != nil && *m.TrainingSessionsAttended90 >= 1:
		return 5, true
	case m.SupportInteractions30d != nil && *m.SupportInteractions30d >= 1:
		return 3, true
	default:
		return 0, true
	}
}

type productRule struct {
	product   string
	priority  string
	triggered func(m UpsellMetrics) (string, bool)
}

// Static product rules in priority order. Each reasoning string cites
// the metric that triggered the rule.
var productRules = []productRule{
	{ProductAdditionalSeats, "High", func(m UpsellMetrics) (string, bool) {
		util, ok := utilization(m)
		if !ok || util < 0.90 {
			return "", false
		}
		return fmt.Sprintf("Seat utilization is at %.0f%% (%d of %d seats), leaving little headroom for new users.",
			util*100, *m.ActiveUsers, *m.LicensedSeats), true
	}},
	{ProductPremiumTier, "High", func(m UpsellMetrics) (string, bool) {
		if m.Usage30dChange == nil || *m.Usage30dChange < 0.15 {
			return "", false
		}
		return fmt.Sprintf("Usage grew %.0f%% in the last 30 days, indicating readiness for a higher tier.",
			*m.Usage30dChange*100), true
	}},
	{ProductAdvancedFeatures, "Medium", func(m UpsellMetrics) (string, bool) {
		if m.FeatureAdoptionScore == nil || *m.FeatureAdoptionScore < 0.60 {
			return "", false
		}
		return fmt.Sprintf("Feature adoption is at %.0f%%, showing appetite for deeper capability.",
			*m.FeatureAdoptionScore*100), true
	}},
	{ProductAPIAccess, "Medium", func(m UpsellMetrics) (string, bool) {
		if m.APIIntegrationDepth == nil || *m.APIIntegrationDepth < 5 {
			return "", false
		}
		return fmt.Sprintf("API integration depth of %d signals a technically invested team.",
			*m.APIIntegrationDepth), true
	}},
	{ProductCustomIntegration, "Low", func(m UpsellMetrics) (string, bool) {
		if m.APIIntegrationDepth == nil || *m.APIIntegrationDepth < 8 {
			return "", false
		}
		return fmt.Sprintf("Deep API integration (%d/10) suggests a fit for custom integration work.",
			*m.APIIntegrationDepth), true
	}},
	{ProductEnterpriseSupport, "Medium", func(m UpsellMetrics) (string, bool) {
		if m.SupportInteractions30d == nil || *m.SupportInteractions30d < 3 {
			return "", false
		}
		return fmt.Sprintf("%d support interactions in 30 days suggest the account would value a dedicated support tier.",
			*m.SupportInteractions30d), true
	}},
	{ProductTraining, "Low", func(m UpsellMetrics) (string, bool) {
		if m.FeatureAdoptionScore == nil || *m.FeatureAdoptionScore >= 0.40 {
			return "", false
		}
		return fmt.Sprintf("Feature adoption of %.0f%% leaves room that structured training can close.",
			*m.FeatureAdoptionScore*100), true
	}},
}

// recommendProducts evaluates the static rules against the metric set
// and keeps only products present in the caller's allow-list.
func recommendProducts(m UpsellMetrics, available []string) []ProductRecommendation {
	allowed := make(map[string]bool, len(available))
	for _, p := range available {
		allowed[p] = true
	}

	var recs []ProductRecommendation
	for _, rule := range productRules {
		if !allowed[rule.product] {
			continue
		}
		reasoning, ok := rule.triggered(m)
		if !ok {
			continue
		}
		recs = append(recs, ProductRecommendation{
			Product:   rule.product,
			Priority:  rule.priority,
			Reasoning: reasoning,
		})
	}
	return recs
}

// buildKeySignals renders up to three signal strings from the
// highest-scoring present categories.
func buildKeySignals(m UpsellMetrics, categories []ExpansionCategory) []string {
	type scored struct {
		cat  ExpansionCategory
		frac float64
	}
	ranked := make([]scored, 0, len(categories))
	for _, c := range categories {
		if c.Present {
			ranked = append(ranked, scored{c, c.Points / c.Max})
		}
	}
	// Stable selection sort keeps definition order on ties.
	for i := 0; i < len(ranked); i++ {
		best := i
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].frac > ranked[best].frac {
				best = j
			}
		}
		ranked[i], ranked[best] = ranked[best], ranked[i]
	}

	signals := make([]string, 0, 3)
	for _, s := range ranked {
		if len(signals) == 3 {
			break
		}
		signals = append(signals, keySignalText(m, s.cat))
	}
	return signals
}

func keySignalText(m UpsellMetrics, c ExpansionCategory) string {
	switch c.Category {
	case ExpansionUtilization:
		util, _ := utilization(m)
		return fmt.Sprintf("Seat utilization at %.0f%% contributed %.0f of %.0f points.", util*100, c.Points, c.Max)
	case ExpansionUsageGrowth:
		return fmt.Sprintf("30-day usage change of %+.0f%% contributed %.0f of %.0f points.", *m.Usage30dChange*100, c.Points, c.Max)
	case ExpansionEngagement:
		return fmt.Sprintf("Engagement and success signals contributed %.0f of %.0f points.", c.Points, c.Max)
	case ExpansionGrowth:
		return fmt.Sprintf("Growth signals contributed %.0f of %.0f points.", c.Points, c.Max)
	case ExpansionReadiness:
		return fmt.Sprintf("Buying readiness contributed %.0f of %.0f points.", c.Points, c.Max)
	}
	return ""
}
