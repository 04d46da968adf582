package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expansionReadyMetrics() UpsellMetrics {
	return UpsellMetrics{
		ActiveUsers:              Int(95),
		LicensedSeats:            Int(100),
		Usage30dChange:           Float(0.35),
		NPSCurrent:               Int(50),
		CSATScoreCurrent:         Float(4.5),
		TeamSizeGrowth6mo:        Float(0.25),
		BudgetCycleProximityDays: Int(30),
	}
}

var allProducts = []string{
	ProductPremiumTier,
	ProductAdditionalSeats,
	ProductAdvancedFeatures,
	ProductEnterpriseSupport,
	ProductAPIAccess,
	ProductTraining,
	ProductCustomIntegration,
}

func TestScoreExpansion_VeryHighPotential(t *testing.T) {
	result := ScoreExpansion(expansionReadyMetrics(), allProducts)

	// 30 utilization + 25 growth + 14 engagement + 15 team growth + 10 readiness.
	assert.Equal(t, 94, result.ExpansionScore)
	assert.Equal(t, PotentialVeryHigh, result.ExpansionPotential)
}

func TestScoreExpansion_ProductsDrawnFromAllowListOnly(t *testing.T) {
	allowed := []string{ProductAdditionalSeats}
	result := ScoreExpansion(expansionReadyMetrics(), allowed)

	require.NotEmpty(t, result.RecommendedProducts)
	for _, rec := range result.RecommendedProducts {
		assert.Equal(t, ProductAdditionalSeats, rec.Product)
	}
}

func TestScoreExpansion_SeatRecommendationCitesUtilization(t *testing.T) {
	result := ScoreExpansion(expansionReadyMetrics(), allProducts)

	require.NotEmpty(t, result.RecommendedProducts)
	seats := result.RecommendedProducts[0]
	assert.Equal(t, ProductAdditionalSeats, seats.Product)
	assert.Equal(t, "High", seats.Priority)
	assert.Contains(t, seats.Reasoning, "95%")
	assert.Contains(t, seats.Reasoning, "95 of 100 seats")
}

func TestScoreExpansion_EmptyAllowListYieldsNoProducts(t *testing.T) {
	result := ScoreExpansion(expansionReadyMetrics(), nil)
	assert.Empty(t, result.RecommendedProducts)
}

func TestScoreExpansion_PotentialBands(t *testing.T) {
	assert.Equal(t, PotentialVeryHigh, PotentialFor(80))
	assert.Equal(t, PotentialHigh, PotentialFor(79))
	assert.Equal(t, PotentialHigh, PotentialFor(60))
	assert.Equal(t, PotentialMedium, PotentialFor(59))
	assert.Equal(t, PotentialMedium, PotentialFor(35))
	assert.Equal(t, PotentialLow, PotentialFor(34))
}

func TestScoreExpansion_MissingSignalsContributeNothing(t *testing.T) {
	result := ScoreExpansion(UpsellMetrics{Usage30dChange: Float(0.40)}, allProducts)

	assert.Equal(t, 25, result.ExpansionScore)
	assert.Equal(t, PotentialLow, result.ExpansionPotential)
	for _, c := range result.Categories {
		if c.Category != ExpansionUsageGrowth {
			assert.False(t, c.Present, "category %s should be absent", c.Category)
			assert.Zero(t, c.Points)
		}
	}
}

func TestScoreExpansion_Deterministic(t *testing.T) {
	m := expansionReadyMetrics()
	assert.Equal(t, ScoreExpansion(m, allProducts), ScoreExpansion(m, allProducts))
}

func TestScoreExpansion_KeySignalsLimitedToThree(t *testing.T) {
	result := ScoreExpansion(expansionReadyMetrics(), allProducts)
	assert.Len(t, result.KeySignals, 3)
	assert.Contains(t, result.KeySignals[0], "95%")
}

func TestScoreExpansion_LowAdoptionSuggestsTraining(t *testing.T) {
	m := UpsellMetrics{
		ActiveUsers:          Int(30),
		LicensedSeats:        Int(100),
		FeatureAdoptionScore: Float(0.20),
	}
	result := ScoreExpansion(m, allProducts)

	var products []string
	for _, rec := range result.RecommendedProducts {
		products = append(products, rec.Product)
	}
	assert.Contains(t, products, ProductTraining)
	assert.NotContains(t, products, ProductAdditionalSeats)
}
