package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_EmptySetIsValid(t *testing.T) {
	assert.NoError(t, Validate(MetricSet{}))
}

func TestValidate_HealthySetIsValid(t *testing.T) {
	assert.NoError(t, Validate(healthyMetricSet()))
}

func TestValidate_OutOfRangeCSAT(t *testing.T) {
	err := Validate(MetricSet{CSATScoreCurrent: Float(7)})
	require.Error(t, err)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "csat_score_current", errs[0].Field)
}

func TestValidate_CollectsEveryFailure(t *testing.T) {
	err := Validate(MetricSet{
		Usage30dChange:       Float(1.5),
		NPSCurrent:           Int(150),
		RenewalDaysOut:       Int(-3),
		InvoicesOverdueCount: Int(-1),
	})
	require.Error(t, err)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 4)

	fields := make([]string, len(errs))
	for i, ve := range errs {
		fields[i] = ve.Field
	}
	assert.ElementsMatch(t, fields, []string{
		"usage_30d_change", "nps_current", "renewal_days_out", "invoices_overdue_count",
	})
}

func TestValidate_UsageChangeBounds(t *testing.T) {
	assert.NoError(t, Validate(MetricSet{Usage30dChange: Float(-0.99)}))
	assert.NoError(t, Validate(MetricSet{Usage30dChange: Float(0.99)}))
	assert.Error(t, Validate(MetricSet{Usage30dChange: Float(-1.0)}))
	assert.Error(t, Validate(MetricSet{Usage30dChange: Float(1.0)}))
}

func TestValidateUpsell_ActiveUsersBeyondSeats(t *testing.T) {
	err := ValidateUpsell(UpsellMetrics{ActiveUsers: Int(120), LicensedSeats: Int(100)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceed licensed seats")
}

func TestValidateUpsell_ValidSetPasses(t *testing.T) {
	assert.NoError(t, ValidateUpsell(expansionReadyMetrics()))
}

func TestValidationErrors_MessageListsFields(t *testing.T) {
	errs := ValidationErrors{
		{Field: "nps_current", Message: "must be between -100 and 100"},
		{Field: "csat_score_current", Message: "must be between 0 and 5"},
	}
	msg := errs.Error()
	assert.Contains(t, msg, "nps_current")
	assert.Contains(t, msg, "csat_score_current")
}
