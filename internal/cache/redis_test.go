package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/accountpulse/accountpulse/internal/scoring"
)

func TestKey_StableForIdenticalSets(t *testing.T) {
	a := scoring.MetricSet{Usage30dChange: scoring.Float(-0.10), OpenCriticalTickets: scoring.Int(2)}
	b := scoring.MetricSet{Usage30dChange: scoring.Float(-0.10), OpenCriticalTickets: scoring.Int(2)}
	assert.Equal(t, Key(a), Key(b))
}

func TestKey_DistinguishesValues(t *testing.T) {
	a := scoring.MetricSet{Usage30dChange: scoring.Float(-0.10)}
	b := scoring.MetricSet{Usage30dChange: scoring.Float(-0.11)}
	assert.NotEqual(t, Key(a), Key(b))
}

func TestKey_DistinguishesMissingFromZero(t *testing.T) {
	absent := scoring.MetricSet{}
	zero := scoring.MetricSet{Usage30dChange: scoring.Float(0)}
	assert.NotEqual(t, Key(absent), Key(zero))
}
