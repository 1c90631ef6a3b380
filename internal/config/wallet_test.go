package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBonusTiers(t *testing.T) {
	tiers := parseBonusTiers("500:50,1000:150,2000:400,5000:1200")
	assert.Equal(t, int64(50), tiers[500])
	assert.Equal(t, int64(150), tiers[1000])
	assert.Equal(t, int64(1200), tiers[5000])

	t.Run("malformed pairs skipped", func(t *testing.T) {
		tiers := parseBonusTiers("500:50,broken,100,-5:10,200:-1")
		assert.Len(t, tiers, 1)
		assert.Equal(t, int64(50), tiers[500])
	})
}

func TestWalletConfig_BonusFor(t *testing.T) {
	cfg := LoadWalletConfig()
	assert.Equal(t, int64(150), cfg.BonusFor(1000))
	assert.Equal(t, int64(0), cfg.BonusFor(750))
}

func TestWalletConfig_Plan(t *testing.T) {
	cfg := LoadWalletConfig()

	plan, ok := cfg.Plan("monthly")
	assert.True(t, ok)
	assert.Equal(t, int64(99), plan.Price)
	assert.Equal(t, 30, plan.DurationDays)

	lifetime, ok := cfg.Plan("lifetime")
	assert.True(t, ok)
	assert.Equal(t, 0, lifetime.DurationDays)

	_, ok = cfg.Plan("weekly")
	assert.False(t, ok)
}
