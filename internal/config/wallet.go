package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/melodyhub/backend/internal/models"
)

// WalletConfig carries the money policy: recharge limits, bonus tiers,
// the VIP plan catalog, tip fee and the coordinator retry budget.
type WalletConfig struct {
	MinRecharge      int64
	MaxRecharge      int64
	MinWithdraw      int64
	MaxWithdraw      int64
	SignupBonus      int64
	TrialDays        int
	TipFeeBps        int64 // platform cut on tips, basis points
	SystemFeeAccount string
	BonusTiers       map[int64]int64
	Plans            []models.VipPlan
	ApplyMaxAttempts int
	ApplyBackoffBase time.Duration
}

func LoadWalletConfig() *WalletConfig {
	return &WalletConfig{
		MinRecharge:      getEnvAsInt64("WALLET_MIN_RECHARGE", 100),
		MaxRecharge:      getEnvAsInt64("WALLET_MAX_RECHARGE", 1_000_000),
		MinWithdraw:      getEnvAsInt64("WALLET_MIN_WITHDRAW", 100),
		MaxWithdraw:      getEnvAsInt64("WALLET_MAX_WITHDRAW", 1_000_000),
		SignupBonus:      getEnvAsInt64("WALLET_SIGNUP_BONUS", 100),
		TrialDays:        getEnvAsInt("WALLET_TRIAL_DAYS", 7),
		TipFeeBps:        getEnvAsInt64("WALLET_TIP_FEE_BPS", 1000),
		SystemFeeAccount: getEnv("WALLET_FEE_ACCOUNT", "platform-fees"),
		BonusTiers:       parseBonusTiers(getEnv("WALLET_BONUS_TIERS", "500:50,1000:150,2000:400,5000:1200")),
		Plans:            defaultPlans(),
		ApplyMaxAttempts: getEnvAsInt("WALLET_APPLY_MAX_ATTEMPTS", 3),
		ApplyBackoffBase: getEnvAsDuration("WALLET_APPLY_BACKOFF", 25*time.Millisecond),
	}
}

// BonusFor returns the configured recharge bonus for an exact tier amount,
// or zero when the amount is not a tier.
func (c *WalletConfig) BonusFor(amount int64) int64 {
	return c.BonusTiers[amount]
}

// Plan looks up a purchasable plan by ID.
func (c *WalletConfig) Plan(id string) (models.VipPlan, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return models.VipPlan{}, false
}

func defaultPlans() []models.VipPlan {
	return []models.VipPlan{
		{ID: "trial", Name: "VIP Trial", Price: 0, DurationDays: 7},
		{ID: "monthly", Name: "VIP Monthly", Price: 99, DurationDays: 30},
		{ID: "yearly", Name: "VIP Yearly", Price: 999, DurationDays: 365},
		{ID: "lifetime", Name: "VIP Lifetime", Price: 4999, DurationDays: 0},
	}
}

// parseBonusTiers reads "amount:bonus" pairs, e.g. "500:50,1000:150".
// Malformed pairs are skipped.
func parseBonusTiers(raw string) map[int64]int64 {
	tiers := make(map[int64]int64)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		amount, err1 := strconv.ParseInt(parts[0], 10, 64)
		bonus, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil || amount <= 0 || bonus < 0 {
			continue
		}
		tiers[amount] = bonus
	}
	return tiers
}

// TierAmounts returns the configured tier amounts in ascending order.
func (c *WalletConfig) TierAmounts() []int64 {
	amounts := make([]int64, 0, len(c.BonusTiers))
	for a := range c.BonusTiers {
		amounts = append(amounts, a)
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })
	return amounts
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
