package models

import "time"

// VipGrant records one purchased (or granted) VIP window. Grants are
// historical records and are never deleted; expired grants stay around.
type VipGrant struct {
	GrantID    string     `json:"grant_id" db:"grant_id"`
	UserID     string     `json:"user_id" db:"user_id"`
	PlanID     string     `json:"plan_id" db:"plan_id"`
	AmountPaid int64      `json:"amount_paid" db:"amount_paid"`
	GrantedAt  time.Time  `json:"granted_at" db:"granted_at"`
	ExpiresAt  *time.Time `json:"expires_at" db:"expires_at"` // nil = lifetime
}

// VipPlan describes a purchasable plan. DurationDays == 0 means lifetime.
type VipPlan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	DurationDays int    `json:"duration_days"`
}
