package services

import (
	"time"

	"github.com/melodyhub/backend/internal/models"
)

// Entitlement is the derived VIP state for a user.
type Entitlement struct {
	VipActive    bool
	VipExpiresAt *time.Time // nil = lifetime when VipActive
}

// ComputeEntitlement derives the VIP state from grant history at a point
// in time. A user is VIP iff any grant is lifetime (nil expiry) or expires
// after now. When several timed grants are live the furthest expiry wins.
func ComputeEntitlement(grants []models.VipGrant, now time.Time) Entitlement {
	var latest *time.Time
	for i := range grants {
		exp := grants[i].ExpiresAt
		if exp == nil {
			return Entitlement{VipActive: true, VipExpiresAt: nil}
		}
		if exp.After(now) && (latest == nil || exp.After(*latest)) {
			e := *exp
			latest = &e
		}
	}
	if latest == nil {
		return Entitlement{}
	}
	return Entitlement{VipActive: true, VipExpiresAt: latest}
}

// NextExpiry computes the expiry for a newly purchased plan. A renewal
// while a timed grant is still live extends from the later of now and the
// current expiry, so remaining time is never wasted. Lifetime plans
// (DurationDays == 0) return nil.
func NextExpiry(plan models.VipPlan, current Entitlement, now time.Time) *time.Time {
	if plan.DurationDays == 0 {
		return nil
	}
	base := now
	if current.VipActive && current.VipExpiresAt != nil && current.VipExpiresAt.After(now) {
		base = *current.VipExpiresAt
	}
	exp := base.AddDate(0, 0, plan.DurationDays)
	return &exp
}
