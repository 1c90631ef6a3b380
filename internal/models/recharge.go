package models

import "time"

// Recharge request lifecycle. Requests are reviewed by an operator; an
// approved request is what actually credits the wallet.
const (
	RechargeStatusPending  = "pending"
	RechargeStatusApproved = "approved"
	RechargeStatusRejected = "rejected"
)

// Supported external payment rails for topups.
const (
	PaymentMethodKPay       = "kpay"
	PaymentMethodKBZBanking = "kbz_banking"
)

type RechargeRequest struct {
	ID            string     `json:"id" db:"id"`
	ReferenceID   string     `json:"reference_id" db:"reference_id"`
	UserID        string     `json:"user_id" db:"user_id"`
	Amount        int64      `json:"amount" db:"amount"`
	Bonus         int64      `json:"bonus" db:"bonus"`
	PaymentMethod string     `json:"payment_method" db:"payment_method"`
	ScreenshotURL string     `json:"payment_screenshot_url" db:"payment_screenshot_url"`
	Status        string     `json:"status" db:"status"`
	Notes         string     `json:"notes,omitempty" db:"notes"`
	ProcessedBy   *string    `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
