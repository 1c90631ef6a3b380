package models

import "time"

// Withdraw request lifecycle. Like recharges, withdrawals settle over an
// external rail: the wallet debit only happens when an operator approves
// the request and pays out.
const (
	WithdrawStatusPending  = "pending"
	WithdrawStatusApproved = "approved"
	WithdrawStatusRejected = "rejected"
)

type WithdrawRequest struct {
	ID            string     `json:"id" db:"id"`
	ReferenceID   string     `json:"reference_id" db:"reference_id"`
	UserID        string     `json:"user_id" db:"user_id"`
	Amount        int64      `json:"amount" db:"amount"`
	PaymentMethod string     `json:"payment_method" db:"payment_method"`
	AccountInfo   string     `json:"account_info" db:"account_info"` // payout destination
	Status        string     `json:"status" db:"status"`
	Notes         string     `json:"notes,omitempty" db:"notes"`
	ProcessedBy   *string    `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
