package models

import "time"

// Account holds the authoritative balance for a user. Balance is in
// minor currency units and is only ever mutated by the transaction
// coordinator inside a database transaction.
type Account struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"`
	Version   int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AccountSnapshot is the read model returned to callers: current balance
// plus the derived VIP entitlement.
type AccountSnapshot struct {
	UserID       string     `json:"user_id"`
	Balance      int64      `json:"balance"`
	VipActive    bool       `json:"vip_active"`
	VipExpiresAt *time.Time `json:"vip_expires_at"` // nil = lifetime when VipActive
}
