package models

import "time"

// Ledger entry kinds. The ledger is append-only: the sum of all entry
// amounts for a user equals that user's current account balance.
const (
	EntryKindRecharge   = "recharge"
	EntryKindPurchase   = "purchase"
	EntryKindReward     = "reward"
	EntryKindTip        = "tip"
	EntryKindWithdraw   = "withdraw"
	EntryKindRefund     = "refund"
	EntryKindAdjustment = "adjustment"
)

type LedgerEntry struct {
	EntryID        string    `json:"entry_id" db:"entry_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Kind           string    `json:"kind" db:"kind"`
	Amount         int64     `json:"amount" db:"amount"` // signed, minor units; positive = credit
	Description    string    `json:"description" db:"description"`
	RelatedEntryID *string   `json:"related_entry_id,omitempty" db:"related_entry_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// LedgerFilter narrows a ledger listing.
type LedgerFilter struct {
	Kind string `json:"kind,omitempty" validate:"omitempty,oneof=recharge purchase reward tip withdraw refund adjustment"`
}

// LedgerPage is one page of a cursor-paginated listing, newest first.
// NextCursor is empty when the listing is exhausted.
type LedgerPage struct {
	Entries    []LedgerEntry `json:"entries"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
