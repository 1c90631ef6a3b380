package services

// Intent is a balance-mutating request accepted by the coordinator.
// Exactly one concrete intent type exists per operation; validation of an
// intent's preconditions happens inside Apply against committed state.
type Intent interface {
	Kind() string
}

const (
	IntentRecharge   = "recharge"
	IntentPurchase   = "purchase"
	IntentTip        = "tip"
	IntentWithdraw   = "withdraw"
	IntentAdjustment = "admin_adjustment"
	IntentRefund     = "refund"
)

// Recharge credits the wallet. Bonus, when positive, is recorded as a
// separate reward entry linked to the recharge entry.
type Recharge struct {
	Amount int64
	Bonus  int64
}

func (Recharge) Kind() string { return IntentRecharge }

// Purchase debits the wallet for a VIP plan and creates a grant.
type Purchase struct {
	PlanID string
	Price  int64
}

func (Purchase) Kind() string { return IntentPurchase }

// Tip moves funds to another user, minus the platform fee.
type Tip struct {
	Amount      int64
	RecipientID string
	Message     string
}

func (Tip) Kind() string { return IntentTip }

// Withdraw debits the wallet for an approved payout over an external
// rail. Only the withdraw review flow issues this intent.
type Withdraw struct {
	Amount int64
}

func (Withdraw) Kind() string { return IntentWithdraw }

// AdminAdjustment is a signed operator correction.
type AdminAdjustment struct {
	Amount int64
	Reason string
}

func (AdminAdjustment) Kind() string { return IntentAdjustment }

// Refund reverses a prior purchase entry; the credit links back to the
// original entry.
type Refund struct {
	EntryID string
	Reason  string
}

func (Refund) Kind() string { return IntentRefund }
