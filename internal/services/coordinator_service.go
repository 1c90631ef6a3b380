package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/melodyhub/backend/internal/config"
	"github.com/melodyhub/backend/internal/metrics"
	"github.com/melodyhub/backend/internal/models"
)

// CoordinatorService is the single entry point for every balance or
// entitlement mutation. One Apply call is one atomic unit: ledger
// entries, balance updates and VIP grants commit together or not at all.
// Per-user linearization comes from FOR UPDATE row locks plus an
// optimistic version counter; transient conflicts are retried with
// bounded backoff before surfacing.
type CoordinatorService struct {
	db       *sql.DB
	accounts *AccountService
	ledger   *LedgerService
	notifier *Notifier
	cfg      *config.WalletConfig
}

func NewCoordinatorService(db *sql.DB, accounts *AccountService, ledger *LedgerService, notifier *Notifier, cfg *config.WalletConfig) *CoordinatorService {
	return &CoordinatorService{
		db:       db,
		accounts: accounts,
		ledger:   ledger,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Apply validates and atomically applies a balance-mutating intent.
// idempotencyKey may be empty; when set, a replayed call returns the
// originally committed snapshot without re-executing.
func (s *CoordinatorService) Apply(ctx context.Context, userID string, intent Intent, idempotencyKey string) (*models.AccountSnapshot, error) {
	if idempotencyKey != "" {
		if snap, ok := s.lookupIdempotent(userID, idempotencyKey); ok {
			metrics.ObserveReplay()
			return snap, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.ApplyMaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.ObserveRetry()
			if err := sleepBackoff(ctx, s.cfg.ApplyBackoffBase, attempt); err != nil {
				return nil, err
			}
			// A concurrent call with the same key may have won the race.
			if idempotencyKey != "" {
				if snap, ok := s.lookupIdempotent(userID, idempotencyKey); ok {
					metrics.ObserveReplay()
					return snap, nil
				}
			}
		}

		snap, err := s.applyOnce(ctx, userID, intent, idempotencyKey)
		if err == nil {
			metrics.ObserveApply(intent.Kind(), "success")
			return snap, nil
		}

		te, ok := AsTxError(err)
		if !ok || !te.Retryable() {
			metrics.ObserveApply(intent.Kind(), errOutcome(err))
			return nil, err
		}
		lastErr = err
		log.Printf("[COORDINATOR] Transient failure applying %s for user %s (attempt %d): %v",
			intent.Kind(), userID, attempt+1, err)
	}

	metrics.ObserveApply(intent.Kind(), errOutcome(lastErr))
	return nil, lastErr
}

func (s *CoordinatorService) applyOnce(ctx context.Context, userID string, intent Intent, idempotencyKey string) (*models.AccountSnapshot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	mut, err := s.prepare(tx, userID, intent, now)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.AppendTx(tx, mut.entries); err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to append ledger entries", err)
	}

	for _, id := range mut.order {
		p := mut.participants[id]
		if p.delta == 0 {
			continue
		}
		if err := s.accounts.UpdateBalanceTx(tx, id, p.account.Balance+p.delta, p.account.Version); err != nil {
			if te, ok := AsTxError(err); ok {
				return nil, te
			}
			return nil, txErrWrap(CodeStoreUnavailable, "failed to update balance", err)
		}
	}

	if mut.grant != nil {
		if err := s.accounts.InsertGrantTx(tx, *mut.grant); err != nil {
			return nil, txErrWrap(CodeStoreUnavailable, "failed to record vip grant", err)
		}
	}

	snap := mut.snapshot()
	if idempotencyKey != "" {
		if err := s.storeIdempotentTx(tx, userID, idempotencyKey, intent.Kind(), snap); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to commit", err)
	}

	// Post-commit side effects are best-effort and never roll back the
	// financial write.
	s.accounts.InvalidateSnapshot(ctx, mut.order...)
	go s.notifier.Publish(WalletEvent{
		Intent:     intent.Kind(),
		UserID:     userID,
		Entries:    mut.entries,
		Snapshot:   snap,
		OccurredAt: now,
	})

	return snap, nil
}

// participant is one account touched by the intent, locked for the
// duration of the transaction.
type participant struct {
	account *models.Account
	delta   int64
}

// mutation is the fully validated write set of one intent.
type mutation struct {
	userID       string
	participants map[string]*participant
	order        []string // lock order: sorted IDs
	entries      []models.LedgerEntry
	grant        *models.VipGrant
	entitlement  Entitlement
}

func (m *mutation) snapshot() *models.AccountSnapshot {
	p := m.participants[m.userID]
	return &models.AccountSnapshot{
		UserID:       m.userID,
		Balance:      p.account.Balance + p.delta,
		VipActive:    m.entitlement.VipActive,
		VipExpiresAt: m.entitlement.VipExpiresAt,
	}
}

// prepare locks every involved account (in consistent ID order, so two
// concurrent tips cannot deadlock), validates the intent against
// committed state and computes the entry set and balance deltas.
func (s *CoordinatorService) prepare(tx *sql.Tx, userID string, intent Intent, now time.Time) (*mutation, error) {
	ids := []string{userID}
	if tip, ok := intent.(Tip); ok {
		if tip.RecipientID == userID || tip.RecipientID == "" {
			return nil, txErr(CodeInvalidRecipient, "cannot tip yourself")
		}
		// Internal accounts are not tippable; a duplicate participant
		// would also break the per-account delta bookkeeping.
		if tip.RecipientID == s.cfg.SystemFeeAccount {
			return nil, txErr(CodeInvalidRecipient, "recipient %s is not a user account", tip.RecipientID)
		}
		ids = append(ids, tip.RecipientID)
		if tipFee(tip.Amount, s.cfg.TipFeeBps) > 0 {
			ids = append(ids, s.cfg.SystemFeeAccount)
		}
	}
	sort.Strings(ids)

	mut := &mutation{
		userID:       userID,
		participants: make(map[string]*participant, len(ids)),
		order:        ids,
	}
	for _, id := range ids {
		account, err := s.accounts.LockTx(tx, id)
		if err == sql.ErrNoRows {
			if id == userID {
				return nil, txErr(CodeAccountNotFound, "account %s not found", userID)
			}
			if id == s.cfg.SystemFeeAccount {
				return nil, txErr(CodeStoreUnavailable, "fee account %s missing", id)
			}
			return nil, txErr(CodeInvalidRecipient, "recipient %s not found", id)
		}
		if err != nil {
			return nil, txErrWrap(CodeStoreUnavailable, "failed to lock account", err)
		}
		mut.participants[id] = &participant{account: account}
	}

	if err := s.buildEntries(tx, mut, intent, now); err != nil {
		return nil, err
	}

	for _, id := range mut.order {
		p := mut.participants[id]
		if p.account.Balance+p.delta < 0 {
			return nil, txErr(CodeInsufficientBalance, "balance %d is insufficient", mut.participants[userID].account.Balance)
		}
	}

	grants, err := s.accounts.GrantsTx(tx, userID)
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to load grants", err)
	}

	if purchase, ok := intent.(Purchase); ok {
		plan, _ := s.cfg.Plan(purchase.PlanID)
		current := ComputeEntitlement(grants, now)
		expiresAt := NextExpiry(plan, current, now)
		mut.grant = &models.VipGrant{
			GrantID:    uuid.NewString(),
			UserID:     userID,
			PlanID:     plan.ID,
			AmountPaid: plan.Price,
			GrantedAt:  now,
			ExpiresAt:  expiresAt,
		}
		grants = append(grants, *mut.grant)
	}
	mut.entitlement = ComputeEntitlement(grants, now)

	return mut, nil
}

func (s *CoordinatorService) buildEntries(tx *sql.Tx, mut *mutation, intent Intent, now time.Time) error {
	userID := mut.userID
	switch in := intent.(type) {
	case Recharge:
		if in.Amount < s.cfg.MinRecharge || in.Amount > s.cfg.MaxRecharge {
			return txErr(CodeAmountOutOfRange, "recharge amount %d outside [%d, %d]", in.Amount, s.cfg.MinRecharge, s.cfg.MaxRecharge)
		}
		if in.Bonus < 0 {
			return txErr(CodeAmountOutOfRange, "recharge bonus must not be negative")
		}
		rechargeID := uuid.NewString()
		mut.entries = append(mut.entries, models.LedgerEntry{
			EntryID:     rechargeID,
			UserID:      userID,
			Kind:        models.EntryKindRecharge,
			Amount:      in.Amount,
			Description: fmt.Sprintf("wallet recharge %d", in.Amount),
			CreatedAt:   now,
		})
		if in.Bonus > 0 {
			mut.entries = append(mut.entries, models.LedgerEntry{
				EntryID:        uuid.NewString(),
				UserID:         userID,
				Kind:           models.EntryKindReward,
				Amount:         in.Bonus,
				Description:    fmt.Sprintf("recharge bonus %d", in.Bonus),
				RelatedEntryID: &rechargeID,
				CreatedAt:      now,
			})
		}
		mut.participants[userID].delta = in.Amount + in.Bonus

	case Purchase:
		plan, ok := s.cfg.Plan(in.PlanID)
		if !ok || plan.Price <= 0 {
			return txErr(CodeAmountOutOfRange, "unknown or free plan %q", in.PlanID)
		}
		if in.Price != plan.Price {
			return txErr(CodeAmountOutOfRange, "price %d does not match plan %q price %d", in.Price, plan.ID, plan.Price)
		}
		mut.entries = append(mut.entries, models.LedgerEntry{
			EntryID:     uuid.NewString(),
			UserID:      userID,
			Kind:        models.EntryKindPurchase,
			Amount:      -plan.Price,
			Description: fmt.Sprintf("vip purchase: %s", plan.Name),
			CreatedAt:   now,
		})
		mut.participants[userID].delta = -plan.Price

	case Tip:
		if in.Amount <= 0 {
			return txErr(CodeAmountOutOfRange, "tip amount must be positive")
		}
		fee := tipFee(in.Amount, s.cfg.TipFeeBps)
		net := in.Amount - fee

		debitID := uuid.NewString()
		mut.entries = append(mut.entries, models.LedgerEntry{
			EntryID:     debitID,
			UserID:      userID,
			Kind:        models.EntryKindTip,
			Amount:      -in.Amount,
			Description: fmt.Sprintf("tip to %s", in.RecipientID),
			CreatedAt:   now,
		})
		mut.entries = append(mut.entries, models.LedgerEntry{
			EntryID:        uuid.NewString(),
			UserID:         in.RecipientID,
			Kind:           models.EntryKindTip,
			Amount:         net,
			Description:    fmt.Sprintf("tip from %s", userID),
			RelatedEntryID: &debitID,
			CreatedAt:      now,
		})
		mut.participants[userID].delta = -in.Amount
		mut.participants[in.RecipientID].delta = net
		if fee > 0 {
			mut.entries = append(mut.entries, models.LedgerEntry{
				EntryID:        uuid.NewString(),
				UserID:         s.cfg.SystemFeeAccount,
				Kind:           models.EntryKindTip,
				Amount:         fee,
				Description:    "tip platform fee",
				RelatedEntryID: &debitID,
				CreatedAt:      now,
			})
			mut.participants[s.cfg.SystemFeeAccount].delta = fee
		}

	case Withdraw:
		if in.Amount < s.cfg.MinWithdraw || in.Amount > s.cfg.MaxWithdraw {
			return txErr(CodeAmountOutOfRange, "withdraw amount %d outside [%d, %d]", in.Amount, s.cfg.MinWithdraw, s.cfg.MaxWithdraw)
		}
		mut.entries = append(mut.entries, models.LedgerEntry{
			EntryID:     uuid.NewString(),
			UserID:      userID,
			Kind:        models.EntryKindWithdraw,
			Amount:      -in.Amount,
			Description: fmt.Sprintf("wallet withdrawal %d", in.Amount),
			CreatedAt:   now,
		})
		mut.participants[userID].delta = -in.Amount

	case AdminAdjustment:
		if in.Amount == 0 {
			return txErr(CodeAmountOutOfRange, "adjustment amount must not be zero")
		}
		mut.entries = append(mut.entries, models.LedgerEntry{
			EntryID:     uuid.NewString(),
			UserID:      userID,
			Kind:        models.EntryKindAdjustment,
			Amount:      in.Amount,
			Description: fmt.Sprintf("admin adjustment: %s", in.Reason),
			CreatedAt:   now,
		})
		mut.participants[userID].delta = in.Amount

	case Refund:
		original, err := s.ledger.GetEntryTx(tx, userID, in.EntryID)
		if err == sql.ErrNoRows {
			return txErr(CodeAmountOutOfRange, "entry %s not found for user %s", in.EntryID, userID)
		}
		if err != nil {
			return txErrWrap(CodeStoreUnavailable, "failed to load entry", err)
		}
		if original.Kind != models.EntryKindPurchase {
			return txErr(CodeAmountOutOfRange, "entry %s is not a purchase", in.EntryID)
		}
		refunded, err := s.ledger.HasRefundTx(tx, in.EntryID)
		if err != nil {
			return txErrWrap(CodeStoreUnavailable, "failed to check refund state", err)
		}
		if refunded {
			return txErr(CodeAmountOutOfRange, "entry %s already refunded", in.EntryID)
		}
		mut.entries = append(mut.entries, models.LedgerEntry{
			EntryID:        uuid.NewString(),
			UserID:         userID,
			Kind:           models.EntryKindRefund,
			Amount:         -original.Amount,
			Description:    fmt.Sprintf("refund of %s: %s", in.EntryID, in.Reason),
			RelatedEntryID: &in.EntryID,
			CreatedAt:      now,
		})
		mut.participants[userID].delta = -original.Amount

	default:
		return txErr(CodeAmountOutOfRange, "unsupported intent %q", intent.Kind())
	}

	return nil
}

func (s *CoordinatorService) lookupIdempotent(userID, key string) (*models.AccountSnapshot, bool) {
	var data []byte
	err := s.db.QueryRow(`
		SELECT snapshot FROM idempotency_keys WHERE user_id = $1 AND idempotency_key = $2`,
		userID, key).Scan(&data)
	if err != nil {
		return nil, false
	}
	var snap models.AccountSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("[COORDINATOR] Corrupt idempotency record for user %s key %s: %v", userID, key, err)
		return nil, false
	}
	return &snap, true
}

func (s *CoordinatorService) storeIdempotentTx(tx *sql.Tx, userID, key, kind string, snap *models.AccountSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return txErrWrap(CodeStoreUnavailable, "failed to marshal snapshot", err)
	}
	_, err = tx.Exec(`
		INSERT INTO idempotency_keys (user_id, idempotency_key, intent_kind, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, key, kind, data, time.Now().UTC())
	if err != nil {
		// A concurrent call with the same key committed first; the retry
		// loop will answer from its stored record.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return txErr(CodeConcurrencyConflict, "idempotency key %s raced", key)
		}
		return txErrWrap(CodeStoreUnavailable, "failed to store idempotency record", err)
	}
	return nil
}

// EnsurePlatformAccounts provisions the internal accounts the
// coordinator credits (tip fees). Run once at startup.
func (s *CoordinatorService) EnsurePlatformAccounts() error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO accounts (user_id, balance, version, created_at, updated_at)
		VALUES ($1, 0, 1, $2, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		s.cfg.SystemFeeAccount, now)
	return err
}

func tipFee(amount, feeBps int64) int64 {
	return amount * feeBps / 10000
}

func errOutcome(err error) string {
	if te, ok := AsTxError(err); ok {
		return te.Code
	}
	return "ERROR"
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	d := base << (attempt - 1)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return txErrWrap(CodeStoreUnavailable, "cancelled while backing off", ctx.Err())
	case <-timer.C:
		return nil
	}
}
