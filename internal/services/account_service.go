package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/melodyhub/backend/internal/config"
	"github.com/melodyhub/backend/internal/models"
)

const snapshotCacheTTL = 30 * time.Second

// AccountService owns the authoritative account row and the derived
// snapshot. Balance mutation primitives are transaction-scoped and only
// called by the coordinator; reads are side-effect free and may be served
// from a short-lived Redis cache for display. Authorization decisions
// never consult the cache.
type AccountService struct {
	db     *sql.DB
	redis  *redis.Client
	ledger *LedgerService
	cfg    *config.WalletConfig
}

func NewAccountService(db *sql.DB, redisClient *redis.Client, ledger *LedgerService, cfg *config.WalletConfig) *AccountService {
	return &AccountService{db: db, redis: redisClient, ledger: ledger, cfg: cfg}
}

// CreateAccount provisions the wallet for a newly registered user: a zero
// account credited with the signup bonus through a recorded reward entry,
// plus a trial VIP grant. Creating an existing account is a no-op that
// returns the current snapshot.
func (s *AccountService) CreateAccount(ctx context.Context, userID string) (*models.AccountSnapshot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	res, err := tx.Exec(`
		INSERT INTO accounts (user_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, s.cfg.SignupBonus, now)
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to create account", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to create account", err)
	}
	if inserted == 0 {
		// Already provisioned; registration retries land here.
		return s.Get(ctx, userID)
	}

	bonusEntry := models.LedgerEntry{
		EntryID:     uuid.NewString(),
		UserID:      userID,
		Kind:        models.EntryKindReward,
		Amount:      s.cfg.SignupBonus,
		Description: "signup bonus",
		CreatedAt:   now,
	}
	if err := s.ledger.AppendTx(tx, []models.LedgerEntry{bonusEntry}); err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to record signup bonus", err)
	}

	var expiresAt *time.Time
	if s.cfg.TrialDays > 0 {
		exp := now.AddDate(0, 0, s.cfg.TrialDays)
		expiresAt = &exp
		grant := models.VipGrant{
			GrantID:   uuid.NewString(),
			UserID:    userID,
			PlanID:    "trial",
			GrantedAt: now,
			ExpiresAt: expiresAt,
		}
		if err := s.InsertGrantTx(tx, grant); err != nil {
			return nil, txErrWrap(CodeStoreUnavailable, "failed to record trial grant", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to commit account creation", err)
	}

	log.Printf("[ACCOUNT] Created account for user %s with signup bonus %d", userID, s.cfg.SignupBonus)

	return &models.AccountSnapshot{
		UserID:       userID,
		Balance:      s.cfg.SignupBonus,
		VipActive:    s.cfg.TrialDays > 0,
		VipExpiresAt: expiresAt,
	}, nil
}

// Get returns the current snapshot. Safe to call concurrently and
// frequently; slightly stale reads are acceptable for display.
func (s *AccountService) Get(ctx context.Context, userID string) (*models.AccountSnapshot, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, snapshotKey(userID)).Bytes(); err == nil {
			var snap models.AccountSnapshot
			if json.Unmarshal(cached, &snap) == nil {
				return &snap, nil
			}
		}
	}

	var account models.Account
	err := s.db.QueryRow(`
		SELECT user_id, balance, version, created_at, updated_at
		FROM accounts WHERE user_id = $1`, userID).
		Scan(&account.UserID, &account.Balance, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, txErr(CodeAccountNotFound, "account %s not found", userID)
	}
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to load account", err)
	}

	grants, err := s.Grants(userID)
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to load grants", err)
	}

	ent := ComputeEntitlement(grants, time.Now().UTC())
	snap := &models.AccountSnapshot{
		UserID:       account.UserID,
		Balance:      account.Balance,
		VipActive:    ent.VipActive,
		VipExpiresAt: ent.VipExpiresAt,
	}

	if s.redis != nil {
		if data, err := json.Marshal(snap); err == nil {
			s.redis.Set(ctx, snapshotKey(userID), data, snapshotCacheTTL)
		}
	}
	return snap, nil
}

// InvalidateSnapshot drops the cached snapshot after a committed
// mutation. Best-effort.
func (s *AccountService) InvalidateSnapshot(ctx context.Context, userIDs ...string) {
	if s.redis == nil {
		return
	}
	for _, id := range userIDs {
		if err := s.redis.Del(ctx, snapshotKey(id)).Err(); err != nil {
			log.Printf("[ACCOUNT] Snapshot invalidation failed for %s: %v", id, err)
		}
	}
}

// LockTx loads the account row under FOR UPDATE within the coordinator's
// transaction.
func (s *AccountService) LockTx(tx *sql.Tx, userID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT user_id, balance, version, created_at, updated_at
		FROM accounts WHERE user_id = $1
		FOR UPDATE`, userID).
		Scan(&account.UserID, &account.Balance, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateBalanceTx applies the new balance with an optimistic version
// check. A zero row count means a concurrent writer won.
func (s *AccountService) UpdateBalanceTx(tx *sql.Tx, userID string, newBalance int64, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts SET balance = $1, version = version + 1, updated_at = $2 WHERE user_id = $3 AND version = $4`,
		newBalance, time.Now().UTC(), userID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return txErr(CodeConcurrencyConflict, "optimistic lock failed for account %s", userID)
	}
	return nil
}

// Grants loads the full grant history for a user, newest first.
func (s *AccountService) Grants(userID string) ([]models.VipGrant, error) {
	rows, err := s.db.Query(`
		SELECT grant_id, user_id, plan_id, amount_paid, granted_at, expires_at
		FROM vip_grants WHERE user_id = $1
		ORDER BY granted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []models.VipGrant
	for rows.Next() {
		var g models.VipGrant
		if err := rows.Scan(&g.GrantID, &g.UserID, &g.PlanID, &g.AmountPaid, &g.GrantedAt, &g.ExpiresAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// GrantsTx loads grants within the coordinator's transaction.
func (s *AccountService) GrantsTx(tx *sql.Tx, userID string) ([]models.VipGrant, error) {
	rows, err := tx.Query(`
		SELECT grant_id, user_id, plan_id, amount_paid, granted_at, expires_at
		FROM vip_grants WHERE user_id = $1
		ORDER BY granted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []models.VipGrant
	for rows.Next() {
		var g models.VipGrant
		if err := rows.Scan(&g.GrantID, &g.UserID, &g.PlanID, &g.AmountPaid, &g.GrantedAt, &g.ExpiresAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// InsertGrantTx records a VIP grant as part of the caller's transaction.
func (s *AccountService) InsertGrantTx(tx *sql.Tx, grant models.VipGrant) error {
	_, err := tx.Exec(`
		INSERT INTO vip_grants (grant_id, user_id, plan_id, amount_paid, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		grant.GrantID, grant.UserID, grant.PlanID, grant.AmountPaid, grant.GrantedAt, grant.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert vip grant: %w", err)
	}
	return nil
}

func snapshotKey(userID string) string {
	return "wallet:snapshot:" + userID
}
