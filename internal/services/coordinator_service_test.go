package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/melodyhub/backend/internal/config"
	"github.com/melodyhub/backend/internal/models"
)

const (
	lockAccountQuery   = `FROM accounts WHERE user_id = \$1 FOR UPDATE`
	grantsQuery        = `SELECT grant_id, user_id, plan_id, amount_paid, granted_at, expires_at FROM vip_grants`
	insertLedgerQuery  = `INSERT INTO ledger_entries`
	updateBalanceQuery = `UPDATE accounts SET balance = \$1, version = version \+ 1`
	insertGrantQuery   = `INSERT INTO vip_grants`
	idempotencyLookup  = `SELECT snapshot FROM idempotency_keys`
	insertIdempotencyQ = `INSERT INTO idempotency_keys`
)

func newTestCoordinator(t *testing.T) (*CoordinatorService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	redisClient, _ := redismock.NewClientMock()
	cfg := config.LoadWalletConfig()
	cfg.ApplyBackoffBase = time.Millisecond

	ledger := NewLedgerService(db)
	accounts := NewAccountService(db, redisClient, ledger, cfg)
	coordinator := NewCoordinatorService(db, accounts, ledger, NewNotifier(redisClient), cfg)

	return coordinator, mock, func() { db.Close() }
}

func accountRow(userID string, balance int64, version int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"user_id", "balance", "version", "created_at", "updated_at"}).
		AddRow(userID, balance, version, now, now)
}

func emptyGrantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"grant_id", "user_id", "plan_id", "amount_paid", "granted_at", "expires_at"})
}

func TestCoordinatorService_ApplyRecharge(t *testing.T) {
	coordinator, mock, cleanup := newTestCoordinator(t)
	defer cleanup()

	t.Run("recharge with bonus writes two entries and credits both", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 0, 1))
		mock.ExpectQuery(grantsQuery).WithArgs("user1").
			WillReturnRows(emptyGrantRows())
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryKindRecharge, int64(1000), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryKindReward, int64(150), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(1150), sqlmock.AnyArg(), "user1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		snap, err := coordinator.Apply(context.Background(), "user1", Recharge{Amount: 1000, Bonus: 150}, "")
		assert.NoError(t, err)
		assert.Equal(t, int64(1150), snap.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("amount below minimum is rejected with no writes", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 0, 1))
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "user1", Recharge{Amount: 50}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAmountOutOfRange, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "ghost", Recharge{Amount: 1000}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAccountNotFound, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCoordinatorService_ApplyPurchase(t *testing.T) {
	coordinator, mock, cleanup := newTestCoordinator(t)
	defer cleanup()

	t.Run("purchase debits price and records grant", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 200, 4))
		mock.ExpectQuery(grantsQuery).WithArgs("user1").
			WillReturnRows(emptyGrantRows())
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryKindPurchase, int64(-99), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(101), sqlmock.AnyArg(), "user1", 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insertGrantQuery).
			WithArgs(sqlmock.AnyArg(), "user1", "monthly", int64(99), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		snap, err := coordinator.Apply(context.Background(), "user1", Purchase{PlanID: "monthly", Price: 99}, "")
		assert.NoError(t, err)
		assert.Equal(t, int64(101), snap.Balance)
		assert.True(t, snap.VipActive)
		assert.NotNil(t, snap.VipExpiresAt)
		assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 30), *snap.VipExpiresAt, time.Minute)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance rejects before any write", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 50, 2))
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "user1", Purchase{PlanID: "monthly", Price: 99}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInsufficientBalance, te.Code)
		assert.False(t, te.Retryable())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("price mismatch with catalog", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 5000, 2))
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "user1", Purchase{PlanID: "monthly", Price: 1}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAmountOutOfRange, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("free trial plan is not purchasable", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 5000, 2))
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "user1", Purchase{PlanID: "trial", Price: 0}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAmountOutOfRange, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCoordinatorService_ApplyTip(t *testing.T) {
	coordinator, mock, cleanup := newTestCoordinator(t)
	defer cleanup()

	t.Run("tip moves net to recipient and fee to platform", func(t *testing.T) {
		// 100 at 1000 bps: 10 fee, 90 net. Accounts lock in sorted ID
		// order: alice, bob, platform-fees.
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("alice").
			WillReturnRows(accountRow("alice", 500, 1))
		mock.ExpectQuery(lockAccountQuery).WithArgs("bob").
			WillReturnRows(accountRow("bob", 0, 1))
		mock.ExpectQuery(lockAccountQuery).WithArgs("platform-fees").
			WillReturnRows(accountRow("platform-fees", 0, 1))
		mock.ExpectQuery(grantsQuery).WithArgs("alice").
			WillReturnRows(emptyGrantRows())
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "alice", models.EntryKindTip, int64(-100), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "bob", models.EntryKindTip, int64(90), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "platform-fees", models.EntryKindTip, int64(10), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(400), sqlmock.AnyArg(), "alice", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(90), sqlmock.AnyArg(), "bob", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(10), sqlmock.AnyArg(), "platform-fees", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		snap, err := coordinator.Apply(context.Background(), "alice", Tip{Amount: 100, RecipientID: "bob"}, "")
		assert.NoError(t, err)
		assert.Equal(t, int64(400), snap.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tiny tip with zero fee skips the platform account", func(t *testing.T) {
		// 1 at 1000 bps rounds down to zero fee; only two accounts lock.
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("alice").
			WillReturnRows(accountRow("alice", 100, 1))
		mock.ExpectQuery(lockAccountQuery).WithArgs("bob").
			WillReturnRows(accountRow("bob", 0, 1))
		mock.ExpectQuery(grantsQuery).WithArgs("alice").
			WillReturnRows(emptyGrantRows())
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "alice", models.EntryKindTip, int64(-1), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "bob", models.EntryKindTip, int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(99), sqlmock.AnyArg(), "alice", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(1), sqlmock.AnyArg(), "bob", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		snap, err := coordinator.Apply(context.Background(), "alice", Tip{Amount: 1, RecipientID: "bob"}, "")
		assert.NoError(t, err)
		assert.Equal(t, int64(99), snap.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent tips to one recipient all land", func(t *testing.T) {
		coordinator, mock, cleanup := newTestCoordinator(t)
		defer cleanup()
		mock.MatchExpectationsInOrder(false)

		// 100 goroutines each tip 1 (zero fee) to bob. Each sender gets its
		// own lock row; bob's lock rows hand out balance k at version k+1,
		// and the matching update must write k+1 against that exact version,
		// so every interleaving has to keep balance = sum of credits.
		// Contention on real row locks is covered by integration tests
		// against postgres.
		const tippers = 100
		for k := 0; k < tippers; k++ {
			sender := fmt.Sprintf("fan-%02d", k)
			mock.ExpectBegin()
			mock.ExpectQuery(lockAccountQuery).WithArgs(sender).
				WillReturnRows(accountRow(sender, 1, 1))
			mock.ExpectQuery(lockAccountQuery).WithArgs("bob").
				WillReturnRows(accountRow("bob", int64(k), k+1))
			mock.ExpectQuery(grantsQuery).WithArgs(sender).
				WillReturnRows(emptyGrantRows())
			mock.ExpectExec(insertLedgerQuery).
				WithArgs(sqlmock.AnyArg(), sender, models.EntryKindTip, int64(-1), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec(insertLedgerQuery).
				WithArgs(sqlmock.AnyArg(), "bob", models.EntryKindTip, int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec(updateBalanceQuery).
				WithArgs(int64(k+1), sqlmock.AnyArg(), "bob", k+1).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(updateBalanceQuery).
				WithArgs(int64(0), sqlmock.AnyArg(), sender, 1).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()
		}

		errs := make(chan error, tippers)
		var wg sync.WaitGroup
		for k := 0; k < tippers; k++ {
			wg.Add(1)
			go func(sender string) {
				defer wg.Done()
				_, err := coordinator.Apply(context.Background(), sender, Tip{Amount: 1, RecipientID: "bob"}, "")
				errs <- err
			}(fmt.Sprintf("fan-%02d", k))
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self tip rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "alice", Tip{Amount: 100, RecipientID: "alice"}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInvalidRecipient, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tip to the fee account rejected with no writes", func(t *testing.T) {
		// The fee account already participates as the fee sink; letting it
		// double as recipient would collapse the per-account deltas while
		// all three entries still append.
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "alice", Tip{Amount: 100, RecipientID: "platform-fees"}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInvalidRecipient, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown recipient", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("alice").
			WillReturnRows(accountRow("alice", 500, 1))
		mock.ExpectQuery(lockAccountQuery).WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "alice", Tip{Amount: 100, RecipientID: "ghost"}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInvalidRecipient, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tip exceeding balance rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("alice").
			WillReturnRows(accountRow("alice", 50, 1))
		mock.ExpectQuery(lockAccountQuery).WithArgs("bob").
			WillReturnRows(accountRow("bob", 0, 1))
		mock.ExpectQuery(lockAccountQuery).WithArgs("platform-fees").
			WillReturnRows(accountRow("platform-fees", 0, 1))
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "alice", Tip{Amount: 100, RecipientID: "bob"}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInsufficientBalance, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCoordinatorService_Idempotency(t *testing.T) {
	coordinator, mock, cleanup := newTestCoordinator(t)
	defer cleanup()

	t.Run("replay returns the stored snapshot without touching accounts", func(t *testing.T) {
		stored, _ := json.Marshal(models.AccountSnapshot{UserID: "user1", Balance: 1150, VipActive: true})
		mock.ExpectQuery(idempotencyLookup).WithArgs("user1", "key-1").
			WillReturnRows(sqlmock.NewRows([]string{"snapshot"}).AddRow(stored))

		snap, err := coordinator.Apply(context.Background(), "user1", Recharge{Amount: 1000, Bonus: 150}, "key-1")
		assert.NoError(t, err)
		assert.Equal(t, int64(1150), snap.Balance)
		assert.True(t, snap.VipActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("first use stores the key in the same transaction", func(t *testing.T) {
		mock.ExpectQuery(idempotencyLookup).WithArgs("user1", "key-2").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 0, 1))
		mock.ExpectQuery(grantsQuery).WithArgs("user1").
			WillReturnRows(emptyGrantRows())
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryKindRecharge, int64(500), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(500), sqlmock.AnyArg(), "user1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insertIdempotencyQ).
			WithArgs("user1", "key-2", IntentRecharge, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		snap, err := coordinator.Apply(context.Background(), "user1", Recharge{Amount: 500}, "key-2")
		assert.NoError(t, err)
		assert.Equal(t, int64(500), snap.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCoordinatorService_ConflictRetry(t *testing.T) {
	coordinator, mock, cleanup := newTestCoordinator(t)
	defer cleanup()

	t.Run("version conflict retries and succeeds", func(t *testing.T) {
		// First attempt loses the optimistic version check.
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 100, 1))
		mock.ExpectQuery(grantsQuery).WithArgs("user1").
			WillReturnRows(emptyGrantRows())
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryKindRecharge, int64(500), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(600), sqlmock.AnyArg(), "user1", 1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		// Second attempt sees the winner's committed state and succeeds.
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 150, 2))
		mock.ExpectQuery(grantsQuery).WithArgs("user1").
			WillReturnRows(emptyGrantRows())
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryKindRecharge, int64(500), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(650), sqlmock.AnyArg(), "user1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		snap, err := coordinator.Apply(context.Background(), "user1", Recharge{Amount: 500}, "")
		assert.NoError(t, err)
		assert.Equal(t, int64(650), snap.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("persistent conflict surfaces as retryable error", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			mock.ExpectBegin()
			mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
				WillReturnRows(accountRow("user1", 100, 1))
			mock.ExpectQuery(grantsQuery).WithArgs("user1").
				WillReturnRows(emptyGrantRows())
			mock.ExpectExec(insertLedgerQuery).
				WithArgs(sqlmock.AnyArg(), "user1", models.EntryKindRecharge, int64(500), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec(updateBalanceQuery).
				WithArgs(int64(600), sqlmock.AnyArg(), "user1", 1).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()
		}

		_, err := coordinator.Apply(context.Background(), "user1", Recharge{Amount: 500}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeConcurrencyConflict, te.Code)
		assert.True(t, te.Retryable())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCoordinatorService_ApplyAdjustmentAndRefund(t *testing.T) {
	coordinator, mock, cleanup := newTestCoordinator(t)
	defer cleanup()

	t.Run("negative adjustment cannot take balance below zero", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 30, 1))
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "user1", AdminAdjustment{Amount: -50, Reason: "chargeback"}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeInsufficientBalance, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refund reverses a purchase once", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 10, 5))
		mock.ExpectQuery(`FROM ledger_entries WHERE entry_id = \$1 AND user_id = \$2`).
			WithArgs("entry-9", "user1").
			WillReturnRows(sqlmock.NewRows([]string{"entry_id", "user_id", "kind", "amount", "description", "related_entry_id", "created_at"}).
				AddRow("entry-9", "user1", models.EntryKindPurchase, int64(-99), "vip purchase: VIP Monthly", nil, now))
		mock.ExpectQuery(`SELECT COUNT\(1\) FROM ledger_entries WHERE related_entry_id = \$1`).
			WithArgs("entry-9", models.EntryKindRefund).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(grantsQuery).WithArgs("user1").
			WillReturnRows(emptyGrantRows())
		mock.ExpectExec(insertLedgerQuery).
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryKindRefund, int64(99), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(updateBalanceQuery).
			WithArgs(int64(109), sqlmock.AnyArg(), "user1", 5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		snap, err := coordinator.Apply(context.Background(), "user1", Refund{EntryID: "entry-9", Reason: "support ticket 1042"}, "")
		assert.NoError(t, err)
		assert.Equal(t, int64(109), snap.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("double refund rejected", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).WithArgs("user1").
			WillReturnRows(accountRow("user1", 10, 5))
		mock.ExpectQuery(`FROM ledger_entries WHERE entry_id = \$1 AND user_id = \$2`).
			WithArgs("entry-9", "user1").
			WillReturnRows(sqlmock.NewRows([]string{"entry_id", "user_id", "kind", "amount", "description", "related_entry_id", "created_at"}).
				AddRow("entry-9", "user1", models.EntryKindPurchase, int64(-99), "vip purchase: VIP Monthly", nil, now))
		mock.ExpectQuery(`SELECT COUNT\(1\) FROM ledger_entries WHERE related_entry_id = \$1`).
			WithArgs("entry-9", models.EntryKindRefund).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		_, err := coordinator.Apply(context.Background(), "user1", Refund{EntryID: "entry-9", Reason: "again"}, "")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeAmountOutOfRange, te.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTipFee(t *testing.T) {
	assert.Equal(t, int64(10), tipFee(100, 1000))
	assert.Equal(t, int64(0), tipFee(1, 1000))
	assert.Equal(t, int64(0), tipFee(9, 1000))
	assert.Equal(t, int64(100), tipFee(1000, 1000))
}
