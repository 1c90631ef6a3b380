package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/melodyhub/backend/internal/models"
)

func ledgerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"entry_id", "user_id", "kind", "amount", "description", "related_entry_id", "created_at"})
}

func TestLedgerService_AppendTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)
	now := time.Now().UTC()

	t.Run("appends every entry in order", func(t *testing.T) {
		rechargeID := "e1"
		entries := []models.LedgerEntry{
			{EntryID: "e1", UserID: "user1", Kind: models.EntryKindRecharge, Amount: 1000, Description: "wallet recharge 1000", CreatedAt: now},
			{EntryID: "e2", UserID: "user1", Kind: models.EntryKindReward, Amount: 150, Description: "recharge bonus 150", RelatedEntryID: &rechargeID, CreatedAt: now},
		}

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO ledger_entries`).
			WithArgs("e1", "user1", models.EntryKindRecharge, int64(1000), "wallet recharge 1000", nil, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT INTO ledger_entries`).
			WithArgs("e2", "user1", models.EntryKindReward, int64(150), "recharge bonus 150", "e1", now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)
		assert.NoError(t, service.AppendTx(tx, entries))
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)
	now := time.Now().UTC()

	t.Run("first page with more rows returns a cursor", func(t *testing.T) {
		rows := ledgerRows().
			AddRow("e3", "user1", models.EntryKindTip, int64(-100), "tip to bob", nil, now).
			AddRow("e2", "user1", models.EntryKindReward, int64(150), "recharge bonus 150", "e1", now.Add(-time.Minute)).
			AddRow("e1", "user1", models.EntryKindRecharge, int64(1000), "wallet recharge 1000", nil, now.Add(-time.Minute))

		mock.ExpectQuery(`FROM ledger_entries WHERE user_id = \$1 ORDER BY created_at DESC, entry_id DESC`).
			WithArgs("user1", 3).
			WillReturnRows(rows)

		page, err := service.List("user1", models.LedgerFilter{}, "", 2)
		assert.NoError(t, err)
		assert.Len(t, page.Entries, 2)
		assert.Equal(t, "e3", page.Entries[0].EntryID)
		assert.NotEmpty(t, page.NextCursor)

		// The cursor round-trips to the last returned entry.
		ts, id, err := decodeCursor(page.NextCursor)
		assert.NoError(t, err)
		assert.Equal(t, "e2", id)
		assert.WithinDuration(t, now.Add(-time.Minute), ts, time.Second)
	})

	t.Run("resumed page uses the keyset predicate", func(t *testing.T) {
		cursor := encodeCursor(now.Add(-time.Minute), "e2")

		mock.ExpectQuery(`AND \(created_at, entry_id\) < \(\$2, \$3\)`).
			WithArgs("user1", sqlmock.AnyArg(), "e2", 3).
			WillReturnRows(ledgerRows().
				AddRow("e1", "user1", models.EntryKindRecharge, int64(1000), "wallet recharge 1000", nil, now.Add(-time.Minute)))

		page, err := service.List("user1", models.LedgerFilter{}, cursor, 2)
		assert.NoError(t, err)
		assert.Len(t, page.Entries, 1)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("kind filter is applied", func(t *testing.T) {
		mock.ExpectQuery(`AND kind = \$2`).
			WithArgs("user1", models.EntryKindTip, 21).
			WillReturnRows(ledgerRows())

		page, err := service.List("user1", models.LedgerFilter{Kind: models.EntryKindTip}, "", 20)
		assert.NoError(t, err)
		assert.Empty(t, page.Entries)
	})

	t.Run("garbage cursor rejected", func(t *testing.T) {
		_, err := service.List("user1", models.LedgerFilter{}, "not-base64!!", 20)
		assert.Error(t, err)
	})
}

func TestLedgerService_Verify(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("balance matching ledger sum passes", func(t *testing.T) {
		mock.ExpectQuery(`SELECT a.balance, COALESCE\(SUM\(l.amount\), 0\)`).
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "sum"}).AddRow(1150, 1150))

		assert.NoError(t, service.Verify("user1"))
	})

	t.Run("divergence is reported, never repaired", func(t *testing.T) {
		mock.ExpectQuery(`SELECT a.balance, COALESCE\(SUM\(l.amount\), 0\)`).
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "sum"}).AddRow(1150, 1000))

		err := service.Verify("user1")
		te, ok := AsTxError(err)
		assert.True(t, ok)
		assert.Equal(t, CodeLedgerDivergence, te.Code)
	})
}

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
	cursor := encodeCursor(ts, "entry-42")

	got, id, err := decodeCursor(cursor)
	assert.NoError(t, err)
	assert.Equal(t, ts, got)
	assert.Equal(t, "entry-42", id)
}
