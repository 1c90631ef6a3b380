package services

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/melodyhub/backend/internal/models"
)

// LedgerService persists the append-only ledger. Entries are only ever
// inserted, and only inside a coordinator transaction; no update or
// delete path exists.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// AppendTx inserts the produced entries as part of the caller's
// transaction.
func (s *LedgerService) AppendTx(tx *sql.Tx, entries []models.LedgerEntry) error {
	for i := range entries {
		e := &entries[i]
		_, err := tx.Exec(`
			INSERT INTO ledger_entries (entry_id, user_id, kind, amount, description, related_entry_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.EntryID, e.UserID, e.Kind, e.Amount, e.Description, e.RelatedEntryID, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("append ledger entry %s: %w", e.EntryID, err)
		}
	}
	return nil
}

// SumTx recomputes the balance from the ledger inside a transaction.
func (s *LedgerService) SumTx(tx *sql.Tx, userID string) (int64, error) {
	var sum int64
	err := tx.QueryRow(`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1`, userID).Scan(&sum)
	return sum, err
}

// GetEntryTx loads a single entry for the given user.
func (s *LedgerService) GetEntryTx(tx *sql.Tx, userID, entryID string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := tx.QueryRow(`
		SELECT entry_id, user_id, kind, amount, description, related_entry_id, created_at
		FROM ledger_entries WHERE entry_id = $1 AND user_id = $2`, entryID, userID).
		Scan(&e.EntryID, &e.UserID, &e.Kind, &e.Amount, &e.Description, &e.RelatedEntryID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// HasRefundTx reports whether a refund already references the entry.
func (s *LedgerService) HasRefundTx(tx *sql.Tx, entryID string) (bool, error) {
	var n int
	err := tx.QueryRow(`SELECT COUNT(1) FROM ledger_entries WHERE related_entry_id = $1 AND kind = $2`,
		entryID, models.EntryKindRefund).Scan(&n)
	return n > 0, err
}

// List returns one page of a user's entries, newest first. The cursor is
// opaque to callers and restartable: the listing resumes strictly after
// the last entry of the previous page.
func (s *LedgerService) List(userID string, filter models.LedgerFilter, cursor string, limit int) (*models.LedgerPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT entry_id, user_id, kind, amount, description, related_entry_id, created_at
		FROM ledger_entries WHERE user_id = $1`
	args := []any{userID}
	argIndex := 2

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIndex)
		args = append(args, filter.Kind)
		argIndex++
	}

	if cursor != "" {
		ts, id, err := decodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query += fmt.Sprintf(" AND (created_at, entry_id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, ts, id)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, entry_id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.EntryID, &e.UserID, &e.Kind, &e.Amount, &e.Description, &e.RelatedEntryID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := &models.LedgerPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.EntryID)
	}
	return page, nil
}

// Verify checks the ledger sum against the stored balance. Divergence is
// a fatal integrity error to be reconciled by an operator, never patched
// silently.
func (s *LedgerService) Verify(userID string) error {
	var balance, sum int64
	err := s.db.QueryRow(`
		SELECT a.balance, COALESCE(SUM(l.amount), 0)
		FROM accounts a LEFT JOIN ledger_entries l ON l.user_id = a.user_id
		WHERE a.user_id = $1
		GROUP BY a.balance`, userID).Scan(&balance, &sum)
	if err != nil {
		return err
	}
	if balance != sum {
		log.Printf("[LEDGER] Integrity violation for user %s: balance=%d ledger sum=%d", userID, balance, sum)
		return txErr(CodeLedgerDivergence, "account %s balance %d diverges from ledger sum %d", userID, balance, sum)
	}
	return nil
}

func encodeCursor(ts time.Time, entryID string) string {
	raw := ts.UTC().Format(time.RFC3339Nano) + "|" + entryID
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}
