package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/melodyhub/backend/internal/config"
	"github.com/melodyhub/backend/internal/models"
)

// WithdrawRequestService handles operator-reviewed payouts. A user asks
// to cash out to an external account; approval debits the wallet through
// the coordinator with the request reference as idempotency key, then
// the operator pays out manually over the named rail.
type WithdrawRequestService struct {
	db          *sql.DB
	coordinator *CoordinatorService
	cfg         *config.WalletConfig
}

func NewWithdrawRequestService(db *sql.DB, coordinator *CoordinatorService, cfg *config.WalletConfig) *WithdrawRequestService {
	return &WithdrawRequestService{db: db, coordinator: coordinator, cfg: cfg}
}

// Create records a pending withdraw request. The balance check here is
// advisory; the authoritative guard runs inside the coordinator when the
// request is approved.
func (s *WithdrawRequestService) Create(ctx context.Context, userID string, amount int64, paymentMethod, accountInfo string) (*models.WithdrawRequest, error) {
	if amount < s.cfg.MinWithdraw || amount > s.cfg.MaxWithdraw {
		return nil, txErr(CodeAmountOutOfRange, "withdraw amount %d outside [%d, %d]", amount, s.cfg.MinWithdraw, s.cfg.MaxWithdraw)
	}

	var balance int64
	err := s.db.QueryRow(`SELECT balance FROM accounts WHERE user_id = $1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, txErr(CodeAccountNotFound, "account %s not found", userID)
	}
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to load balance", err)
	}
	if balance < amount {
		return nil, txErr(CodeInsufficientBalance, "balance %d is insufficient", balance)
	}

	req := &models.WithdrawRequest{
		ID:            uuid.NewString(),
		ReferenceID:   newWithdrawReference(),
		UserID:        userID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		AccountInfo:   accountInfo,
		Status:        models.WithdrawStatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	_, err = s.db.Exec(`
		INSERT INTO withdraw_requests (id, reference_id, user_id, amount, payment_method, account_info, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.ReferenceID, req.UserID, req.Amount, req.PaymentMethod, req.AccountInfo, req.Status, req.CreatedAt)
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to create withdraw request", err)
	}

	log.Printf("[WITHDRAW] Request %s created for user %s: amount=%d via %s",
		req.ReferenceID, userID, req.Amount, paymentMethod)
	return req, nil
}

// Get loads a single request.
func (s *WithdrawRequestService) Get(requestID string) (*models.WithdrawRequest, error) {
	req, err := s.scanOne(s.db.QueryRow(selectWithdrawRequest+` WHERE id = $1`, requestID))
	if err == sql.ErrNoRows {
		return nil, txErr(CodeAccountNotFound, "withdraw request %s not found", requestID)
	}
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to load withdraw request", err)
	}
	return req, nil
}

// ListByUser returns the caller's requests, newest first.
func (s *WithdrawRequestService) ListByUser(userID string, limit int) ([]models.WithdrawRequest, error) {
	return s.list(selectWithdrawRequest+` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, clampLimit(limit))
}

// ListByStatus returns requests in a given state for the review queue.
func (s *WithdrawRequestService) ListByStatus(status string, limit int) ([]models.WithdrawRequest, error) {
	return s.list(selectWithdrawRequest+` WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, status, clampLimit(limit))
}

// Process resolves a pending request. Approval debits the wallet first
// (idempotent on the request reference), then marks the request; if the
// status write is lost, re-processing replays the debit and converges.
func (s *WithdrawRequestService) Process(ctx context.Context, requestID, adminID string, approve bool, notes string) (*models.WithdrawRequest, error) {
	req, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.WithdrawStatusPending {
		return nil, txErr(CodeAmountOutOfRange, "request %s already %s", requestID, req.Status)
	}

	status := models.WithdrawStatusRejected
	if approve {
		if _, err := s.coordinator.Apply(ctx, req.UserID, Withdraw{Amount: req.Amount}, req.ReferenceID); err != nil {
			return nil, err
		}
		status = models.WithdrawStatusApproved
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE withdraw_requests
		SET status = $1, notes = $2, processed_by = $3, processed_at = $4
		WHERE id = $5 AND status = $6`,
		status, notes, adminID, now, requestID, models.WithdrawStatusPending)
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to update withdraw request", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Another reviewer resolved it concurrently. The debit, if any,
		// was idempotent; report the committed state.
		return s.Get(requestID)
	}

	log.Printf("[WITHDRAW] Request %s %s by %s", req.ReferenceID, status, adminID)

	req.Status = status
	req.Notes = notes
	req.ProcessedBy = &adminID
	req.ProcessedAt = &now
	return req, nil
}

const selectWithdrawRequest = `
	SELECT id, reference_id, user_id, amount, payment_method, account_info, status, notes, processed_by, processed_at, created_at
	FROM withdraw_requests`

func (s *WithdrawRequestService) list(query string, args ...any) ([]models.WithdrawRequest, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to list withdraw requests", err)
	}
	defer rows.Close()

	var reqs []models.WithdrawRequest
	for rows.Next() {
		req, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

func (s *WithdrawRequestService) scanOne(row rowScanner) (*models.WithdrawRequest, error) {
	var req models.WithdrawRequest
	var notes sql.NullString
	err := row.Scan(&req.ID, &req.ReferenceID, &req.UserID, &req.Amount,
		&req.PaymentMethod, &req.AccountInfo, &req.Status, &notes, &req.ProcessedBy, &req.ProcessedAt, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	req.Notes = notes.String
	return &req, nil
}

func newWithdrawReference() string {
	return fmt.Sprintf("WITHDRAW_%s_%s", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])
}
