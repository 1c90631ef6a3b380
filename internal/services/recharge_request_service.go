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

// RechargeRequestService handles operator-reviewed topups. A user
// submits proof of an external payment; an approved request is credited
// through the coordinator with the request reference as idempotency key,
// so re-processing can never double-credit.
type RechargeRequestService struct {
	db          *sql.DB
	coordinator *CoordinatorService
	cfg         *config.WalletConfig
}

func NewRechargeRequestService(db *sql.DB, coordinator *CoordinatorService, cfg *config.WalletConfig) *RechargeRequestService {
	return &RechargeRequestService{db: db, coordinator: coordinator, cfg: cfg}
}

// Create records a pending recharge request. The bonus is fixed at
// submission time from the configured tiers.
func (s *RechargeRequestService) Create(ctx context.Context, userID string, amount int64, paymentMethod, screenshotURL string) (*models.RechargeRequest, error) {
	if amount < s.cfg.MinRecharge || amount > s.cfg.MaxRecharge {
		return nil, txErr(CodeAmountOutOfRange, "recharge amount %d outside [%d, %d]", amount, s.cfg.MinRecharge, s.cfg.MaxRecharge)
	}

	req := &models.RechargeRequest{
		ID:            uuid.NewString(),
		ReferenceID:   newRechargeReference(),
		UserID:        userID,
		Amount:        amount,
		Bonus:         s.cfg.BonusFor(amount),
		PaymentMethod: paymentMethod,
		ScreenshotURL: screenshotURL,
		Status:        models.RechargeStatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := s.db.Exec(`
		INSERT INTO recharge_requests (id, reference_id, user_id, amount, bonus, payment_method, payment_screenshot_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, req.ReferenceID, req.UserID, req.Amount, req.Bonus, req.PaymentMethod, req.ScreenshotURL, req.Status, req.CreatedAt)
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to create recharge request", err)
	}

	log.Printf("[RECHARGE] Request %s created for user %s: amount=%d bonus=%d via %s",
		req.ReferenceID, userID, req.Amount, req.Bonus, paymentMethod)
	return req, nil
}

// Get loads a single request.
func (s *RechargeRequestService) Get(requestID string) (*models.RechargeRequest, error) {
	req, err := s.scanOne(s.db.QueryRow(selectRechargeRequest+` WHERE id = $1`, requestID))
	if err == sql.ErrNoRows {
		return nil, txErr(CodeAccountNotFound, "recharge request %s not found", requestID)
	}
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to load recharge request", err)
	}
	return req, nil
}

// ListByUser returns the caller's requests, newest first.
func (s *RechargeRequestService) ListByUser(userID string, limit int) ([]models.RechargeRequest, error) {
	return s.list(selectRechargeRequest+` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, clampLimit(limit))
}

// ListByStatus returns requests in a given state for the review queue.
func (s *RechargeRequestService) ListByStatus(status string, limit int) ([]models.RechargeRequest, error) {
	return s.list(selectRechargeRequest+` WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, status, clampLimit(limit))
}

// Process resolves a pending request. Approval credits the wallet first
// (idempotent on the request reference), then marks the request; if the
// status write is lost, re-processing replays the credit and converges.
func (s *RechargeRequestService) Process(ctx context.Context, requestID, adminID string, approve bool, notes string) (*models.RechargeRequest, error) {
	req, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RechargeStatusPending {
		return nil, txErr(CodeAmountOutOfRange, "request %s already %s", requestID, req.Status)
	}

	status := models.RechargeStatusRejected
	if approve {
		if _, err := s.coordinator.Apply(ctx, req.UserID, Recharge{Amount: req.Amount, Bonus: req.Bonus}, req.ReferenceID); err != nil {
			return nil, err
		}
		status = models.RechargeStatusApproved
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE recharge_requests
		SET status = $1, notes = $2, processed_by = $3, processed_at = $4
		WHERE id = $5 AND status = $6`,
		status, notes, adminID, now, requestID, models.RechargeStatusPending)
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to update recharge request", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Another reviewer resolved it concurrently. The credit, if any,
		// was idempotent; report the committed state.
		return s.Get(requestID)
	}

	log.Printf("[RECHARGE] Request %s %s by %s", req.ReferenceID, status, adminID)

	req.Status = status
	req.Notes = notes
	req.ProcessedBy = &adminID
	req.ProcessedAt = &now
	return req, nil
}

const selectRechargeRequest = `
	SELECT id, reference_id, user_id, amount, bonus, payment_method, payment_screenshot_url, status, notes, processed_by, processed_at, created_at
	FROM recharge_requests`

func (s *RechargeRequestService) list(query string, args ...any) ([]models.RechargeRequest, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, txErrWrap(CodeStoreUnavailable, "failed to list recharge requests", err)
	}
	defer rows.Close()

	var reqs []models.RechargeRequest
	for rows.Next() {
		req, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *RechargeRequestService) scanOne(row rowScanner) (*models.RechargeRequest, error) {
	var req models.RechargeRequest
	var notes sql.NullString
	err := row.Scan(&req.ID, &req.ReferenceID, &req.UserID, &req.Amount, &req.Bonus,
		&req.PaymentMethod, &req.ScreenshotURL, &req.Status, &notes, &req.ProcessedBy, &req.ProcessedAt, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	req.Notes = notes.String
	return &req, nil
}

func newRechargeReference() string {
	return fmt.Sprintf("RECHARGE_%s_%s", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
