package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/melodyhub/backend/internal/models"
	"github.com/melodyhub/backend/internal/services"
)

// AdminHandler exposes the operator surface: the recharge and withdraw
// review queues, manual adjustments, refunds and ledger inspection.
type AdminHandler struct {
	coordinator *services.CoordinatorService
	ledger      *services.LedgerService
	recharges   *services.RechargeRequestService
	withdraws   *services.WithdrawRequestService
	validator   *services.ValidationHelper
}

func NewAdminHandler(coordinator *services.CoordinatorService, ledger *services.LedgerService, recharges *services.RechargeRequestService, withdraws *services.WithdrawRequestService) *AdminHandler {
	return &AdminHandler{
		coordinator: coordinator,
		ledger:      ledger,
		recharges:   recharges,
		withdraws:   withdraws,
		validator:   services.NewValidationHelper(),
	}
}

// ListRechargeRequests returns the review queue
// @Summary List recharge requests
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter (default pending)"
// @Param limit query int false "Page size"
// @Success 200 {object} object{requests=[]models.RechargeRequest}
// @Router /admin/recharge-requests [get]
func (h *AdminHandler) ListRechargeRequests(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.RechargeStatusPending
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	reqs, err := h.recharges.ListByStatus(status, limit)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs, "count": len(reqs)})
}

// ProcessRechargeRequest approves or rejects a pending request
// @Summary Process recharge request
// @Description Approve (credits the wallet atomically) or reject a pending topup
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body object{approve=bool,notes=string} true "Decision"
// @Success 200 {object} models.RechargeRequest
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/recharge-requests/{id} [put]
func (h *AdminHandler) ProcessRechargeRequest(w http.ResponseWriter, r *http.Request) {
	adminID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Approve bool   `json:"approve"`
		Notes   string `json:"notes" validate:"max=500"`
	}
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	processed, err := h.recharges.Process(r.Context(), chi.URLParam(r, "id"), adminID, req.Approve, req.Notes)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, processed)
}

// ListWithdrawRequests returns the payout review queue
// @Summary List withdraw requests
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter (default pending)"
// @Param limit query int false "Page size"
// @Success 200 {object} object{requests=[]models.WithdrawRequest}
// @Router /admin/withdraw-requests [get]
func (h *AdminHandler) ListWithdrawRequests(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.WithdrawStatusPending
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	reqs, err := h.withdraws.ListByStatus(status, limit)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs, "count": len(reqs)})
}

// ProcessWithdrawRequest approves or rejects a pending payout
// @Summary Process withdraw request
// @Description Approve (debits the wallet atomically) or reject a pending payout
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body object{approve=bool,notes=string} true "Decision"
// @Success 200 {object} models.WithdrawRequest
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Router /admin/withdraw-requests/{id} [put]
func (h *AdminHandler) ProcessWithdrawRequest(w http.ResponseWriter, r *http.Request) {
	adminID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Approve bool   `json:"approve"`
		Notes   string `json:"notes" validate:"max=500"`
	}
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	processed, err := h.withdraws.Process(r.Context(), chi.URLParam(r, "id"), adminID, req.Approve, req.Notes)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, processed)
}

// Adjust applies a signed operator correction
// @Summary Admin balance adjustment
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client idempotency key"
// @Param request body object{user_id=string,amount=int64,reason=string} true "Adjustment"
// @Success 200 {object} models.AccountSnapshot
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/adjustments [post]
func (h *AdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id" validate:"required"`
		Amount int64  `json:"amount" validate:"required"`
		Reason string `json:"reason" validate:"required,max=200"`
	}
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	snap, err := h.coordinator.Apply(r.Context(), req.UserID,
		services.AdminAdjustment{Amount: req.Amount, Reason: req.Reason},
		r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Refund reverses a purchase entry
// @Summary Refund a purchase
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client idempotency key"
// @Param request body object{user_id=string,entry_id=string,reason=string} true "Refund"
// @Success 200 {object} models.AccountSnapshot
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/refunds [post]
func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id" validate:"required"`
		EntryID string `json:"entry_id" validate:"required,uuid"`
		Reason  string `json:"reason" validate:"required,max=200"`
	}
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	snap, err := h.coordinator.Apply(r.Context(), req.UserID,
		services.Refund{EntryID: req.EntryID, Reason: req.Reason},
		r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListLedger inspects any user's ledger
// @Summary List a user's ledger entries
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param user_id query string true "User ID"
// @Param kind query string false "Filter by entry kind"
// @Param cursor query string false "Resume cursor"
// @Param limit query int false "Page size"
// @Success 200 {object} models.LedgerPage
// @Router /admin/ledger [get]
func (h *AdminHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		services.SendErrorResponse(w, "user_id is required", http.StatusBadRequest, nil)
		return
	}

	filter := models.LedgerFilter{Kind: r.URL.Query().Get("kind")}
	if err := h.validator.ValidateStruct(&filter); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.ledger.List(userID, filter, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		services.SendErrorResponse(w, "Failed to list ledger entries", http.StatusBadRequest, nil)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// VerifyLedger checks ledger/balance integrity for a user
// @Summary Verify ledger integrity
// @Description Recompute the ledger sum and compare to the stored balance
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param user_id query string true "User ID"
// @Success 200 {object} object{status=string}
// @Failure 500 {object} services.ErrorResponse
// @Router /admin/ledger/verify [get]
func (h *AdminHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		services.SendErrorResponse(w, "user_id is required", http.StatusBadRequest, nil)
		return
	}

	if err := h.ledger.Verify(userID); err != nil {
		if te, ok := services.AsTxError(err); ok && te.Code == services.CodeLedgerDivergence {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "divergent", "error": te.Message})
			return
		}
		services.SendErrorResponse(w, "Verification failed", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "consistent"})
}
