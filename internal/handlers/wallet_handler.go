package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/melodyhub/backend/internal/config"
	"github.com/melodyhub/backend/internal/models"
	"github.com/melodyhub/backend/internal/services"
)

// WalletHandler exposes the user-facing wallet endpoints. All intents
// reach storage through the coordinator; the handler only decodes,
// validates shape, and maps TxError codes onto HTTP statuses.
type WalletHandler struct {
	accounts    *services.AccountService
	coordinator *services.CoordinatorService
	ledger      *services.LedgerService
	recharges   *services.RechargeRequestService
	withdraws   *services.WithdrawRequestService
	paymentInfo *services.PaymentInfoService
	cfg         *config.WalletConfig
	validator   *services.ValidationHelper
}

func NewWalletHandler(
	accounts *services.AccountService,
	coordinator *services.CoordinatorService,
	ledger *services.LedgerService,
	recharges *services.RechargeRequestService,
	withdraws *services.WithdrawRequestService,
	paymentInfo *services.PaymentInfoService,
	cfg *config.WalletConfig,
) *WalletHandler {
	return &WalletHandler{
		accounts:    accounts,
		coordinator: coordinator,
		ledger:      ledger,
		recharges:   recharges,
		withdraws:   withdraws,
		paymentInfo: paymentInfo,
		cfg:         cfg,
		validator:   services.NewValidationHelper(),
	}
}

// Register provisions the wallet account for the authenticated user
// @Summary Create wallet account
// @Description Create the wallet account for a newly registered user (signup bonus + trial VIP)
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.AccountSnapshot
// @Failure 401 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *WalletHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	snap, err := h.accounts.CreateAccount(r.Context(), userID)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// GetBalance returns the caller's account snapshot
// @Summary Account snapshot
// @Description Current balance and VIP entitlement for the authenticated user
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.AccountSnapshot
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	snap, err := h.accounts.Get(r.Context(), userID)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListLedger returns the caller's ledger entries
// @Summary List ledger entries
// @Description Cursor-paginated ledger entries for the authenticated user, newest first
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param kind query string false "Filter by entry kind"
// @Param cursor query string false "Resume cursor from a previous page"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} models.LedgerPage
// @Failure 400 {object} services.ErrorResponse
// @Router /ledger [get]
func (h *WalletHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	filter := models.LedgerFilter{Kind: r.URL.Query().Get("kind")}
	if err := h.validator.ValidateStruct(&filter); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	page, err := h.ledger.List(userID, filter, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		log.Printf("[WALLET] ListLedger failed for user %s: %v", userID, err)
		services.SendErrorResponse(w, "Failed to list ledger entries", http.StatusBadRequest, nil)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CreateRechargeRequest submits a pending topup for review
// @Summary Submit recharge request
// @Description Record an external payment awaiting operator approval
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64,payment_method=string,payment_screenshot_url=string} true "Recharge request"
// @Success 201 {object} models.RechargeRequest
// @Failure 400 {object} services.ErrorResponse
// @Router /wallet/recharge-requests [post]
func (h *WalletHandler) CreateRechargeRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount        int64  `json:"amount" validate:"required,gt=0"`
		PaymentMethod string `json:"payment_method" validate:"required,oneof=kpay kbz_banking"`
		ScreenshotURL string `json:"payment_screenshot_url" validate:"required,url"`
	}
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	created, err := h.recharges.Create(r.Context(), userID, req.Amount, req.PaymentMethod, req.ScreenshotURL)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListRechargeRequests returns the caller's topup history
// @Summary List own recharge requests
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Success 200 {object} object{requests=[]models.RechargeRequest}
// @Router /wallet/recharge-requests [get]
func (h *WalletHandler) ListRechargeRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	reqs, err := h.recharges.ListByUser(userID, limit)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs, "count": len(reqs)})
}

// CreateWithdrawRequest submits a pending payout for review
// @Summary Submit withdraw request
// @Description Request a payout to an external account, pending operator approval
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64,payment_method=string,account_info=string} true "Withdraw request"
// @Success 201 {object} models.WithdrawRequest
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Router /wallet/withdraw-requests [post]
func (h *WalletHandler) CreateWithdrawRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount        int64  `json:"amount" validate:"required,gt=0"`
		PaymentMethod string `json:"payment_method" validate:"required,oneof=kpay kbz_banking"`
		AccountInfo   string `json:"account_info" validate:"required,max=200"`
	}
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	created, err := h.withdraws.Create(r.Context(), userID, req.Amount, req.PaymentMethod, req.AccountInfo)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListWithdrawRequests returns the caller's payout history
// @Summary List own withdraw requests
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Success 200 {object} object{requests=[]models.WithdrawRequest}
// @Router /wallet/withdraw-requests [get]
func (h *WalletHandler) ListWithdrawRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	reqs, err := h.withdraws.ListByUser(userID, limit)
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs, "count": len(reqs)})
}

// Tip transfers funds to another user
// @Summary Send a tip
// @Description Tip another user; the platform fee is deducted from the recipient credit
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client idempotency key"
// @Param request body object{recipient_id=string,amount=int64,message=string} true "Tip"
// @Success 200 {object} models.AccountSnapshot
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Router /wallet/tip [post]
func (h *WalletHandler) Tip(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		RecipientID string `json:"recipient_id" validate:"required"`
		Amount      int64  `json:"amount" validate:"required,gt=0"`
		Message     string `json:"message" validate:"max=200"`
	}
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	snap, err := h.coordinator.Apply(r.Context(), userID,
		services.Tip{Amount: req.Amount, RecipientID: req.RecipientID, Message: req.Message},
		r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PurchaseVip buys a VIP plan from the wallet balance
// @Summary Purchase VIP plan
// @Description Debit the wallet and extend the VIP entitlement atomically
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client idempotency key"
// @Param request body object{plan_id=string,price=int64} true "Plan purchase"
// @Success 200 {object} models.AccountSnapshot
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Router /wallet/vip/purchase [post]
func (h *WalletHandler) PurchaseVip(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		PlanID string `json:"plan_id" validate:"required"`
		Price  int64  `json:"price" validate:"required,gt=0"`
	}
	if !decodeBody(w, r, &req, h.validator) {
		return
	}

	snap, err := h.coordinator.Apply(r.Context(), userID,
		services.Purchase{PlanID: req.PlanID, Price: req.Price},
		r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeTxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListPlans returns the purchasable VIP catalog
// @Summary VIP plan catalog
// @Tags wallet
// @Produce json
// @Success 200 {object} object{plans=[]models.VipPlan}
// @Router /wallet/vip/plans [get]
func (h *WalletHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": h.cfg.Plans})
}

// GetPaymentInfo returns the platform collection accounts
// @Summary Payment info
// @Description Platform KPay/KBZ collection accounts with QR image
// @Tags wallet
// @Produce json
// @Success 200 {object} services.PaymentInfo
// @Router /wallet/payment-info [get]
func (h *WalletHandler) GetPaymentInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.paymentInfo.Get(r.Context())
	if err != nil {
		services.SendErrorResponse(w, "Failed to load payment info", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func userFromContext(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value("userID").(string)
	return userID, ok && userID != ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, v *services.ValidationHelper) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := v.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeTxError(w http.ResponseWriter, err error) {
	if te, ok := services.AsTxError(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(te.HTTPStatus())
		json.NewEncoder(w).Encode(map[string]string{"error": te.Message, "code": te.Code})
		return
	}
	services.SendErrorResponse(w, "Internal error", http.StatusInternalServerError, nil)
}
