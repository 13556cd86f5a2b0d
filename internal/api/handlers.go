/**
 * @description
 * This file contains the HTTP handlers for the bills-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paynest/bills-service/internal/app"
	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/internal/store"
)

// BillsHandlers holds the application service that handlers will use.
type BillsHandlers struct {
	service       *app.Service
	limiter       app.RateLimiter
	purchaseLimit int
}

// NewBillsHandlers creates a new instance of BillsHandlers.
func NewBillsHandlers(service *app.Service, limiter app.RateLimiter, purchaseLimit int) *BillsHandlers {
	return &BillsHandlers{service: service, limiter: limiter, purchaseLimit: purchaseLimit}
}

func (h *BillsHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *BillsHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleServiceError translates application-layer errors to HTTP statuses.
func (h *BillsHandlers) handleServiceError(w http.ResponseWriter, err error) {
	var catalogErr *app.CatalogError
	var unsupportedErr *app.UnsupportedProviderError
	switch {
	case errors.As(err, &unsupportedErr):
		h.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Unsupported %s provider.", unsupportedErr.Vertical))
	case errors.Is(err, app.ErrUnsupportedProvider):
		h.writeError(w, http.StatusUnprocessableEntity, "Unsupported provider.")
	case errors.Is(err, app.ErrInvalidPIN):
		h.writeError(w, http.StatusUnprocessableEntity, "Incorrect PIN.")
	case errors.Is(err, app.ErrPlanNotFound):
		h.writeError(w, http.StatusNotFound, "Plan not found for provider.")
	case errors.Is(err, app.ErrValidation):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrDuplicateReference):
		h.writeError(w, http.StatusConflict, "Reference already processed.")
	case errors.Is(err, store.ErrBillNotFound):
		h.writeError(w, http.StatusNotFound, "Transaction not found.")
	case errors.Is(err, store.ErrWalletNotFound):
		h.writeError(w, http.StatusNotFound, "Wallet not found.")
	case errors.As(err, &catalogErr):
		h.writeError(w, http.StatusUnprocessableEntity, catalogErr.Error())
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "An internal error occurred")
	}
}

// allowPurchase consumes one rate-limit slot for the user. The limiter fails
// open: if Redis is unreachable the purchase proceeds.
func (h *BillsHandlers) allowPurchase(w http.ResponseWriter, r *http.Request, userID uuid.UUID) bool {
	if h.limiter == nil || h.purchaseLimit <= 0 {
		return true
	}
	allowed, retryAfter, err := h.limiter.Allow(r.Context(), "bills:purchase", userID.String(), h.purchaseLimit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" user_id=%s err=%v", userID, err)
		return true
	}
	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many purchase attempts. Please slow down.")
		return false
	}
	return true
}

func (h *BillsHandlers) authenticatedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// purchaseStatusCode mirrors the provider outcome: an accepted purchase is a
// 200, a provider-rejected one is a 422 with the reconciled record attached.
func purchaseStatusCode(result *domain.PurchaseResult) int {
	if result.Provider.OK {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

// AirtimePurchaseHandler handles POST /bills/airtime/purchase.
func (h *BillsHandlers) AirtimePurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}
	var req domain.AirtimePurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.allowPurchase(w, r, userID) {
		return
	}
	result, err := h.service.PurchaseAirtime(r.Context(), userID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, purchaseStatusCode(result), result)
}

// DataPurchaseHandler handles POST /bills/data/purchase.
func (h *BillsHandlers) DataPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}
	var req domain.DataPurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.allowPurchase(w, r, userID) {
		return
	}
	result, err := h.service.PurchaseData(r.Context(), userID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, purchaseStatusCode(result), result)
}

// CablePurchaseHandler handles POST /bills/tv/purchase.
func (h *BillsHandlers) CablePurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}
	var req domain.CablePurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.allowPurchase(w, r, userID) {
		return
	}
	result, err := h.service.PurchaseCable(r.Context(), userID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, purchaseStatusCode(result), result)
}

// ElectricityPurchaseHandler handles POST /bills/electricity/purchase.
func (h *BillsHandlers) ElectricityPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}
	var req domain.ElectricityPurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.allowPurchase(w, r, userID) {
		return
	}
	result, err := h.service.PurchaseElectricity(r.Context(), userID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, purchaseStatusCode(result), result)
}

// InternetPurchaseHandler handles POST /bills/internet/purchase.
func (h *BillsHandlers) InternetPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}
	var req domain.InternetPurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.allowPurchase(w, r, userID) {
		return
	}
	result, err := h.service.PurchaseInternet(r.Context(), userID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, purchaseStatusCode(result), result)
}

// BettingPurchaseHandler handles POST /bills/betting/purchase.
func (h *BillsHandlers) BettingPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}
	var req domain.BettingPurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.allowPurchase(w, r, userID) {
		return
	}
	result, err := h.service.PurchaseBetting(r.Context(), userID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, purchaseStatusCode(result), result)
}

// PlansHandler handles GET /bills/{data,tv,internet}/plans?provider=.
func (h *BillsHandlers) PlansHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerKey := r.URL.Query().Get("provider")
		if providerKey == "" {
			h.writeError(w, http.StatusUnprocessableEntity, "provider query parameter is required")
			return
		}
		product, plans, err := h.service.ListPlans(r.Context(), service, providerKey)
		if err != nil {
			h.handleServiceError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":       true,
			"provider": providerKey,
			"product":  product,
			"plans":    plans,
		})
	}
}

// ElectricityValidateHandler handles POST /bills/electricity/validate.
func (h *BillsHandlers) ElectricityValidateHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ElectricityValidateRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	result, err := h.service.ValidateMeter(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	status := http.StatusOK
	if !result.OK {
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, result)
}

// CableValidateHandler handles POST /bills/tv/validate.
func (h *BillsHandlers) CableValidateHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CableValidateRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	result, err := h.service.ValidateSmartcard(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	status := http.StatusOK
	if !result.OK {
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, result)
}

type referenceRequest struct {
	Reference string `json:"reference"`
}

// StatusHandler handles POST /bills/{service}/status.
func (h *BillsHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	var req referenceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	result, err := h.service.PurchaseStatus(r.Context(), service, req.Reference)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	status := http.StatusOK
	if !result.Provider.OK {
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, result)
}

// AirtimeRetryHandler handles POST /bills/airtime/retry.
func (h *BillsHandlers) AirtimeRetryHandler(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	result, err := h.service.RetryAirtime(r.Context(), req.Reference)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, purchaseStatusCode(result), result)
}

// AirtimeTrailHandler handles POST /bills/airtime/retried-trail.
func (h *BillsHandlers) AirtimeTrailHandler(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := h.service.AirtimeRetriedTrail(r.Context(), req.Reference)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, map[string]interface{}{
		"ok":     resp.OK,
		"status": resp.StatusCode,
		"json":   resp.JSON,
	})
}

// AirtimePurchasesHandler handles GET /bills/airtime/purchases.
func (h *BillsHandlers) AirtimePurchasesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := domain.BillListFilters{
		Reference: q.Get("reference"),
		Status:    q.Get("status"),
		Product:   q.Get("product"),
		Phone:     q.Get("phone"),
		Page:      q.Get("page"),
		From:      q.Get("from"),
		To:        q.Get("to"),
	}
	resp, err := h.service.ListAirtimePurchases(r.Context(), filters)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, map[string]interface{}{
		"ok":     resp.OK,
		"status": resp.StatusCode,
		"json":   resp.JSON,
	})
}

// transactionView is the caller-facing projection of a ledger row. The full
// record carries the PIN hash, the outbound payload, and the raw provider
// body; none of those ever leave the service.
type transactionView struct {
	Reference    string     `json:"reference"`
	Service      string     `json:"service"`
	Product      string     `json:"product"`
	Phone        *string    `json:"phone,omitempty"`
	Account      *string    `json:"account,omitempty"`
	PlanID       *string    `json:"plan_id,omitempty"`
	CustomerName *string    `json:"customer_name,omitempty"`
	Amount       int64      `json:"amount"`
	AmountPaid   int64      `json:"amount_paid"`
	Fee          int64      `json:"fee"`
	Cost         int64      `json:"cost"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func transactionViews(transactions []domain.BillTransaction) []transactionView {
	views := make([]transactionView, 0, len(transactions))
	for _, tx := range transactions {
		views = append(views, transactionView{
			Reference:    tx.Reference,
			Service:      tx.Service,
			Product:      tx.Product,
			Phone:        tx.Phone,
			Account:      tx.Account,
			PlanID:       tx.PlanID,
			CustomerName: tx.CustomerName,
			Amount:       tx.Amount,
			AmountPaid:   tx.AmountPaid,
			Fee:          tx.Fee,
			Cost:         tx.Cost,
			Currency:     tx.Currency,
			Status:       tx.Status,
			PaidAt:       tx.PaidAt,
			FailedAt:     tx.FailedAt,
			CreatedAt:    tx.CreatedAt,
		})
	}
	return views
}

// TransactionsHandler handles GET /bills/transactions over the caller's own
// slice of the local ledger.
func (h *BillsHandlers) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	transactions, err := h.service.ListTransactions(r.Context(), userID, q.Get("service"), q.Get("status"), limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	views := transactionViews(transactions)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": views,
		"count":        len(views),
	})
}

// WalletFundHandler handles POST /wallets/fund (admin only).
func (h *BillsHandlers) WalletFundHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}
	var req domain.WalletCreditRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	entry, err := h.service.FundWallet(r.Context(), adminID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Wallet funded successfully.",
		"transaction": entry,
	})
}

// WalletHandler handles GET /wallets/me.
func (h *BillsHandlers) WalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}
	wallet, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}
