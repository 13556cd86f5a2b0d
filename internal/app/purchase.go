/**
 * @description
 * The purchase pipelines. Every vertical runs the same shape: validate the
 * request, map the caller's provider selector to the upstream product key,
 * verify the PIN, persist the PENDING intent, call the provider, reconcile,
 * and return a safe result. Vertical-specific code is limited to payload
 * mapping and which extras (plans, tokens, customer echo) apply.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/internal/support"
	"github.com/paynest/bills-service/pkg/redbiller"
)

// purchaseCall bundles what executePurchase needs beyond the intent row.
type purchaseCall struct {
	area           string
	payload        map[string]any
	defaultMessage string
	captureTokens  bool
	echoCustomer   bool
}

// executePurchase runs persist-intent, provider call, reconcile, and result
// shaping. The intent row is written before the outbound call so a crash
// mid-flight still leaves an auditable PENDING record; a duplicate reference
// aborts before any money moves.
func (s *Service) executePurchase(ctx context.Context, tx *domain.BillTransaction, call purchaseCall) (*domain.PurchaseResult, error) {
	if err := s.repo.CreateBillTransaction(ctx, tx); err != nil {
		return nil, err
	}

	resp, err := s.provider.Call(ctx, call.area, redbiller.OpPurchaseCreate, call.payload)
	if err != nil {
		// Transport failures already arrive as OK=false envelopes; anything
		// here is a local fault (bad endpoint table, cancelled context).
		// Capture it against the record rather than losing the attempt.
		log.Printf("level=error component=bills_service msg=\"provider call failed\" service=%s reference=%s err=%v", tx.Service, tx.Reference, err)
		resp = redbiller.Response{OK: false, RawBody: err.Error()}
	}

	applyProviderResult(tx, resp, time.Now().UTC())
	if err := s.repo.UpdateBillTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("reconcile %s purchase %s: %w", tx.Service, tx.Reference, err)
	}

	result := &domain.PurchaseResult{
		Reference: tx.Reference,
		Status:    tx.Status,
		Provider:  providerResult(resp),
		Message:   bodyMessage(tx.ProviderResponse, call.defaultMessage),
	}

	if call.captureTokens {
		result.Tokens = s.captureTokens(ctx, tx)
	}
	if call.echoCustomer && tx.Account != nil {
		result.Customer = &domain.CustomerInfo{Name: tx.CustomerName, Account: *tx.Account}
	}

	s.publishSettlement(ctx, tx)
	return result, nil
}

// captureTokens persists any tokens present in the reconciled provider body
// and returns the full stored set for the transaction.
func (s *Service) captureTokens(ctx context.Context, tx *domain.BillTransaction) []domain.TokenInfo {
	for _, token := range extractTokens(tx.ProviderResponse) {
		token.BillTransactionID = tx.ID
		if _, err := s.repo.UpsertElectricityToken(ctx, &token); err != nil {
			log.Printf("level=error component=bills_service msg=\"token capture failed\" reference=%s err=%v", tx.Reference, err)
		}
	}
	stored, err := s.repo.FindTokensByTransaction(ctx, tx.ID)
	if err != nil {
		log.Printf("level=error component=bills_service msg=\"token read-back failed\" reference=%s err=%v", tx.Reference, err)
		return nil
	}
	return tokenInfos(stored)
}

func orNewReference(reference string) string {
	if trimmed := strings.TrimSpace(reference); trimmed != "" {
		return trimmed
	}
	return NewReference()
}

func portedString(ported *bool) string {
	if ported != nil && *ported {
		return "true"
	}
	return "false"
}

// PurchaseAirtime tops up a phone number.
func (s *Service) PurchaseAirtime(ctx context.Context, userID uuid.UUID, req domain.AirtimePurchaseRequest) (*domain.PurchaseResult, error) {
	product, ok := support.NetworkProduct(req.Network)
	if !ok {
		return nil, unsupportedProvider("network")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if req.Amount < 100 {
		return nil, fmt.Errorf("%w: amount must be at least 100 kobo", ErrValidation)
	}
	naira, err := nairaAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.verifyPIN(ctx, userID, req.PIN); err != nil {
		return nil, err
	}

	reference := orNewReference(req.Reference)
	payload := map[string]any{
		"product":   product,
		"phone_no":  req.Phone,
		"amount":    naira,
		"reference": reference,
	}
	if req.Ported != nil {
		payload["ported"] = portedString(req.Ported)
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	phone := req.Phone
	tx := &domain.BillTransaction{
		UserID:         userID,
		Reference:      reference,
		Service:        domain.ServiceAirtime,
		Product:        product,
		Phone:          &phone,
		Amount:         req.Amount,
		Currency:       s.walletCurrency,
		Provider:       domain.ProviderRedbiller,
		Status:         domain.StatusPending,
		RequestPayload: payload,
		Meta: domain.BillMeta{
			PaymentSource: "fiat_balance",
			PINHash:       hashPIN(req.PIN),
		},
	}
	if req.CallbackURL != "" {
		callback := req.CallbackURL
		tx.CallbackURL = &callback
	}

	return s.executePurchase(ctx, tx, purchaseCall{
		area:           redbiller.AreaAirtime,
		payload:        payload,
		defaultMessage: "Airtime purchase request submitted successfully.",
	})
}

// PurchaseData buys a mobile data bundle. The amount always comes from the
// resolved plan, never from the caller.
func (s *Service) PurchaseData(ctx context.Context, userID uuid.UUID, req domain.DataPurchaseRequest) (*domain.PurchaseResult, error) {
	product, ok := support.NetworkProduct(req.Network)
	if !ok {
		return nil, unsupportedProvider("network")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if strings.TrimSpace(req.PlanID) == "" {
		return nil, fmt.Errorf("%w: plan_id is required", ErrValidation)
	}
	if err := s.verifyPIN(ctx, userID, req.PIN); err != nil {
		return nil, err
	}

	plan, err := s.resolvePlan(ctx, domain.ServiceData, product, req.PlanID)
	if err != nil {
		return nil, err
	}

	reference := orNewReference(req.Reference)
	payload := map[string]any{
		"product":   product,
		"phone_no":  req.Phone,
		"code":      plan.Code,
		"reference": reference,
	}
	if req.Ported != nil {
		payload["ported"] = portedString(req.Ported)
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	phone := req.Phone
	planID := plan.Code
	tx := &domain.BillTransaction{
		UserID:         userID,
		Reference:      reference,
		Service:        domain.ServiceData,
		Product:        product,
		Phone:          &phone,
		PlanID:         &planID,
		Amount:         plan.Price,
		Currency:       s.walletCurrency,
		Provider:       domain.ProviderRedbiller,
		Status:         domain.StatusPending,
		RequestPayload: payload,
		Meta: domain.BillMeta{
			PaymentSource: "fiat_balance",
			PINHash:       hashPIN(req.PIN),
			PlanName:      plan.Name,
		},
	}

	return s.executePurchase(ctx, tx, purchaseCall{
		area:           redbiller.AreaData,
		payload:        payload,
		defaultMessage: "Data purchase request submitted successfully.",
	})
}

// PurchaseCable pays a TV subscription for a smartcard.
func (s *Service) PurchaseCable(ctx context.Context, userID uuid.UUID, req domain.CablePurchaseRequest) (*domain.PurchaseResult, error) {
	product, ok := support.CableProduct(req.Provider)
	if !ok {
		return nil, unsupportedProvider("TV")
	}
	if strings.TrimSpace(req.Smartcard) == "" {
		return nil, fmt.Errorf("%w: smartcard is required", ErrValidation)
	}
	if strings.TrimSpace(req.PlanID) == "" {
		return nil, fmt.Errorf("%w: plan_id is required", ErrValidation)
	}
	if err := s.verifyPIN(ctx, userID, req.PIN); err != nil {
		return nil, err
	}

	plan, err := s.resolvePlan(ctx, domain.ServiceTV, product, req.PlanID)
	if err != nil {
		return nil, err
	}

	reference := orNewReference(req.Reference)
	payload := map[string]any{
		"product":       product,
		"smart_card_no": req.Smartcard,
		"code":          plan.Code,
		"reference":     reference,
	}
	if req.Phone != "" {
		payload["phone_no"] = req.Phone
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	account := req.Smartcard
	planID := plan.Code
	tx := &domain.BillTransaction{
		UserID:         userID,
		Reference:      reference,
		Service:        domain.ServiceTV,
		Product:        product,
		Account:        &account,
		PlanID:         &planID,
		Amount:         plan.Price,
		Currency:       s.walletCurrency,
		Provider:       domain.ProviderRedbiller,
		Status:         domain.StatusPending,
		RequestPayload: payload,
		Meta: domain.BillMeta{
			PaymentSource: "fiat_balance",
			PINHash:       hashPIN(req.PIN),
			PlanName:      plan.Name,
		},
	}

	return s.executePurchase(ctx, tx, purchaseCall{
		area:           redbiller.AreaCable,
		payload:        payload,
		defaultMessage: "TV subscription request submitted successfully.",
		echoCustomer:   true,
	})
}

// PurchaseElectricity tops up a prepaid or postpaid meter. Prepaid responses
// may carry tokens immediately; late tokens arrive via status polling.
func (s *Service) PurchaseElectricity(ctx context.Context, userID uuid.UUID, req domain.ElectricityPurchaseRequest) (*domain.PurchaseResult, error) {
	disco, ok := support.ElectricityDisco(req.Disco)
	if !ok {
		return nil, unsupportedProvider("electricity")
	}
	meterType := strings.ToLower(strings.TrimSpace(req.MeterType))
	if meterType != "prepaid" && meterType != "postpaid" {
		return nil, fmt.Errorf("%w: type must be prepaid or postpaid", ErrValidation)
	}
	if strings.TrimSpace(req.MeterNo) == "" {
		return nil, fmt.Errorf("%w: meter_no is required", ErrValidation)
	}
	if req.Amount < 100 {
		return nil, fmt.Errorf("%w: amount must be at least 100 kobo", ErrValidation)
	}
	naira, err := nairaAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.verifyPIN(ctx, userID, req.PIN); err != nil {
		return nil, err
	}

	reference := orNewReference(req.Reference)
	payload := map[string]any{
		"disco":     disco,
		"meter_no":  req.MeterNo,
		"type":      meterType,
		"amount":    naira,
		"reference": reference,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	account := req.MeterNo
	tx := &domain.BillTransaction{
		UserID:         userID,
		Reference:      reference,
		Service:        domain.ServiceElectricity,
		Product:        disco,
		Account:        &account,
		Amount:         req.Amount,
		Currency:       s.walletCurrency,
		Provider:       domain.ProviderRedbiller,
		Status:         domain.StatusPending,
		RequestPayload: payload,
		Meta: domain.BillMeta{
			PaymentSource: "fiat_balance",
			PINHash:       hashPIN(req.PIN),
			MeterType:     meterType,
		},
	}

	return s.executePurchase(ctx, tx, purchaseCall{
		area:           redbiller.AreaElectricity,
		payload:        payload,
		defaultMessage: "Electricity purchase request submitted successfully.",
		captureTokens:  true,
		echoCustomer:   true,
	})
}

// PurchaseInternet pays for an internet subscription plan.
func (s *Service) PurchaseInternet(ctx context.Context, userID uuid.UUID, req domain.InternetPurchaseRequest) (*domain.PurchaseResult, error) {
	product, ok := support.InternetProduct(req.Provider)
	if !ok {
		return nil, unsupportedProvider("internet")
	}
	if strings.TrimSpace(req.Account) == "" {
		return nil, fmt.Errorf("%w: account is required", ErrValidation)
	}
	if strings.TrimSpace(req.PlanID) == "" {
		return nil, fmt.Errorf("%w: plan_id is required", ErrValidation)
	}
	if err := s.verifyPIN(ctx, userID, req.PIN); err != nil {
		return nil, err
	}

	plan, err := s.resolvePlan(ctx, domain.ServiceInternet, product, req.PlanID)
	if err != nil {
		return nil, err
	}
	naira, err := nairaAmount(plan.Price)
	if err != nil {
		return nil, err
	}

	reference := orNewReference(req.Reference)
	payload := map[string]any{
		"product":     product,
		"code":        plan.Code,
		"amount":      naira,
		"reference":   reference,
		"customer_id": req.Account,
		"customer_no": req.Account,
		"account_id":  req.Account,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	account := req.Account
	planID := plan.Code
	tx := &domain.BillTransaction{
		UserID:         userID,
		Reference:      reference,
		Service:        domain.ServiceInternet,
		Product:        product,
		Account:        &account,
		PlanID:         &planID,
		Amount:         plan.Price,
		Currency:       s.walletCurrency,
		Provider:       domain.ProviderRedbiller,
		Status:         domain.StatusPending,
		RequestPayload: payload,
		Meta: domain.BillMeta{
			PaymentSource: "fiat_balance",
			PINHash:       hashPIN(req.PIN),
			PlanName:      plan.Name,
		},
	}

	return s.executePurchase(ctx, tx, purchaseCall{
		area:           redbiller.AreaInternet,
		payload:        payload,
		defaultMessage: "Internet purchase request submitted successfully.",
	})
}

// PurchaseBetting funds a betting wallet.
func (s *Service) PurchaseBetting(ctx context.Context, userID uuid.UUID, req domain.BettingPurchaseRequest) (*domain.PurchaseResult, error) {
	product, ok := support.BettingProvider(req.Provider)
	if !ok {
		return nil, unsupportedProvider("betting")
	}
	if strings.TrimSpace(req.Account) == "" {
		return nil, fmt.Errorf("%w: account is required", ErrValidation)
	}
	if req.Amount < 100 {
		return nil, fmt.Errorf("%w: amount must be at least 100 kobo", ErrValidation)
	}
	naira, err := nairaAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.verifyPIN(ctx, userID, req.PIN); err != nil {
		return nil, err
	}

	reference := orNewReference(req.Reference)
	payload := map[string]any{
		"product":     product,
		"amount":      naira,
		"reference":   reference,
		"customer_id": req.Account,
		"customer_no": req.Account,
		"account_id":  req.Account,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	account := req.Account
	tx := &domain.BillTransaction{
		UserID:         userID,
		Reference:      reference,
		Service:        domain.ServiceBetting,
		Product:        product,
		Account:        &account,
		Amount:         req.Amount,
		Currency:       s.walletCurrency,
		Provider:       domain.ProviderRedbiller,
		Status:         domain.StatusPending,
		RequestPayload: payload,
		Meta: domain.BillMeta{
			PaymentSource: "fiat_balance",
			PINHash:       hashPIN(req.PIN),
		},
	}

	return s.executePurchase(ctx, tx, purchaseCall{
		area:           redbiller.AreaBetting,
		payload:        payload,
		defaultMessage: "Betting wallet top-up request submitted successfully.",
	})
}
