/**
 * @description
 * This file defines the core domain models for the bills-service: the bill
 * transaction ledger record, the electricity token entity, and the DTOs used
 * by the purchase pipelines and the API layer.
 *
 * @notes
 * - Monetary values on bill transactions are `int64` kobo (smallest currency
 *   unit) to avoid floating-point drift.
 * - `BillMeta` is a typed side-channel instead of a free-form map so the
 *   "never store a raw PIN" rule is visible in the type: there is a PINHash
 *   field and nothing that could hold the plaintext.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bill transaction statuses. PENDING is assigned before the outbound provider
// call; SUCCESS, FAILED and CANCELLED are terminal; RETRIED marks a purchase
// that has been re-submitted to the provider and is awaiting a fresh status.
const (
	StatusPending   = "PENDING"
	StatusSuccess   = "SUCCESS"
	StatusFailed    = "FAILED"
	StatusRetried   = "RETRIED"
	StatusCancelled = "CANCELLED"
)

// Service verticals.
const (
	ServiceAirtime     = "airtime"
	ServiceData        = "data"
	ServiceTV          = "tv"
	ServiceElectricity = "electricity"
	ServiceInternet    = "internet"
	ServiceBetting     = "betting"
)

// ProviderRedbiller is the identifier of the upstream billing aggregator.
const ProviderRedbiller = "redbiller"

// BillMeta is the non-sensitive side-channel persisted with a bill
// transaction. PINHash is a bcrypt hash; the raw PIN never reaches storage.
type BillMeta struct {
	PaymentSource string `json:"payment_source,omitempty"`
	PINHash       string `json:"pin_hash,omitempty"`
	PlanName      string `json:"plan_name,omitempty"`
	MeterType     string `json:"meter_type,omitempty"`
}

// BillTransaction is the audit record for one attempted purchase. It maps
// directly to the `bill_transactions` table.
type BillTransaction struct {
	ID               int64          `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	Reference        string         `json:"reference"`
	Service          string         `json:"service"`
	Product          string         `json:"product"`
	Phone            *string        `json:"phone,omitempty"`
	Account          *string        `json:"account,omitempty"`
	PlanID           *string        `json:"plan_id,omitempty"`
	CustomerName     *string        `json:"customer_name,omitempty"`
	Amount           int64          `json:"amount"`      // requested, kobo
	AmountPaid       int64          `json:"amount_paid"` // provider-reported
	Fee              int64          `json:"fee"`
	Cost             int64          `json:"cost"` // amount actually debited
	Currency         string         `json:"currency"`
	Provider         string         `json:"provider"`
	ProviderTxnID    *string        `json:"provider_txn_id,omitempty"`
	CallbackURL      *string        `json:"callback_url,omitempty"`
	Status           string         `json:"status"`
	PaidAt           *time.Time     `json:"paid_at,omitempty"`
	FailedAt         *time.Time     `json:"failed_at,omitempty"`
	RequestPayload   map[string]any `json:"request_payload,omitempty"`
	ProviderResponse map[string]any `json:"provider_response,omitempty"`
	Meta             BillMeta       `json:"meta"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ElectricityToken is one prepaid token attached to a bill transaction.
// (BillTransactionID, Token) is unique; a token is inserted once and its
// units/tariff are never overwritten afterwards.
type ElectricityToken struct {
	ID                int64          `json:"id"`
	BillTransactionID int64          `json:"bill_transaction_id"`
	Token             string         `json:"token"`
	Units             *int64         `json:"units,omitempty"`
	TariffCode        *string        `json:"tariff_code,omitempty"`
	Raw               map[string]any `json:"raw,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// AirtimePurchaseRequest is the DTO for an airtime top-up.
type AirtimePurchaseRequest struct {
	Network     string `json:"network"`
	Phone       string `json:"phone"`
	Amount      int64  `json:"amount"` // kobo
	PIN         string `json:"pin"`
	Ported      *bool  `json:"ported,omitempty"`
	Reference   string `json:"reference,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// DataPurchaseRequest is the DTO for a mobile data bundle purchase. The
// amount is derived from the resolved plan, never taken from the caller.
type DataPurchaseRequest struct {
	Network     string `json:"network"`
	Phone       string `json:"phone"`
	PlanID      string `json:"plan_id"`
	PIN         string `json:"pin"`
	Ported      *bool  `json:"ported,omitempty"`
	Reference   string `json:"reference,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// CablePurchaseRequest is the DTO for a TV subscription purchase.
type CablePurchaseRequest struct {
	Provider    string `json:"provider"`
	Smartcard   string `json:"smartcard"`
	PlanID      string `json:"plan_id"`
	Phone       string `json:"phone,omitempty"`
	PIN         string `json:"pin"`
	Reference   string `json:"reference,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// ElectricityPurchaseRequest is the DTO for a prepaid/postpaid meter top-up.
type ElectricityPurchaseRequest struct {
	Disco       string `json:"disco"`
	MeterNo     string `json:"meter_no"`
	MeterType   string `json:"type"` // prepaid|postpaid
	Amount      int64  `json:"amount"`
	PIN         string `json:"pin"`
	Reference   string `json:"reference,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// ElectricityValidateRequest asks the provider to resolve a meter to a
// customer without creating any local state.
type ElectricityValidateRequest struct {
	Disco     string `json:"disco"`
	MeterNo   string `json:"meter_no"`
	MeterType string `json:"type"`
}

// CableValidateRequest resolves a smartcard to a customer.
type CableValidateRequest struct {
	Provider  string `json:"provider"`
	Smartcard string `json:"smartcard"`
}

// InternetPurchaseRequest is the DTO for an internet subscription purchase.
type InternetPurchaseRequest struct {
	Provider    string `json:"provider"`
	Account     string `json:"account"`
	PlanID      string `json:"plan_id"`
	PIN         string `json:"pin"`
	Reference   string `json:"reference,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// BettingPurchaseRequest is the DTO for a betting wallet top-up.
type BettingPurchaseRequest struct {
	Provider    string `json:"provider"`
	Account     string `json:"account"`
	Amount      int64  `json:"amount"`
	PIN         string `json:"pin"`
	Reference   string `json:"reference,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// ProviderResult is the safe subset of the gateway envelope echoed to callers.
type ProviderResult struct {
	OK     bool `json:"ok"`
	Status *int `json:"status"`
}

// CustomerInfo carries the provider-resolved customer identity.
type CustomerInfo struct {
	Name    *string `json:"name"`
	Account string  `json:"account"`
}

// TokenInfo is the caller-facing view of an electricity token.
type TokenInfo struct {
	Token  string  `json:"token"`
	Units  *int64  `json:"units"`
	Tariff *string `json:"tariff"`
}

// PurchaseResult is the caller-facing outcome of a purchase attempt. It never
// contains the PIN, the PIN hash, or the full raw provider payload.
type PurchaseResult struct {
	Reference string         `json:"reference"`
	Status    string         `json:"status"`
	Provider  ProviderResult `json:"provider"`
	Message   *string        `json:"message"`
	Customer  *CustomerInfo  `json:"customer,omitempty"`
	Tokens    []TokenInfo    `json:"tokens,omitempty"`
}

// ValidateResult is the caller-facing outcome of a meter/smartcard lookup.
type ValidateResult struct {
	OK       bool         `json:"ok"`
	Status   *int         `json:"status"`
	Message  *string      `json:"message"`
	Customer CustomerInfo `json:"customer"`
}

// BillListFilters restricts provider purchase-list queries to the filters the
// upstream understands; anything else is dropped rather than passed through.
type BillListFilters struct {
	Reference string `json:"reference,omitempty"`
	Status    string `json:"status,omitempty"`
	Product   string `json:"product,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Page      string `json:"page,omitempty"`
	From      string `json:"from,omitempty"` // YYYY-MM-DD
	To        string `json:"to,omitempty"`
}

// AmountMajor converts kobo to the major currency unit at the presentation
// boundary. Stored values stay exact integers.
func AmountMajor(minor int64) float64 {
	return float64(minor) / 100
}
