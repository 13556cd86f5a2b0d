/**
 * @description
 * Wallet subsystem models. Balances are fixed-point decimals (NGN with two
 * fraction digits) rather than kobo integers because the ledger snapshots
 * before/after values verbatim and must round exactly the way the funding
 * instruction was expressed.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet transaction types.
const (
	WalletTxnCredit = "credit"
	WalletTxnDebit  = "debit"
)

// Wallet holds one balance per user. The balance only ever moves together
// with a WalletTransaction appended in the same database transaction.
type Wallet struct {
	ID        int64           `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WalletTransaction is one immutable ledger entry. BalanceBefore and
// BalanceAfter are written once at append time and never recomputed.
type WalletTransaction struct {
	ID            int64           `json:"id"`
	WalletID      int64           `json:"wallet_id"`
	UserID        uuid.UUID       `json:"user_id"`
	ProcessedBy   *uuid.UUID      `json:"processed_by,omitempty"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reference     string          `json:"reference"`
	Description   *string         `json:"description,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// WalletCreditRequest is the DTO for an admin-initiated manual credit.
type WalletCreditRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	Amount      string    `json:"amount"` // decimal string, e.g. "2500.00"
	Currency    string    `json:"currency,omitempty"`
	Reference   string    `json:"reference"`
	Description string    `json:"description,omitempty"`
}
