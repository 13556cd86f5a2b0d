/**
 * @description
 * This file defines the data access contracts used by the application layer,
 * along with the sentinel errors each implementation must surface. Defining
 * interfaces here decouples the business logic from PostgreSQL and lets the
 * orchestrators be tested against in-memory fakes.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/google/uuid, github.com/shopspring/decimal: id and money types.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paynest/bills-service/internal/domain"
)

var (
	ErrBillNotFound       = errors.New("bill transaction not found")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrPINNotSet          = errors.New("transaction pin not set")
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrDuplicateReference = errors.New("reference already processed")
)

// Repository is the persistence contract for the bill-payment pipeline: the
// transaction ledger, the plan catalog, electricity tokens, and the PIN
// credential lookup the orchestrators gate on.
type Repository interface {
	// Ledger.
	CreateBillTransaction(ctx context.Context, tx *domain.BillTransaction) error
	UpdateBillTransaction(ctx context.Context, tx *domain.BillTransaction) error
	FindBillByReference(ctx context.Context, reference string) (*domain.BillTransaction, error)
	ListBillTransactions(ctx context.Context, userID uuid.UUID, service, status string, limit, offset int) ([]domain.BillTransaction, error)

	// Plan catalog.
	FindPlans(ctx context.Context, service, provider string, syncedAfter time.Time) ([]domain.Plan, error)
	FindPlanByCode(ctx context.Context, service, provider, code string) (*domain.Plan, error)
	UpsertPlan(ctx context.Context, plan *domain.Plan) error

	// Electricity tokens. Upsert is insert-if-absent by (transaction, token);
	// it reports whether a new row was created.
	UpsertElectricityToken(ctx context.Context, token *domain.ElectricityToken) (bool, error)
	FindTokensByTransaction(ctx context.Context, billTransactionID int64) ([]domain.ElectricityToken, error)

	// PIN credential lookup.
	GetUserPINHash(ctx context.Context, userID uuid.UUID) (string, error)
}

// WalletCreditParams carries one manual funding instruction.
type WalletCreditParams struct {
	UserID      uuid.UUID
	Currency    string
	Amount      decimal.Decimal
	Reference   string
	Description *string
	ProcessedBy *uuid.UUID
	Metadata    map[string]any
}

// WalletRepository is the persistence contract for the wallet ledger. Credit
// runs lock-read-compute-write-append as a single atomic unit; a duplicate
// reference fails the whole unit with ErrDuplicateReference.
type WalletRepository interface {
	Credit(ctx context.Context, params WalletCreditParams) (*domain.WalletTransaction, error)
	FindWalletByUserID(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error)
}
