/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL for the bill transaction ledger, the plan
 * catalog, electricity tokens and the user PIN credential lookup.
 *
 * @dependencies
 * - context, encoding/json, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paynest/bills-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository and
// WalletRepository interfaces for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

const billColumns = `
	id, user_id, reference, service, product, phone, account, plan_id, customer_name,
	amount, amount_paid, fee, cost, currency, provider, provider_txn_id,
	callback_url, status, paid_at, failed_at, request_payload,
	provider_response, meta, created_at, updated_at`

func scanBill(row pgx.Row) (*domain.BillTransaction, error) {
	var tx domain.BillTransaction
	var requestPayload, providerResponse, meta []byte
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Reference, &tx.Service, &tx.Product, &tx.Phone, &tx.Account,
		&tx.PlanID, &tx.CustomerName, &tx.Amount, &tx.AmountPaid, &tx.Fee,
		&tx.Cost, &tx.Currency, &tx.Provider, &tx.ProviderTxnID, &tx.CallbackURL,
		&tx.Status, &tx.PaidAt, &tx.FailedAt, &requestPayload, &providerResponse,
		&meta, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(requestPayload) > 0 {
		if err := json.Unmarshal(requestPayload, &tx.RequestPayload); err != nil {
			return nil, fmt.Errorf("decode request_payload: %w", err)
		}
	}
	if len(providerResponse) > 0 {
		if err := json.Unmarshal(providerResponse, &tx.ProviderResponse); err != nil {
			return nil, fmt.Errorf("decode provider_response: %w", err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &tx.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	return &tx, nil
}

// CreateBillTransaction inserts the PENDING intent row. A reference collision
// surfaces as ErrDuplicateReference with nothing written.
func (r *PostgresRepository) CreateBillTransaction(ctx context.Context, tx *domain.BillTransaction) error {
	requestPayload, err := marshalJSON(tx.RequestPayload)
	if err != nil {
		return err
	}
	providerResponse, err := marshalJSON(tx.ProviderResponse)
	if err != nil {
		return err
	}
	meta, err := marshalJSON(tx.Meta)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bill_transactions (
			user_id, reference, service, product, phone, account, plan_id,
			customer_name, amount, amount_paid, fee, cost, currency, provider,
			provider_txn_id, callback_url, status, paid_at, failed_at,
			request_payload, provider_response, meta
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		tx.UserID, tx.Reference, tx.Service, tx.Product, tx.Phone, tx.Account,
		tx.PlanID, tx.CustomerName, tx.Amount, tx.AmountPaid, tx.Fee, tx.Cost,
		tx.Currency, tx.Provider, tx.ProviderTxnID, tx.CallbackURL, tx.Status,
		tx.PaidAt, tx.FailedAt, requestPayload, providerResponse, meta,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// UpdateBillTransaction persists the reconciled state of an existing row.
// The caller computes the merged values; this write is by primary key.
func (r *PostgresRepository) UpdateBillTransaction(ctx context.Context, tx *domain.BillTransaction) error {
	providerResponse, err := marshalJSON(tx.ProviderResponse)
	if err != nil {
		return err
	}

	query := `
		UPDATE bill_transactions
		SET status = $1, customer_name = $2, amount_paid = $3, fee = $4,
		    cost = $5, provider_txn_id = $6, provider_response = $7,
		    paid_at = $8, failed_at = $9, updated_at = NOW()
		WHERE id = $10
	`
	result, err := r.db.Exec(ctx, query,
		tx.Status, tx.CustomerName, tx.AmountPaid, tx.Fee, tx.Cost,
		tx.ProviderTxnID, providerResponse, tx.PaidAt, tx.FailedAt, tx.ID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

// FindBillByReference retrieves one ledger row by its idempotency key.
func (r *PostgresRepository) FindBillByReference(ctx context.Context, reference string) (*domain.BillTransaction, error) {
	query := `SELECT ` + billColumns + ` FROM bill_transactions WHERE reference = $1`
	tx, err := scanBill(r.db.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}
	return tx, nil
}

// ListBillTransactions retrieves one user's recent ledger rows, optionally
// filtered by service and status.
func (r *PostgresRepository) ListBillTransactions(ctx context.Context, userID uuid.UUID, service, status string, limit, offset int) ([]domain.BillTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + billColumns + ` FROM bill_transactions WHERE user_id = $1`
	args := []any{userID}
	argPos := 2
	if service != "" {
		query += fmt.Sprintf(" AND service = $%d", argPos)
		args = append(args, service)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.BillTransaction
	for rows.Next() {
		tx, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// FindPlans returns catalog entries for (service, provider) whose synced_at
// falls on or after the given cut-off. A zero cut-off returns all entries.
func (r *PostgresRepository) FindPlans(ctx context.Context, service, provider string, syncedAfter time.Time) ([]domain.Plan, error) {
	query := `
		SELECT id, service, provider, code, name, price, meta, synced_at
		FROM bills
		WHERE service = $1 AND provider = $2 AND synced_at >= $3
		ORDER BY price ASC, code ASC
	`
	rows, err := r.db.Query(ctx, query, service, provider, syncedAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		var plan domain.Plan
		var meta []byte
		if err := rows.Scan(&plan.ID, &plan.Service, &plan.Provider, &plan.Code, &plan.Name, &plan.Price, &meta, &plan.SyncedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &plan.Meta); err != nil {
				return nil, fmt.Errorf("decode plan meta: %w", err)
			}
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// FindPlanByCode retrieves a single catalog entry regardless of freshness.
func (r *PostgresRepository) FindPlanByCode(ctx context.Context, service, provider, code string) (*domain.Plan, error) {
	query := `
		SELECT id, service, provider, code, name, price, meta, synced_at
		FROM bills
		WHERE service = $1 AND provider = $2 AND code = $3
	`
	var plan domain.Plan
	var meta []byte
	err := r.db.QueryRow(ctx, query, service, provider, code).Scan(
		&plan.ID, &plan.Service, &plan.Provider, &plan.Code, &plan.Name, &plan.Price, &meta, &plan.SyncedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &plan.Meta); err != nil {
			return nil, fmt.Errorf("decode plan meta: %w", err)
		}
	}
	return &plan, nil
}

// UpsertPlan overwrites name/price/meta/synced_at keyed by
// (service, provider, code). Concurrent refreshes writing the same key are
// benign because the write is idempotent.
func (r *PostgresRepository) UpsertPlan(ctx context.Context, plan *domain.Plan) error {
	meta, err := marshalJSON(plan.Meta)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bills (service, provider, code, name, price, meta, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (service, provider, code)
		DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			meta = EXCLUDED.meta,
			synced_at = EXCLUDED.synced_at,
			updated_at = NOW()
		RETURNING id
	`
	return r.db.QueryRow(ctx, query,
		plan.Service, plan.Provider, plan.Code, plan.Name, plan.Price, meta, plan.SyncedAt,
	).Scan(&plan.ID)
}

// UpsertElectricityToken inserts a token if (bill_transaction_id, token) is
// absent and reports whether a row was created. Existing rows keep their
// recorded units/tariff untouched.
func (r *PostgresRepository) UpsertElectricityToken(ctx context.Context, token *domain.ElectricityToken) (bool, error) {
	raw, err := marshalJSON(token.Raw)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO electricity_tokens (bill_transaction_id, token, units, tariff_code, raw)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bill_transaction_id, token) DO NOTHING
		RETURNING id
	`
	err = r.db.QueryRow(ctx, query,
		token.BillTransactionID, token.Token, token.Units, token.TariffCode, raw,
	).Scan(&token.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindTokensByTransaction returns all tokens recorded for a transaction in
// insertion order.
func (r *PostgresRepository) FindTokensByTransaction(ctx context.Context, billTransactionID int64) ([]domain.ElectricityToken, error) {
	query := `
		SELECT id, bill_transaction_id, token, units, tariff_code, raw, created_at
		FROM electricity_tokens
		WHERE bill_transaction_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, billTransactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.ElectricityToken
	for rows.Next() {
		var token domain.ElectricityToken
		var raw []byte
		if err := rows.Scan(&token.ID, &token.BillTransactionID, &token.Token, &token.Units, &token.TariffCode, &raw, &token.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &token.Raw); err != nil {
				return nil, fmt.Errorf("decode token raw: %w", err)
			}
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// GetUserPINHash returns the stored transaction PIN hash for a user. A
// missing user and a user without a PIN both report ErrPINNotSet so callers
// cannot distinguish the two cases.
func (r *PostgresRepository) GetUserPINHash(ctx context.Context, userID uuid.UUID) (string, error) {
	var hash *string
	err := r.db.QueryRow(ctx, `SELECT pin_hash FROM users WHERE id = $1`, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPINNotSet
		}
		return "", err
	}
	if hash == nil || *hash == "" {
		return "", ErrPINNotSet
	}
	return *hash, nil
}
