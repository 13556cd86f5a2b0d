/**
 * @description
 * This file provides the PostgreSQL implementation of the `WalletRepository`
 * interface. The credit path runs in a single transaction with a row lock on
 * the wallet so concurrent credits serialize, and records a ledger entry with
 * before/after balance snapshots.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Exact arithmetic for monetary balances.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/paynest/bills-service/internal/domain"
)

// PostgresWalletRepository is a concrete implementation of the
// WalletRepository interface for PostgreSQL.
type PostgresWalletRepository struct {
	db *pgxpool.Pool
}

// NewPostgresWalletRepository creates a new instance of PostgresWalletRepository.
func NewPostgresWalletRepository(db *pgxpool.Pool) *PostgresWalletRepository {
	return &PostgresWalletRepository{db: db}
}

// Credit atomically increases a user's wallet balance and appends a ledger
// entry. The wallet row is locked for the duration of the transaction; a
// wallet is created at zero balance if the user has none yet. A duplicate
// ledger reference aborts the whole transaction with ErrDuplicateReference.
func (r *PostgresWalletRepository) Credit(ctx context.Context, params WalletCreditParams) (*domain.WalletTransaction, error) {
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("credit amount must be positive, got %s", params.Amount)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin wallet credit: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := lockWallet(ctx, tx, params.UserID, params.Currency)
	if err != nil {
		return nil, err
	}

	before := wallet.Balance.Round(2)
	after := before.Add(params.Amount).Round(2)

	_, err = tx.Exec(ctx,
		`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`,
		after, wallet.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update wallet balance: %w", err)
	}

	metadata, err := marshalJSON(params.Metadata)
	if err != nil {
		return nil, err
	}

	entry := &domain.WalletTransaction{
		WalletID:      wallet.ID,
		UserID:        params.UserID,
		ProcessedBy:   params.ProcessedBy,
		Type:          domain.WalletTxnCredit,
		Amount:        params.Amount.Round(2),
		BalanceBefore: before,
		BalanceAfter:  after,
		Reference:     params.Reference,
		Description:   params.Description,
		Metadata:      params.Metadata,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (
			wallet_id, user_id, processed_by, type, amount,
			balance_before, balance_after, reference, description, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`,
		entry.WalletID, entry.UserID, entry.ProcessedBy, entry.Type, entry.Amount,
		entry.BalanceBefore, entry.BalanceAfter, entry.Reference, entry.Description, metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("insert wallet ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit wallet credit: %w", err)
	}
	return entry, nil
}

// lockWallet fetches the user's wallet FOR UPDATE, creating it at zero
// balance when absent. ON CONFLICT DO NOTHING keeps a concurrent first credit
// from aborting the transaction; both writers then serialize on the row lock.
func lockWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallets (user_id, currency, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id, currency) DO NOTHING
	`, userID, currency); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	var wallet domain.Wallet
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, currency, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1 AND currency = $2
		FOR UPDATE
	`, userID, currency).Scan(
		&wallet.ID, &wallet.UserID, &wallet.Currency, &wallet.Balance,
		&wallet.CreatedAt, &wallet.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return &wallet, nil
}

// FindWalletByUserID retrieves a user's wallet in the given currency.
func (r *PostgresWalletRepository) FindWalletByUserID(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, currency, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1 AND currency = $2
	`, userID, currency).Scan(
		&wallet.ID, &wallet.UserID, &wallet.Currency, &wallet.Balance,
		&wallet.CreatedAt, &wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}
