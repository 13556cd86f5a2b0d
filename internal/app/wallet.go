/**
 * @description
 * Manual wallet funding. An operator credits a user's wallet; the repository
 * performs the row-locked balance move and ledger append atomically, and a
 * wallet.funded event is published on success.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/internal/store"
	"github.com/paynest/bills-service/pkg/rabbitmq"
)

// FundWallet credits a user's wallet on an operator's instruction.
func (s *Service) FundWallet(ctx context.Context, processedBy uuid.UUID, req domain.WalletCreditRequest) (*domain.WalletTransaction, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: amount must be a decimal string", ErrValidation)
	}
	amount = amount.Round(2)
	if amount.LessThan(decimal.NewFromFloat(0.01)) {
		return nil, fmt.Errorf("%w: amount must be at least 0.01", ErrValidation)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.walletCurrency
	}

	params := store.WalletCreditParams{
		UserID:    req.UserID,
		Currency:  currency,
		Amount:    amount,
		Reference: reference,
		Metadata:  map[string]any{"source": "manual_admin_credit"},
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		params.Description = &desc
	}
	if processedBy != uuid.Nil {
		admin := processedBy
		params.ProcessedBy = &admin
	}

	entry, err := s.wallets.Credit(ctx, params)
	if err != nil {
		return nil, err
	}

	if s.eventProducer != nil {
		event := rabbitmq.WalletFundedEvent{
			UserID:       entry.UserID,
			Amount:       entry.Amount.StringFixed(2),
			Currency:     currency,
			Reference:    entry.Reference,
			BalanceAfter: entry.BalanceAfter.StringFixed(2),
			Timestamp:    time.Now().UTC(),
		}
		if err := s.eventProducer.PublishWalletFundedEvent(ctx, event); err != nil {
			log.Printf("level=warn component=bills_service msg=\"wallet funded event publish failed\" reference=%s err=%v", entry.Reference, err)
		}
	}
	return entry, nil
}

// GetWallet returns a user's wallet balance in the service currency.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	return s.wallets.FindWalletByUserID(ctx, userID, s.walletCurrency)
}
