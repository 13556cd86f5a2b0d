/**
 * @description
 * Caller-triggered status polling and the airtime retry path. Polling is the
 * only way a PENDING purchase converges: the provider is asked for the
 * current state, the local record is reconciled with the same rules as the
 * purchase path, and late electricity tokens are captured.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/internal/store"
	"github.com/paynest/bills-service/pkg/redbiller"
)

var statusAreas = map[string]string{
	domain.ServiceAirtime:     redbiller.AreaAirtime,
	domain.ServiceData:        redbiller.AreaData,
	domain.ServiceTV:          redbiller.AreaCable,
	domain.ServiceElectricity: redbiller.AreaElectricity,
}

// PurchaseStatus polls the provider for a purchase and reconciles the local
// record when one exists. The poll works even for references this service
// never recorded, so support tooling can query the provider directly.
func (s *Service) PurchaseStatus(ctx context.Context, service, reference string) (*domain.PurchaseResult, error) {
	area, ok := statusAreas[service]
	if !ok {
		return nil, fmt.Errorf("%w: no status endpoint for service %q", ErrValidation, service)
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}

	resp, err := s.provider.Call(ctx, area, redbiller.OpPurchaseStatus, map[string]any{"reference": reference})
	if err != nil {
		return nil, fmt.Errorf("poll %s status: %w", service, err)
	}
	body := responseBody(resp)

	tx, err := s.repo.FindBillByReference(ctx, reference)
	if err != nil {
		if !errors.Is(err, store.ErrBillNotFound) {
			return nil, err
		}
		// Unknown locally: echo what the provider says without persisting.
		status := ""
		if st := stringField(body, "status"); st != nil {
			status = strings.ToUpper(*st)
		}
		return &domain.PurchaseResult{
			Reference: reference,
			Status:    status,
			Provider:  providerResult(resp),
			Message:   bodyMessage(body, ""),
		}, nil
	}

	// A failed poll leaves the record untouched; only a definitive provider
	// answer moves the state machine.
	if resp.OK {
		applyProviderResult(tx, resp, time.Now().UTC())
		if err := s.repo.UpdateBillTransaction(ctx, tx); err != nil {
			return nil, fmt.Errorf("reconcile %s status %s: %w", service, reference, err)
		}
	}

	result := &domain.PurchaseResult{
		Reference: tx.Reference,
		Status:    tx.Status,
		Provider:  providerResult(resp),
		Message:   bodyMessage(body, ""),
	}
	if service == domain.ServiceElectricity {
		result.Tokens = s.captureTokens(ctx, tx)
		if tx.Account != nil {
			result.Customer = &domain.CustomerInfo{Name: tx.CustomerName, Account: *tx.Account}
		}
	}
	return result, nil
}

// RetryAirtime asks the provider to re-submit a failed airtime purchase. On
// acceptance the local record moves to RETRIED and waits for a fresh status.
func (s *Service) RetryAirtime(ctx context.Context, reference string) (*domain.PurchaseResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}

	tx, err := s.repo.FindBillByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.Status == domain.StatusSuccess {
		return nil, fmt.Errorf("%w: a successful purchase cannot be retried", ErrValidation)
	}

	resp, err := s.provider.Call(ctx, redbiller.AreaAirtime, redbiller.OpPurchaseRetry, map[string]any{"reference": reference})
	if err != nil {
		return nil, fmt.Errorf("retry airtime %s: %w", reference, err)
	}
	body := responseBody(resp)

	if resp.OK {
		tx.Status = domain.StatusRetried
		tx.ProviderResponse = body
		if err := s.repo.UpdateBillTransaction(ctx, tx); err != nil {
			return nil, fmt.Errorf("mark airtime retried %s: %w", reference, err)
		}
	}

	return &domain.PurchaseResult{
		Reference: tx.Reference,
		Status:    tx.Status,
		Provider:  providerResult(resp),
		Message:   bodyMessage(body, ""),
	}, nil
}

// AirtimeRetriedTrail fetches the provider's retry history for a reference.
// The envelope is passed through untouched.
func (s *Service) AirtimeRetriedTrail(ctx context.Context, reference string) (redbiller.Response, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return redbiller.Response{}, fmt.Errorf("%w: reference is required", ErrValidation)
	}
	return s.provider.Call(ctx, redbiller.AreaAirtime, redbiller.OpRetriedTrail, map[string]any{"reference": reference})
}

// ListAirtimePurchases queries the provider's purchase list. Only known
// filters are forwarded; everything else is dropped.
func (s *Service) ListAirtimePurchases(ctx context.Context, filters domain.BillListFilters) (redbiller.Response, error) {
	payload := map[string]any{}
	if filters.Reference != "" {
		payload["reference"] = filters.Reference
	}
	if filters.Status != "" {
		payload["status"] = filters.Status
	}
	if filters.Product != "" {
		payload["product"] = filters.Product
	}
	if filters.Phone != "" {
		payload["phone_no"] = filters.Phone
	}
	if filters.Page != "" {
		payload["page"] = filters.Page
	}
	if filters.From != "" {
		payload["from"] = filters.From
	}
	if filters.To != "" {
		payload["to"] = filters.To
	}
	return s.provider.Call(ctx, redbiller.AreaAirtime, redbiller.OpPurchaseList, payload)
}

// ListTransactions reads the caller's slice of the local ledger, newest
// first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, service, status string, limit, offset int) ([]domain.BillTransaction, error) {
	return s.repo.ListBillTransactions(ctx, userID, service, status, limit, offset)
}
