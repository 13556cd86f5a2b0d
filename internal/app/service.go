/**
 * @description
 * This file contains the core business logic for the bills-service. The
 * `Service` struct orchestrates every purchase pipeline, coordinating between
 * the database repositories, the Redbiller gateway client, and the message
 * broker.
 *
 * Key features:
 * - Implements the shared purchase pipeline: validate, map provider keys,
 *   persist the PENDING intent, call the provider, reconcile, return a safe
 *   result.
 * - Guards every purchase behind a bcrypt PIN check.
 * - Publishes settlement events to RabbitMQ for asynchronous consumers.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For user identifiers from the auth layer.
 * - github.com/oklog/ulid/v2: For sortable purchase references.
 * - golang.org/x/crypto/bcrypt: For PIN hashing and verification.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/redbiller, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/internal/store"
	"github.com/paynest/bills-service/pkg/rabbitmq"
	"github.com/paynest/bills-service/pkg/redbiller"
)

var (
	// ErrUnsupportedProvider is returned when a caller-supplied selector does
	// not map to any provider product key.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrInvalidPIN is returned when the PIN is missing, not set for the
	// user, or does not match the stored hash.
	ErrInvalidPIN = errors.New("incorrect pin")
	// ErrPlanNotFound is returned when a plan code cannot be resolved even
	// after a catalog refresh.
	ErrPlanNotFound = errors.New("plan not found for provider")
	// ErrValidation is wrapped around request-shape failures.
	ErrValidation = errors.New("validation failed")
)

// UnsupportedProviderError carries the vertical whose selector failed to map
// so callers can name it in the rejection. It still matches
// errors.Is(err, ErrUnsupportedProvider).
type UnsupportedProviderError struct {
	Vertical string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported %s provider", e.Vertical)
}

func (e *UnsupportedProviderError) Is(target error) bool {
	return target == ErrUnsupportedProvider
}

func unsupportedProvider(vertical string) error {
	return &UnsupportedProviderError{Vertical: vertical}
}

// CatalogError reports a plan-catalog refresh that failed upstream. It keeps
// the HTTP status the provider answered with, if any.
type CatalogError struct {
	Service string
	Product string
	Status  int
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("failed to fetch %s plans from provider: [%d]", e.Service, e.Status)
}

// ProviderClient is the outbound gateway contract. *redbiller.Client
// satisfies it; tests substitute a scripted fake.
type ProviderClient interface {
	Call(ctx context.Context, area, operation string, payload map[string]any) (redbiller.Response, error)
}

// RateLimiter is the admission contract for the purchase rate limiter.
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (allowed bool, retryAfterSeconds int, err error)
}

// Service provides the core business logic for bill payments.
type Service struct {
	repo          store.Repository
	wallets       store.WalletRepository
	provider      ProviderClient
	eventProducer rabbitmq.Publisher

	planFreshness  time.Duration
	walletCurrency string
}

// NewService creates a new bills service instance.
func NewService(repo store.Repository, wallets store.WalletRepository, provider ProviderClient, producer rabbitmq.Publisher, planFreshness time.Duration, walletCurrency string) *Service {
	if planFreshness <= 0 {
		planFreshness = 24 * time.Hour
	}
	if walletCurrency == "" {
		walletCurrency = "NGN"
	}
	return &Service{
		repo:           repo,
		wallets:        wallets,
		provider:       provider,
		eventProducer:  producer,
		planFreshness:  planFreshness,
		walletCurrency: walletCurrency,
	}
}

// NewReference mints a sortable, unique purchase reference. Callers may
// supply their own reference instead; this is the default.
func NewReference() string {
	return ulid.Make().String()
}

// verifyPIN checks the caller's transaction PIN against the stored bcrypt
// hash. Any failure mode collapses to ErrInvalidPIN.
func (s *Service) verifyPIN(ctx context.Context, userID uuid.UUID, pin string) error {
	if strings.TrimSpace(pin) == "" {
		return ErrInvalidPIN
	}
	hash, err := s.repo.GetUserPINHash(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrPINNotSet) {
			return ErrInvalidPIN
		}
		return fmt.Errorf("load pin hash: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) != nil {
		return ErrInvalidPIN
	}
	return nil
}

// hashPIN produces the bcrypt digest stored in the transaction meta. The raw
// PIN must never be persisted or logged.
func hashPIN(pin string) string {
	digest, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt only fails on absurd cost values; treat as unrecoverable.
		log.Printf("level=error component=bills_service msg=\"bcrypt hash failed\" err=%v", err)
		return ""
	}
	return string(digest)
}

// responseBody normalizes the provider envelope into the JSON map the
// reconciliation step works on. An unparseable body is preserved under "raw".
func responseBody(resp redbiller.Response) map[string]any {
	if resp.JSON != nil {
		return resp.JSON
	}
	return map[string]any{"raw": resp.RawBody}
}

// providerResult extracts the safe subset of the envelope for API responses.
func providerResult(resp redbiller.Response) domain.ProviderResult {
	result := domain.ProviderResult{OK: resp.OK}
	if resp.StatusCode != 0 {
		status := resp.StatusCode
		result.Status = &status
	}
	return result
}

// bodyMessage digs the human-readable message out of a provider body,
// checking the top level first and then details.message.
func bodyMessage(body map[string]any, fallback string) *string {
	if msg := stringField(body, "message"); msg != nil {
		return msg
	}
	if details, ok := body["details"].(map[string]any); ok {
		if msg := stringField(details, "message"); msg != nil {
			return msg
		}
	}
	if fallback == "" {
		return nil
	}
	return &fallback
}

// stringField returns a non-empty string field as a pointer, or nil.
func stringField(m map[string]any, key string) *string {
	if m == nil {
		return nil
	}
	if v, ok := m[key].(string); ok && v != "" {
		value := v
		return &value
	}
	return nil
}

// amountKobo coerces a provider-reported amount (naira, as number or string)
// into kobo. Absent or malformed values report ok=false so the caller keeps
// its previous figure.
func amountKobo(m map[string]any, key string) (int64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(math.Round(n * 100)), true
	case int:
		return int64(n) * 100, true
	case int64:
		return n * 100, true
	case string:
		trimmed := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return int64(math.Round(f * 100)), true
	default:
		return 0, false
	}
}

// nairaAmount converts a kobo amount to the whole-naira value provider
// payloads carry. Sub-naira amounts have no upstream representation and are
// rejected rather than silently truncated.
func nairaAmount(kobo int64) (int64, error) {
	if kobo%100 != 0 {
		return 0, fmt.Errorf("%w: amount must be expressed in whole naira (a multiple of 100 kobo)", ErrValidation)
	}
	return kobo / 100, nil
}

// intField coerces a numeric field to int64 without unit conversion.
func intField(m map[string]any, key string) (int64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// publishSettlement emits the bill purchase event. Publishing is best-effort:
// a broker failure is logged, never surfaced to the caller.
func (s *Service) publishSettlement(ctx context.Context, tx *domain.BillTransaction) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.BillPurchaseEvent{
		Reference: tx.Reference,
		Service:   tx.Service,
		Product:   tx.Product,
		Amount:    tx.Amount,
		Status:    tx.Status,
		Timestamp: time.Now().UTC(),
	}
	if err := s.eventProducer.PublishBillPurchaseEvent(ctx, event); err != nil {
		log.Printf("level=warn component=bills_service msg=\"settlement event publish failed\" reference=%s err=%v", tx.Reference, err)
	}
}
