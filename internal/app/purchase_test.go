package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/internal/store"
	"github.com/paynest/bills-service/pkg/redbiller"
)

func newTestService(repo *fakeRepo, wallets *fakeWalletRepo, provider *fakeProvider, publisher *fakePublisher) *Service {
	return NewService(repo, wallets, provider, publisher, 24*time.Hour, "NGN")
}

func seedPIN(t *testing.T, repo *fakeRepo, userID uuid.UUID, pin string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("seed pin: %v", err)
	}
	repo.pinHashes[userID] = string(hash)
}

func TestPurchaseAirtime_SuccessfulPipeline(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	publisher := &fakePublisher{}
	userID := uuid.New()
	seedPIN(t, repo, userID, "1111")

	provider.respond(redbiller.AreaAirtime, redbiller.OpPurchaseCreate, redbiller.Response{
		OK:         true,
		StatusCode: 200,
		JSON: map[string]any{
			"status":         "success",
			"id":             "rb-555",
			"amount_paid":    float64(500),
			"fee":            float64(5),
			"amount_debited": float64(505),
		},
	})

	svc := newTestService(repo, newFakeWalletRepo(), provider, publisher)
	result, err := svc.PurchaseAirtime(context.Background(), userID, domain.AirtimePurchaseRequest{
		Network:   "mtn",
		Phone:     "08136051712",
		Amount:    50000,
		PIN:       "1111",
		Reference: "AIR-REF-1",
	})
	if err != nil {
		t.Fatalf("PurchaseAirtime returned error: %v", err)
	}

	if result.Status != domain.StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", result.Status)
	}
	if !result.Provider.OK {
		t.Error("expected provider.ok true")
	}

	// Outbound payload: naira amount, mapped product, no PIN anywhere.
	if len(provider.calls) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(provider.calls))
	}
	payload := provider.calls[0].payload
	if payload["product"] != "MTN" {
		t.Errorf("expected product MTN, got %v", payload["product"])
	}
	if payload["amount"] != int64(500) {
		t.Errorf("expected amount 500 naira, got %v", payload["amount"])
	}
	if _, hasPIN := payload["pin"]; hasPIN {
		t.Error("outbound payload must never carry the pin")
	}

	// Ledger record reconciled.
	tx, err := repo.FindBillByReference(context.Background(), "AIR-REF-1")
	if err != nil {
		t.Fatalf("ledger record missing: %v", err)
	}
	if tx.Status != domain.StatusSuccess || tx.PaidAt == nil {
		t.Errorf("expected reconciled SUCCESS with paid_at, got status=%s paid_at=%v", tx.Status, tx.PaidAt)
	}
	if tx.AmountPaid != 50000 || tx.Fee != 500 || tx.Cost != 50500 {
		t.Errorf("unexpected reconciled figures: paid=%d fee=%d cost=%d", tx.AmountPaid, tx.Fee, tx.Cost)
	}
	if tx.Meta.PINHash == "" || tx.Meta.PINHash == "1111" || strings.Contains(tx.Meta.PINHash, "1111") {
		t.Errorf("expected bcrypt pin hash in meta, got %q", tx.Meta.PINHash)
	}
	if bcrypt.CompareHashAndPassword([]byte(tx.Meta.PINHash), []byte("1111")) != nil {
		t.Error("stored pin hash does not verify against the pin")
	}

	if len(publisher.billEvents) != 1 || publisher.billEvents[0].Reference != "AIR-REF-1" {
		t.Errorf("expected one settlement event, got %+v", publisher.billEvents)
	}
}

func TestPurchaseAirtime_WrongPINCreatesNothing(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	userID := uuid.New()
	seedPIN(t, repo, userID, "1111")

	svc := newTestService(repo, newFakeWalletRepo(), provider, &fakePublisher{})
	_, err := svc.PurchaseAirtime(context.Background(), userID, domain.AirtimePurchaseRequest{
		Network: "mtn",
		Phone:   "08136051712",
		Amount:  50000,
		PIN:     "9999",
	})
	if !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}
	if len(repo.bills) != 0 {
		t.Error("no ledger record may exist after a failed PIN check")
	}
	if len(provider.calls) != 0 {
		t.Error("provider must not be called after a failed PIN check")
	}
}

func TestPurchaseAirtime_PINNotSetIsInvalidPIN(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeWalletRepo(), newFakeProvider(), &fakePublisher{})
	_, err := svc.PurchaseAirtime(context.Background(), uuid.New(), domain.AirtimePurchaseRequest{
		Network: "glo",
		Phone:   "08011112222",
		Amount:  20000,
		PIN:     "1111",
	})
	if !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN for unset pin, got %v", err)
	}
}

func TestPurchaseAirtime_UnsupportedNetwork(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeWalletRepo(), newFakeProvider(), &fakePublisher{})
	_, err := svc.PurchaseAirtime(context.Background(), uuid.New(), domain.AirtimePurchaseRequest{
		Network: "vodafone",
		Phone:   "08011112222",
		Amount:  20000,
		PIN:     "1111",
	})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestPurchaseAirtime_SubNairaAmountRejected(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	userID := uuid.New()
	seedPIN(t, repo, userID, "1111")

	// 550 kobo is not a whole-naira amount; truncating it to 5 naira
	// would silently drop 50 kobo, so the request must be refused.
	svc := newTestService(repo, newFakeWalletRepo(), provider, &fakePublisher{})
	_, err := svc.PurchaseAirtime(context.Background(), userID, domain.AirtimePurchaseRequest{
		Network: "mtn",
		Phone:   "08136051712",
		Amount:  550,
		PIN:     "1111",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(repo.bills) != 0 {
		t.Error("no ledger record may exist for a rejected amount")
	}
	if len(provider.calls) != 0 {
		t.Error("provider must not be called for a rejected amount")
	}
}

func TestPurchaseAirtime_DuplicateReferenceStopsBeforeProvider(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	userID := uuid.New()
	seedPIN(t, repo, userID, "1111")

	repo.bills["AIR-DUP"] = &domain.BillTransaction{Reference: "AIR-DUP", Status: domain.StatusSuccess}

	svc := newTestService(repo, newFakeWalletRepo(), provider, &fakePublisher{})
	_, err := svc.PurchaseAirtime(context.Background(), userID, domain.AirtimePurchaseRequest{
		Network:   "airtel",
		Phone:     "08011112222",
		Amount:    20000,
		PIN:       "1111",
		Reference: "AIR-DUP",
	})
	if !errors.Is(err, store.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	if len(provider.calls) != 0 {
		t.Error("provider must not be called for a duplicate reference")
	}
}

func TestPurchaseAirtime_ProviderRejectionMarksFailed(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	userID := uuid.New()
	seedPIN(t, repo, userID, "1111")

	provider.respond(redbiller.AreaAirtime, redbiller.OpPurchaseCreate, redbiller.Response{
		OK:         false,
		StatusCode: 400,
		JSON:       map[string]any{"message": "Insufficient wallet balance"},
	})

	svc := newTestService(repo, newFakeWalletRepo(), provider, &fakePublisher{})
	result, err := svc.PurchaseAirtime(context.Background(), userID, domain.AirtimePurchaseRequest{
		Network:   "mtn",
		Phone:     "08136051712",
		Amount:    50000,
		PIN:       "1111",
		Reference: "AIR-REF-2",
	})
	if err != nil {
		t.Fatalf("provider rejection must not be a Go error: %v", err)
	}
	if result.Status != domain.StatusFailed {
		t.Errorf("expected FAILED, got %s", result.Status)
	}
	if result.Provider.OK {
		t.Error("expected provider.ok false")
	}
	if result.Message == nil || *result.Message != "Insufficient wallet balance" {
		t.Errorf("expected provider message surfaced, got %v", result.Message)
	}

	tx, _ := repo.FindBillByReference(context.Background(), "AIR-REF-2")
	if tx.FailedAt == nil {
		t.Error("expected failed_at stamped")
	}
}

func TestPurchaseData_AmountComesFromPlan(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	userID := uuid.New()
	seedPIN(t, repo, userID, "2222")

	repo.plans[planKey(domain.ServiceData, "MTN", "MTN-1GB")] = &domain.Plan{
		Service: domain.ServiceData, Provider: "MTN", Code: "MTN-1GB",
		Name: "1GB Monthly", Price: 30000, SyncedAt: time.Now(),
	}
	provider.respond(redbiller.AreaData, redbiller.OpPurchaseCreate, redbiller.Response{
		OK: true, StatusCode: 200, JSON: map[string]any{"status": "success"},
	})

	svc := newTestService(repo, newFakeWalletRepo(), provider, &fakePublisher{})
	_, err := svc.PurchaseData(context.Background(), userID, domain.DataPurchaseRequest{
		Network:   "mtn",
		Phone:     "08136051712",
		PlanID:    "MTN-1GB",
		PIN:       "2222",
		Reference: "DATA-REF-1",
	})
	if err != nil {
		t.Fatalf("PurchaseData returned error: %v", err)
	}

	tx, _ := repo.FindBillByReference(context.Background(), "DATA-REF-1")
	if tx.Amount != 30000 {
		t.Errorf("expected amount from plan (30000), got %d", tx.Amount)
	}
	if tx.Meta.PlanName != "1GB Monthly" {
		t.Errorf("expected plan name in meta, got %q", tx.Meta.PlanName)
	}
	payload := provider.calls[0].payload
	if payload["code"] != "MTN-1GB" {
		t.Errorf("expected plan code in payload, got %v", payload["code"])
	}
	if _, hasAmount := payload["amount"]; hasAmount {
		t.Error("data purchases must not send a caller amount")
	}
}

func TestPurchaseData_UnknownPlanAfterRefresh(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	userID := uuid.New()
	seedPIN(t, repo, userID, "2222")

	// Refresh yields a catalog without the requested code.
	provider.respond(redbiller.AreaData, redbiller.OpPlansList, redbiller.Response{
		OK: true, StatusCode: 200,
		JSON: map[string]any{"categories": []any{
			map[string]any{"code": "MTN-2GB", "amount": float64(600), "label": "2GB"},
		}},
	})

	svc := newTestService(repo, newFakeWalletRepo(), provider, &fakePublisher{})
	_, err := svc.PurchaseData(context.Background(), userID, domain.DataPurchaseRequest{
		Network: "mtn",
		Phone:   "08136051712",
		PlanID:  "MTN-404",
		PIN:     "2222",
	})
	if !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestPurchaseElectricity_CapturesTokens(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	userID := uuid.New()
	seedPIN(t, repo, userID, "3333")

	provider.respond(redbiller.AreaElectricity, redbiller.OpPurchaseCreate, redbiller.Response{
		OK: true, StatusCode: 200,
		JSON: map[string]any{
			"status":        "success",
			"customer_name": "ADA OBI",
			"tokens": []any{
				map[string]any{"token": "1111-2222-3333", "units": float64(120), "tariff": "R2"},
			},
		},
	})

	svc := newTestService(repo, newFakeWalletRepo(), provider, &fakePublisher{})
	result, err := svc.PurchaseElectricity(context.Background(), userID, domain.ElectricityPurchaseRequest{
		Disco:     "ikeja",
		MeterNo:   "45060912345",
		MeterType: "prepaid",
		Amount:    500000,
		PIN:       "3333",
		Reference: "ELEC-REF-1",
	})
	if err != nil {
		t.Fatalf("PurchaseElectricity returned error: %v", err)
	}

	if len(result.Tokens) != 1 || result.Tokens[0].Token != "1111-2222-3333" {
		t.Fatalf("expected one token in result, got %+v", result.Tokens)
	}
	if result.Customer == nil || result.Customer.Account != "45060912345" {
		t.Errorf("expected customer echo, got %+v", result.Customer)
	}
	if result.Customer.Name == nil || *result.Customer.Name != "ADA OBI" {
		t.Errorf("expected customer name from provider, got %v", result.Customer.Name)
	}

	tx, _ := repo.FindBillByReference(context.Background(), "ELEC-REF-1")
	stored, _ := repo.FindTokensByTransaction(context.Background(), tx.ID)
	if len(stored) != 1 {
		t.Fatalf("expected one stored token, got %d", len(stored))
	}
	if stored[0].Units == nil || *stored[0].Units != 120 {
		t.Errorf("expected units 120, got %v", stored[0].Units)
	}
}

func TestPurchaseElectricity_RejectsBadMeterType(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeWalletRepo(), newFakeProvider(), &fakePublisher{})
	_, err := svc.PurchaseElectricity(context.Background(), uuid.New(), domain.ElectricityPurchaseRequest{
		Disco:     "ikeja",
		MeterNo:   "45060912345",
		MeterType: "smart",
		Amount:    500000,
		PIN:       "3333",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPurchaseBetting_MapsProviderAndAccount(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	userID := uuid.New()
	seedPIN(t, repo, userID, "4444")

	provider.respond(redbiller.AreaBetting, redbiller.OpPurchaseCreate, redbiller.Response{
		OK: true, StatusCode: 200, JSON: map[string]any{"status": "success"},
	})

	svc := newTestService(repo, newFakeWalletRepo(), provider, &fakePublisher{})
	_, err := svc.PurchaseBetting(context.Background(), userID, domain.BettingPurchaseRequest{
		Provider:  "sporty",
		Account:   "ACC-778899",
		Amount:    100000,
		PIN:       "4444",
		Reference: "BET-REF-1",
	})
	if err != nil {
		t.Fatalf("PurchaseBetting returned error: %v", err)
	}

	payload := provider.calls[0].payload
	if payload["product"] != "SPORTYBET" {
		t.Errorf("expected SPORTYBET product, got %v", payload["product"])
	}
	for _, key := range []string{"customer_id", "customer_no", "account_id"} {
		if payload[key] != "ACC-778899" {
			t.Errorf("expected %s set to account, got %v", key, payload[key])
		}
	}
}
