package app

import (
	"testing"
	"time"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/pkg/redbiller"
)

func TestApplyProviderResult_SuccessStampsPaidAtOnce(t *testing.T) {
	tx := &domain.BillTransaction{Status: domain.StatusPending}
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(3 * time.Hour)

	resp := redbiller.Response{
		OK:         true,
		StatusCode: 200,
		JSON: map[string]any{
			"status":         "success",
			"id":             "rb-991",
			"amount_paid":    float64(500),
			"fee":            float64(10),
			"amount_debited": float64(510),
		},
	}

	applyProviderResult(tx, resp, first)
	if tx.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", tx.Status)
	}
	if tx.PaidAt == nil || !tx.PaidAt.Equal(first) {
		t.Fatalf("expected paid_at stamped at first observation, got %v", tx.PaidAt)
	}
	if tx.ProviderTxnID == nil || *tx.ProviderTxnID != "rb-991" {
		t.Errorf("expected provider txn id captured, got %v", tx.ProviderTxnID)
	}
	if tx.AmountPaid != 50000 || tx.Fee != 1000 || tx.Cost != 51000 {
		t.Errorf("expected naira figures converted to kobo, got paid=%d fee=%d cost=%d", tx.AmountPaid, tx.Fee, tx.Cost)
	}

	// A replayed success must not move the stamp.
	applyProviderResult(tx, resp, later)
	if !tx.PaidAt.Equal(first) {
		t.Errorf("paid_at moved on replay: %v", tx.PaidAt)
	}
}

func TestApplyProviderResult_TransportFailureMarksFailed(t *testing.T) {
	tx := &domain.BillTransaction{Status: domain.StatusPending}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	applyProviderResult(tx, redbiller.Response{OK: false, RawBody: "transport failure: dial tcp"}, now)
	if tx.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", tx.Status)
	}
	if tx.FailedAt == nil || !tx.FailedAt.Equal(now) {
		t.Fatalf("expected failed_at stamped, got %v", tx.FailedAt)
	}
	if tx.ProviderResponse["raw"] != "transport failure: dial tcp" {
		t.Errorf("expected raw body preserved, got %v", tx.ProviderResponse)
	}

	// failed_at is as sticky as paid_at.
	applyProviderResult(tx, redbiller.Response{OK: false}, now.Add(time.Hour))
	if !tx.FailedAt.Equal(now) {
		t.Errorf("failed_at moved on replay: %v", tx.FailedAt)
	}
}

func TestApplyProviderResult_LowercaseStatusNormalized(t *testing.T) {
	tx := &domain.BillTransaction{Status: domain.StatusPending}
	resp := redbiller.Response{OK: true, JSON: map[string]any{"status": "pending"}}
	applyProviderResult(tx, resp, time.Now())
	if tx.Status != domain.StatusPending {
		t.Fatalf("expected PENDING, got %s", tx.Status)
	}
	if tx.PaidAt != nil || tx.FailedAt != nil {
		t.Error("no terminal stamp expected while pending")
	}
}

func TestApplyProviderResult_MissingFiguresKeepLocalOnes(t *testing.T) {
	tx := &domain.BillTransaction{
		Status:     domain.StatusPending,
		AmountPaid: 1200,
		Fee:        50,
		Cost:       1250,
	}
	resp := redbiller.Response{OK: true, JSON: map[string]any{"status": "success"}}
	applyProviderResult(tx, resp, time.Now())
	if tx.AmountPaid != 1200 || tx.Fee != 50 || tx.Cost != 1250 {
		t.Errorf("expected local figures kept, got paid=%d fee=%d cost=%d", tx.AmountPaid, tx.Fee, tx.Cost)
	}
}

func TestApplyProviderResult_StatusLessBodyKeepsCurrentState(t *testing.T) {
	paidAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	tx := &domain.BillTransaction{
		Status: domain.StatusSuccess,
		PaidAt: &paidAt,
	}
	resp := redbiller.Response{OK: true, JSON: map[string]any{"message": "request received"}}
	applyProviderResult(tx, resp, time.Now())

	if tx.Status != domain.StatusSuccess {
		t.Errorf("a status-less OK body must not move the record, got %s", tx.Status)
	}
	if tx.PaidAt == nil || !tx.PaidAt.Equal(paidAt) {
		t.Errorf("paid_at must be untouched, got %v", tx.PaidAt)
	}

	// A fresh attempt without a provider status stays PENDING.
	fresh := &domain.BillTransaction{Status: domain.StatusPending}
	applyProviderResult(fresh, resp, time.Now())
	if fresh.Status != domain.StatusPending {
		t.Errorf("expected PENDING kept, got %s", fresh.Status)
	}
}

func TestExtractTokens_BothNestingsAndPinFallback(t *testing.T) {
	topLevel := map[string]any{
		"tokens": []any{
			map[string]any{"token": "1234-5678", "units": float64(42), "tariff": "R2"},
			map[string]any{"pin": "8765-4321"},
			map[string]any{"units": float64(7)}, // no token or pin: skipped
		},
	}
	tokens := extractTokens(topLevel)
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].Token != "1234-5678" || tokens[0].Units == nil || *tokens[0].Units != 42 {
		t.Errorf("unexpected first token %+v", tokens[0])
	}
	if tokens[0].TariffCode == nil || *tokens[0].TariffCode != "R2" {
		t.Errorf("expected tariff captured, got %v", tokens[0].TariffCode)
	}
	if tokens[1].Token != "8765-4321" {
		t.Errorf("expected pin fallback, got %q", tokens[1].Token)
	}

	nested := map[string]any{
		"data": map[string]any{
			"tokens": []any{map[string]any{"token": "0000-1111"}},
		},
	}
	tokens = extractTokens(nested)
	if len(tokens) != 1 || tokens[0].Token != "0000-1111" {
		t.Fatalf("expected token from data.tokens, got %+v", tokens)
	}

	if got := extractTokens(map[string]any{"status": "success"}); got != nil {
		t.Errorf("expected nil for body without tokens, got %+v", got)
	}
}
