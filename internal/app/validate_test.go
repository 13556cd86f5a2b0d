package app

import (
	"context"
	"errors"
	"testing"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/pkg/redbiller"
)

func TestValidateMeter_ResolvesCustomer(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.respond(redbiller.AreaElectricity, redbiller.OpValidate, redbiller.Response{
		OK: true, StatusCode: 200,
		JSON: map[string]any{"customer_name": "ADA OBI", "message": "Meter found"},
	})

	svc := newTestService(repo, newFakeWalletRepo(), provider, &fakePublisher{})
	result, err := svc.ValidateMeter(context.Background(), domain.ElectricityValidateRequest{
		Disco:     "abuja-electricity-prepaid",
		MeterNo:   "45060912345",
		MeterType: "prepaid",
	})
	if err != nil {
		t.Fatalf("ValidateMeter returned error: %v", err)
	}
	if !result.OK {
		t.Error("expected ok result")
	}
	if result.Customer.Name == nil || *result.Customer.Name != "ADA OBI" {
		t.Errorf("expected customer name, got %v", result.Customer.Name)
	}
	if result.Customer.Account != "45060912345" {
		t.Errorf("expected meter echoed, got %s", result.Customer.Account)
	}
	if result.Message == nil || *result.Message != "Meter found" {
		t.Errorf("expected provider message, got %v", result.Message)
	}

	payload := provider.calls[0].payload
	if payload["disco"] != "AEDC" || payload["type"] != "prepaid" {
		t.Errorf("unexpected validate payload: %v", payload)
	}
	if len(repo.bills) != 0 {
		t.Error("validation must not create local state")
	}
}

func TestValidateMeter_NestedDetailsMessage(t *testing.T) {
	provider := newFakeProvider()
	provider.respond(redbiller.AreaElectricity, redbiller.OpValidate, redbiller.Response{
		OK: false, StatusCode: 404,
		JSON: map[string]any{"details": map[string]any{"message": "Meter not found"}},
	})

	svc := newTestService(newFakeRepo(), newFakeWalletRepo(), provider, &fakePublisher{})
	result, err := svc.ValidateMeter(context.Background(), domain.ElectricityValidateRequest{
		Disco:     "ikeja",
		MeterNo:   "00000000000",
		MeterType: "postpaid",
	})
	if err != nil {
		t.Fatalf("ValidateMeter returned error: %v", err)
	}
	if result.OK {
		t.Error("expected failed lookup")
	}
	if result.Message == nil || *result.Message != "Meter not found" {
		t.Errorf("expected nested details message, got %v", result.Message)
	}
	if result.Status == nil || *result.Status != 404 {
		t.Errorf("expected provider status echoed, got %v", result.Status)
	}
}

func TestValidateMeter_InputErrors(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeWalletRepo(), newFakeProvider(), &fakePublisher{})

	if _, err := svc.ValidateMeter(context.Background(), domain.ElectricityValidateRequest{
		Disco: "lagos", MeterNo: "45060912345", MeterType: "prepaid",
	}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
	if _, err := svc.ValidateMeter(context.Background(), domain.ElectricityValidateRequest{
		Disco: "ikeja", MeterNo: "45060912345", MeterType: "smart",
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for meter type, got %v", err)
	}
	if _, err := svc.ValidateMeter(context.Background(), domain.ElectricityValidateRequest{
		Disco: "ikeja", MeterType: "prepaid",
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for missing meter, got %v", err)
	}
}

func TestValidateSmartcard_ResolvesCustomer(t *testing.T) {
	provider := newFakeProvider()
	provider.respond(redbiller.AreaCable, redbiller.OpValidate, redbiller.Response{
		OK: true, StatusCode: 200,
		JSON: map[string]any{"customer_name": "CHIKE EZE"},
	})

	svc := newTestService(newFakeRepo(), newFakeWalletRepo(), provider, &fakePublisher{})
	result, err := svc.ValidateSmartcard(context.Background(), domain.CableValidateRequest{
		Provider:  "gotv",
		Smartcard: "7023456789",
	})
	if err != nil {
		t.Fatalf("ValidateSmartcard returned error: %v", err)
	}
	if result.Customer.Name == nil || *result.Customer.Name != "CHIKE EZE" {
		t.Errorf("expected customer name, got %v", result.Customer.Name)
	}
	if result.Message == nil || *result.Message != "Smartcard validated successfully." {
		t.Errorf("expected fallback message, got %v", result.Message)
	}

	payload := provider.calls[0].payload
	if payload["product"] != "GOTV" || payload["smart_card_no"] != "7023456789" {
		t.Errorf("unexpected validate payload: %v", payload)
	}
}
