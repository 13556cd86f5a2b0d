/**
 * @description
 * Customer pre-validation lookups. These resolve a meter number or smartcard
 * to a customer name via the provider without creating any local state, so
 * callers can confirm the target before committing money.
 */

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/internal/support"
	"github.com/paynest/bills-service/pkg/redbiller"
)

// ValidateMeter resolves an electricity meter to its customer.
func (s *Service) ValidateMeter(ctx context.Context, req domain.ElectricityValidateRequest) (*domain.ValidateResult, error) {
	disco, ok := support.ElectricityDisco(req.Disco)
	if !ok {
		return nil, unsupportedProvider("electricity")
	}
	meterType := strings.ToLower(strings.TrimSpace(req.MeterType))
	if meterType != "prepaid" && meterType != "postpaid" {
		return nil, fmt.Errorf("%w: type must be prepaid or postpaid", ErrValidation)
	}
	if strings.TrimSpace(req.MeterNo) == "" {
		return nil, fmt.Errorf("%w: meter_no is required", ErrValidation)
	}

	resp, err := s.provider.Call(ctx, redbiller.AreaElectricity, redbiller.OpValidate, map[string]any{
		"disco":    disco,
		"meter_no": req.MeterNo,
		"type":     meterType,
	})
	if err != nil {
		return nil, fmt.Errorf("validate meter: %w", err)
	}

	fallback := "Unable to validate meter."
	if resp.OK {
		fallback = "Meter validated successfully."
	}
	return validateResult(resp, fallback, req.MeterNo), nil
}

// ValidateSmartcard resolves a TV smartcard to its customer.
func (s *Service) ValidateSmartcard(ctx context.Context, req domain.CableValidateRequest) (*domain.ValidateResult, error) {
	product, ok := support.CableProduct(req.Provider)
	if !ok {
		return nil, unsupportedProvider("TV")
	}
	if strings.TrimSpace(req.Smartcard) == "" {
		return nil, fmt.Errorf("%w: smartcard is required", ErrValidation)
	}

	resp, err := s.provider.Call(ctx, redbiller.AreaCable, redbiller.OpValidate, map[string]any{
		"product":       product,
		"smart_card_no": req.Smartcard,
	})
	if err != nil {
		return nil, fmt.Errorf("validate smartcard: %w", err)
	}

	fallback := "Unable to validate smartcard."
	if resp.OK {
		fallback = "Smartcard validated successfully."
	}
	return validateResult(resp, fallback, req.Smartcard), nil
}

func validateResult(resp redbiller.Response, fallback, account string) *domain.ValidateResult {
	body := responseBody(resp)
	result := &domain.ValidateResult{
		OK:       resp.OK,
		Message:  bodyMessage(body, fallback),
		Customer: domain.CustomerInfo{Account: account},
	}
	if resp.StatusCode != 0 {
		status := resp.StatusCode
		result.Status = &status
	}
	result.Customer.Name = stringField(body, "customer_name")
	return result
}
