/**
 * @description
 * Cache-aside plan catalog. Plan lookups hit the local `bills` table first;
 * entries synced within the freshness window are served as-is, anything else
 * triggers a refresh from the provider before the table is re-read. Results
 * always come from the database so concurrent refreshes converge.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/internal/store"
	"github.com/paynest/bills-service/internal/support"
	"github.com/paynest/bills-service/pkg/redbiller"
)

// planService groups the provider-key mapping and gateway area for one
// catalog-backed vertical.
type planService struct {
	service string
	area    string
	label   string
	mapKey  func(string) (string, bool)
}

var planServices = map[string]planService{
	domain.ServiceData:     {service: domain.ServiceData, area: redbiller.AreaData, label: "network", mapKey: support.NetworkProduct},
	domain.ServiceTV:       {service: domain.ServiceTV, area: redbiller.AreaCable, label: "TV", mapKey: support.CableProduct},
	domain.ServiceInternet: {service: domain.ServiceInternet, area: redbiller.AreaInternet, label: "internet", mapKey: support.InternetProduct},
}

// ListPlans returns the catalog for one (service, provider) pair, refreshing
// it from the provider when the cached copy is stale or empty.
func (s *Service) ListPlans(ctx context.Context, service, providerKey string) (string, []domain.Plan, error) {
	ps, ok := planServices[service]
	if !ok {
		return "", nil, fmt.Errorf("%w: no plan catalog for service %q", ErrValidation, service)
	}
	product, ok := ps.mapKey(providerKey)
	if !ok {
		return "", nil, unsupportedProvider(ps.label)
	}

	plans, err := s.freshOrSyncedPlans(ctx, ps, product)
	if err != nil {
		return product, nil, err
	}
	return product, plans, nil
}

// resolvePlan finds a single plan by code, refreshing the catalog once if the
// code is unknown locally.
func (s *Service) resolvePlan(ctx context.Context, service, product, code string) (*domain.Plan, error) {
	ps, ok := planServices[service]
	if !ok {
		return nil, fmt.Errorf("%w: no plan catalog for service %q", ErrValidation, service)
	}

	plan, err := s.repo.FindPlanByCode(ctx, service, product, code)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, store.ErrPlanNotFound) {
		return nil, err
	}

	// Unknown locally: sync and retry once. The plan may be newly listed.
	if _, err := s.freshOrSyncedPlans(ctx, ps, product); err != nil {
		return nil, err
	}
	plan, err = s.repo.FindPlanByCode(ctx, service, product, code)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// freshOrSyncedPlans serves cached plans inside the freshness window, or
// refreshes from the provider and re-reads.
func (s *Service) freshOrSyncedPlans(ctx context.Context, ps planService, product string) ([]domain.Plan, error) {
	cutOff := time.Now().Add(-s.planFreshness)
	plans, err := s.repo.FindPlans(ctx, ps.service, product, cutOff)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		return plans, nil
	}

	if err := s.syncPlans(ctx, ps, product); err != nil {
		return nil, err
	}

	// Read back from the database so every caller sees the same catalog.
	return s.repo.FindPlans(ctx, ps.service, product, time.Time{})
}

// syncPlans fetches the provider's plan list and upserts each entry keyed by
// (service, provider, code).
func (s *Service) syncPlans(ctx context.Context, ps planService, product string) error {
	resp, err := s.provider.Call(ctx, ps.area, redbiller.OpPlansList, map[string]any{"product": product})
	if err != nil {
		return fmt.Errorf("fetch %s plans: %w", ps.service, err)
	}
	if !resp.OK {
		return &CatalogError{Service: ps.service, Product: product, Status: resp.StatusCode}
	}

	body := responseBody(resp)
	categories, ok := body["categories"].([]any)
	if !ok {
		if details, isMap := body["details"].(map[string]any); isMap {
			categories, ok = details["categories"].([]any)
		}
	}
	if !ok {
		log.Printf("level=warn component=bills_service msg=\"plan list without categories\" service=%s product=%s", ps.service, product)
		return nil
	}

	now := time.Now().UTC()
	for _, entry := range categories {
		item, isMap := entry.(map[string]any)
		if !isMap {
			continue
		}

		code := stringField(item, "code")
		if code == nil {
			code = stringField(item, "plan_code")
		}
		if code == nil {
			continue
		}
		price, _ := amountKobo(item, "amount")
		name := stringField(item, "label")
		if name == nil {
			name = stringField(item, "name")
		}
		if name == nil {
			name = code
		}

		plan := &domain.Plan{
			Service:  ps.service,
			Provider: product,
			Code:     *code,
			Name:     *name,
			Price:    price,
			Meta:     item,
			SyncedAt: now,
		}
		if err := s.repo.UpsertPlan(ctx, plan); err != nil {
			return fmt.Errorf("upsert %s plan %s: %w", ps.service, plan.Code, err)
		}
	}
	return nil
}
