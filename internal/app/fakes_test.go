package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paynest/bills-service/internal/domain"
	"github.com/paynest/bills-service/internal/store"
	"github.com/paynest/bills-service/pkg/rabbitmq"
	"github.com/paynest/bills-service/pkg/redbiller"
)

// fakeRepo is an in-memory store.Repository for exercising the orchestrators.
type fakeRepo struct {
	mu     sync.Mutex
	nextID int64

	bills     map[string]*domain.BillTransaction // by reference
	plans     map[string]*domain.Plan            // by service|provider|code
	tokens    map[int64][]domain.ElectricityToken
	pinHashes map[uuid.UUID]string

	createErr error
	updates   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		bills:     map[string]*domain.BillTransaction{},
		plans:     map[string]*domain.Plan{},
		tokens:    map[int64][]domain.ElectricityToken{},
		pinHashes: map[uuid.UUID]string{},
	}
}

func planKey(service, provider, code string) string {
	return service + "|" + provider + "|" + code
}

func (f *fakeRepo) CreateBillTransaction(ctx context.Context, tx *domain.BillTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.bills[tx.Reference]; exists {
		return store.ErrDuplicateReference
	}
	f.nextID++
	tx.ID = f.nextID
	tx.CreatedAt = time.Now()
	tx.UpdatedAt = tx.CreatedAt
	copied := *tx
	f.bills[tx.Reference] = &copied
	return nil
}

func (f *fakeRepo) UpdateBillTransaction(ctx context.Context, tx *domain.BillTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, exists := f.bills[tx.Reference]
	if !exists {
		return store.ErrBillNotFound
	}
	f.updates++
	copied := *tx
	copied.CreatedAt = stored.CreatedAt
	copied.UpdatedAt = time.Now()
	f.bills[tx.Reference] = &copied
	return nil
}

func (f *fakeRepo) FindBillByReference(ctx context.Context, reference string) (*domain.BillTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, exists := f.bills[reference]
	if !exists {
		return nil, store.ErrBillNotFound
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeRepo) ListBillTransactions(ctx context.Context, userID uuid.UUID, service, status string, limit, offset int) ([]domain.BillTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BillTransaction
	for _, tx := range f.bills {
		if tx.UserID != userID {
			continue
		}
		if service != "" && tx.Service != service {
			continue
		}
		if status != "" && tx.Status != status {
			continue
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (f *fakeRepo) FindPlans(ctx context.Context, service, provider string, syncedAfter time.Time) ([]domain.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Plan
	for _, plan := range f.plans {
		if plan.Service != service || plan.Provider != provider {
			continue
		}
		if plan.SyncedAt.Before(syncedAfter) {
			continue
		}
		out = append(out, *plan)
	}
	return out, nil
}

func (f *fakeRepo) FindPlanByCode(ctx context.Context, service, provider, code string) (*domain.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan, exists := f.plans[planKey(service, provider, code)]
	if !exists {
		return nil, store.ErrPlanNotFound
	}
	copied := *plan
	return &copied, nil
}

func (f *fakeRepo) UpsertPlan(ctx context.Context, plan *domain.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := planKey(plan.Service, plan.Provider, plan.Code)
	if existing, exists := f.plans[key]; exists {
		plan.ID = existing.ID
	} else {
		f.nextID++
		plan.ID = f.nextID
	}
	copied := *plan
	f.plans[key] = &copied
	return nil
}

func (f *fakeRepo) UpsertElectricityToken(ctx context.Context, token *domain.ElectricityToken) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.tokens[token.BillTransactionID] {
		if existing.Token == token.Token {
			return false, nil
		}
	}
	f.nextID++
	token.ID = f.nextID
	token.CreatedAt = time.Now()
	f.tokens[token.BillTransactionID] = append(f.tokens[token.BillTransactionID], *token)
	return true, nil
}

func (f *fakeRepo) FindTokensByTransaction(ctx context.Context, billTransactionID int64) ([]domain.ElectricityToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ElectricityToken(nil), f.tokens[billTransactionID]...), nil
}

func (f *fakeRepo) GetUserPINHash(ctx context.Context, userID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, exists := f.pinHashes[userID]
	if !exists || hash == "" {
		return "", store.ErrPINNotSet
	}
	return hash, nil
}

// fakeWalletRepo records credits and maintains a balance chain per key.
type fakeWalletRepo struct {
	mu       sync.Mutex
	nextID   int64
	balances map[string]decimal.Decimal // user|currency
	entries  []domain.WalletTransaction
	refs     map[string]bool

	creditErr error
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{
		balances: map[string]decimal.Decimal{},
		refs:     map[string]bool{},
	}
}

func (f *fakeWalletRepo) Credit(ctx context.Context, params store.WalletCreditParams) (*domain.WalletTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditErr != nil {
		return nil, f.creditErr
	}
	if f.refs[params.Reference] {
		return nil, store.ErrDuplicateReference
	}
	key := params.UserID.String() + "|" + params.Currency
	before := f.balances[key].Round(2)
	after := before.Add(params.Amount).Round(2)
	f.balances[key] = after
	f.refs[params.Reference] = true
	f.nextID++
	entry := domain.WalletTransaction{
		ID:            f.nextID,
		WalletID:      1,
		UserID:        params.UserID,
		ProcessedBy:   params.ProcessedBy,
		Type:          domain.WalletTxnCredit,
		Amount:        params.Amount.Round(2),
		BalanceBefore: before,
		BalanceAfter:  after,
		Reference:     params.Reference,
		Description:   params.Description,
		Metadata:      params.Metadata,
		CreatedAt:     time.Now(),
	}
	f.entries = append(f.entries, entry)
	return &entry, nil
}

func (f *fakeWalletRepo) FindWalletByUserID(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := userID.String() + "|" + currency
	balance, exists := f.balances[key]
	if !exists {
		return nil, store.ErrWalletNotFound
	}
	return &domain.Wallet{ID: 1, UserID: userID, Currency: currency, Balance: balance}, nil
}

// providerCall records one outbound request to the fake gateway.
type providerCall struct {
	area      string
	operation string
	payload   map[string]any
}

// fakeProvider replays scripted envelopes keyed by "area.operation".
type fakeProvider struct {
	mu        sync.Mutex
	responses map[string][]redbiller.Response
	calls     []providerCall
	err       error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{responses: map[string][]redbiller.Response{}}
}

func (f *fakeProvider) respond(area, operation string, resp redbiller.Response) {
	key := area + "." + operation
	f.responses[key] = append(f.responses[key], resp)
}

func (f *fakeProvider) Call(ctx context.Context, area, operation string, payload map[string]any) (redbiller.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{area: area, operation: operation, payload: payload})
	if f.err != nil {
		return redbiller.Response{}, f.err
	}
	key := area + "." + operation
	queued := f.responses[key]
	if len(queued) == 0 {
		return redbiller.Response{}, fmt.Errorf("no scripted response for %s", key)
	}
	resp := queued[0]
	if len(queued) > 1 {
		f.responses[key] = queued[1:]
	}
	return resp, nil
}

func (f *fakeProvider) callCount(area, operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.calls {
		if call.area == area && call.operation == operation {
			count++
		}
	}
	return count
}

// fakePublisher records published events.
type fakePublisher struct {
	mu           sync.Mutex
	billEvents   []rabbitmq.BillPurchaseEvent
	walletEvents []rabbitmq.WalletFundedEvent
}

func (f *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (f *fakePublisher) PublishBillPurchaseEvent(ctx context.Context, event rabbitmq.BillPurchaseEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.billEvents = append(f.billEvents, event)
	return nil
}

func (f *fakePublisher) PublishWalletFundedEvent(ctx context.Context, event rabbitmq.WalletFundedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walletEvents = append(f.walletEvents, event)
	return nil
}

func (f *fakePublisher) Close() {}
