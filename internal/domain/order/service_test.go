package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/customer"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/discount"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/employee"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/fault"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/product"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/table"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/txn"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/notify"
)

// --- Mock implementations ---

// mockOrderRepo guards its state with a mutex and enforces the store's
// partial unique index: at most one non-terminal order per table or group.
type mockOrderRepo struct {
	mu        sync.Mutex
	byID      map[string]*Order
	taken     map[string]bool // order numbers
	updateErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		byID:  make(map[string]*Order),
		taken: make(map[string]bool),
	}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken[o.Number] {
		return ErrNumberTaken
	}
	for _, ex := range m.byID {
		if ex.Status.Terminal() {
			continue
		}
		if o.TableID != "" && ex.TableID == o.TableID {
			return fault.Conflict("table %s already has an active order", o.TableID)
		}
		if o.TableGroupID != "" && ex.TableGroupID == o.TableGroupID {
			return fault.Conflict("table group %s already has an active order", o.TableGroupID)
		}
	}
	cp := *o
	m.byID[o.ID] = &cp
	m.taken[o.Number] = true
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, o *Order, from Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.byID[o.ID]
	if !ok || stored.Status != from {
		return ErrStale
	}
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) UpdateDiscount(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) CountActiveByTable(_ context.Context, tableID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.byID {
		if o.TableID == tableID && !o.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (m *mockOrderRepo) CountActiveByGroup(_ context.Context, groupID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.byID {
		if o.TableGroupID == groupID && !o.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	seen := make(map[string]bool)
	for _, id := range ids {
		if p, ok := m.byID[id]; ok && !seen[id] {
			out = append(out, p)
			seen[id] = true
		}
	}
	return out, nil
}

type mockCustomerRepo struct {
	byID map[string]*customer.Customer
}

func (m *mockCustomerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

type mockEmployeeRepo struct {
	byID map[string]*employee.Employee
}

func (m *mockEmployeeRepo) GetByID(_ context.Context, id string) (*employee.Employee, error) {
	e, ok := m.byID[id]
	if !ok {
		return nil, employee.ErrNotFound
	}
	return e, nil
}

type mockDiscountRepo struct {
	mu       sync.Mutex
	byCode   map[string]*discount.Discount
	consumed int
	released int
}

func (m *mockDiscountRepo) FindByCode(_ context.Context, code string) (*discount.Discount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byCode[code]
	if !ok {
		return nil, discount.ErrNotFound
	}
	return d, nil
}

func (m *mockDiscountRepo) ConsumeUse(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed++
	return nil
}

func (m *mockDiscountRepo) ReleaseUse(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
	return nil
}

type mockTableRepo struct {
	mu     sync.Mutex
	tables map[string]*table.Table
}

func (m *mockTableRepo) GetByID(_ context.Context, id string) (*table.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return nil, table.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTableRepo) GetByIDs(_ context.Context, ids []string) ([]table.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []table.Table
	for _, id := range ids {
		if t, ok := m.tables[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTableRepo) List(_ context.Context) ([]table.Table, error) { return nil, nil }

func (m *mockTableRepo) UpdateStatus(_ context.Context, id string, status table.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return table.ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *mockTableRepo) CreateGroup(_ context.Context, _ *table.Group) error { return nil }

func (m *mockTableRepo) GetGroup(_ context.Context, _ string) (*table.Group, error) {
	return nil, table.ErrGroupNotFound
}

func (m *mockTableRepo) GroupedTableIDs(_ context.Context, _ []string) ([]string, error) {
	return nil, nil
}

func (m *mockTableRepo) MarkDissolved(_ context.Context, _ string, _ time.Time) error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// --- Test fixture ---

type fixture struct {
	svc       *Service
	orders    *mockOrderRepo
	discounts *mockDiscountRepo
	tables    *mockTableRepo
	events    *recordingPublisher
}

var testNow = time.Date(2025, 6, 14, 18, 30, 0, 0, time.UTC)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &mockProductRepo{byID: map[string]product.Product{
		"pho":  {ID: "pho", Name: "Pho Bo", Category: "noodles", Price: dec(65000), Active: true},
		"tea":  {ID: "tea", Name: "Tra Da", Category: "drinks", Price: dec(5000), Active: true},
		"gone": {ID: "gone", Name: "Retired", Category: "rice", Price: dec(40000), Active: false},
	}}
	customers := &mockCustomerRepo{byID: map[string]*customer.Customer{
		"cust-1":   {ID: "cust-1", Name: "A", Tier: customer.TierStandard, Active: true},
		"cust-vip": {ID: "cust-vip", Name: "V", Tier: customer.TierVIP, Active: true},
		"cust-off": {ID: "cust-off", Name: "X", Tier: customer.TierStandard, Active: false},
	}}
	employees := &mockEmployeeRepo{byID: map[string]*employee.Employee{
		"emp-1": {ID: "emp-1", Name: "E", Roles: []string{"cashier"}, Active: true},
	}}
	discounts := &mockDiscountRepo{byCode: map[string]*discount.Discount{
		"SALE10": {
			ID: "d-sale10", Code: "SALE10", Type: discount.TypePercentage,
			Value:          dec(10),
			MinOrderAmount: dec(100000),
			MaxDiscount:    dec(20000),
			Active:         true,
		},
	}}
	tables := &mockTableRepo{tables: map[string]*table.Table{
		"t1": {ID: "t1", Number: 1, Status: table.StatusAvailable},
		"t2": {ID: "t2", Number: 2, Status: table.StatusAvailable},
	}}
	orders := newMockOrderRepo()
	events := &recordingPublisher{}

	engine := discount.NewEngine(discounts, nil, 0)
	coordinator := table.NewCoordinator(tables, orders, txn.Passthrough, notify.Nop{})

	svc := NewService(
		orders, products, customers, employees,
		engine, discounts, coordinator, txn.Passthrough, events,
		Pricing{TaxRate: dec(8), DeliveryFee: dec(15000), Scale: 0},
	)
	svc.now = func() time.Time { return testNow }

	return &fixture{
		svc:       svc,
		orders:    orders,
		discounts: discounts,
		tables:    tables,
		events:    events,
	}
}

func takeawayRequest() CreateRequest {
	return CreateRequest{
		CustomerID: "cust-1",
		Channel:    ChannelTakeaway,
		Items: []ItemRequest{
			{ProductID: "pho", Quantity: 2},
			{ProductID: "tea", Quantity: 3},
		},
	}
}

// --- Tests ---

func TestCreate_TotalsInvariant(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Create(context.Background(), takeawayRequest())
	require.NoError(t, err)

	// 2x65000 + 3x5000 = 145000 subtotal, 8% tax = 11600.
	assert.True(t, o.Subtotal.Equal(dec(145000)), "subtotal %s", o.Subtotal)
	assert.True(t, o.Tax.Equal(dec(11600)), "tax %s", o.Tax)
	assert.True(t, o.DeliveryFee.IsZero())
	assert.True(t, o.DiscountAmount.IsZero())
	assert.True(t, o.Total.Equal(dec(156600)), "total %s", o.Total)

	assert.Equal(t, StatusPending, o.Status)
	assert.Regexp(t, `^ORD-20250614-\d{6}$`, o.Number)
	assert.Equal(t, testNow, o.CreatedAt)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "Pho Bo", o.Items[0].Name)
	assert.True(t, o.Items[0].LineTotal.Equal(dec(130000)))

	require.Len(t, f.events.events, 1)
	assert.Equal(t, notify.EventOrderCreated, f.events.events[0].Type)
}

func TestCreate_DeliveryFeeOnlyForDelivery(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.Channel = ChannelDelivery

	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, o.DeliveryFee.Equal(dec(15000)))
	assert.True(t, o.Total.Equal(dec(171600)), "total %s", o.Total)
}

func TestCreate_WithDiscount(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.DiscountCode = "SALE10"

	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	// 10% of 145000 is 14500, below the 20000 cap.
	assert.Equal(t, "SALE10", o.DiscountCode)
	assert.True(t, o.DiscountAmount.Equal(dec(14500)), "discount %s", o.DiscountAmount)
	assert.True(t, o.Total.Equal(dec(142100)), "total %s", o.Total)
	assert.Equal(t, 1, f.discounts.consumed)
}

func TestCreate_ValidationFailures(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{name: "missing customer", mutate: func(r *CreateRequest) { r.CustomerID = "" }},
		{name: "unknown channel", mutate: func(r *CreateRequest) { r.Channel = "drive_through" }},
		{name: "no items", mutate: func(r *CreateRequest) { r.Items = nil }},
		{name: "zero quantity", mutate: func(r *CreateRequest) { r.Items[0].Quantity = 0 }},
		{name: "takeaway with table", mutate: func(r *CreateRequest) { r.TableID = "t1" }},
		{name: "table and group", mutate: func(r *CreateRequest) {
			r.Channel = ChannelDineIn
			r.TableID = "t1"
			r.TableGroupID = "g1"
		}},
		{name: "dine-in without seat", mutate: func(r *CreateRequest) { r.Channel = ChannelDineIn }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := takeawayRequest()
			tt.mutate(&req)

			_, err := f.svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.True(t, fault.IsKind(err, fault.KindValidation), "got %v", err)
		})
	}
}

func TestCreate_UnknownCustomer(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.CustomerID = "ghost"

	_, err := f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestCreate_InactiveCustomer(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.CustomerID = "cust-off"

	_, err := f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestCreate_InactiveProduct(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.Items = []ItemRequest{{ProductID: "gone", Quantity: 1}}

	_, err := f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestCreate_DineInClaimsTable(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.Channel = ChannelDineIn
	req.TableID = "t1"

	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "t1", o.TableID)
	assert.Equal(t, table.StatusOccupied, f.tables.tables["t1"].Status)

	// The same table cannot host a second active order.
	_, err = f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindConflict))
}

func TestCreate_ConcurrentSameTable(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.Channel = ChannelDineIn
	req.TableID = "t1"

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case fault.IsKind(err, fault.KindConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one concurrent order may claim the table")
	assert.Equal(t, attempts-1, conflicts)
}

func TestCreate_RegeneratesNumberOnCollision(t *testing.T) {
	f := newFixture(t)

	numbers := []string{"ORD-20250614-000001", "ORD-20250614-000001", "ORD-20250614-000002"}
	f.svc.newNumber = func(time.Time) string {
		n := numbers[0]
		if len(numbers) > 1 {
			numbers = numbers[1:]
		}
		return n
	}

	first, err := f.svc.Create(context.Background(), takeawayRequest())
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250614-000001", first.Number)

	second, err := f.svc.Create(context.Background(), takeawayRequest())
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250614-000002", second.Number)
}

func TestTransition_ForwardPath(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Create(context.Background(), takeawayRequest())
	require.NoError(t, err)

	for _, target := range []Status{StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered} {
		o, err = f.svc.Transition(context.Background(), o.ID, target)
		require.NoError(t, err, "to %s", target)
		assert.Equal(t, target, o.Status)
	}

	assert.Equal(t, testNow, *o.ConfirmedAt)
	assert.Equal(t, testNow, *o.DeliveredAt)
}

func TestTransition_IllegalEdges(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		set    Status
		target Status
	}{
		{name: "pending skips to ready", set: StatusPending, target: StatusReady},
		{name: "pending skips to delivered", set: StatusPending, target: StatusDelivered},
		{name: "ready backwards to confirmed", set: StatusReady, target: StatusConfirmed},
		{name: "delivered to cancelled", set: StatusDelivered, target: StatusCancelled},
		{name: "cancelled to confirmed", set: StatusCancelled, target: StatusConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := f.svc.Create(context.Background(), takeawayRequest())
			require.NoError(t, err)

			f.orders.mu.Lock()
			f.orders.byID[o.ID].Status = tt.set
			f.orders.mu.Unlock()

			_, err = f.svc.Transition(context.Background(), o.ID, tt.target)
			require.Error(t, err)
			assert.True(t, fault.IsKind(err, fault.KindState), "got %v", err)
		})
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), "any", "vaporized")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestTransition_StaleReadIsConflict(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Create(context.Background(), takeawayRequest())
	require.NoError(t, err)

	// Another terminal confirms the order between our read and our guarded
	// write, so the guard misses.
	f.orders.updateErr = ErrStale

	_, err = f.svc.Transition(context.Background(), o.ID, StatusConfirmed)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindConflict))
}

func TestTransition_CancelReleasesDiscountUse(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.DiscountCode = "SALE10"

	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, f.discounts.consumed)

	_, err = f.svc.Transition(context.Background(), o.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 1, f.discounts.released)
}

func TestTransition_TerminalDineInFreesTable(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.Channel = ChannelDineIn
	req.TableID = "t1"

	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, table.StatusOccupied, f.tables.tables["t1"].Status)

	_, err = f.svc.Transition(context.Background(), o.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, table.StatusAvailable, f.tables.tables["t1"].Status)

	// The freed table can host a new order.
	_, err = f.svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestApplyDiscount(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Create(context.Background(), takeawayRequest())
	require.NoError(t, err)

	o, err = f.svc.ApplyDiscount(context.Background(), o.ID, "SALE10")
	require.NoError(t, err)

	assert.Equal(t, "SALE10", o.DiscountCode)
	assert.True(t, o.DiscountAmount.Equal(dec(14500)))
	assert.True(t, o.Total.Equal(dec(142100)), "total %s", o.Total)
	assert.Equal(t, 1, f.discounts.consumed)
}

func TestApplyDiscount_SameCodeIsIdempotent(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.DiscountCode = "SALE10"

	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.ApplyDiscount(context.Background(), o.ID, "SALE10")
	require.NoError(t, err)
	assert.Equal(t, 1, f.discounts.consumed, "re-applying must not consume another use")
}

func TestApplyDiscount_DifferentCodeConflicts(t *testing.T) {
	f := newFixture(t)

	req := takeawayRequest()
	req.DiscountCode = "SALE10"

	o, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.ApplyDiscount(context.Background(), o.ID, "OTHER")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindConflict))
}

func TestApplyDiscount_OnlyPendingOrders(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Create(context.Background(), takeawayRequest())
	require.NoError(t, err)

	_, err = f.svc.Transition(context.Background(), o.ID, StatusConfirmed)
	require.NoError(t, err)

	_, err = f.svc.ApplyDiscount(context.Background(), o.ID, "SALE10")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindState))
}

func TestGet_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}
