package orders

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/orderbridge/orderbridge/internal/lineage"
	"github.com/orderbridge/orderbridge/internal/netsuite"
	"github.com/orderbridge/orderbridge/internal/notify"
	"github.com/orderbridge/orderbridge/internal/reporting"
	"github.com/orderbridge/orderbridge/internal/shared"
	"github.com/orderbridge/orderbridge/internal/workflow"
)

// ============================================================================
// FAKE ERP
// ============================================================================

type fakeGateway struct {
	mu sync.Mutex

	orders    map[string]*netsuite.SalesOrder
	lines     map[string][]netsuite.OrderLine
	addresses map[string][]netsuite.Address
	nextID    int

	headerPatches []netsuite.Patch
	linePatches   map[string][]netsuite.Patch
	createdOrders []netsuite.Patch
	createdLines  map[string][]netsuite.Patch
	deleted       []string

	// Error injection
	fetchLineErr     map[string]error
	patchHeaderErr   error
	patchLineErr     map[string]error
	createOrderErr   error
	createLineFailAt int
	createLineErr    error
	deleteErr        error
	addressErr       error
	linesErr         error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		orders:       map[string]*netsuite.SalesOrder{},
		lines:        map[string][]netsuite.OrderLine{},
		addresses:    map[string][]netsuite.Address{},
		nextID:       101,
		linePatches:  map[string][]netsuite.Patch{},
		createdLines: map[string][]netsuite.Patch{},
		fetchLineErr: map[string]error{},
		patchLineErr: map[string]error{},
	}
}

func lineHref(orderID string, n int) string {
	return fmt.Sprintf("https://erp.test/salesOrder/%s/item/%d", orderID, n)
}

func (g *fakeGateway) addOrder(order netsuite.SalesOrder, lines ...netsuite.OrderLine) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := order.ID.String()
	g.orders[id] = &order
	for i := range lines {
		if lines[i].Href == "" {
			lines[i].Href = lineHref(id, i+1)
		}
	}
	g.lines[id] = lines
}

func (g *fakeGateway) FetchOrder(_ context.Context, id string) (*netsuite.SalesOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return nil, netsuite.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (g *fakeGateway) FetchOrderLines(_ context.Context, id string) ([]netsuite.OrderLine, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.linesErr != nil {
		return nil, g.linesErr
	}
	if _, ok := g.orders[id]; !ok {
		return nil, netsuite.ErrNotFound
	}
	return append([]netsuite.OrderLine{}, g.lines[id]...), nil
}

func (g *fakeGateway) FetchLine(_ context.Context, href string) (*netsuite.OrderLine, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fetchLineErr[href]; err != nil {
		return nil, err
	}
	for _, lines := range g.lines {
		for _, l := range lines {
			if l.Href == href {
				cp := l
				return &cp, nil
			}
		}
	}
	return nil, netsuite.ErrNotFound
}

func (g *fakeGateway) PatchOrderHeader(_ context.Context, id string, changes netsuite.Patch) (netsuite.PatchResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.patchHeaderErr != nil {
		return netsuite.PatchResult{Status: 400}, g.patchHeaderErr
	}
	g.headerPatches = append(g.headerPatches, changes)
	o := g.orders[id]
	for k, v := range changes {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "memo":
			o.Memo = netsuite.Text(s)
		case "otherRefNum":
			o.OtherRefNum = netsuite.Text(s)
		case "tranDate":
			o.TranDate = netsuite.Text(s)
		case "custbody_ar_all_memo":
			o.AllMemo = netsuite.Text(s)
		}
	}
	return netsuite.PatchResult{Success: true, Status: 204}, nil
}

func (g *fakeGateway) PatchOrderLine(_ context.Context, href string, changes netsuite.Patch) (netsuite.PatchResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.patchLineErr[href]; err != nil {
		return netsuite.PatchResult{Status: 400}, err
	}
	g.linePatches[href] = append(g.linePatches[href], changes)
	for id, lines := range g.lines {
		for i := range lines {
			if lines[i].Href != href {
				continue
			}
			if q, ok := changes["quantity"].(float64); ok {
				g.lines[id][i].Quantity = netsuite.Text(strconv.FormatFloat(q, 'f', -1, 64))
			}
			if d, ok := changes["description"].(string); ok {
				g.lines[id][i].Description = netsuite.Text(d)
			}
		}
	}
	return netsuite.PatchResult{Success: true, Status: 204}, nil
}

func (g *fakeGateway) CreateOrder(_ context.Context, header netsuite.Patch) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createOrderErr != nil {
		return "", g.createOrderErr
	}
	id := strconv.Itoa(g.nextID)
	g.nextID++
	g.createdOrders = append(g.createdOrders, header)
	memo, _ := header["memo"].(string)
	g.orders[id] = &netsuite.SalesOrder{ID: netsuite.Text(id), Memo: netsuite.Text(memo)}
	return id, nil
}

func (g *fakeGateway) CreateOrderLine(_ context.Context, orderID string, line netsuite.Patch) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createdLines[orderID] = append(g.createdLines[orderID], line)
	if g.createLineFailAt > 0 && len(g.createdLines[orderID]) == g.createLineFailAt {
		return g.createLineErr
	}
	l := netsuite.OrderLine{Href: lineHref(orderID, len(g.lines[orderID])+1)}
	if ref, ok := line["item"].(netsuite.RefPatch); ok {
		l.Item = &netsuite.Ref{ID: netsuite.Text(strconv.FormatInt(ref.ID, 10))}
	}
	if q, ok := line["quantity"].(float64); ok {
		l.Quantity = netsuite.Text(strconv.FormatFloat(q, 'f', -1, 64))
	}
	g.lines[orderID] = append(g.lines[orderID], l)
	return nil
}

func (g *fakeGateway) DeleteOrderLine(_ context.Context, href string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deleteErr != nil {
		return g.deleteErr
	}
	g.deleted = append(g.deleted, href)
	for id, lines := range g.lines {
		kept := lines[:0]
		for _, l := range lines {
			if l.Href != href {
				kept = append(kept, l)
			}
		}
		g.lines[id] = kept
	}
	return nil
}

func (g *fakeGateway) FetchCustomerAddresses(_ context.Context, customerID string) ([]netsuite.Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.addressErr != nil {
		return nil, g.addressErr
	}
	return g.addresses[customerID], nil
}

func (g *fakeGateway) lineQuantity(orderID, href string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, l := range g.lines[orderID] {
		if l.Href == href {
			return l.Quantity.String(), true
		}
	}
	return "", false
}

// ============================================================================
// FAKE STORES
// ============================================================================

type fakeLineage struct {
	mu      sync.Mutex
	records []lineage.SplitRecord
	err     error
}

func (f *fakeLineage) RecordSplit(_ context.Context, rec *lineage.SplitRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeLineage) HistoryFor(_ context.Context, orderID string) ([]lineage.SplitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []lineage.SplitRecord
	for i := len(f.records) - 1; i >= 0; i-- {
		rec := f.records[i]
		if rec.ParentOrderID == orderID || rec.ChildOrderID == orderID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fixedNumbers struct {
	number string
}

func (f fixedNumbers) Next(context.Context) string { return f.number }

type fakeWorkflow struct {
	assignments []workflow.Assignment
	recipients  map[string][]workflow.Recipient
	saveErr     error
	latestErr   error
}

func (f *fakeWorkflow) SaveAssignment(_ context.Context, a *workflow.Assignment) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.assignments = append(f.assignments, *a)
	return nil
}

func (f *fakeWorkflow) LatestAssignment(_ context.Context, orderID string) (*workflow.Assignment, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	for i := len(f.assignments) - 1; i >= 0; i-- {
		if f.assignments[i].OrderID == orderID {
			a := f.assignments[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (f *fakeWorkflow) DepartmentRecipients(_ context.Context, departments []string) ([]workflow.Recipient, error) {
	var out []workflow.Recipient
	for _, d := range departments {
		out = append(out, f.recipients[d]...)
	}
	return out, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type fakeAudit struct {
	entries []shared.AuditLog
	err     error
}

func (a *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, log)
	return nil
}

type fakeIdempotency struct {
	keys    map[string]bool
	deleted []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]bool{}}
}

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	k := module + "/" + key
	if f.keys[k] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[k] = true
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, key, module string) error {
	k := module + "/" + key
	delete(f.keys, k)
	f.deleted = append(f.deleted, k)
	return nil
}

type fakeReference struct {
	venio      map[string]string
	locations  []reporting.Location
	conditions []reporting.Condition
	items      map[string]reporting.Item
	err        error
}

func (f *fakeReference) VenioSONumber(_ context.Context, id string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.venio[id], nil
}

func (f *fakeReference) Locations(context.Context) ([]reporting.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.locations, nil
}

func (f *fakeReference) Conditions(context.Context) ([]reporting.Condition, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conditions, nil
}

func (f *fakeReference) ItemMap(_ context.Context, ids []string) (map[string]reporting.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]reporting.Item{}
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

// ============================================================================
// FIXTURE
// ============================================================================

type fixture struct {
	gateway     *fakeGateway
	lineage     *fakeLineage
	workflow    *fakeWorkflow
	publisher   *recordingPublisher
	audit       *fakeAudit
	idempotency *fakeIdempotency
	reference   *fakeReference
	service     *Service
}

func newFixture() *fixture {
	f := &fixture{
		gateway:     newFakeGateway(),
		lineage:     &fakeLineage{},
		workflow:    &fakeWorkflow{recipients: map[string][]workflow.Recipient{}},
		publisher:   &recordingPublisher{},
		audit:       &fakeAudit{},
		idempotency: newFakeIdempotency(),
		reference:   &fakeReference{venio: map[string]string{}, items: map[string]reporting.Item{}},
	}
	f.service = NewService(ServiceParams{
		Gateway:          f.gateway,
		Lineage:          f.lineage,
		Numbers:          fixedNumbers{number: "SOV2405001"},
		Workflow:         f.workflow,
		Publisher:        f.publisher,
		Audit:            f.audit,
		Idempotency:      f.idempotency,
		Reference:        f.reference,
		CoordinationChat: []string{"coord-1"},
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func itemRef(id string) *netsuite.Ref {
	return &netsuite.Ref{ID: netsuite.Text(id), RefName: "Item " + id}
}

var errRemote = &netsuite.RemoteError{Status: 400, Message: "Invalid field value"}
