// Package memstore is an in-memory implementation of every repository
// contract of the billing core. It backs the package tests and local runs;
// pgstore is the production implementation. Both pass the storetest suite.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/ledger"
	"github.com/salonkit/billingcore/pkg/platform"
	"github.com/salonkit/billingcore/pkg/subscription"
	"github.com/salonkit/billingcore/pkg/tenant"
)

type subRow struct {
	sub subscription.Subscription
	seq int64
}

type invoiceRow struct {
	inv subscription.Invoice
	seq int64
}

type eventKey struct {
	tenantID uuid.UUID
	eventID  string
}

// Store keeps all rows in maps behind one mutex. A transaction holds the
// mutex for its whole duration, which serializes writers the way a row lock
// would.
type Store struct {
	mu  sync.Mutex
	seq int64

	tenants       map[uuid.UUID]tenant.Tenant
	subs          map[uuid.UUID]*subRow
	invoices      map[uuid.UUID]*invoiceRow
	events        map[eventKey]subscription.EventRecord
	entries       map[uuid.UUID]ledger.Entry
	exits         map[uuid.UUID]ledger.Exit
	methods       map[uuid.UUID]ledger.PaymentMethod
	professionals map[uuid.UUID]ledger.Professional
	appointments  map[uuid.UUID]ledger.Appointment
	snapshots     map[string]platform.MRRSnapshot
}

var (
	_ subscription.Store = (*Store)(nil)
	_ ledger.Repository  = (*Store)(nil)
	_ platform.Store     = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		tenants:       make(map[uuid.UUID]tenant.Tenant),
		subs:          make(map[uuid.UUID]*subRow),
		invoices:      make(map[uuid.UUID]*invoiceRow),
		events:        make(map[eventKey]subscription.EventRecord),
		entries:       make(map[uuid.UUID]ledger.Entry),
		exits:         make(map[uuid.UUID]ledger.Exit),
		methods:       make(map[uuid.UUID]ledger.PaymentMethod),
		professionals: make(map[uuid.UUID]ledger.Professional),
		appointments:  make(map[uuid.UUID]ledger.Appointment),
		snapshots:     make(map[string]platform.MRRSnapshot),
	}
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// CreateTenant registers a tenant. Slugs are unique.
func (s *Store) CreateTenant(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	for _, existing := range s.tenants {
		if existing.Slug == t.Slug || existing.ID == t.ID {
			return apperr.Validation("tenant %q already exists", t.Slug)
		}
	}
	s.tenants[t.ID] = *t
	return nil
}

// GetTenant returns a tenant by ID.
func (s *Store) GetTenant(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, apperr.NotFound("tenant not found")
	}
	return &t, nil
}

func (s *Store) requireTenant(id uuid.UUID) error {
	if _, ok := s.tenants[id]; !ok {
		return apperr.NotFound("tenant not found")
	}
	return nil
}
