package memstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/subscription"
)

// Current implements subscription.Store.
func (s *Store) Current(_ context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(tenantID)
}

func (s *Store) current(tenantID uuid.UUID) (*subscription.Subscription, error) {
	var latest *subRow
	for _, row := range s.subs {
		if row.sub.TenantID != tenantID {
			continue
		}
		if latest == nil || row.seq > latest.seq {
			latest = row
		}
	}
	if latest == nil {
		return nil, apperr.NotFound("tenant has no subscription")
	}
	return latest.sub.Clone(), nil
}

// Create implements subscription.Store.
func (s *Store) Create(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTenant(sub.TenantID); err != nil {
		return err
	}
	for _, row := range s.subs {
		if row.sub.TenantID == sub.TenantID && !row.sub.Status.Terminal() {
			return subscription.ErrLiveSubscriptionExists
		}
	}
	if sub.Version == 0 {
		sub.Version = 1
	}
	s.subs[sub.ID] = &subRow{sub: *sub.Clone(), seq: s.nextSeq()}
	return nil
}

// Transact implements subscription.Store. Writes made through the Tx are
// undone when fn fails.
func (s *Store) Transact(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, tx subscription.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &subTx{s: s, tenantID: tenantID}
	if err := fn(ctx, tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

// DueForSweep implements subscription.Store.
func (s *Store) DueForSweep(_ context.Context, now time.Time, grace time.Duration) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var due []uuid.UUID
	for _, row := range s.subs {
		tid := row.sub.TenantID
		if seen[tid] {
			continue
		}
		seen[tid] = true
		cur, err := s.current(tid)
		if err != nil {
			continue
		}
		if isDue(cur, now, grace) {
			due = append(due, tid)
		}
	}
	slices.SortFunc(due, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return due, nil
}

func isDue(sub *subscription.Subscription, now time.Time, grace time.Duration) bool {
	if sub.Status.Terminal() {
		return false
	}
	if at, ok := sub.CancelAt(); ok && !now.Before(at) {
		return true
	}
	switch sub.Status {
	case subscription.StatusTrial:
		return now.After(sub.TrialEndsAt)
	case subscription.StatusPastDue:
		return sub.PastDueSince != nil && now.After(sub.PastDueSince.Add(grace))
	}
	return false
}

type subTx struct {
	s        *Store
	tenantID uuid.UUID
	undo     []func()
}

func (tx *subTx) LockCurrent(_ context.Context) (*subscription.Subscription, error) {
	return tx.s.current(tx.tenantID)
}

func (tx *subTx) Update(_ context.Context, sub *subscription.Subscription) error {
	row, ok := tx.s.subs[sub.ID]
	if !ok || row.sub.TenantID != tx.tenantID {
		return apperr.NotFound("subscription not found")
	}
	if row.sub.Version != sub.Version {
		return subscription.ErrConflict
	}
	prev := row.sub
	sub.Version++
	row.sub = *sub.Clone()
	tx.undo = append(tx.undo, func() { row.sub = prev })
	return nil
}

func (tx *subTx) EventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := tx.s.events[eventKey{tx.tenantID, eventID}]
	return ok, nil
}

func (tx *subTx) RecordEvent(_ context.Context, rec subscription.EventRecord) error {
	key := eventKey{tx.tenantID, rec.EventID}
	if _, ok := tx.s.events[key]; ok {
		return fmt.Errorf("memstore: event %q already recorded", rec.EventID)
	}
	rec.TenantID = tx.tenantID
	tx.s.events[key] = rec
	tx.undo = append(tx.undo, func() { delete(tx.s.events, key) })
	return nil
}

func (tx *subTx) OpenInvoice(_ context.Context, subscriptionID uuid.UUID) (*subscription.Invoice, error) {
	var newest *invoiceRow
	for _, row := range tx.s.invoices {
		if row.inv.TenantID != tx.tenantID || row.inv.SubscriptionID != subscriptionID || !row.inv.Status.Open() {
			continue
		}
		if newest == nil || row.seq > newest.seq {
			newest = row
		}
	}
	if newest == nil {
		return nil, nil
	}
	inv := newest.inv
	return &inv, nil
}

func (tx *subTx) SaveInvoice(_ context.Context, inv *subscription.Invoice) error {
	if inv.TenantID != tx.tenantID {
		return apperr.NotFound("invoice not found")
	}
	row, ok := tx.s.invoices[inv.ID]
	if !ok {
		tx.s.invoices[inv.ID] = &invoiceRow{inv: *inv, seq: tx.s.nextSeq()}
		id := inv.ID
		tx.undo = append(tx.undo, func() { delete(tx.s.invoices, id) })
		return nil
	}
	if row.inv.Status == subscription.InvoicePaid && inv.Status != subscription.InvoicePaid {
		return apperr.Validation("paid invoice %s cannot change status", inv.ID)
	}
	prev := row.inv
	row.inv = *inv
	tx.undo = append(tx.undo, func() { row.inv = prev })
	return nil
}

// Invoices lists a tenant's invoices, oldest first.
func (s *Store) Invoices(_ context.Context, tenantID uuid.UUID) ([]subscription.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]*invoiceRow, 0)
	for _, row := range s.invoices {
		if row.inv.TenantID == tenantID {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b *invoiceRow) int { return int(a.seq - b.seq) })
	out := make([]subscription.Invoice, len(rows))
	for i, row := range rows {
		out[i] = row.inv
	}
	return out, nil
}

// Events lists a tenant's applied event records.
func (s *Store) Events(_ context.Context, tenantID uuid.UUID) ([]subscription.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []subscription.EventRecord
	for key, rec := range s.events {
		if key.tenantID == tenantID {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b subscription.EventRecord) int { return a.AppliedAt.Compare(b.AppliedAt) })
	return out, nil
}
