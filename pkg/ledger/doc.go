// Package ledger holds a salon's own money in and out: financial entries,
// exits, payment methods and the commission roster, together with the reports
// computed over them.
//
// All reads and writes go through Repository, whose every method takes the
// tenant ID first and filters on it. Soft-deleted rows are invisible unless a
// filter asks for them.
//
// Aggregator produces the tenant reports. Summarize groups by status and by
// payment method, omitting methods without rows. RevenueByPeriod instead
// returns a dense calendar series with zero rows for empty periods, since it
// feeds charts. CommissionByProfessional lists every active professional,
// including those without appointments.
//
// Service is the write side used by business handlers. Each call is admitted
// by the write gate before it touches the repository: recording an entry, an
// exit or a payment method goes through AuthorizeCreate, while settling,
// cancelling, editing and deleting go through AuthorizeWrite.
//
// # Usage
//
//	agg := ledger.NewAggregator(store, log)
//
//	summary, err := agg.Summarize(ctx, tenantID, ledger.Window{
//		From: ledger.Day(monthStart),
//		To:   ledger.Day(monthEnd),
//	})
//	series, err := agg.RevenueByPeriod(ctx, tenantID, start, end, ledger.GranularityWeek)
//	commissions, err := agg.CommissionByProfessional(ctx, tenantID, start, end)
//
//	svc := ledger.NewService(store, gate, ledger.WithServiceLogger(log))
//	entry, err := svc.RecordEntry(ctx, tenantID, ledger.EntryInput{
//		Description: "Haircut",
//		Amount:      decimal.RequireFromString("80.00"),
//		Date:        time.Now(),
//	})
//
// Amounts are shopspring/decimal values end to end; nothing is rounded
// before a report is built.
//
// # Gate counters
//
// Counters returns the writegate options counting the resources this store
// owns, professionals and the current month's appointments. The user and
// client counters come from their own services.
package ledger
