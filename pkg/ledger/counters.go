package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/billingcore/pkg/plan"
	"github.com/salonkit/billingcore/pkg/writegate"
)

// Counters returns write-gate options that count the plan resources the
// ledger store owns: professionals and this month's appointments. Users and
// clients live elsewhere; writegate.New rejects a gate built without their
// counters.
func Counters(w Writer, now func() time.Time) []writegate.Option {
	if now == nil {
		now = time.Now
	}
	return []writegate.Option{
		writegate.WithCounter(plan.ResourceProfessionals, w.CountProfessionals),
		writegate.WithCounter(plan.ResourceAppointmentsPerMonth, func(ctx context.Context, tenantID uuid.UUID) (int64, error) {
			return w.CountAppointmentsInMonth(ctx, tenantID, now())
		}),
	}
}
