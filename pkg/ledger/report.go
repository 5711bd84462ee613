package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Total is a sum with the number of rows behind it.
type Total struct {
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

func (t Total) add(o Total) Total {
	return Total{Total: t.Total.Add(o.Total), Count: t.Count + o.Count}
}

// StatusTotals maps a status to its totals. Statuses without rows are absent.
type StatusTotals map[Status]Total

// StatusGroup is the paid/pending split of one side of the ledger.
type StatusGroup struct {
	Paid    Total `json:"paid"`
	Pending Total `json:"pending"`
}

// MethodTotal is the paid-entry total of one payment method.
type MethodTotal struct {
	PaymentMethodID uuid.UUID       `json:"payment_method_id"`
	Name            string          `json:"name"`
	Total           decimal.Decimal `json:"total"`
	Count           int64           `json:"count"`
}

// DayTotal is the paid-entry total of one calendar day.
type DayTotal struct {
	Day   time.Time       `json:"day"`
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

// ProfessionalRevenue is the completed-appointment revenue of one professional.
type ProfessionalRevenue struct {
	ProfessionalID uuid.UUID       `json:"professional_id"`
	Name           string          `json:"name"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Revenue        decimal.Decimal `json:"revenue"`
	Appointments   int64           `json:"appointments"`
}

// Summary is the tenant's ledger overview for a window.
type Summary struct {
	Window          Window          `json:"-"`
	Entries         StatusGroup     `json:"entries"`
	Exits           StatusGroup     `json:"exits"`
	ByPaymentMethod []MethodTotal   `json:"by_payment_method"`
	Profit          decimal.Decimal `json:"profit"`
}

// Granularity of a revenue series.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// PeriodRevenue is one row of a revenue series.
type PeriodRevenue struct {
	Period           time.Time       `json:"period"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TransactionCount int64           `json:"transaction_count"`
}

// Commission is one professional's row of the commission report.
type Commission struct {
	ProfessionalID  uuid.UUID       `json:"professional_id"`
	Name            string          `json:"name"`
	CommissionRate  decimal.Decimal `json:"commission_rate"`
	Appointments    int64           `json:"appointments"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}
