package plan

// Resource is a count-bounded tenant resource.
type Resource string

const (
	ResourceUsers                Resource = "users"
	ResourceProfessionals        Resource = "professionals"
	ResourceClients              Resource = "clients"
	ResourceAppointmentsPerMonth Resource = "appointments_per_month"
	ResourceStorageMB            Resource = "storage_mb"
)

// Resources lists every resource a plan must declare a limit for.
var Resources = []Resource{
	ResourceUsers,
	ResourceProfessionals,
	ResourceClients,
	ResourceAppointmentsPerMonth,
	ResourceStorageMB,
}

// Unlimited marks a resource without a ceiling.
const Unlimited int64 = -1

// Feature is a capability tag enabled per plan.
type Feature string

const (
	FeatureOnlineBooking     Feature = "online_booking"
	FeatureReminders         Feature = "reminders"
	FeatureFinancialReports  Feature = "financial_reports"
	FeatureCommissionReports Feature = "commission_reports"
	FeatureInventory         Feature = "inventory"
	FeatureMultiLocation     Feature = "multi_location"
	FeatureAPIAccess         Feature = "api_access"
)

// Interval is the billing cycle of a plan.
type Interval string

const (
	IntervalMonthly   Interval = "monthly"
	IntervalQuarterly Interval = "quarterly"
	IntervalYearly    Interval = "yearly"
)

// Months returns the cycle length in months, or 0 for unknown intervals.
func (i Interval) Months() int {
	switch i {
	case IntervalMonthly:
		return 1
	case IntervalQuarterly:
		return 3
	case IntervalYearly:
		return 12
	default:
		return 0
	}
}

func (i Interval) Valid() bool { return i.Months() > 0 }
