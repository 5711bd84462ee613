package writegate

import "github.com/salonkit/billingcore/pkg/plan"

// ResourceKind is a family of tenant-scoped business records.
type ResourceKind string

const (
	KindAppointments     ResourceKind = "appointments"
	KindClients          ResourceKind = "clients"
	KindFinancialEntries ResourceKind = "financial_entries"
	KindFinancialExits   ResourceKind = "financial_exits"
	KindPaymentMethods   ResourceKind = "payment_methods"
	KindProducts         ResourceKind = "products"
	KindProfessionals    ResourceKind = "professionals"
	KindUsers            ResourceKind = "users"
)

// Kinds lists every gated kind.
var Kinds = []ResourceKind{
	KindAppointments,
	KindClients,
	KindFinancialEntries,
	KindFinancialExits,
	KindPaymentMethods,
	KindProducts,
	KindProfessionals,
	KindUsers,
}

// boundedBy maps count-bounded kinds to the plan resource that caps them.
var boundedBy = map[ResourceKind]plan.Resource{
	KindAppointments:  plan.ResourceAppointmentsPerMonth,
	KindClients:       plan.ResourceClients,
	KindProfessionals: plan.ResourceProfessionals,
	KindUsers:         plan.ResourceUsers,
}

func (k ResourceKind) valid() bool {
	switch k {
	case KindAppointments, KindClients, KindFinancialEntries, KindFinancialExits,
		KindPaymentMethods, KindProducts, KindProfessionals, KindUsers:
		return true
	default:
		return false
	}
}

// Resource returns the plan resource bounding k, if any.
func (k ResourceKind) Resource() (plan.Resource, bool) {
	res, ok := boundedBy[k]
	return res, ok
}
