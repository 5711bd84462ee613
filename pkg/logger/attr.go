package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". Nil errors produce an empty attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TenantID records the acting tenant.
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// SubscriptionID records a subscription identifier.
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

// Status records a subscription status.
func Status(status string) slog.Attr {
	return slog.String("status", status)
}

// Transition records a status change as a group {from, to}.
func Transition(from, to string) slog.Attr {
	return slog.Group("transition", slog.String("from", from), slog.String("to", to))
}

// BillingEvent records a billing event type.
func BillingEvent(eventType string) slog.Attr {
	return slog.String("billing_event", eventType)
}

// EventID records the idempotency key of a billing event.
func EventID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("event_id", id)
}

// Resource records a gated resource kind or plan resource.
func Resource(name string) slog.Attr {
	return slog.String("resource", name)
}

// Component records the emitting component.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records an elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Count records a number of processed items.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}
