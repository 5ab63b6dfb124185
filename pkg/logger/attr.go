package logger

import "log/slog"

// Error records a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// TenantID records the tenant identifier under the key "tenant_id".
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// SubscriptionID records the subscription identifier under the key "subscription_id".
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

// EventType records the provider event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// PlanType records the plan tier under the key "plan_type".
func PlanType(t any) slog.Attr {
	if t == nil {
		return slog.Attr{}
	}
	return slog.Any("plan_type", t)
}

// Status records a subscription status under the key "status".
func Status(s any) slog.Attr {
	if s == nil {
		return slog.Attr{}
	}
	return slog.Any("status", s)
}
