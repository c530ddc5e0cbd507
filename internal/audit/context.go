package audit

import "context"

type actorKey struct{}

type actor struct {
	name      string
	role      string
	ip        string
	userAgent string
}

// WithActor attaches the caller identity recorded on entries built by FromContext.
func WithActor(ctx context.Context, name, role, ip, userAgent string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{name: name, role: role, ip: ip, userAgent: userAgent})
}

// FromContext returns an entry pre-filled with the caller identity, if any.
func FromContext(ctx context.Context, action, resourceType, resourceID string) Entry {
	entry := Entry{Action: action, ResourceType: resourceType, ResourceID: resourceID}
	if ctx == nil {
		return entry
	}
	if a, ok := ctx.Value(actorKey{}).(actor); ok {
		entry.Actor = a.name
		entry.Role = a.role
		entry.IP = a.ip
		entry.UserAgent = a.userAgent
	}
	return entry
}
