package session

import "context"

// Handle is a lightweight reference to a managed session. It holds no
// session state; every call is forwarded to the Manager and revalidated.
type Handle struct {
	id      string
	manager *Manager
}

// ID returns the session identifier.
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

func (h *Handle) Touch(ctx context.Context) error {
	return h.manager.Touch(ctx, h.id)
}

func (h *Handle) Stop(ctx context.Context) error {
	return h.manager.Stop(ctx, h.id)
}

func (h *Handle) Attribute(ctx context.Context, key string) (any, error) {
	return h.manager.Attribute(ctx, h.id, key)
}

func (h *Handle) AttributeKeys(ctx context.Context) ([]string, error) {
	return h.manager.AttributeKeys(ctx, h.id)
}

func (h *Handle) SetAttribute(ctx context.Context, key string, value any) error {
	return h.manager.SetAttribute(ctx, h.id, key, value)
}

func (h *Handle) RemoveAttribute(ctx context.Context, key string) (any, error) {
	return h.manager.RemoveAttribute(ctx, h.id, key)
}

// Snapshot returns a validated copy of the current record.
func (h *Handle) Snapshot(ctx context.Context) (*Session, error) {
	return h.manager.Session(ctx, h.id)
}

// IsValid reports whether the session still exists and is neither stopped
// nor expired. Backend errors are reported as invalid.
func (h *Handle) IsValid(ctx context.Context) bool {
	if h == nil || h.manager == nil {
		return false
	}
	_, err := h.manager.Session(ctx, h.id)
	return err == nil
}
