package matching

import (
	"context"

	"github.com/aacamara/capmatch/core"
)

// MethodologyResolver retrieves the primary methodology mapped to a
// capability. A missing mapping is a normal outcome, not an error: it
// means "no structured methodology available, execute the capability
// directly".
type MethodologyResolver struct {
	store  core.CapabilityStore
	logger core.Logger
}

// NewMethodologyResolver creates a resolver over the given store.
func NewMethodologyResolver(store core.CapabilityStore, logger core.Logger) *MethodologyResolver {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &MethodologyResolver{store: store, logger: logger}
}

// SetLogger sets the logger for the methodology resolver.
func (r *MethodologyResolver) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	r.logger = logger
}

// Resolve returns the capability's methodology or nil. Lookup failures are
// logged and downgraded to nil so enrichment never blocks a match.
func (r *MethodologyResolver) Resolve(ctx context.Context, capabilityID string) *core.Methodology {
	methodology, err := r.store.MethodologyFor(ctx, capabilityID)
	if err != nil {
		if core.IsNotFound(err) {
			r.logger.Debug("No methodology mapped to capability", map[string]interface{}{
				"operation":     "methodology_resolve",
				"capability_id": capabilityID,
			})
		} else {
			r.logger.Warn("Methodology lookup failed", map[string]interface{}{
				"operation":         "methodology_resolve",
				"capability_id":     capabilityID,
				"store_unavailable": core.IsUnavailable(err),
				"error":             err.Error(),
			})
		}
		return nil
	}
	return methodology
}
