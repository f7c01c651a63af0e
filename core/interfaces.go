package core

import (
	"context"
)

// Logger interface - minimal structured logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// Telemetry interface - optional telemetry support
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a telemetry span
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// KeywordHit is one ranked result from a store-side keyword search.
type KeywordHit struct {
	CapabilityID string  `json:"capability_id"`
	Score        float64 `json:"score"`
}

// CapabilityStore is the durable capability catalog the engine matches
// against. All methods are independent, idempotent, side-effect-free reads;
// implementations must honor the caller's context deadline.
type CapabilityStore interface {
	// ListEnabledCapabilities returns all enabled capabilities in a
	// deterministic order. Disabled capabilities are never included.
	ListEnabledCapabilities(ctx context.Context) ([]*Capability, error)

	// KeywordSearch returns capabilities ranked by keyword overlap with
	// the given tokens, highest score first. An empty result is not an
	// error. Implementations without a server-side index may return
	// ErrKeywordSearchUnsupported; callers fall back to a client-side scan.
	KeywordSearch(ctx context.Context, tokens []string) ([]KeywordHit, error)

	// MethodologyFor returns the primary methodology mapped to the given
	// capability, or ErrMethodologyNotFound when no mapping exists.
	MethodologyFor(ctx context.Context, capabilityID string) (*Methodology, error)
}

// SearchOptions bound a semantic search call.
type SearchOptions struct {
	// Limit caps the number of hits returned.
	Limit int
	// Threshold drops hits whose similarity falls below it (0-1).
	Threshold float64
	// UserID optionally scopes results to documents visible to a user.
	UserID string
}

// SearchHit is one result from the external semantic-search collaborator.
type SearchHit struct {
	ID            string
	DocumentTitle string
	Content       string
	Similarity    float64
	Metadata      map[string]string
}

// SemanticSearch is the narrow interface to the external knowledge index.
// The engine consumes it best-effort: failures degrade to an empty result,
// never to a failed match.
type SemanticSearch interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchHit, error)
}

// Default no-op implementations

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// NoOpTelemetry provides a no-op telemetry implementation
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan provides a no-op span implementation
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}
