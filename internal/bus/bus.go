// Package bus provides event bus implementations for Covenant.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/covenant/internal/domain"
)

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// PublishEvent encodes v as JSON and publishes it.
func PublishEvent(ctx context.Context, b domain.EventBus, tenantID, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", topic, err)
	}
	return b.Publish(ctx, tenantID, topic, payload)
}

// DecodeEvent decodes a message payload into v.
func DecodeEvent(msg *domain.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s event %s: %w", msg.Topic, msg.ID, err)
	}
	return nil
}

func validateTenant(tenantID string, publishing bool) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	if publishing && tenantID == domain.GlobalTenantID {
		return fmt.Errorf("cannot publish to the wildcard tenant")
	}
	return nil
}

// traceMetadata carries the active trace id across the bus.
func traceMetadata(ctx context.Context) map[string]string {
	md := make(map[string]string)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		md["trace_id"] = sc.TraceID().String()
	}
	return md
}
