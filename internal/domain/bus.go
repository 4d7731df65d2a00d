package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
// Subscribing with GlobalTenantID receives a topic for every tenant.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `json:"type" yaml:"type" mapstructure:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `json:"channelBufferSize" yaml:"channelBufferSize" mapstructure:"channelBufferSize"`

	// NATS settings (Pro tier)
	NATSUrl           string `json:"natsUrl" yaml:"natsUrl" mapstructure:"natsUrl"`
	NATSToken         string `json:"-" yaml:"natsToken" mapstructure:"natsToken"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" yaml:"natsMaxReconnects" mapstructure:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" yaml:"natsReconnectWait" mapstructure:"natsReconnectWait"` // seconds
	NATSQueueGroup    string `json:"natsQueueGroup" yaml:"natsQueueGroup" mapstructure:"natsQueueGroup"`
}

// Standard topic names for the analysis pipeline.
const (
	TopicDocumentSubmitted = "document.submitted"
	TopicAnalysisCompleted = "analysis.completed"
	TopicRiskAlert         = "risk.alert"
)

// SubmissionEvent asks a worker to analyze a document.
type SubmissionEvent struct {
	DocumentID   string       `json:"documentId,omitempty"`
	Name         string       `json:"name"`
	Text         string       `json:"text"`
	ContractType ContractType `json:"contractType"`
	TraceID      string       `json:"traceId,omitempty"`
}

// CompletionEvent summarizes a finished analysis.
type CompletionEvent struct {
	AnalysisID    string       `json:"analysisId"`
	DocumentID    string       `json:"documentId"`
	SessionID     string       `json:"sessionId"`
	ContractType  ContractType `json:"contractType"`
	Level         Severity     `json:"level"`
	Score         float64      `json:"score"`
	Escalated     bool         `json:"escalated"`
	ClauseCount   int          `json:"clauseCount"`
	RuleSetDigest string       `json:"ruleSetDigest"`
	TraceID       string       `json:"traceId,omitempty"`
}

// AlertEvent is published for documents whose overall risk is High.
type AlertEvent struct {
	CompletionEvent
	HighRiskClauses []ClauseRiskResult `json:"highRiskClauses"`
	KeyRiskAreas    []KeyRiskArea      `json:"keyRiskAreas"`
	Mitigations     []string           `json:"mitigations"`
}
