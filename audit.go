package tss

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Key generation events
	AuditEventKeyShare   AuditEventType = "key_share"
	AuditEventKeyCombine AuditEventType = "key_combine"

	// Signing events
	AuditEventSignShare   AuditEventType = "sign_share"
	AuditEventSign        AuditEventType = "sign"
	AuditEventSignCombine AuditEventType = "sign_combine"

	// Failure events
	AuditEventVerificationFailure AuditEventType = "verification_failure"
	AuditEventValidationFailure   AuditEventType = "validation_failure"
	AuditEventNonceReuse          AuditEventType = "nonce_reuse"
)

// AuditEventReason represents why an event occurred
type AuditEventReason string

const (
	ReasonCeremony          AuditEventReason = "ceremony"
	ReasonValidationError   AuditEventReason = "validation_error"
	ReasonSecurityViolation AuditEventReason = "security_violation"
)

// AuditEvent represents a single audit event. Events carry public
// ceremony metadata only.
type AuditEvent struct {
	EventID   string           `json:"event_id"`
	Timestamp time.Time        `json:"timestamp"`
	EventType AuditEventType   `json:"event_type"`
	Reason    AuditEventReason `json:"reason"`

	CurveName string     `json:"curve_name,omitempty"`
	Party     PartyIndex `json:"party,omitempty"`
	SessionID string     `json:"session_id,omitempty"`

	Threshold    int          `json:"threshold,omitempty"`
	NumShares    int          `json:"num_shares,omitempty"`
	Participants []PartyIndex `json:"participants,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CeremonyEvent describes a completed or failed protocol stage.
type CeremonyEvent struct {
	AuditEvent

	Duration      time.Duration `json:"duration"`
	Contributions int           `json:"contributions"`
}

// ValidationFailureEvent contains details about validation failures
type ValidationFailureEvent struct {
	AuditEvent

	ValidationType string                 `json:"validation_type"` // "threshold", "index", "configuration"
	FailureReason  string                 `json:"failure_reason"`
	InputValues    map[string]interface{} `json:"input_values,omitempty"`
}

// AuditEventHandler receives audit events. Applications implement it to
// record events according to their needs.
type AuditEventHandler interface {
	// OnKeyGeneration is called after KeyShare and KeyCombine
	OnKeyGeneration(event *CeremonyEvent)

	// OnSigning is called after SignShare, Sign and SignCombine
	OnSigning(event *CeremonyEvent)

	// OnVerificationFailure is called when a signature fails to verify
	// or a nonce reuse is detected
	OnVerificationFailure(event *AuditEvent)

	// OnValidationFailure is called when input validation fails
	OnValidationFailure(event *ValidationFailureEvent)

	// OnError is called for other failures
	OnError(event *AuditEvent)
}

// NullAuditHandler is a no-op implementation of AuditEventHandler
type NullAuditHandler struct{}

func (n *NullAuditHandler) OnKeyGeneration(event *CeremonyEvent)              {}
func (n *NullAuditHandler) OnSigning(event *CeremonyEvent)                    {}
func (n *NullAuditHandler) OnVerificationFailure(event *AuditEvent)           {}
func (n *NullAuditHandler) OnValidationFailure(event *ValidationFailureEvent) {}
func (n *NullAuditHandler) OnError(event *AuditEvent)                         {}

// AuditEventBuilder helps construct audit events with proper defaults
type AuditEventBuilder struct {
	event *AuditEvent
}

// NewAuditEventBuilder creates a new audit event builder
func NewAuditEventBuilder(eventType AuditEventType, reason AuditEventReason) *AuditEventBuilder {
	return &AuditEventBuilder{
		event: &AuditEvent{
			EventID:   uuid.NewString(),
			Timestamp: time.Now(),
			EventType: eventType,
			Reason:    reason,
			Success:   true,
			Metadata:  make(map[string]interface{}),
		},
	}
}

// WithCurve sets the curve name for the event
func (b *AuditEventBuilder) WithCurve(curveName string) *AuditEventBuilder {
	b.event.CurveName = curveName
	return b
}

// WithParty sets the local party index
func (b *AuditEventBuilder) WithParty(index PartyIndex) *AuditEventBuilder {
	b.event.Party = index
	return b
}

// WithSession sets the signing session identifier
func (b *AuditEventBuilder) WithSession(id string) *AuditEventBuilder {
	b.event.SessionID = id
	return b
}

// WithThreshold sets the (t, n) parameters
func (b *AuditEventBuilder) WithThreshold(threshold, numShares int) *AuditEventBuilder {
	b.event.Threshold = threshold
	b.event.NumShares = numShares
	return b
}

// WithParticipants sets participant information
func (b *AuditEventBuilder) WithParticipants(participants []PartyIndex) *AuditEventBuilder {
	b.event.Participants = participants
	return b
}

// WithError marks the event as failed and sets error information
func (b *AuditEventBuilder) WithError(err error) *AuditEventBuilder {
	b.event.Success = false
	if err != nil {
		b.event.Error = err.Error()
	}
	return b
}

// WithMetadata adds metadata to the event
func (b *AuditEventBuilder) WithMetadata(key string, value interface{}) *AuditEventBuilder {
	b.event.Metadata[key] = value
	return b
}

// Build returns the constructed audit event
func (b *AuditEventBuilder) Build() *AuditEvent {
	return b.event
}

// BuildCeremony returns a CeremonyEvent
func (b *AuditEventBuilder) BuildCeremony(duration time.Duration, contributions int) *CeremonyEvent {
	return &CeremonyEvent{
		AuditEvent:    *b.event,
		Duration:      duration,
		Contributions: contributions,
	}
}

// BuildValidationFailure returns a ValidationFailureEvent
func (b *AuditEventBuilder) BuildValidationFailure(validationType, failureReason string, inputValues map[string]interface{}) *ValidationFailureEvent {
	return &ValidationFailureEvent{
		AuditEvent:     *b.event,
		ValidationType: validationType,
		FailureReason:  failureReason,
		InputValues:    inputValues,
	}
}
