package domain

import "time"

type AttemptOutcome string

const (
	OutcomeResultReady AttemptOutcome = "result_ready"
	OutcomeFailed      AttemptOutcome = "failed"
)

// ExtractionEvent is published once per finished extraction attempt. It
// carries field names only, never extracted values.
type ExtractionEvent struct {
	SessionID       string          `json:"session_id"`
	Attempt         uint64          `json:"attempt"`
	Outcome         AttemptOutcome  `json:"outcome"`
	DocumentType    string          `json:"document_type,omitempty"`
	RoutingDecision RoutingDecision `json:"routing_decision,omitempty"`
	ClarityScore    float64         `json:"clarity_score,omitempty"`
	FieldNames      []string        `json:"field_names,omitempty"`
	FailureKind     MessageKind     `json:"failure_kind,omitempty"`
	Duration        time.Duration   `json:"duration_ns"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

func NewResultEvent(sessionID string, attempt uint64, result *StructuredResult, duration time.Duration, now time.Time) ExtractionEvent {
	event := ExtractionEvent{
		SessionID:  sessionID,
		Attempt:    attempt,
		Outcome:    OutcomeResultReady,
		Duration:   duration,
		OccurredAt: now,
	}
	if result != nil {
		event.DocumentType = result.DocumentType
		event.RoutingDecision = result.RoutingDecision
		event.ClarityScore = result.ClarityScore
		event.FieldNames = make([]string, 0, len(result.ExtractedFields))
		for _, field := range result.ExtractedFields {
			event.FieldNames = append(event.FieldNames, field.Name)
		}
	}
	return event
}

func NewFailureEvent(sessionID string, attempt uint64, kind MessageKind, duration time.Duration, now time.Time) ExtractionEvent {
	return ExtractionEvent{
		SessionID:   sessionID,
		Attempt:     attempt,
		Outcome:     OutcomeFailed,
		FailureKind: kind,
		Duration:    duration,
		OccurredAt:  now,
	}
}
