package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type RoutingDecision string

const (
	RoutingPass         RoutingDecision = "PASS"
	RoutingMinorIssues  RoutingDecision = "MINOR_ISSUES"
	RoutingManualReview RoutingDecision = "MANUAL_REVIEW"
)

type ValidationStatus string

const (
	ValidationPass    ValidationStatus = "PASS"
	ValidationFail    ValidationStatus = "FAIL"
	ValidationPartial ValidationStatus = "PARTIAL"
)

// StructuredResult is the agent's extraction and validation payload. It is
// treated as immutable once received.
type StructuredResult struct {
	DocumentType    string          `json:"document_type"`
	ExtractedFields ExtractedFields `json:"extracted_fields"`
	Validations     Validations     `json:"validations,omitempty"`
	AICheck         *AICheck        `json:"ai_check,omitempty"`
	ClarityScore    float64         `json:"clarity_score"`
	Feedback        []string        `json:"feedback,omitempty"`
	RoutingDecision RoutingDecision `json:"routing_decision"`
	Notes           string          `json:"notes,omitempty"`
	Summary         string          `json:"summary,omitempty"`
}

func (r *StructuredResult) UnmarshalJSON(data []byte) error {
	type plain StructuredResult
	aux := struct {
		*plain
		ClarityScore flexNumber `json:"clarity_score"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ClarityScore = float64(aux.ClarityScore)
	return nil
}

type ExtractedField struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractedFields keeps the order in which the agent reported the fields. On
// the wire it is a JSON object keyed by field name.
type ExtractedFields []ExtractedField

func (f ExtractedFields) Lookup(name string) (ExtractedField, bool) {
	for _, field := range f {
		if field.Name == name {
			return field, true
		}
	}
	return ExtractedField{}, false
}

type fieldBody struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

func (f ExtractedFields) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, fieldBody]()
	for _, field := range f {
		om.Set(field.Name, fieldBody{Value: field.Value, Confidence: field.Confidence})
	}
	return json.Marshal(om)
}

func (f *ExtractedFields) UnmarshalJSON(data []byte) error {
	om, err := decodeOrderedObject(data)
	if err != nil {
		return err
	}
	out := make(ExtractedFields, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		if trimmed := bytes.TrimSpace(pair.Value); len(trimmed) == 0 || trimmed[0] != '{' {
			// Bare values carry no confidence.
			out = append(out, ExtractedField{Name: pair.Key, Value: rawText(pair.Value)})
			continue
		}
		var body struct {
			Value      json.RawMessage `json:"value"`
			Confidence flexNumber      `json:"confidence"`
		}
		if err := json.Unmarshal(pair.Value, &body); err != nil {
			return fmt.Errorf("field %q: %w", pair.Key, err)
		}
		out = append(out, ExtractedField{
			Name:       pair.Key,
			Value:      rawText(body.Value),
			Confidence: float64(body.Confidence),
		})
	}
	*f = out
	return nil
}

type ValidationOutcome struct {
	Name    string           `json:"name"`
	Status  ValidationStatus `json:"status"`
	Details string           `json:"details,omitempty"`
}

// Validations keeps the agent's order; on the wire it is an object keyed by
// check name.
type Validations []ValidationOutcome

type validationBody struct {
	Status  ValidationStatus `json:"status"`
	Details string           `json:"details,omitempty"`
}

func (v Validations) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, validationBody]()
	for _, outcome := range v {
		om.Set(outcome.Name, validationBody{Status: outcome.Status, Details: outcome.Details})
	}
	return json.Marshal(om)
}

func (v *Validations) UnmarshalJSON(data []byte) error {
	om, err := decodeOrderedObject(data)
	if err != nil {
		return err
	}
	out := make(Validations, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		var body struct {
			Status  string `json:"status"`
			Details string `json:"details"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(pair.Value, &body); err != nil {
			return fmt.Errorf("validation %q: %w", pair.Key, err)
		}
		details := body.Details
		if details == "" {
			details = body.Message
		}
		out = append(out, ValidationOutcome{
			Name:    pair.Key,
			Status:  ValidationStatus(body.Status),
			Details: details,
		})
	}
	*v = out
	return nil
}

type AICheck struct {
	Status        ValidationStatus `json:"status"`
	IsAIGenerated bool             `json:"is_ai_generated"`
	Confidence    float64          `json:"confidence"`
	Details       string           `json:"details,omitempty"`
	Indicators    []string         `json:"indicators,omitempty"`
}

func (c *AICheck) UnmarshalJSON(data []byte) error {
	type plain AICheck
	aux := struct {
		*plain
		Confidence flexNumber `json:"confidence"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Confidence = float64(aux.Confidence)
	return nil
}

// ResultMetadata is optional display information returned with a result.
type ResultMetadata struct {
	AgentName string `json:"agent_name,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// decodeOrderedObject reads a JSON object keeping the sender's key order.
// An absent or null object decodes as empty.
func decodeOrderedObject(data []byte) (*orderedmap.OrderedMap[string, json.RawMessage], error) {
	om := orderedmap.New[string, json.RawMessage]()
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return om, nil
	}
	if err := json.Unmarshal(data, om); err != nil {
		return nil, err
	}
	return om, nil
}

func rawText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

// flexNumber accepts numbers and numeric strings such as "92" or "92%".
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err == nil {
		*n = flexNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return fmt.Errorf("number: %w", err)
	}
	parsed, err := ParsePercent(s)
	if err != nil {
		return err
	}
	*n = flexNumber(parsed)
	return nil
}

// ParsePercent parses "92", "92.5" or "92%".
func ParsePercent(s string) (float64, error) {
	clean := strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
	if err != nil {
		return 0, fmt.Errorf("parse percentage %q: %w", s, err)
	}
	return f, nil
}

// FormatPercent renders a confidence the way the clipboard export does: "92%".
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
