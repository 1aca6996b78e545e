package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisRequest is what the remote agent receives for one attempt.
type AnalysisRequest struct {
	SessionID string
	Message   string
	AssetIDs  []string
}

type AnalysisResponse struct {
	Result   *StructuredResult
	Metadata *ResultMetadata
}

// ExtractionLimits bounds the extraction controller.
type ExtractionLimits struct {
	AttemptTimeout time.Duration
	CopyIndicator  time.Duration
	MaxConcurrent  int64
}

// CopyResult is the text placed on the clipboard by a copy action.
type CopyResult struct {
	Target    string    `json:"target"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expires_at"`
}

const CopyTargetAll = "all"

// FieldRecord is one row of the extracted-fields export.
type FieldRecord struct {
	Field      string `json:"field"`
	Value      string `json:"value"`
	Confidence string `json:"confidence"`
}

func FieldRecords(fields ExtractedFields) []FieldRecord {
	records := make([]FieldRecord, 0, len(fields))
	for _, field := range fields {
		records = append(records, FieldRecord{
			Field:      field.Name,
			Value:      field.Value,
			Confidence: FormatPercent(field.Confidence),
		})
	}
	return records
}

// MarshalFieldRecords renders the records as indented JSON, the clipboard format.
func MarshalFieldRecords(records []FieldRecord) (string, error) {
	if records == nil {
		records = []FieldRecord{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal field records: %w", err)
	}
	return string(payload), nil
}

// ParseFieldRecords reads back a clipboard export into extracted fields.
func ParseFieldRecords(data []byte) (ExtractedFields, error) {
	var records []FieldRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, WrapError(ErrInvalidInput, "parse field records", err)
	}
	fields := make(ExtractedFields, 0, len(records))
	for _, record := range records {
		confidence, err := ParsePercent(record.Confidence)
		if err != nil {
			return nil, WrapError(ErrInvalidInput, "parse field records", err)
		}
		fields = append(fields, ExtractedField{
			Name:       record.Field,
			Value:      record.Value,
			Confidence: confidence,
		})
	}
	return fields, nil
}
