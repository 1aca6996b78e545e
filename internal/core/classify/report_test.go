package classify

import (
	"encoding/json"
	"testing"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

func TestBuildReportNilResult(t *testing.T) {
	if BuildReport(nil, nil) != nil {
		t.Fatalf("expected nil report")
	}
}

func TestBuildReportClassifiesEverySection(t *testing.T) {
	raw := `{
		"document_type": "Passport",
		"extracted_fields": {
			"name": {"value": "Jane Doe", "confidence": 92},
			"date_of_birth": {"value": "1990-01-01", "confidence": 85},
			"address": {"value": "1 Main St", "confidence": 40}
		},
		"validations": {
			"name_match": {"status": "PASS"},
			"expiry": {"status": "FAIL", "details": "Document expired"},
			"address_match": {"status": "PARTIAL"}
		},
		"ai_check": {"status": "PASS", "is_ai_generated": false, "confidence": 85, "details": "Authenticity verified", "indicators": ["Signs of editing near photo"]},
		"clarity_score": 85,
		"feedback": ["Document ready to submit", "Please confirm address", "Hello"],
		"routing_decision": "MINOR_ISSUES",
		"summary": "ok"
	}`
	var result domain.StructuredResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	report := BuildReport(&result, &domain.ResultMetadata{AgentName: "verifier", Timestamp: "2026-01-01T00:00:00Z"})

	if report.Routing.Tone != ToneWarn || report.Routing.Label != "Minor Issues Found" {
		t.Fatalf("unexpected routing: %+v", report.Routing)
	}
	if report.Clarity.Band != ClarityExcellent {
		t.Fatalf("expected excellent clarity, got %s", report.Clarity.Band)
	}

	wantFields := []struct {
		name string
		band ConfidenceBand
	}{
		{"name", ConfidenceHigh},
		{"date_of_birth", ConfidenceMedium},
		{"address", ConfidenceLow},
	}
	if len(report.Fields) != len(wantFields) {
		t.Fatalf("expected %d fields, got %d", len(wantFields), len(report.Fields))
	}
	for i, want := range wantFields {
		if report.Fields[i].Name != want.name || report.Fields[i].Band != want.band {
			t.Fatalf("field %d = %+v, want %s/%s", i, report.Fields[i], want.name, want.band)
		}
	}

	wantTones := []Tone{ToneOK, ToneDanger, ToneWarn}
	for i, tone := range wantTones {
		if report.Validations[i].Tone != tone {
			t.Fatalf("validation %d tone = %s, want %s", i, report.Validations[i].Tone, tone)
		}
	}

	if report.AICheck == nil || report.AICheck.Band != ConfidenceHigh {
		t.Fatalf("expected high AI confidence band, got %+v", report.AICheck)
	}
	if report.AICheck.DetailsCategory != FeedbackPositive {
		t.Fatalf("expected positive details, got %s", report.AICheck.DetailsCategory)
	}
	if report.AICheck.Indicators[0].Category != FeedbackWarning {
		t.Fatalf("expected warning indicator, got %s", report.AICheck.Indicators[0].Category)
	}

	wantAlerts := []FeedbackCategory{FeedbackPositive, FeedbackWarning, FeedbackNeutral}
	for i, category := range wantAlerts {
		if report.Alerts[i].Category != category {
			t.Fatalf("alert %d = %s, want %s", i, report.Alerts[i].Category, category)
		}
	}
	if report.AgentName != "verifier" {
		t.Fatalf("expected agent name from metadata, got %q", report.AgentName)
	}
}
