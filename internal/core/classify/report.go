package classify

import "github.com/kirillkom/document-verifier/internal/core/domain"

// Report is the classified view of a structured result consumed by the
// presentation adapters.
type Report struct {
	DocumentType string           `json:"document_type"`
	Routing      RoutingView      `json:"routing"`
	Clarity      ClarityView      `json:"clarity"`
	Fields       []FieldView      `json:"fields"`
	Validations  []ValidationView `json:"validations"`
	AICheck      *AICheckView     `json:"ai_check,omitempty"`
	Alerts       []ClassifiedText `json:"alerts"`
	Notes        string           `json:"notes,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	AgentName    string           `json:"agent_name,omitempty"`
	Timestamp    string           `json:"timestamp,omitempty"`
}

type RoutingView struct {
	Decision domain.RoutingDecision `json:"decision"`
	Tone     Tone                   `json:"tone"`
	Label    string                 `json:"label"`
}

type ClarityView struct {
	Score float64     `json:"score"`
	Band  ClarityBand `json:"band"`
}

type FieldView struct {
	Name       string         `json:"name"`
	Value      string         `json:"value"`
	Confidence float64        `json:"confidence"`
	Band       ConfidenceBand `json:"band"`
}

type ValidationView struct {
	Name    string                  `json:"name"`
	Status  domain.ValidationStatus `json:"status"`
	Tone    Tone                    `json:"tone"`
	Details string                  `json:"details,omitempty"`
}

type AICheckView struct {
	Status          domain.ValidationStatus `json:"status"`
	Tone            Tone                    `json:"tone"`
	IsAIGenerated   bool                    `json:"is_ai_generated"`
	Confidence      float64                 `json:"confidence"`
	Band            ConfidenceBand          `json:"band"`
	Details         string                  `json:"details,omitempty"`
	DetailsCategory FeedbackCategory        `json:"details_category,omitempty"`
	Indicators      []ClassifiedText        `json:"indicators,omitempty"`
}

type ClassifiedText struct {
	Text     string           `json:"text"`
	Category FeedbackCategory `json:"category"`
}

// BuildReport classifies every part of result. A nil result yields nil.
func BuildReport(result *domain.StructuredResult, meta *domain.ResultMetadata) *Report {
	if result == nil {
		return nil
	}

	report := &Report{
		DocumentType: result.DocumentType,
		Routing: RoutingView{
			Decision: result.RoutingDecision,
			Tone:     RoutingTone(result.RoutingDecision),
			Label:    RoutingLabel(result.RoutingDecision),
		},
		Clarity: ClarityView{
			Score: result.ClarityScore,
			Band:  Clarity(result.ClarityScore),
		},
		Fields:      make([]FieldView, 0, len(result.ExtractedFields)),
		Validations: make([]ValidationView, 0, len(result.Validations)),
		Alerts:      classifyAll(result.Feedback),
		Notes:       result.Notes,
		Summary:     result.Summary,
	}

	for _, field := range result.ExtractedFields {
		report.Fields = append(report.Fields, FieldView{
			Name:       field.Name,
			Value:      field.Value,
			Confidence: field.Confidence,
			Band:       Confidence(field.Confidence),
		})
	}
	for _, outcome := range result.Validations {
		report.Validations = append(report.Validations, ValidationView{
			Name:    outcome.Name,
			Status:  outcome.Status,
			Tone:    ValidationTone(outcome.Status),
			Details: outcome.Details,
		})
	}

	if check := result.AICheck; check != nil {
		view := &AICheckView{
			Status:        check.Status,
			Tone:          ValidationTone(check.Status),
			IsAIGenerated: check.IsAIGenerated,
			Confidence:    check.Confidence,
			Band:          AIConfidence(check.Confidence),
			Details:       check.Details,
			Indicators:    classifyAll(check.Indicators),
		}
		if check.Details != "" {
			view.DetailsCategory = Feedback(check.Details)
		}
		report.AICheck = view
	}

	if meta != nil {
		report.AgentName = meta.AgentName
		report.Timestamp = meta.Timestamp
	}
	return report
}

func classifyAll(lines []string) []ClassifiedText {
	out := make([]ClassifiedText, 0, len(lines))
	for _, line := range lines {
		out = append(out, ClassifiedText{Text: line, Category: Feedback(line)})
	}
	return out
}
