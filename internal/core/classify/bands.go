// Package classify turns agent results into display categories: confidence
// and clarity bands, routing and validation tones, and feedback categories.
// Every function here is pure and total.
package classify

import (
	"strings"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

type ConfidenceBand string

const (
	ConfidenceHigh   ConfidenceBand = "high"
	ConfidenceMedium ConfidenceBand = "medium"
	ConfidenceLow    ConfidenceBand = "low"
)

type ClarityBand string

const (
	ClarityExcellent ClarityBand = "excellent"
	ClarityFair      ClarityBand = "fair"
	ClarityPoor      ClarityBand = "poor"
)

// Tone is the status colour family shared by routing and validation badges.
type Tone string

const (
	ToneOK      Tone = "ok"
	ToneWarn    Tone = "warn"
	ToneDanger  Tone = "danger"
	ToneNeutral Tone = "neutral"
)

// Confidence buckets a field confidence: above 85 is high, below 60 is
// low, and [60, 85] is medium. 85 itself is medium.
func Confidence(v float64) ConfidenceBand {
	switch {
	case v > 85:
		return ConfidenceHigh
	case v < 60:
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// Clarity buckets an image clarity score. Unlike Confidence, 85 is already
// excellent.
func Clarity(v float64) ClarityBand {
	switch {
	case v >= 85:
		return ClarityExcellent
	case v >= 60:
		return ClarityFair
	default:
		return ClarityPoor
	}
}

// AIConfidence buckets the authenticity check confidence with inclusive
// lower bounds.
func AIConfidence(v float64) ConfidenceBand {
	switch {
	case v >= 85:
		return ConfidenceHigh
	case v >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func RoutingTone(decision domain.RoutingDecision) Tone {
	switch normalizeEnum(string(decision)) {
	case string(domain.RoutingPass):
		return ToneOK
	case string(domain.RoutingMinorIssues):
		return ToneWarn
	case string(domain.RoutingManualReview):
		return ToneDanger
	default:
		return ToneNeutral
	}
}

// RoutingLabel is the banner text shown for a routing decision.
func RoutingLabel(decision domain.RoutingDecision) string {
	switch normalizeEnum(string(decision)) {
	case string(domain.RoutingPass):
		return "Ready to Submit"
	case string(domain.RoutingMinorIssues):
		return "Minor Issues Found"
	case string(domain.RoutingManualReview):
		return "Manual Review Required"
	default:
		return "Unknown Routing"
	}
}

func ValidationTone(status domain.ValidationStatus) Tone {
	switch normalizeEnum(string(status)) {
	case string(domain.ValidationPass):
		return ToneOK
	case string(domain.ValidationFail):
		return ToneDanger
	case string(domain.ValidationPartial):
		return ToneWarn
	default:
		return ToneNeutral
	}
}

func normalizeEnum(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
