package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// BuildAnalysisPrompt renders the agent message for one attempt. Empty form
// values are sent as empty so the agent can tell them apart from mismatches.
func BuildAnalysisPrompt(form domain.ApplicationFormData) string {
	var b strings.Builder
	b.WriteString(`Extract every field from the uploaded identity document and validate it.
Cross-check the document against the application form below, assess image clarity,
check whether the document looks AI-generated or manipulated, and decide a routing.
Return strict JSON with keys:
document_type, extracted_fields (object: field -> {value, confidence 0-100}),
validations (object: check -> {status PASS|FAIL|PARTIAL, details}),
ai_check ({status PASS|FAIL, is_ai_generated, confidence, details, indicators}),
clarity_score (0-100), feedback (array of strings),
routing_decision (PASS|MINOR_ISSUES|MANUAL_REVIEW), notes, summary.

Application form:
`)
	fmt.Fprintf(&b, "- name: %s\n", form.Name)
	fmt.Fprintf(&b, "- address: %s\n", form.Address)
	fmt.Fprintf(&b, "- date_of_birth: %s\n", form.DateOfBirth)
	return b.String()
}
