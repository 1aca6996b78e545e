package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kirillkom/document-verifier/internal/core/classify"
	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// Renderer formats classified reports for a terminal.
type Renderer struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	tones   map[classify.Tone]lipgloss.Style
	bands   map[classify.ConfidenceBand]lipgloss.Style
	clarity map[classify.ClarityBand]lipgloss.Style
	alerts  map[classify.FeedbackCategory]lipgloss.Style
}

func NewRenderer() *Renderer {
	ok := lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	warn := lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308"))
	danger := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	neutral := lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))

	return &Renderer{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		label: lipgloss.NewStyle().Bold(true),
		muted: neutral,
		tones: map[classify.Tone]lipgloss.Style{
			classify.ToneOK:      ok,
			classify.ToneWarn:    warn,
			classify.ToneDanger:  danger,
			classify.ToneNeutral: neutral,
		},
		bands: map[classify.ConfidenceBand]lipgloss.Style{
			classify.ConfidenceHigh:   ok,
			classify.ConfidenceMedium: warn,
			classify.ConfidenceLow:    danger,
		},
		clarity: map[classify.ClarityBand]lipgloss.Style{
			classify.ClarityExcellent: ok,
			classify.ClarityFair:      warn,
			classify.ClarityPoor:      danger,
		},
		alerts: map[classify.FeedbackCategory]lipgloss.Style{
			classify.FeedbackPositive: ok,
			classify.FeedbackWarning:  warn,
			classify.FeedbackNegative: danger,
			classify.FeedbackNeutral:  neutral,
		},
	}
}

func (r *Renderer) Report(report *classify.Report) string {
	if report == nil {
		return r.muted.Render("No extraction result.")
	}

	var b strings.Builder
	docType := report.DocumentType
	if docType == "" {
		docType = "unknown document"
	}
	b.WriteString(r.title.Render("Document: "+docType) + "\n")
	b.WriteString(r.label.Render("Routing:  ") + pick(r.tones, report.Routing.Tone, r.muted).Render(report.Routing.Label) + "\n")
	b.WriteString(r.label.Render("Clarity:  ") +
		pick(r.clarity, report.Clarity.Band, r.muted).Render(fmt.Sprintf("%s (%s)", domain.FormatPercent(report.Clarity.Score), report.Clarity.Band)) + "\n")

	if len(report.Fields) > 0 {
		b.WriteString("\n" + r.title.Render("Extracted fields") + "\n")
		nameWidth := 0
		for _, field := range report.Fields {
			nameWidth = max(nameWidth, lipgloss.Width(field.Name))
		}
		nameStyle := r.label.Width(nameWidth + 2)
		for _, field := range report.Fields {
			b.WriteString(nameStyle.Render(field.Name) + field.Value + "  " +
				pick(r.bands, field.Band, r.muted).Render(domain.FormatPercent(field.Confidence)) + "\n")
		}
	}

	if len(report.Validations) > 0 {
		b.WriteString("\n" + r.title.Render("Validations") + "\n")
		for _, v := range report.Validations {
			line := fmt.Sprintf("%s %s", pick(r.tones, v.Tone, r.muted).Render(strings.ToUpper(string(v.Status))), v.Name)
			if v.Details != "" {
				line += r.muted.Render(" - " + v.Details)
			}
			b.WriteString(line + "\n")
		}
	}

	if check := report.AICheck; check != nil {
		b.WriteString("\n" + r.title.Render("AI generation check") + "\n")
		verdict := "No AI generation detected"
		if check.IsAIGenerated {
			verdict = "AI generation suspected"
		}
		b.WriteString(pick(r.tones, check.Tone, r.muted).Render(verdict) + " " +
			pick(r.bands, check.Band, r.muted).Render("("+domain.FormatPercent(check.Confidence)+")") + "\n")
		if check.Details != "" {
			b.WriteString(pick(r.alerts, check.DetailsCategory, r.muted).Render(check.Details) + "\n")
		}
		for _, indicator := range check.Indicators {
			b.WriteString("  - " + pick(r.alerts, indicator.Category, r.muted).Render(indicator.Text) + "\n")
		}
	}

	if len(report.Alerts) > 0 {
		b.WriteString("\n" + r.title.Render("Feedback") + "\n")
		for _, alert := range report.Alerts {
			b.WriteString("  - " + pick(r.alerts, alert.Category, r.muted).Render(alert.Text) + "\n")
		}
	}

	if report.Summary != "" {
		b.WriteString("\n" + r.label.Render("Summary: ") + report.Summary + "\n")
	}
	if report.Notes != "" {
		b.WriteString(r.label.Render("Notes: ") + report.Notes + "\n")
	}
	if report.AgentName != "" || report.Timestamp != "" {
		b.WriteString("\n" + r.muted.Render(strings.TrimSpace("Analyzed by "+report.AgentName+" "+report.Timestamp)) + "\n")
	}
	return b.String()
}

// Failure renders a session message with the colour of its origin.
func (r *Renderer) Failure(kind domain.MessageKind, message string) string {
	style := pick(r.tones, classify.ToneDanger, r.muted)
	if kind == domain.MessageValidation {
		style = pick(r.tones, classify.ToneWarn, r.muted)
	}
	return style.Render(message)
}

func pick[K comparable](styles map[K]lipgloss.Style, key K, fallback lipgloss.Style) lipgloss.Style {
	if style, ok := styles[key]; ok {
		return style
	}
	return fallback
}
