package httpadapter

import (
	"time"

	"github.com/kirillkom/document-verifier/internal/core/classify"
	"github.com/kirillkom/document-verifier/internal/core/domain"
)

type sessionView struct {
	ID          string                     `json:"id"`
	Phase       domain.Phase               `json:"phase"`
	Busy        bool                       `json:"busy"`
	Form        domain.ApplicationFormData `json:"form"`
	File        *domain.UploadedFile       `json:"file,omitempty"`
	Preview     *domain.Preview            `json:"preview,omitempty"`
	Message     string                     `json:"message,omitempty"`
	MessageKind domain.MessageKind         `json:"message_kind,omitempty"`
	Result      *domain.StructuredResult   `json:"result,omitempty"`
	Report      *classify.Report           `json:"report,omitempty"`
	CopyTarget  string                     `json:"copy_target,omitempty"`
	Attempt     uint64                     `json:"attempt"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

func newSessionView(session *domain.ExtractionSession, now time.Time) sessionView {
	return sessionView{
		ID:          session.ID,
		Phase:       session.Phase,
		Busy:        session.Phase.InFlight(),
		Form:        session.Form,
		File:        session.File,
		Preview:     session.Preview,
		Message:     session.Message,
		MessageKind: session.MessageKind,
		Result:      session.Result,
		Report:      classify.BuildReport(session.Result, session.Metadata),
		CopyTarget:  session.ActiveCopyTarget(now),
		Attempt:     session.Attempt,
		UpdatedAt:   session.UpdatedAt,
	}
}

type formRequest struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	DateOfBirth string `json:"date_of_birth"`
}

type copyRequest struct {
	Target string `json:"target"`
}
