package domain

import (
	"errors"
	"time"
)

// Phase is the lifecycle position of an extraction session.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseFileSelected Phase = "file_selected"
	PhaseUploading    Phase = "uploading"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseResultReady  Phase = "result_ready"
	PhaseFailed       Phase = "failed"
)

// InFlight reports whether an extraction attempt is outstanding.
func (p Phase) InFlight() bool {
	return p == PhaseUploading || p == PhaseAnalyzing
}

// MessageKind tells apart the origins of a session message.
type MessageKind string

const (
	MessageNone         MessageKind = ""
	MessageValidation   MessageKind = "validation"
	MessageCollaborator MessageKind = "collaborator"
	MessageNetwork      MessageKind = "network"
)

const (
	MessageSelectFile     = "Please select a document to upload"
	MessageUploadFailed   = "Upload failed. Please try again."
	MessageNoAssets       = "Upload failed: no asset identifiers returned"
	MessageAnalysisFailed = "Analysis failed. Please try again."
	MessageNetworkError   = "Network error. Please check your connection and try again."
)

var errStaleAttempt = errors.New("stale extraction attempt")

// ExtractionSession is the mutable state of one document's lifecycle. It has
// no locking of its own; callers serialise access through the session store.
type ExtractionSession struct {
	ID          string
	Form        ApplicationFormData
	File        *UploadedFile
	Preview     *Preview
	Phase       Phase
	Message     string
	MessageKind MessageKind
	Result      *StructuredResult
	Metadata    *ResultMetadata

	CopyTarget    string
	CopyExpiresAt time.Time

	Attempt     uint64
	FileVersion uint64
	CopyVersion uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewExtractionSession(id string, now time.Time) *ExtractionSession {
	return &ExtractionSession{
		ID:        id,
		Phase:     PhaseIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy. File bytes are shared since they are never
// mutated after selection.
func (s *ExtractionSession) Clone() *ExtractionSession {
	if s == nil {
		return nil
	}
	out := *s
	if s.File != nil {
		file := *s.File
		out.File = &file
	}
	if s.Preview != nil {
		preview := *s.Preview
		out.Preview = &preview
	}
	if s.Metadata != nil {
		meta := *s.Metadata
		out.Metadata = &meta
	}
	// Results are immutable once received, sharing the pointer is safe.
	return &out
}

func (s *ExtractionSession) setMessage(kind MessageKind, message string) {
	s.Message = message
	s.MessageKind = kind
	s.Result = nil
	s.Metadata = nil
}

func (s *ExtractionSession) clearOutcome() {
	s.Message = ""
	s.MessageKind = MessageNone
	s.Result = nil
	s.Metadata = nil
}

// SetForm replaces the application form data.
func (s *ExtractionSession) SetForm(form ApplicationFormData, now time.Time) error {
	if s.Phase.InFlight() {
		return ErrSessionBusy
	}
	s.Form = form
	s.UpdatedAt = now
	return nil
}

// SelectFile validates and installs a new file. A rejected file leaves the
// phase untouched and only records the validation message.
func (s *ExtractionSession) SelectFile(file UploadedFile, now time.Time) error {
	if s.Phase.InFlight() {
		return ErrSessionBusy
	}
	if err := ValidateUpload(file); err != nil {
		s.setMessage(MessageValidation, UserMessage(err, err.Error()))
		s.UpdatedAt = now
		return err
	}

	s.File = &file
	s.Preview = nil
	s.FileVersion++
	s.clearOutcome()
	s.Phase = PhaseFileSelected
	s.UpdatedAt = now
	return nil
}

// SetPreview installs a rendered preview if it still belongs to the current file.
func (s *ExtractionSession) SetPreview(fileVersion uint64, preview Preview, now time.Time) bool {
	if s.File == nil || fileVersion != s.FileVersion {
		return false
	}
	s.Preview = &preview
	s.UpdatedAt = now
	return true
}

// BeginAttempt moves a session with a selected file into Uploading and
// returns the attempt token every later transition must present.
func (s *ExtractionSession) BeginAttempt(now time.Time) (uint64, error) {
	if s.Phase.InFlight() {
		return 0, ErrSessionBusy
	}
	if s.File == nil {
		s.setMessage(MessageValidation, MessageSelectFile)
		s.UpdatedAt = now
		return 0, NewUserError(ErrInvalidInput, MessageSelectFile)
	}

	s.Attempt++
	s.clearOutcome()
	s.Phase = PhaseUploading
	s.UpdatedAt = now
	return s.Attempt, nil
}

// UploadSucceeded moves Uploading to Analyzing.
func (s *ExtractionSession) UploadSucceeded(attempt uint64, now time.Time) error {
	if err := s.checkAttempt(attempt, PhaseUploading); err != nil {
		return err
	}
	s.Phase = PhaseAnalyzing
	s.UpdatedAt = now
	return nil
}

// Complete installs the agent result atomically.
func (s *ExtractionSession) Complete(attempt uint64, result *StructuredResult, meta *ResultMetadata, now time.Time) error {
	if err := s.checkAttempt(attempt, PhaseAnalyzing); err != nil {
		return err
	}
	s.Message = ""
	s.MessageKind = MessageNone
	s.Result = result
	s.Metadata = meta
	s.Phase = PhaseResultReady
	s.UpdatedAt = now
	return nil
}

// Fail ends the current attempt from either in-flight phase.
func (s *ExtractionSession) Fail(attempt uint64, kind MessageKind, message string, now time.Time) error {
	if attempt != s.Attempt || !s.Phase.InFlight() {
		return errStaleAttempt
	}
	s.setMessage(kind, message)
	s.Phase = PhaseFailed
	s.UpdatedAt = now
	return nil
}

// Reset returns the session to Idle in one step. Bumping the attempt and file
// versions makes any outstanding response or preview stale.
func (s *ExtractionSession) Reset(now time.Time) {
	s.File = nil
	s.Preview = nil
	s.clearOutcome()
	s.CopyTarget = ""
	s.CopyExpiresAt = time.Time{}
	s.CopyVersion++
	s.Attempt++
	s.FileVersion++
	s.Phase = PhaseIdle
	s.UpdatedAt = now
}

// MarkCopied records the latest copy action; it supersedes any earlier one.
func (s *ExtractionSession) MarkCopied(target string, expiresAt time.Time, now time.Time) uint64 {
	s.CopyVersion++
	s.CopyTarget = target
	s.CopyExpiresAt = expiresAt
	s.UpdatedAt = now
	return s.CopyVersion
}

// ExpireCopy clears the copy target if version is still the latest copy.
func (s *ExtractionSession) ExpireCopy(version uint64) bool {
	if version != s.CopyVersion || s.CopyTarget == "" {
		return false
	}
	s.CopyTarget = ""
	s.CopyExpiresAt = time.Time{}
	return true
}

// ActiveCopyTarget hides a copy target whose expiry has passed but whose
// timer has not fired yet.
func (s *ExtractionSession) ActiveCopyTarget(now time.Time) string {
	if s.CopyTarget == "" || !now.Before(s.CopyExpiresAt) {
		return ""
	}
	return s.CopyTarget
}

func IsStaleAttempt(err error) bool {
	return errors.Is(err, errStaleAttempt)
}

func (s *ExtractionSession) checkAttempt(attempt uint64, want Phase) error {
	if attempt != s.Attempt || s.Phase != want {
		return errStaleAttempt
	}
	return nil
}
