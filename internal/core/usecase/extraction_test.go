package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/document-verifier/internal/core/domain"
	"github.com/kirillkom/document-verifier/internal/core/ports"
)

type sessionStoreFake struct {
	mu       sync.Mutex
	sessions map[string]*domain.ExtractionSession
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{sessions: make(map[string]*domain.ExtractionSession)}
}

func (f *sessionStoreFake) Create(_ context.Context, s *domain.ExtractionSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s.Clone()
	return nil
}

func (f *sessionStoreFake) Get(_ context.Context, id string) (*domain.ExtractionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (f *sessionStoreFake) Update(_ context.Context, id string, fn func(*domain.ExtractionSession) error) (*domain.ExtractionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	working := s.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	f.sessions[id] = working
	return working.Clone(), nil
}

func (f *sessionStoreFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(f.sessions, id)
	return nil
}

type uploaderFake struct {
	mu       sync.Mutex
	assetIDs []string
	err      error
	release  chan struct{}
	calls    int
}

func (f *uploaderFake) Upload(ctx context.Context, _ domain.UploadedFile) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.assetIDs, f.err
}

func (f *uploaderFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type analyzerFake struct {
	mu   sync.Mutex
	resp *domain.AnalysisResponse
	err  error
	req  domain.AnalysisRequest
}

func (f *analyzerFake) Analyze(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	f.mu.Lock()
	f.req = req
	f.mu.Unlock()
	return f.resp, f.err
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.ExtractionEvent
}

func (f *publisherFake) PublishExtractionFinished(_ context.Context, event domain.ExtractionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *publisherFake) published() []domain.ExtractionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ExtractionEvent(nil), f.events...)
}

type previewFake struct{}

func (previewFake) Render(_ context.Context, file domain.UploadedFile) (domain.Preview, error) {
	return domain.Preview{Kind: domain.PreviewImage, MediaType: file.MediaType, Width: 10, Height: 20}, nil
}

func passportResult(t *testing.T) *domain.StructuredResult {
	t.Helper()
	raw := `{
		"document_type": "Passport",
		"extracted_fields": {"surname": {"value": "DOE", "confidence": 96}, "given_names": {"value": "JANE", "confidence": 88}},
		"validations": {"name_match": {"status": "PASS", "details": "Name matches"}},
		"clarity_score": 91,
		"feedback": ["Document ready to submit"],
		"routing_decision": "PASS"
	}`
	var result domain.StructuredResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return &result
}

func jpegFile() domain.UploadedFile {
	return domain.UploadedFile{Name: "passport.jpg", MediaType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}}
}

func newTestUseCase(uploader *uploaderFake, analyzer *analyzerFake, publisher *publisherFake) (*ExtractionUseCase, *sessionStoreFake) {
	store := newSessionStoreFake()
	var events ports.EventPublisher
	if publisher != nil {
		events = publisher
	}
	uc := NewExtractionUseCase(store, uploader, analyzer, previewFake{}, events, nil, domain.ExtractionLimits{
		AttemptTimeout: 5 * time.Second,
		CopyIndicator:  200 * time.Millisecond,
		MaxConcurrent:  2,
	}, nil)
	return uc, store
}

func shutdown(t *testing.T, uc *ExtractionUseCase) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestExtractionEndToEnd(t *testing.T) {
	ctx := context.Background()
	analyzer := &analyzerFake{resp: &domain.AnalysisResponse{
		Result:   passportResult(t),
		Metadata: &domain.ResultMetadata{AgentName: "doc-agent"},
	}}
	publisher := &publisherFake{}
	uc, _ := newTestUseCase(&uploaderFake{assetIDs: []string{"asset-1"}}, analyzer, publisher)

	session, err := uc.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := uc.UpdateForm(ctx, session.ID, domain.ApplicationFormData{Name: " Jane Doe ", DateOfBirth: "1990-04-01"}); err != nil {
		t.Fatalf("UpdateForm() error = %v", err)
	}
	if _, err := uc.SelectFile(ctx, session.ID, jpegFile()); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}

	submitted, err := uc.Submit(ctx, session.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if submitted.Phase != domain.PhaseUploading {
		t.Fatalf("expected uploading after submit, got %s", submitted.Phase)
	}

	done, err := uc.Await(ctx, session.ID)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if done.Phase != domain.PhaseResultReady {
		t.Fatalf("expected result_ready, got %s (%q)", done.Phase, done.Message)
	}
	if done.Result.DocumentType != "Passport" || done.Metadata.AgentName != "doc-agent" {
		t.Fatalf("unexpected result %+v / %+v", done.Result, done.Metadata)
	}
	if done.File == nil || done.File.Data != nil {
		t.Fatalf("snapshot must keep file metadata without bytes")
	}

	if !strings.Contains(analyzer.req.Message, "name: Jane Doe") {
		t.Fatalf("expected form in prompt, got %q", analyzer.req.Message)
	}
	if len(analyzer.req.AssetIDs) != 1 || analyzer.req.AssetIDs[0] != "asset-1" {
		t.Fatalf("unexpected asset ids %v", analyzer.req.AssetIDs)
	}

	shutdown(t, uc)
	events := publisher.published()
	if len(events) != 1 || events[0].Outcome != domain.OutcomeResultReady {
		t.Fatalf("expected one result event, got %+v", events)
	}
	if strings.Join(events[0].FieldNames, ",") != "surname,given_names" {
		t.Fatalf("unexpected event field names %v", events[0].FieldNames)
	}

	final, _ := uc.Get(ctx, session.ID)
	if final.Preview == nil || final.Preview.Width != 10 {
		t.Fatalf("expected preview to be applied, got %+v", final.Preview)
	}
}

func TestExtractionSubmitWithoutFile(t *testing.T) {
	ctx := context.Background()
	uploader := &uploaderFake{assetIDs: []string{"a"}}
	uc, _ := newTestUseCase(uploader, &analyzerFake{}, nil)

	session, _ := uc.Create(ctx)
	_, err := uc.Submit(ctx, session.ID)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	got, _ := uc.Get(ctx, session.ID)
	if got.Phase != domain.PhaseIdle || got.Message != domain.MessageSelectFile {
		t.Fatalf("unexpected session: phase=%s message=%q", got.Phase, got.Message)
	}
	shutdown(t, uc)
	if uploader.callCount() != 0 {
		t.Fatalf("no network call expected")
	}
}

func TestExtractionRejectsInvalidFile(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(&uploaderFake{}, &analyzerFake{}, nil)

	session, _ := uc.Create(ctx)
	big := domain.UploadedFile{Name: "scan.png", MediaType: "image/png", Data: make([]byte, domain.MaxUploadBytes+1)}
	if _, err := uc.SelectFile(ctx, session.ID, big); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	got, _ := uc.Get(ctx, session.ID)
	if got.File != nil || got.Phase != domain.PhaseIdle || got.MessageKind != domain.MessageValidation {
		t.Fatalf("unexpected session after rejected file: %+v", got)
	}
	shutdown(t, uc)
}

func TestExtractionFailureMessages(t *testing.T) {
	tests := []struct {
		name      string
		uploader  *uploaderFake
		analyzer  *analyzerFake
		wantKind  domain.MessageKind
		wantText  string
		wantPhase domain.Phase
	}{
		{
			name:     "upload reported failure with message",
			uploader: &uploaderFake{err: domain.NewUserError(domain.ErrCollaborator, "File rejected by scanner")},
			analyzer: &analyzerFake{},
			wantKind: domain.MessageCollaborator,
			wantText: "File rejected by scanner",
		},
		{
			name:     "upload reported failure without message",
			uploader: &uploaderFake{err: domain.WrapError(domain.ErrCollaborator, "upload", errors.New("success=false"))},
			analyzer: &analyzerFake{},
			wantKind: domain.MessageCollaborator,
			wantText: domain.MessageUploadFailed,
		},
		{
			name:     "upload returned no assets",
			uploader: &uploaderFake{assetIDs: []string{}},
			analyzer: &analyzerFake{},
			wantKind: domain.MessageCollaborator,
			wantText: domain.MessageNoAssets,
		},
		{
			name:     "upload transport fault",
			uploader: &uploaderFake{err: domain.WrapError(domain.ErrTemporary, "upload", errors.New("connection refused"))},
			analyzer: &analyzerFake{},
			wantKind: domain.MessageNetwork,
			wantText: domain.MessageNetworkError,
		},
		{
			name:     "analysis reported failure",
			uploader: &uploaderFake{assetIDs: []string{"a"}},
			analyzer: &analyzerFake{err: domain.NewUserError(domain.ErrCollaborator, "Agent quota exceeded")},
			wantKind: domain.MessageCollaborator,
			wantText: "Agent quota exceeded",
		},
		{
			name:     "analysis without result",
			uploader: &uploaderFake{assetIDs: []string{"a"}},
			analyzer: &analyzerFake{resp: &domain.AnalysisResponse{}},
			wantKind: domain.MessageCollaborator,
			wantText: domain.MessageAnalysisFailed,
		},
		{
			name:     "analysis request rejected before sending",
			uploader: &uploaderFake{assetIDs: []string{"a"}},
			analyzer: &analyzerFake{err: domain.WrapError(domain.ErrInvalidInput, "agent chat request", errors.New("AgentID required"))},
			wantKind: domain.MessageCollaborator,
			wantText: domain.MessageAnalysisFailed,
		},
		{
			name:     "upload request rejected before sending",
			uploader: &uploaderFake{err: domain.WrapError(domain.ErrInvalidInput, "agent upload request", errors.New("file name required"))},
			analyzer: &analyzerFake{},
			wantKind: domain.MessageCollaborator,
			wantText: domain.MessageUploadFailed,
		},
		{
			name:     "analysis unexpected fault",
			uploader: &uploaderFake{assetIDs: []string{"a"}},
			analyzer: &analyzerFake{err: errors.New("unexpected EOF")},
			wantKind: domain.MessageNetwork,
			wantText: domain.MessageNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			publisher := &publisherFake{}
			uc, _ := newTestUseCase(tt.uploader, tt.analyzer, publisher)

			session, _ := uc.Create(ctx)
			if _, err := uc.SelectFile(ctx, session.ID, jpegFile()); err != nil {
				t.Fatalf("SelectFile() error = %v", err)
			}
			if _, err := uc.Submit(ctx, session.ID); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			got, err := uc.Await(ctx, session.ID)
			if err != nil {
				t.Fatalf("Await() error = %v", err)
			}
			if got.Phase != domain.PhaseFailed {
				t.Fatalf("expected failed, got %s", got.Phase)
			}
			if got.Message != tt.wantText || got.MessageKind != tt.wantKind {
				t.Fatalf("message = %q (%s), want %q (%s)", got.Message, got.MessageKind, tt.wantText, tt.wantKind)
			}
			if got.Result != nil {
				t.Fatalf("failed session must not hold a result")
			}

			shutdown(t, uc)
			events := publisher.published()
			if len(events) != 1 || events[0].FailureKind != tt.wantKind {
				t.Fatalf("expected one failure event, got %+v", events)
			}
		})
	}
}

func TestExtractionRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	uploader := &uploaderFake{err: domain.WrapError(domain.ErrTemporary, "upload", errors.New("timeout"))}
	analyzer := &analyzerFake{resp: &domain.AnalysisResponse{Result: passportResult(t)}}
	uc, _ := newTestUseCase(uploader, analyzer, nil)

	session, _ := uc.Create(ctx)
	_, _ = uc.SelectFile(ctx, session.ID, jpegFile())
	_, _ = uc.Submit(ctx, session.ID)
	if got, _ := uc.Await(ctx, session.ID); got.Phase != domain.PhaseFailed {
		t.Fatalf("expected failed, got %s", got.Phase)
	}

	uploader.mu.Lock()
	uploader.err = nil
	uploader.assetIDs = []string{"asset-2"}
	uploader.mu.Unlock()

	if _, err := uc.Submit(ctx, session.ID); err != nil {
		t.Fatalf("retry Submit() error = %v", err)
	}
	got, _ := uc.Await(ctx, session.ID)
	if got.Phase != domain.PhaseResultReady || got.Message != "" {
		t.Fatalf("expected result after retry, got %s (%q)", got.Phase, got.Message)
	}
	shutdown(t, uc)
}

func TestExtractionResetDiscardsLateResponse(t *testing.T) {
	ctx := context.Background()
	uploader := &uploaderFake{assetIDs: []string{"a"}, release: make(chan struct{})}
	analyzer := &analyzerFake{resp: &domain.AnalysisResponse{Result: passportResult(t)}}
	publisher := &publisherFake{}
	uc, _ := newTestUseCase(uploader, analyzer, publisher)

	session, _ := uc.Create(ctx)
	_, _ = uc.SelectFile(ctx, session.ID, jpegFile())
	if _, err := uc.Submit(ctx, session.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	reset, err := uc.Reset(ctx, session.ID)
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if reset.Phase != domain.PhaseIdle || reset.File != nil {
		t.Fatalf("unexpected session after reset: %+v", reset)
	}

	close(uploader.release)
	shutdown(t, uc)

	got, _ := uc.Get(ctx, session.ID)
	if got.Phase != domain.PhaseIdle || got.Result != nil || got.Message != "" {
		t.Fatalf("late response overwrote reset session: phase=%s result=%v message=%q", got.Phase, got.Result, got.Message)
	}
	if events := publisher.published(); len(events) != 0 {
		t.Fatalf("discarded attempt must not publish, got %+v", events)
	}
}

func TestExtractionRejectsChangesWhileInFlight(t *testing.T) {
	ctx := context.Background()
	uploader := &uploaderFake{assetIDs: []string{"a"}, release: make(chan struct{})}
	analyzer := &analyzerFake{resp: &domain.AnalysisResponse{Result: passportResult(t)}}
	uc, _ := newTestUseCase(uploader, analyzer, nil)

	session, _ := uc.Create(ctx)
	_, _ = uc.SelectFile(ctx, session.ID, jpegFile())
	_, _ = uc.Submit(ctx, session.ID)

	if _, err := uc.SelectFile(ctx, session.ID, jpegFile()); !domain.IsKind(err, domain.ErrSessionBusy) {
		t.Fatalf("expected busy on select, got %v", err)
	}
	if _, err := uc.Submit(ctx, session.ID); !domain.IsKind(err, domain.ErrSessionBusy) {
		t.Fatalf("expected busy on submit, got %v", err)
	}

	close(uploader.release)
	got, _ := uc.Await(ctx, session.ID)
	if got.Phase != domain.PhaseResultReady {
		t.Fatalf("expected result_ready, got %s", got.Phase)
	}
	shutdown(t, uc)
}

func TestExtractionCopy(t *testing.T) {
	ctx := context.Background()
	analyzer := &analyzerFake{resp: &domain.AnalysisResponse{Result: passportResult(t)}}
	uc, _ := newTestUseCase(&uploaderFake{assetIDs: []string{"a"}}, analyzer, nil)

	session, _ := uc.Create(ctx)
	if _, err := uc.Copy(ctx, session.ID, ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without result, got %v", err)
	}

	_, _ = uc.SelectFile(ctx, session.ID, jpegFile())
	_, _ = uc.Submit(ctx, session.ID)
	_, _ = uc.Await(ctx, session.ID)

	all, err := uc.Copy(ctx, session.ID, "")
	if err != nil {
		t.Fatalf("Copy(all) error = %v", err)
	}
	fields, err := domain.ParseFieldRecords([]byte(all.Text))
	if err != nil {
		t.Fatalf("copied text is not a field export: %v", err)
	}
	if len(fields) != 2 || fields[0].Name != "surname" || fields[0].Confidence != 96 {
		t.Fatalf("unexpected copied fields %+v", fields)
	}

	one, err := uc.Copy(ctx, session.ID, "given_names")
	if err != nil {
		t.Fatalf("Copy(field) error = %v", err)
	}
	if one.Text != "JANE" {
		t.Fatalf("expected field value, got %q", one.Text)
	}
	if got, _ := uc.Get(ctx, session.ID); got.CopyTarget != "given_names" {
		t.Fatalf("latest copy must supersede, got %q", got.CopyTarget)
	}

	if _, err := uc.Copy(ctx, session.ID, "missing"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown field, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := uc.Get(ctx, session.ID)
		if got.CopyTarget == "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("copy target did not expire")
		}
		time.Sleep(5 * time.Millisecond)
	}
	shutdown(t, uc)
}

func TestExtractionExport(t *testing.T) {
	ctx := context.Background()
	analyzer := &analyzerFake{resp: &domain.AnalysisResponse{Result: passportResult(t)}}
	uc, _ := newTestUseCase(&uploaderFake{assetIDs: []string{"a"}}, analyzer, nil)

	session, _ := uc.Create(ctx)
	if _, err := uc.Export(ctx, session.ID); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without result, got %v", err)
	}

	_, _ = uc.SelectFile(ctx, session.ID, jpegFile())
	_, _ = uc.Submit(ctx, session.ID)
	_, _ = uc.Await(ctx, session.ID)

	records, err := uc.Export(ctx, session.ID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(records) != 2 || records[1] != (domain.FieldRecord{Field: "given_names", Value: "JANE", Confidence: "88%"}) {
		t.Fatalf("unexpected records %+v", records)
	}

	file, err := uc.Preview(ctx, session.ID)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(file.Data) != 4 {
		t.Fatalf("preview must carry file bytes")
	}
	shutdown(t, uc)
}

func TestExtractionUnknownSession(t *testing.T) {
	uc, _ := newTestUseCase(&uploaderFake{}, &analyzerFake{}, nil)
	if _, err := uc.Get(context.Background(), "missing"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := uc.Delete(context.Background(), "missing"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestUpdateFormRejectsMalformedDate(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(&uploaderFake{}, &analyzerFake{}, nil)
	session, _ := uc.Create(ctx)

	if _, err := uc.UpdateForm(ctx, session.ID, domain.ApplicationFormData{DateOfBirth: "01/04/1990"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := uc.UpdateForm(ctx, session.ID, domain.ApplicationFormData{}); err != nil {
		t.Fatalf("empty form must be accepted, got %v", err)
	}
}
