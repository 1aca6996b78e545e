package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/document-verifier/internal/core/domain"
	"github.com/kirillkom/document-verifier/internal/core/ports"
)

const (
	stageUpload   = "upload"
	stageAnalysis = "analysis"
	stagePreview  = "preview"
)

var errNotApplied = errors.New("update not applied")

type attemptRun struct {
	attempt uint64
	done    chan struct{}
}

// ExtractionUseCase sequences the upload and analysis collaborators for each
// session and guards session state against late responses.
type ExtractionUseCase struct {
	store     ports.SessionStore
	uploader  ports.DocumentUploader
	analyzer  ports.DocumentAnalyzer
	previews  ports.PreviewRenderer
	publisher ports.EventPublisher
	observer  ports.ExtractionObserver
	limits    domain.ExtractionLimits
	logger    *slog.Logger
	validate  *validator.Validate
	sem       *semaphore.Weighted

	now   func() time.Time
	newID func() string

	mu         sync.Mutex
	runs       map[string]*attemptRun
	copyTimers map[string]*time.Timer
	wg         sync.WaitGroup
}

func NewExtractionUseCase(
	store ports.SessionStore,
	uploader ports.DocumentUploader,
	analyzer ports.DocumentAnalyzer,
	previews ports.PreviewRenderer,
	publisher ports.EventPublisher,
	observer ports.ExtractionObserver,
	limits domain.ExtractionLimits,
	logger *slog.Logger,
) *ExtractionUseCase {
	if limits.AttemptTimeout <= 0 {
		limits.AttemptTimeout = 2 * time.Minute
	}
	if limits.CopyIndicator <= 0 {
		limits.CopyIndicator = 2 * time.Second
	}
	if limits.MaxConcurrent <= 0 {
		limits.MaxConcurrent = 8
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ExtractionUseCase{
		store:      store,
		uploader:   uploader,
		analyzer:   analyzer,
		previews:   previews,
		publisher:  publisher,
		observer:   observer,
		limits:     limits,
		logger:     logger,
		validate:   validator.New(),
		sem:        semaphore.NewWeighted(limits.MaxConcurrent),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		runs:       make(map[string]*attemptRun),
		copyTimers: make(map[string]*time.Timer),
	}
}

func (uc *ExtractionUseCase) Create(ctx context.Context) (*domain.ExtractionSession, error) {
	session := domain.NewExtractionSession(uc.newID(), uc.now())
	if err := uc.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return snapshot(session), nil
}

func (uc *ExtractionUseCase) Get(ctx context.Context, id string) (*domain.ExtractionSession, error) {
	session, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return snapshot(session), nil
}

func (uc *ExtractionUseCase) UpdateForm(ctx context.Context, id string, form domain.ApplicationFormData) (*domain.ExtractionSession, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Address = strings.TrimSpace(form.Address)
	form.DateOfBirth = strings.TrimSpace(form.DateOfBirth)
	if err := uc.validate.Struct(form); err != nil {
		return nil, domain.NewUserError(domain.ErrInvalidInput, "Date of birth must use the YYYY-MM-DD format.")
	}

	now := uc.now()
	session, err := uc.store.Update(ctx, id, func(s *domain.ExtractionSession) error {
		return s.SetForm(form, now)
	})
	if err != nil {
		return nil, err
	}
	return snapshot(session), nil
}

// SelectFile installs a file and starts rendering its preview. A file that
// fails validation is reported through the session message and the returned
// error; the session keeps its previous file.
func (uc *ExtractionUseCase) SelectFile(ctx context.Context, id string, file domain.UploadedFile) (*domain.ExtractionSession, error) {
	file.MediaType = domain.NormalizeMediaType(file.MediaType)
	if file.Data != nil {
		file.Size = int64(len(file.Data))
	}

	now := uc.now()
	var selectErr error
	session, err := uc.store.Update(ctx, id, func(s *domain.ExtractionSession) error {
		selectErr = s.SelectFile(file, now)
		if domain.IsKind(selectErr, domain.ErrSessionBusy) {
			return selectErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if selectErr != nil {
		return nil, selectErr
	}

	if uc.previews != nil {
		uc.wg.Add(1)
		go uc.renderPreview(id, session.FileVersion, file)
	}
	return snapshot(session), nil
}

// Submit starts an extraction attempt in the background. The returned
// snapshot is already in the uploading phase.
func (uc *ExtractionUseCase) Submit(ctx context.Context, id string) (*domain.ExtractionSession, error) {
	now := uc.now()
	var (
		beginErr error
		attempt  uint64
		file     domain.UploadedFile
		form     domain.ApplicationFormData
	)
	session, err := uc.store.Update(ctx, id, func(s *domain.ExtractionSession) error {
		attempt, beginErr = s.BeginAttempt(now)
		if domain.IsKind(beginErr, domain.ErrSessionBusy) {
			return beginErr
		}
		if beginErr == nil {
			file = *s.File
			form = s.Form
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if beginErr != nil {
		return nil, beginErr
	}

	run := &attemptRun{attempt: attempt, done: make(chan struct{})}
	uc.mu.Lock()
	uc.runs[id] = run
	uc.mu.Unlock()

	uc.wg.Add(1)
	go uc.runAttempt(id, run, file, form)

	return snapshot(session), nil
}

// Await blocks until the session has no attempt in flight.
func (uc *ExtractionUseCase) Await(ctx context.Context, id string) (*domain.ExtractionSession, error) {
	session, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Phase.InFlight() {
		return snapshot(session), nil
	}

	uc.mu.Lock()
	run := uc.runs[id]
	uc.mu.Unlock()
	if run != nil && run.attempt == session.Attempt {
		select {
		case <-run.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return uc.Get(ctx, id)
}

// Reset clears the session back to idle. An outstanding attempt keeps running
// but its response is discarded.
func (uc *ExtractionUseCase) Reset(ctx context.Context, id string) (*domain.ExtractionSession, error) {
	now := uc.now()
	session, err := uc.store.Update(ctx, id, func(s *domain.ExtractionSession) error {
		s.Reset(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.stopCopyTimer(id)
	return snapshot(session), nil
}

// Copy produces clipboard text for the whole result or a single field and
// records the copy target until the indicator expires.
func (uc *ExtractionUseCase) Copy(ctx context.Context, id, target string) (*domain.CopyResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		target = domain.CopyTargetAll
	}

	now := uc.now()
	var (
		result  domain.CopyResult
		version uint64
	)
	_, err := uc.store.Update(ctx, id, func(s *domain.ExtractionSession) error {
		if s.Result == nil {
			return domain.NewUserError(domain.ErrInvalidInput, "There is no extraction result to copy yet.")
		}
		text, err := copyText(s.Result, target)
		if err != nil {
			return err
		}
		expiresAt := now.Add(uc.limits.CopyIndicator)
		version = s.MarkCopied(target, expiresAt, now)
		result = domain.CopyResult{Target: target, Text: text, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.scheduleCopyExpiry(id, version)
	return &result, nil
}

func (uc *ExtractionUseCase) Export(ctx context.Context, id string) ([]domain.FieldRecord, error) {
	session, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Result == nil {
		return nil, domain.NewUserError(domain.ErrInvalidInput, "There is no extraction result to export yet.")
	}
	return domain.FieldRecords(session.Result.ExtractedFields), nil
}

// Preview returns the selected file including its bytes.
func (uc *ExtractionUseCase) Preview(ctx context.Context, id string) (*domain.UploadedFile, error) {
	session, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.File == nil {
		return nil, domain.NewUserError(domain.ErrInvalidInput, domain.MessageSelectFile)
	}
	file := *session.File
	return &file, nil
}

func (uc *ExtractionUseCase) Delete(ctx context.Context, id string) error {
	if err := uc.store.Delete(ctx, id); err != nil {
		return err
	}
	uc.stopCopyTimer(id)
	return nil
}

// Shutdown waits for background attempts and previews to finish.
func (uc *ExtractionUseCase) Shutdown(ctx context.Context) error {
	uc.mu.Lock()
	for id, timer := range uc.copyTimers {
		timer.Stop()
		delete(uc.copyTimers, id)
	}
	uc.mu.Unlock()

	done := make(chan struct{})
	go func() {
		uc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (uc *ExtractionUseCase) runAttempt(id string, run *attemptRun, file domain.UploadedFile, form domain.ApplicationFormData) {
	defer uc.wg.Done()
	defer uc.finishRun(id, run)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), uc.limits.AttemptTimeout)
	defer cancel()

	if err := uc.sem.Acquire(ctx, 1); err != nil {
		uc.failAttempt(id, run.attempt, domain.MessageNetwork, domain.MessageNetworkError, start, err)
		return
	}
	defer uc.sem.Release(1)

	stageStart := time.Now()
	assetIDs, err := uc.uploader.Upload(ctx, file)
	uc.observer.ObserveStage(stageUpload, time.Since(stageStart), err)
	if err != nil {
		kind, message := failureMessage(err, domain.MessageUploadFailed)
		uc.failAttempt(id, run.attempt, kind, message, start, err)
		return
	}
	if len(assetIDs) == 0 {
		uc.failAttempt(id, run.attempt, domain.MessageCollaborator, domain.MessageNoAssets, start, nil)
		return
	}

	if !uc.apply(id, run.attempt, func(s *domain.ExtractionSession) error {
		return s.UploadSucceeded(run.attempt, uc.now())
	}) {
		return
	}

	stageStart = time.Now()
	resp, err := uc.analyzer.Analyze(ctx, domain.AnalysisRequest{
		SessionID: id,
		Message:   BuildAnalysisPrompt(form),
		AssetIDs:  assetIDs,
	})
	uc.observer.ObserveStage(stageAnalysis, time.Since(stageStart), err)
	if err != nil {
		kind, message := failureMessage(err, domain.MessageAnalysisFailed)
		uc.failAttempt(id, run.attempt, kind, message, start, err)
		return
	}
	if resp == nil || resp.Result == nil {
		uc.failAttempt(id, run.attempt, domain.MessageCollaborator, domain.MessageAnalysisFailed, start, nil)
		return
	}

	if !uc.apply(id, run.attempt, func(s *domain.ExtractionSession) error {
		return s.Complete(run.attempt, resp.Result, resp.Metadata, uc.now())
	}) {
		return
	}
	uc.finishAttempt(domain.NewResultEvent(id, run.attempt, resp.Result, time.Since(start), uc.now()), nil)
}

func (uc *ExtractionUseCase) failAttempt(id string, attempt uint64, kind domain.MessageKind, message string, start time.Time, cause error) {
	if !uc.apply(id, attempt, func(s *domain.ExtractionSession) error {
		return s.Fail(attempt, kind, message, uc.now())
	}) {
		return
	}
	uc.finishAttempt(domain.NewFailureEvent(id, attempt, kind, time.Since(start), uc.now()), cause)
}

// apply writes an attempt transition and reports whether it landed.
func (uc *ExtractionUseCase) apply(id string, attempt uint64, fn func(*domain.ExtractionSession) error) bool {
	_, err := uc.store.Update(context.Background(), id, fn)
	if err == nil {
		return true
	}
	if domain.IsStaleAttempt(err) || domain.IsKind(err, domain.ErrSessionNotFound) {
		uc.logger.Info("extraction_response_discarded", "session_id", id, "attempt", attempt, "reason", err.Error())
		return false
	}
	uc.logger.Error("extraction_state_update_failed", "session_id", id, "attempt", attempt, "error", err)
	return false
}

func (uc *ExtractionUseCase) finishAttempt(event domain.ExtractionEvent, cause error) {
	uc.observer.ObserveOutcome(event)

	attrs := []any{
		"session_id", event.SessionID,
		"attempt", event.Attempt,
		"outcome", string(event.Outcome),
		"duration_ms", event.Duration.Milliseconds(),
	}
	if event.Outcome == domain.OutcomeFailed {
		attrs = append(attrs, "failure_kind", string(event.FailureKind))
		if cause != nil {
			attrs = append(attrs, "error", cause.Error())
		}
		uc.logger.Warn("extraction_attempt_finished", attrs...)
	} else {
		attrs = append(attrs, "document_type", event.DocumentType, "routing_decision", string(event.RoutingDecision))
		uc.logger.Info("extraction_attempt_finished", attrs...)
	}

	if uc.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.publisher.PublishExtractionFinished(ctx, event); err != nil {
		uc.logger.Warn("extraction_event_publish_failed", "session_id", event.SessionID, "attempt", event.Attempt, "error", err)
	}
}

func (uc *ExtractionUseCase) finishRun(id string, run *attemptRun) {
	uc.mu.Lock()
	if uc.runs[id] == run {
		delete(uc.runs, id)
	}
	uc.mu.Unlock()
	close(run.done)
}

func (uc *ExtractionUseCase) renderPreview(id string, fileVersion uint64, file domain.UploadedFile) {
	defer uc.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), uc.limits.AttemptTimeout)
	defer cancel()

	start := time.Now()
	preview, err := uc.previews.Render(ctx, file)
	uc.observer.ObserveStage(stagePreview, time.Since(start), err)
	if err != nil {
		uc.logger.Warn("preview_render_failed", "session_id", id, "media_type", file.MediaType, "error", err)
		return
	}

	_, err = uc.store.Update(ctx, id, func(s *domain.ExtractionSession) error {
		if !s.SetPreview(fileVersion, preview, uc.now()) {
			return errNotApplied
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNotApplied) && !domain.IsKind(err, domain.ErrSessionNotFound) {
		uc.logger.Error("preview_update_failed", "session_id", id, "error", err)
	}
}

func (uc *ExtractionUseCase) scheduleCopyExpiry(id string, version uint64) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if previous := uc.copyTimers[id]; previous != nil {
		previous.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(uc.limits.CopyIndicator, func() {
		_, err := uc.store.Update(context.Background(), id, func(s *domain.ExtractionSession) error {
			if !s.ExpireCopy(version) {
				return errNotApplied
			}
			return nil
		})
		if err != nil && !errors.Is(err, errNotApplied) && !domain.IsKind(err, domain.ErrSessionNotFound) {
			uc.logger.Error("copy_expiry_failed", "session_id", id, "error", err)
		}

		uc.mu.Lock()
		if uc.copyTimers[id] == timer {
			delete(uc.copyTimers, id)
		}
		uc.mu.Unlock()
	})
	uc.copyTimers[id] = timer
}

func (uc *ExtractionUseCase) stopCopyTimer(id string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if timer := uc.copyTimers[id]; timer != nil {
		timer.Stop()
		delete(uc.copyTimers, id)
	}
}

// failureMessage separates collaborator-reported failures, which carry their
// own text, from transport faults. A request that failed validation never
// reached the network and gets the stage's generic text.
func failureMessage(err error, fallback string) (domain.MessageKind, string) {
	switch {
	case domain.IsKind(err, domain.ErrCollaborator):
		return domain.MessageCollaborator, domain.UserMessage(err, fallback)
	case domain.IsKind(err, domain.ErrInvalidInput):
		return domain.MessageCollaborator, fallback
	}
	return domain.MessageNetwork, domain.MessageNetworkError
}

func copyText(result *domain.StructuredResult, target string) (string, error) {
	if target == domain.CopyTargetAll {
		return domain.MarshalFieldRecords(domain.FieldRecords(result.ExtractedFields))
	}
	field, ok := result.ExtractedFields.Lookup(target)
	if !ok {
		return "", domain.NewUserError(domain.ErrInvalidInput, fmt.Sprintf("Field %q is not part of the extraction result.", target))
	}
	return field.Value, nil
}

// snapshot hides file bytes from read models.
func snapshot(session *domain.ExtractionSession) *domain.ExtractionSession {
	out := session.Clone()
	if out != nil && out.File != nil {
		out.File.Data = nil
	}
	return out
}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, time.Duration, error) {}

func (noopObserver) ObserveOutcome(domain.ExtractionEvent) {}
