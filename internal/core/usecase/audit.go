package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/document-verifier/internal/core/domain"
	"github.com/kirillkom/document-verifier/internal/core/ports"
)

// AuditRecorder observes audit writes.
type AuditRecorder interface {
	StartRecord()
	FinishRecord(service string, duration time.Duration, err error)
	ObserveEventLag(service string, lag time.Duration)
}

type AuditUseCase struct {
	repo     ports.AuditRepository
	recorder AuditRecorder
	service  string
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuditUseCase(repo ports.AuditRepository, recorder AuditRecorder, service string, logger *slog.Logger) *AuditUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditUseCase{
		repo:     repo,
		recorder: recorder,
		service:  service,
		logger:   logger,
		now:      time.Now,
	}
}

func (uc *AuditUseCase) Record(ctx context.Context, event domain.ExtractionEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	start := uc.now()
	if uc.recorder != nil {
		uc.recorder.StartRecord()
		uc.recorder.ObserveEventLag(uc.service, start.Sub(event.OccurredAt))
	}

	err := uc.repo.SaveExtractionEvent(ctx, event)
	if uc.recorder != nil {
		uc.recorder.FinishRecord(uc.service, uc.now().Sub(start), err)
	}
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "save extraction audit", err)
	}

	uc.logger.Info("extraction_audited",
		"session_id", event.SessionID,
		"attempt", event.Attempt,
		"outcome", event.Outcome,
		"routing_decision", event.RoutingDecision,
	)
	return nil
}

func validateEvent(event domain.ExtractionEvent) error {
	if strings.TrimSpace(event.SessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate extraction event", fmt.Errorf("session_id is required"))
	}
	if event.Attempt == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate extraction event", fmt.Errorf("attempt must be positive"))
	}
	switch event.Outcome {
	case domain.OutcomeResultReady, domain.OutcomeFailed:
	default:
		return domain.WrapError(domain.ErrInvalidInput, "validate extraction event", fmt.Errorf("unknown outcome %q", event.Outcome))
	}
	return nil
}
