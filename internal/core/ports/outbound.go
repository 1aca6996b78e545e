package ports

import (
	"context"
	"time"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// DocumentUploader sends a document to the upload collaborator and returns
// the asset identifiers it assigned.
type DocumentUploader interface {
	Upload(ctx context.Context, file domain.UploadedFile) ([]string, error)
}

// DocumentAnalyzer asks the remote agent to extract and validate uploaded assets.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error)
}

// SessionStore keeps extraction sessions. Update runs fn under the session's
// lock and persists the result only when fn returns nil.
type SessionStore interface {
	Create(ctx context.Context, session *domain.ExtractionSession) error
	Get(ctx context.Context, id string) (*domain.ExtractionSession, error)
	Update(ctx context.Context, id string, fn func(*domain.ExtractionSession) error) (*domain.ExtractionSession, error)
	Delete(ctx context.Context, id string) error
}

// PreviewRenderer derives display metadata from a selected file.
type PreviewRenderer interface {
	Render(ctx context.Context, file domain.UploadedFile) (domain.Preview, error)
}

// EventPublisher publishes finished extraction attempts.
type EventPublisher interface {
	PublishExtractionFinished(ctx context.Context, event domain.ExtractionEvent) error
}

// EventSubscriber consumes finished extraction attempts.
type EventSubscriber interface {
	SubscribeExtractionFinished(ctx context.Context, handler func(context.Context, domain.ExtractionEvent) error) error
}

// AuditRepository persists audit rows for finished attempts.
type AuditRepository interface {
	SaveExtractionEvent(ctx context.Context, event domain.ExtractionEvent) error
}

// ExtractionObserver receives stage timings and outcomes for metrics.
type ExtractionObserver interface {
	ObserveStage(stage string, duration time.Duration, err error)
	ObserveOutcome(event domain.ExtractionEvent)
}
