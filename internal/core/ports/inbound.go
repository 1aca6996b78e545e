package ports

import (
	"context"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// ExtractionService is the inbound contract for driving extraction sessions.
// Returned sessions are snapshots; mutating them has no effect.
type ExtractionService interface {
	Create(ctx context.Context) (*domain.ExtractionSession, error)
	Get(ctx context.Context, id string) (*domain.ExtractionSession, error)
	UpdateForm(ctx context.Context, id string, form domain.ApplicationFormData) (*domain.ExtractionSession, error)
	SelectFile(ctx context.Context, id string, file domain.UploadedFile) (*domain.ExtractionSession, error)
	Submit(ctx context.Context, id string) (*domain.ExtractionSession, error)
	Await(ctx context.Context, id string) (*domain.ExtractionSession, error)
	Reset(ctx context.Context, id string) (*domain.ExtractionSession, error)
	Copy(ctx context.Context, id, target string) (*domain.CopyResult, error)
	Export(ctx context.Context, id string) ([]domain.FieldRecord, error)
	Preview(ctx context.Context, id string) (*domain.UploadedFile, error)
	Delete(ctx context.Context, id string) error
}

// ExtractionAuditor records finished extraction attempts consumed from the bus.
type ExtractionAuditor interface {
	Record(ctx context.Context, event domain.ExtractionEvent) error
}
