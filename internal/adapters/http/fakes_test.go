package httpadapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/document-verifier/internal/config"
	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// extractionServiceFake answers from fixed sessions and records inputs.
type extractionServiceFake struct {
	session *domain.ExtractionSession
	err     error

	awaited     *domain.ExtractionSession
	copyResult  *domain.CopyResult
	records     []domain.FieldRecord
	previewFile *domain.UploadedFile

	gotForm   domain.ApplicationFormData
	gotFile   domain.UploadedFile
	gotTarget string
	gotID     string
	deleted   bool
}

func (f *extractionServiceFake) result() (*domain.ExtractionSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *extractionServiceFake) Create(context.Context) (*domain.ExtractionSession, error) {
	return f.result()
}

func (f *extractionServiceFake) Get(_ context.Context, id string) (*domain.ExtractionSession, error) {
	f.gotID = id
	return f.result()
}

func (f *extractionServiceFake) UpdateForm(_ context.Context, id string, form domain.ApplicationFormData) (*domain.ExtractionSession, error) {
	f.gotID = id
	f.gotForm = form
	return f.result()
}

func (f *extractionServiceFake) SelectFile(_ context.Context, id string, file domain.UploadedFile) (*domain.ExtractionSession, error) {
	f.gotID = id
	f.gotFile = file
	return f.result()
}

func (f *extractionServiceFake) Submit(_ context.Context, id string) (*domain.ExtractionSession, error) {
	f.gotID = id
	return f.result()
}

func (f *extractionServiceFake) Await(ctx context.Context, _ string) (*domain.ExtractionSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.awaited == nil {
		return nil, fmt.Errorf("await not expected")
	}
	return f.awaited, nil
}

func (f *extractionServiceFake) Reset(_ context.Context, id string) (*domain.ExtractionSession, error) {
	f.gotID = id
	return f.result()
}

func (f *extractionServiceFake) Copy(_ context.Context, id, target string) (*domain.CopyResult, error) {
	f.gotID = id
	f.gotTarget = target
	if f.err != nil {
		return nil, f.err
	}
	return f.copyResult, nil
}

func (f *extractionServiceFake) Export(context.Context, string) ([]domain.FieldRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *extractionServiceFake) Preview(context.Context, string) (*domain.UploadedFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.previewFile, nil
}

func (f *extractionServiceFake) Delete(_ context.Context, id string) error {
	f.gotID = id
	if f.err != nil {
		return f.err
	}
	f.deleted = true
	return nil
}

type spreadsheetFake struct {
	got []domain.FieldRecord
}

func (f *spreadsheetFake) ContentType() string { return "application/x-test-sheet" }

func (f *spreadsheetFake) Write(w io.Writer, records []domain.FieldRecord) error {
	f.got = records
	_, err := io.WriteString(w, "sheet")
	return err
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &extractionServiceFake{session: idleSession()}, nil, nil).Handler()
}

func idleSession() *domain.ExtractionSession {
	return domain.NewExtractionSession("s1", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
}

type breakerStatesFake map[string]string

func (f breakerStatesFake) States() map[string]string { return f }
