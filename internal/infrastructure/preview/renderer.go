package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/docker/go-units"
	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// Renderer derives preview metadata locally without touching the network.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) Render(ctx context.Context, file domain.UploadedFile) (domain.Preview, error) {
	if err := ctx.Err(); err != nil {
		return domain.Preview{}, err
	}
	if len(file.Data) == 0 {
		return domain.Preview{}, domain.WrapError(domain.ErrInvalidInput, "render preview", fmt.Errorf("file %q has no content", file.Name))
	}

	out := domain.Preview{
		MediaType: domain.NormalizeMediaType(file.MediaType),
		SizeLabel: units.BytesSize(float64(len(file.Data))),
	}
	if domain.IsPDF(file.MediaType) {
		pages, err := countPDFPages(file.Data)
		if err != nil {
			return domain.Preview{}, domain.WrapError(domain.ErrInvalidInput, "render pdf preview", err)
		}
		out.Kind = domain.PreviewPDF
		out.Pages = pages
		return out, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return domain.Preview{}, domain.WrapError(domain.ErrInvalidInput, "render image preview", err)
	}
	out.Kind = domain.PreviewImage
	out.Width = cfg.Width
	out.Height = cfg.Height
	return out, nil
}

// countPDFPages recovers from parser panics on malformed documents.
func countPDFPages(data []byte) (pages int, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("parse pdf: %v", recovered)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
