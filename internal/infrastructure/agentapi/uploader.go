package agentapi

import (
	"bytes"
	"context"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"

	"github.com/kirillkom/document-verifier/internal/core/domain"
	"github.com/kirillkom/document-verifier/internal/infrastructure/resilience"
)

type uploadResponse struct {
	Success  bool     `json:"success"`
	AssetIDs []string `json:"asset_ids"`
	Error    string   `json:"error"`
}

type Uploader struct {
	client *Client
}

func NewUploader(client *Client) *Uploader {
	return &Uploader{client: client}
}

// Upload posts the file as multipart field "files" and returns the asset ids.
// An empty id list is returned as-is; the caller decides what it means.
func (u *Uploader) Upload(ctx context.Context, file domain.UploadedFile) ([]string, error) {
	c := u.client
	ids, err := resilience.Call(ctx, c.executor, "agent.upload", func(ctx context.Context) ([]string, error) {
		var resp uploadResponse
		if err := c.do(ctx, "upload", func(ctx context.Context) (*http.Request, error) {
			return newUploadRequest(ctx, c.baseURL+c.uploadPath, file)
		}, &resp); err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, collaboratorFailure("upload", resp.Error)
		}
		return resp.AssetIDs, nil
	}, classifyAgentError)
	if err != nil {
		return nil, wrapTransportFault("upload", err)
	}
	return ids, nil
}

func newUploadRequest(ctx context.Context, url string, file domain.UploadedFile) (*http.Request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	name := filepath.Base(file.Name)
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "files",
		"filename": name,
	}))
	header.Set("Content-Type", domain.NormalizeMediaType(file.MediaType))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}
