package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/docker/go-units"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

const multipartMemory = 4 << 20

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	session, err := rt.svc.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+session.ID)
	writeJSON(w, http.StatusCreated, newSessionView(session, rt.now()))
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := rt.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session, rt.now()))
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) updateForm(w http.ResponseWriter, r *http.Request) {
	var req formRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, r, domain.NewUserError(domain.ErrInvalidInput, "Request body must be a JSON object."))
		return
	}

	session, err := rt.svc.UpdateForm(r.Context(), r.PathValue("id"), domain.ApplicationFormData{
		Name:        req.Name,
		Address:     req.Address,
		DateOfBirth: req.DateOfBirth,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session, rt.now()))
}

func (rt *Router) selectFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxRequestBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, fmt.Errorf("%w: %w", maxBytesErr, domain.NewUserError(domain.ErrInvalidInput,
				fmt.Sprintf("The request exceeds %s.", units.BytesSize(float64(maxBytesErr.Limit))))))
			return
		}
		writeError(w, r, domain.NewUserError(domain.ErrInvalidInput, "multipart field 'file' is required"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.NewUserError(domain.ErrInvalidInput, "multipart field 'file' is required"))
		return
	}
	defer file.Close()

	upload := domain.UploadedFile{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Size:      header.Size,
	}
	// Oversized files are rejected on their declared size without reading.
	if header.Size <= domain.MaxUploadBytes {
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, fmt.Errorf("read uploaded file: %w", err))
			return
		}
		upload.Data = data
		if upload.MediaType == "" || upload.MediaType == "application/octet-stream" {
			upload.MediaType = http.DetectContentType(data)
		}
	}

	session, err := rt.svc.SelectFile(r.Context(), r.PathValue("id"), upload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session, rt.now()))
}

func (rt *Router) previewFile(w http.ResponseWriter, r *http.Request) {
	file, err := rt.svc.Preview(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": file.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

// submit starts an attempt. With wait=true the response carries the final
// state instead of the uploading snapshot.
func (rt *Router) submit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := rt.svc.Submit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		writeJSON(w, http.StatusAccepted, newSessionView(session, rt.now()))
		return
	}

	session, err = rt.svc.Await(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session, rt.now()))
}

func (rt *Router) reset(w http.ResponseWriter, r *http.Request) {
	session, err := rt.svc.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session, rt.now()))
}

func (rt *Router) copyResult(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, domain.NewUserError(domain.ErrInvalidInput, "Request body must be a JSON object."))
		return
	}

	result, err := rt.svc.Copy(r.Context(), r.PathValue("id"), req.Target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) export(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "xlsx" {
		writeError(w, r, domain.NewUserError(domain.ErrInvalidInput, fmt.Sprintf("Unsupported export format %q.", format)))
		return
	}
	if format == "xlsx" && rt.exporter == nil {
		writeError(w, r, domain.NewUserError(domain.ErrInvalidInput, "Spreadsheet export is not available."))
		return
	}

	records, err := rt.svc.Export(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if format == "json" {
		writeJSON(w, http.StatusOK, records)
		return
	}

	w.Header().Set("Content-Type", rt.exporter.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": "extraction-" + id + ".xlsx",
	}))
	if err := rt.exporter.Write(w, records); err != nil {
		writeError(w, r, fmt.Errorf("write spreadsheet: %w", err))
	}
}
