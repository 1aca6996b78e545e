package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-verifier/internal/core/classify"
	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// ErrExtractionFailed is returned when the attempt ended in the failed phase.
// The session message has already been printed.
var ErrExtractionFailed = errors.New("extraction failed")

type extractOptions struct {
	name       string
	address    string
	dob        string
	copyTarget string
	asJSON     bool
}

type extractOutput struct {
	SessionID string                   `json:"session_id"`
	Result    *domain.StructuredResult `json:"result"`
	Report    *classify.Report         `json:"report"`
	Copied    string                   `json:"copied,omitempty"`
}

func newExtractCommand(deps Dependencies) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract fields from a document",
		Long: `Uploads a JPEG, PNG or PDF document, runs the extraction agent with the
optional application form as cross-reference and prints the verification report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, deps, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.name, "name", "", "applicant name to cross-reference")
	cmd.Flags().StringVar(&opts.address, "address", "", "applicant address to cross-reference")
	cmd.Flags().StringVar(&opts.dob, "dob", "", "applicant date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.copyTarget, "copy", "", "copy all fields or one named field to the clipboard")
	cmd.Flags().Lookup("copy").NoOptDefVal = domain.CopyTargetAll
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "output the result and report as JSON")
	return cmd
}

func runExtract(cmd *cobra.Command, deps Dependencies, opts extractOptions, path string) error {
	if deps.Service == nil {
		return errors.New("extraction service not configured")
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, deps.Timeout)
	defer cancel()

	file, err := readDocument(path)
	if err != nil {
		return err
	}

	svc := deps.Service
	session, err := svc.Create(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = svc.Delete(context.Background(), session.ID)
	}()

	form := domain.ApplicationFormData{Name: opts.name, Address: opts.address, DateOfBirth: opts.dob}
	if form != (domain.ApplicationFormData{}) {
		if _, err := svc.UpdateForm(ctx, session.ID, form); err != nil {
			return err
		}
	}
	if _, err := svc.SelectFile(ctx, session.ID, file); err != nil {
		return err
	}
	if _, err := svc.Submit(ctx, session.ID); err != nil {
		return err
	}
	session, err = svc.Await(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("wait for extraction: %w", err)
	}

	if session.Phase != domain.PhaseResultReady {
		fmt.Fprintln(cmd.ErrOrStderr(), deps.Renderer.Failure(session.MessageKind, session.Message))
		return ErrExtractionFailed
	}

	out := extractOutput{
		SessionID: session.ID,
		Result:    session.Result,
		Report:    classify.BuildReport(session.Result, session.Metadata),
	}
	if opts.copyTarget != "" {
		copied, err := svc.Copy(ctx, session.ID, opts.copyTarget)
		if err != nil {
			return err
		}
		if err := deps.Clipboard.WriteAll(copied.Text); err != nil {
			return fmt.Errorf("write clipboard: %w", err)
		}
		out.Copied = copied.Target
	}

	return writeExtractOutput(cmd.OutOrStdout(), deps.Renderer, out, opts.asJSON)
}

func writeExtractOutput(w io.Writer, renderer *Renderer, out extractOutput, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal extraction: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	if _, err := fmt.Fprint(w, renderer.Report(out.Report)); err != nil {
		return err
	}
	if out.Copied != "" {
		_, err := fmt.Fprintf(w, "\nCopied %s to clipboard.\n", out.Copied)
		return err
	}
	return nil
}

// readDocument loads path unless it is already larger than the upload limit,
// in which case only the size is reported so validation can reject it.
func readDocument(path string) (domain.UploadedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("stat document: %w", err)
	}
	if info.IsDir() {
		return domain.UploadedFile{}, fmt.Errorf("%s is a directory", path)
	}

	file := domain.UploadedFile{
		Name:      filepath.Base(path),
		MediaType: mime.TypeByExtension(filepath.Ext(path)),
		Size:      info.Size(),
	}
	if info.Size() > domain.MaxUploadBytes {
		return file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.UploadedFile{}, fmt.Errorf("read document: %w", err)
	}
	file.Data = data
	if file.MediaType == "" {
		file.MediaType = http.DetectContentType(data)
	}
	return file, nil
}
