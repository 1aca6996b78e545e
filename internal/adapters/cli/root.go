// Package cli implements the docscan command line client.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-verifier/internal/core/ports"
)

// Dependencies are the services the commands drive.
type Dependencies struct {
	Service   ports.ExtractionService
	Clipboard Clipboard
	Renderer  *Renderer
	Timeout   time.Duration
}

func NewRootCommand(deps Dependencies) *cobra.Command {
	if deps.Renderer == nil {
		deps.Renderer = NewRenderer()
	}
	if deps.Clipboard == nil {
		deps.Clipboard = SystemClipboard{}
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Minute
	}

	root := &cobra.Command{
		Use:   "docscan",
		Short: "Extract and verify identity documents",
		Long: `docscan uploads an identity document to the extraction agent, waits for
the structured result and prints the classified verification report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newExtractCommand(deps))
	root.AddCommand(newClassifyCommand())
	return root
}
