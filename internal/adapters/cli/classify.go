package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-verifier/internal/core/classify"
)

func newClassifyCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify feedback lines",
		Long: `Buckets each argument as positive, warning, negative or neutral feedback
using the same keyword rules applied to agent alerts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]classify.ClassifiedText, 0, len(args))
			for _, text := range args {
				out = append(out, classify.ClassifiedText{Text: text, Category: classify.Feedback(text)})
			}

			if asJSON {
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal classifications: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			for _, item := range out {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", item.Category, item.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output classifications as JSON")
	return cmd
}
