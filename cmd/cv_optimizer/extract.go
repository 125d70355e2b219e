package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newExtractDocumentCmd(opts *rootOptions) *cobra.Command {
	var (
		filePath string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "extract-document",
		Short: "Extract the text of a PDF CV",
		Long:  "Extract the text of a PDF CV, falling back to page-by-page extraction when the whole-document pass fails.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.pipeline.ExtractDocument(cmd.Context(), data)
			if err != nil {
				return err
			}
			if a.printer != nil {
				a.printer.PrintExtraction(&result)
			}

			if asJSON {
				return writeJSON(cmd, result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to the PDF document (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full extraction result as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExtractPostingCmd(opts *rootOptions) *cobra.Command {
	var (
		urlStr string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "extract-posting",
		Short: "Extract a job posting from a URL",
		Long:  "Fetch a job posting, clean it with the matching job board adapter and summarize it when it is long.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			posting, err := a.pipeline.ExtractPosting(cmd.Context(), strings.TrimSpace(urlStr))
			if err != nil {
				return err
			}
			if a.printer != nil {
				a.printer.PrintPosting(&posting)
			}

			if asJSON {
				return writeJSON(cmd, posting)
			}
			fmt.Fprintln(cmd.OutOrStdout(), posting.FinalText)
			return nil
		},
	}

	cmd.Flags().StringVarP(&urlStr, "url", "u", "", "URL of the job posting (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full posting as JSON")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
