package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newKeywordsCmd(opts *rootOptions) *cobra.Command {
	var (
		jobFile string
		urlStr  string
	)

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Extract weighted keywords from a job description",
		Long:  "Extract weighted keywords in five categories from a job description file or a job posting URL. The output uses the configured keyword locale.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jobFile == "" && urlStr == "" {
				return fmt.Errorf("either --job-file or --url must be provided")
			}
			if jobFile != "" && urlStr != "" {
				return fmt.Errorf("--job-file and --url are mutually exclusive; provide only one")
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			var description string
			if jobFile != "" {
				data, err := os.ReadFile(jobFile)
				if err != nil {
					return fmt.Errorf("failed to read job description: %w", err)
				}
				description = string(data)
			} else {
				posting, err := a.pipeline.ExtractPosting(cmd.Context(), urlStr)
				if err != nil {
					return err
				}
				description = posting.FinalText
			}

			set, err := a.pipeline.ExtractKeywords(cmd.Context(), description)
			if err != nil {
				return err
			}
			if a.printer != nil {
				a.printer.PrintKeywords(set)
			}

			encoded, err := set.Encode(a.pipeline.Wire())
			if err != nil {
				return fmt.Errorf("failed to encode keywords: %w", err)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, encoded, "", "  "); err != nil {
				return fmt.Errorf("failed to encode keywords: %w", err)
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVarP(&jobFile, "job-file", "j", "", "Path to a text file containing the job description")
	cmd.Flags().StringVarP(&urlStr, "url", "u", "", "URL of the job posting")
	return cmd
}
