package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-optimizer/internal/parsing"
	"github.com/jonathan/cv-optimizer/internal/pipeline"
)

type processFlags struct {
	cvPath       string
	task         string
	jobURL       string
	jobFile      string
	roles        []string
	jobTitle     string
	industry     string
	keywordsFile string
	outputPath   string
}

func newProcessCmd(opts *rootOptions) *cobra.Command {
	var f processFlags

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run a CV generation task",
		Long: "Run one CV generation task such as optimize, feedback or cover_letter. The CV may be a PDF or a text file.\n\nTasks: " +
			strings.Join(pipeline.TaskNames(), ", "),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()
			return runProcess(cmd, a, f)
		},
	}

	cmd.Flags().StringVar(&f.cvPath, "cv", "", "Path to the CV (.pdf or text)")
	cmd.Flags().StringVarP(&f.task, "task", "t", "", "Task to run (required)")
	cmd.Flags().StringVar(&f.jobURL, "job-url", "", "URL of the job posting")
	cmd.Flags().StringVar(&f.jobFile, "job-file", "", "Path to a text file containing the job description")
	cmd.Flags().StringSliceVar(&f.roles, "roles", nil, "Target roles for multi_versions")
	cmd.Flags().StringVar(&f.jobTitle, "job-title", "", "Job title for market_trends")
	cmd.Flags().StringVar(&f.industry, "industry", "", "Industry for market_trends")
	cmd.Flags().StringVar(&f.keywordsFile, "keywords-file", "", "Path to keywords JSON produced by the keywords command")
	cmd.Flags().StringVarP(&f.outputPath, "output", "o", "", "Write the result to this file instead of stdout")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func runProcess(cmd *cobra.Command, a *app, f processFlags) error {
	ctx := cmd.Context()

	req := pipeline.TaskRequest{
		Task:       f.task,
		JobURL:     f.jobURL,
		Roles:      f.roles,
		JobTitle:   f.jobTitle,
		Industry:   f.industry,
		OnProgress: a.progress(cmd),
	}

	if f.cvPath != "" {
		text, err := readCV(ctx, a, f.cvPath)
		if err != nil {
			return err
		}
		req.CVText = text
	}

	if f.jobFile != "" {
		data, err := os.ReadFile(f.jobFile)
		if err != nil {
			return fmt.Errorf("failed to read job description: %w", err)
		}
		req.JobDescription = string(data)
	}

	if f.keywordsFile != "" {
		data, err := os.ReadFile(f.keywordsFile)
		if err != nil {
			return fmt.Errorf("failed to read keywords: %w", err)
		}
		set, err := parsing.NewParser(a.logger).ParseStrict(string(data))
		if err != nil {
			return fmt.Errorf("invalid keywords file %s: %w", f.keywordsFile, err)
		}
		req.Keywords = &set
	}

	result, err := a.pipeline.RunTask(ctx, req)
	if err != nil {
		return err
	}

	if a.printer != nil && result.Task == pipeline.TaskOptimize {
		a.printer.PrintDetection(result.Seniority, result.Industry, result.UsedKeywords)
	}

	if f.outputPath != "" {
		if err := os.WriteFile(f.outputPath, []byte(result.Text+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Result written to %s\n", f.outputPath)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	return nil
}

// readCV returns the CV text, extracting it first when path is a PDF.
func readCV(ctx context.Context, a *app, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read CV: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return string(data), nil
	}

	result, err := a.pipeline.ExtractDocument(ctx, data)
	if err != nil {
		return "", err
	}
	if a.printer != nil {
		a.printer.PrintExtraction(&result)
	}
	if result.IsEmpty || result.Restricted {
		return "", fmt.Errorf("no text could be extracted from %s", path)
	}
	return result.Text, nil
}
