package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/cv-optimizer/internal/llm"
	"github.com/jonathan/cv-optimizer/internal/prompts"
	"github.com/jonathan/cv-optimizer/internal/types"
)

// Task names accepted by RunTask.
const (
	TaskOptimize           = "optimize"
	TaskFeedback           = "feedback"
	TaskCoverLetter        = "cover_letter"
	TaskTranslate          = "translate"
	TaskAlternativeCareers = "alternative_careers"
	TaskMultiVersions      = "multi_versions"
	TaskATSCheck           = "ats_check"
	TaskInterviewQuestions = "interview_questions"
	TaskMarketTrends       = "market_trends"
)

// TaskDefinition defines how a generation task is prompted.
type TaskDefinition struct {
	Name      string
	Category  string
	MaxTokens int
	// Prompt is the key of the task template in tasks.json.
	Prompt string
}

// TaskRegistry holds every task definition.
var TaskRegistry = map[string]TaskDefinition{
	TaskOptimize:           {Name: TaskOptimize, Category: CategoryGeneration, MaxTokens: 2500, Prompt: "optimize"},
	TaskFeedback:           {Name: TaskFeedback, Category: CategoryAnalysis, MaxTokens: 2000, Prompt: "feedback"},
	TaskCoverLetter:        {Name: TaskCoverLetter, Category: CategoryGeneration, MaxTokens: 2000, Prompt: "cover_letter"},
	TaskTranslate:          {Name: TaskTranslate, Category: CategoryGeneration, MaxTokens: 2500, Prompt: "translate"},
	TaskAlternativeCareers: {Name: TaskAlternativeCareers, Category: CategoryAnalysis, MaxTokens: 2000, Prompt: "alternative_careers"},
	TaskMultiVersions:      {Name: TaskMultiVersions, Category: CategoryGeneration, MaxTokens: 3000, Prompt: "multi_versions"},
	TaskATSCheck:           {Name: TaskATSCheck, Category: CategoryAnalysis, MaxTokens: 1800, Prompt: "ats_check"},
	TaskInterviewQuestions: {Name: TaskInterviewQuestions, Category: CategoryGeneration, MaxTokens: 2000, Prompt: "interview_questions"},
	TaskMarketTrends:       {Name: TaskMarketTrends, Category: CategoryAnalysis, MaxTokens: 1500, Prompt: "market_trends"},
}

// TaskNames returns the registered task names, sorted.
func TaskNames() []string {
	names := make([]string, 0, len(TaskRegistry))
	for name := range TaskRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TaskError reports a request that cannot be run as given.
type TaskError struct {
	Task   string
	Fields []string
	Reason string
}

func (e *TaskError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("invalid %s request: %s (%s)", e.Task, e.Reason, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("invalid %s request: %s", e.Task, e.Reason)
}

// TaskRequest is one generation task.
type TaskRequest struct {
	Task           string   `json:"selected_option" validate:"required"`
	CVText         string   `json:"cv_text" validate:"required_unless=Task market_trends"`
	JobDescription string   `json:"job_description"`
	JobURL         string   `json:"job_url" validate:"omitempty,url"`
	Roles          []string `json:"roles" validate:"required_if=Task multi_versions"`
	JobTitle       string   `json:"job_title" validate:"required_if=Task market_trends"`
	Industry       string   `json:"industry"`

	// Keywords is a previously extracted set. Optimize uses it when a job
	// description is available.
	Keywords *types.KeywordCategorySet `json:"-"`

	OnProgress ProgressCallback `json:"-"`
}

// TaskResult is the outcome of RunTask.
type TaskResult struct {
	RequestID string `json:"request_id"`
	Task      string `json:"task"`
	Text      string `json:"result"`
	// ExtractedJobDescription is set only when the job description was
	// extracted from JobURL for this request.
	ExtractedJobDescription string `json:"job_description,omitempty"`
	UsedKeywords            bool   `json:"used_keywords"`
	Seniority               string `json:"seniority,omitempty"`
	Industry                string `json:"industry,omitempty"`
}

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateTask normalizes req in place and checks the fields its task needs.
func validateTask(req *TaskRequest) (TaskDefinition, error) {
	req.Task = strings.TrimSpace(req.Task)
	if req.Task == "" {
		return TaskDefinition{}, &TaskError{Task: "task", Fields: []string{"selected_option"}, Reason: "no task selected"}
	}
	def, ok := TaskRegistry[req.Task]
	if !ok {
		return TaskDefinition{}, &TaskError{
			Task:   req.Task,
			Reason: fmt.Sprintf("unknown task, expected one of %s", strings.Join(TaskNames(), ", ")),
		}
	}

	req.CVText = strings.TrimSpace(req.CVText)
	req.JobDescription = strings.TrimSpace(req.JobDescription)
	req.JobURL = strings.TrimSpace(req.JobURL)
	req.JobTitle = strings.TrimSpace(req.JobTitle)
	req.Industry = strings.TrimSpace(req.Industry)

	var roles []string
	for _, role := range req.Roles {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	req.Roles = roles

	if err := requestValidator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return TaskDefinition{}, fmt.Errorf("validate task request: %w", err)
		}
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field())
		}
		return TaskDefinition{}, &TaskError{Task: def.Name, Fields: fields, Reason: "missing or invalid fields"}
	}
	return def, nil
}

// RunTask runs one generation task. When JobURL is set and no job
// description is given, the posting is extracted first.
func (p *Pipeline) RunTask(ctx context.Context, req TaskRequest) (*TaskResult, error) {
	r := p.newRun("run_task", req.OnProgress)

	def, err := validateTask(&req)
	if err != nil {
		r.log.Warn("rejected task request", zap.Error(err))
		return nil, err
	}
	if p.caller == nil {
		return nil, fmt.Errorf("remote caller is not configured")
	}
	r.log = r.log.With(zap.String("task", def.Name))

	result := &TaskResult{RequestID: r.id, Task: def.Name}

	if req.JobURL != "" && req.JobDescription == "" {
		posting, err := p.extractPosting(ctx, r, req.JobURL)
		if err != nil {
			return nil, fmt.Errorf("extract job description from %s: %w", req.JobURL, err)
		}
		req.JobDescription = posting.FinalText
		result.ExtractedJobDescription = posting.FinalText
	}

	var prompt string
	switch def.Name {
	case TaskOptimize:
		opt, err := p.optimizePrompt(ctx, r, req)
		if err != nil {
			return nil, err
		}
		prompt = opt.prompt
		result.Seniority = opt.seniority
		result.Industry = opt.industry
		result.UsedKeywords = opt.usedKeywords
	default:
		prompt, err = prompts.Render("tasks.json", def.Prompt, taskPromptData(req))
		if err != nil {
			return nil, fmt.Errorf("failed to build %s prompt: %w", def.Name, err)
		}
	}

	r.emit(StepTask, def.Category, fmt.Sprintf("Running %s", def.Name), nil)
	outcome := p.caller.Call(ctx, llm.Request{Prompt: prompt, MaxOutputTokens: def.MaxTokens})
	if !outcome.OK() {
		r.log.Error("task call failed",
			zap.Stringer("outcome", outcome.Kind),
			zap.String("detail", outcome.Detail))
		return nil, fmt.Errorf("%s: %w", def.Name, outcome.Err())
	}

	result.Text = strings.TrimSpace(outcome.Text)
	r.log.Info("task completed",
		zap.Int("chars", len(result.Text)),
		zap.Bool("used_keywords", result.UsedKeywords))
	r.emit(StepComplete, def.Category, fmt.Sprintf("Completed %s", def.Name), result)
	return result, nil
}

func taskPromptData(req TaskRequest) map[string]any {
	return map[string]any{
		"CV":             req.CVText,
		"JobDescription": req.JobDescription,
		"Roles":          req.Roles,
		"JobTitle":       req.JobTitle,
		"Industry":       req.Industry,
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
