package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-optimizer/internal/llm"
	"github.com/jonathan/cv-optimizer/internal/prompts"
	"github.com/jonathan/cv-optimizer/internal/types"
)

// Detection call settings.
const (
	DetectionMaxTokens = 10
	// detectionInputRunes caps the CV and job description sent for detection.
	detectionInputRunes = 2000
	// highPriorityWeight is the minimum weight listed among the must-have keywords.
	highPriorityWeight = 4
)

// Detection defaults.
const (
	DefaultSeniority = "mid"
	DefaultIndustry  = "general"
)

// SeniorityLevels and Industries are the accepted detection answers.
var (
	SeniorityLevels = []string{"junior", "mid", "senior"}
	Industries      = []string{"it", "finance", "marketing", "healthcare", "hr", "education", "engineering", "legal", "creative", "general"}
)

type optimizePlan struct {
	prompt       string
	seniority    string
	industry     string
	usedKeywords bool
}

// optimizePrompt detects seniority and industry concurrently, then renders
// the optimize template with the matching guidance.
func (p *Pipeline) optimizePrompt(ctx context.Context, r *run, req TaskRequest) (*optimizePlan, error) {
	plan := &optimizePlan{seniority: DefaultSeniority, industry: DefaultIndustry}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		plan.seniority = p.detect(gCtx, r, "seniority", map[string]any{
			"CV":             truncateRunes(req.CVText, detectionInputRunes),
			"JobDescription": truncateRunes(req.JobDescription, detectionInputRunes),
		}, SeniorityLevels, DefaultSeniority)
		return nil
	})
	g.Go(func() error {
		plan.industry = p.detect(gCtx, r, "industry", map[string]any{
			"JobDescription": truncateRunes(req.JobDescription, detectionInputRunes),
		}, Industries, DefaultIndustry)
		return nil
	})
	_ = g.Wait()

	r.emit(StepDetection, CategoryAnalysis,
		fmt.Sprintf("Detected seniority %s and industry %s", plan.seniority, plan.industry),
		map[string]string{"seniority": plan.seniority, "industry": plan.industry})

	guidance, err := guidanceFor(plan.seniority, plan.industry)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"Seniority":           strings.ToUpper(plan.seniority),
		"Industry":            strings.ToUpper(plan.industry),
		"IndustryGuidance":    guidance.industry,
		"SeniorityGuidance":   guidance.seniority,
		"AchievementGuidance": guidance.achievements,
		"StructureGuidance":   guidance.structure,
		"Keywords":            "",
		"JobDescription":      req.JobDescription,
		"CV":                  req.CVText,
	}

	if req.Keywords != nil && req.Keywords.Len() > 0 && !req.Keywords.IsFailure() && req.JobDescription != "" {
		block, err := keywordBlock(*req.Keywords)
		if err != nil {
			return nil, err
		}
		data["Keywords"] = block
		plan.usedKeywords = true
		r.log.Info("optimizing with stored keywords", zap.Int("keywords", req.Keywords.Len()))
	}

	plan.prompt, err = prompts.Render("tasks.json", TaskRegistry[TaskOptimize].Prompt, data)
	if err != nil {
		return nil, fmt.Errorf("failed to build optimize prompt: %w", err)
	}
	return plan, nil
}

// detect asks a one-word classification question and falls back to def
// when the call fails or the answer is not one of allowed.
func (p *Pipeline) detect(ctx context.Context, r *run, key string, data map[string]any, allowed []string, def string) string {
	log := r.log.With(zap.String("detect", key))

	prompt, err := prompts.Render("detect.json", key, data)
	if err != nil {
		log.Error("failed to build detection prompt", zap.Error(err))
		return def
	}

	outcome := p.caller.Call(ctx, llm.Request{Prompt: prompt, MaxOutputTokens: DetectionMaxTokens})
	if !outcome.OK() {
		log.Warn("detection failed, using default",
			zap.Stringer("outcome", outcome.Kind),
			zap.String("detail", outcome.Detail),
			zap.String("default", def))
		return def
	}

	answer := normalizeAnswer(outcome.Text)
	for _, a := range allowed {
		if answer == a {
			return a
		}
	}
	log.Warn("unexpected detection answer, using default",
		zap.String("answer", outcome.Text),
		zap.String("default", def))
	return def
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), "\"'`.,:;!"))
}

type guidance struct {
	industry     string
	seniority    string
	achievements string
	structure    string
}

func guidanceFor(seniority, industry string) (guidance, error) {
	var g guidance
	entries := []struct {
		key string
		dst *string
	}{
		{"industry-" + industry, &g.industry},
		{"seniority-" + seniority, &g.seniority},
		{"achievements-" + seniority, &g.achievements},
		{"structure-base", &g.structure},
	}
	for _, e := range entries {
		text, err := prompts.Get("guidance.json", e.key)
		if err != nil {
			return guidance{}, fmt.Errorf("failed to load guidance: %w", err)
		}
		*e.dst = text
	}
	return g, nil
}

type keywordGroup struct {
	Label string
	Terms []string
}

// keywordBlock lists the keywords optimize must include: the high weight
// ones first, then every non-empty category.
func keywordBlock(set types.KeywordCategorySet) (string, error) {
	var highPriority []string
	var groups []keywordGroup
	for _, c := range types.Categories {
		entries := set.Get(c)
		if len(entries) == 0 {
			continue
		}
		group := keywordGroup{Label: c.Label()}
		for _, e := range entries {
			if e.Weight >= highPriorityWeight {
				highPriority = append(highPriority, fmt.Sprintf("%s (%s)", e.Term, c.Label()))
			}
			group.Terms = append(group.Terms, e.Term)
		}
		groups = append(groups, group)
	}

	block, err := prompts.Render("tasks.json", "keywords-block", map[string]any{
		"HighPriority": highPriority,
		"Groups":       groups,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build keyword block: %w", err)
	}
	return block, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
