package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/tmc/langchaingo/llms"
)

// WellArchitectedPillars lists the five pillars a review is organized by.
var WellArchitectedPillars = []string{
	"Reliability",
	"Security",
	"Cost Optimization",
	"Operational Excellence",
	"Performance Efficiency",
}

// PillarFinding is one pillar's assessment within a review.
type PillarFinding struct {
	Pillar          string   `json:"pillar" jsonschema:"required,description=Well Architected pillar this finding belongs to"`
	Risks           []string `json:"risks" jsonschema:"required,description=Concrete risks found in the design"`
	Recommendations []string `json:"recommendations" jsonschema:"required,description=Azure services or configuration changes that address the risks"`
}

// ArchitectureReview is the structured output of an advisor review run.
type ArchitectureReview struct {
	Summary    string          `json:"summary" jsonschema:"required,description=Short overall assessment of the design"`
	Pillars    []PillarFinding `json:"pillars" jsonschema:"required,description=Findings grouped by Well Architected pillar"`
	References []string        `json:"references,omitempty" jsonschema:"description=Documentation pages the guidance relies on"`
}

// Validate checks the fields the schema marks required, naming the first
// missing one.
func (rv *ArchitectureReview) Validate() error {
	if strings.TrimSpace(rv.Summary) == "" {
		return fmt.Errorf("review missing required field %q", "summary")
	}
	if len(rv.Pillars) == 0 {
		return fmt.Errorf("review missing required field %q", "pillars")
	}
	for i, p := range rv.Pillars {
		if strings.TrimSpace(p.Pillar) == "" {
			return fmt.Errorf("review pillar %d missing required field %q", i, "pillar")
		}
	}
	return nil
}

// ReviewSchema returns the JSON schema a review response must match.
func ReviewSchema() (string, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             false,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(&ArchitectureReview{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal review schema: %w", err)
	}
	return string(data), nil
}

// reviewSystemPrompt wraps the agent's instructions with the JSON mandate.
func reviewSystemPrompt(instructions, schema string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\nRespond with valid JSON only, no surrounding text, matching this schema exactly:\n\n")
	b.WriteString(schema)
	return b.String()
}

// Review asks the agent for a structured assessment of the given design.
// The model runs in JSON mode; a response that fails to decode or misses a
// required field is fed back once so the model can correct itself.
func (r *Runner) Review(ctx context.Context, design string) (*ArchitectureReview, error) {
	if strings.TrimSpace(design) == "" {
		return nil, ErrEmptyInput
	}
	schema, err := ReviewSchema()
	if err != nil {
		return nil, err
	}

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, reviewSystemPrompt(r.def.Instructions, schema)),
		llms.TextParts(llms.ChatMessageTypeHuman, design),
	}
	opts := []llms.CallOption{
		llms.WithJSONMode(),
		llms.WithTemperature(r.temperature),
		llms.WithMaxTokens(r.maxTokens),
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := r.model.GenerateContent(ctx, msgs, opts...)
		if err != nil {
			return nil, fmt.Errorf("generate review: %w", err)
		}

		content := ""
		if resp != nil && len(resp.Choices) > 0 {
			content = resp.Choices[0].Content
		}
		if content == "" {
			lastErr = fmt.Errorf("model returned no content")
		} else {
			review, err := DecodeReview(content)
			if err == nil {
				return review, nil
			}
			lastErr = err
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeAI, content))
		}

		r.log.WithError(lastErr).Warn("review response rejected, retrying")
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("The previous response was rejected: %v. Respond again with JSON matching the schema exactly.", lastErr)))
	}
	return nil, fmt.Errorf("structured review failed after retry: %w", lastErr)
}

// DecodeReview parses a model response into a review, stripping markdown
// fences first and validating the required fields.
func DecodeReview(raw string) (*ArchitectureReview, error) {
	cleaned := StripCodeFences(raw)
	var review ArchitectureReview
	if err := json.Unmarshal([]byte(cleaned), &review); err != nil {
		return nil, fmt.Errorf("decode review JSON: %w", err)
	}
	if err := review.Validate(); err != nil {
		return nil, err
	}
	return &review, nil
}

// StripCodeFences extracts the body of a fenced code block when the model
// wrapped its JSON in one, and trims whitespace either way.
func StripCodeFences(content string) string {
	cleaned := strings.TrimSpace(content)
	start := strings.Index(cleaned, "```")
	if start == -1 {
		return cleaned
	}
	body := strings.TrimPrefix(cleaned[start+3:], "json")
	if end := strings.LastIndex(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
