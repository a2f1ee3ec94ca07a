// Package analyzer turns extracted text into a structured summary or
// classification through the LLM gateway. It owns the prompt contract and
// the parsing of the model's JSON reply; callers get a fixed schema
// regardless of which provider answered.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"paranote/backend/internal/llm"
	"paranote/backend/models"
)

const (
	summaryLimit      = 500
	analysisTokens    = 1000
	analysisTemp      = 0.3
	defaultConfidence = 70
)

// ErrEmptyInput means there was nothing to analyze. Raised before the
// provider call so a blank extraction never burns a paid request.
var ErrEmptyInput = errors.New("input text is empty")

// ErrMalformedResponse means the model's reply did not match the expected
// schema.
var ErrMalformedResponse = errors.New("malformed llm response")

// Analysis is the fixed output schema for media-backed content.
type Analysis struct {
	Summary          string
	KeyPoints        []string
	ExtractedTasks   []string
	SuggestedArea    *string
	SuggestedProject *string
	IsActionable     bool
	Priority         *models.Priority
	Confidence       int // 0-100
}

// Classification is the output schema for pure-text notes.
type Classification struct {
	Type             models.ClassificationType
	Confidence       int // 0-100
	SuggestedArea    *string
	SuggestedProject *string
	IsActionable     bool
	Priority         *models.Priority
}

// Context carries the caller's existing PARA names so suggestions can
// reuse them instead of inventing near-duplicates.
type Context struct {
	Areas    []string
	Projects []string
}

// generator is the slice of the LLM gateway the analyzer needs.
type generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Analyzer builds prompts and parses replies.
type Analyzer struct {
	gateway generator
}

// New builds an analyzer on top of the gateway.
func New(gateway generator) *Analyzer {
	return &Analyzer{gateway: gateway}
}

// analysisReply mirrors the JSON the prompt instructs the model to emit.
type analysisReply struct {
	Summary          string   `json:"summary"`
	KeyPoints        []string `json:"key_points"`
	Tasks            []string `json:"tasks"`
	SuggestedArea    string   `json:"suggested_area"`
	SuggestedProject string   `json:"suggested_project"`
	IsActionable     bool     `json:"is_actionable"`
	Priority         string   `json:"priority"`
	Confidence       *float64 `json:"confidence"`
}

type classifyReply struct {
	Type string `json:"type"`
	analysisReply
}

// Analyze summarizes text extracted from media. contentType is a hint
// ("transcription", "ocr", ...) folded into the prompt.
func (a *Analyzer) Analyze(ctx context.Context, text, contentType string) (*Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	prompt := fmt.Sprintf(`Analyze the following %s content and provide:

1. A concise summary (at most %d characters)
2. A short ordered list of key points (2-5 items)
3. Discrete, actionable task phrases (empty list if none)
4. At most one suggested PARA area name and one project name (free text, or null)
5. Whether any action is required, and its priority if so

Content:
%s

Respond ONLY in JSON:
{
    "summary": "...",
    "key_points": ["point 1", "point 2"],
    "tasks": ["task 1"],
    "suggested_area": "Area name or null",
    "suggested_project": "Project name or null",
    "is_actionable": true,
    "priority": "urgent|high|medium|low|null",
    "confidence": 0.0
}`, contentType, summaryLimit, text)

	resp, err := a.gateway.Generate(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   analysisTokens,
		Temperature: analysisTemp,
	})
	if err != nil {
		return nil, err
	}

	var reply analysisReply
	if err := decodeReply(resp.Text, &reply); err != nil {
		return nil, err
	}
	if reply.Summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedResponse)
	}

	return &Analysis{
		Summary:          truncate(reply.Summary, summaryLimit),
		KeyPoints:        emptyIfNil(reply.KeyPoints),
		ExtractedTasks:   emptyIfNil(reply.Tasks),
		SuggestedArea:    optional(reply.SuggestedArea),
		SuggestedProject: optional(reply.SuggestedProject),
		IsActionable:     reply.IsActionable,
		Priority:         models.ParsePriority(reply.Priority),
		Confidence:       scaleConfidence(reply.Confidence),
	}, nil
}

// Classify buckets a pure-text note and proposes PARA placement. The
// caller's existing area/project names are offered to the model as context.
func (a *Analyzer) Classify(ctx context.Context, text string, userCtx Context) (*Classification, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	var contextLines []string
	if len(userCtx.Areas) > 0 {
		contextLines = append(contextLines, "User's Areas: "+strings.Join(userCtx.Areas, ", "))
	}
	if len(userCtx.Projects) > 0 {
		contextLines = append(contextLines, "User's Projects: "+strings.Join(userCtx.Projects, ", "))
	}

	prompt := fmt.Sprintf(`Classify the following text content.

Text:
%s

%s

Pick exactly one type:
- task: a specific actionable item with a clear outcome
- log_entry: a journal entry, daily log, or personal reflection
- thought: an idea, observation, or brainstorm
- meeting_note: notes from a meeting or discussion
- invoice: a financial document or receipt
- email: email or message correspondence
- reference: reference material, article, or resource
- other: none of the above

Also report whether it requires action, its priority if so, and at most one
suggested PARA area name and one project name (free text, or null; prefer
the user's existing names when they fit).

Respond ONLY in JSON:
{
    "type": "task|log_entry|thought|meeting_note|invoice|email|reference|other",
    "summary": "one sentence",
    "key_points": [],
    "tasks": [],
    "suggested_area": "Area name or null",
    "suggested_project": "Project name or null",
    "is_actionable": true,
    "priority": "urgent|high|medium|low|null",
    "confidence": 0.0
}`, text, strings.Join(contextLines, "\n"))

	resp, err := a.gateway.Generate(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   analysisTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}

	var reply classifyReply
	if err := decodeReply(resp.Text, &reply); err != nil {
		return nil, err
	}
	if reply.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedResponse)
	}

	return &Classification{
		Type:             models.ParseClassificationType(reply.Type),
		Confidence:       scaleConfidence(reply.Confidence),
		SuggestedArea:    optional(reply.SuggestedArea),
		SuggestedProject: optional(reply.SuggestedProject),
		IsActionable:     reply.IsActionable,
		Priority:         models.ParsePriority(reply.Priority),
	}, nil
}

// decodeReply strips markdown code fences (some models wrap JSON in them)
// and unmarshals the reply.
func decodeReply(raw string, out any) error {
	cleaned := strings.TrimSpace(raw)
	if idx := strings.Index(cleaned, "```json"); idx >= 0 {
		cleaned = cleaned[idx+len("```json"):]
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// scaleConfidence maps the model's 0..1 self-report onto 0-100, clamped.
// Absent confidence gets a fixed mid-range default rather than fabricated
// precision.
func scaleConfidence(c *float64) int {
	if c == nil {
		return defaultConfidence
	}
	v := int(*c * 100)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// truncate cuts s to at most limit bytes without splitting a multi-byte
// rune; the persisted summary must stay valid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil
	}
	return &s
}

func emptyIfNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
