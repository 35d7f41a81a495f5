package router

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/zen-systems/brainroute/pkg/adapter"
	"github.com/zen-systems/brainroute/pkg/config"
	"github.com/zen-systems/brainroute/pkg/tokens"
)

// ClassifierResult is a validated classifier verdict.
type ClassifierResult struct {
	Mode       config.Mode `json:"mode"`
	Confidence float64     `json:"confidence"`
	Reasoning  string      `json:"reasoning"`
}

// NewClassifierResult parses mode and checks confidence is within [0,1].
func NewClassifierResult(mode string, confidence float64, reasoning string) (ClassifierResult, error) {
	m, err := config.ParseMode(mode)
	if err != nil {
		return ClassifierResult{}, err
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return ClassifierResult{}, fmt.Errorf("confidence %v out of range [0,1]", confidence)
	}
	return ClassifierResult{Mode: m, Confidence: confidence, Reasoning: strings.TrimSpace(reasoning)}, nil
}

func (r ClassifierResult) validate() (ClassifierResult, error) {
	return NewClassifierResult(string(r.Mode), r.Confidence, r.Reasoning)
}

// Backend is the classifier capability injected into the router.
type Backend interface {
	Classify(ctx context.Context, prompt string, stats tokens.ContextStats) (ClassifierResult, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, prompt string, stats tokens.ContextStats) (ClassifierResult, error)

// Classify calls f.
func (f BackendFunc) Classify(ctx context.Context, prompt string, stats tokens.ContextStats) (ClassifierResult, error) {
	return f(ctx, prompt, stats)
}

type classifyOutcome struct {
	result ClassifierResult
	err    error
}

// ClassifyPrompt runs backend under timeout and validates its result. Every
// failure, including cancellation and a panicking backend, comes back as a
// *ClassifierUnavailableError. A backend that ignores ctx is abandoned when
// the timeout fires.
func ClassifyPrompt(ctx context.Context, backend Backend, prompt string, stats tokens.ContextStats, timeout time.Duration) (ClassifierResult, error) {
	if backend == nil {
		return ClassifierResult{}, unavailable(fmt.Errorf("no classifier backend"))
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan classifyOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- classifyOutcome{err: fmt.Errorf("classifier panic: %v", p)}
			}
		}()
		res, err := backend.Classify(ctx, prompt, stats)
		done <- classifyOutcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return ClassifierResult{}, unavailable(out.err)
		}
		res, err := out.result.validate()
		if err != nil {
			return ClassifierResult{}, unavailable(fmt.Errorf("invalid classifier result: %w", err))
		}
		return res, nil
	case <-ctx.Done():
		return ClassifierResult{}, unavailable(ctx.Err())
	}
}

const classifierSystemPrompt = `You route requests for a planning assistant. Pick exactly one mode:
PLAN: architecture, schemas, refactors, conflicting rules, rule definitions.
CONSULT: questions, explanations, short advice.
BATCH: the same transformation repeated over many items.
LONG_CONTEXT: the request only makes sense with a very large context.
Return ONLY JSON: {"mode":"PLAN|CONSULT|BATCH|LONG_CONTEXT","confidence":0-1,"reasoning":"..."}`

const classifierResponseSchema = `{
	"type": "object",
	"required": ["mode", "confidence", "reasoning"],
	"properties": {
		"mode": {"type": "string", "enum": ["PLAN", "CONSULT", "BATCH", "LONG_CONTEXT"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reasoning": {"type": "string"}
	},
	"additionalProperties": false
}`

var (
	responseSchemaOnce sync.Once
	responseSchema     *jsonschema.Resolved
	responseSchemaErr  error
)

func resolvedResponseSchema() (*jsonschema.Resolved, error) {
	responseSchemaOnce.Do(func() {
		var s jsonschema.Schema
		if err := json.Unmarshal([]byte(classifierResponseSchema), &s); err != nil {
			responseSchemaErr = fmt.Errorf("parse classifier schema: %w", err)
			return
		}
		responseSchema, responseSchemaErr = s.Resolve(nil)
	})
	return responseSchema, responseSchemaErr
}

// CreateClassifierFunction binds a provider adapter and model into a
// Backend. Responses must be a JSON object matching the classifier schema;
// code fences around it are tolerated.
func CreateClassifierFunction(a adapter.Adapter, model string) BackendFunc {
	return func(ctx context.Context, prompt string, stats tokens.ContextStats) (ClassifierResult, error) {
		if a == nil {
			return ClassifierResult{}, fmt.Errorf("no classifier adapter")
		}
		resp, err := a.Generate(ctx, model, classifierSystemPrompt, buildClassifierPrompt(prompt, stats))
		if err != nil {
			return ClassifierResult{}, fmt.Errorf("%s classifier call: %w", a.Name(), err)
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return ClassifierResult{}, fmt.Errorf("classifier returned empty response")
		}
		return parseClassifierResponse(resp.Content)
	}
}

func parseClassifierResponse(content string) (ClassifierResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return ClassifierResult{}, fmt.Errorf("classifier response is not a JSON object: %w", err)
	}
	if mode, ok := payload["mode"].(string); ok {
		payload["mode"] = strings.ToUpper(strings.TrimSpace(mode))
	}

	schema, err := resolvedResponseSchema()
	if err != nil {
		return ClassifierResult{}, err
	}
	if err := schema.Validate(payload); err != nil {
		return ClassifierResult{}, fmt.Errorf("classifier response rejected: %w", err)
	}

	mode, _ := payload["mode"].(string)
	confidence, _ := payload["confidence"].(float64)
	reasoning, _ := payload["reasoning"].(string)
	return NewClassifierResult(mode, confidence, reasoning)
}

func buildClassifierPrompt(prompt string, stats tokens.ContextStats) string {
	var sb strings.Builder
	sb.WriteString("User prompt:\n")
	sb.WriteString(prompt)
	sb.WriteString("\n\nContext:\n")
	fmt.Fprintf(&sb, "- total tokens: %d\n", stats.TotalTokens)
	fmt.Fprintf(&sb, "- messages: %d\n", stats.MessageCount)
	fmt.Fprintf(&sb, "- business rules: %d tokens, flow specs: %d tokens\n", stats.BusinessRuleTokens, stats.FlowSpecTokens)
	return sb.String()
}
