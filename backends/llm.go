package backends

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/escape"
	"github.com/rickchristie/cellfmt/schema"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

var fenceRe = regexp.MustCompile("(?s)^\\s*```[A-Za-z0-9_+-]*[ \\t]*\\n(.*?)\\n?```\\s*$")

// ErrNoModel is reported as the availability reason when no model is set.
var ErrNoModel = errors.New("no language model configured")

const llmSystemPrompt = `You are a code formatter for %s notebook cells.
Reformat the code you are given following %s.
Do not change behavior, names, comments or string contents.
Lines starting with %q are opaque placeholders: keep them exactly as they are, in place.
Reply with the formatted code only, without explanations.`

var llmSchema = schema.Object(map[string]*schema.Property{
	"style":        schema.String("Style guide to follow").Default("PEP 8"),
	"line_length":  schema.Integer("Maximum line length").Min(1),
	"instructions": schema.String("Extra formatting instructions"),
	"temperature":  schema.Number("Sampling temperature").Min(0).Max(2).Default(0),
})

// LLM formats code with a language model reached through langchaingo.
//
// Example usage:
//
//	llm, _ := openai.New(openai.WithToken(apiKey))
//	f := backends.NewLLM(llm).WithModelName("gpt-4.1-mini")
type LLM struct {
	model     llms.Model
	modelName string
	lang      string
	logger    *zap.Logger
}

// NewLLM creates a backend formatting Python with model. A nil model makes
// the backend unavailable.
func NewLLM(model llms.Model) *LLM {
	return &LLM{
		model:  model,
		lang:   "Python",
		logger: zap.NewNop(),
	}
}

// WithModelName sets the model name passed on each call and shown in logs.
func (m *LLM) WithModelName(name string) *LLM {
	m.modelName = name
	return m
}

// WithLogger sets the logger.
func (m *LLM) WithLogger(logger *zap.Logger) *LLM {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Unwrap returns the underlying llms.Model.
func (m *LLM) Unwrap() llms.Model {
	return m.model
}

// Label implements cellfmt.Formatter.
func (m *LLM) Label() string {
	if m.modelName != "" {
		return "Apply LLM Formatter (" + m.modelName + ")"
	}
	return "Apply LLM Formatter"
}

// Available implements cellfmt.Formatter. It does not call the model.
func (m *LLM) Available(context.Context) cellfmt.Availability {
	if m.model == nil {
		return cellfmt.Unavailable(ErrNoModel)
	}
	return cellfmt.Available()
}

// OptionSchema implements cellfmt.OptionSchemaProvider.
func (m *LLM) OptionSchema() map[string]any {
	return llmSchema
}

// Format implements cellfmt.Formatter.
func (m *LLM) Format(ctx context.Context, code string, _ bool, opts cellfmt.Options) (string, error) {
	if m.model == nil {
		return "", ErrNoModel
	}
	system, callOpts, err := m.prompt(opts)
	if err != nil {
		return "", err
	}

	resp, err := m.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, code),
	}, callOpts...)
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: %w", cellfmt.ErrEmptyOutput)
	}

	m.logger.Debug("llm formatted cell",
		zap.String("model", m.modelName),
		zap.String("stop_reason", resp.Choices[0].StopReason))
	return StripFences(resp.Choices[0].Content) + "\n", nil
}

func (m *LLM) prompt(opts cellfmt.Options) (string, []llms.CallOption, error) {
	style, ok, err := stringOption(opts, "style")
	if err != nil {
		return "", nil, err
	}
	if !ok {
		style = "PEP 8"
	}
	system := fmt.Sprintf(llmSystemPrompt, m.lang, style, escape.Marker)

	if n, ok, err := intOption(opts, "line_length"); err != nil {
		return "", nil, err
	} else if ok {
		system += fmt.Sprintf("\nKeep lines at most %d characters long.", n)
	}
	if extra, ok, err := stringOption(opts, "instructions"); err != nil {
		return "", nil, err
	} else if ok && extra != "" {
		system += "\n" + extra
	}

	temperature := 0.0
	if v, ok := opts["temperature"]; ok {
		switch t := v.(type) {
		case float64:
			temperature = t
		case int:
			temperature = float64(t)
		default:
			return "", nil, fmt.Errorf("%w: temperature must be a number, got %T", cellfmt.ErrInvalidOptions, v)
		}
	}

	callOpts := []llms.CallOption{llms.WithTemperature(temperature)}
	if m.modelName != "" {
		callOpts = append(callOpts, llms.WithModel(m.modelName))
	}
	return system, callOpts, nil
}

// StripFences removes a markdown code fence wrapped around a model reply.
func StripFences(reply string) string {
	if m := fenceRe.FindStringSubmatch(reply); m != nil {
		return m[1]
	}
	return strings.TrimSpace(reply)
}

// LLMFormatter returns m wrapped for Python notebook cells.
func LLMFormatter(m *LLM) cellfmt.Formatter {
	return escape.WrapWith(m, escape.NewPipeline(escape.LangPython).WithLogger(m.logger))
}

var (
	_ cellfmt.Formatter            = (*LLM)(nil)
	_ cellfmt.OptionSchemaProvider = (*LLM)(nil)
)
