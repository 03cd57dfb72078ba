package backends

import (
	"context"
	"errors"
	"testing"

	"github.com/rickchristie/cellfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel is an llms.Model replying with a fixed text.
type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (m *fakeModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.options)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.reply, StopReason: "stop"}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func text(m llms.MessageContent) string {
	return m.Parts[0].(llms.TextContent).Text
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected string
	}{
		{name: "python fence", reply: "```python\nx = 1\ny = 2\n```", expected: "x = 1\ny = 2"},
		{name: "bare fence", reply: "```\nx = 1\n```\n", expected: "x = 1"},
		{name: "no fence", reply: "x = 1\n", expected: "x = 1"},
		{name: "inner backticks kept", reply: "s = '```'", expected: "s = '```'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFences(tt.reply))
		})
	}
}

func TestLLM_Format(t *testing.T) {
	model := &fakeModel{reply: "```python\nx = 1\n```"}
	llm := NewLLM(model).WithModelName("gpt-4.1-mini")

	got, err := llm.Format(context.Background(), "x=1", false, cellfmt.Options{
		"line_length":  100,
		"instructions": "Prefer single quotes.",
	})
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", got)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Contains(t, text(model.messages[0]), "following PEP 8")
	assert.Contains(t, text(model.messages[0]), "Keep lines at most 100 characters long.")
	assert.Contains(t, text(model.messages[0]), "Prefer single quotes.")
	assert.Equal(t, "x=1", text(model.messages[1]))
	assert.Equal(t, "gpt-4.1-mini", model.options.Model)
	assert.Equal(t, 0.0, model.options.Temperature)
	assert.Equal(t, "Apply LLM Formatter (gpt-4.1-mini)", llm.Label())
}

func TestLLM_WrappedForNotebooks(t *testing.T) {
	model := &fakeModel{reply: "```\n# \x01 %time\nx = 1\n```"}
	f := LLMFormatter(NewLLM(model))

	got, err := f.Format(context.Background(), "%time\nx=1;", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "%time\nx = 1;", got)
	assert.Equal(t, "# \x01 %time\nx=1;", text(model.messages[1]))
}

func TestLLM_Errors(t *testing.T) {
	none := NewLLM(nil)
	a := none.Available(context.Background())
	assert.Equal(t, cellfmt.StatusUnavailable, a.Status)
	assert.ErrorIs(t, a.Err, ErrNoModel)

	_, err := none.Format(context.Background(), "x", false, nil)
	assert.ErrorIs(t, err, ErrNoModel)

	failing := NewLLM(&fakeModel{err: errors.New("rate limited")})
	_, err = failing.Format(context.Background(), "x", false, nil)
	assert.EqualError(t, err, "llm: rate limited")

	_, err = NewLLM(&fakeModel{}).Format(context.Background(), "x", false, cellfmt.Options{"temperature": "hot"})
	assert.ErrorIs(t, err, cellfmt.ErrInvalidOptions)
}
