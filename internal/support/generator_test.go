package support

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/ai"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/dialogue"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/knowledge"
)

type scriptedModel struct {
	raw  string
	err  error
	seen []ai.Message
}

func (m *scriptedModel) GetReply(_ context.Context, history []ai.Message) (string, error) {
	m.seen = history
	return m.raw, m.err
}

type charCounter struct{}

func (charCounter) CountTokens(text string) (int, error) { return len(text), nil }

func troubleshootRequest() GenerateRequest {
	engine := dialogue.NewEngine(dialogue.DefaultPolicyConfig(), nil)
	tr := dialogue.NewTranscript(
		dialogue.Turn{Role: dialogue.RoleAssistant, Text: DefaultGreeting, Category: dialogue.CategoryClarify, Reason: dialogue.ReasonGreeting},
		dialogue.Turn{Role: dialogue.RoleUser, Text: "A1, it's leaking"},
	)
	st := dialogue.NewTracker(nil).Derive(tr)
	d := engine.Decide(dialogue.Input{Utterance: "A1, it's leaking", State: st, RetrievalAvailable: true})
	docs := []knowledge.Document{{Rank: 1, Content: "Make sure the filter is pushed in until it clicks."}}
	return GenerateRequest{
		Decision:   engine.Ground(d, len(docs), nil),
		Documents:  docs,
		Transcript: tr,
		Product:    st.KnownProduct,
	}
}

func TestLLMGenerator_Generate(t *testing.T) {
	model := &scriptedModel{raw: `{"answer":"Please push the filter in until it clicks, then let me know.","step":"Push the filter in until it clicks"}`}
	g := NewLLMGenerator(model, nil, 0, nil)

	reply, err := g.Generate(context.Background(), troubleshootRequest())
	require.NoError(t, err)
	assert.Equal(t, "Push the filter in until it clicks", reply.Step)
	assert.Contains(t, reply.Text, "clicks")

	require.Len(t, model.seen, 5)
	assert.Equal(t, ai.RoleSystem, model.seen[0].Role)
	assert.Contains(t, model.seen[0].Text, "WD-X12")
	assert.Equal(t, ai.RoleAssistant, model.seen[1].Role)
	assert.Equal(t, ai.RoleUser, model.seen[2].Role)

	directive := model.seen[3].Text
	assert.Contains(t, directive, "RETRIEVE (troubleshoot)")
	assert.Contains(t, directive, "Product information available: WD-A1")
	assert.Contains(t, directive, "[1] Make sure the filter")
	assert.Contains(t, model.seen[4].Text, `"answer"`)
}

func TestLLMGenerator_TrimsHistory(t *testing.T) {
	model := &scriptedModel{raw: `{"answer":"hi"}`}
	g := NewLLMGenerator(model, charCounter{}, 40, nil)

	req := troubleshootRequest()
	_, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	// the greeting does not fit; the latest user turn always does
	require.Len(t, model.seen, 4)
	assert.Equal(t, "A1, it's leaking", model.seen[1].Text)
}

func TestLLMGenerator_Malformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"answer":"  "}`, `{"step":"x"}`} {
		g := NewLLMGenerator(&scriptedModel{raw: raw}, nil, 0, nil)
		_, err := g.Generate(context.Background(), troubleshootRequest())
		assert.ErrorIs(t, err, ErrMalformedReply, raw)
	}
}

func TestLLMGenerator_ModelError(t *testing.T) {
	g := NewLLMGenerator(&scriptedModel{err: errors.New("rate limited")}, nil, 0, nil)
	_, err := g.Generate(context.Background(), troubleshootRequest())
	assert.ErrorContains(t, err, "rate limited")
}

func TestParseReply_StripsFences(t *testing.T) {
	r, err := parseReply("```json\n{\"answer\": \"Hello\", \"step\": \" \"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Hello", r.Text)
	assert.Empty(t, r.Step)
}

func TestDirectives_NoProduct(t *testing.T) {
	out := directives(GenerateRequest{Decision: dialogue.Decision{
		Category:     dialogue.CategoryClarify,
		Reason:       dialogue.ReasonMissingProduct,
		Instructions: []string{"Ask for the model."},
	}})
	assert.Contains(t, out, "Product information available: none")
	assert.Contains(t, out, "- Ask for the model.")
	assert.False(t, strings.Contains(out, "FAQ Context"))
}

func TestShort_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "brief", short("brief"))

	s := strings.Repeat("a", 179) + "é" + strings.Repeat("b", 10)
	out := short(s)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("a", 179)+"...", out)

	out = short(strings.Repeat("水", 100))
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("水", 60)+"...", out)
}
