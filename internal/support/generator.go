package support

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/ai"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/catalog"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/dialogue"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/knowledge"
)

// LLMGenerator renders decisions through a chat model.
type LLMGenerator struct {
	model     ai.ChatModel
	counter   ai.TokenCounter
	maxTokens int
	persona   string
	logger    *zap.Logger
}

var _ Generator = (*LLMGenerator)(nil)

func NewLLMGenerator(model ai.ChatModel, counter ai.TokenCounter, maxHistoryTokens int, logger *zap.Logger) *LLMGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	models := catalog.Models()
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = string(m)
	}
	return &LLMGenerator{
		model:     model,
		counter:   counter,
		maxTokens: maxHistoryTokens,
		persona:   fmt.Sprintf(PersonaPrompt, strings.Join(names, ", ")),
		logger:    logger.With(zap.String("component", "generator")),
	}
}

type modelReply struct {
	Answer string `json:"answer"`
	Step   string `json:"step"`
}

func (g *LLMGenerator) Generate(ctx context.Context, req GenerateRequest) (Reply, error) {
	raw, err := g.model.GetReply(ctx, g.messages(req))
	if err != nil {
		return Reply{}, err
	}

	out, err := parseReply(raw)
	if err != nil {
		g.logger.Warn("unparseable reply", zap.String("raw", short(raw)), zap.Error(err))
		return Reply{}, err
	}
	return out, nil
}

func (g *LLMGenerator) messages(req GenerateRequest) []ai.Message {
	history := make([]ai.Message, 0, req.Transcript.Len())
	for _, t := range req.Transcript.Turns() {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		role := ai.RoleUser
		if t.Role == dialogue.RoleAssistant {
			role = ai.RoleAssistant
		}
		history = append(history, ai.Message{Role: role, Text: t.Text})
	}
	history = ai.TrimHistory(history, g.maxTokens, g.counter)

	msgs := make([]ai.Message, 0, len(history)+3)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Text: g.persona})
	msgs = append(msgs, history...)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Text: directives(req)})
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Text: jsonGuard})
	return msgs
}

func directives(req GenerateRequest) string {
	product := "none"
	if req.Product != "" {
		product = string(req.Product)
	}

	var b strings.Builder
	for _, in := range req.Decision.Instructions {
		b.WriteString("- ")
		b.WriteString(in)
		b.WriteString("\n")
	}

	out := fmt.Sprintf(turnPrompt, req.Decision.Category, req.Decision.Reason, product, b.String())
	if len(req.Documents) > 0 {
		out += fmt.Sprintf(faqContextPrompt, formatDocuments(req.Documents))
	}
	return out
}

func formatDocuments(docs []knowledge.Document) string {
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n", d.Rank, strings.TrimSpace(d.Content))
	}
	return b.String()
}

func parseReply(raw string) (Reply, error) {
	raw = strings.TrimSpace(raw)
	if i, j := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); i >= 0 && j > i {
		raw = raw[i : j+1]
	}

	var r modelReply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	r.Answer = strings.TrimSpace(r.Answer)
	if r.Answer == "" {
		return Reply{}, fmt.Errorf("%w: empty answer", ErrMalformedReply)
	}
	return Reply{Text: r.Answer, Step: strings.TrimSpace(r.Step)}, nil
}

// short truncates s to at most 180 bytes on a rune boundary.
func short(s string) string {
	const limit = 180
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
