package ai

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt size for history trimming.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4.1":       "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// Tiktoken loads its encoding lazily; the BPE ranks may be fetched on first use.
type Tiktoken struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
}

func NewTiktoken(model string) *Tiktoken {
	encoding := "cl100k_base"
	best := 0
	for prefix, e := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > best {
			encoding, best = e, len(prefix)
		}
	}
	return &Tiktoken{encoding: encoding}
}

func (t *Tiktoken) Encoding() string { return t.encoding }

func (t *Tiktoken) CountTokens(text string) (int, error) {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	if t.initErr != nil {
		return 0, t.initErr
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// per-message framing overhead (<|start|>role\n ... <|end|>\n)
const messageOverhead = 4

// TrimHistory keeps the newest messages whose combined size fits budget.
// The newest message is always kept. A counter error falls back to a
// four-characters-per-token estimate.
func TrimHistory(history []Message, budget int, counter TokenCounter) []Message {
	if budget <= 0 || len(history) == 0 {
		return history
	}

	count := func(m Message) int {
		if counter != nil {
			if n, err := counter.CountTokens(m.Text); err == nil {
				return n + messageOverhead
			}
		}
		return len(m.Text)/4 + 1 + messageOverhead
	}

	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := count(history[i])
		if used+n > budget && start < len(history) {
			break
		}
		used += n
		start = i
	}
	return history[start:]
}
