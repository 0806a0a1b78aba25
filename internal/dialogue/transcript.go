package dialogue

import (
	"slices"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Category is the response class a policy decision selects.
type Category string

const (
	CategoryDirect   Category = "DIRECT"
	CategoryClarify  Category = "CLARIFY"
	CategoryRetrieve Category = "RETRIEVE"
	CategoryEscalate Category = "ESCALATE"
)

// Turn is one utterance in a conversation. Category, Reason and Step are only
// set on assistant turns and record the decision that produced them.
type Turn struct {
	Role     Role      `json:"role"`
	Text     string    `json:"text"`
	Category Category  `json:"category,omitempty"`
	Reason   Reason    `json:"reason,omitempty"`
	Step     string    `json:"step,omitempty"`
	At       time.Time `json:"at"`
}

// Transcript is an append-only log of turns. The zero value is an empty
// transcript. Append never modifies the receiver.
type Transcript struct {
	turns []Turn
}

func NewTranscript(turns ...Turn) Transcript {
	return Transcript{turns: slices.Clone(turns)}
}

func (t Transcript) Append(turns ...Turn) Transcript {
	out := make([]Turn, 0, len(t.turns)+len(turns))
	out = append(out, t.turns...)
	out = append(out, turns...)
	return Transcript{turns: out}
}

func (t Transcript) Len() int { return len(t.turns) }

// Turns returns a copy of the log.
func (t Transcript) Turns() []Turn { return slices.Clone(t.turns) }

// LastUser returns the latest user turn and its position.
func (t Transcript) LastUser() (Turn, int, bool) {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == RoleUser {
			return t.turns[i], i, true
		}
	}
	return Turn{}, -1, false
}

// Tail returns a copy of the last n turns.
func (t Transcript) Tail(n int) []Turn {
	if n <= 0 || n >= len(t.turns) {
		return t.Turns()
	}
	return slices.Clone(t.turns[len(t.turns)-n:])
}
