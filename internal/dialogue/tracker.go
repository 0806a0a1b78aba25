package dialogue

import (
	"errors"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/catalog"
)

// Step is a troubleshooting step offered in one assistant turn.
type Step struct {
	Index       int     `json:"index"`
	Description string  `json:"description"`
	Outcome     Outcome `json:"outcome"`
}

// State is everything the policy needs to know about a conversation. It is
// recomputed from the transcript on every turn and never stored.
type State struct {
	KnownProduct catalog.ProductID `json:"known_product,omitempty"`
	// RejectedCandidate is the normalized identifier from the latest user
	// turn that failed validation, when that turn carried no valid one.
	RejectedCandidate string `json:"rejected_candidate,omitempty"`
	ProblemDescribed  bool   `json:"problem_described"`
	ProblemText       string `json:"problem_text,omitempty"`
	Steps             []Step `json:"steps"`
	OfferedSteps      int    `json:"offered_steps"`
	// Resolved is set when the latest user turn confirms the most recent
	// step worked.
	Resolved  bool `json:"resolved"`
	Escalated bool `json:"escalated"`
}

// Tracker derives State from a transcript.
type Tracker struct {
	classifier Classifier
}

func NewTracker(c Classifier) *Tracker {
	if c == nil {
		c = KeywordClassifier{}
	}
	return &Tracker{classifier: c}
}

func (tr *Tracker) Derive(t Transcript) State {
	st := State{Steps: []Step{}}
	_, lastUser, _ := t.LastUser()

	seen := make(map[string]bool)
	awaiting := -1
	resolvedAt := -1

	for i, turn := range t.turns {
		switch turn.Role {
		case RoleUser:
			valid, rejected := scanProducts(turn.Text, st.KnownProduct != "")
			if valid != "" {
				st.KnownProduct = valid
			}
			if i == lastUser && valid == "" {
				st.RejectedCandidate = rejected
			}
			if tr.classifier.DescribesProblem(turn.Text) {
				st.ProblemDescribed = true
				st.ProblemText = turn.Text
			}
			if awaiting >= 0 {
				out := tr.classifier.Outcome(turn.Text)
				// a question about the step leaves it pending
				if out == OutcomeUnknown && tr.classifier.IsQuestion(turn.Text) {
					continue
				}
				st.Steps[awaiting].Outcome = out
				if out == OutcomeSucceeded {
					resolvedAt = i
				}
				awaiting = -1
			}

		case RoleAssistant:
			if turn.Category == CategoryEscalate {
				st.Escalated = true
			}
			desc, ok := tr.classifier.StepOf(turn)
			if !ok {
				continue
			}
			key := NormalizeStep(desc)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			st.Steps = append(st.Steps, Step{
				Index:       len(st.Steps) + 1,
				Description: desc,
				Outcome:     OutcomePending,
			})
			awaiting = len(st.Steps) - 1
		}
	}

	st.OfferedSteps = len(st.Steps)
	st.Resolved = resolvedAt >= 0 && resolvedAt == lastUser
	return st
}

// scanProducts returns the last valid product in text and the first
// normalized candidate that failed validation. Once a product is known, bare
// E1-style tokens are display codes and never rejected candidates.
func scanProducts(text string, known bool) (catalog.ProductID, string) {
	var valid catalog.ProductID
	var rejected string
	for _, c := range catalog.Candidates(text) {
		id, err := catalog.NormalizeAndValidate(c)
		if err == nil {
			valid = id
			continue
		}
		if known && catalog.LooksLikeDisplayCode(c) {
			continue
		}
		var inv *catalog.InvalidProductError
		if rejected == "" && errors.As(err, &inv) {
			rejected = inv.Normalized
		}
	}
	return valid, rejected
}
