package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/catalog"
)

// Reason records which rule produced a decision.
type Reason string

const (
	ReasonGreeting             Reason = "greeting"
	ReasonEmptyUtterance       Reason = "empty_utterance"
	ReasonGeneralQuestion      Reason = "general_question"
	ReasonUnrecognizedProduct  Reason = "unrecognized_product"
	ReasonMissingProduct       Reason = "missing_product"
	ReasonMissingProblem       Reason = "missing_problem"
	ReasonResolved             Reason = "resolved"
	ReasonEscalationThreshold  Reason = "escalation_threshold"
	ReasonDuplicateStep        Reason = "duplicate_step"
	ReasonTroubleshoot         Reason = "troubleshoot"
	ReasonStepQuestion         Reason = "step_question"
	ReasonRetrievalUnavailable Reason = "retrieval_unavailable"
)

// ErrRetrievalUnavailable marks a turn where no retriever could be consulted.
var ErrRetrievalUnavailable = errors.New("dialogue: retrieval unavailable")

// Contact is the human support channel offered on escalation.
type Contact struct {
	Email string `mapstructure:"email"`
	Phone string `mapstructure:"phone"`
}

func (c Contact) String() string {
	var parts []string
	if c.Email != "" {
		parts = append(parts, "Email: "+c.Email)
	}
	if c.Phone != "" {
		parts = append(parts, "Phone: "+c.Phone)
	}
	if len(parts) == 0 {
		return "our customer service team"
	}
	return strings.Join(parts, ", ")
}

type PolicyConfig struct {
	// EscalationThreshold is the number of offered steps after which an
	// unresolved conversation is handed to human support.
	EscalationThreshold int     `mapstructure:"escalation_threshold"`
	Contact             Contact `mapstructure:"contact"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		EscalationThreshold: 5,
		Contact: Contact{
			Email: "service@waterdropfilter.com",
			Phone: "1-888-352-3558",
		},
	}
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Category     Category `json:"category"`
	Reason       Reason   `json:"reason"`
	Instructions []string `json:"instructions"`
	Query        string   `json:"query,omitempty"`
	// Fixed is spoken verbatim instead of consulting the generator.
	Fixed string `json:"fixed,omitempty"`
}

// NeedsRetrieval reports whether the knowledge base should be searched.
func (d Decision) NeedsRetrieval() bool {
	return d.Category == CategoryRetrieve && d.Query != "" && d.Reason != ReasonRetrievalUnavailable
}

// OffersStep reports whether the reply may carry a new troubleshooting step.
func (d Decision) OffersStep() bool {
	return d.Reason == ReasonTroubleshoot
}

type Input struct {
	Utterance          string
	State              State
	RetrievalAvailable bool
}

// Engine is the troubleshooting dialogue policy. It holds no per-conversation
// state and is safe for concurrent use.
type Engine struct {
	cfg        PolicyConfig
	classifier Classifier
}

func NewEngine(cfg PolicyConfig, c Classifier) *Engine {
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = DefaultPolicyConfig().EscalationThreshold
	}
	if c == nil {
		c = KeywordClassifier{}
	}
	return &Engine{cfg: cfg, classifier: c}
}

func (e *Engine) Config() PolicyConfig { return e.cfg }

// Decide evaluates the policy rules in priority order; the first match wins.
func (e *Engine) Decide(in Input) Decision {
	text := strings.TrimSpace(in.Utterance)
	st := in.State

	if text == "" {
		return clarify(ReasonEmptyUtterance, instrAskRepeat)
	}

	// General questions override product and problem gating.
	if e.classifier.IsGeneralQuestion(text) && !e.classifier.DescribesProblem(text) {
		d := Decision{
			Category:     CategoryRetrieve,
			Reason:       ReasonGeneralQuestion,
			Instructions: []string{instrGeneral},
			Query:        withProduct(st.KnownProduct, text),
		}
		return e.gate(d, in.RetrievalAvailable)
	}

	if st.RejectedCandidate != "" {
		return clarify(ReasonUnrecognizedProduct, fmt.Sprintf(instrUnrecognized, st.RejectedCandidate))
	}
	if st.KnownProduct == "" {
		return clarify(ReasonMissingProduct, instrAskProduct)
	}
	if !st.ProblemDescribed {
		return clarify(ReasonMissingProblem, fmt.Sprintf(instrAskProblem, st.KnownProduct))
	}
	if st.Resolved && !e.classifier.NewSymptom(text) {
		return Decision{
			Category:     CategoryDirect,
			Reason:       ReasonResolved,
			Instructions: []string{fmt.Sprintf(instrResolved, st.KnownProduct)},
		}
	}
	if st.OfferedSteps >= e.cfg.EscalationThreshold {
		return e.Escalate(ReasonEscalationThreshold)
	}
	if len(st.Steps) > 0 && e.classifier.IsQuestion(text) && !e.classifier.DescribesProblem(text) {
		return e.gate(e.stepQuestion(st, text), in.RetrievalAvailable)
	}

	return e.gate(e.troubleshoot(st), in.RetrievalAvailable)
}

// Escalate builds the fixed hand-off decision.
func (e *Engine) Escalate(reason Reason) Decision {
	msg := e.EscalationMessage()
	return Decision{
		Category:     CategoryEscalate,
		Reason:       reason,
		Instructions: []string{fmt.Sprintf(instrEscalate, msg)},
		Fixed:        msg,
	}
}

func (e *Engine) EscalationMessage() string {
	return fmt.Sprintf(escalationTemplate, e.cfg.Contact)
}

// Ground folds the retrieval result into a decision. Failed or empty
// retrieval never yields troubleshooting content.
func (e *Engine) Ground(d Decision, found int, err error) Decision {
	if !d.NeedsRetrieval() {
		return d
	}
	if err != nil || found == 0 {
		return e.unavailable(d)
	}
	d.Instructions = append(append([]string(nil), d.Instructions...), instrContext)
	return d
}

func (e *Engine) gate(d Decision, available bool) Decision {
	if !available {
		return e.unavailable(d)
	}
	return d
}

func (e *Engine) unavailable(d Decision) Decision {
	return Decision{
		Category:     CategoryRetrieve,
		Reason:       ReasonRetrievalUnavailable,
		Instructions: []string{fmt.Sprintf(instrUnavailable, e.cfg.Contact)},
		Query:        d.Query,
	}
}

func (e *Engine) troubleshoot(st State) Decision {
	n := st.OfferedSteps
	instr := []string{
		instrFAQFirst,
		fmt.Sprintf(instrOneStep, st.KnownProduct),
		instrNoRepeat,
	}
	if len(st.Steps) > 0 {
		offered := make([]string, 0, len(st.Steps))
		for _, s := range st.Steps {
			offered = append(offered, fmt.Sprintf("%d) %s", s.Index, s.Description))
		}
		instr = append(instr, fmt.Sprintf(instrOffered, strings.Join(offered, "; ")))
		if st.Steps[len(st.Steps)-1].Outcome == OutcomeFailed {
			instr = append(instr, instrAfterFailure)
		}
	}
	instr = append(instr,
		fmt.Sprintf(instrTier, n+1, e.cfg.EscalationThreshold, Tier(n, e.cfg.EscalationThreshold)),
		instrReportBack,
	)

	return Decision{
		Category:     CategoryRetrieve,
		Reason:       ReasonTroubleshoot,
		Instructions: instr,
		Query:        withProduct(st.KnownProduct, st.ProblemText),
	}
}

// stepQuestion answers a question about the latest step without offering a
// new one. The question itself drives retrieval.
func (e *Engine) stepQuestion(st State, text string) Decision {
	last := st.Steps[len(st.Steps)-1]
	return Decision{
		Category: CategoryRetrieve,
		Reason:   ReasonStepQuestion,
		Instructions: []string{
			fmt.Sprintf(instrStepQuestion, last.Description, st.KnownProduct),
			instrReportBack,
		},
		Query: withProduct(st.KnownProduct, text+" "+last.Description),
	}
}

// Tier maps the number of steps already offered to a difficulty level that
// never decreases as the conversation goes on.
func Tier(offered, threshold int) string {
	if threshold <= 0 {
		threshold = 1
	}
	switch offered * 3 / threshold {
	case 0:
		return "basic"
	case 1:
		return "intermediate"
	default:
		return "advanced"
	}
}

func clarify(reason Reason, instruction string) Decision {
	return Decision{
		Category:     CategoryClarify,
		Reason:       reason,
		Instructions: []string{instruction},
	}
}

func withProduct(p catalog.ProductID, text string) string {
	text = strings.TrimSpace(text)
	if p == "" || strings.Contains(text, string(p)) {
		return text
	}
	return string(p) + " " + text
}
