package dialogue

import (
	"regexp"
	"strings"
)

// Outcome of a troubleshooting step, inferred from the user's next turn.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnknown   Outcome = "unknown"
)

// Classifier holds the text heuristics the tracker and engine rely on.
// Implementations must be deterministic.
type Classifier interface {
	// StepOf reports whether an assistant turn offered a troubleshooting step
	// and returns its description.
	StepOf(turn Turn) (string, bool)
	// DescribesProblem reports whether user text names a concrete symptom.
	DescribesProblem(text string) bool
	// NewSymptom reports whether user text names a symptom outside the
	// clauses that confirm a fix ("that fixed the leak, but now it beeps").
	NewSymptom(text string) bool
	// IsQuestion reports whether user text asks something.
	IsQuestion(text string) bool
	// IsGeneralQuestion reports whether user text is a non-product
	// informational query (policies, shipping, company info).
	IsGeneralQuestion(text string) bool
	// Outcome classifies the user's reply to a step.
	Outcome(reply string) Outcome
}

// KeywordClassifier is the default keyword-based Classifier.
type KeywordClassifier struct{}

var _ Classifier = KeywordClassifier{}

var (
	symptomWords = wordSet(
		"leak", "leaks", "leaking", "leaked", "drip", "drips", "dripping",
		"broken", "broke", "stopped", "slow", "slowly", "noise", "noisy", "loud",
		"beep", "beeps", "beeping", "flashing", "blinking", "flickering", "error",
		"taste", "tastes", "smell", "smells", "odor", "cloudy", "murky", "clog",
		"clogged", "stuck", "crack", "cracked", "overflow", "overflowing", "alarm",
		"fault", "faulty", "failed", "failing", "malfunction", "malfunctioning",
		"won't", "wont", "can't", "cannot", "dead", "weak", "warm", "hot", "bubbles",
		"spitting", "sputtering", "hissing", "humming", "vibrating", "draining",
	)
	symptomPhrases = []string{
		"not working", "doesn't work", "does not work", "isn't working", "stopped working",
		"no water", "low pressure", "low flow", "water pressure", "keeps running",
		"will not", "red light", "light is on", "light is flashing", "high tds",
		"black particles", "black flecks", "not dispensing", "not filtering",
	}

	generalWords = wordSet(
		"return", "returns", "refund", "refunds", "warranty", "warranties", "guarantee",
		"policy", "policies", "shipping", "ship", "shipped", "delivery", "deliver",
		"tracking", "company", "headquarters", "discount", "coupon", "subscription",
		"subscribe", "certification", "certified", "nsf", "price", "pricing", "cost",
		"exchange", "international", "invoice", "payment",
	)
	generalPhrases = []string{
		"my order", "order status", "customer service", "phone number", "email address",
		"business hours", "opening hours", "about waterdrop", "where are you located",
		"how much", "where can i buy",
	}

	stepCueWords = wordSet(
		"try", "check", "flush", "reset", "replace", "tighten", "remove", "reinstall",
		"unplug", "press", "inspect", "rinse", "clean", "reseat", "verify", "ensure",
		"disconnect", "reconnect", "restart", "turn", "hold",
	)
	reportBackPhrases = []string{
		"let me know", "report back", "tell me", "once you", "after you", "when you're done",
		"when you are done", "did that", "does that help", "did it help",
	}

	strongFailure = []string{"not fixed", "didn't fix", "did not fix", "not resolved", "didn't help", "did not help", "not solved"}

	successWords = wordSet("fixed", "resolved", "solved", "perfect")

	successPhrases = []string{
		"works now", "working now", "it worked", "that worked", "no longer", "stopped leaking",
		"all good", "problem is gone", "issue is gone", "works fine", "working fine", "works great",
		"no more", "not leaking", "isn't leaking",
	}

	failureWords = wordSet("still", "didn't", "doesn't", "same", "worse", "nope", "unresolved")

	failurePhrases = []string{
		"did not", "not working", "no luck", "does not", "no change", "nothing changed", "no difference",
	}

	questionWords = wordSet(
		"how", "where", "what", "which", "why", "when", "who", "can", "could", "should",
		"do", "does", "is", "are", "will", "would",
	)

	// clause boundaries used to separate a confirmed fix from a new complaint
	clauseRe = regexp.MustCompile(`[.,;!?\n]+|\b(?:but|however|although|though|except|also|yet)\b`)

	wordRe     = regexp.MustCompile(`[a-z0-9']+`)
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
	sentenceRe = regexp.MustCompile(`[.!?\n]`)
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "’", "'")
	return s
}

func hasWord(text string, set map[string]struct{}) bool {
	for _, w := range wordRe.FindAllString(text, -1) {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func hasPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func (KeywordClassifier) DescribesProblem(text string) bool {
	t := normalizeText(text)
	return hasWord(t, symptomWords) || hasPhrase(t, symptomPhrases)
}

func (c KeywordClassifier) NewSymptom(text string) bool {
	for _, clause := range clauseRe.Split(normalizeText(text), -1) {
		if confirmsFix(clause) {
			continue
		}
		if c.DescribesProblem(clause) {
			return true
		}
	}
	return false
}

func (KeywordClassifier) IsQuestion(text string) bool {
	t := normalizeText(strings.TrimSpace(text))
	if strings.Contains(t, "?") {
		return true
	}
	first := wordRe.FindString(t)
	_, ok := questionWords[first]
	return ok
}

func confirmsFix(clause string) bool {
	if hasPhrase(clause, strongFailure) {
		return false
	}
	return hasWord(clause, successWords) || hasPhrase(clause, successPhrases)
}

func (KeywordClassifier) IsGeneralQuestion(text string) bool {
	t := normalizeText(text)
	return hasWord(t, generalWords) || hasPhrase(t, generalPhrases)
}

func (KeywordClassifier) StepOf(turn Turn) (string, bool) {
	if turn.Role != RoleAssistant {
		return "", false
	}
	if s := strings.TrimSpace(turn.Step); s != "" {
		return s, true
	}
	// Only troubleshooting turns, or unannotated ones, can carry a step.
	if turn.Reason != "" && turn.Reason != ReasonTroubleshoot {
		return "", false
	}
	if turn.Category != "" && turn.Category != CategoryRetrieve {
		return "", false
	}
	t := normalizeText(turn.Text)
	if !hasWord(t, stepCueWords) || !hasPhrase(t, reportBackPhrases) {
		return "", false
	}
	return firstSentence(turn.Text), true
}

func (KeywordClassifier) Outcome(reply string) Outcome {
	t := normalizeText(reply)
	switch {
	case strings.TrimSpace(t) == "":
		return OutcomeUnknown
	case hasPhrase(t, strongFailure):
		return OutcomeFailed
	case hasWord(t, successWords) || hasPhrase(t, successPhrases):
		return OutcomeSucceeded
	case hasWord(t, failureWords) || hasPhrase(t, failurePhrases):
		return OutcomeFailed
	default:
		return OutcomeUnknown
	}
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if loc := sentenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[:loc[0]])
	}
	return s
}

// NormalizeStep folds a step description to the form used to detect repeats.
func NormalizeStep(s string) string {
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(strings.ToLower(s), " "))
}
