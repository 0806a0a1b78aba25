package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Prefix is carried by every valid Waterdrop model.
const Prefix = "WD-"

// ProductID is a validated, prefix-normalized model identifier.
type ProductID string

func (p ProductID) String() string { return string(p) }

var ErrInvalidProduct = errors.New("catalog: product identifier not recognized")

// InvalidProductError carries the rejected input and its normalized form.
type InvalidProductError struct {
	Raw        string
	Normalized string
}

func (e *InvalidProductError) Error() string {
	return fmt.Sprintf("catalog: %q (normalized %q) is not a known %s model", e.Raw, e.Normalized, Prefix)
}

func (e *InvalidProductError) Is(target error) bool { return target == ErrInvalidProduct }

var models = map[ProductID]struct{}{
	"WD-A1": {}, "WD-G3P600-W": {}, "WD-G3P800-B": {}, "WD-G3P1000-C": {},
	"WD-G3P1200-C": {}, "WD-G3P1600-W": {}, "WD-G3R600-W": {}, "WD-G3R800-B": {},
	"WD-G3R1000-C": {}, "WD-G3R1200-C": {}, "WD-G3R1600-W": {}, "WD-RO-G2": {},
	"WD-RO-G3": {}, "WD-RO-G2P600-W": {}, "WD-RO-G2P800-B": {}, "WD-RO-G3P400-W": {},
	"WD-RO-G3P600-W": {}, "WD-RO-G3P800-B": {}, "WD-N1-A": {}, "WD-N1-B": {},
	"WD-10UA": {}, "WD-G3-W": {}, "WD-G3-B": {}, "WD-K6": {},
	"WD-T1": {}, "WD-T2": {}, "WD-T3": {}, "WD-X12": {},
}

// Normalize prepends the canonical prefix when the input lacks it.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, Prefix) {
		return s
	}
	return Prefix + s
}

// NormalizeAndValidate resolves raw user input to a catalog member.
// Lookup is case-sensitive and exact after normalization.
func NormalizeAndValidate(raw string) (ProductID, error) {
	n := Normalize(raw)
	if _, ok := models[ProductID(n)]; ok {
		return ProductID(n), nil
	}
	return "", &InvalidProductError{Raw: raw, Normalized: n}
}

// IsValid reports whether id is a catalog member.
func IsValid(id ProductID) bool {
	_, ok := models[id]
	return ok
}

// Models returns the catalog in sorted order.
func Models() []ProductID {
	out := make([]ProductID, 0, len(models))
	for m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	tokenRe   = regexp.MustCompile(`[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*`)
	letterRe  = regexp.MustCompile(`[A-Za-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	ordinalRe = regexp.MustCompile(`^[0-9]+(?:ST|ND|RD|TH)$`)
	// quantities like 5GPD, 30MIN, 2AM
	quantityRe = regexp.MustCompile(`^[0-9]+(?:GPD|PPM|PSI|GAL|L|ML|MIN|MINS|H|HR|HRS|S|SEC|AM|PM|X|D|K|M|MM|CM|IN|FT|F|C)$`)
	// short display codes such as E1 or F03
	displayCodeRe = regexp.MustCompile(`^[A-Z][0-9]{1,2}$`)

	// words that introduce or follow an on-screen code
	codeBefore = map[string]bool{"ERROR": true, "ERR": true, "CODE": true, "FAULT": true, "ALARM": true}
	codeAfter  = map[string]bool{"ERROR": true, "CODE": true, "FAULT": true}
)

// Candidates extracts model-like tokens from free text, upper-cased, in order
// of appearance and without duplicates. A token needs at least one letter and
// one digit, or the canonical prefix. Unprefixed tokens next to an error-code
// word ("error E1", "E4 code") are skipped unless they name a catalog model.
func Candidates(text string) []string {
	var out []string
	seen := make(map[string]bool)
	toks := tokenRe.FindAllString(text, -1)
	for i, tok := range toks {
		up := strings.ToUpper(tok)
		if up == "WD" {
			continue
		}
		if !strings.HasPrefix(up, Prefix) {
			if !letterRe.MatchString(up) || !digitRe.MatchString(up) {
				continue
			}
			if ordinalRe.MatchString(up) || quantityRe.MatchString(up) {
				continue
			}
			if isDisplayCode(toks, i) && !IsValid(ProductID(Prefix+up)) {
				continue
			}
		}
		if seen[up] {
			continue
		}
		seen[up] = true
		out = append(out, up)
	}
	return out
}

func isDisplayCode(toks []string, i int) bool {
	if i > 0 && codeBefore[strings.ToUpper(toks[i-1])] {
		return true
	}
	return i+1 < len(toks) && codeAfter[strings.ToUpper(toks[i+1])]
}

// LooksLikeDisplayCode reports whether an unprefixed candidate has the shape
// of a short on-screen code rather than a model number.
func LooksLikeDisplayCode(candidate string) bool {
	return !strings.HasPrefix(candidate, Prefix) && displayCodeRe.MatchString(candidate)
}
