package newsroom

import "regexp"

// Verdict selects how a stage's reply is interpreted after it finishes.
type Verdict int

const (
	// VerdictNone leaves the reply uninterpreted.
	VerdictNone Verdict = iota
	// VerdictApproval reads an APPROVE / REJECT decision.
	VerdictApproval
	// VerdictCompletion reads a COMPLETE declaration.
	VerdictCompletion
)

// String returns the configuration name of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictApproval:
		return "approval"
	case VerdictCompletion:
		return "completion"
	default:
		return "none"
	}
}

// ParseVerdict maps a configuration name onto a Verdict. The empty string is
// VerdictNone.
func ParseVerdict(s string) (Verdict, bool) {
	switch s {
	case "", "none":
		return VerdictNone, true
	case "approval":
		return VerdictApproval, true
	case "completion":
		return VerdictCompletion, true
	}

	return VerdictNone, false
}

// negation matches, in any case, a negating word and its filler right before a
// keyword: "not", "NOT YET", "cannot", "can't be", "never".
const negation = `(?i:\b(?:not|cannot|never|\w+n['’]t)\s+(?:(?:yet|be|fully|quite)\s+)*)`

var (
	approveRe  = regexp.MustCompile(`(` + negation + `)?\bAPPROVE[SD]?\b`)
	rejectRe   = regexp.MustCompile(`\bREJECT(?:S|ED)?\b`)
	completeRe = regexp.MustCompile(`(` + negation + `)?\bCOMPLETE\b`)
)

// Approved reports whether text approves without also rejecting. Only the
// upper-case keywords count; a negated APPROVE does not.
func Approved(text string) bool {
	return !rejectRe.MatchString(text) && affirmed(approveRe, text)
}

// Completed reports whether text declares COMPLETE at least once without a
// negation in front of it. INCOMPLETE never matches.
func Completed(text string) bool {
	return affirmed(completeRe, text)
}

// affirmed reports whether re matches at least once with its negation group
// empty.
func affirmed(re *regexp.Regexp, text string) bool {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if m[1] == "" {
			return true
		}
	}

	return false
}
