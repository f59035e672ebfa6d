package interaction

import "strings"

// Outcome is one party's classified report.
type Outcome string

const (
	OutcomeOK       Outcome = "OK"
	OutcomeNoDeal   Outcome = "NO_DEAL"
	OutcomePostpone Outcome = "POSTPONE"
	OutcomeIssue    Outcome = "ISSUE"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeOK, OutcomeNoDeal, OutcomePostpone, OutcomeIssue:
		return true
	}
	return false
}

type classifyRule struct {
	outcome Outcome
	markers []string
}

// Rules are checked in order; the first rule with a matching marker wins.
// Markers are compared against lower-cased text with ё folded to е.
var classifyRules = []classifyRule{
	{OutcomePostpone, []string{"еще не связался", "⏳"}},
	{OutcomeIssue, []string{"проблема", "мошенничество", "⚠"}},
	{OutcomeOK, []string{"все прошло", "сделка состоялась", "✅"}},
	{OutcomeNoDeal, []string{"не договорились", "❌"}},
}

// Classify maps free text or a button label to an outcome. Text matching no
// rule counts as NO_DEAL.
func Classify(text string) Outcome {
	norm := strings.ReplaceAll(strings.ToLower(text), "ё", "е")
	for _, rule := range classifyRules {
		for _, marker := range rule.markers {
			if strings.Contains(norm, marker) {
				return rule.outcome
			}
		}
	}
	return OutcomeNoDeal
}

// Aggregate reconciles the two reports into a deal status. It is total over
// every pair including missing reports, and symmetric in its arguments.
func Aggregate(requester, fulfiller *Outcome) Status {
	is := func(o *Outcome, want Outcome) bool { return o != nil && *o == want }

	switch {
	case is(requester, OutcomeIssue) || is(fulfiller, OutcomeIssue):
		return StatusIssue
	case is(requester, OutcomeOK) || is(fulfiller, OutcomeOK):
		return StatusOK
	case is(requester, OutcomePostpone) || is(fulfiller, OutcomePostpone):
		return StatusPending
	case is(requester, OutcomeNoDeal) && is(fulfiller, OutcomeNoDeal):
		return StatusNoDeal
	}
	// one NO_DEAL waiting on the other side, or nothing reported yet
	return StatusPending
}

// Canonical button labels for each outcome.
var ButtonText = map[Outcome]string{
	OutcomeOK:       "✅ Всё прошло нормально",
	OutcomeNoDeal:   "❌ Не договорились",
	OutcomePostpone: "⏳ Ещё не связался",
	OutcomeIssue:    "⚠️ Проблема / подозрение на мошенничество",
}
