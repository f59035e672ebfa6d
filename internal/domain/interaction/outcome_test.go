package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want Outcome
	}{
		{"еще не связался", OutcomePostpone},
		{"Ещё не связался", OutcomePostpone},
		{"⏳", OutcomePostpone},
		{"Проблема с оплатой", OutcomeIssue},
		{"похоже на мошенничество", OutcomeIssue},
		{"⚠️", OutcomeIssue},
		{"Всё прошло отлично", OutcomeOK},
		{"сделка состоялась", OutcomeOK},
		{"✅", OutcomeOK},
		{"не договорились по цене", OutcomeNoDeal},
		{"❌", OutcomeNoDeal},
		{"", OutcomeNoDeal},
		{"hello there", OutcomeNoDeal},
		{"⏳ проблема", OutcomePostpone},
		{"✅ но была проблема", OutcomeIssue},
		{"❌ всё прошло мимо", OutcomeOK},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.text), "text %q", tc.text)
	}
}

func TestClassifyButtonLabels(t *testing.T) {
	for outcome, label := range ButtonText {
		assert.Equal(t, outcome, Classify(label), label)
	}
}

func outcomePtr(o Outcome) *Outcome { return &o }

func TestAggregateTable(t *testing.T) {
	issue, ok, postpone, noDeal := outcomePtr(OutcomeIssue), outcomePtr(OutcomeOK), outcomePtr(OutcomePostpone), outcomePtr(OutcomeNoDeal)

	cases := []struct {
		name      string
		requester *Outcome
		fulfiller *Outcome
		want      Status
	}{
		{"nothing yet", nil, nil, StatusPending},
		{"issue alone", issue, nil, StatusIssue},
		{"issue beats ok", ok, issue, StatusIssue},
		{"issue beats no deal", issue, noDeal, StatusIssue},
		{"ok alone", nil, ok, StatusOK},
		{"ok beats no deal", noDeal, ok, StatusOK},
		{"ok beats postpone", postpone, ok, StatusOK},
		{"postpone alone", postpone, nil, StatusPending},
		{"postpone with no deal", noDeal, postpone, StatusPending},
		{"one no deal waits", noDeal, nil, StatusPending},
		{"both no deal", noDeal, noDeal, StatusNoDeal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Aggregate(tc.requester, tc.fulfiller))
		})
	}
}

func TestAggregateTotalAndSymmetric(t *testing.T) {
	values := []*Outcome{nil, outcomePtr(OutcomeIssue), outcomePtr(OutcomeOK), outcomePtr(OutcomePostpone), outcomePtr(OutcomeNoDeal)}
	valid := map[Status]bool{StatusPending: true, StatusOK: true, StatusNoDeal: true, StatusIssue: true}

	for _, a := range values {
		for _, b := range values {
			got := Aggregate(a, b)
			assert.True(t, valid[got], "unexpected status %q", got)
			assert.Equal(t, got, Aggregate(b, a))
		}
	}
}
