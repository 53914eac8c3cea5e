package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

func TestMatchAutoAssign(t *testing.T) {
	base := store.Ticket{
		Type:     "bug",
		Priority: "high",
		Labels:   []string{"billing", "vip"},
		Client:   &store.TicketClient{Company: "Globex"},
	}

	cases := []struct {
		name     string
		rules    []store.AutoAssignRule
		disabled bool
		want     string
		ok       bool
	}{
		{name: "disabled", disabled: true, rules: []store.AutoAssignRule{{Condition: "type", Value: "bug", Assignee: "u1"}}},
		{name: "type", rules: []store.AutoAssignRule{{Condition: "type", Value: "bug", Assignee: "u1"}}, want: "u1", ok: true},
		{name: "priority", rules: []store.AutoAssignRule{{Condition: "priority", Value: "high", Assignee: "u2"}}, want: "u2", ok: true},
		{name: "client company", rules: []store.AutoAssignRule{{Condition: "client", Value: "globex", Assignee: "u3"}}, want: "u3", ok: true},
		{name: "label", rules: []store.AutoAssignRule{{Condition: "label", Value: "vip", Assignee: "u4"}}, want: "u4", ok: true},
		{
			name: "first match wins",
			rules: []store.AutoAssignRule{
				{Condition: "type", Value: "feature", Assignee: "nope"},
				{Condition: "label", Value: "billing", Assignee: "first"},
				{Condition: "priority", Value: "high", Assignee: "second"},
			},
			want: "first", ok: true,
		},
		{
			name: "rule without assignee is skipped",
			rules: []store.AutoAssignRule{
				{Condition: "type", Value: "bug"},
				{Condition: "priority", Value: "high", Assignee: "u5"},
			},
			want: "u5", ok: true,
		},
		{name: "unknown condition", rules: []store.AutoAssignRule{{Condition: "weekday", Value: "mon", Assignee: "u6"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ticket := base
			ticket.AutoAssign = store.AutoAssign{Enabled: !tc.disabled, Rules: tc.rules}
			got, ok := MatchAutoAssign(ticket)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatchAutoAssignClientRuleNeedsClient(t *testing.T) {
	ticket := store.Ticket{AutoAssign: store.AutoAssign{Enabled: true, Rules: []store.AutoAssignRule{{Condition: "client", Value: "", Assignee: "u1"}}}}
	_, ok := MatchAutoAssign(ticket)
	assert.False(t, ok)
}
