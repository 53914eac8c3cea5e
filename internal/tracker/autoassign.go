package tracker

import (
	"slices"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

// MatchAutoAssign returns the assignee of the first enabled rule that matches
// the ticket and names an assignee.
func MatchAutoAssign(ticket store.Ticket) (string, bool) {
	if !ticket.AutoAssign.Enabled {
		return "", false
	}
	for _, rule := range ticket.AutoAssign.Rules {
		if strings.TrimSpace(rule.Assignee) == "" {
			continue
		}
		if ruleMatches(ticket, rule) {
			return rule.Assignee, true
		}
	}
	return "", false
}

func ruleMatches(ticket store.Ticket, rule store.AutoAssignRule) bool {
	switch rule.Condition {
	case "type":
		return ticket.Type == rule.Value
	case "priority":
		return ticket.Priority == rule.Value
	case "client":
		return ticket.Client != nil && ticket.Client.Company != "" && strings.EqualFold(ticket.Client.Company, rule.Value)
	case "label":
		return slices.Contains(ticket.Labels, rule.Value)
	default:
		return false
	}
}
