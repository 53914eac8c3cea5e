package tracker

import "github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"

type SprintStats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"byStatus"`
	ByPriority  map[string]int `json:"byPriority"`
	StoryPoints int            `json:"storyPoints"`
}

// ComputeSprintStats counts tickets per status and priority. Every known
// status and priority is present in the maps, even at zero.
func ComputeSprintStats(tickets []store.Ticket) SprintStats {
	stats := SprintStats{
		Total:      len(tickets),
		ByStatus:   make(map[string]int, len(TicketStatuses)),
		ByPriority: make(map[string]int, len(Priorities)),
	}
	for _, status := range TicketStatuses {
		stats.ByStatus[status] = 0
	}
	for _, priority := range Priorities {
		stats.ByPriority[priority] = 0
	}
	for _, ticket := range tickets {
		if _, ok := stats.ByStatus[ticket.Status]; ok {
			stats.ByStatus[ticket.Status]++
		}
		if _, ok := stats.ByPriority[ticket.Priority]; ok {
			stats.ByPriority[ticket.Priority]++
		}
	}
	stats.StoryPoints = Velocity(tickets)
	return stats
}

// Velocity is the sum of story points over the tickets.
func Velocity(tickets []store.Ticket) int {
	total := 0
	for _, ticket := range tickets {
		if ticket.StoryPoints != nil {
			total += *ticket.StoryPoints
		}
	}
	return total
}
