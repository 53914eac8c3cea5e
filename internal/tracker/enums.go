// Package tracker holds the rules shared by tickets, sprints, tasks and
// boards: allowed values, ticket keys, auto-assignment, change history and
// sprint statistics.
package tracker

import "slices"

var (
	TicketStatuses        = []string{"backlog", "todo", "in_progress", "review", "done"}
	Priorities            = []string{"low", "medium", "high", "critical"}
	TicketTypes           = []string{"task", "bug", "feature", "epic", "client_request"}
	AutoAssignConditions  = []string{"type", "priority", "client", "label"}
	SprintStatuses        = []string{"planned", "active", "completed"}
	TaskStatuses          = []string{"new", "in_progress", "done", "archived"}
	ChannelTypes          = []string{"channel", "group", "dm"}
	CommunicationStatuses = []string{"new", "in_progress", "closed"}
)

const (
	DefaultTicketStatus = "backlog"
	DefaultPriority     = "medium"
	DefaultTicketType   = "task"
	DefaultSprintStatus = "planned"
	DefaultTaskStatus   = "new"
	DefaultChannelType  = "channel"
	TicketDone          = "done"
	SprintCompleted     = "completed"
	CommunicationNew    = "new"
	CommunicationOpen   = "in_progress"
	CommunicationClosed = "closed"
	AuthorClient        = "client"
	AuthorStaff         = "staff"
	AuthorInternal      = "internal"
)

// OneOf reports whether value is in allowed.
func OneOf(allowed []string, value string) bool {
	return slices.Contains(allowed, value)
}

// PriorityRank orders priorities from low (0) to critical (3); unknown values rank -1.
func PriorityRank(priority string) int {
	return slices.Index(Priorities, priority)
}
