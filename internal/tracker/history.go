package tracker

import (
	"reflect"
	"slices"
	"time"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

// DiffTickets returns one history entry per field that differs between
// before and after, in a fixed field order.
func DiffTickets(before, after store.Ticket, changedBy string) []store.TicketHistory {
	var entries []store.TicketHistory
	record := func(field string, oldValue, newValue any) {
		entries = append(entries, store.TicketHistory{
			TicketID:  after.ID,
			Field:     field,
			OldValue:  oldValue,
			NewValue:  newValue,
			ChangedBy: changedBy,
		})
	}

	if before.Title != after.Title {
		record("title", before.Title, after.Title)
	}
	if before.Description != after.Description {
		record("description", before.Description, after.Description)
	}
	if before.Status != after.Status {
		record("status", before.Status, after.Status)
	}
	if before.Priority != after.Priority {
		record("priority", before.Priority, after.Priority)
	}
	if before.Type != after.Type {
		record("type", before.Type, after.Type)
	}
	if !equalPtr(before.AssigneeID, after.AssigneeID) {
		record("assignee", derefOrNil(before.AssigneeID), derefOrNil(after.AssigneeID))
	}
	if !equalPtr(before.SprintID, after.SprintID) {
		record("sprint", derefOrNil(before.SprintID), derefOrNil(after.SprintID))
	}
	if !equalPtr(before.StoryPoints, after.StoryPoints) {
		record("storyPoints", derefOrNil(before.StoryPoints), derefOrNil(after.StoryPoints))
	}
	if !sameDay(before.DueDate, after.DueDate) {
		record("dueDate", formatDate(before.DueDate), formatDate(after.DueDate))
	}
	if !equalPtr(before.Client, after.Client) {
		record("client", derefOrNil(before.Client), derefOrNil(after.Client))
	}
	if !equalPtr(before.TimeTracking, after.TimeTracking) {
		record("timeTracking", derefOrNil(before.TimeTracking), derefOrNil(after.TimeTracking))
	}
	if !slices.Equal(before.Labels, after.Labels) {
		record("labels", listOrEmpty(before.Labels), listOrEmpty(after.Labels))
	}
	if !slices.Equal(before.Dependencies, after.Dependencies) {
		record("dependencies", listOrEmpty(before.Dependencies), listOrEmpty(after.Dependencies))
	}
	if !slices.Equal(before.CustomFields, after.CustomFields) {
		record("customFields", listOrEmpty(before.CustomFields), listOrEmpty(after.CustomFields))
	}
	if !reflect.DeepEqual(normalizeRules(before.AutoAssign), normalizeRules(after.AutoAssign)) {
		record("autoAssign", normalizeRules(before.AutoAssign), normalizeRules(after.AutoAssign))
	}
	return entries
}

// DiffTasks records status and assignee changes the way the task history shows them.
func DiffTasks(before, after store.Task, author string) []store.TaskHistory {
	var entries []store.TaskHistory
	if before.Status != after.Status {
		entries = append(entries, store.TaskHistory{TaskID: after.ID, Action: "status_changed", Author: author, From: before.Status, To: after.Status})
	}
	if before.Assignee != after.Assignee {
		entries = append(entries, store.TaskHistory{TaskID: after.ID, Action: "assigned", Author: author, From: before.Assignee, To: after.Assignee})
	}
	return entries
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefOrNil[T any](value *T) any {
	if value == nil {
		return nil
	}
	return *value
}

func listOrEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func normalizeRules(value store.AutoAssign) store.AutoAssign {
	value.Rules = listOrEmpty(value.Rules)
	return value
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func formatDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339)
}
