package app

import (
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

func userPayload(user store.User) map[string]any {
	var organization any
	if user.OrganizationID != nil {
		organization = map[string]any{"id": *user.OrganizationID, "name": user.OrganizationName}
	}
	return map[string]any{
		"id":                 user.ID,
		"email":              user.Email,
		"name":               user.Name,
		"avatar":             user.Avatar,
		"role":               user.Role,
		"organization":       organization,
		"mustChangePassword": user.MustChangePassword,
	}
}

func userSummary(user store.User) map[string]any {
	return map[string]any{"id": user.ID, "email": user.Email, "name": user.Name}
}

func attachmentPayloads(items []store.Attachment) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"id":           item.ID,
			"filename":     item.Filename,
			"originalName": item.OriginalName,
			"contentType":  item.ContentType,
			"size":         item.Size,
			"url":          "/uploads/" + item.Filename,
			"uploadedBy":   item.UploadedBy,
			"createdAt":    item.CreatedAt,
		})
	}
	return out
}

func ticketPayload(item store.Ticket) map[string]any {
	var client any
	if item.Client != nil {
		client = item.Client
	}
	var tracking any
	if item.TimeTracking != nil {
		tracking = item.TimeTracking
	}
	return map[string]any{
		"id":           item.ID,
		"key":          item.Key,
		"ticketId":     item.Key,
		"title":        item.Title,
		"description":  item.Description,
		"status":       item.Status,
		"priority":     item.Priority,
		"type":         item.Type,
		"reporter":     item.Reporter,
		"assignee":     item.AssigneeID,
		"client":       client,
		"labels":       nonNilStrings(item.Labels),
		"autoAssign":   autoAssignPayload(item.AutoAssign),
		"customFields": nonNilSlice(item.CustomFields),
		"timeTracking": tracking,
		"storyPoints":  item.StoryPoints,
		"dueDate":      item.DueDate,
		"sprint":       item.SprintID,
		"dependencies": nonNilStrings(item.Dependencies),
		"createdAt":    item.CreatedAt,
		"updatedAt":    item.UpdatedAt,
	}
}

func autoAssignPayload(value store.AutoAssign) store.AutoAssign {
	value.Rules = nonNilSlice(value.Rules)
	return value
}

func ticketCommentPayloads(items []store.TicketComment) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"id":         item.ID,
			"authorId":   item.AuthorID,
			"authorName": item.AuthorName,
			"text":       item.Text,
			"createdAt":  item.CreatedAt,
		})
	}
	return out
}

func ticketHistoryPayloads(items []store.TicketHistory) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"field":     item.Field,
			"oldValue":  item.OldValue,
			"newValue":  item.NewValue,
			"changedBy": item.ChangedBy,
			"changedAt": item.ChangedAt,
		})
	}
	return out
}

func sprintPayload(item store.Sprint) map[string]any {
	return map[string]any{
		"id":          item.ID,
		"name":        item.Name,
		"description": item.Description,
		"startDate":   item.StartDate,
		"endDate":     item.EndDate,
		"status":      item.Status,
		"goals":       nonNilStrings(item.Goals),
		"velocity":    item.Velocity,
		"createdBy":   item.CreatedBy,
		"createdAt":   item.CreatedAt,
		"updatedAt":   item.UpdatedAt,
	}
}

func taskPayload(item store.Task) map[string]any {
	return map[string]any{
		"id":          item.ID,
		"title":       item.Title,
		"description": item.Description,
		"status":      item.Status,
		"priority":    item.Priority,
		"author":      item.Author,
		"assignee":    item.Assignee,
		"tags":        nonNilStrings(item.Tags),
		"dueDate":     item.DueDate,
		"createdAt":   item.CreatedAt,
		"updatedAt":   item.UpdatedAt,
	}
}

func taskCommentPayloads(items []store.TaskComment) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"id":          item.ID,
			"author":      item.Author,
			"text":        item.Text,
			"mentions":    nonNilStrings(item.Mentions),
			"attachments": attachmentPayloads(item.Attachments),
			"createdAt":   item.CreatedAt,
		})
	}
	return out
}

func taskHistoryPayloads(items []store.TaskHistory) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"action":    item.Action,
			"author":    item.Author,
			"from":      item.From,
			"to":        item.To,
			"createdAt": item.CreatedAt,
		})
	}
	return out
}

func boardPayload(item store.Board) map[string]any {
	return map[string]any{
		"id":        item.ID,
		"name":      item.Name,
		"columns":   nonNilSlice(item.Columns),
		"stickers":  nonNilSlice(item.Stickers),
		"owner":     item.OwnerID,
		"createdAt": item.CreatedAt,
		"updatedAt": item.UpdatedAt,
	}
}

func channelPayload(item store.Channel) map[string]any {
	return map[string]any{
		"id":           item.ID,
		"name":         item.Name,
		"type":         item.Type,
		"participants": nonNilStrings(item.Participants),
		"createdAt":    item.CreatedAt,
	}
}

func replyPayload(item store.MessageReply) map[string]any {
	return map[string]any{
		"id":        item.ID,
		"author":    item.Author,
		"avatar":    item.Avatar,
		"text":      item.Text,
		"time":      item.Time,
		"createdAt": item.CreatedAt,
	}
}

func messagePayload(item store.Message) map[string]any {
	replies := make([]map[string]any, 0, len(item.Replies))
	for _, reply := range item.Replies {
		replies = append(replies, replyPayload(reply))
	}
	return map[string]any{
		"id":        item.ID,
		"channelId": item.ChannelID,
		"author":    item.Author,
		"avatar":    item.Avatar,
		"text":      item.Text,
		"time":      item.Time,
		"replies":   replies,
		"createdAt": item.CreatedAt,
	}
}

func articlePayload(item store.Article) map[string]any {
	return map[string]any{
		"id":         item.ID,
		"title":      item.Title,
		"content":    item.Content,
		"authorId":   item.AuthorID,
		"authorName": item.AuthorName,
		"createdAt":  item.CreatedAt,
		"updatedAt":  item.UpdatedAt,
	}
}

func communicationPayload(item store.Communication) map[string]any {
	return map[string]any{
		"id":          item.ID,
		"clientName":  item.ClientName,
		"clientEmail": item.ClientEmail,
		"clientPhone": item.ClientPhone,
		"subject":     item.Subject,
		"status":      item.Status,
		"createdAt":   item.CreatedAt,
		"updatedAt":   item.UpdatedAt,
	}
}

func communicationMessagePayload(item store.CommunicationMessage) map[string]any {
	return map[string]any{
		"id":             item.ID,
		"author":         item.Author,
		"authorType":     item.AuthorType,
		"text":           item.Text,
		"emailMessageId": item.EmailMessageID,
		"createdAt":      item.CreatedAt,
	}
}

func nonNilStrings(items []string) []string {
	return nonNilSlice(items)
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
