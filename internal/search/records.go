package search

import "github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"

func TicketRecordFrom(t store.Ticket) TicketRecord {
	record := TicketRecord{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		Key:            t.Key,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		Priority:       t.Priority,
	}
	if t.Client != nil {
		record.ClientName = t.Client.Name
		record.ClientEmail = t.Client.Email
	}
	return record
}

func ArticleRecordFrom(a store.Article) ArticleRecord {
	return ArticleRecord{
		ID:             a.ID,
		OrganizationID: a.OrganizationID,
		Title:          a.Title,
		Content:        a.Content,
		AuthorName:     a.AuthorName,
	}
}

func CommunicationRecordFrom(c store.Communication) CommunicationRecord {
	return CommunicationRecord{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		Subject:        c.Subject,
		ClientName:     c.ClientName,
		ClientEmail:    c.ClientEmail,
		Status:         c.Status,
	}
}
