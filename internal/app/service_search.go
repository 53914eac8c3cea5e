package app

import (
	"context"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/search"
)

// Search runs a full-text query inside the caller's organization. An empty
// query returns no results.
func (s *Service) Search(ctx context.Context, session Session, text, resultType string, limit, offset int) (search.Response, error) {
	filter, ok := search.ParseResultType(strings.TrimSpace(resultType))
	if !ok {
		return search.Response{}, validationFailed(map[string]string{
			"type": "type must be one of ticket, article, communication",
		})
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, search.Query{
		Text:           text,
		FilterType:     filter,
		OrganizationID: session.OrgID,
		Limit:          limit,
		Offset:         offset,
	}), nil
}
