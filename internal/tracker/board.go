package tracker

import (
	"fmt"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

// DefaultColumns is the layout of a freshly created board.
func DefaultColumns() []store.BoardColumn {
	return []store.BoardColumn{
		{ID: "todo", Title: "To Do", Order: 0},
		{ID: "inprogress", Title: "In Progress", Order: 1},
		{ID: "done", Title: "Done", Order: 2},
	}
}

// ValidateBoard checks that column ids are unique and non-empty and that
// every sticker sits in an existing column. The returned map is keyed by the
// offending field path.
func ValidateBoard(columns []store.BoardColumn, stickers []store.Sticker) map[string]string {
	problems := map[string]string{}
	known := make(map[string]bool, len(columns))
	for i, column := range columns {
		id := strings.TrimSpace(column.ID)
		switch {
		case id == "":
			problems[fmt.Sprintf("columns[%d].id", i)] = "column id is required"
		case known[id]:
			problems[fmt.Sprintf("columns[%d].id", i)] = "duplicate column id " + id
		default:
			known[id] = true
		}
	}
	for i, sticker := range stickers {
		if !known[sticker.Status] {
			problems[fmt.Sprintf("stickers[%d].status", i)] = "unknown column " + sticker.Status
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}
