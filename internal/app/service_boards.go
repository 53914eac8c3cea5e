package app

import (
	"context"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/tracker"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

type BoardInput struct {
	Name     *string              `json:"name"`
	Columns  *[]store.BoardColumn `json:"columns"`
	Stickers *[]store.Sticker     `json:"stickers"`
}

func (s *Service) ListBoards(ctx context.Context, session Session) ([]map[string]any, error) {
	boards, err := s.store.ListBoards(ctx, session.OrgID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(boards))
	for _, board := range boards {
		items = append(items, boardPayload(board))
	}
	return items, nil
}

func (s *Service) GetBoard(ctx context.Context, session Session, boardID string) (map[string]any, error) {
	board, err := s.getBoard(ctx, session, boardID)
	if err != nil {
		return nil, err
	}
	return boardPayload(board), nil
}

func (s *Service) CreateBoard(ctx context.Context, session Session, input BoardInput) (map[string]any, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, validationFailed(map[string]string{"name": "name is required"})
	}
	board := store.Board{
		ID:             util.NewID(),
		OrganizationID: session.OrgID,
		Columns:        tracker.DefaultColumns(),
		Stickers:       []store.Sticker{},
	}
	if session.UserID != "" {
		owner := session.UserID
		board.OwnerID = &owner
	}
	if err := applyBoardInput(&board, input); err != nil {
		return nil, err
	}
	created, err := s.store.CreateBoard(ctx, board)
	if err != nil {
		return nil, err
	}
	return boardPayload(created), nil
}

func (s *Service) UpdateBoard(ctx context.Context, session Session, boardID string, input BoardInput) (map[string]any, error) {
	board, err := s.getBoard(ctx, session, boardID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, validationFailed(map[string]string{"name": "name cannot be empty"})
	}
	if err := applyBoardInput(&board, input); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateBoard(ctx, board)
	if err != nil {
		return nil, err
	}
	return boardPayload(updated), nil
}

func (s *Service) DeleteBoard(ctx context.Context, session Session, boardID string) error {
	if _, err := s.getBoard(ctx, session, boardID); err != nil {
		return err
	}
	return s.store.DeleteBoard(ctx, session.OrgID, boardID)
}

func (s *Service) getBoard(ctx context.Context, session Session, boardID string) (store.Board, error) {
	if !util.IsID(boardID) {
		return store.Board{}, errNotFound()
	}
	board, err := s.store.GetBoard(ctx, session.OrgID, boardID)
	if err != nil {
		if isNotFound(err) {
			return store.Board{}, errNotFound()
		}
		return store.Board{}, err
	}
	return board, nil
}

// applyBoardInput replaces name, columns and stickers when present and checks
// that every sticker sits in a known column.
func applyBoardInput(board *store.Board, input BoardInput) error {
	if input.Name != nil {
		board.Name = strings.TrimSpace(*input.Name)
	}
	if input.Columns != nil {
		board.Columns = *input.Columns
	}
	if input.Stickers != nil {
		board.Stickers = *input.Stickers
	}
	if problems := tracker.ValidateBoard(board.Columns, board.Stickers); len(problems) > 0 {
		return validationFailed(problems)
	}
	return nil
}
