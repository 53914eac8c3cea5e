package app

import (
	"context"
	"strings"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/tracker"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

type ChannelInput struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
}

// MessageInput is used for channel messages and thread replies.
type MessageInput struct {
	Author string `json:"author"`
	Avatar string `json:"avatar"`
	Text   string `json:"text"`
	Time   string `json:"time"`
}

func (s *Service) ListChannels(ctx context.Context, session Session) ([]map[string]any, error) {
	channels, err := s.store.ListChannels(ctx, session.OrgID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(channels))
	for _, channel := range channels {
		items = append(items, channelPayload(channel))
	}
	return items, nil
}

func (s *Service) CreateChannel(ctx context.Context, session Session, input ChannelInput) (map[string]any, error) {
	problems := map[string]string{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		problems["name"] = "name is required"
	}
	channelType := strings.TrimSpace(input.Type)
	if channelType == "" {
		channelType = tracker.DefaultChannelType
	} else if !tracker.OneOf(tracker.ChannelTypes, channelType) {
		problems["type"] = "type must be one of " + strings.Join(tracker.ChannelTypes, ", ")
	}
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}
	channel, err := s.store.CreateChannel(ctx, store.Channel{
		ID:             util.NewID(),
		OrganizationID: session.OrgID,
		Name:           name,
		Type:           channelType,
		Participants:   trimList(input.Participants),
	})
	if err != nil {
		return nil, err
	}
	return channelPayload(channel), nil
}

func (s *Service) ListMessages(ctx context.Context, session Session, channelID string) ([]map[string]any, error) {
	channel, err := s.getChannel(ctx, session, channelID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		items = append(items, messagePayload(message))
	}
	return items, nil
}

func (s *Service) PostMessage(ctx context.Context, session Session, channelID string, input MessageInput) (map[string]any, error) {
	channel, err := s.getChannel(ctx, session, channelID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, validationFailed(map[string]string{"text": "text is required"})
	}
	message, err := s.store.InsertMessage(ctx, store.Message{
		ID:        util.NewID(),
		ChannelID: channel.ID,
		Author:    firstNonBlank(input.Author, session.UserName),
		Avatar:    strings.TrimSpace(input.Avatar),
		Text:      text,
		Time:      firstNonBlank(input.Time, s.now().Format("15:04")),
	})
	if err != nil {
		return nil, err
	}
	return messagePayload(message), nil
}

func (s *Service) ListReplies(ctx context.Context, session Session, messageID string) ([]map[string]any, error) {
	message, err := s.getMessage(ctx, session, messageID)
	if err != nil {
		return nil, err
	}
	replies, err := s.store.ListReplies(ctx, message.ID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(replies))
	for _, reply := range replies {
		items = append(items, replyPayload(reply))
	}
	return items, nil
}

func (s *Service) AddReply(ctx context.Context, session Session, messageID string, input MessageInput) (map[string]any, error) {
	message, err := s.getMessage(ctx, session, messageID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, validationFailed(map[string]string{"text": "text is required"})
	}
	reply, err := s.store.InsertReply(ctx, store.MessageReply{
		ID:        util.NewID(),
		MessageID: message.ID,
		Author:    firstNonBlank(input.Author, session.UserName),
		Avatar:    strings.TrimSpace(input.Avatar),
		Text:      text,
		Time:      firstNonBlank(input.Time, s.now().Format("15:04")),
	})
	if err != nil {
		return nil, err
	}
	return replyPayload(reply), nil
}

func (s *Service) ListUsers(ctx context.Context, session Session) ([]map[string]any, error) {
	users, err := s.store.ListOrganizationUsers(ctx, session.OrgID, "")
	if err != nil {
		return nil, err
	}
	return memberPayloads(users), nil
}

// SearchUsers matches name or email; an empty query finds nobody.
func (s *Service) SearchUsers(ctx context.Context, session Session, query string) ([]map[string]any, error) {
	if strings.TrimSpace(query) == "" {
		return []map[string]any{}, nil
	}
	users, err := s.store.SearchOrganizationUsers(ctx, session.OrgID, query)
	if err != nil {
		return nil, err
	}
	return memberPayloads(users), nil
}

// OpenDirectMessage returns the dm channel of two members, creating it on
// first use. Participant order does not matter.
func (s *Service) OpenDirectMessage(ctx context.Context, session Session, user1, user2 string) (map[string]any, error) {
	user1, user2 = strings.TrimSpace(user1), strings.TrimSpace(user2)
	problems := map[string]string{}
	if user1 == "" {
		problems["user1"] = "user1 is required"
	}
	if user2 == "" {
		problems["user2"] = "user2 is required"
	}
	if user1 != "" && user1 == user2 {
		problems["user2"] = "a direct message needs two different users"
	}
	if len(problems) > 0 {
		return nil, validationFailed(problems)
	}
	for _, id := range []string{user1, user2} {
		ok, err := s.isMember(ctx, session.OrgID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errNotFound()
		}
	}

	channel, err := s.store.FindDirectChannel(ctx, session.OrgID, user1, user2)
	if err == nil {
		return channelPayload(channel), nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	channel, err = s.store.CreateChannel(ctx, store.Channel{
		ID:             util.NewID(),
		OrganizationID: session.OrgID,
		Name:           user1 + "_" + user2,
		Type:           "dm",
		Participants:   []string{user1, user2},
	})
	if err != nil {
		return nil, err
	}
	return channelPayload(channel), nil
}

func (s *Service) getChannel(ctx context.Context, session Session, channelID string) (store.Channel, error) {
	if !util.IsID(channelID) {
		return store.Channel{}, errNotFound()
	}
	channel, err := s.store.GetChannel(ctx, session.OrgID, channelID)
	if err != nil {
		if isNotFound(err) {
			return store.Channel{}, errNotFound()
		}
		return store.Channel{}, err
	}
	return channel, nil
}

func (s *Service) getMessage(ctx context.Context, session Session, messageID string) (store.Message, error) {
	if !util.IsID(messageID) {
		return store.Message{}, errNotFound()
	}
	message, err := s.store.GetMessage(ctx, session.OrgID, messageID)
	if err != nil {
		if isNotFound(err) {
			return store.Message{}, errNotFound()
		}
		return store.Message{}, err
	}
	return message, nil
}

func memberPayloads(users []store.User) []map[string]any {
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, map[string]any{
			"id":     user.ID,
			"name":   user.Name,
			"email":  user.Email,
			"avatar": user.Avatar,
			"role":   user.Role,
		})
	}
	return items
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
