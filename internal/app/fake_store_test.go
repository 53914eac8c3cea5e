package app

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/tracker"
)

// fakeStore keeps every table in memory. The func fields override single
// calls; left nil they fall through to the in-memory behaviour.
type fakeStore struct {
	mu sync.Mutex

	pingFn         func(context.Context) error
	createTicketFn func(context.Context, store.Ticket, []store.TicketHistory) (store.Ticket, error)

	seq            int64
	clock          time.Time
	users          map[string]store.User
	orgs           map[string]store.Organization
	tickets        map[string]store.Ticket
	ticketHistory  map[string][]store.TicketHistory
	ticketComments map[string][]store.TicketComment
	sprints        map[string]store.Sprint
	tasks          map[string]store.Task
	taskHistory    map[string][]store.TaskHistory
	taskComments   map[string][]store.TaskComment
	boards         map[string]store.Board
	channels       map[string]store.Channel
	messages       map[string]store.Message
	replies        map[string][]store.MessageReply
	articles       map[string]store.Article
	comms          map[string]store.Communication
	commMessages   map[string][]store.CommunicationMessage
	attachments    []store.Attachment
	refresh        map[string]string
	revoked        map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		users:          map[string]store.User{},
		orgs:           map[string]store.Organization{},
		tickets:        map[string]store.Ticket{},
		ticketHistory:  map[string][]store.TicketHistory{},
		ticketComments: map[string][]store.TicketComment{},
		sprints:        map[string]store.Sprint{},
		tasks:          map[string]store.Task{},
		taskHistory:    map[string][]store.TaskHistory{},
		taskComments:   map[string][]store.TaskComment{},
		boards:         map[string]store.Board{},
		channels:       map[string]store.Channel{},
		messages:       map[string]store.Message{},
		replies:        map[string][]store.MessageReply{},
		articles:       map[string]store.Article{},
		comms:          map[string]store.Communication{},
		commMessages:   map[string][]store.CommunicationMessage{},
		refresh:        map[string]string{},
		revoked:        map[string]bool{},
	}
}

// tick returns a strictly increasing timestamp so ordering is stable.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) nextID() int64 {
	f.seq++
	return f.seq
}

func (f *fakeStore) withOrgName(user store.User) store.User {
	if user.OrganizationID != nil {
		user.OrganizationName = f.orgs[*user.OrganizationID].Name
	}
	return user
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

// Sessions

func (f *fakeStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = userID
	return nil
}

func (f *fakeStore) LookupRefreshSession(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refresh[tokenHash]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

// Users and organizations

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return f.withOrgName(user), nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			return f.withOrgName(user), nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.CreatedAt = f.tick()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return f.withOrgName(user), nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, passwordHash string, mustChange bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.MustChangePassword = mustChange
	f.users[userID] = user
	return nil
}

func (f *fakeStore) SetTwoFactorSecret(_ context.Context, userID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.TwoFactorSecret = secret
	f.users[userID] = user
	return nil
}

func (f *fakeStore) EnableTwoFactor(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.TwoFactorEnabled = true
	f.users[userID] = user
	return nil
}

func (f *fakeStore) AssignUserOrganization(_ context.Context, userID, orgID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	org := orgID
	user.OrganizationID = &org
	user.Role = role
	f.users[userID] = user
	return nil
}

func (f *fakeStore) BindEmployee(_ context.Context, userID, orgID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok || user.OrganizationID != nil {
		return sql.ErrNoRows
	}
	org := orgID
	user.OrganizationID = &org
	user.Role = "employee"
	f.users[userID] = user
	return nil
}

func (f *fakeStore) orgUsers(orgID string, match func(store.User) bool) []store.User {
	items := make([]store.User, 0)
	for _, user := range f.users {
		if user.OrgID() == orgID && match(user) {
			items = append(items, f.withOrgName(user))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

func (f *fakeStore) ListOrganizationUsers(_ context.Context, orgID, role string) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orgUsers(orgID, func(user store.User) bool { return role == "" || user.Role == role }), nil
}

func (f *fakeStore) SearchOrganizationUsers(_ context.Context, orgID, query string) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	query = strings.ToLower(query)
	return f.orgUsers(orgID, func(user store.User) bool {
		return strings.Contains(strings.ToLower(user.Name), query) || strings.Contains(strings.ToLower(user.Email), query)
	}), nil
}

func (f *fakeStore) GetOrganization(_ context.Context, orgID string) (store.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[orgID]
	if !ok {
		return store.Organization{}, sql.ErrNoRows
	}
	return org, nil
}

func (f *fakeStore) GetOrganizationByName(_ context.Context, name string) (store.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, org := range f.orgs {
		if strings.EqualFold(org.Name, name) {
			return org, nil
		}
	}
	return store.Organization{}, sql.ErrNoRows
}

func (f *fakeStore) OrganizationTaken(_ context.Context, name, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, org := range f.orgs {
		if strings.EqualFold(org.Name, name) || strings.EqualFold(org.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateOrganization(_ context.Context, org store.Organization, adminID string) (store.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	admin := adminID
	org.AdminID = &admin
	org.CreatedAt = f.tick()
	f.orgs[org.ID] = org
	if user, ok := f.users[adminID]; ok {
		id := org.ID
		user.OrganizationID = &id
		user.Role = "admin"
		f.users[adminID] = user
	}
	return org, nil
}

func (f *fakeStore) RenameOrganization(_ context.Context, orgID, name string) (store.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[orgID]
	if !ok {
		return store.Organization{}, sql.ErrNoRows
	}
	org.Name = name
	f.orgs[orgID] = org
	return org, nil
}

// Tickets

func (f *fakeStore) ListTickets(_ context.Context, orgID string, filter store.TicketFilter) ([]store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Ticket, 0)
	for _, ticket := range f.tickets {
		if ticket.OrganizationID != orgID {
			continue
		}
		if filter.Status != "" && ticket.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && ticket.Priority != filter.Priority {
			continue
		}
		if filter.Type != "" && ticket.Type != filter.Type {
			continue
		}
		if filter.Assignee != "" && (ticket.AssigneeID == nil || *ticket.AssigneeID != filter.Assignee) {
			continue
		}
		if filter.Sprint != "" && (ticket.SprintID == nil || *ticket.SprintID != filter.Sprint) {
			continue
		}
		if filter.Client != "" && (ticket.Client == nil || !containsFold(ticket.Client.Name, filter.Client)) {
			continue
		}
		if filter.Search != "" && !ticketMatches(ticket, filter.Search) {
			continue
		}
		items = append(items, ticket)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if rank, ok := fakeTicketRanks[filter.SortBy]; ok {
		desc := strings.EqualFold(filter.SortOrder, "desc")
		sort.SliceStable(items, func(i, j int) bool {
			a, aok := rank(items[i])
			b, bok := rank(items[j])
			if aok != bok {
				return aok
			}
			if desc {
				return a > b
			}
			return a < b
		})
	}
	return items, nil
}

// fakeTicketRanks mirrors the ORDER BY columns of the Postgres store; a false
// second value sorts last in either direction.
var fakeTicketRanks = map[string]func(store.Ticket) (float64, bool){
	"priority": func(t store.Ticket) (float64, bool) {
		return float64(slices.Index(tracker.Priorities, t.Priority)), true
	},
	"status": func(t store.Ticket) (float64, bool) {
		return float64(slices.Index(tracker.TicketStatuses, t.Status)), true
	},
	"storyPoints": func(t store.Ticket) (float64, bool) {
		if t.StoryPoints == nil {
			return 0, false
		}
		return float64(*t.StoryPoints), true
	},
	"dueDate": func(t store.Ticket) (float64, bool) {
		if t.DueDate == nil {
			return 0, false
		}
		return float64(t.DueDate.Unix()), true
	},
	"createdAt": func(t store.Ticket) (float64, bool) { return float64(t.CreatedAt.UnixNano()), true },
}

func containsFold(value, part string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(part))
}

func ticketMatches(ticket store.Ticket, query string) bool {
	fields := []string{ticket.Title, ticket.Description, ticket.Key}
	if ticket.Client != nil {
		fields = append(fields, ticket.Client.Name, ticket.Client.Email)
	}
	for _, field := range fields {
		if containsFold(field, query) {
			return true
		}
	}
	return false
}

func (f *fakeStore) GetTicket(_ context.Context, orgID, ticketID string) (store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.OrganizationID != orgID {
		return store.Ticket{}, sql.ErrNoRows
	}
	return ticket, nil
}

func (f *fakeStore) GetTicketByKey(_ context.Context, orgID, key string) (store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticket := range f.tickets {
		if ticket.Key == key && ticket.OrganizationID == orgID {
			return ticket, nil
		}
	}
	return store.Ticket{}, sql.ErrNoRows
}

func (f *fakeStore) TicketKeyExists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticket := range f.tickets {
		if ticket.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListSprintTickets(_ context.Context, sprintID string) ([]store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Ticket, 0)
	for _, ticket := range f.tickets {
		if ticket.SprintID != nil && *ticket.SprintID == sprintID {
			items = append(items, ticket)
		}
	}
	return items, nil
}

func (f *fakeStore) appendTicketHistory(ticketID string, history []store.TicketHistory) {
	for _, entry := range history {
		entry.ID = f.nextID()
		entry.TicketID = ticketID
		entry.ChangedAt = f.tick()
		f.ticketHistory[ticketID] = append(f.ticketHistory[ticketID], entry)
	}
}

func (f *fakeStore) CreateTicket(ctx context.Context, item store.Ticket, history []store.TicketHistory) (store.Ticket, error) {
	if f.createTicketFn != nil {
		return f.createTicketFn(ctx, item, history)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = f.tick()
	item.UpdatedAt = item.CreatedAt
	f.tickets[item.ID] = item
	f.appendTicketHistory(item.ID, history)
	return item, nil
}

func (f *fakeStore) UpdateTicket(_ context.Context, item store.Ticket, history []store.TicketHistory) (store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tickets[item.ID]; !ok {
		return store.Ticket{}, sql.ErrNoRows
	}
	item.UpdatedAt = f.tick()
	f.tickets[item.ID] = item
	f.appendTicketHistory(item.ID, history)
	return item, nil
}

func (f *fakeStore) ListTicketHistory(_ context.Context, ticketID string) ([]store.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ticketHistory[ticketID]), nil
}

func (f *fakeStore) InsertTicketComment(_ context.Context, comment store.TicketComment) (store.TicketComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment.CreatedAt = f.tick()
	f.ticketComments[comment.TicketID] = append(f.ticketComments[comment.TicketID], comment)
	return comment, nil
}

func (f *fakeStore) ListTicketComments(_ context.Context, ticketID string) ([]store.TicketComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ticketComments[ticketID]), nil
}

func (f *fakeStore) DeleteTicket(_ context.Context, orgID, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.OrganizationID != orgID {
		return sql.ErrNoRows
	}
	delete(f.tickets, ticketID)
	delete(f.ticketHistory, ticketID)
	delete(f.ticketComments, ticketID)
	f.dropAttachments(store.OwnerTicket, ticketID)
	return nil
}

// Sprints

func (f *fakeStore) ListSprints(_ context.Context, orgID string) ([]store.Sprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Sprint, 0)
	for _, sprint := range f.sprints {
		if sprint.OrganizationID == orgID {
			items = append(items, sprint)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartDate.After(items[j].StartDate) })
	return items, nil
}

func (f *fakeStore) GetSprint(_ context.Context, orgID, sprintID string) (store.Sprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sprint, ok := f.sprints[sprintID]
	if !ok || sprint.OrganizationID != orgID {
		return store.Sprint{}, sql.ErrNoRows
	}
	return sprint, nil
}

func (f *fakeStore) GetActiveSprint(_ context.Context, orgID string) (store.Sprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sprint := range f.sprints {
		if sprint.OrganizationID == orgID && sprint.Status == "active" {
			return sprint, nil
		}
	}
	return store.Sprint{}, sql.ErrNoRows
}

func (f *fakeStore) CreateSprint(_ context.Context, item store.Sprint) (store.Sprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = f.tick()
	item.UpdatedAt = item.CreatedAt
	f.sprints[item.ID] = item
	return item, nil
}

func (f *fakeStore) UpdateSprint(_ context.Context, item store.Sprint, moveUnfinished bool, changedBy string) (store.Sprint, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved []string
	if moveUnfinished {
		moved = f.backlogSprintTickets(item.ID, false, changedBy)
	}
	velocity := 0
	for _, ticket := range f.tickets {
		if ticket.SprintID != nil && *ticket.SprintID == item.ID && ticket.StoryPoints != nil {
			velocity += *ticket.StoryPoints
		}
	}
	item.Velocity = velocity
	item.UpdatedAt = f.tick()
	f.sprints[item.ID] = item
	return item, moved, nil
}

func (f *fakeStore) DeleteSprint(_ context.Context, orgID, sprintID, changedBy string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sprint, ok := f.sprints[sprintID]; !ok || sprint.OrganizationID != orgID {
		return nil, sql.ErrNoRows
	}
	detached := f.backlogSprintTickets(sprintID, true, changedBy)
	delete(f.sprints, sprintID)
	return detached, nil
}

func (f *fakeStore) backlogSprintTickets(sprintID string, detach bool, changedBy string) []string {
	var ids []string
	for id, ticket := range f.tickets {
		if ticket.SprintID == nil || *ticket.SprintID != sprintID || (!detach && ticket.Status == tracker.TicketDone) {
			continue
		}
		var history []store.TicketHistory
		if ticket.Status != tracker.DefaultTicketStatus {
			history = append(history, store.TicketHistory{Field: "status", OldValue: ticket.Status, NewValue: tracker.DefaultTicketStatus, ChangedBy: changedBy})
		}
		if detach {
			history = append(history, store.TicketHistory{Field: "sprint", OldValue: sprintID, NewValue: nil, ChangedBy: changedBy})
			ticket.SprintID = nil
		}
		ticket.Status = tracker.DefaultTicketStatus
		f.tickets[id] = ticket
		f.appendTicketHistory(id, history)
		ids = append(ids, id)
	}
	return ids
}

// Tasks

func (f *fakeStore) ListTasks(_ context.Context, orgID string, filter store.TaskFilter) ([]store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Task, 0)
	for _, task := range f.tasks {
		if task.OrganizationID != orgID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Tag != "" && !slices.Contains(task.Tags, filter.Tag) {
			continue
		}
		items = append(items, task)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) GetTask(_ context.Context, orgID, taskID string) (store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.OrganizationID != orgID {
		return store.Task{}, sql.ErrNoRows
	}
	return task, nil
}

func (f *fakeStore) CreateTask(_ context.Context, item store.Task) (store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = f.tick()
	item.UpdatedAt = item.CreatedAt
	f.tasks[item.ID] = item
	return item, nil
}

func (f *fakeStore) UpdateTask(_ context.Context, item store.Task, history []store.TaskHistory) (store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.UpdatedAt = f.tick()
	f.tasks[item.ID] = item
	for _, entry := range history {
		entry.ID = f.nextID()
		entry.TaskID = item.ID
		entry.CreatedAt = f.tick()
		f.taskHistory[item.ID] = append(f.taskHistory[item.ID], entry)
	}
	return item, nil
}

func (f *fakeStore) InsertTaskHistory(_ context.Context, entry store.TaskHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = f.nextID()
	entry.CreatedAt = f.tick()
	f.taskHistory[entry.TaskID] = append(f.taskHistory[entry.TaskID], entry)
	return nil
}

func (f *fakeStore) ListTaskHistory(_ context.Context, taskID string) ([]store.TaskHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.taskHistory[taskID]), nil
}

func (f *fakeStore) InsertTaskComment(_ context.Context, comment store.TaskComment) (store.TaskComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment.CreatedAt = f.tick()
	f.taskComments[comment.TaskID] = append(f.taskComments[comment.TaskID], comment)
	return comment, nil
}

func (f *fakeStore) ListTaskComments(_ context.Context, taskID string) ([]store.TaskComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.taskComments[taskID]), nil
}

func (f *fakeStore) DeleteTask(_ context.Context, orgID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.OrganizationID != orgID {
		return sql.ErrNoRows
	}
	for _, comment := range f.taskComments[taskID] {
		f.dropAttachments(store.OwnerTaskComment, comment.ID)
	}
	f.dropAttachments(store.OwnerTask, taskID)
	delete(f.tasks, taskID)
	delete(f.taskComments, taskID)
	delete(f.taskHistory, taskID)
	return nil
}

// Boards

func (f *fakeStore) ListBoards(_ context.Context, orgID string) ([]store.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Board, 0)
	for _, board := range f.boards {
		if board.OrganizationID == orgID {
			items = append(items, board)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) GetBoard(_ context.Context, orgID, boardID string) (store.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	board, ok := f.boards[boardID]
	if !ok || board.OrganizationID != orgID {
		return store.Board{}, sql.ErrNoRows
	}
	return board, nil
}

func (f *fakeStore) CreateBoard(_ context.Context, item store.Board) (store.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = f.tick()
	item.UpdatedAt = item.CreatedAt
	f.boards[item.ID] = item
	return item, nil
}

func (f *fakeStore) UpdateBoard(_ context.Context, item store.Board) (store.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.UpdatedAt = f.tick()
	f.boards[item.ID] = item
	return item, nil
}

func (f *fakeStore) DeleteBoard(_ context.Context, orgID, boardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.boards, boardID)
	return nil
}

// Messenger

func (f *fakeStore) ListChannels(_ context.Context, orgID string) ([]store.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Channel, 0)
	for _, channel := range f.channels {
		if channel.OrganizationID == orgID {
			items = append(items, channel)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) GetChannel(_ context.Context, orgID, channelID string) (store.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel, ok := f.channels[channelID]
	if !ok || channel.OrganizationID != orgID {
		return store.Channel{}, sql.ErrNoRows
	}
	return channel, nil
}

func (f *fakeStore) FindDirectChannel(_ context.Context, orgID, userA, userB string) (store.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, channel := range f.channels {
		if channel.OrganizationID == orgID && channel.Type == "dm" &&
			slices.Contains(channel.Participants, userA) && slices.Contains(channel.Participants, userB) {
			return channel, nil
		}
	}
	return store.Channel{}, sql.ErrNoRows
}

func (f *fakeStore) CreateChannel(_ context.Context, item store.Channel) (store.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = f.tick()
	f.channels[item.ID] = item
	return item, nil
}

func (f *fakeStore) ListMessages(_ context.Context, channelID string) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Message, 0)
	for _, message := range f.messages {
		if message.ChannelID == channelID {
			message.Replies = slices.Clone(f.replies[message.ID])
			items = append(items, message)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) GetMessage(_ context.Context, orgID, messageID string) (store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[messageID]
	if !ok || f.channels[message.ChannelID].OrganizationID != orgID {
		return store.Message{}, sql.ErrNoRows
	}
	return message, nil
}

func (f *fakeStore) InsertMessage(_ context.Context, item store.Message) (store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = f.tick()
	f.messages[item.ID] = item
	return item, nil
}

func (f *fakeStore) ListReplies(_ context.Context, messageID string) ([]store.MessageReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.replies[messageID]), nil
}

func (f *fakeStore) InsertReply(_ context.Context, item store.MessageReply) (store.MessageReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = f.tick()
	f.replies[item.MessageID] = append(f.replies[item.MessageID], item)
	return item, nil
}

// Knowledge base

func (f *fakeStore) ListArticles(_ context.Context, orgID string) ([]store.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Article, 0)
	for _, article := range f.articles {
		if article.OrganizationID == orgID {
			items = append(items, article)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return items, nil
}

func (f *fakeStore) GetArticle(_ context.Context, orgID, articleID string) (store.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	article, ok := f.articles[articleID]
	if !ok || article.OrganizationID != orgID {
		return store.Article{}, sql.ErrNoRows
	}
	return article, nil
}

func (f *fakeStore) CreateArticle(_ context.Context, item store.Article) (store.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = f.tick()
	item.UpdatedAt = item.CreatedAt
	f.articles[item.ID] = item
	return item, nil
}

func (f *fakeStore) UpdateArticle(_ context.Context, item store.Article) (store.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.UpdatedAt = f.tick()
	f.articles[item.ID] = item
	return item, nil
}

func (f *fakeStore) DeleteArticle(_ context.Context, orgID, articleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.articles, articleID)
	return nil
}

// Communications

func (f *fakeStore) ListCommunications(_ context.Context, orgID string) ([]store.Communication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Communication, 0)
	for _, item := range f.comms {
		if item.OrganizationID == orgID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) GetCommunication(_ context.Context, orgID, communicationID string) (store.Communication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.comms[communicationID]
	if !ok || item.OrganizationID != orgID {
		return store.Communication{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) CreateCommunication(_ context.Context, item store.Communication, first store.CommunicationMessage) (store.Communication, store.CommunicationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = f.tick()
	item.UpdatedAt = item.CreatedAt
	f.comms[item.ID] = item
	first.CommunicationID = item.ID
	first.CreatedAt = f.tick()
	f.commMessages[item.ID] = append(f.commMessages[item.ID], first)
	return item, first, nil
}

func (f *fakeStore) AppendCommunicationMessage(_ context.Context, message store.CommunicationMessage, status string) (store.CommunicationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.comms[message.CommunicationID]
	if !ok {
		return store.CommunicationMessage{}, sql.ErrNoRows
	}
	message.CreatedAt = f.tick()
	f.commMessages[item.ID] = append(f.commMessages[item.ID], message)
	if status != "" {
		item.Status = status
	}
	item.UpdatedAt = message.CreatedAt
	f.comms[item.ID] = item
	return message, nil
}

func (f *fakeStore) ListCommunicationMessages(_ context.Context, communicationID string) ([]store.CommunicationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.commMessages[communicationID]), nil
}

func (f *fakeStore) SetCommunicationStatus(_ context.Context, orgID, communicationID, status string) (store.Communication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.comms[communicationID]
	if !ok || item.OrganizationID != orgID {
		return store.Communication{}, sql.ErrNoRows
	}
	item.Status = status
	item.UpdatedAt = f.tick()
	f.comms[communicationID] = item
	return item, nil
}

func (f *fakeStore) DeleteCommunication(_ context.Context, orgID, communicationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.comms[communicationID]
	if !ok || item.OrganizationID != orgID {
		return sql.ErrNoRows
	}
	f.dropAttachments(store.OwnerCommunication, communicationID)
	delete(f.comms, communicationID)
	delete(f.commMessages, communicationID)
	return nil
}

// Attachments

func (f *fakeStore) InsertAttachments(_ context.Context, items []store.Attachment) ([]store.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	saved := make([]store.Attachment, 0, len(items))
	for _, item := range items {
		item.CreatedAt = f.tick()
		f.attachments = append(f.attachments, item)
		saved = append(saved, item)
	}
	return saved, nil
}

func (f *fakeStore) ListAttachments(_ context.Context, ownerType string, ownerIDs ...string) ([]store.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Attachment, 0)
	for _, item := range f.attachments {
		if item.OwnerType == ownerType && slices.Contains(ownerIDs, item.OwnerID) {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeStore) GetAttachmentByFilename(_ context.Context, filename string) (store.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.attachments {
		if item.Filename == filename {
			return item, nil
		}
	}
	return store.Attachment{}, sql.ErrNoRows
}

func (f *fakeStore) dropAttachments(ownerType, ownerID string) {
	f.attachments = slices.DeleteFunc(f.attachments, func(item store.Attachment) bool {
		return item.OwnerType == ownerType && item.OwnerID == ownerID
	})
}
