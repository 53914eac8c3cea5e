package store

import "time"

type Organization struct {
	ID        string
	Name      string
	Email     string
	AdminID   *string
	CreatedAt time.Time
}

type User struct {
	ID                 string
	Name               string
	Email              string
	PasswordHash       string
	Avatar             string
	Role               string
	OrganizationID     *string
	OrganizationName   string
	MustChangePassword bool
	TwoFactorEnabled   bool
	TwoFactorSecret    string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrgID returns the bound organization id or "".
func (u User) OrgID() string {
	if u.OrganizationID == nil {
		return ""
	}
	return *u.OrganizationID
}

type TicketClient struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

// IsEmpty reports whether no client field carries a value.
func (c TicketClient) IsEmpty() bool {
	return c.Name == "" && c.Email == "" && c.Phone == "" && c.Company == ""
}

type AutoAssignRule struct {
	Condition string `json:"condition"`
	Value     string `json:"value"`
	Assignee  string `json:"assignee"`
}

type AutoAssign struct {
	Enabled bool             `json:"enabled"`
	Rules   []AutoAssignRule `json:"rules"`
}

type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type TimeTracking struct {
	Estimated float64 `json:"estimated"`
	Remaining float64 `json:"remaining"`
	Spent     float64 `json:"spent"`
}

type Ticket struct {
	ID             string
	OrganizationID string
	Key            string
	Title          string
	Description    string
	Status         string
	Priority       string
	Type           string
	Reporter       string
	AssigneeID     *string
	Client         *TicketClient
	Labels         []string
	AutoAssign     AutoAssign
	CustomFields   []CustomField
	TimeTracking   *TimeTracking
	StoryPoints    *int
	DueDate        *time.Time
	SprintID       *string
	Dependencies   []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TicketComment struct {
	ID         string
	TicketID   string
	AuthorID   *string
	AuthorName string
	Text       string
	CreatedAt  time.Time
}

// TicketHistory values are JSON scalars (or null) as rendered by the tracker diff.
type TicketHistory struct {
	ID        int64
	TicketID  string
	Field     string
	OldValue  any
	NewValue  any
	ChangedBy string
	ChangedAt time.Time
}

// TicketFilter narrows ListTickets. Empty fields are ignored.
type TicketFilter struct {
	Status    string
	Priority  string
	Type      string
	Assignee  string
	Sprint    string
	Client    string
	Search    string
	SortBy    string
	SortOrder string
}

type Sprint struct {
	ID             string
	OrganizationID string
	Name           string
	Description    string
	StartDate      time.Time
	EndDate        time.Time
	Status         string
	Goals          []string
	Velocity       int
	CreatedBy      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Task struct {
	ID             string
	OrganizationID string
	Title          string
	Description    string
	Status         string
	Priority       string
	Author         string
	Assignee       string
	Tags           []string
	DueDate        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TaskFilter struct {
	Status   string
	Priority string
	Assignee string
	Author   string
	Tag      string
}

type TaskComment struct {
	ID          string
	TaskID      string
	Author      string
	Text        string
	Mentions    []string
	Attachments []Attachment
	CreatedAt   time.Time
}

type TaskHistory struct {
	ID        int64
	TaskID    string
	Action    string
	Author    string
	From      string
	To        string
	CreatedAt time.Time
}

type BoardColumn struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

type Sticker struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Order       int    `json:"order"`
}

type Board struct {
	ID             string
	OrganizationID string
	Name           string
	Columns        []BoardColumn
	Stickers       []Sticker
	OwnerID        *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Channel struct {
	ID             string
	OrganizationID string
	Name           string
	Type           string
	Participants   []string
	CreatedAt      time.Time
}

type Message struct {
	ID        string
	ChannelID string
	Author    string
	Avatar    string
	Text      string
	Time      string
	Replies   []MessageReply
	CreatedAt time.Time
}

type MessageReply struct {
	ID        string
	MessageID string
	Author    string
	Avatar    string
	Text      string
	Time      string
	CreatedAt time.Time
}

type Article struct {
	ID             string
	OrganizationID string
	Title          string
	Content        string
	AuthorID       *string
	AuthorName     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Communication struct {
	ID             string
	OrganizationID string
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	Subject        string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CommunicationMessage struct {
	ID              string
	CommunicationID string
	Author          string
	AuthorType      string
	Text            string
	EmailMessageID  string
	CreatedAt       time.Time
}

// Owner types for attachments.
const (
	OwnerTicket        = "ticket"
	OwnerTask          = "task"
	OwnerTaskComment   = "task_comment"
	OwnerCommunication = "communication"
	OwnerKnowledge     = "knowledge"
)

type Attachment struct {
	ID             string
	OrganizationID string
	OwnerType      string
	OwnerID        string
	Filename       string
	OriginalName   string
	ContentType    string
	Size           int64
	UploadedBy     string
	CreatedAt      time.Time
}
