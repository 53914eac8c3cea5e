package app

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/auth"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/authpw"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/config"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/email"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/export"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/gitrepo"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/rbac"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/search"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/session"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

type Session struct {
	Token              string
	RefreshToken       string
	UserID             string
	UserName           string
	Email              string
	Role               string
	OrgID              string
	OrgName            string
	MustChangePassword bool
	JTI                string
	ExpiresAt          time.Time
}

// HasOrganization reports whether the caller is bound to a tenant.
func (s Session) HasOrganization() bool {
	return s.OrgID != ""
}

type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string, mustChange bool) error
	SetTwoFactorSecret(ctx context.Context, userID, secret string) error
	EnableTwoFactor(ctx context.Context, userID string) error
	AssignUserOrganization(ctx context.Context, userID, orgID, role string) error
	BindEmployee(ctx context.Context, userID, orgID string) error
	ListOrganizationUsers(ctx context.Context, orgID, role string) ([]store.User, error)
	SearchOrganizationUsers(ctx context.Context, orgID, query string) ([]store.User, error)

	GetOrganization(ctx context.Context, orgID string) (store.Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (store.Organization, error)
	OrganizationTaken(ctx context.Context, name, email string) (bool, error)
	CreateOrganization(ctx context.Context, org store.Organization, adminID string) (store.Organization, error)
	RenameOrganization(ctx context.Context, orgID, name string) (store.Organization, error)

	ListTickets(ctx context.Context, orgID string, filter store.TicketFilter) ([]store.Ticket, error)
	GetTicket(ctx context.Context, orgID, ticketID string) (store.Ticket, error)
	GetTicketByKey(ctx context.Context, orgID, key string) (store.Ticket, error)
	TicketKeyExists(ctx context.Context, key string) (bool, error)
	ListSprintTickets(ctx context.Context, sprintID string) ([]store.Ticket, error)
	CreateTicket(ctx context.Context, item store.Ticket, history []store.TicketHistory) (store.Ticket, error)
	UpdateTicket(ctx context.Context, item store.Ticket, history []store.TicketHistory) (store.Ticket, error)
	ListTicketHistory(ctx context.Context, ticketID string) ([]store.TicketHistory, error)
	InsertTicketComment(ctx context.Context, comment store.TicketComment) (store.TicketComment, error)
	ListTicketComments(ctx context.Context, ticketID string) ([]store.TicketComment, error)
	DeleteTicket(ctx context.Context, orgID, ticketID string) error

	ListSprints(ctx context.Context, orgID string) ([]store.Sprint, error)
	GetSprint(ctx context.Context, orgID, sprintID string) (store.Sprint, error)
	GetActiveSprint(ctx context.Context, orgID string) (store.Sprint, error)
	CreateSprint(ctx context.Context, item store.Sprint) (store.Sprint, error)
	UpdateSprint(ctx context.Context, item store.Sprint, moveUnfinished bool, changedBy string) (store.Sprint, []string, error)
	DeleteSprint(ctx context.Context, orgID, sprintID, changedBy string) ([]string, error)

	ListTasks(ctx context.Context, orgID string, filter store.TaskFilter) ([]store.Task, error)
	GetTask(ctx context.Context, orgID, taskID string) (store.Task, error)
	CreateTask(ctx context.Context, item store.Task) (store.Task, error)
	UpdateTask(ctx context.Context, item store.Task, history []store.TaskHistory) (store.Task, error)
	InsertTaskHistory(ctx context.Context, entry store.TaskHistory) error
	ListTaskHistory(ctx context.Context, taskID string) ([]store.TaskHistory, error)
	InsertTaskComment(ctx context.Context, comment store.TaskComment) (store.TaskComment, error)
	ListTaskComments(ctx context.Context, taskID string) ([]store.TaskComment, error)
	DeleteTask(ctx context.Context, orgID, taskID string) error

	ListBoards(ctx context.Context, orgID string) ([]store.Board, error)
	GetBoard(ctx context.Context, orgID, boardID string) (store.Board, error)
	CreateBoard(ctx context.Context, item store.Board) (store.Board, error)
	UpdateBoard(ctx context.Context, item store.Board) (store.Board, error)
	DeleteBoard(ctx context.Context, orgID, boardID string) error

	ListChannels(ctx context.Context, orgID string) ([]store.Channel, error)
	GetChannel(ctx context.Context, orgID, channelID string) (store.Channel, error)
	FindDirectChannel(ctx context.Context, orgID, userA, userB string) (store.Channel, error)
	CreateChannel(ctx context.Context, item store.Channel) (store.Channel, error)
	ListMessages(ctx context.Context, channelID string) ([]store.Message, error)
	GetMessage(ctx context.Context, orgID, messageID string) (store.Message, error)
	InsertMessage(ctx context.Context, item store.Message) (store.Message, error)
	ListReplies(ctx context.Context, messageID string) ([]store.MessageReply, error)
	InsertReply(ctx context.Context, item store.MessageReply) (store.MessageReply, error)

	ListArticles(ctx context.Context, orgID string) ([]store.Article, error)
	GetArticle(ctx context.Context, orgID, articleID string) (store.Article, error)
	CreateArticle(ctx context.Context, item store.Article) (store.Article, error)
	UpdateArticle(ctx context.Context, item store.Article) (store.Article, error)
	DeleteArticle(ctx context.Context, orgID, articleID string) error

	ListCommunications(ctx context.Context, orgID string) ([]store.Communication, error)
	GetCommunication(ctx context.Context, orgID, communicationID string) (store.Communication, error)
	CreateCommunication(ctx context.Context, item store.Communication, first store.CommunicationMessage) (store.Communication, store.CommunicationMessage, error)
	AppendCommunicationMessage(ctx context.Context, message store.CommunicationMessage, status string) (store.CommunicationMessage, error)
	ListCommunicationMessages(ctx context.Context, communicationID string) ([]store.CommunicationMessage, error)
	SetCommunicationStatus(ctx context.Context, orgID, communicationID, status string) (store.Communication, error)
	DeleteCommunication(ctx context.Context, orgID, communicationID string) error

	InsertAttachments(ctx context.Context, items []store.Attachment) ([]store.Attachment, error)
	ListAttachments(ctx context.Context, ownerType string, ownerIDs ...string) ([]store.Attachment, error)
	GetAttachmentByFilename(ctx context.Context, filename string) (store.Attachment, error)
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexTicket(item search.TicketRecord)
	IndexArticle(item search.ArticleRecord)
	IndexCommunication(item search.CommunicationRecord)
	DeleteTicket(id string)
	DeleteArticle(id string)
	DeleteCommunication(id string)
}

type articleHistory interface {
	Commit(articleID string, rev gitrepo.Revision, author, message string) (gitrepo.Commit, error)
	History(articleID string, limit int) ([]gitrepo.Commit, error)
	RevisionAt(articleID, hash string) (gitrepo.Revision, gitrepo.Commit, error)
	Remove(articleID string) error
}

type exporter interface {
	Ticket(ctx context.Context, t export.Ticket, format export.Format) (*export.Result, error)
	Article(ctx context.Context, a export.Article, format export.Format) (*export.Result, error)
}

type mailer interface {
	IsConfigured() bool
	Send(ctx context.Context, msg email.Message) (string, error)
	SendEmployeeCredentials(ctx context.Context, data email.CredentialsData) error
}

// Deps are the collaborators built by the command that starts the service.
// Nil fields get an inert default.
type Deps struct {
	Store    *store.PostgresStore
	Sessions session.Store
	Search   *search.Service
	History  *gitrepo.Service
	Export   *export.Service
	Objects  blob.Store
	Mailer   *email.Service
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  session.Store
	passwords *authpw.Service
	search    searchIndex
	history   articleHistory
	exporter  exporter
	objects   blob.Store
	files     *blob.Attacher
	mailer    mailer
	logger    *zap.Logger
	now       func() time.Time
}

func New(cfg config.Config, deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		passwords: authpw.NewService(deps.Store, cfg.TOTPIssuer),
		objects:   deps.Objects,
		logger:    logger.Named("app"),
		now:       time.Now,
	}
	if svc.sessions == nil {
		svc.sessions = deps.Store
	}
	if deps.Search != nil {
		svc.search = deps.Search
	} else {
		svc.search = search.NewService(nil, nil, logger)
	}
	if deps.History != nil {
		svc.history = deps.History
	} else {
		svc.history = gitrepo.New(cfg.KnowledgeDir)
	}
	if deps.Export != nil {
		svc.exporter = deps.Export
	} else {
		svc.exporter = export.NewService()
	}
	if deps.Mailer != nil {
		svc.mailer = deps.Mailer
	} else {
		svc.mailer = email.NewService(email.Config{})
	}
	svc.files = blob.NewAttacher(svc.objects, deps.Store)
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ActingAs returns a token-less session for the user. The seed command uses
// it to create records through the same code paths as the API.
func (s *Service) ActingAs(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:   user.ID,
		UserName: user.Name,
		Email:    user.Email,
		Role:     user.Role,
		OrgID:    user.OrgID(),
		OrgName:  user.OrganizationName,
	}, nil
}

// Passwords exposes the credential service to the admin commands.
func (s *Service) Passwords() *authpw.Service {
	return s.passwords
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewToken("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:     user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Role:    user.Role,
		OrgID:   user.OrgID(),
		OrgName: user.OrganizationName,
		JTI:     jti,
		Exp:     expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken("rft") + util.NewToken("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:              token,
		RefreshToken:       refresh,
		UserID:             user.ID,
		UserName:           user.Name,
		Email:              user.Email,
		Role:               user.Role,
		OrgID:              user.OrgID(),
		OrgName:            user.OrganizationName,
		MustChangePassword: user.MustChangePassword,
		JTI:                jti,
		ExpiresAt:          expiresAt,
	}, nil
}

// SessionFromToken validates an access token and reloads the user so role,
// organization and the password-change flag are current.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if isNotFound(err) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:              token,
		UserID:             user.ID,
		UserName:           user.Name,
		Email:              user.Email,
		Role:               user.Role,
		OrgID:              user.OrgID(),
		OrgName:            user.OrganizationName,
		MustChangePassword: user.MustChangePassword,
		JTI:                claims.JTI,
		ExpiresAt:          time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		if isNotFound(err) {
			return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		}
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			s.logger.Warn("revoke access token failed", zap.String("user_id", session.UserID), zap.Error(err))
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.Warn("revoke refresh session failed", zap.String("user_id", session.UserID), zap.Error(err))
		}
	}
	return nil
}

// OpenUpload streams a stored attachment by key.
func (s *Service) OpenUpload(ctx context.Context, key string) (io.ReadCloser, blob.ObjectInfo, error) {
	if !blob.ValidKey(key) || s.objects == nil {
		return nil, blob.ObjectInfo{}, errNotFound()
	}
	body, info, err := s.objects.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, blob.ObjectInfo{}, errNotFound()
		}
		return nil, blob.ObjectInfo{}, err
	}
	return body, info, nil
}

// actorName is the display name recorded on history entries and messages.
func actorName(session Session, fallback string) string {
	if name := strings.TrimSpace(session.UserName); name != "" {
		return name
	}
	return fallback
}

// parseRFC3339 tolerates the millisecond form produced by browsers
// (2026-03-12T16:10:00.000Z) and plain dates.
func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		t, err = time.Parse(time.DateOnly, s)
	}
	return t, err
}
