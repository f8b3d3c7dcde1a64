package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"letterflow/internal/authpw"
	"letterflow/internal/config"
	"letterflow/internal/export"
	"letterflow/internal/gitrepo"
	"letterflow/internal/lifecycle"
	"letterflow/internal/rbac"
	"letterflow/internal/search"
	"letterflow/internal/session"
	"letterflow/internal/store"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         lifecycle.Role
	JTI          string
	ExpiresAt    time.Time
}

func (s Session) Actor() lifecycle.Actor {
	return lifecycle.Actor{ID: s.UserID, Role: s.Role}
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByUsername(context.Context, string) (store.User, error)
	CreateUser(context.Context, store.User) error
	UpdateUserPassword(context.Context, string, string) error
	CountUsers(context.Context) (int, error)
	ListDecisionTypes(context.Context) ([]store.DecisionType, error)
	GetDecisionType(context.Context, string) (store.DecisionType, error)
	InsertDecisionType(context.Context, store.DecisionType) error
	UpdateDecisionType(context.Context, store.DecisionType) error
	DeleteDecisionType(context.Context, string) error
	GetLetter(context.Context, string) (store.Letter, error)
	InsertLetter(context.Context, store.Letter) error
	ListLetters(context.Context, store.LetterFilter) ([]store.Letter, int, error)
	UpdateLetterContent(context.Context, string, string, string, string, string) error
	SetArtifactRef(context.Context, string, string) error
	TransitionStatus(context.Context, store.Transition) error
	ListTransitions(context.Context, string) ([]store.Transition, error)
	Ping(context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(context.Context, string, session.Record, time.Time) error
	ConsumeRefreshSession(context.Context, string) (session.Record, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
}

type gitService interface {
	EnsureLetterRepo(string, gitrepo.Content, string) error
	CommitContent(string, gitrepo.Content, string, string) (store.CommitInfo, error)
	History(string, int) ([]store.CommitInfo, error)
	TagHead(string, string, string) error
}

type renderer interface {
	Render(context.Context, export.Document) (*export.Result, error)
}

type artifactStore interface {
	Put(context.Context, string, []byte, string) error
	Exists(context.Context, string) (bool, error)
	PresignedURL(context.Context, string, string) (string, error)
}

type searchService interface {
	Search(context.Context, search.Query) search.Response
	IndexLetter(search.LetterRecord)
}

type notifier interface {
	IsConfigured() bool
	SendTransitionNotice(to, authorName string, letter lifecycle.Letter, letterURL string) error
}

// Deps are the collaborators a Service needs. Search and Mailer are optional.
type Deps struct {
	Store     *store.PostgresStore
	Sessions  *session.RedisStore
	Git       *gitrepo.Service
	Renderer  *export.Service
	Artifacts artifactStore
	Search    *search.Service
	Mailer    notifier
	Logger    *zap.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	git       gitService
	passwords *authpw.Service
	renderer  renderer
	artifacts artifactStore
	search    searchService
	mailer    notifier
	logger    *zap.Logger
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		git:       deps.Git,
		passwords: authpw.NewService(deps.Store),
		renderer:  deps.Renderer,
		artifacts: deps.Artifacts,
		mailer:    deps.Mailer,
		logger:    logger,
	}
	if deps.Search != nil {
		svc.search = deps.Search
	}
	return svc
}

func (s *Service) Can(role lifecycle.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
