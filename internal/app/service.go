package app

import (
	"context"
	"log"
	"time"

	"parish/api/internal/auth"
	"parish/api/internal/authpw"
	"parish/api/internal/config"
	"parish/api/internal/rbac"
	"parish/api/internal/search"
	"parish/api/internal/store"
	"parish/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
	// Request metadata, filled by the HTTP layer for the audit trail.
	IP        string
	UserAgent string
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	CreateUser(context.Context, store.User) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	GetPost(context.Context, string) (store.Post, error)
	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	ListCommentsByPost(context.Context, string) ([]store.Comment, error)
	MarkCommentAnswered(context.Context, string, string) (bool, error)
	ReopenCommentQuestion(context.Context, string) (bool, error)
	CloseCommentQuestion(context.Context, string) (bool, error)
	SoftDeleteComment(context.Context, string, string) (bool, error)
	RestoreComment(context.Context, string) (bool, error)
	SetCommentFlag(context.Context, string, bool, string) (bool, error)
	SetCommentDeletedByThreadKey(context.Context, string, bool, *string) (int64, error)
	FindCommentByThreadKey(context.Context, string) (store.Comment, error)
	FindCommentByCorrelation(context.Context, string, string, string, bool) (store.Comment, error)
	InsertInteraction(context.Context, store.Interaction) error
	GetInteraction(context.Context, string) (store.Interaction, error)
	ListInteractions(context.Context, store.InteractionFilter) ([]store.Interaction, error)
	FindInteractionByThreadKey(context.Context, string) (*store.Interaction, error)
	FindInteractionByCorrelation(context.Context, string, string, string, bool) (*store.Interaction, error)
	MarkInteractionAnswered(context.Context, string, string) (bool, error)
	ReopenInteraction(context.Context, string) (bool, error)
	CloseInteraction(context.Context, string) (bool, error)
	FlagInteraction(context.Context, string, string, string) (bool, error)
	ClearInteractionFlag(context.Context, string) (bool, error)
	MarkInteractionReviewed(context.Context, string) (bool, error)
	SetInteractionHidden(context.Context, string, bool) (bool, error)
	SoftDeleteInteraction(context.Context, string) (bool, error)
	InteractionStats(context.Context, string) (store.InteractionStats, error)
	ToggleReaction(context.Context, string, string, string, string, string) (string, error)
	ListReactionCounts(context.Context, string) ([]store.ReactionCount, error)
	GetUserReaction(context.Context, string, string) (*store.Reaction, error)
	InsertAuditEvent(context.Context, store.AuditEvent) error
	ListAuditEvents(context.Context, int) ([]store.AuditEvent, error)
	Ping(ctx context.Context) error
}

// sessionStore is the refresh-token backend: Redis in the default
// deployment, the Postgres refresh_sessions table when Redis is not
// configured.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	search   *search.Service
	auth     *authpw.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, searchSvc *search.Service, authSvc *authpw.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		search:   searchSvc,
		auth:     authSvc,
	}
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.auth
}

// CreateSession issues a token pair for a freshly authenticated user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token. The user record is re-read so role and
// account-state changes take effect at the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	looked, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, looked.ID)
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// recordAudit writes an audit event asynchronously. Failures are logged
// and never roll back the mutation being audited.
func (s *Service) recordAudit(session Session, actionType, description, entityType, entityID string) {
	event := store.AuditEvent{
		ActorName:   session.UserName,
		ActionType:  actionType,
		Description: description,
		EntityType:  entityType,
		EntityID:    entityID,
		IPAddress:   session.IP,
		UserAgent:   session.UserAgent,
	}
	if session.UserID != "" {
		actorID := session.UserID
		event.ActorID = &actorID
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.InsertAuditEvent(ctx, event); err != nil {
			log.Printf("audit: record %s: %v", actionType, err)
		}
	}()
}

func (s *Service) ListAuditEvents(ctx context.Context, limit int) ([]map[string]any, error) {
	events, err := s.store.ListAuditEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(events))
	for _, event := range events {
		payload = append(payload, map[string]any{
			"id":          event.ID,
			"actorId":     event.ActorID,
			"actorName":   event.ActorName,
			"actionType":  event.ActionType,
			"description": event.Description,
			"entityType":  event.EntityType,
			"entityId":    event.EntityID,
			"ipAddress":   event.IPAddress,
			"userAgent":   event.UserAgent,
			"createdAt":   event.CreatedAt,
		})
	}
	return payload, nil
}
