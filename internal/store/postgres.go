package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, COALESCE(password_hash, ''), role, is_active, created_at, updated_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, COALESCE(password_hash, ''), role, is_active, created_at, updated_at
		FROM users
		WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	role := user.Role
	if role == "" {
		role = "MEMBER"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, LOWER($3), $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// ── Refresh sessions & token revocation ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role, u.is_active
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role, &user.IsActive)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ── Posts (read-side only) ──

func (s *PostgresStore) GetPost(ctx context.Context, postID string) (Post, error) {
	var item Post
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, author_id, is_published, is_deleted, comments_enabled, reactions_enabled, published_at, created_at
		FROM posts
		WHERE id=$1
	`, postID).Scan(
		&item.ID,
		&item.Title,
		&item.AuthorID,
		&item.IsPublished,
		&item.IsDeleted,
		&item.CommentsEnabled,
		&item.ReactionsEnabled,
		&item.PublishedAt,
		&item.CreatedAt,
	)
	if err != nil {
		return Post{}, err
	}
	return item, nil
}

// ── Comments ──

const commentColumns = `
	c.id, c.post_id, c.user_id, c.parent_id, COALESCE(c.thread_key, ''), c.content,
	c.is_question, c.question_status, c.answered_by, c.answered_at,
	c.is_deleted, c.deleted_at, c.deleted_by, c.is_flagged, COALESCE(c.flagged_reason, ''),
	c.created_at, c.updated_at, u.display_name
`

func scanComment(row interface{ Scan(...any) error }) (Comment, error) {
	var item Comment
	err := row.Scan(
		&item.ID,
		&item.PostID,
		&item.UserID,
		&item.ParentID,
		&item.ThreadKey,
		&item.Content,
		&item.IsQuestion,
		&item.QuestionStatus,
		&item.AnsweredBy,
		&item.AnsweredAt,
		&item.IsDeleted,
		&item.DeletedAt,
		&item.DeletedBy,
		&item.IsFlagged,
		&item.FlaggedReason,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.AuthorName,
	)
	return item, err
}

func (s *PostgresStore) InsertComment(ctx context.Context, item Comment) error {
	status := item.QuestionStatus
	if status == "" {
		status = "OPEN"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, user_id, parent_id, thread_key, content, is_question, question_status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`, item.ID, item.PostID, item.UserID, item.ParentID, item.ThreadKey, item.Content, item.IsQuestion, status)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.id=$1
	`, commentID)
	return scanComment(row)
}

// ListCommentsByPost returns every comment on the post, deleted ones
// included; tree assembly and per-viewer filtering happen in the service.
func (s *PostgresStore) ListCommentsByPost(ctx context.Context, postID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id=$1
		ORDER BY c.created_at ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// MarkCommentAnswered transitions an OPEN question to ANSWERED. The status
// predicate makes concurrent answers race-safe: only one wins.
func (s *PostgresStore) MarkCommentAnswered(ctx context.Context, commentID, answeredBy string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET question_status='ANSWERED', answered_by=$2, answered_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND is_question AND question_status='OPEN'
	`, commentID, answeredBy)
	if err != nil {
		return false, fmt.Errorf("mark comment answered: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark comment answered rows: %w", err)
	}
	return affected > 0, nil
}

// ReopenCommentQuestion resets a question to OPEN and clears the responder
// fields. Reopening an already-OPEN question is a permitted no-op.
func (s *PostgresStore) ReopenCommentQuestion(ctx context.Context, commentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET question_status='OPEN', answered_by=NULL, answered_at=NULL, updated_at=NOW()
		WHERE id=$1 AND is_question AND question_status <> 'CLOSED'
	`, commentID)
	if err != nil {
		return false, fmt.Errorf("reopen comment question: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reopen comment question rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CloseCommentQuestion(ctx context.Context, commentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET question_status='CLOSED', updated_at=NOW()
		WHERE id=$1 AND is_question AND question_status <> 'CLOSED'
	`, commentID)
	if err != nil {
		return false, fmt.Errorf("close comment question: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close comment question rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SoftDeleteComment(ctx context.Context, commentID, deletedBy string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET is_deleted=TRUE, deleted_at=NOW(), deleted_by=$2, updated_at=NOW()
		WHERE id=$1 AND NOT is_deleted
	`, commentID, deletedBy)
	if err != nil {
		return false, fmt.Errorf("soft delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) RestoreComment(ctx context.Context, commentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET is_deleted=FALSE, deleted_at=NULL, deleted_by=NULL, updated_at=NOW()
		WHERE id=$1 AND is_deleted
	`, commentID)
	if err != nil {
		return false, fmt.Errorf("restore comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("restore comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetCommentFlag(ctx context.Context, commentID string, flagged bool, reason string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET is_flagged=$2, flagged_reason=$3, updated_at=NOW()
		WHERE id=$1
	`, commentID, flagged, reason)
	if err != nil {
		return false, fmt.Errorf("set comment flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set comment flag rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) FindCommentByThreadKey(ctx context.Context, threadKey string) (Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.thread_key=$1 AND c.is_question
		ORDER BY c.created_at ASC
		LIMIT 1
	`, threadKey)
	return scanComment(row)
}

// FindCommentByCorrelation is the legacy content-equality join, kept as the
// fallback for rows that predate thread keys.
func (s *PostgresStore) FindCommentByCorrelation(ctx context.Context, postID, userID, content string, isQuestion bool) (Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id=$1 AND c.user_id=$2 AND c.content=$3 AND c.is_question=$4
		ORDER BY c.created_at ASC
		LIMIT 1
	`, postID, userID, content, isQuestion)
	return scanComment(row)
}

// SetCommentDeletedByThreadKey mirrors interaction hide/unhide onto the
// correlated comment. Returns the number of rows touched; zero is a
// correlation miss, not an error.
func (s *PostgresStore) SetCommentDeletedByThreadKey(ctx context.Context, threadKey string, deleted bool, deletedBy *string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET is_deleted=$2,
			deleted_at=CASE WHEN $2 THEN NOW() ELSE NULL END,
			deleted_by=CASE WHEN $2 THEN $3 ELSE NULL END,
			updated_at=NOW()
		WHERE thread_key=$1
	`, threadKey, deleted, deletedBy)
	if err != nil {
		return 0, fmt.Errorf("set comment deleted by thread key: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set comment deleted rows: %w", err)
	}
	return affected, nil
}

// ── Interactions ──

const interactionColumns = `
	i.id, i.post_id, i.user_id, i.parent_id, COALESCE(i.thread_key, ''), i.content,
	i.type, i.status, i.is_question, i.is_hidden, i.is_deleted, i.is_flagged,
	i.flagged_by, i.flagged_at, COALESCE(i.flag_reason, ''), i.flag_status,
	i.responded_by, i.responded_at, i.created_at, i.updated_at,
	u.display_name, p.title
`

func scanInteraction(row interface{ Scan(...any) error }) (Interaction, error) {
	var item Interaction
	err := row.Scan(
		&item.ID,
		&item.PostID,
		&item.UserID,
		&item.ParentID,
		&item.ThreadKey,
		&item.Content,
		&item.Type,
		&item.Status,
		&item.IsQuestion,
		&item.IsHidden,
		&item.IsDeleted,
		&item.IsFlagged,
		&item.FlaggedBy,
		&item.FlaggedAt,
		&item.FlagReason,
		&item.FlagStatus,
		&item.RespondedBy,
		&item.RespondedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.AuthorName,
		&item.PostTitle,
	)
	return item, err
}

func (s *PostgresStore) InsertInteraction(ctx context.Context, item Interaction) error {
	status := item.Status
	if status == "" {
		status = "OPEN"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, post_id, user_id, parent_id, thread_key, content, type, status, is_question)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`, item.ID, item.PostID, item.UserID, item.ParentID, item.ThreadKey, item.Content, item.Type, status, item.IsQuestion)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInteraction(ctx context.Context, interactionID string) (Interaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+interactionColumns+`
		FROM interactions i
		JOIN users u ON u.id = i.user_id
		JOIN posts p ON p.id = i.post_id
		WHERE i.id=$1 AND NOT i.is_deleted
	`, interactionID)
	return scanInteraction(row)
}

func (s *PostgresStore) ListInteractions(ctx context.Context, filter InteractionFilter) ([]Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions i
		JOIN users u ON u.id = i.user_id
		JOIN posts p ON p.id = i.post_id
		WHERE NOT i.is_deleted
	`
	args := []any{}
	argN := 1
	addClause := func(clause string, value any) {
		query += fmt.Sprintf(" AND "+clause, argN)
		args = append(args, value)
		argN++
	}
	if filter.Type != "" {
		addClause("i.type=$%d", strings.ToUpper(filter.Type))
	}
	if filter.Status != "" {
		addClause("i.status=$%d", strings.ToUpper(filter.Status))
	}
	if filter.IsQuestion != nil {
		addClause("i.is_question=$%d", *filter.IsQuestion)
	}
	if filter.IsFlagged != nil {
		addClause("i.is_flagged=$%d", *filter.IsFlagged)
	}
	if filter.PostID != "" {
		addClause("i.post_id=$%d", filter.PostID)
	}
	if filter.UserID != "" {
		addClause("i.user_id=$%d", filter.UserID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY i.created_at DESC LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	items := make([]Interaction, 0)
	for rows.Next() {
		item, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) FindInteractionByThreadKey(ctx context.Context, threadKey string) (*Interaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+interactionColumns+`
		FROM interactions i
		JOIN users u ON u.id = i.user_id
		JOIN posts p ON p.id = i.post_id
		WHERE i.thread_key=$1 AND i.is_question AND NOT i.is_deleted
		ORDER BY i.created_at ASC
		LIMIT 1
	`, threadKey)
	item, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find interaction by thread key: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) FindInteractionByCorrelation(ctx context.Context, postID, userID, content string, isQuestion bool) (*Interaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+interactionColumns+`
		FROM interactions i
		JOIN users u ON u.id = i.user_id
		JOIN posts p ON p.id = i.post_id
		WHERE i.post_id=$1 AND i.user_id=$2 AND i.content=$3 AND i.is_question=$4 AND NOT i.is_deleted
		ORDER BY i.created_at ASC
		LIMIT 1
	`, postID, userID, content, isQuestion)
	item, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find interaction by correlation: %w", err)
	}
	return &item, nil
}

// MarkInteractionAnswered is the moderation-side answer transition. It
// checks status alone; flag review state lives in flag_status, so a
// flagged question stays answerable.
func (s *PostgresStore) MarkInteractionAnswered(ctx context.Context, interactionID, respondedBy string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE interactions
		SET status='ANSWERED', responded_by=$2, responded_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND is_question AND status='OPEN'
	`, interactionID, respondedBy)
	if err != nil {
		return false, fmt.Errorf("mark interaction answered: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark interaction answered rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ReopenInteraction(ctx context.Context, interactionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE interactions
		SET status='OPEN', responded_by=NULL, responded_at=NULL, updated_at=NOW()
		WHERE id=$1 AND is_question AND status <> 'CLOSED'
	`, interactionID)
	if err != nil {
		return false, fmt.Errorf("reopen interaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reopen interaction rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CloseInteraction(ctx context.Context, interactionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE interactions
		SET status='CLOSED', updated_at=NOW()
		WHERE id=$1 AND status <> 'CLOSED'
	`, interactionID)
	if err != nil {
		return false, fmt.Errorf("close interaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close interaction rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) FlagInteraction(ctx context.Context, interactionID, flaggedBy, reason string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE interactions
		SET is_flagged=TRUE, flagged_by=$2, flagged_at=NOW(), flag_reason=$3, flag_status='PENDING', updated_at=NOW()
		WHERE id=$1 AND NOT is_flagged
	`, interactionID, flaggedBy, reason)
	if err != nil {
		return false, fmt.Errorf("flag interaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("flag interaction rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ClearInteractionFlag(ctx context.Context, interactionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE interactions
		SET is_flagged=FALSE, flagged_by=NULL, flagged_at=NULL, flag_reason=NULL, flag_status='', updated_at=NOW()
		WHERE id=$1 AND is_flagged
	`, interactionID)
	if err != nil {
		return false, fmt.Errorf("clear interaction flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear interaction flag rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkInteractionReviewed(ctx context.Context, interactionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE interactions
		SET flag_status='REVIEWED', updated_at=NOW()
		WHERE id=$1 AND is_flagged
	`, interactionID)
	if err != nil {
		return false, fmt.Errorf("mark interaction reviewed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark interaction reviewed rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetInteractionHidden(ctx context.Context, interactionID string, hidden bool) (bool, error) {
	// Hiding flagged content resolves its flag as actioned.
	result, err := s.db.ExecContext(ctx, `
		UPDATE interactions
		SET is_hidden=$2,
		    flag_status = CASE WHEN $2 AND is_flagged THEN 'ACTIONED' ELSE flag_status END,
		    updated_at=NOW()
		WHERE id=$1
	`, interactionID, hidden)
	if err != nil {
		return false, fmt.Errorf("set interaction hidden: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set interaction hidden rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SoftDeleteInteraction(ctx context.Context, interactionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE interactions
		SET is_deleted=TRUE, updated_at=NOW()
		WHERE id=$1 AND NOT is_deleted
	`, interactionID)
	if err != nil {
		return false, fmt.Errorf("soft delete interaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete interaction rows: %w", err)
	}
	return affected > 0, nil
}

// InteractionStats aggregates the moderation dashboard counts. When
// postAuthorID is non-empty the question counts are scoped to posts that
// author owns (the moderator view).
func (s *PostgresStore) InteractionStats(ctx context.Context, postAuthorID string) (InteractionStats, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE i.is_question AND i.status='OPEN'
				AND ($1 = '' OR p.author_id = $1)),
			COUNT(*) FILTER (WHERE i.is_question AND i.status='ANSWERED'
				AND ($1 = '' OR p.author_id = $1)),
			COUNT(*) FILTER (WHERE i.is_flagged AND i.flag_status='PENDING')
		FROM interactions i
		JOIN posts p ON p.id = i.post_id
		WHERE NOT i.is_deleted
	`
	var stats InteractionStats
	err := s.db.QueryRowContext(ctx, query, postAuthorID).Scan(
		&stats.UnansweredQuestions,
		&stats.AnsweredQuestions,
		&stats.FlaggedPending,
	)
	if err != nil {
		return InteractionStats{}, fmt.Errorf("interaction stats: %w", err)
	}
	return stats, nil
}

// ── Reactions ──

// ToggleReaction applies the one-reaction-per-user-per-post cycle and
// reports which case fired: "created", "updated", or "removed". The
// (post_id, user_id) uniqueness lives in the schema so concurrent first
// reactions cannot produce duplicates.
func (s *PostgresStore) ToggleReaction(ctx context.Context, postID, userID, reactionType, emoji, newID string) (string, error) {
	var existingType string
	err := s.db.QueryRowContext(ctx, `
		SELECT reaction_type
		FROM reactions
		WHERE post_id=$1 AND user_id=$2
	`, postID, userID).Scan(&existingType)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup reaction: %w", err)
	}
	if err == nil && existingType == reactionType {
		if _, delErr := s.db.ExecContext(ctx, `
			DELETE FROM reactions
			WHERE post_id=$1 AND user_id=$2
		`, postID, userID); delErr != nil {
			return "", fmt.Errorf("delete reaction: %w", delErr)
		}
		return "removed", nil
	}
	outcome := "created"
	if err == nil {
		outcome = "updated"
	}
	if _, upsertErr := s.db.ExecContext(ctx, `
		INSERT INTO reactions (id, post_id, user_id, reaction_type, emoji)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (post_id, user_id)
		DO UPDATE SET reaction_type=EXCLUDED.reaction_type, emoji=EXCLUDED.emoji
	`, newID, postID, userID, reactionType, emoji); upsertErr != nil {
		return "", fmt.Errorf("upsert reaction: %w", upsertErr)
	}
	return outcome, nil
}

func (s *PostgresStore) ListReactionCounts(ctx context.Context, postID string) ([]ReactionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reaction_type, emoji, COUNT(*)::int
		FROM reactions
		WHERE post_id=$1
		GROUP BY reaction_type, emoji
		ORDER BY reaction_type
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list reaction counts: %w", err)
	}
	defer rows.Close()

	items := make([]ReactionCount, 0)
	for rows.Next() {
		var item ReactionCount
		if err := rows.Scan(&item.ReactionType, &item.Emoji, &item.Count); err != nil {
			return nil, fmt.Errorf("scan reaction count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reaction counts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetUserReaction(ctx context.Context, postID, userID string) (*Reaction, error) {
	var item Reaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, user_id, reaction_type, emoji, created_at
		FROM reactions
		WHERE post_id=$1 AND user_id=$2
	`, postID, userID).Scan(&item.ID, &item.PostID, &item.UserID, &item.ReactionType, &item.Emoji, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user reaction: %w", err)
	}
	return &item, nil
}

// ── Audit ──

func (s *PostgresStore) InsertAuditEvent(ctx context.Context, event AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (actor_id, actor_name, action_type, description, entity_type, entity_id, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ActorID, event.ActorName, event.ActionType, event.Description, event.EntityType, event.EntityID, event.IPAddress, event.UserAgent)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, action_type, description, entity_type, entity_id, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	items := make([]AuditEvent, 0)
	for rows.Next() {
		var item AuditEvent
		if err := rows.Scan(
			&item.ID,
			&item.ActorID,
			&item.ActorName,
			&item.ActionType,
			&item.Description,
			&item.EntityType,
			&item.EntityID,
			&item.IPAddress,
			&item.UserAgent,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return items, nil
}
