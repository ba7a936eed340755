package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"parish/api/internal/rbac"
	"parish/api/internal/store"
	"parish/api/internal/util"
)

const maxCommentLength = 5000

type CreateCommentInput struct {
	PostID     string `json:"postId"`
	Content    string `json:"content"`
	IsQuestion bool   `json:"isQuestion"`
}

type ReplyInput struct {
	Content    string `json:"content"`
	IsQuestion bool   `json:"isQuestion"`
}

func validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Content must not be empty", map[string]string{"field": "content"})
	}
	if len([]rune(trimmed)) > maxCommentLength {
		return "", domainError(http.StatusBadRequest, "VALIDATION_ERROR", "Content exceeds 5000 characters", map[string]string{"field": "content"})
	}
	return trimmed, nil
}

// commentablePost loads a post and enforces the write gates: it must be
// published, not deleted, and accept comments.
func (s *Service) commentablePost(ctx context.Context, postID string) (store.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return store.Post{}, err
	}
	if post.IsDeleted || !post.IsPublished {
		return store.Post{}, domainError(http.StatusBadRequest, "POST_UNAVAILABLE", "Post is not available", nil)
	}
	if !post.CommentsEnabled {
		return store.Post{}, domainError(http.StatusBadRequest, "COMMENTS_DISABLED", "Comments are disabled on this post", nil)
	}
	return post, nil
}

func (s *Service) GetPostSummary(ctx context.Context, postID string, viewer Viewer) (map[string]any, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if (post.IsDeleted || !post.IsPublished) && !rbac.IsStaff(viewer.Role) {
		return nil, sql.ErrNoRows
	}
	return map[string]any{
		"id":               post.ID,
		"title":            post.Title,
		"authorId":         post.AuthorID,
		"isPublished":      post.IsPublished,
		"commentsEnabled":  post.CommentsEnabled,
		"reactionsEnabled": post.ReactionsEnabled,
		"publishedAt":      post.PublishedAt,
	}, nil
}

// ListPostComments returns the viewer-filtered comment tree for a post.
func (s *Service) ListPostComments(ctx context.Context, postID string, viewer Viewer) ([]CommentView, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if (post.IsDeleted || !post.IsPublished) && !rbac.IsStaff(viewer.Role) {
		return nil, sql.ErrNoRows
	}
	comments, err := s.store.ListCommentsByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return resolveThreads(comments, viewer), nil
}

// CreateComment posts a top-level comment or question. Questions get a
// fresh thread key and a mirrored moderation Interaction.
func (s *Service) CreateComment(ctx context.Context, session Session, input CreateCommentInput) (CommentView, error) {
	content, err := validateContent(input.Content)
	if err != nil {
		return CommentView{}, err
	}
	post, err := s.commentablePost(ctx, input.PostID)
	if err != nil {
		return CommentView{}, err
	}

	item := store.Comment{
		ID:             util.NewID("cmt"),
		PostID:         post.ID,
		UserID:         session.UserID,
		Content:        content,
		IsQuestion:     input.IsQuestion,
		QuestionStatus: "OPEN",
	}
	if input.IsQuestion {
		item.ThreadKey = util.NewID("thr")
	}
	if err := s.store.InsertComment(ctx, item); err != nil {
		return CommentView{}, err
	}

	if input.IsQuestion {
		inter := store.Interaction{
			ID:         util.NewID("int"),
			PostID:     post.ID,
			UserID:     session.UserID,
			ThreadKey:  item.ThreadKey,
			Content:    content,
			Type:       "QUESTION",
			Status:     "OPEN",
			IsQuestion: true,
		}
		if err := s.store.InsertInteraction(ctx, inter); err != nil {
			return CommentView{}, err
		}
		s.indexInteraction(inter, post.Title, session.UserName)
		s.recordAudit(session, "question.ask", "Asked a question on "+post.Title, "comment", item.ID)
	} else {
		s.recordAudit(session, "comment.create", "Commented on "+post.Title, "comment", item.ID)
	}

	item.AuthorName = session.UserName
	return buildView(item, nil, viewerFromSession(session, true)), nil
}

// ReplyComment posts a reply and applies the question lifecycle: a reply
// from a permitted responder answers an open question at the thread root;
// a follow-up question from the original asker reopens it.
func (s *Service) ReplyComment(ctx context.Context, session Session, parentID string, input ReplyInput) (CommentView, error) {
	content, err := validateContent(input.Content)
	if err != nil {
		return CommentView{}, err
	}
	parent, err := s.store.GetComment(ctx, parentID)
	if err != nil {
		return CommentView{}, err
	}
	if parent.IsDeleted {
		return CommentView{}, domainError(http.StatusBadRequest, "PARENT_REMOVED", "Cannot reply to a removed comment", nil)
	}
	post, err := s.commentablePost(ctx, parent.PostID)
	if err != nil {
		return CommentView{}, err
	}
	root, err := s.threadRoot(ctx, parent)
	if err != nil {
		return CommentView{}, err
	}

	role := rbac.Normalize(session.Role)
	reopens := root.IsQuestion && input.IsQuestion && session.UserID == root.UserID
	answers := root.IsQuestion && !reopens &&
		root.QuestionStatus == "OPEN" &&
		rbac.CanRespond(role, session.UserID, post.AuthorID)

	reply := store.Comment{
		ID:             util.NewID("cmt"),
		PostID:         parent.PostID,
		UserID:         session.UserID,
		ParentID:       &parent.ID,
		Content:        content,
		IsQuestion:     input.IsQuestion,
		QuestionStatus: "OPEN",
	}
	if input.IsQuestion && !reopens {
		// A question asked by someone other than the thread owner starts
		// its own moderation record.
		reply.ThreadKey = util.NewID("thr")
	}
	if err := s.store.InsertComment(ctx, reply); err != nil {
		return CommentView{}, err
	}

	switch {
	case answers:
		if err := s.answerQuestion(ctx, session, root, post); err != nil {
			return CommentView{}, err
		}
	case reopens:
		if err := s.reopenQuestion(ctx, session, root, post); err != nil {
			return CommentView{}, err
		}
	}

	if input.IsQuestion && !reopens {
		inter := store.Interaction{
			ID:         util.NewID("int"),
			PostID:     post.ID,
			UserID:     session.UserID,
			ParentID:   &parent.ID,
			ThreadKey:  reply.ThreadKey,
			Content:    content,
			Type:       "QUESTION",
			Status:     "OPEN",
			IsQuestion: true,
		}
		if err := s.store.InsertInteraction(ctx, inter); err != nil {
			return CommentView{}, err
		}
		s.indexInteraction(inter, post.Title, session.UserName)
	}

	s.recordAudit(session, "comment.reply", "Replied on "+post.Title, "comment", reply.ID)

	reply.AuthorName = session.UserName
	return buildView(reply, nil, viewerFromSession(session, true)), nil
}

// answerQuestion flips the thread-root question to ANSWERED on both
// representations. The comment transition is a status-predicate update,
// so if a concurrent answer already won this one backs off quietly.
func (s *Service) answerQuestion(ctx context.Context, session Session, root store.Comment, post store.Post) error {
	answered, err := s.store.MarkCommentAnswered(ctx, root.ID, session.UserID)
	if err != nil {
		return err
	}
	if !answered {
		return nil
	}

	inter, err := s.findCorrelatedInteraction(ctx, root)
	if err != nil {
		return err
	}
	if inter == nil {
		log.Printf("sync: no interaction for comment %s, creating one", root.ID)
		created := store.Interaction{
			ID:         util.NewID("int"),
			PostID:     root.PostID,
			UserID:     root.UserID,
			ThreadKey:  root.ThreadKey,
			Content:    root.Content,
			Type:       "QUESTION",
			Status:     "OPEN",
			IsQuestion: true,
		}
		if err := s.store.InsertInteraction(ctx, created); err != nil {
			return err
		}
		inter = &created
	}
	synced, err := s.store.MarkInteractionAnswered(ctx, inter.ID, session.UserID)
	if err != nil {
		return err
	}
	if !synced {
		log.Printf("sync: interaction %s for comment %s was not open", inter.ID, root.ID)
	}
	s.indexInteractionStatus(*inter, "ANSWERED", post.Title, root.AuthorName)
	s.recordAudit(session, "question.answer", "Answered a question on "+post.Title, "comment", root.ID)
	return nil
}

// reopenQuestion returns an answered thread-root question to OPEN on both
// representations. CLOSED questions stay closed; the follow-up still
// posts. A correlation match must never create a duplicate Interaction.
func (s *Service) reopenQuestion(ctx context.Context, session Session, root store.Comment, post store.Post) error {
	reopened, err := s.store.ReopenCommentQuestion(ctx, root.ID)
	if err != nil {
		return err
	}
	if !reopened {
		return nil
	}

	inter, err := s.findCorrelatedInteraction(ctx, root)
	if err != nil {
		return err
	}
	if inter == nil {
		log.Printf("sync: no interaction for comment %s, creating one", root.ID)
		created := store.Interaction{
			ID:         util.NewID("int"),
			PostID:     root.PostID,
			UserID:     root.UserID,
			ThreadKey:  root.ThreadKey,
			Content:    root.Content,
			Type:       "QUESTION",
			Status:     "OPEN",
			IsQuestion: true,
		}
		if err := s.store.InsertInteraction(ctx, created); err != nil {
			return err
		}
		inter = &created
	} else if _, err := s.store.ReopenInteraction(ctx, inter.ID); err != nil {
		return err
	}
	s.indexInteractionStatus(*inter, "OPEN", post.Title, root.AuthorName)
	s.recordAudit(session, "question.reopen", "Reopened a question on "+post.Title, "comment", root.ID)
	return nil
}

// threadRoot walks up the parent chain to the top-level comment.
func (s *Service) threadRoot(ctx context.Context, item store.Comment) (store.Comment, error) {
	current := item
	for current.ParentID != nil {
		parent, err := s.store.GetComment(ctx, *current.ParentID)
		if err != nil {
			return store.Comment{}, fmt.Errorf("resolve thread root for %s: %w", item.ID, err)
		}
		current = parent
	}
	return current, nil
}

// findCorrelatedInteraction locates the Interaction mirroring a question
// comment: by shared thread key first, then by the legacy content
// correlation for rows that predate thread keys.
func (s *Service) findCorrelatedInteraction(ctx context.Context, item store.Comment) (*store.Interaction, error) {
	if item.ThreadKey != "" {
		inter, err := s.store.FindInteractionByThreadKey(ctx, item.ThreadKey)
		if err != nil {
			return nil, err
		}
		if inter != nil {
			return inter, nil
		}
	}
	return s.store.FindInteractionByCorrelation(ctx, item.PostID, item.UserID, item.Content, item.IsQuestion)
}

// findCorrelatedComment is the reverse lookup, from an Interaction to its
// member-facing Comment. The bool reports whether a match was found.
func (s *Service) findCorrelatedComment(ctx context.Context, inter store.Interaction) (store.Comment, bool, error) {
	if inter.ThreadKey != "" {
		item, err := s.store.FindCommentByThreadKey(ctx, inter.ThreadKey)
		if err == nil {
			return item, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return store.Comment{}, false, err
		}
	}
	item, err := s.store.FindCommentByCorrelation(ctx, inter.PostID, inter.UserID, inter.Content, inter.IsQuestion)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Comment{}, false, nil
	}
	if err != nil {
		return store.Comment{}, false, err
	}
	return item, true, nil
}
