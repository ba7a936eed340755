package app

import (
	"sort"
	"time"

	"parish/api/internal/rbac"
	"parish/api/internal/store"
)

// deletedContentMask replaces the content of soft-deleted comments at
// serialization time. The comment keeps its place in the tree so reply
// chains under it stay readable.
const deletedContentMask = "This comment has been removed by moderation."

// Viewer is the identity a comment tree is filtered for. Anonymous
// readers have Authenticated=false and an empty ID.
type Viewer struct {
	ID            string
	Role          rbac.Role
	Authenticated bool
}

func viewerFromSession(session Session, authenticated bool) Viewer {
	return Viewer{
		ID:            session.UserID,
		Role:          rbac.Normalize(session.Role),
		Authenticated: authenticated,
	}
}

// CommentView is the serialized tree node returned to API callers.
type CommentView struct {
	ID             string        `json:"id"`
	PostID         string        `json:"postId"`
	UserID         string        `json:"userId"`
	AuthorName     string        `json:"authorName"`
	ParentID       *string       `json:"parentId,omitempty"`
	Content        string        `json:"content"`
	IsQuestion     bool          `json:"isQuestion"`
	QuestionStatus string        `json:"questionStatus,omitempty"`
	AnsweredBy     *string       `json:"answeredBy,omitempty"`
	AnsweredAt     *time.Time    `json:"answeredAt,omitempty"`
	IsDeleted      bool          `json:"isDeleted"`
	IsFlagged      bool          `json:"isFlagged"`
	CreatedAt      time.Time     `json:"createdAt"`
	ReplyCount     int           `json:"replyCount"`
	Replies        []CommentView `json:"replies"`
}

// commentVisible decides whether one tree node is included for a viewer.
// parentAuthorID is the author of the node's direct parent: a user always
// sees replies made to their own comments, but not every reply in a
// thread they started. The rule is evaluated at every node independently,
// so a question nested deep in a visible thread is still hidden from
// everyone but its author, the parent's author, and staff.
func commentVisible(item store.Comment, viewer Viewer, parentAuthorID string) bool {
	if viewer.Authenticated && (item.UserID == viewer.ID || parentAuthorID == viewer.ID) {
		return true
	}
	if !item.IsQuestion {
		return true
	}
	return viewer.Authenticated && rbac.IsStaff(viewer.Role)
}

// resolveThreads assembles the per-viewer comment tree for a post from a
// flat created_at-ordered slice. Filtering and masking run per node;
// excluding a node drops its whole subtree.
func resolveThreads(comments []store.Comment, viewer Viewer) []CommentView {
	children := make(map[string][]store.Comment)
	var roots []store.Comment
	for _, item := range comments {
		if item.ParentID == nil {
			roots = append(roots, item)
			continue
		}
		children[*item.ParentID] = append(children[*item.ParentID], item)
	}

	views := make([]CommentView, 0, len(roots))
	for _, root := range roots {
		if !commentVisible(root, viewer, "") {
			continue
		}
		views = append(views, buildView(root, children, viewer))
	}
	return views
}

func buildView(item store.Comment, children map[string][]store.Comment, viewer Viewer) CommentView {
	view := CommentView{
		ID:         item.ID,
		PostID:     item.PostID,
		UserID:     item.UserID,
		AuthorName: item.AuthorName,
		ParentID:   item.ParentID,
		Content:    item.Content,
		IsQuestion: item.IsQuestion,
		IsDeleted:  item.IsDeleted,
		IsFlagged:  item.IsFlagged,
		CreatedAt:  item.CreatedAt,
		Replies:    []CommentView{},
	}
	if item.IsQuestion {
		view.QuestionStatus = item.QuestionStatus
		view.AnsweredBy = item.AnsweredBy
		view.AnsweredAt = item.AnsweredAt
	}
	if item.IsDeleted {
		view.Content = deletedContentMask
	}

	kids := children[item.ID]
	sort.SliceStable(kids, func(i, j int) bool {
		return kids[i].CreatedAt.Before(kids[j].CreatedAt)
	})
	for _, kid := range kids {
		if !commentVisible(kid, viewer, item.UserID) {
			continue
		}
		view.Replies = append(view.Replies, buildView(kid, children, viewer))
	}
	view.ReplyCount = len(view.Replies)
	return view
}
