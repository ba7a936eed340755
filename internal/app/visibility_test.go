package app

import (
	"testing"
	"time"

	"parish/api/internal/rbac"
	"parish/api/internal/store"
)

func strPtr(s string) *string { return &s }

// A post with a plain comment, a member's question with a staff reply, and
// a second member's question. Timestamps order the tree.
func sampleThread() []store.Comment {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []store.Comment{
		{ID: "c1", PostID: "p1", UserID: "member-a", Content: "Lovely sermon", CreatedAt: base},
		{ID: "c2", PostID: "p1", UserID: "member-a", Content: "What did verse 12 mean?", IsQuestion: true, QuestionStatus: "ANSWERED", ThreadKey: "thr_1", CreatedAt: base.Add(time.Minute)},
		{ID: "c3", PostID: "p1", UserID: "mod-1", ParentID: strPtr("c2"), Content: "It refers to the exile.", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "c4", PostID: "p1", UserID: "member-b", Content: "Is there a recording?", IsQuestion: true, QuestionStatus: "OPEN", ThreadKey: "thr_2", CreatedAt: base.Add(3 * time.Minute)},
	}
}

func TestAnonymousViewerSeesOnlyPlainComments(t *testing.T) {
	views := resolveThreads(sampleThread(), Viewer{Role: rbac.RoleVisitor})
	if len(views) != 1 {
		t.Fatalf("expected 1 visible comment, got %d", len(views))
	}
	if views[0].ID != "c1" {
		t.Fatalf("expected c1, got %s", views[0].ID)
	}
}

func TestAskerSeesOwnQuestionAndItsReplies(t *testing.T) {
	views := resolveThreads(sampleThread(), Viewer{ID: "member-a", Role: rbac.RoleMember, Authenticated: true})
	if len(views) != 2 {
		t.Fatalf("expected 2 visible roots, got %d", len(views))
	}
	var question *CommentView
	for i := range views {
		if views[i].ID == "c2" {
			question = &views[i]
		}
		if views[i].ID == "c4" {
			t.Fatal("member-a must not see member-b's question")
		}
	}
	if question == nil {
		t.Fatal("member-a should see their own question")
	}
	if question.ReplyCount != 1 || question.Replies[0].ID != "c3" {
		t.Fatalf("expected the staff reply inside the thread, got %+v", question.Replies)
	}
}

func TestStaffSeesEverything(t *testing.T) {
	for _, role := range []rbac.Role{rbac.RoleModerator, rbac.RoleAdmin} {
		views := resolveThreads(sampleThread(), Viewer{ID: "staff-1", Role: role, Authenticated: true})
		if len(views) != 3 {
			t.Fatalf("role %s: expected 3 visible roots, got %d", role, len(views))
		}
	}
}

func TestAuthenticatedMemberSeesOwnButNotOthersQuestions(t *testing.T) {
	views := resolveThreads(sampleThread(), Viewer{ID: "member-b", Role: rbac.RoleMember, Authenticated: true})
	ids := make(map[string]bool)
	for _, view := range views {
		ids[view.ID] = true
	}
	if !ids["c1"] || !ids["c4"] {
		t.Fatalf("member-b should see the plain comment and their own question, got %v", ids)
	}
	if ids["c2"] {
		t.Fatal("member-b must not see member-a's question")
	}
}

func TestVisibilityIsEvaluatedPerNode(t *testing.T) {
	// A question nested inside member-a's thread stays hidden from other
	// members even though the surrounding thread is visible.
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	comments := []store.Comment{
		{ID: "c1", PostID: "p1", UserID: "member-a", Content: "Open discussion", CreatedAt: base},
		{ID: "c2", PostID: "p1", UserID: "member-b", ParentID: strPtr("c1"), Content: "A follow-up question", IsQuestion: true, QuestionStatus: "OPEN", CreatedAt: base.Add(time.Minute)},
	}

	views := resolveThreads(comments, Viewer{ID: "member-c", Role: rbac.RoleMember, Authenticated: true})
	if len(views) != 1 {
		t.Fatalf("expected 1 root, got %d", len(views))
	}
	if views[0].ReplyCount != 0 {
		t.Fatal("nested question should be hidden from unrelated members")
	}

	// The author of the parent comment sees questions asked under it.
	owner := resolveThreads(comments, Viewer{ID: "member-a", Role: rbac.RoleMember, Authenticated: true})
	if owner[0].ReplyCount != 1 {
		t.Fatal("parent author should see questions asked under their comment")
	}
}

func TestReplyVisibilityFollowsDirectParentAuthor(t *testing.T) {
	// member-v joins member-a's thread, and member-x asks a question under
	// member-v's reply. The question is addressed to member-v, so member-v
	// sees it; member-a started the thread but is not the parent author and
	// does not.
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	comments := []store.Comment{
		{ID: "c-root", PostID: "p1", UserID: "member-a", Content: "Discussion starter", CreatedAt: base},
		{ID: "c-mid", PostID: "p1", UserID: "member-v", ParentID: strPtr("c-root"), Content: "My take on it", CreatedAt: base.Add(time.Minute)},
		{ID: "c-q", PostID: "p1", UserID: "member-x", ParentID: strPtr("c-mid"), Content: "Can you expand on that?", IsQuestion: true, QuestionStatus: "OPEN", CreatedAt: base.Add(2 * time.Minute)},
	}

	views := resolveThreads(comments, Viewer{ID: "member-v", Role: rbac.RoleMember, Authenticated: true})
	if len(views) != 1 || len(views[0].Replies) != 1 {
		t.Fatalf("member-v should see the thread down to their reply, got %+v", views)
	}
	mid := views[0].Replies[0]
	if mid.ReplyCount != 1 || mid.Replies[0].ID != "c-q" {
		t.Fatalf("member-v should see the question asked under their reply, got %+v", mid.Replies)
	}

	starter := resolveThreads(comments, Viewer{ID: "member-a", Role: rbac.RoleMember, Authenticated: true})
	if starter[0].Replies[0].ReplyCount != 0 {
		t.Fatal("starting the thread does not reveal questions addressed to someone else")
	}
}

func TestSoftDeletedCommentIsMaskedButKeepsPosition(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	comments := []store.Comment{
		{ID: "c1", PostID: "p1", UserID: "member-a", Content: "Something rude", IsDeleted: true, CreatedAt: base},
		{ID: "c2", PostID: "p1", UserID: "member-b", ParentID: strPtr("c1"), Content: "A reply under it", CreatedAt: base.Add(time.Minute)},
	}

	views := resolveThreads(comments, Viewer{Role: rbac.RoleVisitor})
	if len(views) != 1 {
		t.Fatalf("expected deleted root to keep its position, got %d roots", len(views))
	}
	if views[0].Content != deletedContentMask {
		t.Fatalf("expected masked content, got %q", views[0].Content)
	}
	if !views[0].IsDeleted {
		t.Fatal("expected isDeleted to be set")
	}
	if views[0].ReplyCount != 1 {
		t.Fatal("replies under a deleted comment must stay readable")
	}
}

func TestRepliesSortedByCreatedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	comments := []store.Comment{
		{ID: "c1", PostID: "p1", UserID: "u1", Content: "root", CreatedAt: base},
		{ID: "c3", PostID: "p1", UserID: "u2", ParentID: strPtr("c1"), Content: "second", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "c2", PostID: "p1", UserID: "u3", ParentID: strPtr("c1"), Content: "first", CreatedAt: base.Add(time.Minute)},
	}

	views := resolveThreads(comments, Viewer{Role: rbac.RoleVisitor})
	if views[0].Replies[0].ID != "c2" || views[0].Replies[1].ID != "c3" {
		t.Fatalf("replies out of order: %s, %s", views[0].Replies[0].ID, views[0].Replies[1].ID)
	}
}
