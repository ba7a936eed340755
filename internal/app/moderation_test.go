package app

import (
	"context"
	"errors"
	"testing"

	"parish/api/internal/store"
)

func questionComment() store.Comment {
	return store.Comment{
		ID: "c1", PostID: "p1", UserID: "member-a",
		ThreadKey: "thr_1", Content: "Why fasting?",
		IsQuestion: true, QuestionStatus: "OPEN",
		AuthorName: "Ann",
	}
}

func TestSoftDeleteCommentHidesInteraction(t *testing.T) {
	var hiddenID string
	fs := &fakeStore{
		getCommentFn: func(context.Context, string) (store.Comment, error) {
			return questionComment(), nil
		},
		softDeleteCommentFn: func(context.Context, string, string) (bool, error) {
			return true, nil
		},
		findInteractionByThreadKeyFn: func(context.Context, string) (*store.Interaction, error) {
			inter := openQuestionInteraction()
			return &inter, nil
		},
		setInteractionHiddenFn: func(_ context.Context, id string, hidden bool) (bool, error) {
			if hidden {
				hiddenID = id
			}
			return true, nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	if _, err := svc.SoftDeleteComment(context.Background(), admin, "c1"); err != nil {
		t.Fatalf("SoftDeleteComment: %v", err)
	}
	if hiddenID != "int-1" {
		t.Fatalf("expected interaction int-1 hidden, got %q", hiddenID)
	}
}

func TestSoftDeleteTwiceRejected(t *testing.T) {
	fs := &fakeStore{
		getCommentFn: func(context.Context, string) (store.Comment, error) {
			item := questionComment()
			item.IsDeleted = true
			return item, nil
		},
		softDeleteCommentFn: func(context.Context, string, string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	_, err := svc.SoftDeleteComment(context.Background(), admin, "c1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "ALREADY_REMOVED" {
		t.Fatalf("expected ALREADY_REMOVED, got %v", err)
	}
}

func TestFlagCommentCreatesInteractionOnCorrelationMiss(t *testing.T) {
	var created []store.Interaction
	var flagged []string
	fs := &fakeStore{
		getCommentFn: func(context.Context, string) (store.Comment, error) {
			item := questionComment()
			item.ThreadKey = ""
			item.IsQuestion = false
			return item, nil
		},
		insertInteractionFn: func(_ context.Context, item store.Interaction) error {
			created = append(created, item)
			return nil
		},
		flagInteractionFn: func(_ context.Context, id, _, _ string) (bool, error) {
			flagged = append(flagged, id)
			return true, nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	if _, err := svc.FlagComment(context.Background(), admin, "c1", "spam"); err != nil {
		t.Fatalf("FlagComment: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected a FLAGGED interaction to be created, got %d", len(created))
	}
	if created[0].Type != "FLAGGED" {
		t.Fatalf("unexpected mirror interaction: %+v", created[0])
	}
	if len(flagged) != 1 || flagged[0] != created[0].ID {
		t.Fatalf("created mirror should carry the flag, got %v", flagged)
	}
}

func TestUnflagCommentClearsBothSides(t *testing.T) {
	var clearedFlag bool
	var commentFlagValue *bool
	fs := &fakeStore{
		getCommentFn: func(context.Context, string) (store.Comment, error) {
			item := questionComment()
			item.IsFlagged = true
			return item, nil
		},
		setCommentFlagFn: func(_ context.Context, _ string, flagged bool, _ string) (bool, error) {
			commentFlagValue = &flagged
			return true, nil
		},
		findInteractionByThreadKeyFn: func(context.Context, string) (*store.Interaction, error) {
			inter := openQuestionInteraction()
			inter.IsFlagged = true
			return &inter, nil
		},
		clearInteractionFlagFn: func(context.Context, string) (bool, error) {
			clearedFlag = true
			return true, nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	if _, err := svc.UnflagComment(context.Background(), admin, "c1"); err != nil {
		t.Fatalf("UnflagComment: %v", err)
	}
	if commentFlagValue == nil || *commentFlagValue {
		t.Fatal("comment flag should be cleared")
	}
	if !clearedFlag {
		t.Fatal("interaction flag should be cleared")
	}
}

func TestRestoreNotRemovedRejected(t *testing.T) {
	fs := &fakeStore{
		getCommentFn: func(context.Context, string) (store.Comment, error) {
			return questionComment(), nil
		},
		restoreCommentFn: func(context.Context, string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	_, err := svc.RestoreComment(context.Background(), admin, "c1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_REMOVED" {
		t.Fatalf("expected NOT_REMOVED, got %v", err)
	}
}
