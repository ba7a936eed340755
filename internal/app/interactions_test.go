package app

import (
	"context"
	"errors"
	"testing"

	"parish/api/internal/store"
)

func openQuestionInteraction() store.Interaction {
	return store.Interaction{
		ID: "int-1", PostID: "p1", UserID: "member-a",
		ThreadKey: "thr_1", Content: "Why fasting?",
		Type: "QUESTION", Status: "OPEN", IsQuestion: true,
		AuthorName: "Ann", PostTitle: "Sunday Sermon",
	}
}

func TestRespondAnswersBothSides(t *testing.T) {
	inter := openQuestionInteraction()
	rootComment := store.Comment{ID: "c-root", PostID: "p1", UserID: "member-a", ThreadKey: "thr_1", IsQuestion: true, QuestionStatus: "OPEN"}

	var answeredInteraction, answeredComment string
	var replies []store.Comment
	fs := withPost(&fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return inter, nil
		},
		markInteractionAnsweredFn: func(_ context.Context, id, by string) (bool, error) {
			answeredInteraction = id
			return true, nil
		},
		findCommentByThreadKeyFn: func(_ context.Context, key string) (store.Comment, error) {
			return rootComment, nil
		},
		markCommentAnsweredFn: func(_ context.Context, id, by string) (bool, error) {
			answeredComment = id
			return true, nil
		},
		insertCommentFn: func(_ context.Context, item store.Comment) error {
			replies = append(replies, item)
			return nil
		},
	}, publishedPost())
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	payload, err := svc.RespondInteraction(context.Background(), admin, "int-1", "Fasting is preparation.")
	if err != nil {
		t.Fatalf("RespondInteraction: %v", err)
	}
	if answeredInteraction != "int-1" || answeredComment != "c-root" {
		t.Fatalf("expected both sides answered, interaction=%q comment=%q", answeredInteraction, answeredComment)
	}
	if len(replies) != 1 || replies[0].ParentID == nil || *replies[0].ParentID != "c-root" {
		t.Fatalf("expected one reply under c-root, got %+v", replies)
	}
	if payload["status"] != "ANSWERED" {
		t.Fatalf("expected ANSWERED, got %v", payload["status"])
	}
}

func TestRespondRejectedWhenQuestionNotOpen(t *testing.T) {
	inter := openQuestionInteraction()
	inter.Status = "ANSWERED"
	fs := withPost(&fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return inter, nil
		},
		markInteractionAnsweredFn: func(context.Context, string, string) (bool, error) {
			// CAS predicate did not match: the question is no longer OPEN.
			return false, nil
		},
	}, publishedPost())
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	_, err := svc.RespondInteraction(context.Background(), admin, "int-1", "Too late.")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "QUESTION_NOT_OPEN" {
		t.Fatalf("expected QUESTION_NOT_OPEN, got %v", err)
	}
}

func TestRespondForbiddenForModeratorOnForeignPost(t *testing.T) {
	post := publishedPost()
	post.AuthorID = "someone-else"
	fs := withPost(&fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return openQuestionInteraction(), nil
		},
	}, post)
	svc := newTestService(fs)

	mod := Session{UserID: "mod-1", UserName: "Sam", Role: "MODERATOR"}
	_, err := svc.RespondInteraction(context.Background(), mod, "int-1", "Let me answer.")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 403 {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRespondRecreatesMissingComment(t *testing.T) {
	inter := openQuestionInteraction()
	var inserted []store.Comment
	fs := withPost(&fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return inter, nil
		},
		markInteractionAnsweredFn: func(context.Context, string, string) (bool, error) {
			return true, nil
		},
		markCommentAnsweredFn: func(context.Context, string, string) (bool, error) {
			return true, nil
		},
		insertCommentFn: func(_ context.Context, item store.Comment) error {
			inserted = append(inserted, item)
			return nil
		},
	}, publishedPost())
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	if _, err := svc.RespondInteraction(context.Background(), admin, "int-1", "Here is the answer."); err != nil {
		t.Fatalf("RespondInteraction: %v", err)
	}
	// Recreated question plus the response under it.
	if len(inserted) != 2 {
		t.Fatalf("expected 2 inserted comments, got %d", len(inserted))
	}
	if !inserted[0].IsQuestion || inserted[0].ThreadKey != "thr_1" {
		t.Fatalf("recreated comment should mirror the question, got %+v", inserted[0])
	}
	if inserted[1].ParentID == nil || *inserted[1].ParentID != inserted[0].ID {
		t.Fatal("response should be a reply under the recreated question")
	}
}

func TestFlagTwiceRejected(t *testing.T) {
	fs := &fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return openQuestionInteraction(), nil
		},
		flagInteractionFn: func(context.Context, string, string, string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.FlagInteraction(context.Background(), memberSession("member-b", "Ben"), "int-1", "off topic")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "ALREADY_FLAGGED" {
		t.Fatalf("expected ALREADY_FLAGGED, got %v", err)
	}
}

func TestHideMirrorsSoftDeleteViaThreadKey(t *testing.T) {
	var hidden bool
	var maskedKey string
	fs := &fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return openQuestionInteraction(), nil
		},
		setInteractionHiddenFn: func(_ context.Context, id string, value bool) (bool, error) {
			hidden = value
			return true, nil
		},
		setCommentDeletedByThreadKeyFn: func(_ context.Context, key string, deleted bool, _ *string) (int64, error) {
			maskedKey = key
			return 1, nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	if _, err := svc.HideInteraction(context.Background(), admin, "int-1"); err != nil {
		t.Fatalf("HideInteraction: %v", err)
	}
	if !hidden {
		t.Fatal("interaction should be hidden")
	}
	if maskedKey != "thr_1" {
		t.Fatalf("expected comment masked via thread key, got %q", maskedKey)
	}
}

func TestHideFallsBackToCorrelationWhenThreadKeyMisses(t *testing.T) {
	var softDeleted string
	fs := &fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return openQuestionInteraction(), nil
		},
		setCommentDeletedByThreadKeyFn: func(context.Context, string, bool, *string) (int64, error) {
			return 0, nil
		},
		findCommentByCorrelationFn: func(context.Context, string, string, string, bool) (store.Comment, error) {
			return store.Comment{ID: "c-legacy", PostID: "p1"}, nil
		},
		softDeleteCommentFn: func(_ context.Context, id, by string) (bool, error) {
			softDeleted = id
			return true, nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	if _, err := svc.HideInteraction(context.Background(), admin, "int-1"); err != nil {
		t.Fatalf("HideInteraction: %v", err)
	}
	if softDeleted != "c-legacy" {
		t.Fatalf("expected correlation fallback to soft delete c-legacy, got %q", softDeleted)
	}
}

func TestHideSucceedsWhenNoCounterpartExists(t *testing.T) {
	fs := &fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return openQuestionInteraction(), nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	if _, err := svc.HideInteraction(context.Background(), admin, "int-1"); err != nil {
		t.Fatalf("a missing comment counterpart must not fail the hide: %v", err)
	}
}

func TestCloseAlreadyClosedRejected(t *testing.T) {
	fs := withPost(&fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			inter := openQuestionInteraction()
			inter.Status = "CLOSED"
			return inter, nil
		},
		closeInteractionFn: func(context.Context, string) (bool, error) {
			return false, nil
		},
	}, publishedPost())
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	_, err := svc.CloseInteraction(context.Background(), admin, "int-1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "ALREADY_CLOSED" {
		t.Fatalf("expected ALREADY_CLOSED, got %v", err)
	}
}

func TestStatsScopedForModerator(t *testing.T) {
	var scope string
	fs := &fakeStore{
		interactionStatsFn: func(_ context.Context, postAuthorID string) (store.InteractionStats, error) {
			scope = postAuthorID
			return store.InteractionStats{UnansweredQuestions: 2}, nil
		},
	}
	svc := newTestService(fs)

	mod := Session{UserID: "mod-1", UserName: "Sam", Role: "MODERATOR"}
	if _, err := svc.InteractionStats(context.Background(), mod); err != nil {
		t.Fatalf("InteractionStats: %v", err)
	}
	if scope != "mod-1" {
		t.Fatalf("moderator stats must be scoped to their posts, got %q", scope)
	}

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	if _, err := svc.InteractionStats(context.Background(), admin); err != nil {
		t.Fatalf("InteractionStats: %v", err)
	}
	if scope != "" {
		t.Fatalf("admin stats must be unscoped, got %q", scope)
	}
}

func TestRespondSucceedsWhileFlagPending(t *testing.T) {
	inter := openQuestionInteraction()
	inter.IsFlagged = true
	inter.FlagStatus = "PENDING"
	inter.FlagReason = "needs review"

	var answeredInteraction string
	fs := withPost(&fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return inter, nil
		},
		markInteractionAnsweredFn: func(_ context.Context, id, by string) (bool, error) {
			answeredInteraction = id
			return true, nil
		},
		findCommentByThreadKeyFn: func(context.Context, string) (store.Comment, error) {
			return store.Comment{ID: "c-root", PostID: "p1", UserID: "member-a", ThreadKey: "thr_1", IsQuestion: true, QuestionStatus: "OPEN"}, nil
		},
		markCommentAnsweredFn: func(context.Context, string, string) (bool, error) {
			return true, nil
		},
	}, publishedPost())
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	payload, err := svc.RespondInteraction(context.Background(), admin, "int-1", "Still a fair question.")
	if err != nil {
		t.Fatalf("a pending flag must not block the answer: %v", err)
	}
	if answeredInteraction != "int-1" {
		t.Fatal("interaction side was not answered")
	}
	if payload["status"] != "ANSWERED" || payload["flagStatus"] != "PENDING" {
		t.Fatalf("expected status ANSWERED with flag still PENDING, got status=%v flagStatus=%v", payload["status"], payload["flagStatus"])
	}
}

func TestFlagLeavesQuestionStatusOpen(t *testing.T) {
	fs := &fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return openQuestionInteraction(), nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.FlagInteraction(context.Background(), memberSession("member-b", "Ben"), "int-1", "off topic")
	if err != nil {
		t.Fatalf("FlagInteraction: %v", err)
	}
	if payload["status"] != "OPEN" {
		t.Fatalf("flagging must not change the question status, got %v", payload["status"])
	}
	if payload["flagStatus"] != "PENDING" {
		t.Fatalf("expected flagStatus PENDING, got %v", payload["flagStatus"])
	}
}

func TestMarkReviewedRequiresFlag(t *testing.T) {
	fs := &fakeStore{
		getInteractionFn: func(context.Context, string) (store.Interaction, error) {
			return openQuestionInteraction(), nil
		},
		markInteractionReviewedFn: func(context.Context, string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	_, err := svc.MarkInteractionReviewed(context.Background(), admin, "int-1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FLAGGED" {
		t.Fatalf("expected NOT_FLAGGED, got %v", err)
	}
}

func TestBulkMarkReviewedCountsOnlyChangedRows(t *testing.T) {
	fs := &fakeStore{
		getInteractionFn: func(_ context.Context, id string) (store.Interaction, error) {
			inter := openQuestionInteraction()
			inter.ID = id
			return inter, nil
		},
		markInteractionReviewedFn: func(_ context.Context, id string) (bool, error) {
			// int-2 was never flagged; the batch skips it.
			return id != "int-2", nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	payload, err := svc.BulkInteractionAction(context.Background(), admin, "mark_reviewed", []string{"int-1", "int-2", "int-3"})
	if err != nil {
		t.Fatalf("BulkInteractionAction: %v", err)
	}
	if payload["count"] != 2 {
		t.Fatalf("expected count 2, got %v", payload["count"])
	}
}

func TestBulkDeleteMirrorsCommentRemoval(t *testing.T) {
	var deletedInteractions []string
	var maskedKeys []string
	fs := &fakeStore{
		getInteractionFn: func(_ context.Context, id string) (store.Interaction, error) {
			inter := openQuestionInteraction()
			inter.ID = id
			return inter, nil
		},
		softDeleteInteractionFn: func(_ context.Context, id string) (bool, error) {
			deletedInteractions = append(deletedInteractions, id)
			return true, nil
		},
		setCommentDeletedByThreadKeyFn: func(_ context.Context, key string, deleted bool, _ *string) (int64, error) {
			if deleted {
				maskedKeys = append(maskedKeys, key)
			}
			return 1, nil
		},
	}
	svc := newTestService(fs)

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	payload, err := svc.BulkInteractionAction(context.Background(), admin, "delete", []string{"int-1", "int-2"})
	if err != nil {
		t.Fatalf("BulkInteractionAction: %v", err)
	}
	if payload["count"] != 2 || len(deletedInteractions) != 2 {
		t.Fatalf("expected both interactions removed, got count=%v removed=%v", payload["count"], deletedInteractions)
	}
	if len(maskedKeys) != 2 {
		t.Fatalf("expected comment mirrors masked for both, got %v", maskedKeys)
	}
}

func TestBulkUnknownActionRejected(t *testing.T) {
	svc := newTestService(&fakeStore{})

	admin := Session{UserID: "admin-1", UserName: "Pat", Role: "ADMIN"}
	_, err := svc.BulkInteractionAction(context.Background(), admin, "promote", []string{"int-1"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "UNKNOWN_ACTION" {
		t.Fatalf("expected UNKNOWN_ACTION, got %v", err)
	}

	_, err = svc.BulkInteractionAction(context.Background(), admin, "", nil)
	if !errors.As(err, &domainErr) || domainErr.Code != "MISSING_FIELDS" {
		t.Fatalf("expected MISSING_FIELDS, got %v", err)
	}
}
