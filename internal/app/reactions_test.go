package app

import (
	"context"
	"errors"
	"testing"

	"parish/api/internal/store"
)

func TestToggleReactionResolvesEmojiFromName(t *testing.T) {
	var gotType, gotEmoji string
	fs := withPost(&fakeStore{
		toggleReactionFn: func(_ context.Context, postID, userID, reactionType, emoji, newID string) (string, error) {
			gotType, gotEmoji = reactionType, emoji
			return "created", nil
		},
	}, publishedPost())
	svc := newTestService(fs)

	payload, err := svc.ToggleReaction(context.Background(), memberSession("member-a", "Ann"), "p1", ReactionInput{ReactionType: "AMEN"})
	if err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if gotType != "AMEN" || gotEmoji != "🙏" {
		t.Fatalf("expected AMEN/🙏, got %s/%s", gotType, gotEmoji)
	}
	if payload["status"] != "created" {
		t.Fatalf("expected created, got %v", payload["status"])
	}
}

func TestToggleReactionResolvesNameFromEmoji(t *testing.T) {
	var gotType string
	fs := withPost(&fakeStore{
		toggleReactionFn: func(_ context.Context, postID, userID, reactionType, emoji, newID string) (string, error) {
			gotType = reactionType
			return "updated", nil
		},
	}, publishedPost())
	svc := newTestService(fs)

	if _, err := svc.ToggleReaction(context.Background(), memberSession("member-a", "Ann"), "p1", ReactionInput{Emoji: "💡"}); err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if gotType != "INSIGHT" {
		t.Fatalf("expected INSIGHT, got %s", gotType)
	}
}

func TestToggleReactionRejectsUnknownType(t *testing.T) {
	svc := newTestService(withPost(&fakeStore{}, publishedPost()))

	_, err := svc.ToggleReaction(context.Background(), memberSession("member-a", "Ann"), "p1", ReactionInput{ReactionType: "CLAP"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_REACTION" {
		t.Fatalf("expected INVALID_REACTION, got %v", err)
	}
}

func TestToggleReactionRejectedWhenDisabled(t *testing.T) {
	post := publishedPost()
	post.ReactionsEnabled = false
	svc := newTestService(withPost(&fakeStore{}, post))

	_, err := svc.ToggleReaction(context.Background(), memberSession("member-a", "Ann"), "p1", ReactionInput{ReactionType: "LIKE"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "REACTIONS_DISABLED" {
		t.Fatalf("expected REACTIONS_DISABLED, got %v", err)
	}
}

func TestGetPostReactionsIncludesOwnReactionWhenAuthenticated(t *testing.T) {
	fs := withPost(&fakeStore{
		listReactionCountsFn: func(context.Context, string) ([]store.ReactionCount, error) {
			return []store.ReactionCount{{ReactionType: "LIKE", Emoji: "👍", Count: 3}}, nil
		},
		getUserReactionFn: func(_ context.Context, postID, userID string) (*store.Reaction, error) {
			if userID == "member-a" {
				return &store.Reaction{ReactionType: "LIKE", Emoji: "👍"}, nil
			}
			return nil, nil
		},
	}, publishedPost())
	svc := newTestService(fs)

	payload, err := svc.GetPostReactions(context.Background(), "p1", Viewer{ID: "member-a", Role: "MEMBER", Authenticated: true})
	if err != nil {
		t.Fatalf("GetPostReactions: %v", err)
	}
	if payload["userReaction"] == nil {
		t.Fatal("expected the caller's own reaction in the payload")
	}

	anon, err := svc.GetPostReactions(context.Background(), "p1", Viewer{Role: "VISITOR"})
	if err != nil {
		t.Fatalf("GetPostReactions: %v", err)
	}
	if _, ok := anon["userReaction"]; ok {
		t.Fatal("anonymous payload must not include userReaction")
	}
}
