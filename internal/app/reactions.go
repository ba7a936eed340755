package app

import (
	"context"
	"net/http"

	"parish/api/internal/util"
)

var reactionEmojis = map[string]string{
	"LIKE":    "👍",
	"AMEN":    "🙏",
	"LOVE":    "❤️",
	"INSIGHT": "💡",
	"PRAISE":  "🎉",
}

var emojiReactions = func() map[string]string {
	reverse := make(map[string]string, len(reactionEmojis))
	for name, emoji := range reactionEmojis {
		reverse[emoji] = name
	}
	return reverse
}()

type ReactionInput struct {
	ReactionType string `json:"reactionType"`
	Emoji        string `json:"emoji"`
}

// resolveReaction accepts either the symbolic name or the emoji itself.
func resolveReaction(input ReactionInput) (string, string, error) {
	if input.ReactionType != "" {
		emoji, ok := reactionEmojis[input.ReactionType]
		if !ok {
			return "", "", domainError(http.StatusBadRequest, "INVALID_REACTION", "Unknown reaction type", map[string]string{"reactionType": input.ReactionType})
		}
		return input.ReactionType, emoji, nil
	}
	if name, ok := emojiReactions[input.Emoji]; ok {
		return name, input.Emoji, nil
	}
	return "", "", domainError(http.StatusBadRequest, "INVALID_REACTION", "Unknown reaction", nil)
}

// ToggleReaction applies the one-reaction-per-user rule: same reaction
// again removes it, a different one replaces it, none creates it.
func (s *Service) ToggleReaction(ctx context.Context, session Session, postID string, input ReactionInput) (map[string]any, error) {
	reactionType, emoji, err := resolveReaction(input)
	if err != nil {
		return nil, err
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.IsDeleted || !post.IsPublished {
		return nil, domainError(http.StatusBadRequest, "POST_UNAVAILABLE", "Post is not available", nil)
	}
	if !post.ReactionsEnabled {
		return nil, domainError(http.StatusBadRequest, "REACTIONS_DISABLED", "Reactions are disabled on this post", nil)
	}

	outcome, err := s.store.ToggleReaction(ctx, post.ID, session.UserID, reactionType, emoji, util.NewID("rxn"))
	if err != nil {
		return nil, err
	}

	s.recordAudit(session, "reaction."+outcome, "Reaction "+outcome+" on "+post.Title, "post", post.ID)
	return map[string]any{
		"status":       outcome,
		"reactionType": reactionType,
		"emoji":        emoji,
	}, nil
}

// GetPostReactions returns per-type counts plus the caller's own reaction
// when authenticated.
func (s *Service) GetPostReactions(ctx context.Context, postID string, viewer Viewer) (map[string]any, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.ListReactionCounts(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	countViews := make([]map[string]any, 0, len(counts))
	for _, c := range counts {
		countViews = append(countViews, map[string]any{
			"reactionType": c.ReactionType,
			"emoji":        c.Emoji,
			"count":        c.Count,
		})
	}

	payload := map[string]any{
		"postId": post.ID,
		"counts": countViews,
	}
	if viewer.Authenticated {
		own, err := s.store.GetUserReaction(ctx, post.ID, viewer.ID)
		if err != nil {
			return nil, err
		}
		if own != nil {
			payload["userReaction"] = map[string]any{
				"reactionType": own.ReactionType,
				"emoji":        own.Emoji,
			}
		}
	}
	return payload, nil
}
