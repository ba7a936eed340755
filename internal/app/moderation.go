package app

import (
	"context"
	"log"
	"net/http"

	"parish/api/internal/store"
	"parish/api/internal/util"
)

// SoftDeleteComment removes a comment from member view. The row stays in
// place so the thread under it survives; serialization masks the content.
// A correlated interaction is hidden on the moderation side.
func (s *Service) SoftDeleteComment(ctx context.Context, session Session, commentID string) (map[string]any, error) {
	item, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.SoftDeleteComment(ctx, item.ID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, domainError(http.StatusBadRequest, "ALREADY_REMOVED", "Comment is already removed", nil)
	}

	if inter, err := s.findCorrelatedInteraction(ctx, item); err != nil {
		return nil, err
	} else if inter != nil {
		if _, err := s.store.SetInteractionHidden(ctx, inter.ID, true); err != nil {
			return nil, err
		}
	}

	s.recordAudit(session, "comment.remove", "Removed a comment", "comment", item.ID)
	return map[string]any{"id": item.ID, "isDeleted": true}, nil
}

func (s *Service) RestoreComment(ctx context.Context, session Session, commentID string) (map[string]any, error) {
	item, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	restored, err := s.store.RestoreComment(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if !restored {
		return nil, domainError(http.StatusBadRequest, "NOT_REMOVED", "Comment is not removed", nil)
	}

	if inter, err := s.findCorrelatedInteraction(ctx, item); err != nil {
		return nil, err
	} else if inter != nil {
		if _, err := s.store.SetInteractionHidden(ctx, inter.ID, false); err != nil {
			return nil, err
		}
	}

	s.recordAudit(session, "comment.restore", "Restored a comment", "comment", item.ID)
	return map[string]any{"id": item.ID, "isDeleted": false}, nil
}

// FlagComment flags from the member-facing side. The correlated
// interaction is flagged too; if none exists one is created so the flag
// always lands in the moderation queue.
func (s *Service) FlagComment(ctx context.Context, session Session, commentID, reason string) (map[string]any, error) {
	item, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if item.IsFlagged {
		return nil, domainError(http.StatusBadRequest, "ALREADY_FLAGGED", "Comment is already flagged", nil)
	}
	if _, err := s.store.SetCommentFlag(ctx, item.ID, true, reason); err != nil {
		return nil, err
	}

	inter, err := s.findCorrelatedInteraction(ctx, item)
	if err != nil {
		return nil, err
	}
	if inter == nil {
		log.Printf("sync: no interaction for flagged comment %s, creating one", item.ID)
		created := store.Interaction{
			ID:         util.NewID("int"),
			PostID:     item.PostID,
			UserID:     item.UserID,
			ThreadKey:  item.ThreadKey,
			Content:    item.Content,
			Type:       "FLAGGED",
			Status:     item.QuestionStatus,
			IsQuestion: item.IsQuestion,
		}
		if err := s.store.InsertInteraction(ctx, created); err != nil {
			return nil, err
		}
		inter = &created
	}
	if _, err := s.store.FlagInteraction(ctx, inter.ID, session.UserID, reason); err != nil {
		return nil, err
	}
	inter.IsFlagged = true
	inter.FlagStatus = "PENDING"
	s.indexInteraction(*inter, inter.PostTitle, item.AuthorName)

	s.recordAudit(session, "comment.flag", "Flagged a comment", "comment", item.ID)
	return map[string]any{"id": item.ID, "isFlagged": true}, nil
}

func (s *Service) UnflagComment(ctx context.Context, session Session, commentID string) (map[string]any, error) {
	item, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !item.IsFlagged {
		return nil, domainError(http.StatusBadRequest, "NOT_FLAGGED", "Comment is not flagged", nil)
	}
	if _, err := s.store.SetCommentFlag(ctx, item.ID, false, ""); err != nil {
		return nil, err
	}

	if inter, err := s.findCorrelatedInteraction(ctx, item); err != nil {
		return nil, err
	} else if inter != nil {
		if _, err := s.store.ClearInteractionFlag(ctx, inter.ID); err != nil {
			return nil, err
		}
		inter.IsFlagged = false
		s.indexInteraction(*inter, inter.PostTitle, item.AuthorName)
	} else {
		log.Printf("sync: no interaction for unflagged comment %s", item.ID)
	}

	s.recordAudit(session, "comment.unflag", "Cleared a comment flag", "comment", item.ID)
	return map[string]any{"id": item.ID, "isFlagged": false}, nil
}
