package app

import (
	"context"
	"log"
	"net/http"

	"parish/api/internal/rbac"
	"parish/api/internal/search"
	"parish/api/internal/store"
	"parish/api/internal/util"
)

func interactionView(item store.Interaction) map[string]any {
	return map[string]any{
		"id":          item.ID,
		"postId":      item.PostID,
		"postTitle":   item.PostTitle,
		"userId":      item.UserID,
		"authorName":  item.AuthorName,
		"threadKey":   item.ThreadKey,
		"content":     item.Content,
		"type":        item.Type,
		"status":      item.Status,
		"isQuestion":  item.IsQuestion,
		"isHidden":    item.IsHidden,
		"isFlagged":   item.IsFlagged,
		"flagReason":  item.FlagReason,
		"flagStatus":  item.FlagStatus,
		"respondedBy": item.RespondedBy,
		"respondedAt": item.RespondedAt,
		"createdAt":   item.CreatedAt,
	}
}

func (s *Service) indexInteraction(item store.Interaction, postTitle, authorName string) {
	if s.search == nil {
		return
	}
	s.search.IndexInteraction(search.InteractionRecord{
		ID:         item.ID,
		Content:    item.Content,
		Type:       item.Type,
		Status:     item.Status,
		PostID:     item.PostID,
		PostTitle:  postTitle,
		AuthorName: authorName,
		IsQuestion: item.IsQuestion,
		IsFlagged:  item.IsFlagged,
	})
}

// indexInteractionStatus reindexes an interaction after a status change
// without re-reading the row.
func (s *Service) indexInteractionStatus(item store.Interaction, status, postTitle, authorName string) {
	item.Status = status
	s.indexInteraction(item, postTitle, authorName)
}

// ListInteractions is the moderation queue view.
func (s *Service) ListInteractions(ctx context.Context, filter store.InteractionFilter) ([]map[string]any, error) {
	items, err := s.store.ListInteractions(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, interactionView(item))
	}
	return views, nil
}

// InteractionStats returns queue counters. Moderators only see counts for
// posts they authored; admins see everything.
func (s *Service) InteractionStats(ctx context.Context, session Session) (store.InteractionStats, error) {
	scope := ""
	if rbac.Normalize(session.Role) == rbac.RoleModerator {
		scope = session.UserID
	}
	return s.store.InteractionStats(ctx, scope)
}

func (s *Service) SearchInteractions(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// RespondInteraction answers an open question from the moderation side and
// posts the response as a reply comment in the member-facing thread.
func (s *Service) RespondInteraction(ctx context.Context, session Session, interactionID, content string) (map[string]any, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	inter, err := s.store.GetInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	if !inter.IsQuestion {
		return nil, domainError(http.StatusBadRequest, "NOT_A_QUESTION", "Interaction is not a question", nil)
	}
	post, err := s.store.GetPost(ctx, inter.PostID)
	if err != nil {
		return nil, err
	}
	if !rbac.CanRespond(rbac.Normalize(session.Role), session.UserID, post.AuthorID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "You may only respond to questions on your own posts", nil)
	}

	answered, err := s.store.MarkInteractionAnswered(ctx, inter.ID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !answered {
		return nil, domainError(http.StatusBadRequest, "QUESTION_NOT_OPEN", "Question is not open", nil)
	}

	target, found, err := s.findCorrelatedComment(ctx, inter)
	if err != nil {
		return nil, err
	}
	if !found {
		// The comment side is missing; recreate the question so the
		// response has a thread to land in.
		log.Printf("sync: no comment for interaction %s, creating one", inter.ID)
		target = store.Comment{
			ID:             util.NewID("cmt"),
			PostID:         inter.PostID,
			UserID:         inter.UserID,
			ThreadKey:      inter.ThreadKey,
			Content:        inter.Content,
			IsQuestion:     true,
			QuestionStatus: "OPEN",
		}
		if err := s.store.InsertComment(ctx, target); err != nil {
			return nil, err
		}
	}
	if _, err := s.store.MarkCommentAnswered(ctx, target.ID, session.UserID); err != nil {
		return nil, err
	}
	reply := store.Comment{
		ID:             util.NewID("cmt"),
		PostID:         inter.PostID,
		UserID:         session.UserID,
		ParentID:       &target.ID,
		Content:        content,
		QuestionStatus: "OPEN",
	}
	if err := s.store.InsertComment(ctx, reply); err != nil {
		return nil, err
	}

	s.indexInteractionStatus(inter, "ANSWERED", post.Title, inter.AuthorName)
	s.recordAudit(session, "question.answer", "Answered a question on "+post.Title, "interaction", inter.ID)

	inter.Status = "ANSWERED"
	inter.RespondedBy = &session.UserID
	return interactionView(inter), nil
}

// FlagInteraction marks content for moderator review. Flagging is open to
// any member; a second flag on the same interaction is rejected.
func (s *Service) FlagInteraction(ctx context.Context, session Session, interactionID, reason string) (map[string]any, error) {
	inter, err := s.store.GetInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	flagged, err := s.store.FlagInteraction(ctx, inter.ID, session.UserID, reason)
	if err != nil {
		return nil, err
	}
	if !flagged {
		return nil, domainError(http.StatusBadRequest, "ALREADY_FLAGGED", "Interaction is already flagged", nil)
	}

	if target, found, err := s.findCorrelatedComment(ctx, inter); err != nil {
		return nil, err
	} else if found {
		if _, err := s.store.SetCommentFlag(ctx, target.ID, true, reason); err != nil {
			return nil, err
		}
	} else {
		log.Printf("sync: no comment for flagged interaction %s", inter.ID)
	}

	inter.IsFlagged = true
	inter.FlagStatus = "PENDING"
	inter.FlagReason = reason
	s.indexInteraction(inter, inter.PostTitle, inter.AuthorName)
	s.recordAudit(session, "interaction.flag", "Flagged an interaction", "interaction", inter.ID)
	return interactionView(inter), nil
}

// MarkInteractionReviewed resolves a flag without hiding the content.
func (s *Service) MarkInteractionReviewed(ctx context.Context, session Session, interactionID string) (map[string]any, error) {
	inter, err := s.store.GetInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	reviewed, err := s.store.MarkInteractionReviewed(ctx, inter.ID)
	if err != nil {
		return nil, err
	}
	if !reviewed {
		return nil, domainError(http.StatusBadRequest, "NOT_FLAGGED", "Interaction is not flagged", nil)
	}

	inter.FlagStatus = "REVIEWED"
	s.indexInteraction(inter, inter.PostTitle, inter.AuthorName)
	s.recordAudit(session, "interaction.review", "Marked an interaction reviewed", "interaction", inter.ID)
	return interactionView(inter), nil
}

// HideInteraction hides content from the moderation side and soft-deletes
// the correlated comment so members stop seeing it too.
func (s *Service) HideInteraction(ctx context.Context, session Session, interactionID string) (map[string]any, error) {
	inter, err := s.store.GetInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.SetInteractionHidden(ctx, inter.ID, true); err != nil {
		return nil, err
	}
	if err := s.mirrorCommentDeletion(ctx, session, inter, true); err != nil {
		return nil, err
	}

	inter.IsHidden = true
	if inter.IsFlagged {
		inter.FlagStatus = "ACTIONED"
	}
	s.recordAudit(session, "interaction.hide", "Hid an interaction", "interaction", inter.ID)
	return interactionView(inter), nil
}

func (s *Service) UnhideInteraction(ctx context.Context, session Session, interactionID string) (map[string]any, error) {
	inter, err := s.store.GetInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.SetInteractionHidden(ctx, inter.ID, false); err != nil {
		return nil, err
	}
	if err := s.mirrorCommentDeletion(ctx, session, inter, false); err != nil {
		return nil, err
	}

	inter.IsHidden = false
	s.recordAudit(session, "interaction.unhide", "Restored an interaction", "interaction", inter.ID)
	return interactionView(inter), nil
}

// mirrorCommentDeletion propagates hide/unhide to the comment side. A
// missing counterpart is logged, never an error: the moderation action
// already took effect.
func (s *Service) mirrorCommentDeletion(ctx context.Context, session Session, inter store.Interaction, deleted bool) error {
	if inter.ThreadKey != "" {
		var deletedBy *string
		if deleted {
			actor := session.UserID
			deletedBy = &actor
		}
		n, err := s.store.SetCommentDeletedByThreadKey(ctx, inter.ThreadKey, deleted, deletedBy)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
	target, found, err := s.findCorrelatedComment(ctx, inter)
	if err != nil {
		return err
	}
	if !found {
		log.Printf("sync: no comment for interaction %s, skipping mirror", inter.ID)
		return nil
	}
	if deleted {
		_, err = s.store.SoftDeleteComment(ctx, target.ID, session.UserID)
	} else {
		_, err = s.store.RestoreComment(ctx, target.ID)
	}
	return err
}

// CloseInteraction ends a question permanently. Closed questions cannot be
// reopened by the asker.
func (s *Service) CloseInteraction(ctx context.Context, session Session, interactionID string) (map[string]any, error) {
	inter, err := s.store.GetInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	post, err := s.store.GetPost(ctx, inter.PostID)
	if err != nil {
		return nil, err
	}
	if !rbac.CanRespond(rbac.Normalize(session.Role), session.UserID, post.AuthorID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "You may only close questions on your own posts", nil)
	}
	closed, err := s.store.CloseInteraction(ctx, inter.ID)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, domainError(http.StatusBadRequest, "ALREADY_CLOSED", "Question is already closed", nil)
	}

	if target, found, err := s.findCorrelatedComment(ctx, inter); err != nil {
		return nil, err
	} else if found {
		if _, err := s.store.CloseCommentQuestion(ctx, target.ID); err != nil {
			return nil, err
		}
	} else {
		log.Printf("sync: no comment for closed interaction %s", inter.ID)
	}

	s.indexInteractionStatus(inter, "CLOSED", post.Title, inter.AuthorName)
	s.recordAudit(session, "question.close", "Closed a question on "+post.Title, "interaction", inter.ID)
	inter.Status = "CLOSED"
	return interactionView(inter), nil
}

// BulkInteractionAction applies one moderation action to a batch of
// interactions. Items that no longer qualify (already hidden, not
// flagged, since deleted) are skipped, not errors; the response reports
// how many actually changed.
func (s *Service) BulkInteractionAction(ctx context.Context, session Session, action string, ids []string) (map[string]any, error) {
	if action == "" || len(ids) == 0 {
		return nil, domainError(http.StatusBadRequest, "MISSING_FIELDS", "Both ids and action are required", nil)
	}
	switch action {
	case "hide", "delete", "mark_reviewed":
	default:
		return nil, domainError(http.StatusBadRequest, "UNKNOWN_ACTION", "Unknown bulk action: "+action, nil)
	}

	count := 0
	for _, id := range ids {
		var err error
		switch action {
		case "hide":
			_, err = s.HideInteraction(ctx, session, id)
		case "delete":
			err = s.deleteInteraction(ctx, session, id)
		case "mark_reviewed":
			_, err = s.MarkInteractionReviewed(ctx, session, id)
		}
		if err != nil {
			log.Printf("bulk %s: skipping interaction %s: %v", action, id, err)
			continue
		}
		count++
	}
	return map[string]any{
		"message": "Bulk " + action + " completed",
		"count":   count,
	}, nil
}

// deleteInteraction soft-deletes the moderation row and propagates the
// removal to the member-facing comment.
func (s *Service) deleteInteraction(ctx context.Context, session Session, interactionID string) error {
	inter, err := s.store.GetInteraction(ctx, interactionID)
	if err != nil {
		return err
	}
	deleted, err := s.store.SoftDeleteInteraction(ctx, inter.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return domainError(http.StatusBadRequest, "ALREADY_REMOVED", "Interaction is already removed", nil)
	}
	if err := s.mirrorCommentDeletion(ctx, session, inter, true); err != nil {
		return err
	}
	s.recordAudit(session, "interaction.delete", "Removed an interaction", "interaction", inter.ID)
	return nil
}
