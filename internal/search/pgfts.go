package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over interaction content with ts_rank ordering
// and ts_headline snippets. The expression matches the GIN index on the
// interactions table, so the planner can use it.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "to_tsvector('english', i.content) @@ plainto_tsquery('english', $1) AND NOT i.is_deleted"
	args := []any{q.Text}
	argN := 2
	if q.FilterType != "" {
		where += fmt.Sprintf(" AND i.type = $%d", argN)
		args = append(args, strings.ToUpper(q.FilterType))
		argN++
	}
	if q.FilterStatus != "" {
		where += fmt.Sprintf(" AND i.status = $%d", argN)
		args = append(args, strings.ToUpper(q.FilterStatus))
		argN++
	}
	if q.FilterPostID != "" {
		where += fmt.Sprintf(" AND i.post_id = $%d", argN)
		args = append(args, q.FilterPostID)
		argN++
	}

	ctx := context.Background()

	countSQL := fmt.Sprintf(`SELECT count(*) FROM interactions i WHERE %s`, where)
	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT i.id,
			ts_headline('english', i.content, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			i.type, i.status, i.post_id, p.title, u.display_name, i.is_question, i.is_flagged
		FROM interactions i
		JOIN posts p ON p.id = i.post_id
		JOIN users u ON u.id = i.user_id
		WHERE %s
		ORDER BY ts_rank(to_tsvector('english', i.content), plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Snippet, &r.Type, &r.Status, &r.PostID, &r.PostTitle, &r.AuthorName, &r.IsQuestion, &r.IsFlagged); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all live interactions for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]InteractionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT i.id, i.content, i.type, i.status, i.post_id, p.title, u.display_name, i.is_question, i.is_flagged
		FROM interactions i
		JOIN posts p ON p.id = i.post_id
		JOIN users u ON u.id = i.user_id
		WHERE NOT i.is_deleted
	`)
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}
	defer rows.Close()

	records := make([]InteractionRecord, 0)
	for rows.Next() {
		var rec InteractionRecord
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Type, &rec.Status, &rec.PostID, &rec.PostTitle, &rec.AuthorName, &rec.IsQuestion, &rec.IsFlagged); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return records, nil
}
