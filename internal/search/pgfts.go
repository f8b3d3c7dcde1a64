package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres the API is down anyway.
func (p *PgFTS) Healthy() bool {
	return true
}

// pgQuery renders the WHERE clause and args shared by the count and data queries.
func pgQuery(q Query) (string, []any) {
	where := []string{"l.fts @@ plainto_tsquery('simple', $1)"}
	args := []any{q.Text}
	if len(q.Statuses) > 0 {
		placeholders := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			args = append(args, s)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, "l.status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if q.DecisionTypeID != "" {
		args = append(args, q.DecisionTypeID)
		where = append(where, fmt.Sprintf("l.decision_type_id = $%d", len(args)))
	}
	if q.AuthorID != "" {
		args = append(args, q.AuthorID)
		where = append(where, fmt.Sprintf("l.author_id = $%d", len(args)))
	}
	return strings.Join(where, " AND "), args
}

// Search ranks letters with ts_rank and highlights the rationale with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
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

	where, args := pgQuery(q)

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM letters l WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT l.id, l.title,
			ts_headline('simple', coalesce(l.rationale, ''), plainto_tsquery('simple', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			l.status, l.decision_type_id
		FROM letters l
		WHERE %s
		ORDER BY ts_rank(l.fts, plainto_tsquery('simple', $1)) DESC, l.updated_at DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.Status, &r.DecisionTypeID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every letter for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]LetterRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT l.id, l.title, l.description, l.rationale, l.status, l.decision_type_id,
			l.author_id, dt.sector, l.updated_at
		FROM letters l
		JOIN decision_types dt ON dt.id = l.decision_type_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load letters: %w", err)
	}
	defer rows.Close()

	records := make([]LetterRecord, 0)
	for rows.Next() {
		var r LetterRecord
		var updatedAt time.Time
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Rationale, &r.Status, &r.DecisionTypeID, &r.AuthorID, &r.Sector, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan letter: %w", err)
		}
		r.Description = PlainText(r.Description)
		r.UpdatedAt = updatedAt.Unix()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate letters: %w", err)
	}
	return records, nil
}
