package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLIdeaStore persists ideas in the content_ideas table.
type SQLIdeaStore struct {
	db *sql.DB
}

func NewSQLIdeaStore(db *sql.DB) *SQLIdeaStore {
	return &SQLIdeaStore{db: db}
}

const ideaColumns = `id, workspace_id, title, description, phase, source, hook, outline_json, cta, script, created_at`

func scanIdea(row interface{ Scan(...interface{}) error }) (*Idea, error) {
	var idea Idea
	var phase, hook, cta, script sql.NullString
	var outline []byte
	err := row.Scan(&idea.ID, &idea.WorkspaceID, &idea.Title, &idea.Description,
		&phase, &idea.Source, &hook, &outline, &cta, &script, &idea.CreatedAt)
	if err != nil {
		return nil, err
	}
	idea.Phase = phase.String
	if hook.Valid {
		idea.Hook = &hook.String
	}
	if cta.Valid {
		idea.CTA = &cta.String
	}
	if script.Valid {
		idea.Script = &script.String
	}
	idea.OutlineJSON = outline
	return &idea, nil
}

func (s *SQLIdeaStore) RecentAISourced(ctx context.Context, workspaceID int64, since time.Time) ([]Idea, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ideaColumns+`
		FROM content_ideas
		WHERE workspace_id = $1 AND source = $2 AND created_at >= $3
		ORDER BY created_at DESC`,
		workspaceID, SourceAI, since)
	if err != nil {
		return nil, fmt.Errorf("loading cached ideas: %w", err)
	}
	defer rows.Close()

	var ideas []Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		ideas = append(ideas, *idea)
	}
	return ideas, rows.Err()
}

func (s *SQLIdeaStore) Insert(ctx context.Context, idea *Idea) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO content_ideas (workspace_id, title, description, phase, source, hook, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		RETURNING id`,
		idea.WorkspaceID, idea.Title, idea.Description, idea.Phase, idea.Source, idea.Hook, idea.CreatedAt,
	).Scan(&idea.ID)
	if err != nil {
		return fmt.Errorf("inserting idea: %w", err)
	}
	return nil
}

func (s *SQLIdeaStore) Get(ctx context.Context, workspaceID, ideaID int64) (*Idea, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ideaColumns+`
		FROM content_ideas
		WHERE workspace_id = $1 AND id = $2`,
		workspaceID, ideaID)
	idea, err := scanIdea(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading idea: %w", err)
	}
	return idea, nil
}

var pieceColumns = map[string]string{
	PieceHook:    "hook",
	PieceOutline: "outline_json",
	PieceCTA:     "cta",
	PieceScript:  "script",
}

func (s *SQLIdeaStore) UpdatePiece(ctx context.Context, workspaceID, ideaID int64, kind string, value string) (*Idea, error) {
	column, ok := pieceColumns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown piece kind %q", kind)
	}

	// kind is validated against the fixed column map, so the
	// interpolation cannot carry user input.
	query := fmt.Sprintf(`
		UPDATE content_ideas
		SET %s = $1
		WHERE workspace_id = $2 AND id = $3
		RETURNING `+ideaColumns, column)

	idea, err := scanIdea(s.db.QueryRowContext(ctx, query, value, workspaceID, ideaID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("idea %d not found", ideaID)
	}
	if err != nil {
		return nil, fmt.Errorf("updating idea %s: %w", kind, err)
	}
	return idea, nil
}
