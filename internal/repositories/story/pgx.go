package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/internal/repository"
)

func NewPgx(pg *pgxpool.Pool) *Pgx {
	return &Pgx{
		pg: pg,
	}
}

var _ Repository = (*Pgx)(nil)

type Pgx struct {
	pg *pgxpool.Pool
}

var storyColumns = []string{"id", "creator_id", "caption", "audience", "music", "created_at", "expires_at"}

func (p *Pgx) Create(ctx context.Context, story domain.Story) error {
	inserts, err := insertStory(story)
	if err != nil {
		return errors.Join(err, ErrCannotCreate)
	}

	err = repository.WithTx(ctx, p.pg, func(tx pgx.Tx) error {
		for _, b := range inserts {
			if err := repository.ExecBuilt(ctx, tx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Join(err, ErrCannotCreate)
	}
	return nil
}

func (p *Pgx) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	query, args, err := repository.SqBuilder.
		Select(storyColumns...).
		From("stories").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, repository.ErrBadQuery
	}

	story, err := scanStory(p.pg.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story by id: %w", err)
	}

	stories := []domain.Story{story}
	if err := p.loadChildren(ctx, stories); err != nil {
		return nil, err
	}
	return &stories[0], nil
}

func (p *Pgx) ListActiveByCreator(ctx context.Context, creatorID string, now time.Time) ([]domain.Story, error) {
	query, args, err := repository.SqBuilder.
		Select(storyColumns...).
		From("stories").
		Where(sq.Eq{"creator_id": creatorID}).
		Where(sq.Gt{"expires_at": now}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, repository.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories by creator: %w", err)
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story rows: %w", err)
	}

	if err := p.loadChildren(ctx, stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// DeleteExpired removes stories whose expiry is before now. Segments and
// overlays go with them through ON DELETE CASCADE.
func (p *Pgx) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := repository.SqBuilder.
		Delete("stories").
		Where(sq.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, repository.ErrBadQuery
	}

	tag, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired stories: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Pgx) loadChildren(ctx context.Context, stories []domain.Story) error {
	if len(stories) == 0 {
		return nil
	}

	index := make(map[string]int, len(stories))
	ids := make([]string, 0, len(stories))
	for i, s := range stories {
		index[s.ID] = i
		ids = append(ids, s.ID)
	}

	query, args, err := repository.SqBuilder.
		Select("story_id", "url", "kind", "duration_ms", "caption", "background_color").
		From("story_segments").
		Where(sq.Eq{"story_id": ids}).
		OrderBy("story_id", "position").
		ToSql()
	if err != nil {
		return repository.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query story segments: %w", err)
	}
	for rows.Next() {
		var storyID string
		var seg domain.StorySegment
		var durationMs int64
		if err := rows.Scan(&storyID, &seg.URL, &seg.Kind, &durationMs, &seg.Caption, &seg.BackgroundColor); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan segment row: %w", err)
		}
		seg.Duration = time.Duration(durationMs) * time.Millisecond
		i := index[storyID]
		stories[i].Segments = append(stories[i].Segments, seg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating segment rows: %w", err)
	}

	query, args, err = repository.SqBuilder.
		Select("story_id", "id", "kind", "payload", "x", "y", "scale", "rotation").
		From("story_overlays").
		Where(sq.Eq{"story_id": ids}).
		OrderBy("story_id", "position").
		ToSql()
	if err != nil {
		return repository.ErrBadQuery
	}

	rows, err = p.pg.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query story overlays: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var storyID string
		var item domain.OverlayItem
		var payload []byte
		t := &item.Transform
		if err := rows.Scan(&storyID, &item.ID, &item.Kind, &payload, &t.Position.X, &t.Position.Y, &t.Scale, &t.RotationDegrees); err != nil {
			return fmt.Errorf("failed to scan overlay row: %w", err)
		}
		if err := json.Unmarshal(payload, &item.Payload); err != nil {
			return fmt.Errorf("failed to decode overlay payload: %w", err)
		}
		i := index[storyID]
		stories[i].Overlays = append(stories[i].Overlays, item)
	}
	return rows.Err()
}

func scanStory(row pgx.Row) (domain.Story, error) {
	var s domain.Story
	var music []byte
	if err := row.Scan(&s.ID, &s.CreatorID, &s.Caption, &s.Audience, &music, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return domain.Story{}, err
	}
	if len(music) > 0 {
		s.Music = &domain.MusicReference{}
		if err := json.Unmarshal(music, s.Music); err != nil {
			return domain.Story{}, fmt.Errorf("failed to decode music: %w", err)
		}
	}
	return s, nil
}

// insertStory builds the statements that write story and its children.
func insertStory(story domain.Story) ([]sq.Sqlizer, error) {
	var music []byte
	if story.Music != nil {
		raw, err := json.Marshal(story.Music)
		if err != nil {
			return nil, fmt.Errorf("failed to encode music: %w", err)
		}
		music = raw
	}

	stmts := []sq.Sqlizer{
		repository.SqBuilder.
			Insert("stories").
			Columns(storyColumns...).
			Values(story.ID, story.CreatorID, story.Caption, story.Audience, music, story.CreatedAt, story.ExpiresAt),
	}

	segments := repository.SqBuilder.
		Insert("story_segments").
		Columns("story_id", "position", "url", "kind", "duration_ms", "caption", "background_color")
	for i, seg := range story.Segments {
		segments = segments.Values(story.ID, i, seg.URL, seg.Kind, seg.Duration.Milliseconds(), seg.Caption, seg.BackgroundColor)
	}
	stmts = append(stmts, segments)

	if len(story.Overlays) > 0 {
		overlays := repository.SqBuilder.
			Insert("story_overlays").
			Columns("story_id", "id", "position", "kind", "payload", "x", "y", "scale", "rotation")
		for i, o := range story.Overlays {
			payload, err := json.Marshal(o.Payload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode overlay payload: %w", err)
			}
			t := o.Transform
			overlays = overlays.Values(story.ID, o.ID, i, o.Kind, payload, t.Position.X, t.Position.Y, t.Scale, t.RotationDegrees)
		}
		stmts = append(stmts, overlays)
	}

	return stmts, nil
}
