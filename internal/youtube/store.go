package youtube

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Store persists synced channel and video rows per workspace.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertChannel(ctx context.Context, workspaceID int64, ch *Channel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO youtube_channels (workspace_id, channel_id, title, subscriber_count, video_count, view_count, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (workspace_id, channel_id) DO UPDATE SET
			title = EXCLUDED.title,
			subscriber_count = EXCLUDED.subscriber_count,
			video_count = EXCLUDED.video_count,
			view_count = EXCLUDED.view_count,
			synced_at = NOW()`,
		workspaceID, ch.ID, ch.Title, ch.SubscriberCount, ch.VideoCount, ch.ViewCount)
	if err != nil {
		return fmt.Errorf("upserting channel: %w", err)
	}
	return nil
}

func (s *Store) UpsertVideos(ctx context.Context, workspaceID int64, videos []Video) error {
	for _, v := range videos {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO youtube_videos (workspace_id, video_id, channel_id, title, tags, view_count, like_count, comment_count, published_at, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			ON CONFLICT (workspace_id, video_id) DO UPDATE SET
				title = EXCLUDED.title,
				tags = EXCLUDED.tags,
				view_count = EXCLUDED.view_count,
				like_count = EXCLUDED.like_count,
				comment_count = EXCLUDED.comment_count,
				synced_at = NOW()`,
			workspaceID, v.ID, v.ChannelID, v.Title, pq.Array(v.Tags),
			v.ViewCount, v.LikeCount, v.CommentCount, v.PublishedAt)
		if err != nil {
			return fmt.Errorf("upserting video %s: %w", v.ID, err)
		}
	}
	return nil
}

func (s *Store) ChannelForWorkspace(ctx context.Context, workspaceID int64) (*Channel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT channel_id, title, subscriber_count, video_count, view_count
		FROM youtube_channels
		WHERE workspace_id = $1
		ORDER BY synced_at DESC
		LIMIT 1`, workspaceID)

	ch := &Channel{}
	err := row.Scan(&ch.ID, &ch.Title, &ch.SubscriberCount, &ch.VideoCount, &ch.ViewCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading channel: %w", err)
	}
	return ch, nil
}

func (s *Store) VideosForWorkspace(ctx context.Context, workspaceID int64, limit int) ([]Video, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, channel_id, title, tags, view_count, like_count, comment_count, published_at
		FROM youtube_videos
		WHERE workspace_id = $1
		ORDER BY published_at DESC
		LIMIT $2`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		var v Video
		var tags pq.StringArray
		if err := rows.Scan(&v.ID, &v.ChannelID, &v.Title, &tags, &v.ViewCount, &v.LikeCount, &v.CommentCount, &v.PublishedAt); err != nil {
			return nil, err
		}
		v.Tags = []string(tags)
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// Syncer pulls fresh channel data from the API and keeps the local
// tables current. Signals for the idea pipeline always come from the
// local tables, so idea generation works even when the API is down.
type Syncer struct {
	client *Client
	store  *Store
}

func NewSyncer(client *Client, store *Store) *Syncer {
	return &Syncer{client: client, store: store}
}

// Sync refreshes one workspace's channel and recent videos from the
// API, then returns the recomputed signals.
func (s *Syncer) Sync(ctx context.Context, workspaceID int64, channelID string) (*ChannelSignals, error) {
	channel, err := s.client.GetChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("fetching channel: %w", err)
	}
	videos, err := s.client.ListRecentVideos(ctx, channelID, 50)
	if err != nil {
		return nil, fmt.Errorf("fetching videos: %w", err)
	}

	if err := s.store.UpsertChannel(ctx, workspaceID, channel); err != nil {
		return nil, err
	}
	if err := s.store.UpsertVideos(ctx, workspaceID, videos); err != nil {
		return nil, err
	}
	log.Info().Int64("workspace_id", workspaceID).Int("videos", len(videos)).Msg("youtube sync complete")
	return BuildSignals(channel, videos), nil
}

// SignalsForWorkspace computes signals from the locally stored rows.
// Returns empty signals, not an error, when nothing has been synced.
func (s *Store) SignalsForWorkspace(ctx context.Context, workspaceID int64) (*ChannelSignals, error) {
	channel, err := s.ChannelForWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	videos, err := s.VideosForWorkspace(ctx, workspaceID, 50)
	if err != nil {
		return nil, err
	}
	return BuildSignals(channel, videos), nil
}
