package storage

import (
	"context"
	"fmt"

	"vidtube/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func (r *PostgresRepository) LikedVideos(ctx context.Context, userID string, window Window) ([]models.LikedVideo, error) {
	window = window.normalize()
	var rows []models.LikedVideo
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		result, err := conn.Query(ctx, `
SELECT v.id, v.title, v.description, v.duration, v.views, v.thumbnail, v.created_at,
       u.id, u.username, u.full_name, u.avatar_url, l.created_at
FROM likes l
JOIN videos v ON v.id = l.video_id
JOIN users u ON u.id = v.owner_id
WHERE l.liked_by = $1 AND l.target_kind = 'video'
ORDER BY l.created_at DESC, l.seq ASC
OFFSET $2 LIMIT $3`, userID, window.Offset, limitArg(window.Limit))
		if err != nil {
			return fmt.Errorf("query liked videos: %w", err)
		}
		rows, err = pgx.CollectRows(result, func(row pgx.CollectableRow) (models.LikedVideo, error) {
			var item models.LikedVideo
			err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Duration, &item.Views, &item.Thumbnail, &item.CreatedAt,
				&item.Owner.ID, &item.Owner.Username, &item.Owner.FullName, &item.Owner.Avatar, &item.LikedAt)
			return item, err
		})
		if err != nil {
			return fmt.Errorf("scan liked videos: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.LikedVideo{}
	}
	return rows, nil
}

func (r *PostgresRepository) UserTweets(ctx context.Context, ownerID, viewerID string, window Window) ([]models.TweetView, error) {
	window = window.normalize()
	var rows []models.TweetView
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		result, err := conn.Query(ctx, `
SELECT t.id, t.content, t.created_at, u.id, u.username, u.full_name, u.avatar_url,
       COUNT(l.id) AS likes_count,
       COALESCE(BOOL_OR(l.liked_by = $2), FALSE) AS is_liked
FROM tweets t
JOIN users u ON u.id = t.owner_id
LEFT JOIN likes l ON l.tweet_id = t.id
WHERE t.owner_id = $1
GROUP BY t.id, u.id
ORDER BY t.created_at DESC, t.seq ASC
OFFSET $3 LIMIT $4`, ownerID, viewerID, window.Offset, limitArg(window.Limit))
		if err != nil {
			return fmt.Errorf("query user tweets: %w", err)
		}
		rows, err = pgx.CollectRows(result, func(row pgx.CollectableRow) (models.TweetView, error) {
			var item models.TweetView
			err := row.Scan(&item.ID, &item.Content, &item.CreatedAt,
				&item.Owner.ID, &item.Owner.Username, &item.Owner.FullName, &item.Owner.Avatar,
				&item.LikesCount, &item.IsLiked)
			return item, err
		})
		if err != nil {
			return fmt.Errorf("scan user tweets: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.TweetView{}
	}
	return rows, nil
}

func (r *PostgresRepository) count(ctx context.Context, subject, sql string, args ...any) (int64, error) {
	var total int64
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		if err := conn.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
			return fmt.Errorf("%s: %w", subject, err)
		}
		return nil
	})
	return total, err
}

func (r *PostgresRepository) CountTweets(ctx context.Context, ownerID string) (int64, error) {
	return r.count(ctx, "count tweets", `SELECT COUNT(*) FROM tweets WHERE owner_id = $1`, ownerID)
}

func (r *PostgresRepository) VideoComments(ctx context.Context, videoID, viewerID string, window Window) ([]models.CommentView, error) {
	window = window.normalize()
	var rows []models.CommentView
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		result, err := conn.Query(ctx, `
SELECT c.id, c.video_id, c.content, c.created_at, c.updated_at,
       u.id, u.username, u.full_name, u.avatar_url,
       COUNT(l.id) AS likes_count,
       COALESCE(BOOL_OR(l.liked_by = $2), FALSE) AS is_liked
FROM comments c
JOIN users u ON u.id = c.owner_id
LEFT JOIN likes l ON l.comment_id = c.id
WHERE c.video_id = $1
GROUP BY c.id, u.id
ORDER BY c.created_at DESC, c.seq ASC
OFFSET $3 LIMIT $4`, videoID, viewerID, window.Offset, limitArg(window.Limit))
		if err != nil {
			return fmt.Errorf("query video comments: %w", err)
		}
		rows, err = pgx.CollectRows(result, func(row pgx.CollectableRow) (models.CommentView, error) {
			var item models.CommentView
			err := row.Scan(&item.ID, &item.VideoID, &item.Content, &item.CreatedAt, &item.UpdatedAt,
				&item.Owner.ID, &item.Owner.Username, &item.Owner.FullName, &item.Owner.Avatar,
				&item.LikesCount, &item.IsLiked)
			return item, err
		})
		if err != nil {
			return fmt.Errorf("scan video comments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.CommentView{}
	}
	return rows, nil
}

func (r *PostgresRepository) CountComments(ctx context.Context, videoID string) (int64, error) {
	return r.count(ctx, "count comments", `SELECT COUNT(*) FROM comments WHERE video_id = $1`, videoID)
}

// playlistVideoRow is one extant video of a playlist, in position order.
type playlistVideoRow struct {
	playlistID string
	video      models.PlaylistVideo
}

// attachPlaylistVideos fills videos and totals for the given playlists.
func attachPlaylistVideos(ctx context.Context, conn *pgxpool.Conn, views []models.PlaylistView, detailed bool) error {
	if len(views) == 0 {
		return nil
	}
	playlistIDs := make([]string, len(views))
	index := make(map[string]int, len(views))
	for i, view := range views {
		playlistIDs[i] = view.ID
		index[view.ID] = i
	}
	result, err := conn.Query(ctx, `
SELECT pv.playlist_id, v.id, v.title, v.description, v.thumbnail, v.duration, v.views, v.owner_id
FROM playlist_videos pv
JOIN videos v ON v.id = pv.video_id
WHERE pv.playlist_id = ANY($1)
ORDER BY pv.playlist_id, pv.position`, playlistIDs)
	if err != nil {
		return fmt.Errorf("query playlist videos: %w", err)
	}
	entries, err := pgx.CollectRows(result, func(row pgx.CollectableRow) (playlistVideoRow, error) {
		var entry playlistVideoRow
		err := row.Scan(&entry.playlistID, &entry.video.ID, &entry.video.Title, &entry.video.Description,
			&entry.video.Thumbnail, &entry.video.Duration, &entry.video.Views, &entry.video.OwnerID)
		return entry, err
	})
	if err != nil {
		return fmt.Errorf("scan playlist videos: %w", err)
	}
	for _, entry := range entries {
		i, ok := index[entry.playlistID]
		if !ok {
			continue
		}
		video := entry.video
		if !detailed {
			video.Description = ""
			video.OwnerID = ""
		}
		views[i].Videos = append(views[i].Videos, video)
		views[i].TotalViews += video.Views
		views[i].TotalVideos++
	}
	return nil
}

const playlistViewQuery = `
SELECT p.id, p.name, p.description, p.created_at, p.updated_at,
       u.id, u.username, u.full_name, u.avatar_url
FROM playlists p
JOIN users u ON u.id = p.owner_id`

func scanPlaylistView(row pgx.Row) (models.PlaylistView, error) {
	view := models.PlaylistView{Videos: []models.PlaylistVideo{}}
	err := row.Scan(&view.ID, &view.Name, &view.Description, &view.CreatedAt, &view.UpdatedAt,
		&view.Owner.ID, &view.Owner.Username, &view.Owner.FullName, &view.Owner.Avatar)
	return view, err
}

func (r *PostgresRepository) UserPlaylists(ctx context.Context, ownerID string) ([]models.PlaylistView, error) {
	var views []models.PlaylistView
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		result, err := conn.Query(ctx, playlistViewQuery+`
WHERE p.owner_id = $1
ORDER BY p.created_at DESC, p.seq ASC`, ownerID)
		if err != nil {
			return fmt.Errorf("query user playlists: %w", err)
		}
		views, err = pgx.CollectRows(result, func(row pgx.CollectableRow) (models.PlaylistView, error) {
			return scanPlaylistView(row)
		})
		if err != nil {
			return fmt.Errorf("scan user playlists: %w", err)
		}
		return attachPlaylistVideos(ctx, conn, views, false)
	})
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []models.PlaylistView{}
	}
	return views, nil
}

func (r *PostgresRepository) PlaylistDetail(ctx context.Context, playlistID string) (models.PlaylistView, error) {
	var view models.PlaylistView
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		view, err = scanPlaylistView(conn.QueryRow(ctx, playlistViewQuery+` WHERE p.id = $1`, playlistID))
		if err != nil {
			return translatePgError(err, "playlist "+playlistID)
		}
		views := []models.PlaylistView{view}
		if err := attachPlaylistVideos(ctx, conn, views, true); err != nil {
			return err
		}
		view = views[0]
		return nil
	})
	return view, err
}

func (r *PostgresRepository) ChannelSubscribers(ctx context.Context, channelID string, window Window) ([]models.SubscriberView, error) {
	window = window.normalize()
	var rows []models.SubscriberView
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		result, err := conn.Query(ctx, `
SELECT s.created_at, u.id, u.username, u.full_name, u.avatar_url, u.created_at
FROM subscriptions s
JOIN users u ON u.id = s.subscriber_id
WHERE s.channel_id = $1
ORDER BY s.created_at DESC, s.seq ASC
OFFSET $2 LIMIT $3`, channelID, window.Offset, limitArg(window.Limit))
		if err != nil {
			return fmt.Errorf("query channel subscribers: %w", err)
		}
		rows, err = pgx.CollectRows(result, func(row pgx.CollectableRow) (models.SubscriberView, error) {
			var item models.SubscriberView
			subscriber := &item.Subscriber
			err := row.Scan(&item.SubscribedAt, &subscriber.ID, &subscriber.Username, &subscriber.FullName,
				&subscriber.Avatar, &subscriber.CreatedAt)
			return item, err
		})
		if err != nil {
			return fmt.Errorf("scan channel subscribers: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.SubscriberView{}
	}
	return rows, nil
}

func (r *PostgresRepository) SubscribedChannels(ctx context.Context, subscriberID string, window Window) ([]models.SubscribedChannelView, error) {
	window = window.normalize()
	var rows []models.SubscribedChannelView
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		result, err := conn.Query(ctx, `
SELECT s.created_at, u.id, u.username, u.full_name, u.avatar_url, u.created_at,
       COUNT(v.id) AS total_videos,
       COALESCE(SUM(v.views), 0)::BIGINT AS total_views
FROM subscriptions s
JOIN users u ON u.id = s.channel_id
LEFT JOIN videos v ON v.owner_id = u.id
WHERE s.subscriber_id = $1
GROUP BY s.id, u.id
ORDER BY s.created_at DESC, s.seq ASC
OFFSET $2 LIMIT $3`, subscriberID, window.Offset, limitArg(window.Limit))
		if err != nil {
			return fmt.Errorf("query subscribed channels: %w", err)
		}
		rows, err = pgx.CollectRows(result, func(row pgx.CollectableRow) (models.SubscribedChannelView, error) {
			var item models.SubscribedChannelView
			channel := &item.Channel
			err := row.Scan(&item.SubscribedAt, &channel.ID, &channel.Username, &channel.FullName, &channel.Avatar,
				&channel.CreatedAt, &item.TotalVideos, &item.TotalViews)
			return item, err
		})
		if err != nil {
			return fmt.Errorf("scan subscribed channels: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.SubscribedChannelView{}
	}
	return rows, nil
}

func (r *PostgresRepository) CountSubscriptions(ctx context.Context, subscriberID string) (int64, error) {
	return r.count(ctx, "count subscriptions", `SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1`, subscriberID)
}

func (r *PostgresRepository) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	return r.count(ctx, "count subscribers", `SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`, channelID)
}

func (r *PostgresRepository) SumVideoViews(ctx context.Context, ownerID string) (int64, error) {
	return r.count(ctx, "sum video views", `SELECT COALESCE(SUM(views), 0)::BIGINT FROM videos WHERE owner_id = $1`, ownerID)
}

func (r *PostgresRepository) CountVideos(ctx context.Context, ownerID string) (int64, error) {
	return r.count(ctx, "count videos", `SELECT COUNT(*) FROM videos WHERE owner_id = $1`, ownerID)
}

func (r *PostgresRepository) CountVideoLikes(ctx context.Context, ownerID string) (int64, error) {
	return r.count(ctx, "count video likes", `
SELECT COUNT(*)
FROM likes l
JOIN videos v ON v.id = l.video_id
WHERE v.owner_id = $1`, ownerID)
}

func (r *PostgresRepository) ChannelVideos(ctx context.Context, ownerID string) ([]models.Video, error) {
	var videos []models.Video
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		result, err := conn.Query(ctx, `SELECT `+videoColumns+` FROM videos WHERE owner_id = $1 ORDER BY created_at DESC, seq ASC`, ownerID)
		if err != nil {
			return fmt.Errorf("query channel videos: %w", err)
		}
		videos, err = pgx.CollectRows(result, func(row pgx.CollectableRow) (models.Video, error) {
			return scanVideo(row)
		})
		if err != nil {
			return fmt.Errorf("scan channel videos: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []models.Video{}
	}
	return videos, nil
}
