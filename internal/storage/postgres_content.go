package storage

import (
	"context"
	"fmt"
	"strings"

	"vidtube/internal/ids"
	"vidtube/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const videoColumns = `id, owner_id, title, description, duration, views, video_file, thumbnail, is_published, created_at, updated_at`

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.OwnerID, &video.Title, &video.Description, &video.Duration, &video.Views,
		&video.VideoFile, &video.Thumbnail, &video.IsPublished, &video.CreatedAt, &video.UpdatedAt)
	return video, err
}

func (r *PostgresRepository) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	now := r.timestamp()
	video := models.Video{
		ID:          ids.New(),
		OwnerID:     params.OwnerID,
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		Duration:    params.Duration,
		VideoFile:   strings.TrimSpace(params.VideoFile),
		Thumbnail:   strings.TrimSpace(params.Thumbnail),
		IsPublished: params.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
INSERT INTO videos (id, owner_id, title, description, duration, views, video_file, thumbnail, is_published, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10)
`, video.ID, video.OwnerID, video.Title, video.Description, video.Duration, video.VideoFile, video.Thumbnail,
			video.IsPublished, video.CreatedAt, video.UpdatedAt)
		return translatePgError(err, "insert video")
	})
	if err != nil {
		return models.Video{}, err
	}
	return video, nil
}

func (r *PostgresRepository) GetVideo(ctx context.Context, id string) (models.Video, error) {
	var video models.Video
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		video, err = scanVideo(conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
		return translatePgError(err, "video "+id)
	})
	return video, err
}

func (r *PostgresRepository) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	var video models.Video
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		video, err = scanVideo(conn.QueryRow(ctx, `
UPDATE videos SET
    title = COALESCE($2, title),
    description = COALESCE($3, description),
    thumbnail = COALESCE($4, thumbnail),
    is_published = COALESCE($5, is_published),
    updated_at = $6
WHERE id = $1
RETURNING `+videoColumns,
			id, trimmedPtr(update.Title), trimmedPtr(update.Description), trimmedPtr(update.Thumbnail), update.IsPublished, r.timestamp()))
		return translatePgError(err, "video "+id)
	})
	return video, err
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func (r *PostgresRepository) IncrementVideoViews(ctx context.Context, id string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("view delta must be positive")
	}
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `UPDATE videos SET views = views + $2 WHERE id = $1`, id, delta)
		if err != nil {
			return translatePgError(err, "video "+id)
		}
		return requireAffected(tag, "video "+id)
	})
}

// DeleteVideo relies on ON DELETE CASCADE for likes, comments, comment likes
// and playlist entries.
func (r *PostgresRepository) DeleteVideo(ctx context.Context, id string) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
		if err != nil {
			return translatePgError(err, "video "+id)
		}
		return requireAffected(tag, "video "+id)
	})
}

var likePatternEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *PostgresRepository) ListVideos(ctx context.Context, query VideoQuery) ([]models.Video, int64, error) {
	window := query.Window.normalize()
	pattern := ""
	if needle := strings.TrimSpace(query.Query); needle != "" {
		pattern = "%" + likePatternEscaper.Replace(needle) + "%"
	}

	order := "created_at DESC, seq ASC"
	switch {
	case query.SortBy == SortByViews && query.Ascending:
		order = "views ASC, created_at DESC, seq ASC"
	case query.SortBy == SortByViews:
		order = "views DESC, created_at DESC, seq ASC"
	case query.Ascending:
		order = "created_at ASC, seq ASC"
	}

	const filter = `
WHERE ($1 = '' OR title ILIKE $1)
  AND ($2 = '' OR owner_id = $2)
  AND (is_published OR ($3 <> '' AND owner_id = $3))`

	var (
		videos []models.Video
		total  int64
	)
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM videos`+filter, pattern, query.OwnerID, query.ViewerID).Scan(&total); err != nil {
			return fmt.Errorf("count videos: %w", err)
		}
		rows, err := conn.Query(ctx, `SELECT `+videoColumns+` FROM videos`+filter+`
ORDER BY `+order+`
OFFSET $4 LIMIT $5`, pattern, query.OwnerID, query.ViewerID, window.Offset, limitArg(window.Limit))
		if err != nil {
			return fmt.Errorf("list videos: %w", err)
		}
		videos, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Video, error) {
			return scanVideo(row)
		})
		if err != nil {
			return fmt.Errorf("scan videos: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if videos == nil {
		videos = []models.Video{}
	}
	return videos, total, nil
}

// limitArg turns a non-positive limit into NULL, which Postgres reads as no
// limit.
func limitArg(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

const commentColumns = `id, video_id, owner_id, content, created_at, updated_at`

func scanComment(row pgx.Row) (models.Comment, error) {
	var comment models.Comment
	err := row.Scan(&comment.ID, &comment.VideoID, &comment.OwnerID, &comment.Content, &comment.CreatedAt, &comment.UpdatedAt)
	return comment, err
}

func (r *PostgresRepository) CreateComment(ctx context.Context, videoID, ownerID, content string) (models.Comment, error) {
	now := r.timestamp()
	comment := models.Comment{
		ID:        ids.New(),
		VideoID:   videoID,
		OwnerID:   ownerID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
INSERT INTO comments (id, video_id, owner_id, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, comment.ID, comment.VideoID, comment.OwnerID, comment.Content, comment.CreatedAt, comment.UpdatedAt)
		return translatePgError(err, "insert comment")
	})
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *PostgresRepository) GetComment(ctx context.Context, id string) (models.Comment, error) {
	var comment models.Comment
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		comment, err = scanComment(conn.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
		return translatePgError(err, "comment "+id)
	})
	return comment, err
}

func (r *PostgresRepository) UpdateComment(ctx context.Context, id, content string) (models.Comment, error) {
	var comment models.Comment
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		comment, err = scanComment(conn.QueryRow(ctx, `
UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1
RETURNING `+commentColumns, id, strings.TrimSpace(content), r.timestamp()))
		return translatePgError(err, "comment "+id)
	})
	return comment, err
}

func (r *PostgresRepository) DeleteComment(ctx context.Context, id string) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
		if err != nil {
			return translatePgError(err, "comment "+id)
		}
		return requireAffected(tag, "comment "+id)
	})
}

const tweetColumns = `id, owner_id, content, created_at, updated_at`

func scanTweet(row pgx.Row) (models.Tweet, error) {
	var tweet models.Tweet
	err := row.Scan(&tweet.ID, &tweet.OwnerID, &tweet.Content, &tweet.CreatedAt, &tweet.UpdatedAt)
	return tweet, err
}

func (r *PostgresRepository) CreateTweet(ctx context.Context, ownerID, content string) (models.Tweet, error) {
	now := r.timestamp()
	tweet := models.Tweet{
		ID:        ids.New(),
		OwnerID:   ownerID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
INSERT INTO tweets (id, owner_id, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
`, tweet.ID, tweet.OwnerID, tweet.Content, tweet.CreatedAt, tweet.UpdatedAt)
		return translatePgError(err, "insert tweet")
	})
	if err != nil {
		return models.Tweet{}, err
	}
	return tweet, nil
}

func (r *PostgresRepository) GetTweet(ctx context.Context, id string) (models.Tweet, error) {
	var tweet models.Tweet
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		tweet, err = scanTweet(conn.QueryRow(ctx, `SELECT `+tweetColumns+` FROM tweets WHERE id = $1`, id))
		return translatePgError(err, "tweet "+id)
	})
	return tweet, err
}

func (r *PostgresRepository) UpdateTweet(ctx context.Context, id, content string) (models.Tweet, error) {
	var tweet models.Tweet
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		tweet, err = scanTweet(conn.QueryRow(ctx, `
UPDATE tweets SET content = $2, updated_at = $3 WHERE id = $1
RETURNING `+tweetColumns, id, strings.TrimSpace(content), r.timestamp()))
		return translatePgError(err, "tweet "+id)
	})
	return tweet, err
}

func (r *PostgresRepository) DeleteTweet(ctx context.Context, id string) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM tweets WHERE id = $1`, id)
		if err != nil {
			return translatePgError(err, "tweet "+id)
		}
		return requireAffected(tag, "tweet "+id)
	})
}

const playlistColumns = `id, owner_id, name, description, created_at, updated_at`

// loadPlaylist reads the playlist row and its video ids in position order.
func loadPlaylist(ctx context.Context, q querier, id string) (models.Playlist, error) {
	var playlist models.Playlist
	err := q.QueryRow(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id).
		Scan(&playlist.ID, &playlist.OwnerID, &playlist.Name, &playlist.Description, &playlist.CreatedAt, &playlist.UpdatedAt)
	if err != nil {
		return models.Playlist{}, translatePgError(err, "playlist "+id)
	}
	rows, err := q.Query(ctx, `SELECT video_id FROM playlist_videos WHERE playlist_id = $1 ORDER BY position`, id)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("list playlist videos: %w", err)
	}
	videoIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return models.Playlist{}, fmt.Errorf("scan playlist videos: %w", err)
	}
	playlist.VideoIDs = append([]string{}, videoIDs...)
	return playlist, nil
}

// querier is satisfied by both pooled connections and transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepository) CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error) {
	now := r.timestamp()
	playlist := models.Playlist{
		ID:          ids.New(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		VideoIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
INSERT INTO playlists (id, owner_id, name, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, playlist.ID, playlist.OwnerID, playlist.Name, playlist.Description, playlist.CreatedAt, playlist.UpdatedAt)
		return translatePgError(err, "insert playlist")
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

func (r *PostgresRepository) GetPlaylist(ctx context.Context, id string) (models.Playlist, error) {
	var playlist models.Playlist
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		playlist, err = loadPlaylist(ctx, conn, id)
		return err
	})
	return playlist, err
}

func (r *PostgresRepository) UpdatePlaylist(ctx context.Context, id string, update PlaylistUpdate) (models.Playlist, error) {
	var playlist models.Playlist
	err := r.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE playlists SET
    name = COALESCE($2, name),
    description = COALESCE($3, description),
    updated_at = $4
WHERE id = $1`, id, trimmedPtr(update.Name), trimmedPtr(update.Description), r.timestamp())
		if err != nil {
			return translatePgError(err, "playlist "+id)
		}
		if err := requireAffected(tag, "playlist "+id); err != nil {
			return err
		}
		playlist, err = loadPlaylist(ctx, tx, id)
		return err
	})
	return playlist, err
}

func (r *PostgresRepository) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	var playlist models.Playlist
	err := r.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE playlists SET updated_at = $2 WHERE id = $1`, playlistID, r.timestamp())
		if err != nil {
			return translatePgError(err, "playlist "+playlistID)
		}
		if err := requireAffected(tag, "playlist "+playlistID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
INSERT INTO playlist_videos (playlist_id, video_id, position)
SELECT $1, $2, COALESCE(MAX(position), 0) + 1 FROM playlist_videos WHERE playlist_id = $1
`, playlistID, videoID)
		if err != nil {
			return translatePgError(err, "add video "+videoID+" to playlist "+playlistID)
		}
		playlist, err = loadPlaylist(ctx, tx, playlistID)
		return err
	})
	return playlist, err
}

func (r *PostgresRepository) RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	var playlist models.Playlist
	err := r.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2`, playlistID, videoID)
		if err != nil {
			return translatePgError(err, "playlist "+playlistID)
		}
		if tag.RowsAffected() == 0 {
			if _, err := loadPlaylist(ctx, tx, playlistID); err != nil {
				return err
			}
			return fmt.Errorf("video %s in playlist %s: %w", videoID, playlistID, ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `UPDATE playlists SET updated_at = $2 WHERE id = $1`, playlistID, r.timestamp()); err != nil {
			return translatePgError(err, "playlist "+playlistID)
		}
		playlist, err = loadPlaylist(ctx, tx, playlistID)
		return err
	})
	return playlist, err
}

func (r *PostgresRepository) DeletePlaylist(ctx context.Context, id string) error {
	return r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
		if err != nil {
			return translatePgError(err, "playlist "+id)
		}
		return requireAffected(tag, "playlist "+id)
	})
}
