package content

import (
	"context"
	"errors"
	"strings"

	"vidtube/internal/apperr"
	"vidtube/internal/models"
	"vidtube/internal/storage"
)

type PlaylistInput struct {
	Name        string `json:"name" validate:"notblank,max=150"`
	Description string `json:"description" validate:"max=1000"`
}

type PlaylistPatch struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=150"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

func (s *Service) CreatePlaylist(ctx context.Context, actingUserID string, input PlaylistInput) (models.Playlist, error) {
	if err := requireActor(actingUserID); err != nil {
		return models.Playlist{}, err
	}
	if err := s.check(input); err != nil {
		return models.Playlist{}, err
	}
	playlist, err := s.store.CreatePlaylist(ctx, actingUserID, strings.TrimSpace(input.Name), strings.TrimSpace(input.Description))
	if err != nil {
		return models.Playlist{}, s.fail(ctx, err, "user")
	}
	return playlist, nil
}

func (s *Service) UpdatePlaylist(ctx context.Context, actingUserID, playlistID string, patch PlaylistPatch) (models.Playlist, error) {
	if err := s.ownPlaylist(ctx, actingUserID, playlistID, "update"); err != nil {
		return models.Playlist{}, err
	}
	if err := s.check(patch); err != nil {
		return models.Playlist{}, err
	}
	playlist, err := s.store.UpdatePlaylist(ctx, playlistID, storage.PlaylistUpdate{
		Name:        trimmed(patch.Name),
		Description: trimmed(patch.Description),
	})
	if err != nil {
		return models.Playlist{}, s.fail(ctx, err, "playlist")
	}
	return playlist, nil
}

// AddVideo appends a video to the caller's playlist. A video already in the
// playlist is rejected as an invalid argument.
func (s *Service) AddVideo(ctx context.Context, actingUserID, playlistID, videoID string) (models.Playlist, error) {
	if err := requireID(videoID, "video"); err != nil {
		return models.Playlist{}, err
	}
	if err := s.ownPlaylist(ctx, actingUserID, playlistID, "update"); err != nil {
		return models.Playlist{}, err
	}
	if _, err := s.visibleVideo(ctx, actingUserID, videoID); err != nil {
		return models.Playlist{}, err
	}
	playlist, err := s.store.AddPlaylistVideo(ctx, playlistID, videoID)
	switch {
	case err == nil:
		return playlist, nil
	case errors.Is(err, storage.ErrConflict):
		return models.Playlist{}, apperr.Invalid("video already exists in playlist")
	default:
		return models.Playlist{}, s.fail(ctx, err, "playlist")
	}
}

func (s *Service) RemoveVideo(ctx context.Context, actingUserID, playlistID, videoID string) (models.Playlist, error) {
	if err := requireID(videoID, "video"); err != nil {
		return models.Playlist{}, err
	}
	if err := s.ownPlaylist(ctx, actingUserID, playlistID, "update"); err != nil {
		return models.Playlist{}, err
	}
	playlist, err := s.store.RemovePlaylistVideo(ctx, playlistID, videoID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Playlist{}, apperr.NotFound("video not found in playlist")
	}
	if err != nil {
		return models.Playlist{}, s.fail(ctx, err, "playlist")
	}
	return playlist, nil
}

func (s *Service) DeletePlaylist(ctx context.Context, actingUserID, playlistID string) error {
	if err := s.ownPlaylist(ctx, actingUserID, playlistID, "delete"); err != nil {
		return err
	}
	if err := s.store.DeletePlaylist(ctx, playlistID); err != nil {
		return s.fail(ctx, err, "playlist")
	}
	return nil
}

func (s *Service) ownPlaylist(ctx context.Context, actingUserID, playlistID, action string) error {
	if err := requireActor(actingUserID); err != nil {
		return err
	}
	if err := requireID(playlistID, "playlist"); err != nil {
		return err
	}
	playlist, err := s.store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return s.fail(ctx, err, "playlist")
	}
	if playlist.OwnerID != actingUserID {
		return forbidden(action, "playlist")
	}
	return nil
}
