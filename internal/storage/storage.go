package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"vidtube/internal/ids"
	"vidtube/internal/models"
)

type dataset struct {
	Users         map[string]models.User         `json:"users"`
	Videos        map[string]models.Video        `json:"videos"`
	Comments      map[string]models.Comment      `json:"comments"`
	Tweets        map[string]models.Tweet        `json:"tweets"`
	Playlists     map[string]models.Playlist     `json:"playlists"`
	Likes         map[string]models.Like         `json:"likes"`
	Subscriptions map[string]models.Subscription `json:"subscriptions"`
	// Sequence is the last insertion number handed out. Inserted maps every
	// live record id to its number so equal timestamps keep insertion order.
	Sequence uint64            `json:"sequence"`
	Inserted map[string]uint64 `json:"inserted"`
}

type likeKey struct {
	userID string
	target models.Target
}

type subscriptionKey struct {
	subscriberID string
	channelID    string
}

// JSONRepository keeps the whole dataset in memory and mirrors every write to
// a JSON file. With an empty path nothing is written to disk.
type JSONRepository struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	now      func() time.Time

	likeIndex         map[likeKey]string
	subscriptionIndex map[subscriptionKey]string

	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
}

var _ Repository = (*JSONRepository)(nil)

func newDataset() dataset {
	return dataset{
		Users:         make(map[string]models.User),
		Videos:        make(map[string]models.Video),
		Comments:      make(map[string]models.Comment),
		Tweets:        make(map[string]models.Tweet),
		Playlists:     make(map[string]models.Playlist),
		Likes:         make(map[string]models.Like),
		Subscriptions: make(map[string]models.Subscription),
		Inserted:      make(map[string]uint64),
	}
}

func (d *dataset) ensureInitialized() {
	if d.Users == nil {
		d.Users = make(map[string]models.User)
	}
	if d.Videos == nil {
		d.Videos = make(map[string]models.Video)
	}
	if d.Comments == nil {
		d.Comments = make(map[string]models.Comment)
	}
	if d.Tweets == nil {
		d.Tweets = make(map[string]models.Tweet)
	}
	if d.Playlists == nil {
		d.Playlists = make(map[string]models.Playlist)
	}
	if d.Likes == nil {
		d.Likes = make(map[string]models.Like)
	}
	if d.Subscriptions == nil {
		d.Subscriptions = make(map[string]models.Subscription)
	}
	if d.Inserted == nil {
		d.Inserted = make(map[string]uint64)
	}
}

// NewJSONRepository opens the JSON-backed datastore at path, creating an empty
// one when the file does not exist yet.
func NewJSONRepository(path string, opts ...Option) (*JSONRepository, error) {
	store := &JSONRepository{
		filePath: strings.TrimSpace(path),
		now:      defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyJSON(store)
		}
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *JSONRepository) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer s.rebuildIndexesLocked()

	if s.filePath == "" {
		s.data = newDataset()
		return nil
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}

	s.data.ensureInitialized()
	return nil
}

func (s *JSONRepository) rebuildIndexesLocked() {
	s.likeIndex = make(map[likeKey]string, len(s.data.Likes))
	for id, like := range s.data.Likes {
		s.likeIndex[likeKey{userID: like.LikedBy, target: like.Target}] = id
	}
	s.subscriptionIndex = make(map[subscriptionKey]string, len(s.data.Subscriptions))
	for id, sub := range s.data.Subscriptions {
		s.subscriptionIndex[subscriptionKey{subscriberID: sub.SubscriberID, channelID: sub.ChannelID}] = id
	}
}

// commitLocked persists the updated dataset and swaps it in. The live dataset
// is untouched when persisting fails.
func (s *JSONRepository) commitLocked(updated dataset) error {
	if err := s.persistDataset(updated); err != nil {
		return err
	}
	s.data = updated
	s.rebuildIndexesLocked()
	return nil
}

func (s *JSONRepository) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		if err := s.persistOverride(data); err != nil {
			return err
		}
	}
	if s.filePath == "" {
		return nil
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

func cloneDataset(src dataset) dataset {
	clone := newDataset()
	for id, user := range src.Users {
		clone.Users[id] = user
	}
	for id, video := range src.Videos {
		clone.Videos[id] = video
	}
	for id, comment := range src.Comments {
		clone.Comments[id] = comment
	}
	for id, tweet := range src.Tweets {
		clone.Tweets[id] = tweet
	}
	for id, playlist := range src.Playlists {
		cloned := playlist
		if playlist.VideoIDs != nil {
			cloned.VideoIDs = append([]string(nil), playlist.VideoIDs...)
		}
		clone.Playlists[id] = cloned
	}
	for id, like := range src.Likes {
		clone.Likes[id] = like
	}
	for id, sub := range src.Subscriptions {
		clone.Subscriptions[id] = sub
	}
	for id, seq := range src.Inserted {
		clone.Inserted[id] = seq
	}
	clone.Sequence = src.Sequence
	return clone
}

func (d *dataset) recordInsert(id string) {
	d.Sequence++
	d.Inserted[id] = d.Sequence
}

// newestFirst orders by creation time descending, then by insertion order.
func (d *dataset) newestFirst(createdA time.Time, idA string, createdB time.Time, idB string) bool {
	if !createdA.Equal(createdB) {
		return createdA.After(createdB)
	}
	return d.Inserted[idA] < d.Inserted[idB]
}

func (s *JSONRepository) timestamp() time.Time {
	return s.now().UTC()
}

func (s *JSONRepository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.filePath == "" {
		return nil
	}
	dir := filepath.Dir(s.filePath)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	return nil
}

func (s *JSONRepository) Close(context.Context) error {
	return nil
}

func (s *JSONRepository) CreateUser(_ context.Context, params CreateUserParams) (models.User, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return models.User{}, fmt.Errorf("username is required")
	}
	email := strings.ToLower(strings.TrimSpace(params.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.Users {
		if strings.EqualFold(existing.Username, username) {
			return models.User{}, fmt.Errorf("username %s: %w", username, ErrConflict)
		}
		if email != "" && strings.EqualFold(existing.Email, email) {
			return models.User{}, fmt.Errorf("email %s: %w", email, ErrConflict)
		}
	}

	now := s.timestamp()
	user := models.User{
		ID:            ids.New(),
		Username:      strings.ToLower(username),
		Email:         email,
		FullName:      strings.TrimSpace(params.FullName),
		AvatarURL:     strings.TrimSpace(params.AvatarURL),
		CoverImageURL: strings.TrimSpace(params.CoverImageURL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	updated := cloneDataset(s.data)
	updated.Users[user.ID] = user
	updated.recordInsert(user.ID)
	if err := s.commitLocked(updated); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *JSONRepository) GetUser(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return user, nil
}

func (s *JSONRepository) FindUserByUsername(_ context.Context, username string) (models.User, error) {
	needle := strings.TrimSpace(username)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.data.Users {
		if strings.EqualFold(user.Username, needle) {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("user %s: %w", needle, ErrNotFound)
}

func (s *JSONRepository) ChannelVideos(_ context.Context, ownerID string) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	videos := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if video.OwnerID == ownerID {
			videos = append(videos, video)
		}
	}
	sort.SliceStable(videos, func(i, j int) bool {
		return s.data.newestFirst(videos[i].CreatedAt, videos[i].ID, videos[j].CreatedAt, videos[j].ID)
	})
	return videos, nil
}
