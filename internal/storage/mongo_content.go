package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"vidtube/internal/ids"
	"vidtube/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *MongoRepository) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	if err := r.requireExists(ctx, usersCollection, params.OwnerID); err != nil {
		return models.Video{}, err
	}
	now := r.timestamp()
	doc := videoDocument{
		ID:          ids.New(),
		Owner:       params.OwnerID,
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		Duration:    params.Duration,
		VideoFile:   strings.TrimSpace(params.VideoFile),
		Thumbnail:   strings.TrimSpace(params.Thumbnail),
		IsPublished: params.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
		Seq:         r.seq.next(now),
	}
	if _, err := r.collection(videosCollection).InsertOne(ctx, doc); err != nil {
		return models.Video{}, translateMongoError(err, "insert video")
	}
	return doc.model(), nil
}

func (r *MongoRepository) GetVideo(ctx context.Context, id string) (models.Video, error) {
	var doc videoDocument
	if err := r.collection(videosCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return models.Video{}, translateMongoError(err, "video "+id)
	}
	return doc.model(), nil
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func (r *MongoRepository) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	set := bson.M{"updatedAt": r.timestamp()}
	if update.Title != nil {
		set["title"] = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		set["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Thumbnail != nil {
		set["thumbnail"] = strings.TrimSpace(*update.Thumbnail)
	}
	if update.IsPublished != nil {
		set["isPublished"] = *update.IsPublished
	}
	var doc videoDocument
	err := r.collection(videosCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).
		Decode(&doc)
	if err != nil {
		return models.Video{}, translateMongoError(err, "video "+id)
	}
	return doc.model(), nil
}

func (r *MongoRepository) IncrementVideoViews(ctx context.Context, id string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("view delta must be positive")
	}
	result, err := r.collection(videosCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": delta}})
	if err != nil {
		return translateMongoError(err, "video "+id)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteVideo removes the video and then its dependents. The steps are not
// transactional; a failure midway leaves dangling references that the feed
// pipelines skip.
func (r *MongoRepository) DeleteVideo(ctx context.Context, id string) error {
	result, err := r.collection(videosCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongoError(err, "video "+id)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}

	if _, err := r.collection(likesCollection).DeleteMany(ctx, bson.M{"video": id}); err != nil {
		return fmt.Errorf("delete likes of video %s: %w", id, err)
	}
	commentIDs, err := r.collection(commentsCollection).Distinct(ctx, "_id", bson.M{"video": id})
	if err != nil {
		return fmt.Errorf("list comments of video %s: %w", id, err)
	}
	if len(commentIDs) > 0 {
		if _, err := r.collection(likesCollection).DeleteMany(ctx, bson.M{"comment": bson.M{"$in": commentIDs}}); err != nil {
			return fmt.Errorf("delete comment likes of video %s: %w", id, err)
		}
		if _, err := r.collection(commentsCollection).DeleteMany(ctx, bson.M{"video": id}); err != nil {
			return fmt.Errorf("delete comments of video %s: %w", id, err)
		}
	}
	if _, err := r.collection(playlistsCollection).UpdateMany(ctx, bson.M{"videos": id}, bson.M{"$pull": bson.M{"videos": id}}); err != nil {
		return fmt.Errorf("remove video %s from playlists: %w", id, err)
	}
	return nil
}

func (r *MongoRepository) ListVideos(ctx context.Context, query VideoQuery) ([]models.Video, int64, error) {
	window := query.Window.normalize()
	filter := bson.M{}
	if needle := strings.TrimSpace(query.Query); needle != "" {
		filter["title"] = bson.M{"$regex": regexp.QuoteMeta(needle), "$options": "i"}
	}
	if query.OwnerID != "" {
		filter["owner"] = query.OwnerID
	}
	if query.ViewerID != "" {
		filter["$or"] = bson.A{bson.M{"isPublished": true}, bson.M{"owner": query.ViewerID}}
	} else {
		filter["isPublished"] = true
	}

	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: 1}}
	switch {
	case query.SortBy == SortByViews && query.Ascending:
		sort = append(bson.D{{Key: "views", Value: 1}}, sort...)
	case query.SortBy == SortByViews:
		sort = append(bson.D{{Key: "views", Value: -1}}, sort...)
	case query.Ascending:
		sort = bson.D{{Key: "createdAt", Value: 1}, {Key: "seq", Value: 1}}
	}

	total, err := r.collection(videosCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}
	findOpts := options.Find().SetSort(sort).SetSkip(int64(window.Offset))
	if window.Limit > 0 {
		findOpts.SetLimit(int64(window.Limit))
	}
	cursor, err := r.collection(videosCollection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("list videos: %w", err)
	}
	var docs []videoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode videos: %w", err)
	}
	videos := make([]models.Video, 0, len(docs))
	for _, doc := range docs {
		videos = append(videos, doc.model())
	}
	return videos, total, nil
}

func (r *MongoRepository) CreateComment(ctx context.Context, videoID, ownerID, content string) (models.Comment, error) {
	if err := r.requireExists(ctx, videosCollection, videoID); err != nil {
		return models.Comment{}, err
	}
	if err := r.requireExists(ctx, usersCollection, ownerID); err != nil {
		return models.Comment{}, err
	}
	now := r.timestamp()
	doc := commentDocument{
		ID:        ids.New(),
		Video:     videoID,
		Owner:     ownerID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
		Seq:       r.seq.next(now),
	}
	if _, err := r.collection(commentsCollection).InsertOne(ctx, doc); err != nil {
		return models.Comment{}, translateMongoError(err, "insert comment")
	}
	return doc.model(), nil
}

func (r *MongoRepository) GetComment(ctx context.Context, id string) (models.Comment, error) {
	var doc commentDocument
	if err := r.collection(commentsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return models.Comment{}, translateMongoError(err, "comment "+id)
	}
	return doc.model(), nil
}

func (r *MongoRepository) UpdateComment(ctx context.Context, id, content string) (models.Comment, error) {
	var doc commentDocument
	update := bson.M{"$set": bson.M{"content": strings.TrimSpace(content), "updatedAt": r.timestamp()}}
	if err := r.collection(commentsCollection).FindOneAndUpdate(ctx, bson.M{"_id": id}, update, afterUpdate()).Decode(&doc); err != nil {
		return models.Comment{}, translateMongoError(err, "comment "+id)
	}
	return doc.model(), nil
}

func (r *MongoRepository) DeleteComment(ctx context.Context, id string) error {
	result, err := r.collection(commentsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongoError(err, "comment "+id)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	if _, err := r.collection(likesCollection).DeleteMany(ctx, bson.M{"comment": id}); err != nil {
		return fmt.Errorf("delete likes of comment %s: %w", id, err)
	}
	return nil
}

func (r *MongoRepository) CreateTweet(ctx context.Context, ownerID, content string) (models.Tweet, error) {
	if err := r.requireExists(ctx, usersCollection, ownerID); err != nil {
		return models.Tweet{}, err
	}
	now := r.timestamp()
	doc := tweetDocument{
		ID:        ids.New(),
		Owner:     ownerID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
		Seq:       r.seq.next(now),
	}
	if _, err := r.collection(tweetsCollection).InsertOne(ctx, doc); err != nil {
		return models.Tweet{}, translateMongoError(err, "insert tweet")
	}
	return doc.model(), nil
}

func (r *MongoRepository) GetTweet(ctx context.Context, id string) (models.Tweet, error) {
	var doc tweetDocument
	if err := r.collection(tweetsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return models.Tweet{}, translateMongoError(err, "tweet "+id)
	}
	return doc.model(), nil
}

func (r *MongoRepository) UpdateTweet(ctx context.Context, id, content string) (models.Tweet, error) {
	var doc tweetDocument
	update := bson.M{"$set": bson.M{"content": strings.TrimSpace(content), "updatedAt": r.timestamp()}}
	if err := r.collection(tweetsCollection).FindOneAndUpdate(ctx, bson.M{"_id": id}, update, afterUpdate()).Decode(&doc); err != nil {
		return models.Tweet{}, translateMongoError(err, "tweet "+id)
	}
	return doc.model(), nil
}

func (r *MongoRepository) DeleteTweet(ctx context.Context, id string) error {
	result, err := r.collection(tweetsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongoError(err, "tweet "+id)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("tweet %s: %w", id, ErrNotFound)
	}
	if _, err := r.collection(likesCollection).DeleteMany(ctx, bson.M{"tweet": id}); err != nil {
		return fmt.Errorf("delete likes of tweet %s: %w", id, err)
	}
	return nil
}

func (r *MongoRepository) CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error) {
	if err := r.requireExists(ctx, usersCollection, ownerID); err != nil {
		return models.Playlist{}, err
	}
	now := r.timestamp()
	doc := playlistDocument{
		ID:          ids.New(),
		Owner:       ownerID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Videos:      []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
		Seq:         r.seq.next(now),
	}
	if _, err := r.collection(playlistsCollection).InsertOne(ctx, doc); err != nil {
		return models.Playlist{}, translateMongoError(err, "insert playlist")
	}
	return doc.model(), nil
}

func (r *MongoRepository) GetPlaylist(ctx context.Context, id string) (models.Playlist, error) {
	var doc playlistDocument
	if err := r.collection(playlistsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return models.Playlist{}, translateMongoError(err, "playlist "+id)
	}
	return doc.model(), nil
}

func (r *MongoRepository) UpdatePlaylist(ctx context.Context, id string, update PlaylistUpdate) (models.Playlist, error) {
	set := bson.M{"updatedAt": r.timestamp()}
	if update.Name != nil {
		set["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		set["description"] = strings.TrimSpace(*update.Description)
	}
	var doc playlistDocument
	if err := r.collection(playlistsCollection).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&doc); err != nil {
		return models.Playlist{}, translateMongoError(err, "playlist "+id)
	}
	return doc.model(), nil
}

// AddPlaylistVideo pushes the video only when the playlist does not hold it
// yet, so concurrent adds of the same video cannot duplicate it.
func (r *MongoRepository) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	if err := r.requireExists(ctx, videosCollection, videoID); err != nil {
		return models.Playlist{}, err
	}
	var doc playlistDocument
	err := r.collection(playlistsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": playlistID, "videos": bson.M{"$ne": videoID}},
		bson.M{"$push": bson.M{"videos": videoID}, "$set": bson.M{"updatedAt": r.timestamp()}},
		afterUpdate(),
	).Decode(&doc)
	if err == nil {
		return doc.model(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Playlist{}, translateMongoError(err, "playlist "+playlistID)
	}
	if err := r.requireExists(ctx, playlistsCollection, playlistID); err != nil {
		return models.Playlist{}, err
	}
	return models.Playlist{}, fmt.Errorf("video %s in playlist %s: %w", videoID, playlistID, ErrConflict)
}

func (r *MongoRepository) RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	var doc playlistDocument
	err := r.collection(playlistsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": playlistID, "videos": videoID},
		bson.M{"$pull": bson.M{"videos": videoID}, "$set": bson.M{"updatedAt": r.timestamp()}},
		afterUpdate(),
	).Decode(&doc)
	if err == nil {
		return doc.model(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Playlist{}, translateMongoError(err, "playlist "+playlistID)
	}
	if err := r.requireExists(ctx, playlistsCollection, playlistID); err != nil {
		return models.Playlist{}, err
	}
	return models.Playlist{}, fmt.Errorf("video %s in playlist %s: %w", videoID, playlistID, ErrNotFound)
}

func (r *MongoRepository) DeletePlaylist(ctx context.Context, id string) error {
	result, err := r.collection(playlistsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongoError(err, "playlist "+id)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	return nil
}
