package storage

import (
	"context"
	"fmt"
	"time"

	"vidtube/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ownerProjection   = bson.M{"_id": 1, "username": 1, "fullName": 1, "avatar": 1}
	channelProjection = bson.M{"_id": 1, "username": 1, "fullName": 1, "avatar": 1, "createdAt": 1}
	videoProjection   = bson.M{"_id": 1, "title": 1, "description": 1, "thumbnail": 1, "duration": 1, "views": 1, "owner": 1, "createdAt": 1}
)

func stage(name string, value any) bson.D {
	return bson.D{{Key: name, Value: value}}
}

func newestFirstSort() bson.D {
	return bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: 1}}
}

// lookupByID joins the documents of from whose _id equals localField.
func lookupByID(from, localField, as string, projection bson.M) bson.D {
	return stage("$lookup", bson.M{
		"from":         from,
		"localField":   localField,
		"foreignField": "_id",
		"as":           as,
		"pipeline":     bson.A{stage("$project", projection)},
	})
}

// lookupLikers joins the likers of the current document for a target field.
func lookupLikers(field string) bson.D {
	return stage("$lookup", bson.M{
		"from":         likesCollection,
		"localField":   "_id",
		"foreignField": field,
		"as":           "likes",
		"pipeline":     bson.A{stage("$project", bson.M{"likedBy": 1})},
	})
}

func likeDecorations(viewerID string) bson.D {
	return stage("$addFields", bson.M{
		"likesCount": bson.M{"$size": "$likes"},
		"isLiked":    bson.M{"$in": bson.A{viewerID, "$likes.likedBy"}},
	})
}

func windowStages(window Window) mongo.Pipeline {
	window = window.normalize()
	stages := mongo.Pipeline{}
	if window.Offset > 0 {
		stages = append(stages, stage("$skip", int64(window.Offset)))
	}
	if window.Limit > 0 {
		stages = append(stages, stage("$limit", int64(window.Limit)))
	}
	return stages
}

func concatPipeline(parts ...mongo.Pipeline) mongo.Pipeline {
	var out mongo.Pipeline
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

func aggregateAll[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll.Name(), err)
	}
	results := make([]T, 0)
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode %s aggregate: %w", coll.Name(), err)
	}
	return results, nil
}

type likedVideoResult struct {
	Video   videoDocument `bson:"video"`
	Owner   userDocument  `bson:"owner"`
	LikedAt time.Time     `bson:"likedAt"`
}

func (r *MongoRepository) LikedVideos(ctx context.Context, userID string, window Window) ([]models.LikedVideo, error) {
	pipeline := concatPipeline(
		mongo.Pipeline{
			stage("$match", bson.M{"likedBy": userID, "video": bson.M{"$type": "string"}}),
			stage("$sort", newestFirstSort()),
			lookupByID(videosCollection, "video", "video", videoProjection),
			stage("$unwind", "$video"),
			lookupByID(usersCollection, "video.owner", "owner", ownerProjection),
			stage("$unwind", "$owner"),
		},
		windowStages(window),
		mongo.Pipeline{
			stage("$project", bson.M{"_id": 0, "video": 1, "owner": 1, "likedAt": "$createdAt"}),
		},
	)
	results, err := aggregateAll[likedVideoResult](ctx, r.collection(likesCollection), pipeline)
	if err != nil {
		return nil, err
	}
	rows := make([]models.LikedVideo, 0, len(results))
	for _, result := range results {
		rows = append(rows, models.LikedVideo{
			ID:          result.Video.ID,
			Title:       result.Video.Title,
			Description: result.Video.Description,
			Duration:    result.Video.Duration,
			Views:       result.Video.Views,
			Thumbnail:   result.Video.Thumbnail,
			Owner:       result.Owner.summary(),
			CreatedAt:   result.Video.CreatedAt.UTC(),
			LikedAt:     result.LikedAt.UTC(),
		})
	}
	return rows, nil
}

type decoratedResult struct {
	ID         string       `bson:"_id"`
	Video      string       `bson:"video"`
	Content    string       `bson:"content"`
	Owner      userDocument `bson:"owner"`
	LikesCount int64        `bson:"likesCount"`
	IsLiked    bool         `bson:"isLiked"`
	CreatedAt  time.Time    `bson:"createdAt"`
	UpdatedAt  time.Time    `bson:"updatedAt"`
}

// decoratedPipeline lists documents of one parent newest first with their
// owner and like state.
func decoratedPipeline(match bson.M, likeField, viewerID string, window Window) mongo.Pipeline {
	return concatPipeline(
		mongo.Pipeline{
			stage("$match", match),
			stage("$sort", newestFirstSort()),
			lookupByID(usersCollection, "owner", "owner", ownerProjection),
			stage("$unwind", "$owner"),
		},
		windowStages(window),
		mongo.Pipeline{
			lookupLikers(likeField),
			likeDecorations(viewerID),
			stage("$project", bson.M{"likes": 0, "seq": 0}),
		},
	)
}

func (r *MongoRepository) UserTweets(ctx context.Context, ownerID, viewerID string, window Window) ([]models.TweetView, error) {
	pipeline := decoratedPipeline(bson.M{"owner": ownerID}, "tweet", viewerID, window)
	results, err := aggregateAll[decoratedResult](ctx, r.collection(tweetsCollection), pipeline)
	if err != nil {
		return nil, err
	}
	rows := make([]models.TweetView, 0, len(results))
	for _, result := range results {
		rows = append(rows, models.TweetView{
			ID:         result.ID,
			Content:    result.Content,
			Owner:      result.Owner.summary(),
			LikesCount: result.LikesCount,
			IsLiked:    result.IsLiked,
			CreatedAt:  result.CreatedAt.UTC(),
		})
	}
	return rows, nil
}

func (r *MongoRepository) CountTweets(ctx context.Context, ownerID string) (int64, error) {
	return r.countDocuments(ctx, tweetsCollection, bson.M{"owner": ownerID})
}

func (r *MongoRepository) VideoComments(ctx context.Context, videoID, viewerID string, window Window) ([]models.CommentView, error) {
	pipeline := decoratedPipeline(bson.M{"video": videoID}, "comment", viewerID, window)
	results, err := aggregateAll[decoratedResult](ctx, r.collection(commentsCollection), pipeline)
	if err != nil {
		return nil, err
	}
	rows := make([]models.CommentView, 0, len(results))
	for _, result := range results {
		rows = append(rows, models.CommentView{
			ID:         result.ID,
			VideoID:    result.Video,
			Content:    result.Content,
			Owner:      result.Owner.summary(),
			LikesCount: result.LikesCount,
			IsLiked:    result.IsLiked,
			CreatedAt:  result.CreatedAt.UTC(),
			UpdatedAt:  result.UpdatedAt.UTC(),
		})
	}
	return rows, nil
}

func (r *MongoRepository) CountComments(ctx context.Context, videoID string) (int64, error) {
	return r.countDocuments(ctx, commentsCollection, bson.M{"video": videoID})
}

type playlistViewResult struct {
	ID          string          `bson:"_id"`
	Name        string          `bson:"name"`
	Description string          `bson:"description"`
	Videos      []string        `bson:"videos"`
	VideoDocs   []videoDocument `bson:"videoDocs"`
	Owner       userDocument    `bson:"owner"`
	TotalVideos int64           `bson:"totalVideos"`
	TotalViews  int64           `bson:"totalViews"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

// view restores playlist order, which $lookup does not preserve.
func (p playlistViewResult) view(detailed bool) models.PlaylistView {
	byID := make(map[string]videoDocument, len(p.VideoDocs))
	for _, doc := range p.VideoDocs {
		byID[doc.ID] = doc
	}
	videos := make([]models.PlaylistVideo, 0, len(p.VideoDocs))
	for _, id := range p.Videos {
		doc, ok := byID[id]
		if !ok {
			continue
		}
		entry := models.PlaylistVideo{
			ID:        doc.ID,
			Title:     doc.Title,
			Thumbnail: doc.Thumbnail,
			Duration:  doc.Duration,
			Views:     doc.Views,
		}
		if detailed {
			entry.Description = doc.Description
			entry.OwnerID = doc.Owner
		}
		videos = append(videos, entry)
	}
	return models.PlaylistView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner.summary(),
		Videos:      videos,
		TotalVideos: int(p.TotalVideos),
		TotalViews:  p.TotalViews,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func playlistPipeline(match bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		stage("$match", match),
		stage("$sort", newestFirstSort()),
		lookupByID(usersCollection, "owner", "owner", ownerProjection),
		stage("$unwind", "$owner"),
		lookupByID(videosCollection, "videos", "videoDocs", videoProjection),
		stage("$addFields", bson.M{
			"totalVideos": bson.M{"$size": "$videoDocs"},
			"totalViews":  bson.M{"$sum": "$videoDocs.views"},
		}),
	}
}

func (r *MongoRepository) UserPlaylists(ctx context.Context, ownerID string) ([]models.PlaylistView, error) {
	results, err := aggregateAll[playlistViewResult](ctx, r.collection(playlistsCollection), playlistPipeline(bson.M{"owner": ownerID}))
	if err != nil {
		return nil, err
	}
	views := make([]models.PlaylistView, 0, len(results))
	for _, result := range results {
		views = append(views, result.view(false))
	}
	return views, nil
}

func (r *MongoRepository) PlaylistDetail(ctx context.Context, playlistID string) (models.PlaylistView, error) {
	results, err := aggregateAll[playlistViewResult](ctx, r.collection(playlistsCollection), playlistPipeline(bson.M{"_id": playlistID}))
	if err != nil {
		return models.PlaylistView{}, err
	}
	if len(results) == 0 {
		return models.PlaylistView{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
	}
	return results[0].view(true), nil
}

type subscriberResult struct {
	User      userDocument `bson:"user"`
	CreatedAt time.Time    `bson:"createdAt"`
}

func (r *MongoRepository) ChannelSubscribers(ctx context.Context, channelID string, window Window) ([]models.SubscriberView, error) {
	pipeline := concatPipeline(
		mongo.Pipeline{
			stage("$match", bson.M{"channel": channelID}),
			stage("$sort", newestFirstSort()),
			lookupByID(usersCollection, "subscriber", "user", channelProjection),
			stage("$unwind", "$user"),
		},
		windowStages(window),
		mongo.Pipeline{
			stage("$project", bson.M{"_id": 0, "user": 1, "createdAt": 1}),
		},
	)
	results, err := aggregateAll[subscriberResult](ctx, r.collection(subscriptionsCollection), pipeline)
	if err != nil {
		return nil, err
	}
	rows := make([]models.SubscriberView, 0, len(results))
	for _, result := range results {
		rows = append(rows, models.SubscriberView{
			Subscriber:   result.User.channelSummary(),
			SubscribedAt: result.CreatedAt.UTC(),
		})
	}
	return rows, nil
}

type subscribedChannelResult struct {
	User        userDocument `bson:"user"`
	TotalVideos int64        `bson:"totalVideos"`
	TotalViews  int64        `bson:"totalViews"`
	CreatedAt   time.Time    `bson:"createdAt"`
}

func (r *MongoRepository) SubscribedChannels(ctx context.Context, subscriberID string, window Window) ([]models.SubscribedChannelView, error) {
	pipeline := concatPipeline(
		mongo.Pipeline{
			stage("$match", bson.M{"subscriber": subscriberID}),
			stage("$sort", newestFirstSort()),
			lookupByID(usersCollection, "channel", "user", channelProjection),
			stage("$unwind", "$user"),
		},
		windowStages(window),
		mongo.Pipeline{
			stage("$lookup", bson.M{
				"from":         videosCollection,
				"localField":   "user._id",
				"foreignField": "owner",
				"as":           "channelVideos",
				"pipeline":     bson.A{stage("$project", bson.M{"views": 1})},
			}),
			stage("$addFields", bson.M{
				"totalVideos": bson.M{"$size": "$channelVideos"},
				"totalViews":  bson.M{"$sum": "$channelVideos.views"},
			}),
			stage("$project", bson.M{"_id": 0, "user": 1, "totalVideos": 1, "totalViews": 1, "createdAt": 1}),
		},
	)
	results, err := aggregateAll[subscribedChannelResult](ctx, r.collection(subscriptionsCollection), pipeline)
	if err != nil {
		return nil, err
	}
	rows := make([]models.SubscribedChannelView, 0, len(results))
	for _, result := range results {
		rows = append(rows, models.SubscribedChannelView{
			Channel:      result.User.channelSummary(),
			TotalVideos:  result.TotalVideos,
			TotalViews:   result.TotalViews,
			SubscribedAt: result.CreatedAt.UTC(),
		})
	}
	return rows, nil
}

func (r *MongoRepository) countDocuments(ctx context.Context, collection string, filter bson.M) (int64, error) {
	count, err := r.collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return count, nil
}

func (r *MongoRepository) CountSubscriptions(ctx context.Context, subscriberID string) (int64, error) {
	return r.countDocuments(ctx, subscriptionsCollection, bson.M{"subscriber": subscriberID})
}

func (r *MongoRepository) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	return r.countDocuments(ctx, subscriptionsCollection, bson.M{"channel": channelID})
}

func (r *MongoRepository) CountVideos(ctx context.Context, ownerID string) (int64, error) {
	return r.countDocuments(ctx, videosCollection, bson.M{"owner": ownerID})
}

type totalResult struct {
	Total int64 `bson:"total"`
}

// sumTotal runs a pipeline ending in a single-group stage and returns its
// total, or 0 when nothing matched.
func (r *MongoRepository) sumTotal(ctx context.Context, collection string, pipeline mongo.Pipeline) (int64, error) {
	results, err := aggregateAll[totalResult](ctx, r.collection(collection), pipeline)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (r *MongoRepository) SumVideoViews(ctx context.Context, ownerID string) (int64, error) {
	return r.sumTotal(ctx, videosCollection, mongo.Pipeline{
		stage("$match", bson.M{"owner": ownerID}),
		stage("$group", bson.M{"_id": nil, "total": bson.M{"$sum": "$views"}}),
	})
}

func (r *MongoRepository) CountVideoLikes(ctx context.Context, ownerID string) (int64, error) {
	return r.sumTotal(ctx, videosCollection, mongo.Pipeline{
		stage("$match", bson.M{"owner": ownerID}),
		stage("$lookup", bson.M{
			"from":         likesCollection,
			"localField":   "_id",
			"foreignField": "video",
			"as":           "likes",
			"pipeline":     bson.A{stage("$project", bson.M{"_id": 1})},
		}),
		stage("$group", bson.M{"_id": nil, "total": bson.M{"$sum": bson.M{"$size": "$likes"}}}),
	})
}

func (r *MongoRepository) ChannelVideos(ctx context.Context, ownerID string) ([]models.Video, error) {
	cursor, err := r.collection(videosCollection).Find(ctx, bson.M{"owner": ownerID}, options.Find().SetSort(newestFirstSort()))
	if err != nil {
		return nil, fmt.Errorf("list channel videos: %w", err)
	}
	var docs []videoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode channel videos: %w", err)
	}
	videos := make([]models.Video, 0, len(docs))
	for _, doc := range docs {
		videos = append(videos, doc.model())
	}
	return videos, nil
}
