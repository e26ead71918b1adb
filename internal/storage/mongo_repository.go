package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidtube/internal/ids"
	"vidtube/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig describes the MongoDB client used by the repository.
type MongoConfig struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	MinPoolSize            uint64
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	ApplicationName        string
	Clock                  func() time.Time
}

func newMongoConfig(uri, database string, opts ...Option) MongoConfig {
	cfg := MongoConfig{
		URI:                    uri,
		Database:               database,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		ApplicationName:        "vidtube",
		Clock:                  defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyMongo(&cfg)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = defaultClock
	}
	return cfg
}

// MongoRepository stores each entity in its own collection and assembles
// feeds with aggregation pipelines.
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    MongoConfig
	seq    insertSequence
}

var _ Repository = (*MongoRepository)(nil)

// NewMongoRepository connects to MongoDB. EnsureIndexes must have run before
// the repository serves traffic; the unique indexes back ErrConflict.
func NewMongoRepository(ctx context.Context, uri, database string, opts ...Option) (*MongoRepository, error) {
	cfg := newMongoConfig(uri, database, opts...)
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("mongo uri required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("mongo database required")
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(cfg.ApplicationName).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(cfg.MinPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &MongoRepository{client: client, db: client.Database(cfg.Database), cfg: cfg}, nil
}

func (r *MongoRepository) collection(name string) *mongo.Collection {
	return r.db.Collection(name)
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoRepository) Close(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

// Drop removes the repository's database.
func (r *MongoRepository) Drop(ctx context.Context) error {
	return r.db.Drop(ctx)
}

// EnsureIndexes creates the unique and lookup indexes. It is idempotent.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	byString := func(field string) bson.M {
		return bson.M{field: bson.M{"$type": "string"}}
	}
	newestFirst := func(field string) bson.D {
		return bson.D{{Key: field, Value: 1}, {Key: "createdAt", Value: -1}}
	}
	plan := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName("users_username_key").SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("users_email_key").SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}})},
		},
		videosCollection: {
			{Keys: newestFirst("owner"), Options: options.Index().SetName("videos_owner_idx")},
		},
		commentsCollection: {
			{Keys: newestFirst("video"), Options: options.Index().SetName("comments_video_idx")},
		},
		tweetsCollection: {
			{Keys: newestFirst("owner"), Options: options.Index().SetName("tweets_owner_idx")},
		},
		playlistsCollection: {
			{Keys: newestFirst("owner"), Options: options.Index().SetName("playlists_owner_idx")},
		},
		likesCollection: {
			{Keys: bson.D{{Key: "likedBy", Value: 1}, {Key: "video", Value: 1}}, Options: options.Index().SetName("likes_video_key").
				SetUnique(true).SetPartialFilterExpression(byString("video"))},
			{Keys: bson.D{{Key: "likedBy", Value: 1}, {Key: "comment", Value: 1}}, Options: options.Index().SetName("likes_comment_key").
				SetUnique(true).SetPartialFilterExpression(byString("comment"))},
			{Keys: bson.D{{Key: "likedBy", Value: 1}, {Key: "tweet", Value: 1}}, Options: options.Index().SetName("likes_tweet_key").
				SetUnique(true).SetPartialFilterExpression(byString("tweet"))},
			{Keys: bson.D{{Key: "video", Value: 1}}, Options: options.Index().SetName("likes_video_idx").SetPartialFilterExpression(byString("video"))},
			{Keys: bson.D{{Key: "comment", Value: 1}}, Options: options.Index().SetName("likes_comment_idx").SetPartialFilterExpression(byString("comment"))},
			{Keys: bson.D{{Key: "tweet", Value: 1}}, Options: options.Index().SetName("likes_tweet_idx").SetPartialFilterExpression(byString("tweet"))},
		},
		subscriptionsCollection: {
			{Keys: bson.D{{Key: "subscriber", Value: 1}, {Key: "channel", Value: 1}}, Options: options.Index().SetName("subscriptions_pair_key").SetUnique(true)},
			{Keys: newestFirst("channel"), Options: options.Index().SetName("subscriptions_channel_idx")},
		},
	}
	for name, indexes := range plan {
		if _, err := r.collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// translateMongoError maps driver errors onto the storage sentinels.
func translateMongoError(err error, subject string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", subject, ErrNotFound)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", subject, ErrConflict)
	}
	return fmt.Errorf("%s: %w", subject, err)
}

// timestamp truncates to the millisecond precision BSON dates keep.
func (r *MongoRepository) timestamp() time.Time {
	return r.cfg.Clock().UTC().Truncate(time.Millisecond)
}

func (r *MongoRepository) exists(ctx context.Context, collection, id string) (bool, error) {
	count, err := r.collection(collection).CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("lookup %s %s: %w", collection, id, err)
	}
	return count > 0, nil
}

func (r *MongoRepository) requireExists(ctx context.Context, collection, id string) error {
	ok, err := r.exists(ctx, collection, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(collection, "s"), id, ErrNotFound)
	}
	return nil
}

func (r *MongoRepository) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return models.User{}, fmt.Errorf("username is required")
	}
	now := r.timestamp()
	doc := userDocument{
		ID:         ids.New(),
		Username:   strings.ToLower(username),
		Email:      strings.ToLower(strings.TrimSpace(params.Email)),
		FullName:   strings.TrimSpace(params.FullName),
		Avatar:     strings.TrimSpace(params.AvatarURL),
		CoverImage: strings.TrimSpace(params.CoverImageURL),
		CreatedAt:  now,
		UpdatedAt:  now,
		Seq:        r.seq.next(now),
	}
	if _, err := r.collection(usersCollection).InsertOne(ctx, doc); err != nil {
		return models.User{}, translateMongoError(err, "insert user "+doc.Username)
	}
	return doc.model(), nil
}

func (r *MongoRepository) GetUser(ctx context.Context, id string) (models.User, error) {
	var doc userDocument
	if err := r.collection(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return models.User{}, translateMongoError(err, "user "+id)
	}
	return doc.model(), nil
}

func (r *MongoRepository) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	needle := strings.ToLower(strings.TrimSpace(username))
	var doc userDocument
	if err := r.collection(usersCollection).FindOne(ctx, bson.M{"username": needle}).Decode(&doc); err != nil {
		return models.User{}, translateMongoError(err, "user "+needle)
	}
	return doc.model(), nil
}
