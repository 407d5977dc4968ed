package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/todo"
	repo "todoTracker/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const slowOperation = 100 * time.Millisecond

type document struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Completed   bool               `bson:"completed"`
	Priority    string             `bson:"priority"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
	Version     int                `bson:"version"`
}

func (d *document) toModel() *todo.Todo {
	return &todo.Todo{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Completed:   d.Completed,
		Priority:    todo.Priority(d.Priority),
		CreatedAt:   todo.Timestamp(d.CreatedAt),
		UpdatedAt:   todo.Timestamp(d.UpdatedAt),
		Version:     d.Version,
	}
}

type Storage struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

func New(ctx context.Context, uri, database, collection string) (*Storage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		logger.Error("Repository: failed to connect to MongoDB", err)
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("Repository: MongoDB ping failed", err)
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Storage{
		client:     client,
		collection: client.Database(database).Collection(collection),
		now:        time.Now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		logger.Warn("Repository: failed to create createdAt index", zap.Error(err))
	}

	logger.Info("Repository: connected to MongoDB",
		zap.String("database", database),
		zap.String("collection", collection))
	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
	})
	return err
}

func (s *Storage) Close(ctx context.Context) error {
	logger.Info("Repository: closing MongoDB connection")
	return s.client.Disconnect(ctx)
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("Repository: MongoDB ping failed", err)
		return fmt.Errorf("ping mongodb: %w", err)
	}
	return nil
}

// Truncate removes every document. Only integration tests call it.
func (s *Storage) Truncate(ctx context.Context) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{})
	return err
}

func (s *Storage) Create(ctx context.Context, todoToCreate *todo.Todo) error {
	start := time.Now()

	now := todo.Timestamp(s.now())
	doc := document{
		ID:          primitive.NewObjectID(),
		Title:       todoToCreate.Title,
		Description: todoToCreate.Description,
		Completed:   todoToCreate.Completed,
		Priority:    string(todoToCreate.Priority),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		logger.Error("Repository: failed to insert todo", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("insert todo: %w", err)
	}

	*todoToCreate = *doc.toModel()
	warnIfSlow(start)
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*todo.Todo, error) {
	start := time.Now()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repo.ErrNotFound
	}

	var doc document
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to find todo", err, zap.String("todo_id", id))
		return nil, fmt.Errorf("find todo: %w", err)
	}

	warnIfSlow(start)
	return doc.toModel(), nil
}

func (s *Storage) List(ctx context.Context) ([]*todo.Todo, error) {
	start := time.Now()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		logger.Error("Repository: failed to list todos", err)
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		logger.Error("Repository: failed to decode todos", err)
		return nil, fmt.Errorf("decode todos: %w", err)
	}

	todos := make([]*todo.Todo, 0, len(docs))
	for i := range docs {
		todos = append(todos, docs[i].toModel())
	}

	warnIfSlow(start)
	return todos, nil
}

// Update merges the patch in a single server-side pipeline so that concurrent
// writers never observe a half-applied record. User strings are wrapped in
// $literal because pipeline stages treat "$..." values as field paths.
func (s *Storage) Update(ctx context.Context, id string, patch todo.Patch, expectedVersion *int) (*todo.Todo, error) {
	start := time.Now()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repo.ErrNotFound
	}

	filter := bson.D{{Key: "_id", Value: oid}}
	if expectedVersion != nil {
		filter = append(filter, bson.E{Key: "version", Value: *expectedVersion})
	}

	pipeline := mongo.Pipeline{{{Key: "$set", Value: setStage(patch, todo.Timestamp(s.now()))}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc document
	err = s.collection.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.missOrConflict(ctx, oid, expectedVersion)
		}
		logger.Error("Repository: failed to update todo", err, zap.String("todo_id", id))
		return nil, fmt.Errorf("update todo: %w", err)
	}

	warnIfSlow(start)
	return doc.toModel(), nil
}

func setStage(patch todo.Patch, now time.Time) bson.D {
	set := bson.D{}
	if v, ok := patch.Title.Get(); ok {
		set = append(set, bson.E{Key: "title", Value: literal(v)})
	}
	if v, ok := patch.Description.Get(); ok {
		set = append(set, bson.E{Key: "description", Value: literal(v)})
	}
	if v, ok := patch.Completed.Get(); ok {
		set = append(set, bson.E{Key: "completed", Value: literal(v)})
	}
	if v, ok := patch.Priority.Get(); ok {
		set = append(set, bson.E{Key: "priority", Value: literal(string(v))})
	}

	// updatedAt = max(now, updatedAt + 1ms) keeps it strictly increasing
	set = append(set,
		bson.E{Key: "updatedAt", Value: bson.D{{Key: "$max", Value: bson.A{
			now,
			bson.D{{Key: "$add", Value: bson.A{"$updatedAt", 1}}},
		}}}},
		bson.E{Key: "version", Value: bson.D{{Key: "$add", Value: bson.A{"$version", 1}}}},
	)
	return set
}

func literal(v any) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

func (s *Storage) missOrConflict(ctx context.Context, oid primitive.ObjectID, expectedVersion *int) error {
	if expectedVersion == nil {
		return repo.ErrNotFound
	}
	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("count todo: %w", err)
	}
	if count == 0 {
		return repo.ErrNotFound
	}
	logger.Warn("Repository: version conflict on update",
		zap.String("todo_id", oid.Hex()),
		zap.Int("expected_version", *expectedVersion))
	return repo.ErrVersionConflict
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	start := time.Now()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repo.ErrNotFound
	}

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		logger.Error("Repository: failed to delete todo", err, zap.String("todo_id", id))
		return fmt.Errorf("delete todo: %w", err)
	}
	if result.DeletedCount == 0 {
		return repo.ErrNotFound
	}

	warnIfSlow(start)
	return nil
}

func warnIfSlow(start time.Time) {
	if elapsed := time.Since(start); elapsed > slowOperation {
		logger.Warn("Repository: slow operation", zap.Duration("ms", elapsed))
	}
}
