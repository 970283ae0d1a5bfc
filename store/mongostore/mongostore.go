// Package mongostore keeps posts in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store"
)

const (
	// DefaultDatabase is used when the connection URI names no database.
	DefaultDatabase = "blog"
	collectionName  = "posts"
)

var _ store.Store = (*Store)(nil)

type author struct {
	FirstName string `bson:"firstName"`
	LastName  string `bson:"lastName"`
}

type document struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Title   string             `bson:"title"`
	Content string             `bson:"content"`
	Author  author             `bson:"author"`
	Created time.Time          `bson:"created"`
}

func (d document) post() models.Post {
	return models.Post{
		ID:      d.ID.Hex(),
		Title:   d.Title,
		Content: d.Content,
		Author:  models.Author{FirstName: d.Author.FirstName, LastName: d.Author.LastName},
		Created: models.Timestamp(d.Created),
	}
}

// Store is a store.Store backed by a MongoDB collection.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	coll   *mongo.Collection
	now    func() time.Time
}

// Open connects to uri and uses the database named in its path.
func Open(ctx context.Context, uri string) (*Store, error) {
	return OpenDatabase(ctx, uri, databaseFromURI(uri))
}

// OpenDatabase connects to uri and uses the named database.
func OpenDatabase(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		database = DefaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(5*time.Second))
	if err != nil {
		return nil, store.Wrap("open", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, store.Wrap("open", err)
	}
	db := client.Database(database)
	return &Store{
		client: client,
		db:     db,
		coll:   db.Collection(collectionName),
		now:    time.Now,
	}, nil
}

func databaseFromURI(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return ""
	}
	return cs.Database
}

func (s *Store) InsertMany(ctx context.Context, posts []models.PostInput) ([]models.Post, error) {
	inputs, err := store.PrepareInsert(posts, s.now())
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return []models.Post{}, nil
	}

	docs := make([]interface{}, len(inputs))
	stored := make([]models.Post, len(inputs))
	for i, in := range inputs {
		doc := document{
			ID:      primitive.NewObjectID(),
			Title:   in.Title,
			Content: in.Content,
			Author:  author{FirstName: in.Author.FirstName, LastName: in.Author.LastName},
			Created: in.Created,
		}
		docs[i] = doc
		stored[i] = doc.post()
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return nil, store.Wrap("insert", err)
	}
	return stored, nil
}

func (s *Store) FindAll(ctx context.Context) ([]models.Post, error) {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, store.Wrap("find all", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, store.Wrap("find all", err)
	}
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.post())
	}
	return posts, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (models.Post, bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Post{}, false, nil
	}
	var doc document
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, false, nil
	}
	if err != nil {
		return models.Post{}, false, store.Wrap("find", err)
	}
	return doc.post(), true, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	return n, store.Wrap("count", err)
}

func (s *Store) UpdateByID(ctx context.Context, id string, patch models.PostPatch) error {
	if err := store.PreparePatch(patch); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}

	set := bson.D{}
	if patch.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *patch.Title})
	}
	if patch.Content != nil {
		set = append(set, bson.E{Key: "content", Value: *patch.Content})
	}
	if patch.Author != nil {
		set = append(set, bson.E{Key: "author", Value: author{FirstName: patch.Author.FirstName, LastName: patch.Author.LastName}})
	}

	filter := bson.D{{Key: "_id", Value: oid}}
	if len(set) == 0 {
		// $set rejects an empty document
		n, err := s.coll.CountDocuments(ctx, filter)
		if err != nil {
			return store.Wrap("update", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	}

	res, err := s.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return store.Wrap("update", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return store.Wrap("delete", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DropAll drops the whole database, not just the posts collection.
func (s *Store) DropAll(ctx context.Context) error {
	return store.Wrap("drop", s.db.Drop(ctx))
}

func (s *Store) Close(ctx context.Context) error {
	return store.Wrap("close", s.client.Disconnect(ctx))
}
