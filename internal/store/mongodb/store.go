package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"zapmotor/internal/store"
)

type Store struct {
	DB *mongo.Database
}

func New(db *mongo.Database) *Store { return &Store{DB: db} }

// Connect dials the server and verifies it is reachable before returning.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, New(client.Database(dbName)), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.Client().Ping(ctx, readpref.Primary())
}

func (s *Store) CreateConnection(ctx context.Context, c store.Connection) error {
	_, err := s.DB.Collection(store.ColConnections).InsertOne(ctx, c)
	return err
}

func (s *Store) GetConnection(ctx context.Context, id string) (store.Connection, bool, error) {
	var c store.Connection
	err := s.DB.Collection(store.ColConnections).FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Connection{}, false, nil
	}
	if err != nil {
		return store.Connection{}, false, err
	}
	return c, true, nil
}

func (s *Store) UpdateConnection(ctx context.Context, id string, f store.Fields) error {
	return s.update(ctx, store.ColConnections, id, f)
}

func (s *Store) GetCampaign(ctx context.Context, id string) (store.Campaign, bool, error) {
	var c store.Campaign
	err := s.DB.Collection(store.ColCampaigns).FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Campaign{}, false, nil
	}
	if err != nil {
		return store.Campaign{}, false, err
	}
	return c, true, nil
}

func (s *Store) UpdateCampaign(ctx context.Context, id string, f store.Fields) error {
	return s.update(ctx, store.ColCampaigns, id, f)
}

// AvailableContacts returns up to limit contacts still eligible for dispatch,
// oldest-created first so competing campaigns drain the pool FIFO.
func (s *Store) AvailableContacts(ctx context.Context, limit int) ([]store.Contact, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "criadoEm", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := s.DB.Collection(store.ColContacts).Find(ctx, bson.M{"status": "disponivel"}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []store.Contact
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ContactByID(ctx context.Context, id string) (store.Contact, bool, error) {
	var c store.Contact
	err := s.DB.Collection(store.ColContacts).FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Contact{}, false, nil
	}
	if err != nil {
		return store.Contact{}, false, err
	}
	return c, true, nil
}

func (s *Store) MarkContactUsed(ctx context.Context, id string) error {
	return s.update(ctx, store.ColContacts, id, store.Fields{"status": "usado"})
}

func (s *Store) update(ctx context.Context, collection, id string, f store.Fields) error {
	res, err := s.DB.Collection(collection).UpdateByID(ctx, id, buildUpdate(f))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// buildUpdate translates a Fields partial update into mongo update operators:
// plain values to $set, store.Delete to $unset, store.ServerTimestamp to
// $currentDate.
func buildUpdate(f store.Fields) bson.M {
	set := bson.M{}
	unset := bson.M{}
	current := bson.M{}
	for k, v := range f {
		switch v.(type) {
		case store.DeleteSentinel:
			unset[k] = ""
		case store.TimestampSentinel:
			current[k] = true
		default:
			set[k] = v
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(current) > 0 {
		update["$currentDate"] = current
	}
	return update
}
