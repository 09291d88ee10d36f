package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lockify/internal/config"
	"lockify/internal/models"
	"lockify/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection    = "users"
	entriesCollection  = "passwords"
	countersCollection = "counters"

	entrySeqCounter = "entries"
)

type userDoc struct {
	Email             string    `bson:"_id"`
	FirstName         string    `bson:"first_name"`
	PasswordHash      string    `bson:"password_hash"`
	Gender            string    `bson:"gender"`
	IsVerified        bool      `bson:"is_verified"`
	VerificationToken string    `bson:"verification_token,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
}

type entryDoc struct {
	ID          string    `bson:"_id"`
	UserEmail   string    `bson:"user_email"`
	URL         string    `bson:"url"`
	Password    string    `bson:"password"`
	Description string    `bson:"description"`
	FileUpload  string    `bson:"file_upload"`
	Seq         int64     `bson:"seq"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type MongoRepo struct {
	client   *mongo.Client
	users    *mongo.Collection
	entries  *mongo.Collection
	counters *mongo.Collection
}

func New(ctx context.Context, cfg config.Mongo) (*MongoRepo, error) {
	const op = "storage.mongo.New"

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	db := client.Database(cfg.Database)

	return &MongoRepo{
		client:   client,
		users:    db.Collection(usersCollection),
		entries:  db.Collection(entriesCollection),
		counters: db.Collection(countersCollection),
	}, nil
}

// Migrate creates the indexes the queries rely on.
func (r *MongoRepo) Migrate(ctx context.Context) error {
	const op = "storage.mongo.Migrate"

	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "verification_token", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "verification_token", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
		{
			Keys: bson.D{{Key: "is_verified", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = r.entries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_email", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *MongoRepo) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.mongo.SaveUser"

	_, err := r.users.InsertOne(ctx, toUserDoc(user))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *MongoRepo) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.mongo.User"

	var doc userDoc

	err := r.users.FindOne(ctx, bson.D{{Key: "_id", Value: email}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}

func (r *MongoRepo) VerifyUserByToken(ctx context.Context, token string) (models.User, error) {
	const op = "storage.mongo.VerifyUserByToken"

	filter := bson.D{
		{Key: "verification_token", Value: token},
		{Key: "is_verified", Value: false},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "is_verified", Value: true}}},
		{Key: "$unset", Value: bson.D{{Key: "verification_token", Value: ""}}},
	}

	var doc userDoc

	err := r.users.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrTokenNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}

func (r *MongoRepo) SetVerificationToken(ctx context.Context, email, token string) error {
	const op = "storage.mongo.SetVerificationToken"

	res, err := r.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: email}, {Key: "is_verified", Value: false}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "verification_token", Value: token}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// DeleteUser removes the account and then its entries. The two deletes are
// not atomic; a failure in between leaves orphaned entries that nobody can
// read, since no token can be issued for a missing account.
func (r *MongoRepo) DeleteUser(ctx context.Context, email string) error {
	const op = "storage.mongo.DeleteUser"

	res, err := r.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: email}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return storage.ErrUserNotFound
	}

	if _, err := r.entries.DeleteMany(ctx, bson.D{{Key: "user_email", Value: email}}); err != nil {
		return fmt.Errorf("%s: delete entries: %w", op, err)
	}

	return nil
}

func (r *MongoRepo) DeleteUnverifiedUntil(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "storage.mongo.DeleteUnverifiedUntil"

	res, err := r.users.DeleteMany(ctx, bson.D{
		{Key: "is_verified", Value: false},
		{Key: "created_at", Value: bson.D{{Key: "$lte", Value: cutoff}}},
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.DeletedCount, nil
}

func (r *MongoRepo) SaveEntry(ctx context.Context, e models.Entry) error {
	const op = "storage.mongo.SaveEntry"

	n, err := r.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: e.UserEmail}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return storage.ErrUserNotFound
	}

	doc := toEntryDoc(e)

	if doc.Seq, err = r.nextSeq(ctx, entrySeqCounter); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.entries.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// nextSeq atomically increments the named counter and returns the new value.
// Entries are listed in seq order, which is their insertion order.
func (r *MongoRepo) nextSeq(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}

	err := r.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "value", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}

	return counter.Value, nil
}

func (r *MongoRepo) Entries(ctx context.Context, owner string) ([]models.Entry, error) {
	const op = "storage.mongo.Entries"

	cur, err := r.entries.Find(ctx,
		bson.D{{Key: "user_email", Value: owner}},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := make([]models.Entry, 0, len(docs))
	for _, d := range docs {
		res = append(res, d.toModel())
	}

	return res, nil
}

func (r *MongoRepo) Entry(ctx context.Context, owner, id string) (models.Entry, error) {
	const op = "storage.mongo.Entry"

	var doc entryDoc

	err := r.entries.FindOne(ctx, ownedEntry(owner, id)).Decode(&doc)

	return entryResult(op, doc, err)
}

func (r *MongoRepo) UpdateEntry(
	ctx context.Context,
	owner, id string,
	fields models.EntryFields,
	updatedAt time.Time,
) (models.Entry, error) {
	const op = "storage.mongo.UpdateEntry"

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "url", Value: fields.URL},
		{Key: "password", Value: fields.Password},
		{Key: "description", Value: fields.Description},
		{Key: "file_upload", Value: fields.FileUpload},
		{Key: "updated_at", Value: updatedAt},
	}}}

	var doc entryDoc

	err := r.entries.FindOneAndUpdate(ctx, ownedEntry(owner, id), update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)

	return entryResult(op, doc, err)
}

func (r *MongoRepo) DeleteEntry(ctx context.Context, owner, id string) (models.Entry, error) {
	const op = "storage.mongo.DeleteEntry"

	var doc entryDoc

	err := r.entries.FindOneAndDelete(ctx, ownedEntry(owner, id)).Decode(&doc)

	return entryResult(op, doc, err)
}

func (r *MongoRepo) DeleteEntries(ctx context.Context, owner string) (int64, error) {
	const op = "storage.mongo.DeleteEntries"

	res, err := r.entries.DeleteMany(ctx, bson.D{{Key: "user_email", Value: owner}})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.DeletedCount, nil
}

func (r *MongoRepo) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = r.client.Disconnect(ctx)
}

func ownedEntry(owner, id string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "user_email", Value: owner}}
}

func entryResult(op string, doc entryDoc, err error) (models.Entry, error) {
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Entry{}, storage.ErrEntryNotFound
		}

		return models.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}

func toUserDoc(u models.User) userDoc {
	return userDoc{
		Email:             u.Email,
		FirstName:         u.FirstName,
		PasswordHash:      string(u.PassHash),
		Gender:            u.Gender,
		IsVerified:        u.IsVerified,
		VerificationToken: u.VerificationToken,
		CreatedAt:         u.CreatedAt,
	}
}

func (d userDoc) toModel() models.User {
	return models.User{
		Email:             d.Email,
		FirstName:         d.FirstName,
		PassHash:          []byte(d.PasswordHash),
		Gender:            d.Gender,
		IsVerified:        d.IsVerified,
		VerificationToken: d.VerificationToken,
		CreatedAt:         d.CreatedAt,
	}
}

func toEntryDoc(e models.Entry) entryDoc {
	return entryDoc{
		ID:          e.ID,
		UserEmail:   e.UserEmail,
		URL:         e.URL,
		Password:    e.Password,
		Description: e.Description,
		FileUpload:  e.FileUpload,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (d entryDoc) toModel() models.Entry {
	return models.Entry{
		ID:          d.ID,
		UserEmail:   d.UserEmail,
		URL:         d.URL,
		Password:    d.Password,
		Description: d.Description,
		FileUpload:  d.FileUpload,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
