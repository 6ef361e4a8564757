package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

// mongoUser is the document shape of a user
type mongoUser struct {
	ID                string    `bson:"_id"`
	Email             string    `bson:"email"`
	Password          string    `bson:"password"`
	Name              string    `bson:"name"`
	AvatarURL         string    `bson:"avatarURL"`
	Verify            bool      `bson:"verify"`
	VerificationToken *string   `bson:"verificationToken"`
	Subscription      string    `bson:"subscription"`
	Token             *string   `bson:"token"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

// MongoRepository stores users as documents in a MongoDB collection
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(usersCollection)}
}

var _ Store = (*MongoRepository)(nil)

// EnsureIndexes creates the unique email index and the verification token index
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "verificationToken", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, nu NewUser) (*User, error) {
	now := time.Now().UTC()
	sub := nu.Subscription
	if sub == "" {
		sub = SubscriptionStarter
	}

	verificationToken := nu.VerificationToken
	doc := mongoUser{
		ID:                uuid.NewString(),
		Email:             nu.Email,
		Password:          nu.PasswordHash,
		Name:              nu.Name,
		AvatarURL:         nu.AvatarURL,
		VerificationToken: &verificationToken,
		Subscription:      string(sub),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return doc.toModel()
}

func (r *MongoRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return r.findOne(ctx, bson.M{"verificationToken": token})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toModel()
}

func (r *MongoRepository) MarkEmailAsVerified(ctx context.Context, token string) error {
	return r.updateOne(ctx, bson.M{"verificationToken": token}, bson.M{
		"verify":            true,
		"verificationToken": nil,
	})
}

func (r *MongoRepository) SetToken(ctx context.Context, id uuid.UUID, token *string) error {
	return r.updateOne(ctx, bson.M{"_id": id.String()}, bson.M{"token": token})
}

func (r *MongoRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, sub Subscription) (*User, error) {
	var doc mongoUser
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"subscription": string(sub), "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	return doc.toModel()
}

func (r *MongoRepository) UpdateAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error {
	return r.updateOne(ctx, bson.M{"_id": id.String()}, bson.M{"avatarURL": avatarURL})
}

func (r *MongoRepository) updateOne(ctx context.Context, filter bson.M, set bson.M) error {
	set["updatedAt"] = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (d mongoUser) toModel() (*User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", d.ID, err)
	}
	return &User{
		ID:                id,
		Email:             d.Email,
		PasswordHash:      d.Password,
		Name:              d.Name,
		AvatarURL:         d.AvatarURL,
		Verify:            d.Verify,
		VerificationToken: d.VerificationToken,
		Subscription:      Subscription(d.Subscription),
		Token:             d.Token,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}, nil
}
