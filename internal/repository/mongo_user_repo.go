package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bus_ticket/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userDocument is the shape stored in the users collection. The password
// field keeps the collection's historical name but always holds a bcrypt hash.
type userDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Phone     string             `bson:"phone"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	Name      string             `bson:"name,omitempty"`
	Location  string             `bson:"location,omitempty"`
	Email     string             `bson:"email,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d userDocument) toModel() *model.User {
	return &model.User{
		ID:           d.ID.Hex(),
		Phone:        d.Phone,
		PasswordHash: d.Password,
		Role:         d.Role,
		Name:         d.Name,
		Location:     d.Location,
		Email:        d.Email,
		CreatedAt:    d.CreatedAt,
	}
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a UserRepository over the users collection of db
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection("users")}
}

// EnsureUserIndexes creates the unique phone index the sign-up flow relies on
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "phone", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users.phone index: %w", err)
	}
	return nil
}

// Create inserts user and sets user.ID to the generated ObjectID
func (r *mongoUserRepository) Create(ctx context.Context, user *model.User) error {
	doc := userDocument{
		ID:        primitive.NewObjectID(),
		Phone:     user.Phone,
		Password:  user.PasswordHash,
		Role:      user.Role,
		Name:      user.Name,
		Location:  user.Location,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = doc.ID.Hex()
	return nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *mongoUserRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	user, err := r.findOne(ctx, bson.M{"phone": phone})
	if err != nil {
		return nil, fmt.Errorf("failed to find user by phone: %w", err)
	}
	return user, nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil // not an id this store could have issued
	}
	user, err := r.findOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

func (r *mongoUserRepository) FindAll(ctx context.Context) ([]model.User, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, *d.toModel())
	}
	return users, nil
}

func (r *mongoUserRepository) updateByID(ctx context.Context, id string, set bson.M) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoUserRepository) UpdateProfile(ctx context.Context, user *model.User) (bool, error) {
	ok, err := r.updateByID(ctx, user.ID, bson.M{"name": user.Name, "location": user.Location, "email": user.Email})
	if err != nil {
		return false, fmt.Errorf("failed to update user profile: %w", err)
	}
	return ok, nil
}

func (r *mongoUserRepository) UpdateRole(ctx context.Context, id, role string) (bool, error) {
	ok, err := r.updateByID(ctx, id, bson.M{"role": role})
	if err != nil {
		return false, fmt.Errorf("failed to update user role: %w", err)
	}
	return ok, nil
}

func (r *mongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (bool, error) {
	ok, err := r.updateByID(ctx, id, bson.M{"password": passwordHash})
	if err != nil {
		return false, fmt.Errorf("failed to update user password: %w", err)
	}
	return ok, nil
}

func (r *mongoUserRepository) Delete(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	return res.DeletedCount, nil
}
