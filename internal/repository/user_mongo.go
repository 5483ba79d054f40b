package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/luxora/storefront-api/internal/model"
)

type userDoc struct {
	ID               string         `bson:"_id"`
	Name             string         `bson:"name"`
	Email            string         `bson:"email"`
	Password         string         `bson:"password"`
	IsAdmin          bool           `bson:"isAdmin"`
	Phone            string         `bson:"phone,omitempty"`
	Avatar           string         `bson:"avatar,omitempty"`
	Address          *model.Address `bson:"address,omitempty"`
	RefreshTokenHash string         `bson:"refreshTokenHash,omitempty"`
	CreatedAt        time.Time      `bson:"createdAt"`
	UpdatedAt        time.Time      `bson:"updatedAt"`
}

func (d *userDoc) toModel() *model.User {
	return &model.User{
		ID:               parseID(d.ID),
		Name:             d.Name,
		Email:            d.Email,
		Password:         d.Password,
		IsAdmin:          d.IsAdmin,
		Phone:            d.Phone,
		Avatar:           d.Avatar,
		Address:          d.Address,
		RefreshTokenHash: d.RefreshTokenHash,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type mongoUserRepo struct{ coll *mongo.Collection }

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepo{coll: db.Collection(usersCollection)}
}

func (r *mongoUserRepo) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = uuid.New()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt, user.UpdatedAt = now, now

	_, err := r.coll.InsertOne(ctx, userDoc{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Password:  user.Password,
		IsAdmin:   user.IsAdmin,
		Phone:     user.Phone,
		Avatar:    user.Avatar,
		Address:   user.Address,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if dup, ok := mongoDuplicate(err, "email"); ok {
			return dup
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *mongoUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *mongoUserRepo) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return doc.toModel(), nil
}

func (r *mongoUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": user.ID.String()}, bson.M{"$set": bson.M{
		"name":      user.Name,
		"phone":     user.Phone,
		"avatar":    user.Avatar,
		"address":   user.Address,
		"updatedAt": user.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUserRepo) SetRefreshTokenHash(ctx context.Context, id uuid.UUID, hash string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"refreshTokenHash": hash,
		"updatedAt":        time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
