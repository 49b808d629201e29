package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        *string   `bson:"email,omitempty"`
	Friends      []string  `bson:"friends"`
	ProfileImage string    `bson:"profileImage"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (d userDoc) toDomain() domain.User {
	u := domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Friends:      d.Friends,
		ProfileImage: d.ProfileImage,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.Email != nil {
		u.Email = *d.Email
	}
	if u.Friends == nil {
		u.Friends = []string{}
	}
	return u
}

type externalAccountDoc struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"userId"`
	Provider   string    `bson:"provider"`
	ProviderID string    `bson:"providerId"`
	Email      string    `bson:"email,omitempty"`
	CreatedAt  time.Time `bson:"createdAt"`
}

func (s *Store) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return s.findUser(ctx, bson.M{"_id": id}, "get user by id")
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.findUser(ctx, bson.M{"email": email}, "get user by email")
}

func (s *Store) findUser(ctx context.Context, filter bson.M, op string) (domain.User, error) {
	var d userDoc
	if err := s.col(colUsers).FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return d.toDomain(), nil
}

func (s *Store) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
	var d externalAccountDoc
	err := s.col(colExternalAccounts).FindOne(ctx, bson.M{"provider": provider, "providerId": providerID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.ExternalAccount{}, domain.ErrNotFound
		}
		return domain.User{}, domain.ExternalAccount{}, fmt.Errorf("get external account: %w", err)
	}
	u, err := s.GetUserByID(ctx, d.UserID)
	if err != nil {
		return domain.User{}, domain.ExternalAccount{}, err
	}
	return u, domain.ExternalAccount{
		ID:         d.ID,
		UserID:     d.UserID,
		Provider:   d.Provider,
		ProviderID: d.ProviderID,
		Email:      d.Email,
		CreatedAt:  d.CreatedAt.UTC(),
	}, nil
}

// CreateUserWithExternalAccount writes the account link last. A user left
// without a link by an interrupted sign-up is found by email on the next one.
func (s *Store) CreateUserWithExternalAccount(ctx context.Context, u domain.User, acct domain.ExternalAccount) (domain.User, error) {
	d := userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Friends:      []string{},
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.Email != "" {
		d.Email = ptr(u.Email)
	}

	err := s.withTx(ctx, func(ctx context.Context) error {
		if _, err := s.col(colUsers).InsertOne(ctx, d); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.ErrAlreadyExists
			}
			return fmt.Errorf("create user: %w", err)
		}
		return s.LinkExternalAccount(ctx, acct)
	})
	if err != nil {
		return domain.User{}, err
	}
	return d.toDomain(), nil
}

func (s *Store) LinkExternalAccount(ctx context.Context, acct domain.ExternalAccount) error {
	_, err := s.col(colExternalAccounts).InsertOne(ctx, externalAccountDoc{
		ID:         acct.ID,
		UserID:     acct.UserID,
		Provider:   acct.Provider,
		ProviderID: acct.ProviderID,
		Email:      acct.Email,
		CreatedAt:  acct.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("link external account: %w", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context, afterID string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	filter := bson.M{"_id": bson.M{"$gt": afterID, "$ne": excludeUserID}}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"name": 1, "profileImage": 1})

	cur, err := s.col(colUsers).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	out := []domain.UserSummary{}
	for cur.Next(ctx) {
		var d userDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		out = append(out, domain.UserSummary{ID: d.ID, Name: d.Name, ProfileImage: d.ProfileImage})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}
