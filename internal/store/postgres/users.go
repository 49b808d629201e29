package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Up-to-code/facbbok2/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userColumns = `
	u.id, u.name, u.email, u.profile_image, u.created_at, u.updated_at,
	COALESCE((SELECT array_agg(f.friend_id ORDER BY f.friend_id) FROM user_friends f WHERE f.user_id = u.id), '{}')
`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u         domain.User
		emailText pgtype.Text
		friends   pgtype.FlatArray[string]
	)
	if err := row.Scan(&u.ID, &u.Name, &emailText, &u.ProfileImage, &u.CreatedAt, &u.UpdatedAt, &friends); err != nil {
		return domain.User{}, err
	}
	u.Email = textOrEmpty(emailText)
	u.Friends = textArrayOrEmpty(friends)
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u WHERE u.email = $1 LIMIT 1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
	const q = `
		SELECT id, user_id, provider, provider_id, email, created_at
		FROM external_accounts
		WHERE provider = $1 AND provider_id = $2
	`

	var (
		acct      domain.ExternalAccount
		emailText pgtype.Text
	)
	err := s.pool.QueryRow(ctx, q, provider, providerID).Scan(
		&acct.ID,
		&acct.UserID,
		&acct.Provider,
		&acct.ProviderID,
		&emailText,
		&acct.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ExternalAccount{}, domain.ErrNotFound
		}
		return domain.User{}, domain.ExternalAccount{}, fmt.Errorf("get external account: %w", err)
	}
	acct.Email = textOrEmpty(emailText)

	u, err := s.GetUserByID(ctx, acct.UserID)
	if err != nil {
		return domain.User{}, domain.ExternalAccount{}, err
	}
	return u, acct, nil
}

func (s *UsersStore) CreateUserWithExternalAccount(ctx context.Context, u domain.User, acct domain.ExternalAccount) (domain.User, error) {
	const insertUser = `
		INSERT INTO users (id, name, email, profile_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertUser, u.ID, u.Name, nullIfEmpty(u.Email), u.ProfileImage, u.CreatedAt, u.UpdatedAt); err != nil {
			if isUniqueViolation(err, "") {
				return domain.ErrAlreadyExists
			}
			return fmt.Errorf("create user: %w", err)
		}
		return insertExternalAccount(ctx, tx, acct)
	})
	if err != nil {
		return domain.User{}, err
	}
	if u.Friends == nil {
		u.Friends = []string{}
	}
	return u, nil
}

func (s *UsersStore) LinkExternalAccount(ctx context.Context, acct domain.ExternalAccount) error {
	return insertExternalAccount(ctx, s.pool, acct)
}

func insertExternalAccount(ctx context.Context, db dbtx, acct domain.ExternalAccount) error {
	const q = `
		INSERT INTO external_accounts (id, user_id, provider, provider_id, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.Exec(ctx, q, acct.ID, acct.UserID, acct.Provider, acct.ProviderID, nullIfEmpty(acct.Email), acct.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "external_accounts_provider_uq") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("link external account: %w", err)
	}
	return nil
}

func (s *UsersStore) ListUsers(ctx context.Context, afterID string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	const q = `
		SELECT id, name, profile_image
		FROM users
		WHERE id > $1 AND id <> $2
		ORDER BY id ASC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, q, afterID, excludeUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []domain.UserSummary{}
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.ProfileImage); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}
