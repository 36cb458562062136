package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onemove/marketplace/internal/domain/user"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username or email already taken")
)

const userColumns = `id, username, email, fullname, password_hash, roles, active_role, refresh_token_hash, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

type CreateUserParams struct {
	Username     string
	Email        string
	Fullname     string
	PasswordHash string
	Roles        []user.Role
	ActiveRole   user.Role
}

func (r *UsersRepo) Create(ctx context.Context, p CreateUserParams) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Username:     p.Username,
		Email:        p.Email,
		Fullname:     p.Fullname,
		PasswordHash: p.PasswordHash,
		Roles:        p.Roles,
		ActiveRole:   p.ActiveRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, fullname, password_hash, roles, active_role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, u.Email, u.Fullname, u.PasswordHash, rolesToText(u.Roles), string(u.ActiveRole), u.CreatedAt, u.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError

		// 23505 = unique_violation (username or email)
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, ErrUserExists
		}

		return user.User{}, err
	}

	return u, nil
}

// GetByLogin resolves a user by username or email; callers pass whichever
// identifier the client supplied.
func (r *UsersRepo) GetByLogin(ctx context.Context, login string) (user.User, error) {
	return r.getWhere(ctx, `username = $1 OR email = $1`, login)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

func (r *UsersRepo) getWhere(ctx context.Context, cond string, arg any) (user.User, error) {
	var (
		u     user.User
		roles []string
		role  string
	)

	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+cond, arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Fullname,
		&u.PasswordHash,
		&roles,
		&role,
		&u.RefreshTokenHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}

	u.Roles = rolesFromText(roles)
	u.ActiveRole = user.Role(role)

	return u, nil
}

// UpdatePassword rehashes are done by the caller; this only persists.
func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateField(ctx, id, `password_hash = $2`, passwordHash)
}

// SetRefreshToken writes the single refresh slot. A nil hash clears it
// (logout). No other column is validated or touched.
func (r *UsersRepo) SetRefreshToken(ctx context.Context, id string, tokenHash *string) error {
	return r.updateField(ctx, id, `refresh_token_hash = $2`, tokenHash)
}

func (r *UsersRepo) SetActiveRole(ctx context.Context, id string, role user.Role) error {
	return r.updateField(ctx, id, `active_role = $2`, string(role))
}

func (r *UsersRepo) updateField(ctx context.Context, id, setClause string, arg any) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET `+setClause+`, updated_at = NOW() WHERE id = $1`,
		id, arg,
	)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateDetails changes fullname and/or email; nil fields are left alone.
func (r *UsersRepo) UpdateDetails(ctx context.Context, id string, fullname, email *string) (user.User, error) {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET fullname = COALESCE($2, fullname),
		     email = COALESCE($3, email),
		     updated_at = NOW()
		 WHERE id = $1`,
		id, fullname, email,
	)

	if err != nil {
		var pgErr *pgconn.PgError

		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, ErrUserExists
		}

		return user.User{}, err
	}

	return r.GetByID(ctx, id)
}

func rolesToText(roles []user.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func rolesFromText(roles []string) []user.Role {
	out := make([]user.Role, len(roles))
	for i, r := range roles {
		out[i] = user.Role(r)
	}
	return out
}
