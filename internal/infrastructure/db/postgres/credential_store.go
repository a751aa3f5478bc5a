package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/usermanagement/account-api/internal/core/domain"
	"github.com/usermanagement/account-api/internal/core/ports"
)

const uniqueViolation = "23505"

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// CredentialStore implements ports.CredentialStore on PostgreSQL.
type CredentialStore struct {
	q  querier
	db DB // nil inside a transaction
}

func NewCredentialStore(db DB) *CredentialStore {
	return &CredentialStore{q: db, db: db}
}

const userColumns = `id, user_name, normalized_user_name, COALESCE(email, ''), COALESCE(normalized_email, ''), full_name, password_hash, created_at`

func (s *CredentialStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.NormalizedUsername = domain.Normalize(u.Username)
	u.NormalizedEmail = domain.Normalize(u.Email)

	_, err := s.q.Exec(ctx,
		`INSERT INTO users (id, user_name, normalized_user_name, email, normalized_email, full_name, password_hash, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)`,
		u.ID, u.Username, u.NormalizedUsername, u.Email, u.NormalizedEmail, u.FullName, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE normalized_user_name = $1`, domain.Normalize(username))
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	key := domain.Normalize(email)
	if key == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE normalized_email = $1`, key)
}

func (s *CredentialStore) findUser(ctx context.Context, query, key string) (*domain.User, error) {
	var u domain.User
	err := s.q.QueryRow(ctx, query, key).Scan(
		&u.ID, &u.Username, &u.NormalizedUsername, &u.Email, &u.NormalizedEmail, &u.FullName, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *CredentialStore) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	var r domain.Role
	err := s.q.QueryRow(ctx,
		`SELECT id, name, normalized_name, created_at FROM roles WHERE normalized_name = $1`,
		domain.Normalize(name),
	).Scan(&r.ID, &r.Name, &r.NormalizedName, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return &r, nil
}

// CreateRole uses ON CONFLICT so that losing a creation race does not abort
// the enclosing transaction.
func (s *CredentialStore) CreateRole(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	r := *role
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.NormalizedName = domain.Normalize(r.Name)

	tag, err := s.q.Exec(ctx,
		`INSERT INTO roles (id, name, normalized_name, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (normalized_name) DO NOTHING`,
		r.ID, r.Name, r.NormalizedName, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrRoleExists
	}
	return &r, nil
}

func (s *CredentialStore) AddToRole(ctx context.Context, userID, roleName string) error {
	role, err := s.FindRoleByName(ctx, roleName)
	if err != nil {
		return err
	}

	_, err = s.q.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, role.ID,
	)
	if err != nil {
		return fmt.Errorf("insert user role: %w", err)
	}
	return nil
}

func (s *CredentialStore) RolesOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.q.Query(ctx,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan roles: %w", err)
	}
	return names, nil
}

// Atomic runs fn inside a transaction. Nested calls join the outer one.
func (s *CredentialStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.CredentialStore) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(ctx, &CredentialStore{q: tx})
	})
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
