// Package memory is an in-process credential store for local development and
// tests. Units of work run against a copy of the state that replaces the
// live state only when the unit succeeds.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/usermanagement/account-api/internal/core/domain"
	"github.com/usermanagement/account-api/internal/core/ports"
)

type state struct {
	users      map[string]*domain.User        // by id
	byUsername map[string]string              // normalized username -> id
	byEmail    map[string]string              // normalized email -> id
	roles      map[string]*domain.Role        // by normalized name
	userRoles  map[string]map[string]struct{} // user id -> normalized role names
}

func newState() *state {
	return &state{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		roles:      make(map[string]*domain.Role),
		userRoles:  make(map[string]map[string]struct{}),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range s.byUsername {
		c.byUsername[k] = v
	}
	for k, v := range s.byEmail {
		c.byEmail[k] = v
	}
	for k, v := range s.roles {
		r := *v
		c.roles[k] = &r
	}
	for k, set := range s.userRoles {
		cs := make(map[string]struct{}, len(set))
		for name := range set {
			cs[name] = struct{}{}
		}
		c.userRoles[k] = cs
	}
	return c
}

// Store is safe for concurrent use. Units of work are serialised.
type Store struct {
	mu    sync.RWMutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createUser(user)
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findBy(s.state.byUsername, username)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findBy(s.state.byEmail, email)
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findRole(name)
}

func (s *Store) CreateRole(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createRole(role)
}

func (s *Store) AddToRole(ctx context.Context, userID, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.addToRole(userID, roleName)
}

func (s *Store) RolesOf(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.rolesOf(userID), nil
}

// Atomic holds the write lock for the whole unit.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.CredentialStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txStore{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Counts returns the number of stored users and roles.
func (s *Store) Counts() (users, roles int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.users), len(s.state.roles)
}

// txStore operates on a private copy owned by a single unit of work.
type txStore struct {
	state *state
}

func (t *txStore) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	return t.state.createUser(user)
}

func (t *txStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return t.state.findBy(t.state.byUsername, username)
}

func (t *txStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return t.state.findBy(t.state.byEmail, email)
}

func (t *txStore) FindRoleByName(_ context.Context, name string) (*domain.Role, error) {
	return t.state.findRole(name)
}

func (t *txStore) CreateRole(_ context.Context, role *domain.Role) (*domain.Role, error) {
	return t.state.createRole(role)
}

func (t *txStore) AddToRole(_ context.Context, userID, roleName string) error {
	return t.state.addToRole(userID, roleName)
}

func (t *txStore) RolesOf(_ context.Context, userID string) ([]string, error) {
	return t.state.rolesOf(userID), nil
}

func (t *txStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.CredentialStore) error) error {
	return fn(ctx, t)
}

func (t *txStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *state) createUser(user *domain.User) (*domain.User, error) {
	uname := domain.Normalize(user.Username)
	email := domain.Normalize(user.Email)
	if _, taken := s.byUsername[uname]; taken {
		return nil, domain.ErrUserExists
	}
	if email != "" {
		if _, taken := s.byEmail[email]; taken {
			return nil, domain.ErrUserExists
		}
	}

	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.NormalizedUsername = uname
	u.NormalizedEmail = email

	s.users[u.ID] = &u
	s.byUsername[uname] = u.ID
	if email != "" {
		s.byEmail[email] = u.ID
	}

	out := u
	return &out, nil
}

func (s *state) findBy(index map[string]string, key string) (*domain.User, error) {
	id, ok := index[domain.Normalize(key)]
	if !ok || key == "" {
		return nil, domain.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *state) findRole(name string) (*domain.Role, error) {
	r, ok := s.roles[domain.Normalize(name)]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	out := *r
	return &out, nil
}

func (s *state) createRole(role *domain.Role) (*domain.Role, error) {
	key := domain.Normalize(role.Name)
	if _, taken := s.roles[key]; taken {
		return nil, domain.ErrRoleExists
	}

	r := *role
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.NormalizedName = key
	s.roles[key] = &r

	out := r
	return &out, nil
}

func (s *state) addToRole(userID, roleName string) error {
	if _, ok := s.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	key := domain.Normalize(roleName)
	if _, ok := s.roles[key]; !ok {
		return domain.ErrRoleNotFound
	}

	set, ok := s.userRoles[userID]
	if !ok {
		set = make(map[string]struct{})
		s.userRoles[userID] = set
	}
	set[key] = struct{}{}
	return nil
}

func (s *state) rolesOf(userID string) []string {
	names := make([]string, 0, len(s.userRoles[userID]))
	for key := range s.userRoles[userID] {
		if r, ok := s.roles[key]; ok {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names
}
