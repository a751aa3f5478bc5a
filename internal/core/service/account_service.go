package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/usermanagement/account-api/internal/core/domain"
	"github.com/usermanagement/account-api/internal/core/ports"
)

// dummyPassword is hashed once so unknown usernames still cost one verify.
const dummyPassword = "account-api/unknown-user"

// AccountOptions tunes registration rules.
type AccountOptions struct {
	PasswordPolicy domain.PasswordPolicy
	// DefaultRole is assigned at registration. Defaults to domain.DefaultRole.
	DefaultRole string
}

// AccountService implements registration and login.
type AccountService struct {
	store       ports.CredentialStore
	hasher      ports.PasswordHasher
	roles       *RoleProvisioner
	tokens      ports.TokenIssuer
	policy      domain.PasswordPolicy
	defaultRole string
	dummyHash   string
	validate    *validator.Validate
	log         zerolog.Logger
	now         func() time.Time
}

func NewAccountService(
	store ports.CredentialStore,
	hasher ports.PasswordHasher,
	roles *RoleProvisioner,
	tokens ports.TokenIssuer,
	opts AccountOptions,
	log zerolog.Logger,
) *AccountService {
	defaultRole := strings.TrimSpace(opts.DefaultRole)
	if defaultRole == "" {
		defaultRole = domain.DefaultRole
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		log.Warn().Err(err).Msg("failed to prepare dummy password hash")
	}

	return &AccountService{
		store:       store,
		hasher:      hasher,
		roles:       roles,
		tokens:      tokens,
		policy:      opts.PasswordPolicy,
		defaultRole: defaultRole,
		dummyHash:   dummy,
		validate:    validator.New(),
		log:         log,
		now:         time.Now,
	}
}

// Register creates the user, provisions the default role and assigns it as a
// single unit of work: if any step fails nothing is persisted.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
	if errs := s.checkInput(in); len(errs) > 0 {
		return nil, domain.NewValidationError(errs...)
	}

	conflicts, err := s.conflicts(ctx, in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, domain.NewConflictError(conflicts...)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	var (
		created *domain.User
		outcome ProvisionOutcome
	)
	err = s.store.Atomic(ctx, func(ctx context.Context, tx ports.CredentialStore) error {
		user, err := tx.CreateUser(ctx, domain.NewUser(in.Username, in.FullName, in.Email, hash, s.now()))
		if err != nil {
			return err
		}

		outcome, err = s.roles.EnsureRole(ctx, tx, s.defaultRole)
		if err != nil {
			return err
		}

		err = tx.AddToRole(ctx, user.ID, s.defaultRole)
		if errors.Is(err, domain.ErrRoleNotFound) {
			if outcome, err = s.roles.Refresh(ctx, tx, s.defaultRole); err != nil {
				return err
			}
			err = tx.AddToRole(ctx, user.ID, s.defaultRole)
		}
		if err != nil {
			return domain.WrapStore("assign role", err)
		}
		created = user
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			// Lost a race with a concurrent registration.
			return nil, s.raceConflict(ctx, in)
		}
		s.log.Error().Err(err).Str("username", in.Username).Msg("registration failed")
		return nil, domain.WrapStore("register", err)
	}

	s.roles.Remember(ctx, s.defaultRole)

	s.log.Info().
		Str("user_id", created.ID).
		Str("username", created.Username).
		Str("role", s.defaultRole).
		Msg("user registered")

	return &ports.RegisterResult{
		User:        created,
		Role:        s.defaultRole,
		RoleCreated: outcome == RoleCreated,
	}, nil
}

// Login verifies credentials and issues a token. Unknown users and wrong
// passwords yield the same domain.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_, _ = s.hasher.Verify(password, s.dummyHash)
			s.log.Debug().Str("username", username).Msg("login rejected")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.WrapStore("find user", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash is unusable")
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		s.log.Debug().Str("username", username).Msg("login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	roles, err := s.store.RolesOf(ctx, user.ID)
	if err != nil {
		return nil, domain.WrapStore("load roles", err)
	}
	role := domain.PrimaryRole(roles)

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, role)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("role", role).Msg("token issued")

	return &ports.LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
		Role:      role,
	}, nil
}

func (s *AccountService) checkInput(in ports.RegisterInput) []domain.FieldError {
	errs := domain.ValidateUsername(in.Username)

	if email := strings.TrimSpace(in.Email); utf8.RuneCountInString(email) > domain.MaxEmailLength {
		errs = append(errs, domain.FieldError{
			Field:       "email",
			Code:        domain.CodeEmailTooLong,
			Description: fmt.Sprintf("Email must be at most %d characters.", domain.MaxEmailLength),
		})
	} else if email != "" {
		if err := s.validate.Var(email, "email"); err != nil {
			errs = append(errs, domain.FieldError{
				Field:       "email",
				Code:        domain.CodeInvalidEmail,
				Description: fmt.Sprintf("Email '%s' is invalid.", email),
			})
		}
	}

	if utf8.RuneCountInString(strings.TrimSpace(in.FullName)) > domain.MaxFullNameLength {
		errs = append(errs, domain.FieldError{
			Field:       "fullName",
			Code:        domain.CodeFullNameTooLong,
			Description: fmt.Sprintf("Full name must be at most %d characters.", domain.MaxFullNameLength),
		})
	}

	return append(errs, s.policy.Check(in.Password)...)
}

// conflicts reports every uniqueness rule the input would break.
func (s *AccountService) conflicts(ctx context.Context, username, email string) ([]domain.FieldError, error) {
	var out []domain.FieldError

	_, err := s.store.FindByUsername(ctx, username)
	switch {
	case err == nil:
		out = append(out, domain.DuplicateUsername(username))
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, domain.WrapStore("find user", err)
	}

	if strings.TrimSpace(email) == "" {
		return out, nil
	}

	_, err = s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		out = append(out, domain.DuplicateEmail(email))
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, domain.WrapStore("find user by email", err)
	}
	return out, nil
}

func (s *AccountService) raceConflict(ctx context.Context, in ports.RegisterInput) error {
	conflicts, err := s.conflicts(ctx, in.Username, in.Email)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		conflicts = []domain.FieldError{domain.DuplicateUsername(in.Username)}
	}
	return domain.NewConflictError(conflicts...)
}
