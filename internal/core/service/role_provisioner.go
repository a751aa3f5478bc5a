package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/usermanagement/account-api/internal/core/domain"
	"github.com/usermanagement/account-api/internal/core/ports"
)

// ProvisionOutcome reports what EnsureRole did.
type ProvisionOutcome int

const (
	RoleCreated ProvisionOutcome = iota + 1
	RoleAlreadyExists
)

func (o ProvisionOutcome) String() string {
	switch o {
	case RoleCreated:
		return "created"
	case RoleAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// RoleProvisioner creates roles on first need.
type RoleProvisioner struct {
	cache ports.RoleCache
	log   zerolog.Logger
	now   func() time.Time
}

// NewRoleProvisioner returns a provisioner. cache may be nil.
func NewRoleProvisioner(cache ports.RoleCache, log zerolog.Logger) *RoleProvisioner {
	return &RoleProvisioner{cache: cache, log: log, now: time.Now}
}

// EnsureRole makes sure a role called name exists in store. Calling it twice
// with the same name creates at most one role. A cache hit is trusted; callers
// that then find the role missing recover through Refresh.
func (p *RoleProvisioner) EnsureRole(ctx context.Context, store ports.CredentialStore, name string) (ProvisionOutcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, invalidRoleName()
	}

	if p.cache != nil {
		known, err := p.cache.Known(ctx, name)
		if err != nil {
			p.log.Warn().Err(err).Str("role", name).Msg("role cache lookup failed")
		} else if known {
			return RoleAlreadyExists, nil
		}
	}
	return p.ensureInStore(ctx, store, name)
}

// Refresh drops name from the cache and provisions it from the store alone.
// It is used when the cache claimed a role the store does not hold.
func (p *RoleProvisioner) Refresh(ctx context.Context, store ports.CredentialStore, name string) (ProvisionOutcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, invalidRoleName()
	}
	if p.cache != nil {
		p.log.Warn().Str("role", name).Msg("cached role missing from store")
		if err := p.cache.Forget(ctx, name); err != nil {
			p.log.Warn().Err(err).Str("role", name).Msg("failed to evict cached role")
		}
	}
	return p.ensureInStore(ctx, store, name)
}

func (p *RoleProvisioner) ensureInStore(ctx context.Context, store ports.CredentialStore, name string) (ProvisionOutcome, error) {
	_, err := store.FindRoleByName(ctx, name)
	switch {
	case err == nil:
		return RoleAlreadyExists, nil
	case !errors.Is(err, domain.ErrRoleNotFound):
		return 0, domain.WrapStore(fmt.Sprintf("find role %q", name), err)
	}

	if _, err := store.CreateRole(ctx, domain.NewRole(name, p.now())); err != nil {
		if errors.Is(err, domain.ErrRoleExists) {
			return RoleAlreadyExists, nil
		}
		return 0, domain.WrapStore(fmt.Sprintf("create role %q", name), err)
	}

	p.log.Info().Str("role", name).Msg("role created")
	return RoleCreated, nil
}

// Remember records roles as existing once the unit that created them has
// committed. Cache failures are logged and otherwise ignored.
func (p *RoleProvisioner) Remember(ctx context.Context, names ...string) {
	if p.cache == nil || len(names) == 0 {
		return
	}
	if err := p.cache.Remember(ctx, names...); err != nil {
		p.log.Warn().Err(err).Strs("roles", names).Msg("failed to cache roles")
	}
}

func invalidRoleName() error {
	return domain.NewValidationError(domain.FieldError{
		Field:       "roleName",
		Code:        domain.CodeInvalidRoleName,
		Description: "Role name '' is invalid.",
	})
}
