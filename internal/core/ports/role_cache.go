package ports

import "context"

// RoleCache remembers role names already known to exist in the store.
type RoleCache interface {
	Known(ctx context.Context, name string) (bool, error)
	Remember(ctx context.Context, names ...string) error
	// Forget removes a name the store turned out not to hold.
	Forget(ctx context.Context, name string) error
}
