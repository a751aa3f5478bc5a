package domain

import (
	"sort"
	"strings"
	"time"
)

// DefaultRole is attached to every newly registered user.
const DefaultRole = "Guest"

// Role is a named authorization group.
type Role struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewRole builds a role record with its normalized lookup key populated.
func NewRole(name string, now time.Time) *Role {
	name = strings.TrimSpace(name)
	return &Role{
		Name:           name,
		NormalizedName: Normalize(name),
		CreatedAt:      now.UTC(),
	}
}

// PrimaryRole picks the role carried in a token when a user holds several.
// The choice is the lexicographically smallest name so it never depends on
// assignment order. An empty result means "no role".
func PrimaryRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	sorted := append([]string(nil), roles...)
	sort.Strings(sorted)
	return sorted[0]
}
