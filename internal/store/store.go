package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

var (
	// ErrNotFound is returned when a profile id does not exist.
	ErrNotFound = errors.New("profile not found")
	// ErrProfileExists is returned when a profile with the same name exists.
	ErrProfileExists = errors.New("profile already exists")
	// ErrLastProfile is returned when deleting the only remaining profile.
	ErrLastProfile = errors.New("cannot delete the last profile")
)

// Error codes reported to clients for the sentinels above.
const (
	CodeProfileExists = "PROFILE_EXISTS"
	CodeLastProfile   = "LAST_PROFILE"
	CodeNotFound      = "NOT_FOUND"
)

// Structure is a stored graph document together with its derived columns.
type Structure struct {
	Document      []byte
	SchemaVersion int
	Relationships int
}

// Store defines the persistence interface for profiles and their graphs.
type Store interface {
	// Profiles
	ListProfiles(ctx context.Context) ([]*model.Profile, error) // active first, then by name
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	ActiveProfile(ctx context.Context) (*model.Profile, error)
	CreateProfile(ctx context.Context, p *model.Profile) error
	DeleteProfile(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error

	// Structures
	LoadStructure(ctx context.Context, id string) ([]byte, error)
	SaveStructure(ctx context.Context, id string, s Structure) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
