// Package store provides persistence driver abstractions. A driver bundles
// the concrete repositories for every domain aggregate behind one
// lifecycle.
package store

import (
	"context"
	"errors"

	"github.com/pantryware/homestock/internal/family"
	"github.com/pantryware/homestock/internal/identity"
	"github.com/pantryware/homestock/internal/inventory"
	"github.com/pantryware/homestock/internal/invites"
	"github.com/pantryware/homestock/internal/nfc"
	"github.com/pantryware/homestock/internal/notifications"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string

	Users() identity.PartyRepo
	Families() family.FamilyRepo
	Members() family.MemberRepo
	Invitations() invites.Repo
	Items() inventory.ItemRepo
	Lists() inventory.ListRepo
	NFCURLs() nfc.URLRepo
	Preferences() notifications.Repo
}
