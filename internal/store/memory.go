package store

import (
	"context"

	"github.com/pantryware/homestock/internal/family"
	"github.com/pantryware/homestock/internal/identity"
	"github.com/pantryware/homestock/internal/inventory"
	"github.com/pantryware/homestock/internal/invites"
	"github.com/pantryware/homestock/internal/nfc"
	"github.com/pantryware/homestock/internal/notifications"
)

func init() {
	Register("memory", func(_ *DriverConfig) (Driver, error) {
		return NewMemoryDriver(), nil
	})
}

// MemoryDriver bundles the in-memory repositories. Data is lost on
// restart; intended for development and tests.
type MemoryDriver struct {
	users    *identity.MemoryPartyRepo
	families *family.MemoryFamilyRepo
	members  *family.MemoryMemberRepo
	invs     *invites.MemoryRepo
	items    *inventory.MemoryItemRepo
	lists    *inventory.MemoryListRepo
	urls     *nfc.MemoryURLRepo
	prefs    *notifications.MemoryRepo
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		users:    identity.NewMemoryPartyRepo(),
		families: family.NewMemoryFamilyRepo(),
		members:  family.NewMemoryMemberRepo(),
		invs:     invites.NewMemoryRepo(),
		items:    inventory.NewMemoryItemRepo(),
		lists:    inventory.NewMemoryListRepo(),
		urls:     nfc.NewMemoryURLRepo(),
		prefs:    notifications.NewMemoryRepo(),
	}
}

func (d *MemoryDriver) Init(_ context.Context) error { return nil }
func (d *MemoryDriver) Close() error                 { return nil }
func (d *MemoryDriver) Name() string                 { return "memory" }

func (d *MemoryDriver) Users() identity.PartyRepo          { return d.users }
func (d *MemoryDriver) Families() family.FamilyRepo        { return d.families }
func (d *MemoryDriver) Members() family.MemberRepo         { return d.members }
func (d *MemoryDriver) Invitations() invites.Repo          { return d.invs }
func (d *MemoryDriver) Items() inventory.ItemRepo          { return d.items }
func (d *MemoryDriver) Lists() inventory.ListRepo          { return d.lists }
func (d *MemoryDriver) NFCURLs() nfc.URLRepo               { return d.urls }
func (d *MemoryDriver) Preferences() notifications.Repo    { return d.prefs }
