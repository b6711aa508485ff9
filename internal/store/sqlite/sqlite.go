// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pantryware/homestock/internal/family"
	"github.com/pantryware/homestock/internal/identity"
	"github.com/pantryware/homestock/internal/inventory"
	"github.com/pantryware/homestock/internal/invites"
	"github.com/pantryware/homestock/internal/nfc"
	"github.com/pantryware/homestock/internal/notifications"
	"github.com/pantryware/homestock/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(d.dataDir, "homestock.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.AutoMigrate(
		&identity.User{},
		&family.Family{},
		&family.Member{},
		&invites.Invitation{},
		&inventory.Item{},
		&inventory.ShoppingList{},
		&inventory.ShoppingListEntry{},
		&nfc.URL{},
		&notifications.Preferences{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Driver) Users() identity.PartyRepo       { return &userRepo{db: d.db} }
func (d *Driver) Families() family.FamilyRepo     { return &familyRepo{db: d.db} }
func (d *Driver) Members() family.MemberRepo      { return &memberRepo{db: d.db} }
func (d *Driver) Invitations() invites.Repo       { return &invitationRepo{db: d.db} }
func (d *Driver) Items() inventory.ItemRepo       { return &itemRepo{db: d.db} }
func (d *Driver) Lists() inventory.ListRepo       { return &listRepo{db: d.db} }
func (d *Driver) NFCURLs() nfc.URLRepo            { return &urlRepo{db: d.db} }
func (d *Driver) Preferences() notifications.Repo { return &prefsRepo{db: d.db} }
