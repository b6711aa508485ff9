// Package nfc manages per-item NFC adjustment URLs and processes the
// unauthenticated quantity adjustments they trigger.
package nfc

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrInvalidDelta rejects any adjustment delta other than +1 or -1.
	ErrInvalidDelta = errors.New("delta must be +1 or -1")
	// ErrURLInactiveOrNotFound is returned for both unknown and
	// deactivated URL IDs, so callers cannot probe which IDs exist.
	ErrURLInactiveOrNotFound = errors.New("url inactive or not found")
	// ErrQuantityWouldGoNegative rejects a decrement at quantity zero.
	ErrQuantityWouldGoNegative = errors.New("quantity would go negative")
	// ErrAdjustmentFailed wraps storage failures while applying an
	// otherwise valid adjustment.
	ErrAdjustmentFailed = errors.New("adjustment failed")
)

// URL is an NFC adjustment URL bound to an inventory item. The ID is the
// public, unguessable path segment written to the physical tag. A
// deactivated URL keeps its record for auditing but stops resolving.
type URL struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	ItemID        string     `json:"itemId" gorm:"index"`
	FamilyID      string     `json:"familyId" gorm:"index"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"createdAt"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
}

// NewURLID returns a fresh unguessable URL identifier.
func NewURLID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
