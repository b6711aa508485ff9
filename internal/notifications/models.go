// Package notifications manages per-user notification preferences and
// resolves the effective delivery frequency for a notification.
package notifications

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrPreferencesNotFound = errors.New("preferences not found")

// Frequency is how often notifications are delivered on a channel.
type Frequency string

const (
	FrequencyNone      Frequency = "NONE"
	FrequencyImmediate Frequency = "IMMEDIATE"
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
)

// ValidFrequency reports whether f is a known frequency.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyNone, FrequencyImmediate, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	TypeLowStock   NotificationType = "LOW_STOCK"
	TypeSuggestion NotificationType = "SUGGESTION"
)

// ValidType reports whether t is a known notification type.
func ValidType(t NotificationType) bool {
	return t == TypeLowStock || t == TypeSuggestion
}

// Channel is a delivery channel.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelInApp Channel = "IN_APP"
)

// ValidChannel reports whether c is a known channel.
func ValidChannel(c Channel) bool {
	return c == ChannelEmail || c == ChannelInApp
}

// FrequencyList holds one or more frequencies for a rule. Clients may send
// either a bare frequency string or an array; internally it is always a
// slice. Marshalling emits the bare string again when there is exactly one
// entry, so round-trips preserve the client's scalar shape.
type FrequencyList []Frequency

func (l *FrequencyList) UnmarshalJSON(data []byte) error {
	var one Frequency
	if err := json.Unmarshal(data, &one); err == nil {
		*l = FrequencyList{one}
		return nil
	}
	var many []Frequency
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("frequency must be a string or array of strings")
	}
	*l = FrequencyList(many)
	return nil
}

func (l FrequencyList) MarshalJSON() ([]byte, error) {
	if len(l) == 1 {
		return json.Marshal(l[0])
	}
	return json.Marshal([]Frequency(l))
}

// Rule binds a notification type and channel to delivery frequencies. A
// rule may carry several frequencies, such as an immediate alert plus a
// weekly digest, and the list travels through resolution intact.
type Rule struct {
	Type        NotificationType `json:"type"`
	Channel     Channel          `json:"channel"`
	Frequencies FrequencyList    `json:"frequency"`
}

// Preferences is a user's notification preference document. It is read and
// replaced as a whole; there is no partial update.
type Preferences struct {
	UserID              string    `json:"userId" gorm:"primaryKey"`
	Timezone            string    `json:"timezone,omitempty"`
	DefaultFrequency    Frequency `json:"defaultFrequency"`
	UnsubscribeAllEmail bool      `json:"unsubscribeAllEmail"`
	Rules               []Rule    `json:"rules" gorm:"serializer:json"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// DefaultPreferences is what a user has before ever saving preferences.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:           userID,
		DefaultFrequency: FrequencyImmediate,
	}
}
