package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PointKind distinguishes a producer's Point of Presence from a consumer's
// Point of Delivery. Stored as smallint (0 presence, 1 delivery).
type PointKind int16

const (
	PointOfPresence PointKind = 0
	PointOfDelivery PointKind = 1
)

func ParsePointKind(value string) (PointKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "presence", "pop":
		return PointOfPresence, nil
	case "delivery", "pod":
		return PointOfDelivery, nil
	default:
		return 0, fmt.Errorf("unknown point kind %q", value)
	}
}

func PointKindFromCode(code int16) (PointKind, error) {
	kind := PointKind(code)
	if !kind.Valid() {
		return 0, fmt.Errorf("unknown point kind code %d", code)
	}
	return kind, nil
}

func (k PointKind) Valid() bool {
	return k == PointOfPresence || k == PointOfDelivery
}

func (k PointKind) String() string {
	switch k {
	case PointOfPresence:
		return "presence"
	case PointOfDelivery:
		return "delivery"
	default:
		return fmt.Sprintf("point_kind(%d)", int16(k))
	}
}

func (k PointKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal point kind: unknown code %d", int16(k))
	}
	return json.Marshal(k.String())
}

func (k *PointKind) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	parsed, err := ParsePointKind(value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type PointOfActivity struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Kind          PointKind `json:"type"`
	Name          string    `json:"name"`
	Description   *string   `json:"description,omitempty"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	FreshCapacity float64   `json:"fresh_capacity"`
	DryCapacity   float64   `json:"dry_capacity"`
	IsActive      bool      `json:"is_active"`
	AddressHint   string    `json:"address_hint"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
