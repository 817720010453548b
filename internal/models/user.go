package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the marketplace side a user signed up for. It is stored as a
// smallint (0 producer, 1 consumer) and never changes after sign-up.
type Role int16

const (
	RoleProducer Role = 0
	RoleConsumer Role = 1
)

func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "producer":
		return RoleProducer, nil
	case "consumer":
		return RoleConsumer, nil
	default:
		return 0, fmt.Errorf("unknown role %q", value)
	}
}

// RoleFromCode converts the stored smallint.
func RoleFromCode(code int16) (Role, error) {
	role := Role(code)
	if !role.Valid() {
		return 0, fmt.Errorf("unknown role code %d", code)
	}
	return role, nil
}

func (r Role) Valid() bool {
	return r == RoleProducer || r == RoleConsumer
}

func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleConsumer:
		return "consumer"
	default:
		return fmt.Sprintf("role(%d)", int16(r))
	}
}

// DefaultPointKind is the kind of point a user of this role owns by convention.
func (r Role) DefaultPointKind() PointKind {
	if r == RoleConsumer {
		return PointOfDelivery
	}
	return PointOfPresence
}

func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("marshal role: unknown code %d", int16(r))
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	parsed, err := ParseRole(value)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicUser is what other users may see. Email and phone stay private.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	FullName  string    `json:"full_name"`
	Bio       *string   `json:"bio,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Role:      u.Role,
		FullName:  u.FullName,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
	}
}
