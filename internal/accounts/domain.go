package accounts

import (
	"time"

	"github.com/estateline/estateline/internal/authz"
)

// Profile is the persisted user record. IDs are issued by the identity
// provider and stored as opaque UUID strings.
type Profile struct {
	ID        string     `json:"id"`
	FullName  string     `json:"full_name"`
	Role      authz.Role `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Grant links a user to an estate they may act on.
type Grant struct {
	UserID    string    `json:"user_id"`
	EstateID  string    `json:"estate_id"`
	GrantedBy string    `json:"granted_by"`
	CreatedAt time.Time `json:"created_at"`
}
