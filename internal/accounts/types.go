package accounts

import (
	"time"

	"github.com/fieldline/fieldline/internal/visibility"
)

// Account is a staff login within an organization.
type Account struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	DisplayName    string    `json:"display_name"`
	Role           string    `json:"role"`
	Permissions    []string  `json:"permissions"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	LastLoginAt    time.Time `json:"last_login_at,omitzero"`
}

// Viewer is the identity the inbox filters conversations for.
func (a Account) Viewer() visibility.Viewer {
	return visibility.Viewer{
		UserID:         a.ID,
		OrganizationID: a.OrganizationID,
		Role:           a.Role,
		Permissions:    a.Permissions,
	}
}

// CreateAccountRequest is the input for creating an account.
type CreateAccountRequest struct {
	OrganizationID string   `json:"organization_id"`
	Username       string   `json:"username"`
	Password       string   `json:"password"`
	Email          string   `json:"email,omitempty"`
	DisplayName    string   `json:"display_name,omitempty"`
	Role           string   `json:"role,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
}

// Roles known to the inbox. Others are accepted and treated as unrestricted
// unless configured otherwise.
const (
	RoleAdmin      = "admin"
	RoleOwner      = "owner"
	RoleOffice     = "office"
	RoleTechnician = "technician"
)
