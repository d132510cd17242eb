package users

import "time"

// Roles an account can hold. Admins manage accounts; operators work the
// contact and dedupe queues.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Account is one operator or admin credential record.
type Account struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	LastLoginAt time.Time `json:"last_login_at,omitzero"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest is the input for creating an account.
type CreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// UpdateRequest is the input for admin-level account updates.
type UpdateRequest struct {
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UpdatePasswordRequest is the input for a self-service password change.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ResetPasswordRequest is the input for an admin password reset.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ListResponse wraps a list of accounts.
type ListResponse struct {
	Items []Account `json:"items"`
}
