package http

import "github.com/aussiebroadwan/storefront/internal/auth/domain"

// RegisterRequest is the body of POST /v1/users.
type RegisterRequest struct {
	FirstName string `json:"firstName" example:"Alice"`
	LastName  string `json:"lastName" example:"Liddell"`
	Username  string `json:"username" example:"alice"`
	Password  string `json:"password" example:"secret12"`
}

// LoginRequest is the body of POST /v1/users/auth.
type LoginRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"secret12"`
}

// RefreshRequest carries the refresh token in the body. Only read when the
// refresh-token-in-body debug switch is on.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// UpdateUserRequest is the body of PUT /v1/users/{username}.
type UpdateUserRequest struct {
	FirstName   string `json:"firstName" example:"Alice"`
	LastName    string `json:"lastName" example:"Liddell"`
	Username    string `json:"username" example:"alice"`
	OldPassword string `json:"oldPassword" example:"secret12"`
	NewPassword string `json:"newPassword" example:"secret34"`
}

// DeleteUserRequest is the body of DELETE /v1/users/{username}.
type DeleteUserRequest struct {
	Password string `json:"password" example:"secret12"`
}

// SessionResponse is returned by registration, login and refresh.
type SessionResponse struct {
	User         domain.PublicUser `json:"user"`
	AccessToken  string            `json:"access_token"`
	TokenType    string            `json:"token_type" example:"Bearer"`
	ExpiresIn    int               `json:"expires_in" example:"600"`
	RefreshToken string            `json:"refresh_token,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Uptime  string            `json:"uptime" example:"1h2m3s"`
	Version string            `json:"version" example:"dev"`
	Checks  map[string]string `json:"checks,omitempty"`
}
