package api

import "time"

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login. The same token is also set
// as the session cookie.
type LoginResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	UserID    int64     `json:"user_id"`
}

// MeResponse describes the caller of the current session.
type MeResponse struct {
	ExpiresAt         time.Time `json:"expires_at"`
	Username          string    `json:"username"`
	Roles             []string  `json:"roles"`
	AllowedOperations []string  `json:"allowed_operations"`
	UserID            int64     `json:"user_id"`
}

// Error codes carried in ErrorResponse.Error.
const (
	CodeAuthentication = "authentication"
	CodeTokenExpired   = "token_expired"
	CodeTokenInvalid   = "token_invalid"
	CodeAuthorization  = "authorization"
	CodeValidation     = "validation"
	CodeNotFound       = "not_found"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // machine-readable code
	Message string `json:"message,omitempty"` // text safe to show the user
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
