package api

// RegisterRequest creates a new owner account. RegionCode decides which
// regional store holds the owner's records and cannot be changed later.
type RegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RegionCode string `json:"region_code"`
}

// RegisterResponse is the response to a successful registration.
type RegisterResponse struct {
	OwnerID    string `json:"owner_id"`
	RegionCode string `json:"region_code"`
	Message    string `json:"message"`
}

// LoginRequest authenticates an owner.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries a fresh token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	OwnerID      string `json:"owner_id"`
	RegionCode   string `json:"region_code"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}

// ErrorResponse is the error body for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
