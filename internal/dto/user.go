package dto

import "time"

// RegisterRequest carries the multipart form fields for registration. The
// avatar and cover image files travel separately as multipart file parts.
type RegisterRequest struct {
	FullName string `form:"fullName" binding:"required,min=2,max=100"`
	Email    string `form:"email" binding:"required,email"`
	Username string `form:"username" binding:"required,min=3,max=30,alphanum"`
	Password string `form:"password" binding:"required,min=8,max=100"`
}

// LoginRequest accepts either username or email; the service requires at
// least one of them.
type LoginRequest struct {
	Username string `json:"username" binding:"omitempty,min=3,max=30"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest is the body fallback when the refresh cookie is absent.
// An empty token is handled by the service, so no binding constraint applies.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
}

// UserResponse is the safe view of an identity record: no password hash, no
// refresh token.
type UserResponse struct {
	ID            uint      `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	LastLogin     time.Time `json:"lastLogin"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type LoginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int          `json:"expiresIn"` // access token lifetime in seconds
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}
