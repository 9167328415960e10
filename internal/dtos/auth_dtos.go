package dtos

import (
	"strings"

	"github.com/Ndunguuu01/kodipay/internal/models"
)

// ----------------------
// Requests
// ----------------------

// RegisterRequest accepts the phone under either "phone" or "phoneNumber".
type RegisterRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string  `json:"phone,omitempty"`
	PhoneNumber string  `json:"phoneNumber,omitempty"`
	Password    string  `json:"password" validate:"required,min=6,max=128"`
	Role        string  `json:"role,omitempty" validate:"omitempty,oneof=landlord tenant admin"`
}

func (r *RegisterRequest) ResolvedPhone() string {
	if p := strings.TrimSpace(r.Phone); p != "" {
		return p
	}
	return strings.TrimSpace(r.PhoneNumber)
}

type LoginRequest struct {
	Phone    string `json:"phone,omitempty" validate:"required_without=Email"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type RequestPasswordResetRequest struct {
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"required_without=Email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// ----------------------
// Responses
// ----------------------

type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
