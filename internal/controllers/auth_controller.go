package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type AuthController struct {
	authService services.AuthService
}

func NewAuthController(s services.AuthService) *AuthController {
	return &AuthController{authService: s}
}

// POST /api/auth/register
func (c *AuthController) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.ResolvedPhone() == "" {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "phone is required", nil)
		return
	}

	resp, err := c.authService.Register(r.Context(), req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.Logger.WithField("handler", "RegisterHandler").WithField("userID", resp.User.ID).Info("user registered")
	utils.RespondWithJSON(w, http.StatusCreated, resp)
}

// POST /api/auth/login
func (c *AuthController) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := c.authService.Login(r.Context(), req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// POST /api/auth/refresh-token
func (c *AuthController) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := c.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// POST /api/auth/logout
func (c *AuthController) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.LogoutRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := c.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Logged out"})
}

// GET /api/auth/me, GET /api/users/me
func (c *AuthController) MeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	user, err := c.authService.Me(r.Context(), actor.UserID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

// POST /api/auth/request-password-reset
//
// The answer is the same whether or not the account exists.
func (c *AuthController) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.RequestPasswordResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := c.authService.RequestPasswordReset(r.Context(), req); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{
		Message: "If the account exists, reset instructions have been sent",
	})
}

// PUT /api/auth/reset-password/{token}
func (c *AuthController) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	var req dtos.ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := c.authService.ResetPassword(r.Context(), token, req.Password); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Password has been reset"})
}
