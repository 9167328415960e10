package controllers

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Ndunguuu01/kodipay/internal/middleware"
	"github.com/Ndunguuu01/kodipay/internal/realtime"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type RealtimeController struct {
	hub    *realtime.Hub
	secret []byte
}

func NewRealtimeController(hub *realtime.Hub, secret []byte) *RealtimeController {
	return &RealtimeController{hub: hub, secret: secret}
}

// GET /api/ws?token=...
//
// Browsers cannot set headers on a websocket handshake, so the access
// token travels in the query string.
func (c *RealtimeController) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing token", nil)
		return
	}
	actor, err := middleware.IdentityFromToken(token, c.secret)
	if err != nil {
		code := utils.ErrCodeUnauthorized
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = utils.ErrCodeTokenExpired
		}
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, code, "Invalid token", nil, err)
		return
	}

	utils.Logger.WithField("handler", "WebSocketHandler").WithField("userID", actor.UserID).Debug("websocket connected")
	c.hub.Serve(w, r, actor)
}
