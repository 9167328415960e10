package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type MessageController struct {
	messageService services.MessageService
}

func NewMessageController(s services.MessageService) *MessageController {
	return &MessageController{messageService: s}
}

// GET /api/messages
func (c *MessageController) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	msgs, err := c.messageService.ListMine(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, msgs)
}

// GET /api/messages/group/{propertyId}
func (c *MessageController) ListGroupHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathUUID(w, r, "propertyId")
	if !ok {
		return
	}
	msgs, err := c.messageService.ListGroup(r.Context(), actor, propertyID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, msgs)
}

// GET /api/messages/direct/{userId}
func (c *MessageController) ListDirectHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	otherID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}
	msgs, err := c.messageService.ListDirect(r.Context(), actor, otherID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, msgs)
}

// POST /api/messages/group
func (c *MessageController) SendGroupHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req dtos.SendGroupMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	m, err := c.messageService.SendGroup(r.Context(), actor, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, m)
}

// POST /api/messages/direct
func (c *MessageController) SendDirectHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req dtos.SendDirectMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	m, err := c.messageService.SendDirect(r.Context(), actor, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, m)
}

// PUT /api/messages/{id}/read
func (c *MessageController) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := c.messageService.MarkRead(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Message marked as read"})
}
