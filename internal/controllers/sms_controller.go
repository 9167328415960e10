package controllers

import (
	"net/http"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type SMSController struct {
	smsService services.SMSService
}

func NewSMSController(s services.SMSService) *SMSController {
	return &SMSController{smsService: s}
}

// POST /api/sms/send
func (c *SMSController) SendSMSHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req dtos.SendSMSRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := c.smsService.Send(r.Context(), actor, req); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "SMS sent"})
}
