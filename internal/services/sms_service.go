package services

import (
	"context"
	"strings"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type SMSService interface {
	Send(ctx context.Context, actor models.Actor, req dtos.SendSMSRequest) error
}

type smsService struct {
	notifier Notifier
}

func NewSMSService(notifier Notifier) SMSService {
	return &smsService{notifier: notifier}
}

func (s *smsService) Send(ctx context.Context, actor models.Actor, req dtos.SendSMSRequest) error {
	if actor.Role != models.RoleLandlord && !actor.IsAdmin() {
		return utils.NewNotPermittedError("Only landlords can send SMS")
	}
	phone := strings.TrimSpace(req.Phone)
	if !utils.IsE164(phone) {
		return utils.NewValidationError("phone must be in E.164 format", utils.ErrInvalidPhone)
	}
	body := strings.TrimSpace(req.Message)
	if body == "" {
		return utils.NewValidationError("message must not be empty", nil)
	}

	if err := s.notifier.SendSMS(ctx, phone, body); err != nil {
		utils.Logger.WithError(err).WithField("sender", actor.UserID).Error("sms send failed")
		return externalFailure("Failed to send SMS", err)
	}
	return nil
}
