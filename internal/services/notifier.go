package services

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ndunguuu01/kodipay/internal/config"
	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// Notifier delivers outbound email and SMS. Every send is bounded by
// constants.NotificationTimeout on top of the caller's context.
type Notifier interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, plainText, html string) error
	SendSMS(ctx context.Context, to, body string) error
}

type notifier struct {
	sg          *sendgrid.Client
	tw          *twilio.RestClient
	fromEmail   string
	fromPhone   string
	sandboxMode bool
}

// NewNotifier accepts nil clients; sends through a missing provider fail
// with utils.ErrExternalServiceFailure.
func NewNotifier(cfg *config.Config, sg *sendgrid.Client, tw *twilio.RestClient) Notifier {
	return &notifier{
		sg:          sg,
		tw:          tw,
		fromEmail:   cfg.SendGridFromEmail,
		fromPhone:   cfg.TwilioFromPhone,
		sandboxMode: cfg.LDFlag_SendgridSandboxMode,
	}
}

func (n *notifier) SendEmail(ctx context.Context, toName, toEmail, subject, plainText, html string) error {
	if n.sg == nil {
		utils.Logger.Warn("SendGrid client is nil, cannot send email")
		return fmt.Errorf("%w: email provider not configured", utils.ErrExternalServiceFailure)
	}

	from := mail.NewEmail(constants.OrganizationName, n.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	msg := mail.NewSingleEmail(from, subject, to, plainText, html)
	msg.TrackingSettings = &mail.TrackingSettings{
		ClickTracking: &mail.ClickTrackingSetting{
			Enable: utils.Ptr(false),
		},
	}
	if n.sandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}

	ctx, cancel := context.WithTimeout(ctx, constants.NotificationTimeout)
	defer cancel()

	resp, err := n.sg.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: sendgrid: %v", utils.ErrExternalServiceFailure, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid status %d", utils.ErrExternalServiceFailure, resp.StatusCode)
	}
	return nil
}

func (n *notifier) SendSMS(ctx context.Context, to, body string) error {
	if n.tw == nil {
		utils.Logger.Warn("Twilio client is nil, cannot send SMS")
		return fmt.Errorf("%w: sms provider not configured", utils.ErrExternalServiceFailure)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.fromPhone)
	params.SetBody(body)

	// The Twilio SDK takes no context, so the deadline is enforced here.
	ctx, cancel := context.WithTimeout(ctx, constants.NotificationTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := n.tw.Api.CreateMessage(params)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: failed to send sms via twilio: %v", utils.ErrExternalServiceFailure, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: twilio: %v", utils.ErrExternalServiceFailure, ctx.Err())
	}
}
