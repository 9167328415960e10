package main

import (
	"context"

	"github.com/Ndunguuu01/kodipay/internal/app"
	"github.com/Ndunguuu01/kodipay/internal/config"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/mpesa"
	"github.com/Ndunguuu01/kodipay/internal/realtime"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type repos struct {
	users      repositories.UserRepository
	tokens     repositories.TokenRepository
	properties repositories.PropertyRepository
	rooms      repositories.RoomRepository
	tenants    repositories.TenantRepository
	leases     repositories.LeaseRepository
	bills      repositories.BillRepository
	payments   repositories.PaymentRepository
	ledgerTx   repositories.LedgerTxRunner
	complaints repositories.ComplaintRepository
	messages   repositories.MessageRepository // nil without Mongo
}

type stack struct {
	repos

	auth       services.AuthService
	properties services.PropertyService
	tenants    services.TenantService
	ledger     services.LedgerService
	gateway    services.GatewayService
	messages   services.MessageService
	complaints services.ComplaintService
	sms        services.SMSService
	cleanup    services.TokenCleanupService

	hub *realtime.Hub
}

// bootstrap loads config and opens every configured connection.
func bootstrap() (*app.App, error) {
	cfg := config.LoadConfig()
	return app.NewApp(cfg)
}

func newRepos(a *app.App) repos {
	r := repos{
		users:      repositories.NewUserRepository(a.DB),
		tokens:     repositories.NewTokenRepository(a.DB),
		properties: repositories.NewPropertyRepository(a.DB),
		rooms:      repositories.NewRoomRepository(a.DB),
		tenants:    repositories.NewTenantRepository(a.DB),
		leases:     repositories.NewLeaseRepository(a.DB),
		bills:      repositories.NewBillRepository(a.DB),
		payments:   repositories.NewPaymentRepository(a.DB),
		ledgerTx:   repositories.NewLedgerTxRunner(a.DB),
		complaints: repositories.NewComplaintRepository(a.DB),
	}
	if db := a.MongoDatabase(); db != nil {
		r.messages = repositories.NewMessageRepository(db)
	}
	return r
}

func newStack(a *app.App) *stack {
	cfg := a.Config
	s := &stack{repos: newRepos(a)}

	notifier := services.NewNotifier(cfg, a.SendGrid, a.Twilio)
	mpesaClient := mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		Shortcode:      cfg.MpesaShortcode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.MpesaCallbackURL,
		Timeout:        cfg.GatewayTimeout,
	}, nil)

	jwtService := services.NewJWTService(cfg, s.repos.tokens, s.repos.users)
	s.auth = services.NewAuthService(cfg, s.repos.users, s.repos.tokens, jwtService, notifier, a.Twilio)
	s.properties = services.NewPropertyService(s.repos.properties, s.repos.rooms, s.repos.tenants)
	s.tenants = services.NewTenantService(s.repos.tenants, s.repos.properties, s.repos.leases, s.repos.users)
	s.ledger = services.NewLedgerService(
		s.repos.bills,
		s.repos.payments,
		s.repos.ledgerTx,
		s.repos.properties,
		s.repos.tenants,
		s.repos.users,
		notifier,
	)
	s.gateway = services.NewGatewayService(mpesaClient, s.repos.bills, s.repos.payments, s.repos.ledgerTx)
	s.complaints = services.NewComplaintService(s.repos.complaints, s.repos.properties, s.repos.tenants)
	s.sms = services.NewSMSService(notifier)
	s.cleanup = services.NewTokenCleanupService(s.repos.tokens)

	// The hub asks the message service who may join a room, and the message
	// service publishes through the hub.
	s.hub = realtime.NewHub(a.Redis, func(ctx context.Context, actor models.Actor, room string) error {
		return s.messages.CanJoinRoom(ctx, actor, room)
	})
	s.messages = services.NewMessageService(s.repos.messages, s.repos.properties, s.repos.tenants, s.repos.users, s.hub)

	if s.repos.messages != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoIndexTimeout)
		defer cancel()
		if err := s.repos.messages.EnsureIndexes(ctx); err != nil {
			utils.Logger.WithError(err).Warn("Failed to ensure message indexes")
		}
	}
	return s
}
