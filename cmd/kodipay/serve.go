package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/controllers"
	"github.com/Ndunguuu01/kodipay/internal/routes"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

const (
	mongoIndexTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, realtime socket and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	application, err := bootstrap()
	if err != nil {
		return err
	}
	defer application.Close()
	cfg := application.Config

	s := newStack(application)

	//----------------------------------------------------------------------
	// Controllers & router
	//----------------------------------------------------------------------
	ctrls := routes.Controllers{
		Auth:      controllers.NewAuthController(s.auth),
		Property:  controllers.NewPropertyController(s.properties),
		Tenant:    controllers.NewTenantController(s.tenants),
		Bill:      controllers.NewBillController(s.ledger),
		Payment:   controllers.NewPaymentController(s.ledger, s.gateway),
		Complaint: controllers.NewComplaintController(s.complaints),
		SMS:       controllers.NewSMSController(s.sms),
		Health:    controllers.NewHealthController(application.DB, application.StartedAt),
		Realtime:  controllers.NewRealtimeController(s.hub, cfg.JWTSecret),
	}
	if s.repos.messages != nil {
		ctrls.Message = controllers.NewMessageController(s.messages)
	}
	router := routes.NewRouter(ctrls, cfg.JWTSecret)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)
	defer s.hub.Close()

	//----------------------------------------------------------------------
	// Scheduled jobs
	//----------------------------------------------------------------------
	c := cron.New()
	if cfg.LDFlag_OverdueSweepEnabled {
		_, sweepErr := c.AddFunc(constants.OverdueSweepCronSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), constants.OverdueSweepJobTimeout)
			defer cancel()
			n, e := s.ledger.SweepOverdue(ctx)
			if e != nil {
				utils.Logger.WithError(e).Error("Scheduled overdue sweep failed")
				return
			}
			utils.Logger.Infof("Overdue sweep marked %d bill(s) overdue", n)
		})
		if sweepErr != nil {
			utils.Logger.WithError(sweepErr).Fatal("Failed to schedule overdue sweep cron")
		}
	} else {
		utils.Logger.Info("overdue_sweep_enabled is off; skipping overdue sweep cron")
	}

	_, cleanupErr := c.AddFunc(constants.TokenCleanupCronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.TokenCleanupJobTimeout)
		defer cancel()
		if e := s.cleanup.CleanupDaily(ctx); e != nil {
			utils.Logger.WithError(e).Error("Scheduled token cleanup failed")
		}
	})
	if cleanupErr != nil {
		utils.Logger.WithError(cleanupErr).Fatal("Failed to schedule token cleanup cron")
	}
	c.Start()
	defer c.Stop()

	//----------------------------------------------------------------------
	// CORS
	//----------------------------------------------------------------------
	allowedOrigins := []string{cfg.FrontendURL}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, constants.CORSLowSecurityAllowedOriginLocalhost)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           co.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.WithError(err).Error("HTTP server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	utils.Logger.Info("Shutdown signal received; draining HTTP connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.WithError(err).Error("HTTP server did not shut down cleanly")
		return err
	}
	utils.Logger.Info("HTTP server stopped")
	return nil
}
