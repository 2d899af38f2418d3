package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/crm-api/internal/config"
	"github.com/jwalitptl/crm-api/internal/handler"
	contactHandler "github.com/jwalitptl/crm-api/internal/handler/contact"
	"github.com/jwalitptl/crm-api/internal/middleware"
	"github.com/jwalitptl/crm-api/internal/repository/postgres"
	"github.com/jwalitptl/crm-api/internal/router"
	commsService "github.com/jwalitptl/crm-api/internal/service/comms"
	resolverService "github.com/jwalitptl/crm-api/internal/service/resolver"
	scoringService "github.com/jwalitptl/crm-api/internal/service/scoring"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	contactRepo := postgres.NewContactRepository(db)
	communicationRepo := postgres.NewCommunicationRepository(db)
	prospectRepo := postgres.NewProspectRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Services
	m := metrics.NewMetrics("crm", "api")
	resolverSvc := resolverService.NewService(contactRepo, prospectRepo, patientRepo, m)
	scoringSvc := scoringService.NewService(contactRepo, m)
	commsSvc := commsService.NewService(communicationRepo, m)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.ServiceTokenSecret)
	tenantMiddleware := middleware.NewTenantMiddleware(tenantRepo, middleware.DefaultTenantConfig())

	// Handlers
	h := handler.NewHandler(db)
	contactH := contactHandler.NewHandler(resolverSvc, scoringSvc, commsSvc, contactRepo, outboxRepo)

	r := router.NewRouter(
		authMiddleware,
		tenantMiddleware,
		contactH,
		h,
		router.Config{
			RateLimit:     rate.Limit(cfg.HTTP.RateLimit),
			RateBurst:     cfg.HTTP.RateBurst,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "crm_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
