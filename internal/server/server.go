package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fegerV/Stogram-sub001/internal/config"
	"github.com/fegerV/Stogram-sub001/internal/repository"
	"github.com/fegerV/Stogram-sub001/internal/repository/cache"
	"github.com/fegerV/Stogram-sub001/internal/repository/database"
	"github.com/fegerV/Stogram-sub001/internal/service"
)

type Option func(*Server)

func WithMigrateDown(m func() error) Option {
	return func(s *Server) {
		s.migrateDown = m
	}
}

type Server struct {
	router      *http.ServeMux
	scheduler   *service.SchedulerService
	migrateDown func() error
}

func NewServer(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		router: http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	msgRepository := repository.NewMessageRepo(database.Client())
	memberRepository := repository.NewMembershipRepo(database.Client())
	callRepository := repository.NewCallRepo(database.Client())
	webhookRepository := repository.NewWebhookRepo(database.Client())
	connRepository := repository.NewConnectionRepo(cache.Client())

	hub := service.NewHub()
	webhookSrv := service.NewWebhookService(webhookRepository, cfg.Webhook.Timeout())
	relaySrv := service.NewRelayService(msgRepository, memberRepository, hub, connRepository, webhookSrv)
	callSrv := service.NewCallService(callRepository, memberRepository, hub, connRepository, webhookSrv, relaySrv)
	gatewaySrv := service.NewGatewayService(hub, connRepository, memberRepository, relaySrv, callSrv)

	s.scheduler = service.NewSchedulerService(msgRepository, relaySrv, webhookSrv, cfg.Scheduler.Interval())

	h := NewHandler(gatewaySrv)
	s.setupRoutes(h, cfg.JWT.Secret)

	return s
}

func (s *Server) setupRoutes(h *Handler, jwtSecret string) {
	auth := AuthMiddleware(jwtSecret)

	s.router.Handle("/ws", auth(http.HandlerFunc(h.handleWS)))
	s.router.HandleFunc("GET /health", h.handleHealth)
}

func (s *Server) Run(addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.scheduler.Run(ctx)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			stop()
		}
	}()
	slog.Info("Server is running", "addr", addr)

	<-ctx.Done()

	shutdownCtx, shutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdown()

	if s.migrateDown != nil {
		if err := s.migrateDown(); err != nil {
			slog.Warn("Failed to migrate down", "error", err)
		} else {
			slog.Info("Migrations down")
		}
	}

	slog.Info("Server exited")
	return server.Shutdown(shutdownCtx)
}
