package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	red "community-subscription-bot/internal/infra/redis"
	"community-subscription-bot/internal/usecase"
)

// Options carries the HTTP-facing configuration.
type Options struct {
	Port           int
	BotToken       string
	AdminIDs       []int64
	AllowedOrigins []string
	RequestTimeout time.Duration
	// PayLimit is the number of /api/cloudpayments/pay calls a client may make per minute.
	PayLimit int
}

// Deps are the use cases behind the routes.
type Deps struct {
	Users     usecase.UserUseCase
	Ents      usecase.EntitlementUseCase
	Payments  usecase.PaymentUseCase
	Materials usecase.MaterialUseCase
	Stats     usecase.StatsUseCase
}

// Server is the REST surface used by the mini-app, the admin panel and the payment providers.
type Server struct {
	deps     Deps
	opts     Options
	auth     *AuthManager
	limiter  *red.RateLimiter
	validate *validator.Validate
	admins   map[int64]struct{}
	log      *zerolog.Logger
	now      func() time.Time

	srv *http.Server
}

func NewServer(deps Deps, opts Options, auth *AuthManager, limiter *red.RateLimiter, logger *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.PayLimit <= 0 {
		opts.PayLimit = 10
	}
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	l := logger.With().Str("component", "HTTP").Logger()
	return &Server{
		deps:     deps,
		opts:     opts,
		auth:     auth,
		limiter:  limiter,
		validate: validator.New(),
		admins:   admins,
		log:      &l,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock; tests only.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Router builds the chi mux with every route and the global middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		CORS(s.opts.AllowedOrigins),
		Timeout(s.opts.RequestTimeout),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/auth/telegram", s.handleTelegramAuth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/content/materials", func(r chi.Router) {
			r.Get("/", s.handleListMaterials)
			r.Get("/{id}", s.handleGetMaterial)
		})

		r.Get("/subscription/status/{userId}", s.handleSubscriptionStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireRole(RoleAdmin))
			r.Post("/subscription/subscribe", s.handleSubscribe)
			r.Post("/subscription/extend", s.handleExtend)

			r.Get("/admin/stats", s.handleStats)
			r.Post("/admin/add-material", s.handleCreateMaterial)
			r.Put("/admin/edit-material/{id}", s.handleUpdateMaterial)
			r.Delete("/admin/delete-material/{id}", s.handleDeleteMaterial)
		})

		r.With(RateLimit(s.limiter, "pay", s.opts.PayLimit, time.Minute, s.log)).
			Post("/cloudpayments/pay", s.handleCreatePaymentLink)
		r.Post("/cloudpayments/webhook", s.handleNotification(providerCloudPayments))
		r.Get("/payment/callback", s.handleNotification(providerSignedRedirect))
		r.Post("/payment/callback", s.handleNotification(providerSignedRedirect))
		r.Post("/payment/{provider}/notify", s.handleProviderNotification)
	})
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.opts.Port).Msg("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) isAdmin(tgID int64) bool {
	_, ok := s.admins[tgID]
	return ok
}
