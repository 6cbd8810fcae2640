// Package server wires the services together and builds the HTTP router.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/wardenlabs/gamewarden/internal/api"
	"github.com/wardenlabs/gamewarden/internal/auth"
	"github.com/wardenlabs/gamewarden/internal/config"
	"github.com/wardenlabs/gamewarden/internal/enforce"
	"github.com/wardenlabs/gamewarden/internal/logging"
	"github.com/wardenlabs/gamewarden/internal/manager"
	"github.com/wardenlabs/gamewarden/internal/population"
	"github.com/wardenlabs/gamewarden/internal/router"
	"github.com/wardenlabs/gamewarden/internal/scheduler"
	"github.com/wardenlabs/gamewarden/internal/store"
	"github.com/wardenlabs/gamewarden/internal/taillog"
	"github.com/wardenlabs/gamewarden/internal/verify"
)

type Server struct {
	cfg     *config.Config
	log     zerolog.Logger
	router  chi.Router
	manager *manager.Manager

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, db *sql.DB, log zerolog.Logger) (*Server, error) {
	st := store.New(db)

	authSvc := auth.NewService(db)
	if err := authSvc.EnsureDefaultUser(context.Background(), cfg.DefaultUser, cfg.DefaultPass); err != nil {
		return nil, fmt.Errorf("ensure default user: %w", err)
	}

	mgr := manager.New(st, logging.Component(log, "manager"), cfg.RCON, nil)
	engine := enforce.New(st, mgr, nil, nil, logging.Component(log, "enforce"))
	verifier := verify.New(st, st, logging.Component(log, "verify"))

	poster := router.NewWebhookPoster(cfg.Webhook)
	eventRouter := router.New(st, logging.Component(log, "router"), cfg.Router, poster, verifier)
	tailer := taillog.New(st, logging.Component(log, "taillog"), cfg.Tail, nil, eventRouter)
	sched := scheduler.New(st, mgr, logging.Component(log, "scheduler"))
	sampler := population.New(st, mgr, logging.Component(log, "population"))

	authHandler := api.NewAuthHandler(authSvc)
	serverHandler := api.NewServerHandler(st, mgr, sampler)
	sourceHandler := api.NewSourceHandler(st)
	configHandler := api.NewGuildConfigHandler(st)
	verifyHandler := api.NewVerifyHandler(st, verifier, mgr)
	strikeHandler := api.NewStrikeHandler(engine)
	taskHandler := api.NewTaskHandler(st)
	eventsHandler := api.NewEventsHandler(eventRouter.Feed(), logging.Component(log, "events"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware(authSvc))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Route("/guilds/{guildID}", func(r chi.Router) {
				r.Route("/servers", func(r chi.Router) {
					r.Get("/", serverHandler.List)
					r.Post("/", serverHandler.Create)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", serverHandler.Get)
						r.Put("/", serverHandler.Update)
						r.Delete("/", serverHandler.Delete)
						r.Post("/test", serverHandler.Test)
						r.Post("/command", serverHandler.Command)
						r.Get("/players", serverHandler.Players)
					})
				})

				r.Route("/sources", func(r chi.Router) {
					r.Get("/", sourceHandler.List)
					r.Post("/", sourceHandler.Create)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", sourceHandler.Get)
						r.Put("/", sourceHandler.Update)
						r.Delete("/", sourceHandler.Delete)
					})
				})

				r.Get("/rules", configHandler.GetRule)
				r.Put("/rules", configHandler.PutRule)
				r.Get("/channels", configHandler.GetChannels)
				r.Put("/channels", configHandler.PutChannels)
				r.Get("/audit", configHandler.Audit)

				r.Post("/verify", verifyHandler.Create)
				r.Get("/verify/{id}", verifyHandler.Get)
				r.Post("/verify/attempt", verifyHandler.Attempt)

				r.Post("/strikes", strikeHandler.Notify)

				r.Route("/tasks", func(r chi.Router) {
					r.Get("/", taskHandler.List)
					r.Post("/", taskHandler.Create)
					r.Delete("/{taskID}", taskHandler.Delete)
				})

				// WebSocket; auth via ?token= query parameter.
				r.Get("/events", eventsHandler.Handle)
			})
		})
	})

	s := &Server{cfg: cfg, log: log, router: r, manager: mgr}
	s.start(eventRouter, tailer, sched, sampler)
	return s, nil
}

// start launches the background workers.
func (s *Server) start(eventRouter *router.Router, tailer *taillog.Tailer, sched *scheduler.Scheduler, sampler *population.Sampler) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, run := range []func(context.Context){
		eventRouter.Run,
		tailer.Run,
		sched.Run,
		sampler.Run,
	} {
		s.wg.Add(1)
		go func(run func(context.Context)) {
			defer s.wg.Done()
			run(ctx)
		}(run)
	}
	s.log.Info().Msg("background workers started")
}

func (s *Server) Router() chi.Router {
	return s.router
}

// Stop shuts the background workers down and waits for them.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.manager.Close()
}
