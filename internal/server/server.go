package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"heritagebites/internal/config"
	"heritagebites/internal/reset"
)

// RateLimiter is the quota policy applied ahead of the reset service.
type RateLimiter interface {
	RegisterIssueAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error)
	RegisterVerifyAttempt(ctx context.Context, email string) (bool, time.Duration, error)
	ResetVerify(ctx context.Context, email string)
	CooldownTTL(ctx context.Context, email string) time.Duration
	SetCooldown(ctx context.Context, email string, ttl time.Duration)
}

type Server struct {
	Reset          *reset.Service
	RateLimiter    RateLimiter
	Config         config.Config
	trustedProxies []net.IPNet
}

func NewServer(cfg config.Config, svc *reset.Service, rl RateLimiter) *Server {
	return &Server{
		Reset:          svc,
		RateLimiter:    rl,
		Config:         cfg,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	formatter := &middleware.DefaultLogFormatter{
		Logger:  log.New(log.Writer(), "", log.Flags()),
		NoColor: true,
	}
	r.Use(middleware.RequestLogger(formatter))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)

	r.Post("/sendOtp", s.handleSendOtp)
	r.Post("/verifyOtp", s.handleVerifyOtp)
	r.Post("/resetPassword", s.handleResetPassword)

	return r
}
