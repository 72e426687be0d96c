package handlers

import (
	"crypto/rsa"
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"prism.app/licensing/internal/email"
	"prism.app/licensing/internal/ratelimit"
	"prism.app/licensing/storage"
)

const ServiceName = "prism-license-authority"

type Server struct {
	Router chi.Router

	storage     storage.Store
	limiter     ratelimit.RateLimit
	signingKey  *rsa.PrivateKey
	adminSecret string
	email       *email.Sender
	version     string
}

type ServerConfig struct {
	Storage     storage.Store
	Limiter     ratelimit.RateLimit
	SigningKey  *rsa.PrivateKey
	AdminSecret string
	Email       *email.Sender // optional key-delivery sender
	Version     string
}

func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		storage:     cfg.Storage,
		limiter:     cfg.Limiter,
		signingKey:  cfg.SigningKey,
		adminSecret: cfg.AdminSecret,
		email:       cfg.Email,
		version:     cfg.Version,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/", s.Health)
	r.Get("/health", s.Health)
	r.Get("/validate", s.ValidateLicense)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/create", s.CreateLicense)
		r.Post("/revoke", s.RevokeLicense)
		r.Get("/list", s.ListLicenses)
		r.Get("/lookup", s.LookupLicenses)
	})

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
