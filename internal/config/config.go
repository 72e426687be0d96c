package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

type Config struct {
	Port string

	DatabaseURL string

	// AdminSecret is the shared bearer token for the administrative
	// endpoints, compared byte-for-byte on every request.
	AdminSecret string

	// SigningKeyPEM holds the authority's RSA private key. Injected at
	// process start, never compiled into the binary.
	SigningKeyPEM []byte

	RateLimitMax    int
	RateLimitWindow time.Duration

	SentryDSN string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
}

// New builds the configuration from the environment. Every missing required
// variable is reported, not just the first.
func New() (*Config, error) {
	var result *multierror.Error

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		result = multierror.Append(result, errors.New("DATABASE_URL environment variable is required"))
	}

	adminSecret := os.Getenv("ADMIN_SECRET")
	if adminSecret == "" {
		result = multierror.Append(result, errors.New("ADMIN_SECRET environment variable is required"))
	}

	signingKey := []byte(os.Getenv("LICENSE_SIGNING_KEY"))
	if keyFile := os.Getenv("LICENSE_SIGNING_KEY_FILE"); len(signingKey) == 0 && keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			result = multierror.Append(result, err)
		}
		signingKey = data
	}
	if len(signingKey) == 0 {
		result = multierror.Append(result, errors.New("LICENSE_SIGNING_KEY or LICENSE_SIGNING_KEY_FILE environment variable is required"))
	}

	rateLimitMax := 20
	if raw := os.Getenv("RATE_LIMIT_MAX"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			result = multierror.Append(result, errors.New("RATE_LIMIT_MAX must be a non-negative integer"))
		} else {
			rateLimitMax = parsed
		}
	}

	rateLimitWindow := 60 * time.Second
	if raw := os.Getenv("RATE_LIMIT_WINDOW_SECONDS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			result = multierror.Append(result, errors.New("RATE_LIMIT_WINDOW_SECONDS must be a positive integer"))
		} else {
			rateLimitWindow = time.Duration(parsed) * time.Second
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Config{
		Port:            port,
		DatabaseURL:     dbURL,
		AdminSecret:     adminSecret,
		SigningKeyPEM:   signingKey,
		RateLimitMax:    rateLimitMax,
		RateLimitWindow: rateLimitWindow,
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        os.Getenv("SMTP_PORT"),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPass:        os.Getenv("SMTP_PASS"),
	}, nil
}

// EmailEnabled reports whether key-delivery email is configured.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPUser != "" && c.SMTPPass != ""
}
