package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/crowdgauge/internal/common"
	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/station"
)

// Enqueuer accepts photo submissions for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, sub pipeline.Submission) error
	QueueDepth() int
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	enqueuer    Enqueuer
	registry    *station.Registry
	store       contribution.Store
	outcomes    *pipeline.Broadcaster
	rateLimiter *RateLimiter
	validator   *signatureValidator
	corsOrigin  string
	publicURL   string
	maxListed   int
	pingEvery   time.Duration
	pongWait    time.Duration
	now         func() time.Time
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string

	// PublicURL is the externally visible base URL used to check Twilio
	// request signatures. Signatures are only checked when AuthToken is set.
	PublicURL string
	AuthToken string

	// RatePerMinute and Burst size the per-contributor token bucket on the
	// webhook; MaxPerDay caps submissions per contributor per day. Zero
	// disables the respective limit.
	RatePerMinute int
	Burst         int
	MaxPerDay     int

	// MaxListed caps the limit query parameter of the contributions API.
	MaxListed    int
	PingInterval time.Duration
	PongWait     time.Duration
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Enqueuer Enqueuer
	Registry *station.Registry
	Store    contribution.Store
	Outcomes *pipeline.Broadcaster
}

// Response types for API endpoints.
type HealthResponse struct {
	Status     string             `json:"status"`
	Version    string             `json:"version,omitempty"`
	Time       string             `json:"time"`
	QueueDepth int                `json:"queue_depth"`
	Memory     common.MemoryStats `json:"memory"`
}

type StationsResponse struct {
	Stations []station.Station `json:"stations"`
	Count    int               `json:"count"`
}

type ContributionsResponse struct {
	StationID     string                      `json:"station_id"`
	Contributions []contribution.Contribution `json:"contributions"`
	Count         int                         `json:"count"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewServer creates a webhook server instance.
func NewServer(config Config, deps Deps) (*Server, error) {
	switch {
	case deps.Enqueuer == nil:
		return nil, errors.New("server: enqueuer is required")
	case deps.Registry == nil:
		return nil, errors.New("server: station registry is required")
	case deps.Store == nil:
		return nil, errors.New("server: contribution store is required")
	}
	if deps.Outcomes == nil {
		deps.Outcomes = pipeline.NewBroadcaster(0)
	}
	if config.MaxListed <= 0 {
		config.MaxListed = 500
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.PongWait <= config.PingInterval {
		config.PongWait = 2 * config.PingInterval
	}

	s := &Server{
		enqueuer:   deps.Enqueuer,
		registry:   deps.Registry,
		store:      deps.Store,
		outcomes:   deps.Outcomes,
		corsOrigin: config.CORSOrigin,
		publicURL:  config.PublicURL,
		maxListed:  config.MaxListed,
		pingEvery:  config.PingInterval,
		pongWait:   config.PongWait,
		now:        time.Now,
	}
	if config.RatePerMinute > 0 || config.MaxPerDay > 0 {
		s.rateLimiter = NewRateLimiter(config.RatePerMinute, config.Burst, config.MaxPerDay)
	}
	if config.AuthToken != "" {
		s.validator = newSignatureValidator(config.AuthToken)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	webhook := s.signatureMiddleware(s.rateLimitMiddleware(s.smsIncomingHandler))
	mux.HandleFunc("/sms/incoming", s.corsMiddleware(webhook))
	mux.HandleFunc("/api/stations", s.corsMiddleware(s.stationsHandler))
	mux.HandleFunc("/api/stations/{id}/contributions", s.corsMiddleware(s.contributionsHandler))
	mux.HandleFunc("/ws/outcomes", s.corsMiddleware(s.outcomesWebSocketHandler))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
