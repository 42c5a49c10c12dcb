// Package server is the RequestDispatcher: it wires chi routing, the
// teacher's leaf middleware packages (cors, limiter, reqlog, security,
// reserr), Prometheus metrics and the IIIF/admin handlers into one
// http.Handler.
package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dasch-swiss/sipi-go/cors"
	"github.com/dasch-swiss/sipi-go/internal/authz"
	"github.com/dasch-swiss/sipi-go/internal/cachestore"
	"github.com/dasch-swiss/sipi-go/internal/config"
	"github.com/dasch-swiss/sipi-go/internal/imgops"
	"github.com/dasch-swiss/sipi-go/internal/render"
	"github.com/dasch-swiss/sipi-go/limiter"
	"github.com/dasch-swiss/sipi-go/reqlog"
	"github.com/dasch-swiss/sipi-go/reserr"
	"github.com/dasch-swiss/sipi-go/security"
)

// Server holds every collaborator a request needs: the parsed
// configuration, the authorization policy, the cache index/writer/
// coalescer, and the metrics registry.
type Server struct {
	cfg        config.Config
	policy     authz.Policy
	index      *cachestore.Index
	writer     *cachestore.Writer
	coalescer  *cachestore.Coalescer
	metrics    *Metrics
	resErr     reserr.ResErr
	renderOpts render.Options
}

// New builds a Server ready to have Routes() mounted.
func New(cfg config.Config, policy authz.Policy, index *cachestore.Index, writer *cachestore.Writer, coalescer *cachestore.Coalescer) *Server {
	opts := render.DefaultOptions()
	opts.AllowUpscale = cfg.AllowUpscale
	opts.SkipMetadata = cfg.SkipMetadata
	if cfg.EncodeQuality > 0 {
		opts.EncodeQuality = cfg.EncodeQuality
	}
	switch cfg.ScaleQuality {
	case "fast":
		opts.ScaleQuality = imgops.QualityFast
	case "best":
		opts.ScaleQuality = imgops.QualityBest
	case "balanced", "":
		opts.ScaleQuality = imgops.QualityBalanced
	}

	return &Server{
		cfg:        cfg,
		policy:     policy,
		index:      index,
		writer:     writer,
		coalescer:  coalescer,
		metrics:    NewMetrics(cfg.MetricsNamespace),
		resErr:     reserr.New(""),
		renderOpts: opts,
	}
}

// ServeMetrics starts the Prometheus exporter on cfg.MetricsPort (a
// no-op when the port is 0), same on/off convention as pprof.StartServer.
func (s *Server) ServeMetrics() {
	s.metrics.Serve(s.cfg.MetricsPort)
}

// Routes builds the full dispatcher: security and CORS middleware wrap
// every route, then the IIIF image/info routes and (if enabled) the
// admin cache-management routes are mounted under the configured prefix.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(security.RejectInvalidURI)
	r.Use(cors.Handler(s.cfg.CORSOrigins, s.cfg.DevMode))
	r.Use(s.requestLogger())

	limiterMW := limiter.New(s.cfg.RateLimitBurst, s.cfg.RateLimitPerMinute, s.cfg.DevMode, s.resErr)
	r.Use(limiterMW.Limit)

	renderTimeout := time.Duration(s.cfg.RenderTimeoutSeconds) * time.Second
	concLimiter := newConcurrencyLimiter(s.cfg.RenderWorkers, renderTimeout, s.resErr)
	r.Use(concLimiter.Limit)

	prefix := s.cfg.RoutePrefix
	if prefix == "" {
		prefix = "/iiif"
	}

	r.Get(prefix+"/*", s.metrics.Instrument("iiif", http.HandlerFunc(s.handleIIIF)).ServeHTTP)

	if s.cfg.AdminEnabled {
		r.Route("/admin/cache", func(r chi.Router) {
			r.Get("/", s.metrics.Instrument("admin-list", http.HandlerFunc(s.handleAdminList)).ServeHTTP)
			r.Delete("/{fingerprint}", s.metrics.Instrument("admin-delete", http.HandlerFunc(s.handleAdminDelete)).ServeHTTP)
			r.Post("/purge", s.metrics.Instrument("admin-purge", http.HandlerFunc(s.handleAdminPurge)).ServeHTTP)
		})
	}

	return r
}

// requestLogger picks LogRequests/LogVerbose by the configured log
// level, matching the teacher's own "level 0/1/2" reqlog convention.
func (s *Server) requestLogger() func(http.Handler) http.Handler {
	switch s.cfg.RequestLogLevel {
	case 0:
		return func(next http.Handler) http.Handler { return next }
	case 2:
		return reqlog.LogVerbose
	default:
		return reqlog.LogRequests
	}
}

type requestIDKey struct{}

// requestID mints a correlation UUID per request, the same idiom
// gravwell uses to correlate async ingest work, and surfaces it as both
// a log prefix source and an X-Request-Id response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		log.Printf("req %s %s %s id=%s", r.Method, r.RequestURI, r.RemoteAddr, id)
		next.ServeHTTP(w, r)
	})
}
