package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"budgetly/internal/auth"
	"budgetly/internal/config"
	"budgetly/internal/insights"
	"budgetly/internal/log"
	"budgetly/internal/middleware/ratelimit"
	"budgetly/internal/middleware/security"
	"budgetly/internal/middleware/trace"
	"budgetly/internal/services"
	appweb "budgetly/web"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Expenses  *services.ExpenseService
	Summaries *services.SummaryService
	Auth      *auth.Service
	Insights  *insights.Proxy
	// Checks are run by /readyz, keyed by name.
	Checks map[string]func(ctx context.Context) error
	Logger *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template

	expenses  *services.ExpenseService
	summaries *services.SummaryService
	auth      *auth.Service
	insights  *insights.Proxy
	checks    map[string]func(ctx context.Context) error

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger

	apiKey       string
	sessionTTL   time.Duration
	cookieSecure bool
	now          func() time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and configures routes, returning a
// ready-to-run server.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector(logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(strings.TrimSpace(cidr)); err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr(),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		templates:    t,
		expenses:     deps.Expenses,
		summaries:    deps.Summaries,
		auth:         deps.Auth,
		insights:     deps.Insights,
		checks:       deps.Checks,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:     detector,
		tracer:       trace.NewMiddleware(logger, detector.ExtractClientIP),
		logger:       logger.WithComponent(log.ComponentHTTP),
		apiKey:       cfg.OpenRouterAPIKey,
		sessionTTL:   cfg.SessionTTL,
		cookieSecure: cfg.CookieSecure,
		now:          time.Now,
	}

	handler, err := s.routes()
	if err != nil {
		s.limiter.Stop()
		return nil, err
	}
	s.Handler = handler
	return s, nil
}

func (s *Server) routes() (http.Handler, error) {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	headersCfg := security.DefaultHeadersConfig()
	headersCfg.SkipPrefixes = []string{"/functions/"}

	// Client IPs come from the detector, which only honours forwarded
	// headers sent by trusted proxies.
	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(headersCfg).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// Public insights endpoint with its own CORS contract.
	r.Handle("/functions/v1/ai-insights", insights.Handler(s.insights))

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)

	r.Get("/signin", s.handleSignInPage)
	r.Get("/signup", s.handleSignUpPage)
	r.With(limited).Post("/signin", s.handleSignIn)
	r.With(limited).Post("/signup", s.handleSignUp)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireSession)

		r.Get("/", s.handleIndex)
		r.Post("/signout", s.handleSignOut)
		r.Get("/ui/summary", s.handleSummaryPartial)
		r.Get("/ui/expenses", s.handleExpensesPartial)
		r.Post("/insights", s.handleInsightsPartial)

		r.With(limited).Post("/expenses", s.handleCreateExpense)
		r.With(limited).Delete("/expenses/{id}", s.handleDeleteExpense)
		r.With(limited).Post("/expenses/{id}/delete", s.handleDeleteExpense)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/expenses", s.handleAPIListExpenses)
			r.With(limited).Post("/expenses", s.handleAPICreateExpense)
			r.With(limited).Delete("/expenses/{id}", s.handleAPIDeleteExpense)
			r.Get("/summary", s.handleAPISummary)
		})
	})

	return r, nil
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded", log.NewFields().
		WithClientIP(s.detector.ExtractClientIP(r)).
		WithHTTPRequest(r.Method, r.URL.Path, "", "").
		ToSlice()...)
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}
	Failure(http.StatusTooManyRequests, "Too many requests. Please try again later.").Write(w)
}

// render executes a named template into a buffer first so a failure never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed", log.NewFields().
			WithError(err).
			WithOperation(log.OpRender).
			ToSlice()...)
		Failure(http.StatusInternalServerError, "Something went wrong. Please try again.").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}
