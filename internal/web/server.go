package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/ipldash/internal/auth"
	"github.com/saltyorg/ipldash/internal/config"
	"github.com/saltyorg/ipldash/internal/database"
	"github.com/saltyorg/ipldash/internal/maintenance"
	"github.com/saltyorg/ipldash/internal/metrics"
	"github.com/saltyorg/ipldash/internal/stats"
	"github.com/saltyorg/ipldash/internal/web/handlers"
	"github.com/saltyorg/ipldash/internal/web/middleware"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Options configures the listener and environment of the web server
type Options struct {
	Port       int
	Bind       string
	AllowedNet *net.IPNet
	IsDev      bool
	// Gatherer backs /metrics; the endpoint is not mounted when nil
	Gatherer prometheus.Gatherer
}

// Server represents the web server
type Server struct {
	db           *database.DB
	opts         Options
	router       *chi.Mux
	templates    map[string]*template.Template
	authService  *auth.AuthService
	statsService *stats.Service
	handlers     *handlers.Handlers
}

// NewServer creates a new web server
func NewServer(db *database.DB, authService *auth.AuthService, statsService *stats.Service, opts Options) (*Server, error) {
	s := &Server{
		db:           db,
		opts:         opts,
		router:       chi.NewRouter(),
		authService:  authService,
		statsService: statsService,
	}

	if err := s.loadTemplates(); err != nil {
		return nil, err
	}
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the router serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetMaintenanceManager exposes scheduled job status on the admin page
func (s *Server) SetMaintenanceManager(mgr *maintenance.Manager) {
	s.handlers.SetMaintenanceManager(mgr)
}

// SetVersionInfo sets the version shown in the footer
func (s *Server) SetVersionInfo(version, commit, date string) {
	s.handlers.SetVersionInfo(version, commit, date)
}

// templateFuncMap returns the common template functions
func templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("2006-01-02 15:04:05")
		},
		"cell": stats.FormatValue,
		"add": func(a, b int) int {
			return a + b
		},
	}
}

// pageTemplates lists every page; each is parsed with the base template and partials
var pageTemplates = []string{
	"login.html",
	"dashboard.html",
	"report.html",
	"admin.html",
	"error.html",
}

// loadTemplates loads all HTML templates
func (s *Server) loadTemplates() error {
	s.templates = make(map[string]*template.Template)
	funcMap := templateFuncMap()

	for _, page := range pageTemplates {
		// Parse base template first, then partials, then the page template
		tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS,
			"templates/base.html",
			"templates/partials/*.html",
			"templates/"+page,
		)
		if err != nil {
			return fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		s.templates[page] = tmpl
	}
	return nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() error {
	r := s.router
	timeout := config.GetTimeouts().Request

	// Global middleware (applied to all routes, except timeout which is per-group)
	r.Use(chimiddleware.RequestID)
	// AllowSubnet must come BEFORE RealIP so we check the actual connection source
	r.Use(middleware.AllowSubnet(s.opts.AllowedNet))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Static files
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("failed to setup static files: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))

	h := handlers.New(s.db, s.templates, s.authService, s.statsService, s.opts.IsDev)
	s.handlers = h

	// Public routes (no auth required)
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(timeout))
		r.Get("/login", h.LoginPage)
		r.Post("/login", h.LoginSubmit)
		r.Post("/register", h.RegisterSubmit)
		r.Get("/logout", h.Logout)
		r.Get("/healthz", h.Healthz)
		if s.opts.Gatherer != nil {
			r.Handle("/metrics", metrics.NewHandler(s.opts.Gatherer))
		}
	})

	// Protected routes (session auth required)
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(timeout))
		r.Use(middleware.SessionAuth(s.authService))

		r.Get("/", h.Dashboard)
		r.Get("/records/{kind}", h.RecordsPage)
		r.Get("/reports/{id}", h.ReportPage)
		r.Get("/charts/{id}", h.ChartSVG)

		r.Route("/api", func(r chi.Router) {
			r.Get("/reports/{id}", h.APIReport)
			r.Get("/years", h.APIYears)
			r.Get("/matches", h.APIMatches)
			r.Get("/players", h.APIPlayers)
		})

		// Administration
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin))
			r.Get("/", h.AdminPage)
			r.Post("/settings", h.SettingsUpdate)
			r.Post("/cache/clear", h.AdminClearCache)
		})
	})

	return nil
}

// Start starts the web server and blocks until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	var addr string
	if s.opts.Bind != "" {
		addr = fmt.Sprintf("%s:%d", s.opts.Bind, s.opts.Port)
	} else {
		addr = fmt.Sprintf(":%d", s.opts.Port)
	}

	timeouts := config.GetTimeouts()
	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
		// ReadTimeout is for reading request body
		ReadTimeout: 15 * time.Second,
		// Leave headroom over the chi timeout so its 503 reaches the client
		WriteTimeout: timeouts.Request + 5*time.Second,
		// IdleTimeout for keep-alive connections between requests
		IdleTimeout: 120 * time.Second,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
