package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/ipldash/internal/auth"
	"github.com/saltyorg/ipldash/internal/config"
	"github.com/saltyorg/ipldash/internal/database"
	"github.com/saltyorg/ipldash/internal/maintenance"
	"github.com/saltyorg/ipldash/internal/stats"
	"github.com/saltyorg/ipldash/internal/web/middleware"
)

// VersionInfo holds application version information
type VersionInfo struct {
	Version       string
	Commit        string
	StaticVersion string // Cache-busting version for static files (empty in dev mode)
	Date          string // Formatted date for display
}

// Handlers contains all HTTP handlers
type Handlers struct {
	db             *database.DB
	templates      map[string]*template.Template
	authService    *auth.AuthService
	statsService   *stats.Service
	maintenanceMgr *maintenance.Manager
	settings       *config.Loader
	versionInfo    VersionInfo
	isDev          bool
}

// New creates a new Handlers instance
func New(db *database.DB, templates map[string]*template.Template, authService *auth.AuthService, statsService *stats.Service, isDev bool) *Handlers {
	return &Handlers{
		db:           db,
		templates:    templates,
		authService:  authService,
		statsService: statsService,
		settings:     config.NewLoader(db),
		isDev:        isDev,
	}
}

// SetMaintenanceManager sets the maintenance scheduler shown on the admin page
func (h *Handlers) SetMaintenanceManager(mgr *maintenance.Manager) {
	h.maintenanceMgr = mgr
}

// SetVersionInfo sets the application version information
func (h *Handlers) SetVersionInfo(version, commit, date string) {
	formattedDate := date
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		formattedDate = t.Format("January 2, 2006")
	}

	// Only set StaticVersion for non-dev builds (enables browser caching)
	staticVersion := ""
	if version != "0.0.0-dev" && commit != "none" && commit != "" {
		staticVersion = commit
	}

	h.versionInfo = VersionInfo{
		Version:       version,
		Commit:        commit,
		StaticVersion: staticVersion,
		Date:          formattedDate,
	}
}

// PageData contains common data for all pages
type PageData struct {
	Title    string
	Account  *auth.Account
	Flash    string
	FlashErr string
	Content  any
	Reports  []*stats.Report
	Version  VersionInfo
}

// render renders a template with common data
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	h.renderStatus(w, r, http.StatusOK, name, data)
}

func (h *Handlers) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	pageData := PageData{
		Title:   "IPL Stats Dashboard",
		Account: middleware.GetAccount(r.Context()),
		Content: data,
		Reports: stats.Catalogue(),
		Version: h.versionInfo,
	}

	// Check for flash messages in cookies
	if cookie, err := r.Cookie("flash"); err == nil {
		pageData.Flash = cookie.Value
		clear := &http.Cookie{Name: "flash", MaxAge: -1, Path: "/"}
		h.applyCookieSecurity(clear)
		http.SetCookie(w, clear)
	}
	if cookie, err := r.Cookie("flash_err"); err == nil {
		pageData.FlashErr = cookie.Value
		clear := &http.Cookie{Name: "flash_err", MaxAge: -1, Path: "/"}
		h.applyCookieSecurity(clear)
		http.SetCookie(w, clear)
	}

	tmpl, ok := h.templates[name]
	if !ok {
		log.Error().Str("template", name).Msg("Template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", pageData); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render template")
	}
}

// errorPage renders a generic error page with the given status
func (h *Handlers) errorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.renderStatus(w, r, status, "error.html", map[string]any{
		"Status":  status,
		"Message": message,
	})
}

// flash sets a flash message
func (h *Handlers) flash(w http.ResponseWriter, message string) {
	c := &http.Cookie{
		Name:     "flash",
		Value:    message,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
	}
	h.applyCookieSecurity(c)
	http.SetCookie(w, c)
}

// flashErr sets an error flash message
func (h *Handlers) flashErr(w http.ResponseWriter, message string) {
	c := &http.Cookie{
		Name:     "flash_err",
		Value:    message,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
	}
	h.applyCookieSecurity(c)
	http.SetCookie(w, c)
}

// redirect redirects to a URL
func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// jsonResponse writes v as JSON
func (h *Handlers) jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// jsonError sends a JSON error response
func (h *Handlers) jsonError(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

// applyCookieSecurity sets Secure/SameSite defaults based on environment.
func (h *Handlers) applyCookieSecurity(c *http.Cookie) {
	if h.isDev {
		if c.SameSite == 0 {
			c.SameSite = http.SameSiteLaxMode
		}
		return
	}
	c.Secure = true
	if c.SameSite == 0 {
		c.SameSite = http.SameSiteStrictMode
	}
}
