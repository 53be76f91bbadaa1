package handlers

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/ipldash/internal/auth"
	"github.com/saltyorg/ipldash/internal/stats"
)

// GeneralSettings holds the runtime-tunable settings shown on the admin page
type GeneralSettings struct {
	RegistrationEnabled bool
	MinPasswordLength   int
	SessionHours        int
	DefaultLimit        int
	CacheTTLSeconds     int
	Limits              []int
}

func (h *Handlers) generalSettings() GeneralSettings {
	return GeneralSettings{
		RegistrationEnabled: h.settings.BoolDefaultTrue("registration.enabled"),
		MinPasswordLength:   h.settings.Int("auth.min_password_length", auth.MinPasswordLength),
		SessionHours:        h.settings.Int("auth.session_hours", 168),
		DefaultLimit:        h.defaultLimit(),
		CacheTTLSeconds:     h.settings.Int("stats.cache_ttl_seconds", 600),
		Limits:              stats.Limits,
	}
}

// SettingsUpdate handles the admin settings form
func (h *Handlers) SettingsUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flashErr(w, "Invalid form data")
		h.redirect(w, r, "/admin")
		return
	}

	registrationEnabled := r.FormValue("registration_enabled") == "on"
	minPasswordLength, err1 := strconv.Atoi(r.FormValue("min_password_length"))
	sessionHours, err2 := strconv.Atoi(r.FormValue("session_hours"))
	defaultLimit, err3 := strconv.Atoi(r.FormValue("default_limit"))
	cacheTTL, err4 := strconv.Atoi(r.FormValue("cache_ttl_seconds"))

	// Validate
	if err1 != nil || minPasswordLength < 4 || minPasswordLength > 72 {
		h.flashErr(w, "Minimum password length must be between 4 and 72")
		h.redirect(w, r, "/admin")
		return
	}
	if err2 != nil || sessionHours < 1 || sessionHours > 24*90 {
		h.flashErr(w, "Session length must be between 1 hour and 90 days")
		h.redirect(w, r, "/admin")
		return
	}
	if err3 != nil || !slices.Contains(stats.Limits, defaultLimit) {
		h.flashErr(w, "Default limit must be one of the offered limits")
		h.redirect(w, r, "/admin")
		return
	}
	if err4 != nil || cacheTTL < 0 {
		h.flashErr(w, "Cache lifetime cannot be negative")
		h.redirect(w, r, "/admin")
		return
	}

	// Save to database
	var saveErr error
	if err := h.db.SetSetting("registration.enabled", strconv.FormatBool(registrationEnabled)); err != nil {
		saveErr = err
	}
	if err := h.db.SetSetting("auth.min_password_length", strconv.Itoa(minPasswordLength)); err != nil {
		saveErr = err
	}
	if err := h.db.SetSetting("auth.session_hours", strconv.Itoa(sessionHours)); err != nil {
		saveErr = err
	}
	if err := h.db.SetSetting("records.default_limit", strconv.Itoa(defaultLimit)); err != nil {
		saveErr = err
	}
	if err := h.db.SetSetting("stats.cache_ttl_seconds", strconv.Itoa(cacheTTL)); err != nil {
		saveErr = err
	}

	if saveErr != nil {
		log.Error().Err(saveErr).Msg("Failed to save settings")
		h.flashErr(w, "Failed to save some settings")
		h.redirect(w, r, "/admin")
		return
	}

	log.Info().Msg("Settings updated")
	h.flash(w, "Settings saved. Cache lifetime changes apply after a restart.")
	h.redirect(w, r, "/admin")
}
