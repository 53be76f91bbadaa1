package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/ipldash/internal/auth"
	"github.com/saltyorg/ipldash/internal/web/middleware"
)

// loginFailed is the only message shown for a failed login, whatever the cause
const loginFailed = "Invalid username, password or role"

type loginPage struct {
	Roles               []string
	RegistrationEnabled bool
}

// LoginPage renders the login and registration forms
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	// Check if already logged in
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if session, err := h.authService.GetSession(cookie.Value); err == nil && session != nil {
			h.redirect(w, r, homeFor(session.Account()))
			return
		}
	}

	h.render(w, r, "login.html", loginPage{
		Roles:               []string{auth.RoleUser, auth.RoleAdmin},
		RegistrationEnabled: h.authService.RegistrationEnabled(),
	})
}

// LoginSubmit handles login form submission
func (h *Handlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")
	role := r.FormValue("role")
	if role == "" {
		role = auth.RoleUser
	}

	if username == "" || password == "" {
		h.flashErr(w, "Please enter both username and password.")
		h.redirect(w, r, "/login")
		return
	}

	account, err := h.authService.Login(role, username, password)
	if err != nil {
		log.Error().Err(err).Str("role", role).Msg("Authentication error")
		h.flashErr(w, loginFailed)
		h.redirect(w, r, "/login")
		return
	}
	if account == nil {
		log.Info().Str("username", username).Str("role", role).Msg("Login rejected")
		h.flashErr(w, loginFailed)
		h.redirect(w, r, "/login")
		return
	}

	session, err := h.authService.CreateSession(account)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		h.flashErr(w, loginFailed)
		h.redirect(w, r, "/login")
		return
	}

	cookie := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
	}
	h.applyCookieSecurity(cookie)
	http.SetCookie(w, cookie)

	log.Info().Str("username", account.Username).Str("role", account.Role).Msg("Logged in")
	h.redirect(w, r, homeFor(account))
}

// RegisterSubmit handles the self-registration form
func (h *Handlers) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	_, err := h.authService.Register(
		r.FormValue("username"),
		r.FormValue("password"),
		r.FormValue("confirm_password"),
	)

	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		h.flashErr(w, verr.Message)
	case err != nil:
		log.Error().Err(err).Msg("Failed to register user")
		h.flashErr(w, "Registration failed. Please try again later.")
	default:
		h.flash(w, "Registration successful. You can now log in.")
	}
	h.redirect(w, r, "/login")
}

// Logout handles user logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if err := h.authService.DeleteSession(cookie.Value); err != nil {
			log.Debug().Err(err).Msg("Failed to delete session during logout")
		}
	}

	cookie := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
	h.applyCookieSecurity(cookie)
	http.SetCookie(w, cookie)

	h.redirect(w, r, "/login")
}

func homeFor(account *auth.Account) string {
	if account.IsAdmin() {
		return "/admin"
	}
	return "/"
}
