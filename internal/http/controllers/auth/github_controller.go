// Package auth contiene los controllers del login con GitHub.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	svc "github.com/dropDatabas3/questions/internal/auth"
	"github.com/dropDatabas3/questions/internal/http/helpers"
	"github.com/dropDatabas3/questions/internal/observability/logger"
)

// LoginService es lo que el controller necesita de auth.Service.
type LoginService interface {
	BeginLogin() (authURL, state string, err error)
	CompleteLogin(ctx context.Context, code, state, cookieState string) (*svc.LoginResult, error)
	StateTTL() time.Duration
}

// Config del controller.
type Config struct {
	// CookieName es la cookie que lee el SPA. Default "accessToken".
	CookieName string
	Cookie     helpers.CookieOptions

	// SuccessRedirect y FailureRedirect default "/".
	SuccessRedirect string
	FailureRedirect string
}

// GitHubController maneja /api/auth/github, el callback y el logout.
type GitHubController struct {
	service LoginService
	cfg     Config
}

// NewGitHubController crea el controller aplicando defaults.
func NewGitHubController(service LoginService, cfg Config) *GitHubController {
	if cfg.CookieName == "" {
		cfg.CookieName = "accessToken"
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.FailureRedirect == "" {
		cfg.FailureRedirect = "/"
	}
	return &GitHubController{service: service, cfg: cfg}
}

// Login maneja GET /api/auth/github: emite el state y redirige a GitHub.
func (c *GitHubController) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Op("GitHubController.Login"))

	authURL, state, err := c.service.BeginLogin()
	if err != nil {
		log.Error("begin login failed", logger.Err(err))
		http.Redirect(w, r, c.cfg.FailureRedirect, http.StatusFound)
		return
	}

	http.SetCookie(w, helpers.BuildCookie(svc.StateCookieName, state, c.cfg.Cookie, true, c.service.StateTTL()))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback maneja GET /api/auth/github/callback. Cualquier falla redirige a
// FailureRedirect sin cuerpo de error y sin crear usuarios.
func (c *GitHubController) Callback(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Op("GitHubController.Callback"))

	// El state es de un solo uso en este navegador.
	http.SetCookie(w, helpers.BuildDeletionCookie(svc.StateCookieName, c.cfg.Cookie, true))

	q := r.URL.Query()
	if idpErr := strings.TrimSpace(q.Get("error")); idpErr != "" {
		log.Info("github denied authorization", logger.Any("error", idpErr))
		http.Redirect(w, r, c.cfg.FailureRedirect, http.StatusFound)
		return
	}

	var cookieState string
	if ck, err := r.Cookie(svc.StateCookieName); err == nil {
		cookieState = ck.Value
	}

	res, err := c.service.CompleteLogin(r.Context(), strings.TrimSpace(q.Get("code")), strings.TrimSpace(q.Get("state")), cookieState)
	if err != nil {
		log.Warn("github login failed", logger.Err(err))
		http.Redirect(w, r, c.cfg.FailureRedirect, http.StatusFound)
		return
	}

	http.SetCookie(w, helpers.BuildCookie(c.cfg.CookieName, res.User.AccessToken, c.cfg.Cookie, false, 0))
	http.Redirect(w, r, c.cfg.SuccessRedirect, http.StatusFound)
}

// CallbackLimited responde un callback que superó el rate limit: igual que
// cualquier otra falla, borra el state y redirige a FailureRedirect sin cuerpo.
func (c *GitHubController) CallbackLimited(w http.ResponseWriter, r *http.Request) {
	logger.From(r.Context()).Warn("github callback rate limited", logger.Op("GitHubController.Callback"))
	http.SetCookie(w, helpers.BuildDeletionCookie(svc.StateCookieName, c.cfg.Cookie, true))
	http.Redirect(w, r, c.cfg.FailureRedirect, http.StatusFound)
}

// Logout maneja GET /api/auth/logout. Sólo borra la cookie: el credential
// sigue siendo válido como bearer.
func (c *GitHubController) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, helpers.BuildDeletionCookie(c.cfg.CookieName, c.cfg.Cookie, false))
	http.Redirect(w, r, "/", http.StatusFound)
}
