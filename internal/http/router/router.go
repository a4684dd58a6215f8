// Package router arma el árbol de rutas del listener principal y del de ops.
package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apictrl "github.com/dropDatabas3/questions/internal/http/controllers/api"
	authctrl "github.com/dropDatabas3/questions/internal/http/controllers/auth"
	mw "github.com/dropDatabas3/questions/internal/http/middlewares"
	"github.com/dropDatabas3/questions/internal/rate"
)

// DefaultCallbackPath es donde GitHub vuelve después de autorizar.
const DefaultCallbackPath = "/api/auth/github/callback"

// Deps contiene todo lo que necesita el router principal.
type Deps struct {
	Auth      *authctrl.GitHubController
	Validator mw.CredentialValidator
	SPA       http.Handler

	// Limiter es opcional; sin limiter login y callback no se limitan.
	Limiter rate.Limiter

	// Proxies define cuándo se cree en X-Forwarded-For. Zero value: nunca.
	Proxies mw.ProxyPolicy

	// CallbackPath debe empezar con /api/. Default DefaultCallbackPath.
	CallbackPath string
}

// New construye el handler principal.
//
//	/api/auth/github            login (rate limited, 429)
//	/api/auth/github/callback   callback (rate limited, redirect)
//	/api/auth/logout            logout
//	/api/me, /api/questions     bearer
//	/api/*                      404 JSON
//	resto                       SPA
func New(d Deps) http.Handler {
	callback := d.CallbackPath
	if callback == "" {
		callback = DefaultCallbackPath
	}

	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.Proxies),
		mw.WithLogging(),
		mw.WithMetrics(),
		mw.WithSecurityHeaders(),
	)

	r.Route("/api", func(api chi.Router) {
		api.Use(mw.WithAPIContentPolicy())
		api.NotFound(apictrl.NotFound)
		api.MethodNotAllowed(apictrl.MethodNotAllowed)

		api.Group(func(a chi.Router) {
			a.Use(mw.WithNoStore())

			a.With(mw.WithRateLimit(mw.RateLimitConfig{
				Limiter: d.Limiter,
				KeyFunc: mw.IPPathRateKey,
			})).Get("/auth/github", d.Auth.Login)

			// El callback lo recorre el navegador: al superar el límite redirige.
			a.With(mw.WithRateLimit(mw.RateLimitConfig{
				Limiter: d.Limiter,
				KeyFunc: mw.IPPathRateKey,
				OnLimit: d.Auth.CallbackLimited,
			})).Get(strings.TrimPrefix(callback, "/api"), d.Auth.Callback)

			a.Get("/auth/logout", d.Auth.Logout)
		})

		api.Group(func(p chi.Router) {
			p.Use(
				mw.RequireBearer(d.Validator),
				mw.WithNoStore(),
			)
			p.Get("/me", apictrl.Me)
			p.Get("/questions", apictrl.ListQuestions)
		})
	})

	r.NotFound(d.SPA.ServeHTTP)
	r.MethodNotAllowed(d.SPA.ServeHTTP)
	return r
}
