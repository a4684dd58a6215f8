package helpers

import (
	"net/http"
	"strings"
	"time"
)

// CookieOptions son los atributos comunes de las cookies que emite el servicio.
type CookieOptions struct {
	Domain   string
	SameSite string
	Secure   bool
}

// ParseSameSite traduce "lax" | "strict" | "none". Default Lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// BuildCookie arma una cookie con path "/". ttl 0 = cookie de sesión.
func BuildCookie(name, value string, opts CookieOptions, httpOnly bool, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   opts.Secure,
		SameSite: ParseSameSite(opts.SameSite),
	}
	if strings.TrimSpace(opts.Domain) != "" {
		ck.Domain = opts.Domain
	}
	if ttl > 0 {
		ck.Expires = time.Now().Add(ttl).UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}

// BuildDeletionCookie arma la cookie que borra name en el navegador.
func BuildDeletionCookie(name string, opts CookieOptions, httpOnly bool) *http.Cookie {
	ck := BuildCookie(name, "", opts, httpOnly, 0)
	ck.Expires = time.Unix(0, 0).UTC()
	ck.MaxAge = -1
	return ck
}
