// Package githubtest provee un GitHub falso (authorize/token/user) para tests.
package githubtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/dropDatabas3/questions/internal/oauth/github"
)

// Account es una cuenta que el servidor falso conoce.
type Account struct {
	ID          int64
	Login       string
	AccessToken string
}

// Server es un GitHub falso. Cada code registrado con AddCode se canjea
// por el token de la cuenta asociada.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	codes    map[string]Account
	tokens   map[string]Account
	exchange int
}

// NewServer arranca el servidor; cerrar con Close.
func NewServer() *Server {
	s := &Server{codes: map[string]Account{}, tokens: map[string]Account{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", s.handleToken)
	mux.HandleFunc("/api/user", s.handleUser)
	s.Server = httptest.NewServer(mux)
	return s
}

// AddCode registra un authorization code válido para la cuenta.
func (s *Server) AddCode(code string, acct Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = acct
	s.tokens[acct.AccessToken] = acct
}

// Exchanges retorna cuántos canjes recibió el token endpoint.
func (s *Server) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchange
}

// Config retorna una github.Config apuntando a este servidor.
func (s *Server) Config(redirectURL string) github.Config {
	return github.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  redirectURL,
		AuthURL:      s.URL + "/login/oauth/authorize",
		TokenURL:     s.URL + "/login/oauth/access_token",
		APIURL:       s.URL + "/api",
		HTTPClient:   s.Client(),
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.exchange++
	acct, ok := s.codes[r.Form.Get("code")]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		// GitHub responde 200 con error en el body.
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "bad_verification_code",
			"error_description": "The code passed is incorrect or expired.",
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token": acct.AccessToken,
		"token_type":   "bearer",
		"scope":        "profile",
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	acct, ok := s.tokens[tok]
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":         acct.ID,
		"login":      acct.Login,
		"name":       strings.ToUpper(acct.Login),
		"avatar_url": "https://avatars.example/" + acct.Login,
	})
}
