package auth

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// StateCookieName guarda una copia del state para atar el callback al navegador que inició el login.
	StateCookieName = "__oauth_state"

	stateAudience   = "github-state"
	defaultStateTTL = 10 * time.Minute
)

// StateIssuer firma y valida el parámetro state del flujo OAuth (JWT HS256).
type StateIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewStateIssuer crea un issuer. secret no puede estar vacío.
func NewStateIssuer(secret, issuer string, ttl time.Duration) (*StateIssuer, error) {
	if secret == "" {
		return nil, errors.New("auth: state secret required")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// TTL retorna la vida del state.
func (s *StateIssuer) TTL() time.Duration { return s.ttl }

// Issue genera un state nuevo.
func (s *StateIssuer) Issue() (string, error) {
	now := s.now().UTC()
	claims := jwtv5.MapClaims{
		"iss": s.issuer,
		"aud": stateAudience,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"jti": uuid.NewString(),
	}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign state: %w", err)
	}
	return signed, nil
}

// Verify valida firma, audiencia, issuer y expiración.
func (s *StateIssuer) Verify(state string) error {
	if state == "" {
		return fmt.Errorf("%w: missing", ErrInvalidState)
	}
	tk, err := jwtv5.Parse(state,
		func(*jwtv5.Token) (any, error) { return s.secret, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithAudience(stateAudience),
		jwtv5.WithIssuer(s.issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(s.now),
	)
	if err != nil || !tk.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}
