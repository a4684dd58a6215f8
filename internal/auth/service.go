// Package auth implementa el login con GitHub y la validación del bearer credential.
//
// El credential es el access token que GitHub entrega en el callback, guardado
// tal cual en el usuario. No expira, no rota y no se revoca.
package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/questions/internal/cache"
	"github.com/dropDatabas3/questions/internal/domain/repository"
	"github.com/dropDatabas3/questions/internal/metrics"
	"github.com/dropDatabas3/questions/internal/oauth/github"
	"github.com/dropDatabas3/questions/internal/observability/logger"
)

// Modos de identity_source.
const (
	// IdentityFromProfile guarda el id numérico del perfil de GitHub.
	IdentityFromProfile = "profile"
	// IdentityFromCredential guarda el credential también como identidad (comportamiento legacy).
	IdentityFromCredential = "credential"
)

const (
	maxCreateAttempts   = 3
	findOrCreateTimeout = 10 * time.Second
	defaultCacheTTL     = 2 * time.Minute
	cacheKeyPrefix      = "cred:"
)

// Provider es lo que el servicio necesita del cliente OAuth.
type Provider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*github.Grant, error)
}

// Config del servicio.
type Config struct {
	IdentitySource string
	CacheTTL       time.Duration
}

// Deps agrupa las dependencias del servicio. Cache es opcional.
type Deps struct {
	Users    repository.UserRepository
	Provider Provider
	States   *StateIssuer
	Cache    cache.Client
	Config   Config
}

// LoginResult es el resultado de un callback exitoso.
type LoginResult struct {
	User    *repository.User
	Created bool
}

// Service orquesta Identity Exchange y Credential Validator.
type Service struct {
	users    repository.UserRepository
	provider Provider
	states   *StateIssuer
	cache    cache.Client
	cfg      Config

	sf singleflight.Group
}

// NewService valida las dependencias y aplica defaults.
func NewService(d Deps) (*Service, error) {
	if d.Users == nil {
		return nil, errors.New("auth: user repository required")
	}
	if d.Provider == nil {
		return nil, errors.New("auth: provider required")
	}
	if d.States == nil {
		return nil, errors.New("auth: state issuer required")
	}
	cfg := d.Config
	switch cfg.IdentitySource {
	case "":
		cfg.IdentitySource = IdentityFromProfile
	case IdentityFromProfile, IdentityFromCredential:
	default:
		return nil, fmt.Errorf("auth: unknown identity source %q", cfg.IdentitySource)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Service{
		users:    d.Users,
		provider: d.Provider,
		states:   d.States,
		cache:    d.Cache,
		cfg:      cfg,
	}, nil
}

// StateTTL es la vida del state; los controllers la usan para la cookie espejo.
func (s *Service) StateTTL() time.Duration { return s.states.TTL() }

// BeginLogin retorna la URL de autorización de GitHub y el state emitido.
func (s *Service) BeginLogin() (authURL, state string, err error) {
	state, err = s.states.Issue()
	if err != nil {
		return "", "", err
	}
	return s.provider.AuthURL(state), state, nil
}

// CompleteLogin procesa el callback: valida el state, canjea el code y
// hace find-or-create del usuario. Cualquier error deja el directorio intacto.
func (s *Service) CompleteLogin(ctx context.Context, code, state, cookieState string) (*LoginResult, error) {
	log := logger.From(ctx).With(logger.Component("auth"), logger.Op("Service.CompleteLogin"), logger.Provider("github"))

	if state == "" || state != cookieState {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed).Inc()
		log.Warn("state mismatch")
		return nil, fmt.Errorf("%w: cookie mismatch", ErrInvalidState)
	}
	if err := s.states.Verify(state); err != nil {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed).Inc()
		log.Warn("state rejected", logger.Err(err))
		return nil, err
	}

	grant, err := s.provider.Exchange(ctx, code)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed).Inc()
		log.Warn("github exchange failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if grant.AccessToken == "" {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed).Inc()
		return nil, fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}

	identity := grant.Profile.ID
	if s.cfg.IdentitySource == IdentityFromCredential {
		identity = grant.AccessToken
	}
	if identity == "" {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed).Inc()
		return nil, fmt.Errorf("%w: empty profile id", ErrExchangeFailed)
	}

	user, created, err := s.FindOrCreate(ctx, identity, grant.AccessToken)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed).Inc()
		log.Error("find-or-create failed", logger.Credential(grant.AccessToken), logger.Err(err))
		return nil, err
	}

	result := metrics.LoginExisting
	if created {
		result = metrics.LoginCreated
	}
	metrics.LoginsTotal.WithLabelValues(result).Inc()
	log.Info("github login",
		logger.UserID(user.ID),
		logger.GitHubID(user.GitHubID),
		logger.Any("created", created),
	)
	return &LoginResult{User: user, Created: created}, nil
}

type findResult struct {
	user    *repository.User
	created bool
}

// FindOrCreate busca el usuario por credential y lo crea si no existe.
//
// Logins concurrentes del mismo credential en este proceso comparten una
// sola ejecución (singleflight). Entre procesos decide el índice UNIQUE:
// Create devuelve ErrConflict y se vuelve a leer.
//
// Si la identidad de GitHub ya existe con otro credential se retorna el
// usuario existente: el credential guardado no se reemplaza.
func (s *Service) FindOrCreate(ctx context.Context, gitHubID, credential string) (*repository.User, bool, error) {
	if gitHubID == "" || credential == "" {
		return nil, false, repository.ErrInvalidInput
	}
	ch := s.sf.DoChan(credential, func() (interface{}, error) {
		// La ejecución compartida no hereda la cancelación de quien llegó primero.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), findOrCreateTimeout)
		defer cancel()
		u, created, err := s.findOrCreate(sctx, gitHubID, credential)
		if err != nil {
			return nil, err
		}
		return findResult{user: u, created: created}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		r := res.Val.(findResult)
		return r.user, r.created, nil
	}
}

func (s *Service) findOrCreate(ctx context.Context, gitHubID, credential string) (*repository.User, bool, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		u, err := s.users.GetByAccessToken(ctx, credential)
		if err == nil {
			return u, false, nil
		}
		if !repository.IsNotFound(err) {
			return nil, false, fmt.Errorf("auth: lookup credential: %w", err)
		}

		u, err = s.users.Create(ctx, repository.CreateUserInput{GitHubID: gitHubID, AccessToken: credential})
		if err == nil {
			return u, true, nil
		}
		if !repository.IsConflict(err) {
			return nil, false, fmt.Errorf("auth: create user: %w", err)
		}
		metrics.FindOrCreateConflicts.Inc()

		// El conflicto puede venir del índice de identidad.
		existing, err := s.users.GetByGitHubID(ctx, gitHubID)
		if err == nil && existing.AccessToken != credential {
			return existing, false, nil
		}
		if err != nil && !repository.IsNotFound(err) {
			return nil, false, fmt.Errorf("auth: lookup identity: %w", err)
		}
	}
	return nil, false, ErrTooManyConflicts
}

// cachedUser es lo que se guarda en cache. El credential no se guarda: la key ya lo identifica.
type cachedUser struct {
	ID        string    `json:"id"`
	GitHubID  string    `json:"github_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate resuelve el usuario dueño del credential.
// Retorna ErrUnauthenticated si está vacío o no coincide con ningún usuario.
func (s *Service) Validate(ctx context.Context, credential string) (*repository.User, error) {
	if credential == "" {
		metrics.ValidationsTotal.WithLabelValues(metrics.ValidationRejected).Inc()
		return nil, ErrUnauthenticated
	}

	key := CacheKey(credential)
	if u, ok := s.fromCache(ctx, key, credential); ok {
		metrics.ValidationsTotal.WithLabelValues(metrics.ValidationCacheHit).Inc()
		return u, nil
	}

	u, err := s.users.GetByAccessToken(ctx, credential)
	if err != nil {
		if repository.IsNotFound(err) {
			metrics.ValidationsTotal.WithLabelValues(metrics.ValidationRejected).Inc()
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("auth: validate: %w", err)
	}

	s.toCache(ctx, key, u)
	metrics.ValidationsTotal.WithLabelValues(metrics.ValidationOK).Inc()
	return u, nil
}

// CacheKey deriva la key de cache del credential (SHA3-256 en hex).
func CacheKey(credential string) string {
	sum := sha3.Sum256([]byte(credential))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (s *Service) fromCache(ctx context.Context, key, credential string) (*repository.User, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !cache.IsNotFound(err) {
			logger.From(ctx).Warn("credential cache get failed", logger.Component("auth"), logger.Err(err))
		}
		return nil, false
	}
	var cu cachedUser
	if err := json.Unmarshal([]byte(raw), &cu); err != nil {
		return nil, false
	}
	return &repository.User{ID: cu.ID, GitHubID: cu.GitHubID, AccessToken: credential, CreatedAt: cu.CreatedAt}, true
}

func (s *Service) toCache(ctx context.Context, key string, u *repository.User) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(cachedUser{ID: u.ID, GitHubID: u.GitHubID, CreatedAt: u.CreatedAt})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(b), s.cfg.CacheTTL); err != nil {
		logger.From(ctx).Warn("credential cache set failed", logger.Component("auth"), logger.Err(err))
	}
}
