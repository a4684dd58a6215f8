// Package memory implementa un User Directory en proceso sobre go-cache.
// Pensado para desarrollo y tests; los datos se pierden al reiniciar.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/questions/internal/domain/repository"
	"github.com/dropDatabas3/questions/internal/store"
)

// AdapterName es el valor de storage.driver que selecciona este adapter.
const AdapterName = "memory"

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return AdapterName }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	return &memConnection{users: NewUserRepository()}, nil
}

type memConnection struct {
	users *UserRepository
}

func (c *memConnection) Name() string                     { return AdapterName }
func (c *memConnection) Ping(ctx context.Context) error   { return nil }
func (c *memConnection) Close() error                     { return nil }
func (c *memConnection) Users() repository.UserRepository { return c.users }

// UserRepository guarda usuarios en dos índices go-cache sin expiración:
// por credential y por GitHubID. Add falla si la key ya existe, lo que da
// la misma semántica que un índice UNIQUE.
type UserRepository struct {
	// mu serializa Create para mantener ambos índices consistentes.
	mu       sync.Mutex
	byToken  *gocache.Cache
	byGitHub *gocache.Cache
	now      func() time.Time
}

// NewUserRepository crea un repositorio vacío.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byToken:  gocache.New(gocache.NoExpiration, 0),
		byGitHub: gocache.New(gocache.NoExpiration, 0),
		now:      time.Now,
	}
}

func (r *UserRepository) GetByAccessToken(ctx context.Context, accessToken string) (*repository.User, error) {
	return lookup(r.byToken, accessToken)
}

func (r *UserRepository) GetByGitHubID(ctx context.Context, gitHubID string) (*repository.User, error) {
	return lookup(r.byGitHub, gitHubID)
}

func lookup(c *gocache.Cache, key string) (*repository.User, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := v.(repository.User)
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	if strings.TrimSpace(input.AccessToken) == "" || strings.TrimSpace(input.GitHubID) == "" {
		return nil, repository.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := repository.User{
		ID:          uuid.NewString(),
		GitHubID:    input.GitHubID,
		AccessToken: input.AccessToken,
		CreatedAt:   r.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.byToken.Add(u.AccessToken, u, gocache.NoExpiration); err != nil {
		return nil, repository.ErrConflict
	}
	if err := r.byGitHub.Add(u.GitHubID, u, gocache.NoExpiration); err != nil {
		r.byToken.Delete(u.AccessToken)
		return nil, repository.ErrConflict
	}
	return &u, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	return r.byToken.ItemCount(), nil
}

func (r *UserRepository) List(ctx context.Context, filter repository.ListUsersFilter) ([]repository.User, error) {
	filter = filter.Normalize()

	items := r.byToken.Items()
	all := make([]repository.User, 0, len(items))
	for _, it := range items {
		all = append(all, it.Object.(repository.User))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if filter.Offset >= len(all) {
		return []repository.User{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}
