package repository

import (
	"context"
	"time"
)

// User es el registro persistido por cada identidad autenticada con GitHub.
//
// AccessToken es el token de GitHub reutilizado tal cual como bearer credential;
// no expira ni rota.
type User struct {
	ID          string
	GitHubID    string
	AccessToken string
	CreatedAt   time.Time
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	GitHubID    string
	AccessToken string
}

// ListUsersFilter opciones para listar usuarios.
type ListUsersFilter struct {
	Limit  int // Default 50, max 200
	Offset int
}

// Normalize aplica defaults y límites.
func (f ListUsersFilter) Normalize() ListUsersFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// UserRepository es el User Directory: guarda un registro por identidad.
type UserRepository interface {
	// GetByAccessToken busca el usuario cuyo credential coincide.
	// Retorna ErrNotFound si no existe.
	GetByAccessToken(ctx context.Context, accessToken string) (*User, error)

	// GetByGitHubID busca por identidad del provider.
	// Retorna ErrNotFound si no existe.
	GetByGitHubID(ctx context.Context, gitHubID string) (*User, error)

	// Create inserta un usuario nuevo.
	// Retorna ErrConflict si el credential o el GitHubID ya existen.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// Count retorna la cantidad de usuarios.
	Count(ctx context.Context) (int, error)

	// List lista usuarios ordenados por fecha de creación.
	List(ctx context.Context, filter ListUsersFilter) ([]User, error)
}
