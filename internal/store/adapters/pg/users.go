package pg

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/questions/internal/domain/repository"
)

// uniqueViolation es el SQLSTATE de postgres para índices UNIQUE.
const uniqueViolation = "23505"

type userRepo struct {
	pool *pgxpool.Pool
}

const userColumns = `id, github_id, access_token, created_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	if err := row.Scan(&u.ID, &u.GitHubID, &u.AccessToken, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByAccessToken(ctx context.Context, accessToken string) (*repository.User, error) {
	const query = `SELECT ` + userColumns + ` FROM app_user WHERE access_token = $1`
	return scanUser(r.pool.QueryRow(ctx, query, accessToken))
}

func (r *userRepo) GetByGitHubID(ctx context.Context, gitHubID string) (*repository.User, error) {
	const query = `SELECT ` + userColumns + ` FROM app_user WHERE github_id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, gitHubID))
}

func (r *userRepo) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	if strings.TrimSpace(input.AccessToken) == "" || strings.TrimSpace(input.GitHubID) == "" {
		return nil, repository.ErrInvalidInput
	}
	const query = `
		INSERT INTO app_user (id, github_id, access_token, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query, uuid.NewString(), input.GitHubID, input.AccessToken))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM app_user`).Scan(&n)
	return n, err
}

func (r *userRepo) List(ctx context.Context, filter repository.ListUsersFilter) ([]repository.User, error) {
	filter = filter.Normalize()
	const query = `SELECT ` + userColumns + ` FROM app_user ORDER BY created_at, id LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []repository.User
	for rows.Next() {
		var u repository.User
		if err := rows.Scan(&u.ID, &u.GitHubID, &u.AccessToken, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
