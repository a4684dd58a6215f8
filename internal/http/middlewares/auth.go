package middlewares

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/questions/internal/auth"
	"github.com/dropDatabas3/questions/internal/domain/repository"
	"github.com/dropDatabas3/questions/internal/http/errors"
	"github.com/dropDatabas3/questions/internal/observability/logger"
)

const (
	bearerRealm       = `Bearer realm="Users"`
	accessTokenParam  = "access_token"
	bearerSchemaLower = "bearer "
)

// CredentialValidator resuelve un bearer credential a su usuario.
type CredentialValidator interface {
	Validate(ctx context.Context, credential string) (*repository.User, error)
}

// BearerCredential extrae el credential del header Authorization: Bearer o,
// si no está, del query param access_token.
func BearerCredential(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) > len(bearerSchemaLower) && strings.EqualFold(ah[:len(bearerSchemaLower)], bearerSchemaLower) {
		if tok := strings.TrimSpace(ah[len(bearerSchemaLower):]); tok != "" {
			return tok
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(accessTokenParam))
}

// RequireBearer exige un credential válido. Sin credential o sin usuario
// responde 401 y el handler no se ejecuta. Con éxito el usuario queda en el
// contexto (GetUser).
func RequireBearer(v CredentialValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := BearerCredential(r)
			if cred == "" {
				w.Header().Set("WWW-Authenticate", bearerRealm)
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}

			user, err := v.Validate(r.Context(), cred)
			if err != nil {
				if stderrors.Is(err, auth.ErrUnauthenticated) {
					w.Header().Set("WWW-Authenticate", bearerRealm+`, error="invalid_token"`)
					errors.WriteError(w, errors.ErrTokenInvalid)
					return
				}
				logger.From(r.Context()).Error("credential validation failed", logger.Component("guard"), logger.Credential(cred), logger.Err(err))
				errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(user.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
