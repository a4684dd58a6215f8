// Package api contiene los handlers protegidos por bearer credential.
package api

import (
	"net/http"

	"github.com/dropDatabas3/questions/internal/http/errors"
	"github.com/dropDatabas3/questions/internal/http/helpers"
	mw "github.com/dropDatabas3/questions/internal/http/middlewares"
)

// Questions es la lista fija que devuelve /api/questions.
var Questions = []string{"Question 1", "Question 2"}

// MeResponse es el cuerpo de /api/me.
type MeResponse struct {
	GitHubID string `json:"gitHubId"`
}

// Me maneja GET /api/me.
func Me(w http.ResponseWriter, r *http.Request) {
	u := mw.GetUser(r.Context())
	if u == nil {
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, MeResponse{GitHubID: u.GitHubID})
}

// ListQuestions maneja GET /api/questions.
func ListQuestions(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, Questions)
}

// NotFound responde 404 JSON para /api/* desconocido.
func NotFound(w http.ResponseWriter, r *http.Request) {
	errors.WriteError(w, errors.ErrNotFound)
}

// MethodNotAllowed responde 405 JSON.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	errors.WriteError(w, errors.ErrMethodNotAllowed)
}
