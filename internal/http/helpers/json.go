// Package helpers agrupa utilidades HTTP compartidas por controllers.
package helpers

import (
	"encoding/json"
	"net/http"
)

// WriteJSON escribe v como JSON con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
