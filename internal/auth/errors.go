package auth

import "errors"

var (
	// ErrUnauthenticated: credential vacío o sin usuario asociado.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrExchangeFailed: GitHub rechazó el code o no devolvió perfil.
	ErrExchangeFailed = errors.New("auth: exchange failed")

	// ErrInvalidState: state ausente, adulterado, vencido o distinto al de la cookie.
	ErrInvalidState = errors.New("auth: invalid state")

	// ErrTooManyConflicts: find-or-create agotó los reintentos.
	ErrTooManyConflicts = errors.New("auth: find-or-create exhausted retries")
)
