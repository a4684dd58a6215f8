// Package repository define los contratos de persistencia del dominio.
//
// Las implementaciones viven en internal/store/adapters/ (pg, memory):
//
//	auth.Service ──▶ repository.UserRepository ──┬─▶ adapters/pg     (pgxpool)
//	                                              └─▶ adapters/memory (go-cache)
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio en errors.go (ErrNotFound, ErrConflict)
package repository
