package logger

import (
	"time"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

func DurationMs(v time.Duration) zap.Field {
	return zap.Int64("duration_ms", v.Milliseconds())
}

// ---- Negocio ----

func UserID(v string) zap.Field   { return zap.String("user_id", v) }
func GitHubID(v string) zap.Field { return zap.String("github_id", v) }
func Provider(v string) zap.Field { return zap.String("provider", v) }

// Credential loguea sólo los últimos 4 caracteres del token; el prefijo
// (gho_) es igual para todos.
func Credential(v string) zap.Field {
	if len(v) <= 8 {
		return zap.String("credential", "****")
	}
	return zap.String("credential", "…"+v[len(v)-4:])
}

// ---- Sistema ----

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Addr(v string) zap.Field      { return zap.String("addr", v) }
func Count(v int) zap.Field        { return zap.Int("count", v) }
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
