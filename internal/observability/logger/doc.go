// Package logger expone un logger Zap único para el proceso, con loggers
// "scoped" por request propagados via context.
//
// Inicialización (una vez, en cmd/service):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// En handlers/services:
//
//	log := logger.From(ctx)
//	log.Info("login ok", logger.UserID(u.ID), logger.GitHubID(u.GitHubID))
//
// Nunca loguear el bearer credential; usar Credential() que sólo deja un prefijo.
package logger
