package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/questions/internal/app"
	"github.com/dropDatabas3/questions/internal/config"
	"github.com/dropDatabas3/questions/internal/observability/logger"
)

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func loadConfig(path string, envOnly bool) (*config.Config, error) {
	if envOnly {
		return config.FromEnv()
	}
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" && fileExists("configs/config.yaml") {
		path = "configs/config.yaml"
	}
	return config.Resolve(path)
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvOnly    = flag.Bool("env", false, "usar SOLO env (y .env si se pasa -env-file)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
		flagPrint      = flag.Bool("print-config", false, "imprime config efectiva (secretos enmascarados) y termina")
	)
	flag.Parse()

	if *flagEnvFile != "" && fileExists(*flagEnvFile) {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfg, err := loadConfig(*flagConfigPath, *flagEnvOnly)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *flagPrint {
		out, err := cfg.Redacted().YAML()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		fmt.Print(out)
		return
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "questions",
		Version:     cfg.App.Version,
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Options{Config: cfg})
	if err != nil {
		lg.Error("startup failed", logger.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		lg.Error("listen failed", logger.Err(err))
		_ = a.Stop(context.Background())
		_ = logger.Sync()
		os.Exit(1)
	}

	exit := 0
	select {
	case <-ctx.Done():
		lg.Info("shutdown signal received")
	case err := <-a.Errors():
		lg.Error("server error", logger.Err(err))
		exit = 1
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := a.Stop(sctx); err != nil {
		lg.Warn("shutdown", logger.Err(err))
	}
	lg.Info("bye")
	if exit != 0 {
		_ = logger.Sync()
		os.Exit(exit)
	}
}
