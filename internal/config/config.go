package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | production
		Env     string `yaml:"env"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		OpsAddr         string `yaml:"ops_addr"`
		StaticDir       string `yaml:"static_dir"`
		PublicBaseURL   string `yaml:"public_base_url"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`

		// TrustedProxies: CIDRs o IPs cuyos X-Forwarded-For se aceptan. Vacío = ninguno.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Migrate  bool   `yaml:"migrate"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		TTL   string `yaml:"ttl"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	OAuth struct {
		GitHub struct {
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			CallbackPath string   `yaml:"callback_path"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"github"`
	} `yaml:"oauth"`

	Auth struct {
		// profile | credential
		IdentitySource string `yaml:"identity_source"`
		StateSecret    string `yaml:"state_secret"`
		CookieName     string `yaml:"cookie_name"`
		CookieDomain   string `yaml:"cookie_domain"`
		CookieSameSite string `yaml:"cookie_samesite"`
		CookieSecure   bool   `yaml:"cookie_secure"`
	} `yaml:"auth"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// IsProduction: en producción la config sale sólo del entorno.
func IsProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "prod", "production":
		return true
	}
	return false
}

// Load lee el YAML en path, aplica defaults y después el entorno.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromEnv arma la config sólo con variables de entorno.
func FromEnv() (*Config, error) {
	var c Config
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Resolve elige la fuente: APP_ENV=production → entorno; si no, el YAML.
func Resolve(path string) (*Config, error) {
	if IsProduction(os.Getenv("APP_ENV")) || path == "" {
		return FromEnv()
	}
	return Load(path)
}

// DefaultServerAddr es el listener principal cuando no se configura otro.
const DefaultServerAddr = ":3001"

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.OpsAddr == "" {
		c.Server.OpsAddr = ":9090"
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "client/build"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Storage.Postgres.MaxIdleConns == 0 {
		c.Storage.Postgres.MaxIdleConns = 2
	}
	if c.Storage.Postgres.ConnMaxLifetime == "" {
		c.Storage.Postgres.ConnMaxLifetime = "30m"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "2m"
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "questions"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 30
	}
	if c.OAuth.GitHub.CallbackPath == "" {
		c.OAuth.GitHub.CallbackPath = "/api/auth/github/callback"
	}
	if len(c.OAuth.GitHub.Scopes) == 0 {
		c.OAuth.GitHub.Scopes = []string{"profile"}
	}
	if c.Auth.IdentitySource == "" {
		c.Auth.IdentitySource = "profile"
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "accessToken"
	}
	if c.Auth.CookieSameSite == "" {
		c.Auth.CookieSameSite = "lax"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_VERSION"); ok {
		c.App.Version = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("OPS_ADDR"); ok {
		c.Server.OpsAddr = v
	}
	if v, ok := getEnvStr("STATIC_DIR"); ok {
		c.Server.StaticDir = v
	}
	if v, ok := getEnvStr("PUBLIC_BASE_URL"); ok {
		c.Server.PublicBaseURL = v
	}
	if v, ok := getEnvStr("SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}
	if v, ok := getEnvCSV("TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}

	// STORAGE (DATABASE_URL tiene prioridad sobre STORAGE_DSN)
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("MIGRATE"); ok {
		c.Storage.Migrate = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("CACHE_TTL"); ok {
		c.Cache.TTL = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}

	// OAUTH
	if v, ok := getEnvStr("CLIENT_ID"); ok {
		c.OAuth.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("CLIENT_SECRET"); ok {
		c.OAuth.GitHub.ClientSecret = v
	}
	if v, ok := getEnvStr("OAUTH_CALLBACK_PATH"); ok {
		c.OAuth.GitHub.CallbackPath = v
	}
	if v, ok := getEnvCSV("OAUTH_SCOPES"); ok && len(v) > 0 {
		c.OAuth.GitHub.Scopes = v
	}

	// AUTH
	if v, ok := getEnvStr("IDENTITY_SOURCE"); ok {
		c.Auth.IdentitySource = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STATE_SECRET"); ok {
		c.Auth.StateSecret = v
	}
	if v, ok := getEnvStr("COOKIE_NAME"); ok {
		c.Auth.CookieName = v
	}
	if v, ok := getEnvStr("COOKIE_DOMAIN"); ok {
		c.Auth.CookieDomain = v
	}
	if v, ok := getEnvStr("COOKIE_SAMESITE"); ok {
		c.Auth.CookieSameSite = v
	}
	if v, ok := getEnvBool("COOKIE_SECURE"); ok {
		c.Auth.CookieSecure = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate junta todos los problemas de la config en un solo error.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OAuth.GitHub.ClientID) == "" {
		errs = append(errs, errors.New("CLIENT_ID requerido"))
	}
	if strings.TrimSpace(c.OAuth.GitHub.ClientSecret) == "" {
		errs = append(errs, errors.New("CLIENT_SECRET requerido"))
	}
	switch c.Storage.Driver {
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("DATABASE_URL requerido con storage.driver=postgres"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver desconocido: %q", c.Storage.Driver))
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.kind desconocido: %q", c.Cache.Kind))
	}
	switch c.Auth.IdentitySource {
	case "profile", "credential":
	default:
		errs = append(errs, fmt.Errorf("auth.identity_source desconocido: %q", c.Auth.IdentitySource))
	}
	if !strings.HasPrefix(c.OAuth.GitHub.CallbackPath, "/api/") {
		errs = append(errs, fmt.Errorf("oauth.github.callback_path debe empezar con /api/: %q", c.OAuth.GitHub.CallbackPath))
	}
	for _, tp := range c.Server.TrustedProxies {
		if !validProxy(tp) {
			errs = append(errs, fmt.Errorf("server.trusted_proxies inválido: %q", tp))
		}
	}
	if c.Rate.Enabled && c.Rate.MaxRequests <= 0 {
		errs = append(errs, errors.New("rate.max_requests debe ser > 0"))
	}
	for name, v := range map[string]string{
		"server.shutdown_timeout":            c.Server.ShutdownTimeout,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
		"cache.ttl":                          c.Cache.TTL,
		"rate.window":                        c.Rate.Window,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s inválido: %q", name, v))
		}
	}
	return errors.Join(errs...)
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// ---- Duraciones ya validadas ----

func (c *Config) ShutdownTimeout() time.Duration { return mustDur(c.Server.ShutdownTimeout) }
func (c *Config) ConnMaxLifetime() time.Duration { return mustDur(c.Storage.Postgres.ConnMaxLifetime) }
func (c *Config) CacheTTL() time.Duration        { return mustDur(c.Cache.TTL) }
func (c *Config) RateWindow() time.Duration      { return mustDur(c.Rate.Window) }

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// RedirectURL es la URL absoluta del callback. Sin public_base_url se
// deriva de server.addr apuntando a localhost.
func (c *Config) RedirectURL() string {
	base := strings.TrimRight(c.Server.PublicBaseURL, "/")
	if base == "" {
		addr := c.Server.Addr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		base = "http://" + addr
	}
	return base + c.OAuth.GitHub.CallbackPath
}

// Redacted retorna una copia sin secretos, para -print-config.
func (c *Config) Redacted() *Config {
	cp := *c
	mask := func(s string) string {
		if s == "" {
			return "NOT_SET"
		}
		return "***masked***"
	}
	cp.OAuth.GitHub.ClientSecret = mask(cp.OAuth.GitHub.ClientSecret)
	cp.Auth.StateSecret = mask(cp.Auth.StateSecret)
	cp.Storage.DSN = mask(cp.Storage.DSN)
	cp.Cache.Redis.Password = mask(cp.Cache.Redis.Password)
	return &cp
}

// YAML serializa la config (usar sobre Redacted).
func (c *Config) YAML() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
