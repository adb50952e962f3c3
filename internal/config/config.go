package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
		// URL base del mini-app; el link compartible es <mini_app_url>?startapp=<id>
		MiniAppURL string `yaml:"mini_app_url"`
		// Username del bot (sin @); filtra comandos "/cmd@otro_bot"
		BotName string `yaml:"bot_name"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// Patrones de Origin aceptados por el upgrade websocket (vacío = mismo host)
		WSOriginPatterns []string `yaml:"ws_origin_patterns"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		// Aplica migraciones embebidas al arrancar
		Migrate bool `yaml:"migrate"`
	} `yaml:"storage"`

	Rate struct {
		Backend string `yaml:"backend"` // memory | redis
		Window  string `yaml:"window"`  // ancho de ventana (default 1m)
		Redis   struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`

		// Límites por acción (por identidad y ventana)
		Keygen       int `yaml:"keygen"`
		Prediction   int `yaml:"prediction"`
		MarketCreate int `yaml:"market_create"`

		// Throttle por IP para el upgrade websocket (token bucket)
		WSUpgradeRPS   float64 `yaml:"ws_upgrade_rps"`
		WSUpgradeBurst int     `yaml:"ws_upgrade_burst"`
	} `yaml:"rate"`

	// Cache de claves públicas del vault. redis reusa la conexión de rate.redis.
	Cache struct {
		Driver string `yaml:"driver"` // none | memory | redis
		TTL    string `yaml:"ttl"`    // default 30s
	} `yaml:"cache"`

	Auth struct {
		// Token del bot de la plataforma; de él se deriva la clave HMAC del initData.
		PlatformSecret string `yaml:"platform_secret"`
		// Edad máxima de auth_date aceptada por el middleware (0 = sin límite).
		MaxAge string `yaml:"max_age"`
		// Secreto HS256 para service tokens (bot/admin).
		ServiceTokenSecret string `yaml:"service_token_secret"`
		ServiceTokenTTL    string `yaml:"service_token_ttl"`
	} `yaml:"auth"`

	Crypto struct {
		// Curva única para KeyVault y SecureChannel: p256 | secp256k1
		Curve string `yaml:"curve"`
		// base64(32 bytes), cifra claves privadas at-rest. Debe diferir del platform secret.
		VaultMasterKey string `yaml:"vault_master_key"`
		// Associated data del SecureChannel
		Context string `yaml:"context"`
	} `yaml:"crypto"`

	Markets struct {
		TTL string `yaml:"ttl"` // default 168h (7 días)
	} `yaml:"markets"`

	Timeouts struct {
		Storage   string `yaml:"storage"`   // default 5s
		Write     string `yaml:"write"`     // escritura websocket, default 5s
		Handshake string `yaml:"handshake"` // primer frame realtime, default 10s
		Shutdown  string `yaml:"shutdown"`  // default 15s
	} `yaml:"timeouts"`
}

// Load lee el YAML (si path no está vacío), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.Redis.Prefix == "" {
		c.Rate.Redis.Prefix = "rl:"
	}
	if c.Rate.Keygen == 0 {
		c.Rate.Keygen = 5
	}
	if c.Rate.Prediction == 0 {
		c.Rate.Prediction = 10
	}
	if c.Rate.MarketCreate == 0 {
		c.Rate.MarketCreate = 10
	}
	if c.Rate.WSUpgradeRPS == 0 {
		c.Rate.WSUpgradeRPS = 2
	}
	if c.Rate.WSUpgradeBurst == 0 {
		c.Rate.WSUpgradeBurst = 5
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "30s"
	}
	if c.Auth.ServiceTokenTTL == "" {
		c.Auth.ServiceTokenTTL = "720h"
	}
	if c.Crypto.Curve == "" {
		c.Crypto.Curve = "p256"
	}
	if c.Crypto.Context == "" {
		c.Crypto.Context = "prediction-market"
	}
	if c.Markets.TTL == "" {
		c.Markets.TTL = "168h"
	}
	if c.Timeouts.Storage == "" {
		c.Timeouts.Storage = "5s"
	}
	if c.Timeouts.Write == "" {
		c.Timeouts.Write = "5s"
	}
	if c.Timeouts.Handshake == "" {
		c.Timeouts.Handshake = "10s"
	}
	if c.Timeouts.Shutdown == "" {
		c.Timeouts.Shutdown = "15s"
	}
}

// Validate verifica campos obligatorios y duraciones.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.PlatformSecret) == "" {
		return errors.New("config: auth.platform_secret (PLATFORM_SECRET) es requerido")
	}
	if strings.TrimSpace(c.Crypto.VaultMasterKey) == "" {
		return errors.New("config: crypto.vault_master_key (VAULT_MASTER_KEY) es requerido")
	}
	if c.Crypto.VaultMasterKey == c.Auth.PlatformSecret {
		return errors.New("config: vault_master_key debe ser distinto de platform_secret")
	}
	if strings.TrimSpace(c.Auth.ServiceTokenSecret) == "" {
		return errors.New("config: auth.service_token_secret (SERVICE_TOKEN_SECRET) es requerido")
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("config: storage.dsn requerido para postgres")
		}
	default:
		return fmt.Errorf("config: storage.driver desconocido %q", c.Storage.Driver)
	}
	switch c.Rate.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Rate.Redis.Addr) == "" {
			return errors.New("config: rate.redis.addr requerido para backend redis")
		}
	default:
		return fmt.Errorf("config: rate.backend desconocido %q", c.Rate.Backend)
	}

	switch c.Cache.Driver {
	case "none", "memory":
	case "redis":
		if strings.TrimSpace(c.Rate.Redis.Addr) == "" {
			return errors.New("config: cache.driver=redis requiere rate.redis.addr")
		}
	default:
		return fmt.Errorf("config: cache.driver desconocido %q", c.Cache.Driver)
	}

	durations := map[string]string{
		"cache.ttl":              c.Cache.TTL,
		"rate.window":            c.Rate.Window,
		"auth.service_token_ttl": c.Auth.ServiceTokenTTL,
		"markets.ttl":            c.Markets.TTL,
		"timeouts.storage":       c.Timeouts.Storage,
		"timeouts.write":         c.Timeouts.Write,
		"timeouts.handshake":     c.Timeouts.Handshake,
		"timeouts.shutdown":      c.Timeouts.Shutdown,
	}
	if c.Auth.MaxAge != "" {
		durations["auth.max_age"] = c.Auth.MaxAge
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		durations["storage.postgres.conn_max_lifetime"] = c.Storage.Postgres.ConnMaxLifetime
	}
	for name, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}

// Duration parsea un campo ya validado; devuelve def si está vacío.
func Duration(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
		return d
	}
	return def
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
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("MINI_APP_URL"); ok {
		c.App.MiniAppURL = v
	}
	if v, ok := getEnvStr("BOT_NAME"); ok {
		c.App.BotName = strings.TrimPrefix(v, "@")
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvCSV("SERVER_WS_ORIGIN_PATTERNS"); ok {
		c.Server.WSOriginPatterns = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok && c.Storage.DSN == "" {
		c.Storage.DSN = v
		if c.Storage.Driver == "" {
			c.Storage.Driver = "postgres"
		}
	}
	if v, ok := getEnvBool("STORAGE_MIGRATE"); ok {
		c.Storage.Migrate = v
	}

	// RATE
	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Rate.Redis.Password = v
	}
	if v, ok := getEnvInt("RATE_KEYGEN_LIMIT"); ok {
		c.Rate.Keygen = v
	}
	if v, ok := getEnvInt("RATE_PREDICTION_LIMIT"); ok {
		c.Rate.Prediction = v
	}
	if v, ok := getEnvInt("RATE_MARKET_CREATE_LIMIT"); ok {
		c.Rate.MarketCreate = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_DRIVER"); ok {
		c.Cache.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("CACHE_TTL"); ok {
		c.Cache.TTL = v
	}

	// AUTH
	if v, ok := getEnvStr("PLATFORM_SECRET"); ok {
		c.Auth.PlatformSecret = v
	}
	if v, ok := getEnvStr("TELEGRAM_BOT_TOKEN"); ok && c.Auth.PlatformSecret == "" {
		c.Auth.PlatformSecret = v
	}
	if v, ok := getEnvStr("AUTH_MAX_AGE"); ok {
		c.Auth.MaxAge = v
	}
	if v, ok := getEnvStr("SERVICE_TOKEN_SECRET"); ok {
		c.Auth.ServiceTokenSecret = v
	}

	// CRYPTO
	if v, ok := getEnvStr("CRYPTO_CURVE"); ok {
		c.Crypto.Curve = strings.ToLower(v)
	}
	if v, ok := getEnvStr("VAULT_MASTER_KEY"); ok {
		c.Crypto.VaultMasterKey = v
	}
}
