package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	commoncfg "github.com/LsSens/backend-ecommerce/common/config"

	"github.com/spf13/viper"
)

// Config storefront-api（HTTP API）配置
type Config struct {
	Env         string
	ServiceName string
	HTTP        struct {
		Addr           string
		ReadTimeout    time.Duration
		WriteTimeout   time.Duration
		RequestTimeout time.Duration
		MaxBodyBytes   int64
		TrustedProxies []string
	}
	DBEnabled    bool
	Database     commoncfg.DatabaseConfig
	RedisEnabled bool
	Redis        commoncfg.RedisConfig
	Log          struct {
		Level  string
		Format string
	}
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Tenancy   struct {
		CacheTTL time.Duration
	}
	Storage StorageConfig
	Domains DomainsConfig
}

// AuthConfig token signing settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RateLimitConfig fixed-window limiter settings
type RateLimitConfig struct {
	Enabled     bool
	Window      time.Duration
	MaxRequests int
}

// StorageConfig 图片存储（S3 / 本地目录）
type StorageConfig struct {
	Driver        string // "s3" | "local"
	Region        string
	Bucket        string
	AccessKeyID   string
	SecretKey     string
	Endpoint      string
	LocalDir      string
	LocalBaseURL  string
	MaxImageBytes int64
	MaxImageWidth int
}

// DomainsConfig 域名校验（NS 记录检查）
type DomainsConfig struct {
	Resolver            string // "doh" | "system"
	DoHURL              string
	ExpectedNameservers []string
	LookupTimeout       time.Duration
}

var defaults = map[string]any{
	"APP_ENV":      "development",
	"SERVICE_NAME": "storefront-api",

	"HTTP_ADDR":            ":8080",
	"HTTP_READ_TIMEOUT":    "15s",
	"HTTP_WRITE_TIMEOUT":   "60s",
	"HTTP_REQUEST_TIMEOUT": "30s",
	"HTTP_MAX_BODY_BYTES":  64 << 20,
	"TRUSTED_PROXIES":      "",

	"DB_ENABLED":           true,
	"DB_HOST":              "localhost",
	"DB_PORT":              5432,
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "postgres",
	"DB_NAME":              "storefront",
	"DB_SSLMODE":           "disable",
	"DB_MAX_CONNS":         25,
	"DB_MAX_IDLE":          5,
	"DB_CONN_MAX_LIFETIME": "30m",

	"REDIS_ENABLED":  true,
	"REDIS_ADDR":     "localhost:6379",
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"JWT_SECRET":     "",
	"JWT_EXPIRES_IN": "24h",

	"RATE_LIMIT_ENABLED":      true,
	"RATE_LIMIT_WINDOW_MS":    900000,
	"RATE_LIMIT_MAX_REQUESTS": 100,

	"TENANT_CACHE_TTL": "60s",

	"STORAGE_DRIVER":        "local",
	"AWS_REGION":            "us-east-1",
	"AWS_S3_BUCKET":         "",
	"AWS_ACCESS_KEY_ID":     "",
	"AWS_SECRET_ACCESS_KEY": "",
	"AWS_S3_ENDPOINT":       "",
	"STORAGE_LOCAL_DIR":     "./uploads",
	"STORAGE_LOCAL_URL":     "http://localhost:8080/uploads",
	"IMAGE_MAX_BYTES":       5 << 20,
	"IMAGE_MAX_WIDTH":       1920,

	"DOMAIN_RESOLVER":             "doh",
	"DOMAIN_DOH_URL":              "https://dns.google/resolve",
	"DOMAIN_EXPECTED_NAMESERVERS": "awsdns",
	"DOMAIN_LOOKUP_TIMEOUT":       "5s",
}

// Load 读取环境变量（可选配置文件），未设置的键使用默认值
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	cfg.Env = v.GetString("APP_ENV")
	cfg.ServiceName = v.GetString("SERVICE_NAME")

	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")
	cfg.HTTP.ReadTimeout = v.GetDuration("HTTP_READ_TIMEOUT")
	cfg.HTTP.WriteTimeout = v.GetDuration("HTTP_WRITE_TIMEOUT")
	cfg.HTTP.RequestTimeout = v.GetDuration("HTTP_REQUEST_TIMEOUT")
	cfg.HTTP.MaxBodyBytes = v.GetInt64("HTTP_MAX_BODY_BYTES")
	cfg.HTTP.TrustedProxies = splitList(v.GetString("TRUSTED_PROXIES"))

	cfg.DBEnabled = v.GetBool("DB_ENABLED")
	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetInt("DB_PORT")
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.Database = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSLMODE")
	cfg.Database.MaxConns = v.GetInt("DB_MAX_CONNS")
	cfg.Database.MaxIdle = v.GetInt("DB_MAX_IDLE")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DB_CONN_MAX_LIFETIME")

	cfg.RedisEnabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")

	cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	ttl, err := parseExpiry(v.GetString("JWT_EXPIRES_IN"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}
	cfg.Auth.TokenTTL = ttl

	cfg.RateLimit.Enabled = v.GetBool("RATE_LIMIT_ENABLED")
	cfg.RateLimit.Window = time.Duration(v.GetInt64("RATE_LIMIT_WINDOW_MS")) * time.Millisecond
	cfg.RateLimit.MaxRequests = v.GetInt("RATE_LIMIT_MAX_REQUESTS")

	cfg.Tenancy.CacheTTL = v.GetDuration("TENANT_CACHE_TTL")

	cfg.Storage.Driver = strings.ToLower(v.GetString("STORAGE_DRIVER"))
	cfg.Storage.Region = v.GetString("AWS_REGION")
	cfg.Storage.Bucket = v.GetString("AWS_S3_BUCKET")
	cfg.Storage.AccessKeyID = v.GetString("AWS_ACCESS_KEY_ID")
	cfg.Storage.SecretKey = v.GetString("AWS_SECRET_ACCESS_KEY")
	cfg.Storage.Endpoint = v.GetString("AWS_S3_ENDPOINT")
	cfg.Storage.LocalDir = v.GetString("STORAGE_LOCAL_DIR")
	cfg.Storage.LocalBaseURL = v.GetString("STORAGE_LOCAL_URL")
	cfg.Storage.MaxImageBytes = v.GetInt64("IMAGE_MAX_BYTES")
	cfg.Storage.MaxImageWidth = v.GetInt("IMAGE_MAX_WIDTH")

	cfg.Domains.Resolver = strings.ToLower(v.GetString("DOMAIN_RESOLVER"))
	cfg.Domains.DoHURL = v.GetString("DOMAIN_DOH_URL")
	cfg.Domains.ExpectedNameservers = splitList(v.GetString("DOMAIN_EXPECTED_NAMESERVERS"))
	cfg.Domains.LookupTimeout = v.GetDuration("DOMAIN_LOOKUP_TIMEOUT")

	return cfg, nil
}

// Validate 启动前校验：缺少签名密钥时拒绝启动
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Window <= 0 || c.RateLimit.MaxRequests <= 0) {
		return errors.New("RATE_LIMIT_WINDOW_MS and RATE_LIMIT_MAX_REQUESTS must be positive")
	}
	switch c.Storage.Driver {
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("AWS_S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	case "local":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

// IsProduction reports whether internal error detail must be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// parseExpiry accepts Go durations ("24h", "90m") and whole days ("7d").
func parseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
