package config

import (
	"fmt"
	"net/url"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, quoteDSNValue(c.Password), c.Database, c.SSLMode)
}

// GetURL returns the same connection settings in postgres:// URL form (used by logs, with the password redacted).
func (c *DatabaseConfig) GetURL(redact bool) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	if redact {
		u.User = url.UserPassword(c.User, "xxxxx")
	} else {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

func quoteDSNValue(v string) string {
	if v == "" {
		return "''"
	}
	for _, r := range v {
		if r == ' ' || r == '\'' || r == '\\' {
			out := []rune{'\''}
			for _, c := range v {
				if c == '\'' || c == '\\' {
					out = append(out, '\\')
				}
				out = append(out, c)
			}
			return string(append(out, '\''))
		}
	}
	return v
}
