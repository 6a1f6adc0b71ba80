package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type PermitConfig struct {
	TxCodePrefix   string
	TxCodeAttempts int
}

type FiscalConfig struct {
	MaxEvidencePerInfringement int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Permit      PermitConfig
	Fiscal      FiscalConfig
}

var txCodePrefixPattern = regexp.MustCompile(`^[A-Z]{2}$`)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 7090)
	v.SetDefault("PERMIT_TX_CODE_PREFIX", "ZA")
	v.SetDefault("PERMIT_TX_CODE_ATTEMPTS", 5)
	v.SetDefault("FISCAL_MAX_EVIDENCE", 10)

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:        v.GetString("HTTP_HOST"),
			Port:        v.GetInt("HTTP_PORT"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Permit: PermitConfig{
			TxCodePrefix:   strings.ToUpper(strings.TrimSpace(v.GetString("PERMIT_TX_CODE_PREFIX"))),
			TxCodeAttempts: v.GetInt("PERMIT_TX_CODE_ATTEMPTS"),
		},
		Fiscal: FiscalConfig{
			MaxEvidencePerInfringement: v.GetInt("FISCAL_MAX_EVIDENCE"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if !txCodePrefixPattern.MatchString(cfg.Permit.TxCodePrefix) {
		return fmt.Errorf("PERMIT_TX_CODE_PREFIX must be two letters")
	}
	if cfg.Permit.TxCodeAttempts < 1 {
		return fmt.Errorf("PERMIT_TX_CODE_ATTEMPTS must be at least 1")
	}
	if cfg.Fiscal.MaxEvidencePerInfringement < 0 {
		return fmt.Errorf("FISCAL_MAX_EVIDENCE must not be negative")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
