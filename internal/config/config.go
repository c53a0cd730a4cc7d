package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant  string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	Timezone       string   `mapstructure:"TIMEZONE"`

	// RequestTimeout bounds every /api/v1 request, exports included.
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// Reporting institution identity written to AF, AC, AP and CT.
	ProviderCode   string `mapstructure:"RIPS_PROVIDER_CODE"`
	ProviderName   string `mapstructure:"RIPS_PROVIDER_NAME"`
	ProviderIDType string `mapstructure:"RIPS_PROVIDER_ID_TYPE"`
	ProviderID     string `mapstructure:"RIPS_PROVIDER_ID"`
	InsurerName    string `mapstructure:"RIPS_INSURER_NAME"`
	Contract       string `mapstructure:"RIPS_CONTRACT"`
	BenefitPlan    string `mapstructure:"RIPS_BENEFIT_PLAN"`

	// ArchiveStore is none, memory or minio.
	ArchiveStore   string `mapstructure:"ARCHIVE_STORE"`
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DEFAULT_TENANT",
	"CORS_ORIGINS", "AUTH_ISSUER", "AUTH_SIGNING_KEY", "TIMEZONE", "REQUEST_TIMEOUT",
	"RIPS_PROVIDER_CODE", "RIPS_PROVIDER_NAME", "RIPS_PROVIDER_ID_TYPE", "RIPS_PROVIDER_ID",
	"RIPS_INSURER_NAME", "RIPS_CONTRACT", "RIPS_BENEFIT_PLAN",
	"ARCHIVE_STORE", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
	"AMQP_URL", "AMQP_EXCHANGE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TIMEZONE", "America/Bogota")
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("RIPS_PROVIDER_CODE", "050012362501")
	v.SetDefault("RIPS_PROVIDER_NAME", "CONSULTORIO ODONTOLOGICO")
	v.SetDefault("RIPS_PROVIDER_ID_TYPE", "NI")
	v.SetDefault("RIPS_PROVIDER_ID", "900123456-7")
	v.SetDefault("RIPS_INSURER_NAME", "NOMBRE EPS")
	v.SetDefault("RIPS_CONTRACT", "CONTRATO123")
	v.SetDefault("RIPS_BENEFIT_PLAN", "PLANBENEFICIOS")
	v.SetDefault("ARCHIVE_STORE", "none")
	v.SetDefault("MINIO_BUCKET", "rips-archives")
	v.SetDefault("AMQP_EXCHANGE", "odontologia.events")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location loads the timezone used to interpret export dates.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if !c.IsDev() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters outside development (current ENV=%q)", c.Env)
	}

	for name, value := range map[string]string{
		"RIPS_PROVIDER_CODE":    c.ProviderCode,
		"RIPS_PROVIDER_NAME":    c.ProviderName,
		"RIPS_PROVIDER_ID_TYPE": c.ProviderIDType,
		"RIPS_PROVIDER_ID":      c.ProviderID,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", name)
		}
		if strings.ContainsAny(value, ",\r\n") {
			return fmt.Errorf("%s must not contain commas or line breaks", name)
		}
	}

	switch c.ArchiveStore {
	case "", "none", "memory":
	case "minio":
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when ARCHIVE_STORE is \"minio\"")
		}
	default:
		return fmt.Errorf("ARCHIVE_STORE must be \"none\", \"memory\" or \"minio\", got %q", c.ArchiveStore)
	}

	return nil
}
