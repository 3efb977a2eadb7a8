package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort        string
	GRPCPort        string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string

	MongoURI    string
	MongoDBName string
	RedisAddr   string
	RedisPass   string
	RedisDB     int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	AuditDriver    string
	AuditDSN       string
	MigrationsPath string

	JWTSecret    string
	JWTExpiresIn time.Duration
	FrontendURL  string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	ImageKitPublicKey   string
	ImageKitPrivateKey  string
	ImageKitURLEndpoint string
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Load reads configuration from an optional .env file and the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	_ = v.BindEnv("mongo_uri", "MONGO_URI", "MONGODB_URI")
	_ = v.BindEnv("twilio_phone_number", "TWILIO_PHONE_NUMBER", "TWILIO_FROM")

	cfg := &Config{
		HTTPPort:        v.GetString("port"),
		GRPCPort:        v.GetString("grpc_port"),
		LogLevel:        v.GetString("log_level"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		MaxBodyBytes:    v.GetInt64("max_body_bytes"),
		CORSOrigins:     splitList(v.GetString("cors_allowed_origins")),

		MongoURI:    v.GetString("mongo_uri"),
		MongoDBName: v.GetString("mongo_db_name"),
		RedisAddr:   v.GetString("redis_addr"),
		RedisPass:   v.GetString("redis_password"),
		RedisDB:     v.GetInt("redis_db"),

		KafkaBrokers: splitList(v.GetString("kafka_brokers")),
		KafkaTopic:   v.GetString("kafka_topic"),
		KafkaGroupID: v.GetString("kafka_group_id"),

		AuditDriver:    v.GetString("audit_driver"),
		AuditDSN:       v.GetString("audit_dsn"),
		MigrationsPath: v.GetString("migrations_path"),

		JWTSecret:    v.GetString("jwt_secret"),
		JWTExpiresIn: v.GetDuration("jwt_expires_in"),
		FrontendURL:  strings.TrimRight(v.GetString("frontend_url"), "/"),

		SMTPHost: v.GetString("smtp_host"),
		SMTPPort: v.GetInt("smtp_port"),
		SMTPUser: v.GetString("smtp_user"),
		SMTPPass: v.GetString("smtp_pass"),
		SMTPFrom: v.GetString("smtp_from"),

		TwilioAccountSID: v.GetString("twilio_account_sid"),
		TwilioAuthToken:  v.GetString("twilio_auth_token"),
		TwilioFrom:       v.GetString("twilio_phone_number"),

		ImageKitPublicKey:   v.GetString("imagekit_public_key"),
		ImageKitPrivateKey:  v.GetString("imagekit_private_key"),
		ImageKitURLEndpoint: v.GetString("imagekit_url_endpoint"),
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
}

func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "5000")
	v.SetDefault("grpc_port", "50060")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("max_body_bytes", 1<<20) // 1MB
	v.SetDefault("cors_allowed_origins", "http://localhost:3000")

	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_db_name", "ecofinds")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)

	v.SetDefault("kafka_brokers", "localhost:9092")
	v.SetDefault("kafka_topic", "marketplace-events")
	v.SetDefault("kafka_group_id", "ecofinds-notifications")

	v.SetDefault("audit_driver", "sqlite")
	v.SetDefault("audit_dsn", "file:audit.db")
	v.SetDefault("migrations_path", "internal/audit/migrations")

	v.SetDefault("jwt_expires_in", 7*24*time.Hour)
	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("smtp_port", 587)
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
