package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all configuration for the enquiry service
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	NATS         NATSConfig
	JWT          JWTConfig
	SMTP         SMTPConfig
	SendGrid     SendGridConfig
	MSG91        MSG91Config
	Notification NotificationConfig
	Audit        AuditConfig
	Enquiry      EnquiryConfig
	App          AppConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration for rate limiting
type RedisConfig struct {
	URL          string
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

// NATSConfig holds NATS configuration for domain events
type NATSConfig struct {
	URL           string
	Enabled       bool
	MaxReconnects int
	ReconnectWait int // In seconds
}

// JWTConfig holds bearer token validation settings
type JWTConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

// SMTPConfig holds the primary email transport settings
type SMTPConfig struct {
	Host      string
	Port      int
	Secure    bool
	User      string
	Pass      string
	FromEmail string
	FromName  string
}

// SendGridConfig holds the fallback email transport settings
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// MSG91Config holds the SMS transport settings
type MSG91Config struct {
	AuthKey  string
	SenderID string
	Route    string
	Country  string
	BaseURL  string
	// Flow template ids keyed by notification template name
	TemplateIDs map[string]string
}

// NotificationConfig holds dispatch deadlines and template context
type NotificationConfig struct {
	EmailTimeout time.Duration
	SMSTimeout   time.Duration
	CompanyName  string
	FrontendURL  string
	SupportEmail string
}

// AuditConfig holds audit sink and retention sweep configuration
type AuditConfig struct {
	SecuritySalt    string
	SweepEnabled    bool
	SweepSchedule   string
	FallbackLogPath string
}

// EnquiryConfig holds enquiry engine settings
type EnquiryConfig struct {
	AutoAssignDefault bool
	TicketTimezone    string
	SubmitRateLimit   int
	SubmitRateWindow  time.Duration
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string
	LogLevel    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:3001",
			}),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "enquiry_db"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled:       getEnvAsBool("NATS_ENABLED", false),
			MaxReconnects: getEnvAsInt("NATS_MAX_RECONNECTS", -1),
			ReconnectWait: getEnvAsInt("NATS_RECONNECT_WAIT", 2),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", "enquiry-service"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnvAsInt("SMTP_PORT", 587),
			Secure:    getEnvAsBool("SMTP_SECURE", false),
			User:      getEnv("SMTP_USER", ""),
			Pass:      getEnv("SMTP_PASS", ""),
			FromEmail: getEnv("SMTP_FROM_EMAIL", ""),
			FromName:  getEnv("SMTP_FROM_NAME", "Property Enquiries"),
		},
		SendGrid: SendGridConfig{
			APIKey:    getEnv("SENDGRID_API_KEY", ""),
			FromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
			FromName:  getEnv("SENDGRID_FROM_NAME", "Property Enquiries"),
		},
		MSG91: MSG91Config{
			AuthKey:  getEnv("MSG91_AUTH_KEY", ""),
			SenderID: getEnv("MSG91_SENDER_ID", ""),
			Route:    getEnv("MSG91_ROUTE", "4"),
			Country:  getEnv("MSG91_COUNTRY", "91"),
			BaseURL:  getEnv("MSG91_BASE_URL", "https://control.msg91.com"),
			TemplateIDs: map[string]string{
				"account_verification": getEnv("MSG91_TEMPLATE_ACCOUNT_VERIFICATION", ""),
				"enquiry_new_agent":    getEnv("MSG91_TEMPLATE_ENQUIRY_NEW_AGENT", ""),
				"enquiry_assigned":     getEnv("MSG91_TEMPLATE_ENQUIRY_ASSIGNED", ""),
			},
		},
		Notification: NotificationConfig{
			EmailTimeout: getEnvAsDuration("NOTIFY_EMAIL_TIMEOUT", 15*time.Second),
			SMSTimeout:   getEnvAsDuration("NOTIFY_SMS_TIMEOUT", 15*time.Second),
			CompanyName:  getEnv("COMPANY_NAME", "Property Enquiries"),
			FrontendURL:  strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
			SupportEmail: getEnv("SUPPORT_EMAIL", ""),
		},
		Audit: AuditConfig{
			SecuritySalt:    getEnv("SECURITY_SALT", ""),
			SweepEnabled:    getEnvAsBool("AUDIT_SWEEP_ENABLED", true),
			SweepSchedule:   getEnv("AUDIT_SWEEP_SCHEDULE", "0 3 * * *"), // 3 AM daily
			FallbackLogPath: getEnv("AUDIT_FALLBACK_LOG", ""),
		},
		Enquiry: EnquiryConfig{
			AutoAssignDefault: getEnvAsBool("AUTO_ASSIGN_AGENTS", false),
			TicketTimezone:    getEnv("TICKET_TIMEZONE", "Asia/Kolkata"),
			SubmitRateLimit:   getEnvAsInt("ENQUIRY_RATE_LIMIT", 5),
			SubmitRateWindow:  getEnvAsDuration("ENQUIRY_RATE_WINDOW", 15*time.Minute),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks settings that cannot fall back to a default
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "SERVER_PORT must be between 1 and 65535")
	}
	if _, err := time.LoadLocation(c.Enquiry.TicketTimezone); err != nil {
		problems = append(problems, fmt.Sprintf("TICKET_TIMEZONE %q is not a valid timezone", c.Enquiry.TicketTimezone))
	}
	if c.Enquiry.SubmitRateLimit <= 0 {
		problems = append(problems, "ENQUIRY_RATE_LIMIT must be positive")
	}
	if c.IsProduction() {
		if c.JWT.Secret == "" {
			problems = append(problems, "JWT_SECRET is required in production")
		}
		if c.Audit.SecuritySalt == "" {
			problems = append(problems, "SECURITY_SALT is required in production")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TicketLocation returns the timezone used for ticket date prefixes
func (c *Config) TicketLocation() *time.Location {
	loc, err := time.LoadLocation(c.Enquiry.TicketTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.App.Environment) == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.App.Environment) == "development"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
