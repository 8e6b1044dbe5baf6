package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Supported STORE_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
	DriverSQLite   = "sqlite"
)

// DefaultFarmID is the farm every zone belongs to until farms become first-class.
const DefaultFarmID = "11111111-1111-1111-1111-111111111111"

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Scoring   ScoringConfig
	Auth      AuthConfig
	Blob      BlobConfig
	WhatsApp  WhatsAppConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
}

// Production reports whether the service runs with production settings.
func (s ServerConfig) Production() bool {
	return s.Env == "production"
}

// StoreConfig selects and configures the persistence driver.
type StoreConfig struct {
	Driver      string
	DatabaseURL string
	MongoURI    string
	MongoDBName string
	SQLitePath  string
	FarmID      uuid.UUID
}

// ScoringConfig holds the zone health settings. Values are fixed for the
// lifetime of the process.
type ScoringConfig struct {
	StressThreshold    int
	SummaryConcurrency int
}

// AuthConfig holds the demo session settings.
type AuthConfig struct {
	Passcode      string
	SessionSecret string
	DemoID        string
}

// BlobConfig points at the object store used for scan images.
type BlobConfig struct {
	BaseURL string
	Token   string
}

// Enabled reports whether scan uploads can be stored.
func (b BlobConfig) Enabled() bool {
	return b.BaseURL != ""
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API used to
// deliver health digests.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	RecipientID   string
}

// Enabled reports whether digests should be sent.
func (w WhatsAppConfig) Enabled() bool {
	return w.AccessToken != ""
}

// SheetsConfig contains configuration required to export reports to Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	ReportRange     string
}

// Enabled reports whether reports should be appended to a spreadsheet.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != ""
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
	Timezone     string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	threshold, err := getenvInt("STRESS_THRESHOLD", 70)
	if err != nil {
		return nil, err
	}
	concurrency, err := getenvInt("SUMMARY_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	farmID, err := uuid.Parse(getenvWithDefault("FARM_ID", DefaultFarmID))
	if err != nil {
		return nil, fmt.Errorf("FARM_ID must be a UUID: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getenvWithDefault("APP_PORT", "8080"),
			Env:                getenvWithDefault("APP_ENV", "development"),
			LogLevel:           getenvWithDefault("LOG_LEVEL", "info"),
			CORSAllowedOrigins: splitList(getenvWithDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getenvWithDefault("STORE_DRIVER", DriverSQLite)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			MongoURI:    os.Getenv("MONGODB_URI"),
			MongoDBName: getenvWithDefault("MONGODB_DB_NAME", "cropwatch"),
			SQLitePath:  getenvWithDefault("SQLITE_PATH", "cropwatch.db"),
			FarmID:      farmID,
		},
		Scoring: ScoringConfig{
			StressThreshold:    threshold,
			SummaryConcurrency: concurrency,
		},
		Auth: AuthConfig{
			Passcode:      os.Getenv("DEMO_PASSCODE"),
			SessionSecret: os.Getenv("DEMO_SESSION_SECRET"),
			DemoID:        getenvWithDefault("DEMO_ID", "demo-farm-001"),
		},
		Blob: BlobConfig{
			BaseURL: os.Getenv("BLOB_BASE_URL"),
			Token:   os.Getenv("BLOB_TOKEN"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			RecipientID:   os.Getenv("WHATSAPP_REPORT_RECIPIENT"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			ReportRange:     getenvWithDefault("GOOGLE_SHEET_REPORT_RANGE", "ZoneHealth!A:G"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "UTC"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be provided for the postgres driver")
		}
	case DriverMongoDB:
		if c.Store.MongoURI == "" {
			return errors.New("MONGODB_URI must be provided for the mongodb driver")
		}
		if c.Store.MongoDBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.Store.Driver)
	}

	if c.Scoring.StressThreshold < 0 || c.Scoring.StressThreshold > 100 {
		return fmt.Errorf("STRESS_THRESHOLD must be within 0..100, got %d", c.Scoring.StressThreshold)
	}
	if c.Scoring.SummaryConcurrency < 1 {
		return errors.New("SUMMARY_CONCURRENCY must be at least 1")
	}

	switch {
	case c.Auth.Passcode == "":
		return errors.New("DEMO_PASSCODE must be provided")
	case c.Auth.SessionSecret == "":
		return errors.New("DEMO_SESSION_SECRET must be provided")
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided when WHATSAPP_TOKEN is set")
		case c.WhatsApp.RecipientID == "":
			return errors.New("WHATSAPP_REPORT_RECIPIENT must be provided when WHATSAPP_TOKEN is set")
		case c.WhatsApp.BaseURL == "":
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		case c.WhatsApp.APIVersion == "":
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Sheets.Enabled() && c.Sheets.SpreadsheetID == "" {
		return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided when GOOGLE_SHEETS_CREDENTIALS_PATH is set")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
