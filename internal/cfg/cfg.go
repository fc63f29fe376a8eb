package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
)

// Store backends selectable with -store.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds application settings. Fields are bound to flags by
// RegisterFlags and may be overridden from the environment.
type Config struct {
	DrainSeconds           int
	ShutdownBudgetSeconds  int
	APIPort                int
	Store                  string
	DataDir                string
	SQLitePath             string
	DatabaseURL            string
	APIToken               string
	SlackWebhookURL        string
	DetectorEndpoint       string
	AnalyzerTimeoutSeconds int
	MaxUploadMB            int
	MaxImagePixels         int
	CORSOrigin             string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 20, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 30, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.Store, "store", StoreFile, "registry storage backend (memory|file|sqlite|postgres)")
	fs.StringVar(&c.DataDir, "data-dir", "data", "directory for JSON snapshots when -store=file")
	fs.StringVar(&c.SQLitePath, "sqlite-path", "trackwatch.db", "database file when -store=sqlite")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL when -store=postgres")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for mutating routes (empty = open)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for driver notifications")
	fs.StringVar(&c.DetectorEndpoint, "detector-endpoint", "", "person detector URL for thermal analysis (empty = degraded)")
	fs.IntVar(&c.AnalyzerTimeoutSeconds, "analyzer-timeout-seconds", 30, "per-analyzer time limit (1..600)")
	fs.IntVar(&c.MaxUploadMB, "max-upload-mb", 32, "maximum media upload size in MiB (1..1024)")
	fs.IntVar(&c.MaxImagePixels, "max-image-pixels", 25_000_000, "largest thermal frame accepted, width*height (1..1000000000)")
	fs.StringVar(&c.CORSOrigin, "cors-origin", "", "allowed browser origin for the API and live feed (empty = same origin, * = any)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Each backend needs its own location
	switch c.Store {
	case StoreMemory:
	case StoreFile:
		if c.DataDir == "" {
			errs = append(errs, errors.New("DATA_DIR is required when STORE=file"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORE=sqlite"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORE %q (must be memory, file, sqlite or postgres)", c.Store))
	}

	if c.DetectorEndpoint != "" {
		if err := validHTTPURL(c.DetectorEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("invalid DETECTOR_ENDPOINT: %w", err))
		}
	}
	if c.SlackWebhookURL != "" {
		if err := validHTTPURL(c.SlackWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid SLACK_WEBHOOK_URL: %w", err))
		}
	}

	if c.AnalyzerTimeoutSeconds <= 0 || c.AnalyzerTimeoutSeconds > 600 {
		errs = append(errs, fmt.Errorf("invalid ANALYZER_TIMEOUT_SECONDS %d (must be 1..600)", c.AnalyzerTimeoutSeconds))
	}
	if c.MaxUploadMB <= 0 || c.MaxUploadMB > 1024 {
		errs = append(errs, fmt.Errorf("invalid MAX_UPLOAD_MB %d (must be 1..1024)", c.MaxUploadMB))
	}
	if c.MaxImagePixels <= 0 || c.MaxImagePixels > 1_000_000_000 {
		errs = append(errs, fmt.Errorf("invalid MAX_IMAGE_PIXELS %d (must be 1..1000000000)", c.MaxImagePixels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
