package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Storage backends for raw logs and reports.
const (
	StorageS3     = "s3"
	StorageFS     = "fs"
	StorageMemory = "memory"
)

// Ledger backends for the blacklist.
const (
	LedgerBlob   = "blob"
	LedgerSQLite = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config captures runtime configuration. Keys keep the environment variable
// names used by earlier deployments of the monitor.
type Config struct {
	Environment string
	HTTPPort    string
	Debug       bool
	LogFile     string

	AWSRegion    string
	AWSAccountID string

	StorageBackend  string
	LocalStorageDir string
	LogsBucket      string
	LogsPrefix      string
	UploadFolder    string
	UploadResults   bool

	LedgerBackend string
	DatabasePath  string

	IPSetName          string
	IPSetScope         string
	BlacklistTTL       time.Duration
	MinRequestsToBlock int
	MaxConflictRetries int

	TopItemsCount         int
	AnalyticsTopCount     int
	AnalyticsReportsCount int
	MaxMessageLength      int

	NotifyURL string

	ChunkSize      int
	MaxConcurrency int
	FailFast       bool

	Schedule        string
	DailyReportTime string
	ReportTimezone  string
}

var defaults = map[string]interface{}{
	"ENV_NAME":  "Production",
	"HTTP_PORT": "8080",
	"LOG_LEVEL": "info",
	"LOG_FILE":  "",

	"AWS_REGION":     "us-east-1",
	"AWS_ACCOUNT_ID": "",

	"STORAGE_BACKEND":                      StorageS3,
	"LOCAL_STORAGE_DIR":                    filepath.Join("data", "blobs"),
	"S3_AWS_WAF_LOGS_BUCKET_NAME":          "",
	"S3_AWS_WAF_LOGS_BUCKET_FOLDER_PREFIX": "WAFLogs/us-east-1/AWSWAFSecurityAutomations/",
	"S3_UPLOAD_FOLDER_NAME":                "",
	"SEND_PROCESSED_DATA_TO_S3":            true,

	"LEDGER_BACKEND": LedgerBlob,
	"DB_PATH":        filepath.Join("data", "wafwatch.db"),

	"AWS_WAF_IPV4_BLACKLIST_NAME":           "AWSWAFBlacklistSetIPV4",
	"AWS_WAF_IPSET_SCOPE":                   "REGIONAL",
	"MAX_TIME_FOR_BLACKLISTING_HOURS":       24,
	"MIN_NUMBER_OF_REQUESTS_FOR_BLOCK_HOUR": 1,
	"IPSET_CONFLICT_RETRIES":                2,

	"TOP_ITEMS_COUNT":             5,
	"ANALYTICS_TOP_RECORDS_COUNT": 5,
	"ANALYTICS_REPORTS_COUNT":     12,
	"MAX_SLACK_MESSAGE_LENGTH":    3000,

	"NOTIFY_URL": "",

	"PIPELINE_CHUNK_SIZE":      500,
	"PIPELINE_MAX_CONCURRENCY": 2,
	"PIPELINE_FAIL_FAST":       false,

	"SCHEDULE_CRON":     "30 * * * *",
	"DAILY_REPORT_TIME": "09:30",
	"REPORT_TIMEZONE":   "Europe/London",
}

// SetDefaults registers every default on v and binds the environment.
func SetDefaults(v *viper.Viper) {
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()
}

// Load builds a Config from v, falling back to defaults so a run can start
// with zero configuration.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	cfg := Config{
		Environment: v.GetString("ENV_NAME"),
		HTTPPort:    v.GetString("HTTP_PORT"),
		Debug:       v.GetString("LOG_LEVEL") == "debug",
		LogFile:     v.GetString("LOG_FILE"),

		AWSRegion:    v.GetString("AWS_REGION"),
		AWSAccountID: v.GetString("AWS_ACCOUNT_ID"),

		StorageBackend:  v.GetString("STORAGE_BACKEND"),
		LocalStorageDir: v.GetString("LOCAL_STORAGE_DIR"),
		LogsBucket:      v.GetString("S3_AWS_WAF_LOGS_BUCKET_NAME"),
		LogsPrefix:      v.GetString("S3_AWS_WAF_LOGS_BUCKET_FOLDER_PREFIX"),
		UploadFolder:    v.GetString("S3_UPLOAD_FOLDER_NAME"),
		UploadResults:   v.GetBool("SEND_PROCESSED_DATA_TO_S3"),

		LedgerBackend: v.GetString("LEDGER_BACKEND"),
		DatabasePath:  v.GetString("DB_PATH"),

		IPSetName:          v.GetString("AWS_WAF_IPV4_BLACKLIST_NAME"),
		IPSetScope:         v.GetString("AWS_WAF_IPSET_SCOPE"),
		BlacklistTTL:       time.Duration(v.GetInt("MAX_TIME_FOR_BLACKLISTING_HOURS")) * time.Hour,
		MinRequestsToBlock: v.GetInt("MIN_NUMBER_OF_REQUESTS_FOR_BLOCK_HOUR"),
		MaxConflictRetries: v.GetInt("IPSET_CONFLICT_RETRIES"),

		TopItemsCount:         v.GetInt("TOP_ITEMS_COUNT"),
		AnalyticsTopCount:     v.GetInt("ANALYTICS_TOP_RECORDS_COUNT"),
		AnalyticsReportsCount: v.GetInt("ANALYTICS_REPORTS_COUNT"),
		MaxMessageLength:      v.GetInt("MAX_SLACK_MESSAGE_LENGTH"),

		NotifyURL: v.GetString("NOTIFY_URL"),

		ChunkSize:      v.GetInt("PIPELINE_CHUNK_SIZE"),
		MaxConcurrency: v.GetInt("PIPELINE_MAX_CONCURRENCY"),
		FailFast:       v.GetBool("PIPELINE_FAIL_FAST"),

		Schedule:        v.GetString("SCHEDULE_CRON"),
		DailyReportTime: v.GetString("DAILY_REPORT_TIME"),
		ReportTimezone:  v.GetString("REPORT_TIMEZONE"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if cfg.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return Config{}, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks numeric bounds and backend names.
func (c Config) Validate() error {
	positive := map[string]int{
		"MAX_TIME_FOR_BLACKLISTING_HOURS": int(c.BlacklistTTL / time.Hour),
		"TOP_ITEMS_COUNT":                 c.TopItemsCount,
		"ANALYTICS_TOP_RECORDS_COUNT":     c.AnalyticsTopCount,
		"ANALYTICS_REPORTS_COUNT":         c.AnalyticsReportsCount,
		"MAX_SLACK_MESSAGE_LENGTH":        c.MaxMessageLength,
		"PIPELINE_CHUNK_SIZE":             c.ChunkSize,
		"PIPELINE_MAX_CONCURRENCY":        c.MaxConcurrency,
	}
	for key, val := range positive {
		if val <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, key, val)
		}
	}
	if c.MinRequestsToBlock < 0 {
		return fmt.Errorf("%w: MIN_NUMBER_OF_REQUESTS_FOR_BLOCK_HOUR must not be negative", ErrInvalidConfig)
	}
	if c.MaxConflictRetries < 0 {
		return fmt.Errorf("%w: IPSET_CONFLICT_RETRIES must not be negative", ErrInvalidConfig)
	}

	switch c.StorageBackend {
	case StorageS3, StorageFS, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown STORAGE_BACKEND %q", ErrInvalidConfig, c.StorageBackend)
	}
	switch c.LedgerBackend {
	case LedgerBlob, LedgerSQLite:
	default:
		return fmt.Errorf("%w: unknown LEDGER_BACKEND %q", ErrInvalidConfig, c.LedgerBackend)
	}
	if c.StorageBackend == StorageS3 && c.LogsBucket == "" {
		return fmt.Errorf("%w: S3_AWS_WAF_LOGS_BUCKET_NAME is required for the s3 backend", ErrInvalidConfig)
	}

	if _, err := time.Parse("15:04", c.DailyReportTime); err != nil {
		return fmt.Errorf("%w: DAILY_REPORT_TIME %q: %v", ErrInvalidConfig, c.DailyReportTime, err)
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("%w: REPORT_TIMEZONE %q: %v", ErrInvalidConfig, c.ReportTimezone, err)
	}
	return nil
}

// Location returns the timezone used to decide daily runs.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
