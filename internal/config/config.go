package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Vapi    VapiConfig
	Monitor MonitorConfig
	Bulk    BulkConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. When Host is empty the process runs without Redis
// and the bulk dispatch concurrency cap is not enforced.
type RedisConfig struct {
	Host string
	Port int
}

type VapiConfig struct {
	BaseURL          string
	APIKey           string
	DispatchTimeout  time.Duration
	RecordingTimeout time.Duration
}

type MonitorConfig struct {
	PollInterval   time.Duration
	TrackingWindow time.Duration
	SweepSchedule  string
}

type BulkConfig struct {
	ConcurrencyLimit int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	if c.DB.SSLMode == "" && c.App.Env != "production" {
		// Local-friendly default; production must be explicit.
		c.DB.SSLMode = "disable"
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Vapi.BaseURL = strings.TrimSpace(os.Getenv("VAPI_BASE_URL"))
	if c.Vapi.BaseURL == "" {
		c.Vapi.BaseURL = "https://api.vapi.ai"
	}
	c.Vapi.APIKey = os.Getenv("VAPI_API_KEY")
	// Duration env vars are optional; defaults applied below.
	c.Vapi.DispatchTimeout = mustDuration("VAPI_DISPATCH_TIMEOUT")
	if c.Vapi.DispatchTimeout <= 0 {
		c.Vapi.DispatchTimeout = 30 * time.Second
	}
	c.Vapi.RecordingTimeout = mustDuration("VAPI_RECORDING_TIMEOUT")
	if c.Vapi.RecordingTimeout <= 0 {
		c.Vapi.RecordingTimeout = 60 * time.Second
	}

	c.Monitor.PollInterval = mustDuration("MONITOR_POLL_INTERVAL")
	if c.Monitor.PollInterval <= 0 {
		c.Monitor.PollInterval = 5 * time.Second
	}
	c.Monitor.TrackingWindow = mustDuration("MONITOR_TRACKING_WINDOW")
	if c.Monitor.TrackingWindow <= 0 {
		c.Monitor.TrackingWindow = 5 * time.Minute
	}
	c.Monitor.SweepSchedule = strings.TrimSpace(os.Getenv("MONITOR_SWEEP_CRON"))
	if c.Monitor.SweepSchedule == "" {
		c.Monitor.SweepSchedule = "*/10 * * * *"
	}

	if v := strings.TrimSpace(os.Getenv("BULK_CONCURRENCY_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("BULK_CONCURRENCY_LIMIT must be an integer, got %q", v))
		}
		c.Bulk.ConcurrencyLimit = n
	}
	if c.Bulk.ConcurrencyLimit <= 0 {
		c.Bulk.ConcurrencyLimit = 3
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	} else if !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host != "" {
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}

	if c.Vapi.APIKey == "" {
		errs = append(errs, errors.New("VAPI_API_KEY is required"))
	}
	if !strings.HasPrefix(c.Vapi.BaseURL, "http://") && !strings.HasPrefix(c.Vapi.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("VAPI_BASE_URL must be an http(s) URL, got %q", c.Vapi.BaseURL))
	}

	if c.Monitor.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("MONITOR_POLL_INTERVAL must be at least 1s, got %s", c.Monitor.PollInterval))
	}
	if c.Monitor.TrackingWindow < c.Monitor.PollInterval {
		errs = append(errs, errors.New("MONITOR_TRACKING_WINDOW must be greater than MONITOR_POLL_INTERVAL"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HasRedis() bool {
	return c.Redis.Host != ""
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
