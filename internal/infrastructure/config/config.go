package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Section names in the config document.
const (
	SectionDevices   = "devices"
	SectionCommands  = "commands"
	SectionMQTT      = "mqtt"
	SectionLogging   = "logging"
	SectionBroadlink = "broadlink"
	SectionDatabase  = "database"
	SectionInfluxDB  = "influxdb"
	SectionMetrics   = "metrics"
)

// DefaultPath is where the config file lives unless M2B_CONFIG says otherwise.
const DefaultPath = "./data/config.ini"

// Config is the typed view of the bridge settings.
// Devices and commands are not part of it; they live in the Document and
// are managed through the command store.
type Config struct {
	MQTT      MQTTConfig
	Logging   LoggingConfig
	Broadlink BroadlinkConfig
	Database  DatabaseConfig
	InfluxDB  InfluxDBConfig
	Metrics   MetricsConfig

	doc *Document
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	ClientID string
	QoS      int

	// Prefix is prepended to every subscribed topic. Always ends in "/".
	Prefix string

	// ConnectAttempts bounds the initial connection loop.
	ConnectAttempts int

	// RetryInterval is the fixed wait between connection attempts.
	RetryInterval time.Duration
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// BroadlinkConfig contains transceiver transport settings.
type BroadlinkConfig struct {
	Timeout time.Duration
	LocalIP string
}

// DatabaseConfig contains settings for the SQLite command journal.
type DatabaseConfig struct {
	Enabled     bool
	Path        string
	WALMode     bool
	BusyTimeout int

	// Retention prunes entries older than this at startup. Zero keeps all.
	Retention time.Duration
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     int
	FlushInterval int
}

// MetricsConfig controls the HTTP status server, which serves /metrics
// alongside health and read-only inventory endpoints.
type MetricsConfig struct {
	Enabled bool
	Listen  string
}

// Load reads the config file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values (INI, or YAML for .yaml/.yml paths)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: M2B_SECTION_KEY
// For example: M2B_MQTT_HOST, M2B_LOGGING_LEVEL
//
// A missing file is not an error: the defaults apply and the file is
// created by the first inventory change.
//
// Parameters:
//   - path: Path to the config file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// FromDocument builds a validated Config from an already loaded document.
func FromDocument(doc *Document) (*Config, error) {
	cfg := defaultConfig()
	cfg.doc = doc

	if err := cfg.decode(doc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.MQTT.Prefix = NormalisePrefix(cfg.MQTT.Prefix)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Document returns the backing document.
func (c *Config) Document() *Document {
	return c.doc
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Host:            "localhost",
			Port:            1883,
			ClientID:        "m2b",
			QoS:             1,
			Prefix:          "m2b/",
			ConnectAttempts: 10,
			RetryInterval:   5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Broadlink: BroadlinkConfig{
			Timeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/m2b.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Listen: ":9120",
		},
	}
}

// decode overlays document values onto the defaults.
func (c *Config) decode(doc *Document) error {
	r := reader{doc: doc}

	r.str(SectionMQTT, "host", &c.MQTT.Host)
	r.integer(SectionMQTT, "port", &c.MQTT.Port)
	r.str(SectionMQTT, "user", &c.MQTT.Username)
	r.str(SectionMQTT, "pass", &c.MQTT.Password)
	r.boolean(SectionMQTT, "tls", &c.MQTT.TLS)
	r.str(SectionMQTT, "client_id", &c.MQTT.ClientID)
	r.integer(SectionMQTT, "qos", &c.MQTT.QoS)
	r.str(SectionMQTT, "prefix", &c.MQTT.Prefix)
	r.integer(SectionMQTT, "connect_attempts", &c.MQTT.ConnectAttempts)
	r.duration(SectionMQTT, "retry_interval", &c.MQTT.RetryInterval)

	r.str(SectionLogging, "level", &c.Logging.Level)
	r.str(SectionLogging, "format", &c.Logging.Format)
	r.str(SectionLogging, "output", &c.Logging.Output)

	r.duration(SectionBroadlink, "timeout", &c.Broadlink.Timeout)
	r.str(SectionBroadlink, "local_ip", &c.Broadlink.LocalIP)

	r.boolean(SectionDatabase, "enabled", &c.Database.Enabled)
	r.str(SectionDatabase, "path", &c.Database.Path)
	r.boolean(SectionDatabase, "wal_mode", &c.Database.WALMode)
	r.integer(SectionDatabase, "busy_timeout", &c.Database.BusyTimeout)
	r.duration(SectionDatabase, "retention", &c.Database.Retention)

	r.boolean(SectionInfluxDB, "enabled", &c.InfluxDB.Enabled)
	r.str(SectionInfluxDB, "url", &c.InfluxDB.URL)
	r.str(SectionInfluxDB, "token", &c.InfluxDB.Token)
	r.str(SectionInfluxDB, "org", &c.InfluxDB.Org)
	r.str(SectionInfluxDB, "bucket", &c.InfluxDB.Bucket)
	r.integer(SectionInfluxDB, "batch_size", &c.InfluxDB.BatchSize)
	r.integer(SectionInfluxDB, "flush_interval", &c.InfluxDB.FlushInterval)

	r.boolean(SectionMetrics, "enabled", &c.Metrics.Enabled)
	r.str(SectionMetrics, "listen", &c.Metrics.Listen)

	return r.err()
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: M2B_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("M2B_MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("M2B_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Port = port
		}
	}
	if v := os.Getenv("M2B_MQTT_USER"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("M2B_MQTT_PASS"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("M2B_MQTT_PREFIX"); v != "" {
		cfg.MQTT.Prefix = v
	}

	// Logging
	if v := os.Getenv("M2B_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Broadlink
	if v := os.Getenv("M2B_BROADLINK_LOCAL_IP"); v != "" {
		cfg.Broadlink.LocalIP = v
	}

	// Database
	if v := os.Getenv("M2B_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("M2B_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Metrics
	if v := os.Getenv("M2B_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Host == "" {
		errs = append(errs, "mqtt.host is required")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		errs = append(errs, "mqtt.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if strings.ContainsAny(c.MQTT.Prefix, "+#") {
		errs = append(errs, "mqtt.prefix must not contain wildcards")
	}
	if c.MQTT.ConnectAttempts < 1 {
		errs = append(errs, "mqtt.connect_attempts must be at least 1")
	}
	if c.MQTT.RetryInterval < 0 {
		errs = append(errs, "mqtt.retry_interval must not be negative")
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "critical":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not a known level", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	// Broadlink validation
	if c.Broadlink.Timeout <= 0 {
		errs = append(errs, "broadlink.timeout must be positive")
	}

	// Optional sinks
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}
	if c.Database.Retention < 0 {
		errs = append(errs, "database.retention must not be negative")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// NormalisePrefix ensures a non-empty topic prefix ends with "/".
func NormalisePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// reader decodes typed values from a document, collecting every error.
type reader struct {
	doc  *Document
	errs []string
}

func (r *reader) str(sec, key string, dst *string) {
	if v, ok := r.doc.Get(sec, key); ok {
		*dst = v
	}
}

func (r *reader) integer(sec, key string, dst *int) {
	v, ok := r.doc.Get(sec, key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s.%s: %q is not an integer", sec, key, v))
		return
	}
	*dst = n
}

func (r *reader) boolean(sec, key string, dst *bool) {
	v, ok := r.doc.Get(sec, key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "yes", "true", "on":
		*dst = true
	case "0", "no", "false", "off":
		*dst = false
	default:
		r.errs = append(r.errs, fmt.Sprintf("%s.%s: %q is not a boolean", sec, key, v))
	}
}

// duration accepts Go durations ("1.5s") or plain seconds ("5").
func (r *reader) duration(sec, key string, dst *time.Duration) {
	v, ok := r.doc.Get(sec, key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s.%s: %q is not a duration", sec, key, v))
		return
	}
	*dst = d
}

func (r *reader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(r.errs, "; "))
}
