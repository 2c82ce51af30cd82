package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Exporter defaults, shared by the main config and standalone exporter files.
const (
	DefaultExporterBind = "0.0.0.0"
	DefaultExporterPort = 9661
	DefaultMetricName   = "hashpipe_status_buffer"
	DefaultMetricHelp   = "Hashpipe status buffer field"
)

// Delay bounds in seconds.
const (
	MinDelay     = 0.25
	MaxDelay     = 60.0
	DefaultDelay = 1.0
)

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// Config is the root configuration structure for the hashpipe gateway.
// All configuration is loaded from YAML and can be overridden by environment
// variables and command line flags.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Redis    RedisConfig    `yaml:"redis"`
	Exporter ExporterConfig `yaml:"exporter"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Database DatabaseConfig `yaml:"database"`
	History  HistoryConfig  `yaml:"history"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig describes which status buffers are gatewayed and how.
type GatewayConfig struct {
	Name      string  `yaml:"name"`
	Domain    string  `yaml:"domain"`
	Instances []int   `yaml:"instances"`
	Create    bool    `yaml:"create"`
	Delay     float64 `yaml:"delay"`
	Notify    bool    `yaml:"notify"`
	Expire    bool    `yaml:"expire"`
	StatusDir string  `yaml:"status_dir"`

	// LockTimeout bounds one attempt to lock a status buffer, in milliseconds.
	LockTimeout int `yaml:"lock_timeout_ms"`
}

// RedisConfig contains Redis server connection settings.
type RedisConfig struct {
	Host        string               `yaml:"host"`
	Port        int                  `yaml:"port"`
	Password    string               `yaml:"password"`
	DB          int                  `yaml:"db"`
	DialTimeout int                  `yaml:"dial_timeout"`
	Reconnect   RedisReconnectConfig `yaml:"reconnect"`
}

// RedisReconnectConfig controls the exponential backoff used when the
// server is unreachable. Delays are in seconds; MaxElapsed 0 retries forever.
type RedisReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxElapsed   int `yaml:"max_elapsed"`
}

// ExporterConfig contains the Prometheus exporter settings. When ConfigFile
// is set, the exporter section is read from that file instead.
type ExporterConfig struct {
	Enabled    bool          `yaml:"enabled"`
	ConfigFile string        `yaml:"config_file"`
	Bind       string        `yaml:"bind"`
	Port       int           `yaml:"port"`
	Name       string        `yaml:"name"`
	Help       string        `yaml:"help"`
	Fields     []MetricField `yaml:"fields"`
}

// MetricField selects a status buffer field for export.
type MetricField struct {
	Name   string `yaml:"name"`
	String bool   `yaml:"string"`
}

// MQTTConfig contains MQTT broker settings for the snapshot mirror.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	Measurement   string `yaml:"measurement"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig controls the local snapshot history.
// Interval is in seconds, Retention in hours.
type HistoryConfig struct {
	Enabled   bool `yaml:"enabled"`
	Interval  int  `yaml:"interval"`
	Retention int  `yaml:"retention"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HPGW_SECTION_KEY
// For example: HPGW_REDIS_HOST, HPGW_GATEWAY_NAME
//
// Validation is left to the caller so command line flags can be applied first.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Exporter.ConfigFile != "" {
		if err := cfg.LoadExporter(cfg.Exporter.ConfigFile); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// LoadExporter replaces the exporter section with the contents of a
// standalone exporter file:
//
//	port: 9661
//	name: hashpipe_status_buffer
//	help: Hashpipe status buffer field
//	fields:
//	  - name: RA
//	  - name: SRC_NAME
//	    string: true
//
// Missing keys take the exporter defaults. Loading a file enables the exporter.
func (c *Config) LoadExporter(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return fmt.Errorf("reading exporter config: %w", err)
	}

	exp := defaultExporter()
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return fmt.Errorf("parsing exporter config: %w", err)
	}
	exp.Enabled = true
	exp.ConfigFile = path
	c.Exporter = exp
	return nil
}

func defaultExporter() ExporterConfig {
	return ExporterConfig{
		Bind: DefaultExporterBind,
		Port: DefaultExporterPort,
		Name: DefaultMetricName,
		Help: DefaultMetricHelp,
	}
}

// defaultConfig returns a Config with the gateway's historical defaults.
func defaultConfig() *Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return &Config{
		Gateway: GatewayConfig{
			Name:        hostname,
			Domain:      "hashpipe",
			Instances:   []int{0, 1, 2, 3},
			Delay:       DefaultDelay,
			Expire:      true,
			StatusDir:   "/dev/shm/hashpipe",
			LockTimeout: 250,
		},
		Redis: RedisConfig{
			Host:        "redishost",
			Port:        6379,
			DialTimeout: 5,
			Reconnect: RedisReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     30,
			},
		},
		Exporter: defaultExporter(),
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hpgateway",
			},
			QoS:         0,
			TopicPrefix: "hashpipe",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Measurement:   "hashpipe_status",
			BatchSize:     500,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/hpgateway.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			Interval:  60,
			Retention: 24 * 7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HPGW_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("HPGW_GATEWAY_NAME"); v != "" {
		cfg.Gateway.Name = v
	}
	if v := os.Getenv("HPGW_GATEWAY_DOMAIN"); v != "" {
		cfg.Gateway.Domain = v
	}
	if v := os.Getenv("HPGW_GATEWAY_STATUS_DIR"); v != "" {
		cfg.Gateway.StatusDir = v
	}

	// Redis
	if v := os.Getenv("HPGW_REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("HPGW_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("HPGW_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// MQTT
	if v := os.Getenv("HPGW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HPGW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HPGW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("HPGW_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("HPGW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Logging
	if v := os.Getenv("HPGW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors, reporting all problems at once.
// The gateway delay is clamped into range rather than rejected.
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if c.Gateway.Name == "" {
		errs = append(errs, "gateway.name is required")
	}
	if c.Gateway.Domain == "" {
		errs = append(errs, "gateway.domain is required")
	}
	if strings.Contains(c.Gateway.Name, "/") {
		errs = append(errs, "gateway.name must not contain '/'")
	}
	if len(c.Gateway.Instances) == 0 {
		errs = append(errs, "gateway.instances must list at least one instance")
	}
	for _, id := range c.Gateway.Instances {
		if id < 0 {
			errs = append(errs, fmt.Sprintf("gateway.instances: invalid instance %d", id))
		}
	}
	if c.Gateway.LockTimeout <= 0 {
		errs = append(errs, "gateway.lock_timeout_ms must be positive")
	}
	c.Gateway.Delay = ClampDelay(c.Gateway.Delay)

	// Redis validation
	if c.Redis.Host == "" {
		errs = append(errs, "redis.host is required")
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, "redis.port must be between 1 and 65535")
	}

	// Exporter validation
	if c.Exporter.Enabled {
		if c.Exporter.Port < 0 || c.Exporter.Port > 65535 {
			errs = append(errs, "exporter.port must be between 0 and 65535")
		}
		if !metricNameRE.MatchString(c.Exporter.Name) {
			errs = append(errs, fmt.Sprintf("exporter.name %q is not a valid metric name", c.Exporter.Name))
		}
		for i, f := range c.Exporter.Fields {
			if strings.TrimSpace(f.Name) == "" {
				errs = append(errs, fmt.Sprintf("exporter.fields[%d].name is required", i))
			}
		}
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required")
		}
	}

	// History validation
	if c.History.Enabled {
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required when history is enabled")
		}
		if c.History.Interval < 0 {
			errs = append(errs, "history.interval must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ClampDelay limits a publish delay to [MinDelay, MaxDelay]. NaN becomes DefaultDelay.
func ClampDelay(d float64) float64 {
	switch {
	case d != d:
		return DefaultDelay
	case d < MinDelay:
		return MinDelay
	case d > MaxDelay:
		return MaxDelay
	default:
		return d
	}
}

// RedisAddr returns the host:port address of the Redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ExporterAddr returns the listen address of the metrics exporter.
func (c *Config) ExporterAddr() string {
	return fmt.Sprintf("%s:%d", c.Exporter.Bind, c.Exporter.Port)
}

// GetLockTimeout returns the status buffer lock timeout as a Duration.
func (c *Config) GetLockTimeout() time.Duration {
	return time.Duration(c.Gateway.LockTimeout) * time.Millisecond
}

// GetHistoryInterval returns the minimum spacing of history records.
func (c *Config) GetHistoryInterval() time.Duration {
	return time.Duration(c.History.Interval) * time.Second
}

// GetHistoryRetention returns how long history records are kept.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.History.Retention) * time.Hour
}
