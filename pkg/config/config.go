package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for both attendance daemons
type Config struct {
	Database DatabaseConfig
	Devices  DeviceConfig
	Cleanup  CleanupConfig
	RabbitMQ RabbitMQConfig
	Ops      OpsConfig
	Log      LogConfig

	// Warnings collects non-fatal config problems (e.g. a malformed
	// ATTENDANCE_TZ_OFFSET) for the caller to log after the logger exists.
	Warnings []string `mapstructure:"-"`
}

// DatabaseConfig holds the SQL Server connection configuration
type DatabaseConfig struct {
	Server   string `mapstructure:"server" validate:"required"`
	Database string `mapstructure:"database" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	// Driver is the preferred database/sql driver name. Kept for parity
	// with the MSSQL_ODBC_DRIVER knob; unknown names fall back to the
	// first registered SQL Server driver.
	Driver         string        `mapstructure:"driver"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DeviceConfig holds the terminal fleet configuration
type DeviceConfig struct {
	// IPs is the terminal inventory. Defaults to the plant's static list.
	IPs            []string      `mapstructure:"ips"`
	Port           int           `mapstructure:"port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	// TZOffsetHours is added to raw device timestamps.
	TZOffsetHours int `mapstructure:"tz_offset_hours"`
}

// CleanupConfig holds the janitor configuration
type CleanupConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	ThresholdHours  int `mapstructure:"threshold_hours"`
}

// RabbitMQConfig holds the optional event publishing configuration.
// Publishing is disabled when URL is empty.
type RabbitMQConfig struct {
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// OpsConfig holds the read-only HTTP surface configuration
type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// defaultDeviceIPs is the static terminal inventory carried over from the
// plant deployment, used when ZK_DEVICES is not set.
var defaultDeviceIPs = []string{
	"192.168.3.246", "192.168.3.227", "192.168.3.231", "192.168.3.229",
	"192.168.3.243", "192.168.3.232", "192.168.3.238", "192.168.3.244",
	"192.168.3.218", "192.168.3.225", "192.168.3.241", "192.168.3.249",
	"192.168.3.251", "192.168.3.213", "192.168.3.222", "192.168.3.239",
	"192.168.3.233", "192.168.3.221", "192.168.3.226", "192.168.3.247",
	"192.168.3.245", "192.168.3.248",
}

// envBindings maps config keys to the exact environment variable names the
// deployment already uses.
var envBindings = map[string]string{
	"database.server":         "MSSQL_SERVER",
	"database.database":       "MSSQL_DATABASE",
	"database.user":           "MSSQL_USER",
	"database.password":       "MSSQL_PASSWORD",
	"database.driver":         "MSSQL_ODBC_DRIVER",
	"devices.port":            "ZK_PORT",
	"devices.connect_timeout": "ZK_CONNECT_TIMEOUT",
	"devices.poll_interval":   "ZK_POLL_INTERVAL",
	"cleanup.interval_seconds": "CLEANUP_INTERVAL_SECONDS",
	"cleanup.threshold_hours":  "CLEANUP_THRESHOLD_HOURS",
	"rabbitmq.url":             "RABBITMQ_URL",
	"ops.addr":                 "OPS_ADDR",
	"log.level":                "LOG_LEVEL",
	"log.pretty":               "LOG_PRETTY",
}

// Load loads configuration from the environment. serviceName selects
// per-daemon defaults (ops bind address).
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	setDefaults(v, serviceName)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// ZK_DEVICES is a comma-separated list; parsed by hand so blanks and
	// duplicates are tolerated the way the old inventory loader was.
	if raw := v.GetString("devices.raw_ips"); raw != "" {
		cfg.Devices.IPs = splitDeviceList(raw)
	}
	if len(cfg.Devices.IPs) == 0 {
		cfg.Devices.IPs = append([]string(nil), defaultDeviceIPs...)
	}

	// ATTENDANCE_TZ_OFFSET: invalid values are reported and treated as 0.
	if raw := v.GetString("devices.raw_tz_offset"); raw != "" {
		offset, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("invalid ATTENDANCE_TZ_OFFSET %q, using 0", raw))
		} else {
			cfg.Devices.TZOffsetHours = offset
		}
	}

	return &cfg, nil
}

// Validate checks that required configuration is present. Both daemons call
// this at startup and treat failure as fatal.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		missing := make([]string, 0, 4)
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				missing = append(missing, envNameForField(fe.StructField()))
			}
			return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
		}
		return err
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = verrs
	return true
}

func envNameForField(field string) string {
	switch field {
	case "Server":
		return "MSSQL_SERVER"
	case "Database":
		return "MSSQL_DATABASE"
	case "User":
		return "MSSQL_USER"
	case "Password":
		return "MSSQL_PASSWORD"
	default:
		return field
	}
}

func splitDeviceList(raw string) []string {
	seen := make(map[string]struct{})
	var ips []string
	for _, part := range strings.Split(raw, ",") {
		ip := strings.TrimSpace(part)
		if ip == "" {
			continue
		}
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		ips = append(ips, ip)
	}
	return ips
}

func setDefaults(v *viper.Viper, serviceName string) {
	v.SetDefault("database.driver", "")
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("devices.port", 4370)
	v.SetDefault("devices.connect_timeout", 10*time.Second)
	v.SetDefault("devices.poll_interval", 5*time.Second)
	v.SetDefault("devices.tz_offset_hours", 0)
	v.SetDefault("devices.raw_ips", "")
	v.SetDefault("devices.raw_tz_offset", "")
	v.BindEnv("devices.raw_ips", "ZK_DEVICES")
	v.BindEnv("devices.raw_tz_offset", "ATTENDANCE_TZ_OFFSET")

	v.SetDefault("cleanup.interval_seconds", 14400)
	v.SetDefault("cleanup.threshold_hours", 16)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.reconnect_delay", 5*time.Second)
	v.SetDefault("rabbitmq.max_retries", 5)

	v.SetDefault("ops.addr", getDefaultOpsAddr(serviceName))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func getDefaultOpsAddr(serviceName string) string {
	addrs := map[string]string{
		"attendance-listener": ":8710",
		"attendance-janitor":  ":8711",
	}
	if addr, ok := addrs[serviceName]; ok {
		return addr
	}
	return ":8710"
}
