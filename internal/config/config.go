// Package config loads application configuration from flags, an optional
// YAML file and GEOTRACK_ environment variables, in increasing precedence
// of file < env < flag.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// EnvPrefix prefixes every environment variable Load reads.
const EnvPrefix = "GEOTRACK"

// Location source names.
const (
	SourceStatic = "static"
	SourceMQTT   = "mqtt"
)

// Config holds the daemon configuration.
type Config struct {
	ListenAddr    string         `mapstructure:"listen_addr" validate:"required"`
	DBPath        string         `mapstructure:"db_path" validate:"required"`
	ShutdownGrace time.Duration  `mapstructure:"shutdown_grace"`
	DeviceID      string         `mapstructure:"device_id"`
	StoragePath   string         `mapstructure:"storage_path" validate:"required"`
	Log           LogConfig      `mapstructure:"log"`
	Metrics       MetricsConfig  `mapstructure:"metrics"`
	Location      LocationConfig `mapstructure:"location"`
	Schedule      ScheduleSeed   `mapstructure:"schedule"`

	// Set from flags only.
	ConfigFile string `mapstructure:"-"`
	PrintToken bool   `mapstructure:"-"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required|in:debug,info,warn,error"`
	Format string `mapstructure:"format" validate:"required|in:text,json"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LocationConfig selects and configures the location source.
type LocationConfig struct {
	Source string       `mapstructure:"source" validate:"required|in:static,mqtt"`
	Static StaticConfig `mapstructure:"static"`
	MQTT   MQTTConfig   `mapstructure:"mqtt"`
}

// StaticConfig holds the fixed coordinates of the static source.
type StaticConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// MQTTConfig addresses the broker publishing fixes.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

// ScheduleSeed holds optional schedule values written to the settings store
// at startup. Empty fields leave the stored value alone.
type ScheduleSeed struct {
	Days     string        `mapstructure:"days"`
	Start    string        `mapstructure:"start"`
	End      string        `mapstructure:"end"`
	Interval time.Duration `mapstructure:"interval"`
}

var defaults = map[string]any{
	"listen_addr":               "0.0.0.0:9999",
	"db_path":                   "geotrack.db",
	"shutdown_grace":            "2s",
	"device_id":                 "",
	"storage_path":              "/",
	"log.level":                 "info",
	"log.format":                "text",
	"metrics.enabled":           true,
	"location.source":           SourceStatic,
	"location.static.latitude":  0.0,
	"location.static.longitude": 0.0,
	"location.mqtt.broker":      "",
	"location.mqtt.topic":       "geotrack/fix",
	"location.mqtt.client_id":   "geotrack",
	"schedule.days":             "",
	"schedule.start":            "",
	"schedule.end":              "",
	"schedule.interval":         "0s",
}

// Load parses args (without the program name) and returns a validated Config.
// pflag.ErrHelp is returned unchanged when -h or --help is given.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("geotrackd", pflag.ContinueOnError)
	configFile := fs.StringP("config", "c", "", "path to a YAML config file")
	printToken := fs.Bool("print-token", false, "print the API bearer token and exit")
	fs.String("listen-addr", "", "HTTP listen address (overrides listen_addr)")
	fs.String("db-path", "", "SQLite database path (overrides db_path)")
	fs.String("log-level", "", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("parse flags: %w: %w", model.ErrConfig, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"listen_addr": "listen-addr",
		"db_path":     "db-path",
		"log.level":   "log-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w: %w", *configFile, model.ErrConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w: %w", model.ErrConfig, err)
	}
	cfg.ConfigFile = *configFile
	cfg.PrintToken = *printToken

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and cross-field constraints.
func (c *Config) Validate() error {
	for _, section := range []any{c, &c.Log, &c.Location} {
		v := validate.Struct(section)
		if !v.Validate() {
			return fmt.Errorf("invalid config: %w: %s", model.ErrConfig, v.Errors.One())
		}
	}

	var errs []error
	if c.ShutdownGrace <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_grace must be positive, got %s", c.ShutdownGrace))
	}
	if c.Location.Source == SourceStatic {
		if lat := c.Location.Static.Latitude; lat < -90 || lat > 90 {
			errs = append(errs, fmt.Errorf("location.static.latitude %f out of range", lat))
		}
		if lon := c.Location.Static.Longitude; lon < -180 || lon > 180 {
			errs = append(errs, fmt.Errorf("location.static.longitude %f out of range", lon))
		}
	}
	if c.Location.Source == SourceMQTT {
		if c.Location.MQTT.Broker == "" {
			errs = append(errs, errors.New("location.mqtt.broker is required for the mqtt source"))
		}
		if c.Location.MQTT.Topic == "" {
			errs = append(errs, errors.New("location.mqtt.topic is required for the mqtt source"))
		}
	}
	if _, _, err := c.Schedule.Apply(model.DefaultScheduleConfig()); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w: %w", model.ErrConfig, err)
	}
	return nil
}

// LocalAddr returns ListenAddr with a wildcard host replaced by loopback, the
// address a process on the same host dials to reach the API.
func (c *Config) LocalAddr() string {
	host, port, err := net.SplitHostPort(c.ListenAddr)
	if err != nil {
		return c.ListenAddr
	}
	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::":
		host = "::1"
	}
	return net.JoinHostPort(host, port)
}

// Apply overlays the seed on base. It reports whether any field was set.
func (s ScheduleSeed) Apply(base model.ScheduleConfig) (model.ScheduleConfig, bool, error) {
	cfg := base
	changed := false

	if s.Days != "" {
		days, err := model.ParseWeekdays(s.Days)
		if err != nil {
			return base, false, fmt.Errorf("schedule.days: %w", err)
		}
		cfg.ActiveDays = days
		changed = true
	}
	if s.Start != "" {
		h, m, err := model.ParseClock(s.Start)
		if err != nil {
			return base, false, fmt.Errorf("schedule.start: %w", err)
		}
		cfg.StartHour, cfg.StartMinute = h, m
		changed = true
	}
	if s.End != "" {
		h, m, err := model.ParseClock(s.End)
		if err != nil {
			return base, false, fmt.Errorf("schedule.end: %w", err)
		}
		cfg.EndHour, cfg.EndMinute = h, m
		changed = true
	}
	if s.Interval != 0 {
		if s.Interval < time.Second || s.Interval%time.Second != 0 {
			return base, false, fmt.Errorf("schedule.interval must be a whole number of seconds, got %s", s.Interval)
		}
		cfg.IntervalSeconds = int(s.Interval / time.Second)
		changed = true
	}

	if err := cfg.Validate(); err != nil {
		return base, false, err
	}
	return cfg, changed, nil
}
