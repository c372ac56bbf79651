package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/dustctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix   = "DUSTCTL"
	DefaultConfigPath  = "/etc/dustctl.toml"
	DefaultLogLevel    = "info"
	DefaultProfileName = "default"

	defaultExtractionLimit        = 0.3
	defaultAutoModeTime           = 60 * time.Second
	defaultSampleInterval         = 3 * time.Second
	defaultTrailingSampleInterval = 1 * time.Second
	defaultMaxStaleness           = 10 * time.Second
	defaultMaxRetries             = 5
	defaultRetryDelay             = 1 * time.Second
	defaultModeRetryDelay         = 200 * time.Millisecond
	defaultAnalyticsDB            = "/var/lib/dustctl/analytics.db"
	defaultBroker                 = "tcp://localhost:1883"
	defaultClientID               = "dustctl"
	defaultTopicPrefix            = "mrbeam"
	defaultCommandTimeout         = 2 * time.Second
)

type Config struct {
	Profile                string                 `mapstructure:"profile"`
	Profiles               map[string]DustProfile `mapstructure:"profiles"`
	SampleInterval         time.Duration          `mapstructure:"sample_interval"`
	TrailingSampleInterval time.Duration          `mapstructure:"trailing_sample_interval"`
	MaxStaleness           time.Duration          `mapstructure:"max_staleness"`
	MaxRetries             int                    `mapstructure:"max_retries"`
	RetryDelay             time.Duration          `mapstructure:"retry_delay"`
	ModeRetryDelay         time.Duration          `mapstructure:"mode_retry_delay"`
	LogLevel               string                 `mapstructure:"log_level"`
	PIDFile                string                 `mapstructure:"pid_file"`
	Analytics              AnalyticsConfig        `mapstructure:"analytics"`
	MQTT                   MQTTConfig             `mapstructure:"mqtt"`
}

type AnalyticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	if !o.argsSet && len(os.Args) > 1 {
		o.args = os.Args[1:]
	}

	v := viper.New()
	setDefaults(v)

	// Define flags
	flags := pflag.NewFlagSet("dustctl", pflag.ContinueOnError)
	flags.String("config", "", "Path to the configuration file")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.String("profile", DefaultProfileName, "Active device profile")
	flags.Duration("sample-interval", defaultSampleInterval, "Interval between dust value requests")
	flags.Int("max-retries", defaultMaxRetries, "Attempts per fan command")
	flags.String("mqtt-broker", defaultBroker, "MQTT broker address")
	flags.String("analytics-db", defaultAnalyticsDB, "Path to the analytics database")

	if err := flags.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	flagKeys := map[string]string{
		"log-level":       "log_level",
		"profile":         "profile",
		"sample-interval": "sample_interval",
		"max-retries":     "max_retries",
		"mqtt-broker":     "mqtt.broker",
		"analytics-db":    "analytics.db_path",
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	// Environment overrides, e.g. DUSTCTL_MQTT_BROKER
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := o.configPath
	if configPath == "" {
		configPath, _ = flags.GetString("config")
	}
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	// Load configuration from file
	v.SetConfigType("toml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(filepath.Base(DefaultConfigPath), ".toml"))
		v.AddConfigPath(filepath.Dir(DefaultConfigPath))
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if _, ok := config.Profiles[DefaultProfileName]; !ok {
		if config.Profiles == nil {
			config.Profiles = make(map[string]DustProfile)
		}
		config.Profiles[DefaultProfileName] = DustProfile{
			ExtractionLimit: defaultExtractionLimit,
			AutoModeTime:    defaultAutoModeTime,
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", DefaultProfileName)
	v.SetDefault("sample_interval", defaultSampleInterval)
	v.SetDefault("trailing_sample_interval", defaultTrailingSampleInterval)
	v.SetDefault("max_staleness", defaultMaxStaleness)
	v.SetDefault("max_retries", defaultMaxRetries)
	v.SetDefault("retry_delay", defaultRetryDelay)
	v.SetDefault("mode_retry_delay", defaultModeRetryDelay)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("pid_file", filepath.Join(os.TempDir(), "dustctl.pid"))
	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.db_path", defaultAnalyticsDB)
	v.SetDefault("mqtt.broker", defaultBroker)
	v.SetDefault("mqtt.client_id", defaultClientID)
	v.SetDefault("mqtt.topic_prefix", defaultTopicPrefix)
	v.SetDefault("mqtt.command_timeout", defaultCommandTimeout)
}

// Validate checks ranges and references. It returns an errors.Error whose
// data is the first ValidationError found.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, &validationError{
			field: "log_level", value: c.LogLevel, reason: "must be debug, info, warning or error",
		})
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"sample_interval", c.SampleInterval},
		{"trailing_sample_interval", c.TrailingSampleInterval},
		{"max_staleness", c.MaxStaleness},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return errFactory.WithData(errors.ErrInvalidInterval, &validationError{
				field: d.field, value: d.value, reason: "must be positive",
			})
		}
	}

	delays := []struct {
		field string
		value time.Duration
	}{
		{"retry_delay", c.RetryDelay},
		{"mode_retry_delay", c.ModeRetryDelay},
	}
	for _, d := range delays {
		if d.value < 0 {
			return errFactory.WithData(errors.ErrInvalidInterval, &validationError{
				field: d.field, value: d.value, reason: "must not be negative",
			})
		}
	}

	if c.MaxRetries < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, &validationError{
			field: "max_retries", value: c.MaxRetries, reason: "must be at least 1",
		})
	}

	profile, ok := c.Profiles[c.Profile]
	if !ok {
		return errFactory.WithData(errors.ErrUnknownProfile, &validationError{
			field: "profile", value: c.Profile, reason: "no such profile",
		})
	}
	if profile.ExtractionLimit < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, &validationError{
			field: "profiles." + c.Profile + ".extraction_limit", value: profile.ExtractionLimit, reason: "must not be negative",
		})
	}
	if profile.AutoModeTime < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, &validationError{
			field: "profiles." + c.Profile + ".auto_mode_time", value: profile.AutoModeTime, reason: "must not be negative",
		})
	}

	if c.Analytics.Enabled && c.Analytics.DBPath == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, &validationError{
			field: "analytics.db_path", value: "", reason: "required when analytics is enabled",
		})
	}

	return nil
}

// ActiveProfile implements ProfileSource.
func (c *Config) ActiveProfile() (DustProfile, error) {
	if p, ok := c.Profiles[c.Profile]; ok {
		return p, nil
	}
	if p, ok := c.Profiles[DefaultProfileName]; ok {
		return p, nil
	}
	return DustProfile{}, errors.New().WithData(errors.ErrUnknownProfile, c.Profile)
}
