package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type FirestoreConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type MatcherConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// ProtocolConfig carries every tunable of the verification protocol so the
// session loop, the pipeline and the tests share one source of truth.
type ProtocolConfig struct {
	RefreshIntervalSeconds    int     `mapstructure:"refresh_interval_seconds"`
	GraceMillis               int     `mapstructure:"grace_millis"`
	MaxPresenterDriftMeters   float64 `mapstructure:"max_presenter_drift_meters"`
	MaxAttendeeDistanceMeters float64 `mapstructure:"max_attendee_distance_meters"`
	AcceptThreshold           float64 `mapstructure:"accept_threshold"`
	RetryThreshold            float64 `mapstructure:"retry_threshold"`
	DefaultDurationMinutes    int     `mapstructure:"default_duration_minutes"`
	PurgeBatchSize            int     `mapstructure:"purge_batch_size"`
}

// RefreshInterval is the token rotation period.
func (p ProtocolConfig) RefreshInterval() time.Duration {
	return time.Duration(p.RefreshIntervalSeconds) * time.Second
}

// Grace is the clock/network skew allowance added to the freshness window.
func (p ProtocolConfig) Grace() time.Duration {
	return time.Duration(p.GraceMillis) * time.Millisecond
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
}

// Load reads configuration from the given yaml file, falling back to
// config.yaml in the working directory. Every key has a default so a missing
// file is not fatal; environment variables prefixed with ATT override both.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ATT")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 6969)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.path", "./fingerprints.db")

	v.SetDefault("matcher.timeout_seconds", 15)

	v.SetDefault("protocol.refresh_interval_seconds", 10)
	v.SetDefault("protocol.grace_millis", 1500)
	v.SetDefault("protocol.max_presenter_drift_meters", 100)
	v.SetDefault("protocol.max_attendee_distance_meters", 100)
	v.SetDefault("protocol.accept_threshold", 0.90)
	v.SetDefault("protocol.retry_threshold", 0.75)
	v.SetDefault("protocol.default_duration_minutes", 60)
	v.SetDefault("protocol.purge_batch_size", 500)
}
