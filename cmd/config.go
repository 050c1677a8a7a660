package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"freight/internal/core/application/consensus"
	"freight/internal/pkg/logger"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const envPrefix = "freight"

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    logger.Config    `mapstructure:"logging"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Broadcast  BroadcastConfig  `mapstructure:"broadcast"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	Debug           bool          `mapstructure:"debug"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN is the libpq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// KafkaConfig enables the Kafka event publisher when Brokers is set.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RabbitMQConfig enables the audit recorder when URL is set.
type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type ComplianceConfig struct {
	PolicyPath string `mapstructure:"policy_path"`
}

type OracleConfig struct {
	consensus.Config `mapstructure:",squash"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
}

type BroadcastConfig struct {
	BufferSize int           `mapstructure:"buffer_size"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
}

type JobsConfig struct {
	OracleRefresh  string        `mapstructure:"oracle_refresh"`
	SessionHealth  string        `mapstructure:"session_health"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
}

// LoadConfig reads .env (when present), the optional YAML file at path and
// FREIGHT_* environment variables, in increasing precedence.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.debug", false)
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "freight")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "freight")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "freight.master-orders")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.queue", "freight.audit")

	v.SetDefault("compliance.policy_path", "")

	oracle := consensus.DefaultConfig()
	v.SetDefault("oracle.region", oracle.Region)
	v.SetDefault("oracle.surcharge_ttl", oracle.SurchargeTTL.String())
	v.SetDefault("oracle.route_cache_ttl", oracle.RouteCacheTTL.String())
	v.SetDefault("oracle.route_cache_size", oracle.RouteCacheSize)
	v.SetDefault("oracle.similarity_radius_km", oracle.SimilarityRadiusKm)
	v.SetDefault("oracle.risk_threshold_percent", oracle.RiskThresholdPercent)
	v.SetDefault("oracle.fetch_timeout", oracle.FetchTimeout.String())
	v.SetDefault("oracle.base_rate", oracle.BaseRate)
	v.SetDefault("oracle.fallback_amplitude", oracle.FallbackAmplitude)
	v.SetDefault("oracle.fallback_min", oracle.FallbackMin)
	v.SetDefault("oracle.fallback_max", oracle.FallbackMax)
	v.SetDefault("oracle.http_timeout", "5s")

	v.SetDefault("broadcast.buffer_size", 32)
	v.SetDefault("broadcast.write_wait", "10s")
	v.SetDefault("broadcast.pong_wait", "60s")

	v.SetDefault("jobs.oracle_refresh", "@every 1h")
	v.SetDefault("jobs.session_health", "@every 30s")
	v.SetDefault("jobs.refresh_timeout", "30s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	if c.HTTP.Port == "" {
		err = multierr.Append(err, errors.New("http.port must not be empty"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		err = multierr.Append(err, errors.New("http.shutdown_timeout must be positive"))
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		err = multierr.Append(err, errors.New("database.host and database.name must not be empty"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		err = multierr.Append(err, errors.New("kafka.topic must be set when kafka.brokers is"))
	}
	if c.RabbitMQ.URL != "" && c.RabbitMQ.Queue == "" {
		err = multierr.Append(err, errors.New("rabbitmq.queue must be set when rabbitmq.url is"))
	}
	if oracleErr := c.Oracle.Config.Validate(); oracleErr != nil {
		err = multierr.Append(err, oracleErr)
	}
	if c.Broadcast.BufferSize <= 0 {
		err = multierr.Append(err, errors.New("broadcast.buffer_size must be positive"))
	}
	if c.Broadcast.WriteWait <= 0 || c.Broadcast.PongWait <= 0 {
		err = multierr.Append(err, errors.New("broadcast.write_wait and broadcast.pong_wait must be positive"))
	}
	return err
}
