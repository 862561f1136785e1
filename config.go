package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverRedis = "redis"
	StorageDriverBolt  = "bolt"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit               string         `yaml:"git_commit" envconfig:"CATALOG_GIT_COMMIT"`
	GitTag                  string         `yaml:"git_tag" envconfig:"CATALOG_GIT_TAG"`
	BuildTime               string         `yaml:"build_time" envconfig:"CATALOG_BUILD_TIME"`
	IsProduction            bool           `yaml:"is_production" envconfig:"CATALOG_IS_PRODUCTION"`
	LogLevel                zapcore.Level  `yaml:"log_level" envconfig:"CATALOG_LOG_LEVEL"`
	LogFolder               string         `yaml:"log_folder" envconfig:"CATALOG_LOG_FOLDER"`
	LogMaxSize              int            `yaml:"log_max_size" envconfig:"CATALOG_LOG_MAX_SIZE"` // in megabytes
	OpsEndpointsEnable      bool           `yaml:"ops_endpoints_enable" envconfig:"CATALOG_OPS_ENDPOINTS_ENABLE"`
	ProfilerEndpointsEnable bool           `yaml:"profiler_endpoints_enable" envconfig:"CATALOG_PROFILER_ENDPOINTS_ENABLE"`
	Server                  ServerConfig   `yaml:"server"`
	Storage                 StorageConfig  `yaml:"storage"`
	Redis                   RedisConfig    `yaml:"redis"`
	BoltDB                  BoltDBConfig   `yaml:"boltdb"`
	Metadata                MetadataConfig `yaml:"metadata"`
}

type ServerConfig struct {
	Host                    string        `yaml:"host" envconfig:"CATALOG_SERVER_HOST"`
	Port                    string        `yaml:"port" envconfig:"CATALOG_SERVER_PORT"`
	ReadTimeout             time.Duration `yaml:"read_timeout" envconfig:"CATALOG_SERVER_READ_TIMEOUT"`
	WriteTimeout            time.Duration `yaml:"write_timeout" envconfig:"CATALOG_SERVER_WRITE_TIMEOUT"`
	RequestTimeout          time.Duration `yaml:"request_timeout" envconfig:"CATALOG_SERVER_REQUEST_TIMEOUT"` // Time to wait for a request to finish
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout" envconfig:"CATALOG_SERVER_SHUTDOWN_TIMEOUT"`
	LongRequestWriteTimeout time.Duration `yaml:"long_request_write_timeout" envconfig:"CATALOG_SERVER_LONG_REQUEST_WRITE_TIMEOUT"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"CATALOG_STORAGE_DRIVER"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"CATALOG_REDIS_HOST"`
	Port          string        `yaml:"port" envconfig:"CATALOG_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"CATALOG_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"CATALOG_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"CATALOG_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"CATALOG_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"CATALOG_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"CATALOG_REDIS_USERNAME"`
	Password      string        `yaml:"password" envconfig:"CATALOG_REDIS_PASSWORD"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"CATALOG_REDIS_DATABASE_INDEX"`
}

type BoltDBConfig struct {
	FilePath string        `yaml:"filepath" envconfig:"CATALOG_BOLTDB_FILE_PATH"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"CATALOG_BOLTDB_TIMEOUT"`
}

type MetadataConfig struct {
	BaseURL                 string        `yaml:"base_url" envconfig:"CATALOG_METADATA_BASE_URL"`
	APIKey                  string        `yaml:"api_key" envconfig:"CATALOG_METADATA_API_KEY"`
	Timeout                 time.Duration `yaml:"timeout" envconfig:"CATALOG_METADATA_TIMEOUT"`
	RatePerSecond           float64       `yaml:"rate_per_second" envconfig:"CATALOG_METADATA_RATE_PER_SECOND"`
	Burst                   int           `yaml:"burst" envconfig:"CATALOG_METADATA_BURST"`
	BreakerMaxRequests      uint32        `yaml:"breaker_max_requests" envconfig:"CATALOG_METADATA_BREAKER_MAX_REQUESTS"`
	BreakerInterval         time.Duration `yaml:"breaker_interval" envconfig:"CATALOG_METADATA_BREAKER_INTERVAL"`
	BreakerTimeout          time.Duration `yaml:"breaker_timeout" envconfig:"CATALOG_METADATA_BREAKER_TIMEOUT"`
	BreakerFailureThreshold uint32        `yaml:"breaker_failure_threshold" envconfig:"CATALOG_METADATA_BREAKER_FAILURE_THRESHOLD"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and provides an instance of the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 10
	}

	if len(config.Storage.Driver) == 0 {
		config.Storage.Driver = StorageDriverRedis
	}

	switch config.Storage.Driver {
	case StorageDriverRedis:
		if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
			return errors.New("make sure to set valid redis address and port in configuration file")
		}
	case StorageDriverBolt:
		if len(config.BoltDB.FilePath) == 0 {
			return errors.New("make sure to set a valid boltdb file path in configuration file")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", config.Storage.Driver)
	}

	if len(config.Metadata.BaseURL) == 0 {
		config.Metadata.BaseURL = GoogleBooksBaseURL
	}

	if config.Metadata.Timeout <= 0 {
		config.Metadata.Timeout = 10 * time.Second
	}

	if config.Metadata.RatePerSecond <= 0 {
		config.Metadata.RatePerSecond = 5
	}

	if config.Metadata.Burst <= 0 {
		config.Metadata.Burst = 1
	}

	if config.Metadata.BreakerFailureThreshold == 0 {
		config.Metadata.BreakerFailureThreshold = 5
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile("./config.yml")
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration. The file is optional.
	err = godotenv.Load("./config.env")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `CATALOG`.
	err = LoadConfigEnvs("CATALOG", config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
