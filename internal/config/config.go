package config

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Configuration for the ledger service
type Configuration struct {
	ListenPort      int                  `json:"listen_port" mapstructure:"listen_port"`
	ShutdownTimeout time.Duration        `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration        `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration        `json:"write_timeout" mapstructure:"write_timeout"`
	LogLevel        string               `json:"log_level" mapstructure:"log_level"`
	LogFile         string               `json:"log_file" mapstructure:"log_file"`
	Pretty          bool                 `json:"pretty" mapstructure:"pretty"`
	Upload          UploadConfiguration  `json:"upload" mapstructure:"upload"`
	Store           StoreConfiguration   `json:"store" mapstructure:"store"`
	Mongo           MongoConfiguration   `json:"mongo" mapstructure:"mongo"`
	SQLite          SQLiteConfiguration  `json:"sqlite" mapstructure:"sqlite"`
	Tracing         TracingConfiguration `json:"tracing" mapstructure:"tracing"`
}
type UploadConfiguration struct {
	MaxSize   string  `json:"max_size" mapstructure:"max_size"`
	RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit"`
}
type StoreConfiguration struct {
	Driver string `json:"driver" mapstructure:"driver"`
}
type MongoConfiguration struct {
	URI            string        `json:"uri" mapstructure:"uri"`
	Host           string        `json:"host" mapstructure:"host"`
	Port           int           `json:"port" mapstructure:"port"`
	Username       string        `json:"username" mapstructure:"username"`
	Password       string        `json:"password" mapstructure:"password"`
	Database       string        `json:"database" mapstructure:"database"`
	Collection     string        `json:"collection" mapstructure:"collection"`
	Transactions   bool          `json:"transactions" mapstructure:"transactions"`
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
}
type SQLiteConfiguration struct {
	Path string `json:"path" mapstructure:"path"`
}
type TracingConfiguration struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

func applyDefaultConfig(v *viper.Viper) {
	v.SetDefault("listen_port", "3000")
	v.SetDefault("read_timeout", "30s")
	v.SetDefault("write_timeout", "30s")
	v.SetDefault("shutdown_timeout", "30s")
	v.SetDefault("log_level", "info") // debug
	v.SetDefault("log_file", "")
	v.SetDefault("pretty", "false")
	v.SetDefault("upload.max_size", "10M")
	v.SetDefault("upload.rate_limit", 10)
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.host", "localhost")
	v.SetDefault("mongo.port", "27017")
	v.SetDefault("mongo.username", "")
	v.SetDefault("mongo.password", "")
	v.SetDefault("mongo.database", "crypto_trades")
	v.SetDefault("mongo.collection", "trades")
	v.SetDefault("mongo.transactions", "false")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("sqlite.path", "trades.db")
	v.SetDefault("tracing.enabled", "false")
	v.SetDefault("tracing.service_name", "coinledger")
}

// LoadConfiguration reads defaults, then the optional config file, then the
// environment (a .env file in the working directory is loaded first).
// An empty file name skips the config file.
func LoadConfiguration(file string) (*Configuration, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	applyDefaultConfig(v)
	if file != "" {
		v.SetConfigName(strings.TrimSuffix(path.Base(file), filepath.Ext(file)))
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Dir(file))
		if err := v.ReadInConfig(); nil != err {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "failed to read from config file")
			}
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Configuration
	if err := v.Unmarshal(&cfg); nil != err {
		return nil, errors.Wrap(err, "failed to unmarshal")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Configuration) validate() error {
	switch c.Store.Driver {
	case DriverMongo, DriverSQLite, DriverMemory:
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.ListenPort <= 0 {
		return errors.Errorf("invalid listen port %d", c.ListenPort)
	}
	if c.Upload.RateLimit <= 0 {
		return errors.Errorf("upload rate limit must be positive, got %v", c.Upload.RateLimit)
	}
	return nil
}
