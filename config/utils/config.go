// Package config loads the application configuration from config.yaml and
// environment variables via viper.
package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type (
	// AppConfig aggregates every configuration section of the pipeline.
	AppConfig struct {
		App         *App         `mapstructure:"app"`
		Logger      *Logger      `mapstructure:"logger"`
		DB          *DB          `mapstructure:"db"`
		Redis       *Redis       `mapstructure:"redis"`
		Broker      *Broker      `mapstructure:"broker"`
		HTTP        *HTTP        `mapstructure:"http"`
		Coordinator *Coordinator `mapstructure:"coordinator"`
	}

	App struct {
		Name string `mapstructure:"name"`
		Env  string `mapstructure:"env"`
	}

	Logger struct {
		Level             string                `mapstructure:"level"`
		Development       bool                  `mapstructure:"development"`
		DisableStacktrace bool                  `mapstructure:"disableStacktrace"`
		Encoding          string                `mapstructure:"encoding"`
		EncoderConfig     zapcore.EncoderConfig `mapstructure:"encoderConfig"`
	}

	DB struct {
		Connection string `mapstructure:"connection"`
		Host       string `mapstructure:"host"`
		Port       string `mapstructure:"port"`
		User       string `mapstructure:"user"`
		Password   string `mapstructure:"password"`
		Name       string `mapstructure:"name"`
	}

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	}

	// Broker points at the RabbitMQ instance and names the durable topology.
	Broker struct {
		URL      string `mapstructure:"url"`
		Exchange string `mapstructure:"exchange"`
		Queue    string `mapstructure:"queue"`
	}

	HTTP struct {
		Addr string `mapstructure:"addr"`
	}

	// Coordinator sizes the execution worker pool and its bounded queue.
	Coordinator struct {
		Workers   int `mapstructure:"workers"`
		QueueSize int `mapstructure:"queueSize"`
	}
)

// addZapEncoderConfig fills encoder config with zapcore types
func addZapEncoderConfig(cfg *zapcore.EncoderConfig) {
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.SecondsDurationEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
}

// New reads config.yaml plus environment overrides and returns the assembled
// configuration. Missing config is fatal at process start by design.
func New() *AppConfig {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/secrets/")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("env")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("error reading config file: %v", err)
	}

	// Database overrides
	viper.BindEnv("db.host", "PG_HOST")
	viper.BindEnv("db.port", "PG_PORT")
	viper.BindEnv("db.user", "PG_USER")
	viper.BindEnv("db.password", "PG_PASS")
	viper.BindEnv("db.name", "PG_DB")

	// Redis overrides
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Broker overrides
	viper.BindEnv("broker.url", "MQ_URL")

	var config *AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("unable to decode into struct: %v", err)
	}
	addZapEncoderConfig(&config.Logger.EncoderConfig)

	return config
}
