// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvProd значение env для боевого окружения.
const EnvProd = "prod"

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"APP_ENV" env-default:"local"`
	TestMode                bool   `yaml:"test_mode" env:"TEST_MODE"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Gateway                 `yaml:"gateway"`
	Identity                `yaml:"identity"`
	Plans                   `yaml:"plans"`
	Limits                  `yaml:"limits"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"10"`
	RateBurst   int           `yaml:"rate_burst" env-default:"20"`
	TrustProxy  bool          `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"false"`
	AdminKey    string        `yaml:"admin_key" env:"ADMIN_KEY"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ структура для настройки подключения к брокеру событий
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string        `yaml:"exchange" env-default:"billing"`
	Retries    int           `yaml:"retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// JWTToken структура для работы с jwt-токеном.
// Срок жизни токена фиксирован: jwt.TokenTTL.
type JWTToken struct {
	JWTSecretKey string `yaml:"jwt_secret_key" env:"JWT_SECRET" env-required:"true"`
}

// Gateway структура с ключами платёжного шлюза.
// Пустой или заглушечный ключ включает симулированный режим оплаты.
type Gateway struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `yaml:"currency" env-default:"brl"`
}

// Identity структура для внешнего провайдера идентификации.
type Identity struct {
	GoogleClientID string `yaml:"google_client_id" env:"GOOGLE_CLIENT_ID"`
}

// Plans таблица цен тарифов в минимальных единицах валюты.
type Plans struct {
	FreePrice int64 `yaml:"free_price" env-default:"0"`
	ProPrice  int64 `yaml:"pro_price" env-default:"1599"`
}

// Limits квоты восстановления для каждого тарифа.
type Limits struct {
	Free PlanLimits `yaml:"free"`
	Pro  PlanLimits `yaml:"pro"`
}

// PlanLimits квоты одного тарифа.
type PlanLimits struct {
	MaxFiles  int     `yaml:"max_files"`
	MaxSizeMB float64 `yaml:"max_size_mb"`
	MaxScans  int     `yaml:"max_scans"`
	MaxDays   int     `yaml:"max_days"`
}

// WithDefaults заполняет незаданные квоты значениями по умолчанию.
func (l Limits) WithDefaults() Limits {
	if l.Free == (PlanLimits{}) {
		l.Free = PlanLimits{MaxFiles: 5, MaxSizeMB: 300, MaxScans: 1, MaxDays: 10}
	}
	if l.Pro == (PlanLimits{}) {
		l.Pro = PlanLimits{MaxFiles: 50, MaxSizeMB: 5120, MaxScans: 50, MaxDays: 30}
	}
	return l
}

// TestLoginEnabled сообщает, доступен ли тестовый вход.
func (c *Config) TestLoginEnabled() bool {
	return c.TestMode || c.Env != EnvProd
}

// MustLoad функция для загрузки конфига, возвращает конфиг, сгенерированный из config/config.go
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func load(configPath string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.JWTSecretKey) == "" {
		return nil, errors.New("jwt secret key is not set")
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"TestMode: %t\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  MaxRetries: %d\n"+
			"RabbitMQ:\n"+
			"  Exchange: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  SecretSet: %t\n"+
			"Gateway:\n"+
			"  Configured: %t\n"+
			"Plans:\n"+
			"  Pro: %d\n",
		c.Env,
		c.TestMode,
		c.AddressRedis,
		c.DB,
		c.MaxRetries,
		c.Exchange,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.JWTSecretKey != "",
		c.SecretKey != "",
		c.ProPrice,
	)
}
