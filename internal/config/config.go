// Package config loads service settings from a YAML file named by CONFIG_PATH,
// with secrets overridable from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

// Environments recognised by the logger setup.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config is the settings shared by every binary. Each binary validates the
// sections it needs.
type Config struct {
	Env                     string          `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string          `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string          `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	Redis                   RedisConnection `yaml:"redis_connection"`
	HTTPServer              HTTPServer      `yaml:"http_server"`
	JWT                     JWTToken        `yaml:"jwttoken"`
	RateLimit               RateLimit       `yaml:"rate_limit"`
	RabbitMQ                RabbitMQ        `yaml:"rabbitmq"`
	SMTP                    SMTP            `yaml:"smtp"`
	Stripe                  Stripe          `yaml:"stripe"`
	Scheduler               Scheduler       `yaml:"scheduler"`
	Cache                   Cache           `yaml:"cache"`
}

// HTTPServer configures the API listener.
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection configures the subscription cache.
type RedisConnection struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env-default:"3s"`
}

// JWTToken configures bearer token verification.
type JWTToken struct {
	Secret   string        `yaml:"secret" env:"JWT_SECRET"`
	TokenTTL time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RateLimit configures the per-user request limiter.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"5"`
	Burst int     `yaml:"burst" env-default:"10"`
}

// RabbitMQ configures the notification broker.
type RabbitMQ struct {
	URL      string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange string        `yaml:"exchange" env-default:"billing"`
	Retries  int           `yaml:"retries" env-default:"5"`
	Delay    time.Duration `yaml:"delay" env-default:"2s"`
}

// SMTP configures the notifier's mail relay.
type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

// Stripe holds billing provider credentials, price ids and redirect URLs.
type Stripe struct {
	SecretKey            string       `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret        string       `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	LegacyMonthlyPriceID string       `yaml:"legacy_monthly_price_id" env:"STRIPE_MONTHLY_PRICE_ID"`
	Prices               StripePrices `yaml:"prices"`
	SuccessURL           string       `yaml:"success_url" env:"STRIPE_SUCCESS_URL"`
	CancelURL            string       `yaml:"cancel_url" env:"STRIPE_CANCEL_URL"`
	PortalReturnURL      string       `yaml:"portal_return_url" env:"STRIPE_PORTAL_RETURN_URL"`
}

// StripePrices are the price ids of every paid tier and interval.
type StripePrices struct {
	DreamWeaverMonthly      string `yaml:"dream_weaver_monthly" env:"STRIPE_DREAM_WEAVER_MONTHLY"`
	DreamWeaverAnnual       string `yaml:"dream_weaver_annual" env:"STRIPE_DREAM_WEAVER_ANNUAL"`
	MagicCircleMonthly      string `yaml:"magic_circle_monthly" env:"STRIPE_MAGIC_CIRCLE_MONTHLY"`
	MagicCircleAnnual       string `yaml:"magic_circle_annual" env:"STRIPE_MAGIC_CIRCLE_ANNUAL"`
	EnchantedLibraryMonthly string `yaml:"enchanted_library_monthly" env:"STRIPE_ENCHANTED_LIBRARY_MONTHLY"`
	EnchantedLibraryAnnual  string `yaml:"enchanted_library_annual" env:"STRIPE_ENCHANTED_LIBRARY_ANNUAL"`
}

// Scheduler configures the renewal reminder job.
type Scheduler struct {
	Spec   string        `yaml:"spec" env:"SCHEDULER_SPEC" env-default:"0 9 * * *"`
	Window time.Duration `yaml:"window" env-default:"72h"`
}

// Cache configures read-through caching of subscriptions.
type Cache struct {
	SubscriptionTTL time.Duration `yaml:"subscription_ttl" env-default:"5m"`
}

// Load reads the file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad loads the config named by CONFIG_PATH or exits.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// PriceBook builds the tier price table from the configured price ids.
func (s Stripe) PriceBook() (*tiers.PriceBook, error) {
	return tiers.NewPriceBook(map[tiers.Tier]tiers.PriceIDs{
		tiers.DreamWeaver:      {Monthly: s.Prices.DreamWeaverMonthly, Annual: s.Prices.DreamWeaverAnnual},
		tiers.MagicCircle:      {Monthly: s.Prices.MagicCircleMonthly, Annual: s.Prices.MagicCircleAnnual},
		tiers.EnchantedLibrary: {Monthly: s.Prices.EnchantedLibraryMonthly, Annual: s.Prices.EnchantedLibraryAnnual},
	}, s.LegacyMonthlyPriceID)
}

// ValidateAPI reports every setting the HTTP API cannot start without.
func (c *Config) ValidateAPI() error {
	var errs []error
	if c.StorageConnectionString == "" {
		errs = append(errs, errors.New("storage_connection_string is required"))
	}
	if c.Redis.Address == "" {
		errs = append(errs, errors.New("redis_connection.address is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RabbitMQ.URL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is required"))
	}
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	book, err := c.Stripe.PriceBook()
	if err != nil {
		errs = append(errs, err)
	} else {
		for _, m := range book.Missing() {
			errs = append(errs, fmt.Errorf("stripe price id for %s is required", m))
		}
	}
	return errors.Join(errs...)
}

// ValidateNotifier reports settings missing for the notifier.
func (c *Config) ValidateNotifier() error {
	var errs []error
	if c.RabbitMQ.URL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is required"))
	}
	if c.SMTP.Host == "" {
		errs = append(errs, errors.New("SMTP_HOST is required"))
	}
	if c.SMTP.From == "" {
		errs = append(errs, errors.New("SMTP_FROM is required"))
	}
	return errors.Join(errs...)
}

// ValidateScheduler reports settings missing for the renewal scheduler.
func (c *Config) ValidateScheduler() error {
	var errs []error
	if c.StorageConnectionString == "" {
		errs = append(errs, errors.New("storage_connection_string is required"))
	}
	if c.RabbitMQ.URL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is required"))
	}
	if c.Scheduler.Window <= 0 {
		errs = append(errs, errors.New("scheduler.window must be positive"))
	}
	return errors.Join(errs...)
}
