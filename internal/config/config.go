// Package config loads service settings from defaults, an optional YAML file
// and environment variables, in that order of precedence.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"voalzira/internal/models"
	"voalzira/internal/money"
	"voalzira/internal/wallet"
)

type DBConfig struct {
	Driver string `yaml:"driver" default:"mysql"` // mysql or sqlite
	DSN    string `yaml:"dsn"`
	CAPath string `yaml:"ca_path" default:"/etc/ssl/certs/ca-certificates.crt"`
}

type AdminConfig struct {
	Username     string `yaml:"username" default:"admin"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

type SessionConfig struct {
	Key          string `yaml:"key"`      // base64, >= 32 bytes
	CSRFKey      string `yaml:"csrf_key"` // base64, >= 32 bytes
	CookieDomain string `yaml:"cookie_domain"`
	CookieSecure bool   `yaml:"cookie_secure"`

	IdleTimeout time.Duration `yaml:"idle_timeout" default:"30m"`
	MaxSessions int           `yaml:"max_sessions" default:"10000"`

	KeyBytes     []byte `yaml:"-"`
	CSRFKeyBytes []byte `yaml:"-"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

type Config struct {
	Port           string `yaml:"port" default:"8000"`
	DevMode        bool   `yaml:"dev_mode"`
	ShopName       string `yaml:"shop_name" default:"Vó Alzira"`
	CloudinaryURL  string `yaml:"cloudinary_url"`
	ProfileID      string `yaml:"profile_id"`
	PreferredStore string `yaml:"preferred_store" default:"teste"`

	DB      DBConfig      `yaml:"db"`
	Admin   AdminConfig   `yaml:"admin"`
	Session SessionConfig `yaml:"session"`
	Webhook WebhookConfig `yaml:"webhook"`

	Coupons     []models.Coupon     `yaml:"coupons"`
	WalletTiers []models.WalletTier `yaml:"wallet_tiers"`
}

// DefaultCoupons seeds the coupon book when configuration lists none. The
// seed codes never expire; dated coupons come from configuration or the
// admin API.
func DefaultCoupons() []models.Coupon {
	return []models.Coupon{
		{ID: "1", Code: "BOLO10", Discount: 10, Kind: models.Percentage},
		{ID: "2", Code: "VEMPROBOLO", Discount: int64(money.FromReais(5)), Kind: models.Fixed},
	}
}

// Load reads the file named by CONFIG_FILE, if any, then the environment.
func Load(logger *zap.Logger) (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"), logger)
}

// LoadFile is Load with an explicit file path; an empty path skips the file.
func LoadFile(path string, logger *zap.Logger) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		logger.Warn("invalid port, falling back to default", zap.String("port", cfg.Port))
		cfg.Port = "8000"
	}

	var err error
	if cfg.Session.KeyBytes, err = secretKey("SESSION_KEY", cfg.Session.Key, logger); err != nil {
		return nil, err
	}
	if cfg.Session.CSRFKeyBytes, err = secretKey("CSRF_KEY", cfg.Session.CSRFKey, logger); err != nil {
		return nil, err
	}

	if len(cfg.Coupons) == 0 {
		cfg.Coupons = DefaultCoupons()
	}
	if len(cfg.WalletTiers) == 0 {
		cfg.WalletTiers = wallet.DefaultTiers()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	switch c.DB.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("db driver %q: want mysql or sqlite", c.DB.Driver))
	}
	if !c.DevMode {
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN (db.dsn) must be set outside dev mode"))
		}
		if c.CloudinaryURL == "" {
			errs = append(errs, errors.New("CLOUDINARY_URL must be set outside dev mode"))
		}
		if c.ProfileID == "" {
			errs = append(errs, errors.New("PROFILE_ID must be set outside dev mode"))
		}
		if c.Admin.PasswordHash == "" {
			errs = append(errs, errors.New("ADMIN_PASSWORD_HASH must be set outside dev mode"))
		}
	}
	if c.Webhook.Timeout <= 0 {
		errs = append(errs, errors.New("webhook timeout must be positive"))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.ShopName, "SHOP_NAME")
	setString(&cfg.CloudinaryURL, "CLOUDINARY_URL")
	setString(&cfg.ProfileID, "PROFILE_ID")
	setString(&cfg.PreferredStore, "PREFERRED_STORE")
	setString(&cfg.DB.Driver, "DB_DRIVER")
	setString(&cfg.DB.DSN, "MYSQL_DSN")
	setString(&cfg.DB.CAPath, "TIDB_CA")
	setString(&cfg.Admin.Username, "ADMIN_USERNAME")
	setString(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&cfg.Session.Key, "SESSION_KEY")
	setString(&cfg.Session.CSRFKey, "CSRF_KEY")
	setString(&cfg.Session.CookieDomain, "COOKIE_DOMAIN")
	setString(&cfg.Webhook.URL, "WEBHOOK_URL")
	setBool(&cfg.DevMode, "DEV_MODE")
	setBool(&cfg.Session.CookieSecure, "COOKIE_SECURE")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		v = strings.ToLower(strings.TrimSpace(v))
		*dst = v == "1" || v == "true"
	}
}

// secretKey decodes a base64 key of at least 32 bytes. A missing or short
// key is replaced by a random one, which does not survive restarts.
func secretKey(name, encoded string, logger *zap.Logger) ([]byte, error) {
	if encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err == nil && len(key) >= 32 {
			return key, nil
		}
		logger.Warn("key is invalid or shorter than 32 bytes, generating a random one", zap.String("key", name))
	} else {
		logger.Warn("key not set, generating a random one; set it in production", zap.String("key", name))
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate %s: %w", name, err)
	}
	return key, nil
}
