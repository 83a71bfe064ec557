// Package config loads process configuration from defaults, an optional
// YAML file and PAMPERITO_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// PAMPERITO_WHATSAPP_TOKEN for whatsapp.token.
const EnvPrefix = "PAMPERITO"

// Config is the full process configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Database    DatabaseConfig    `yaml:"database" mapstructure:"database"`
	WhatsApp    WhatsAppConfig    `yaml:"whatsapp" mapstructure:"whatsapp"`
	MercadoPago MercadoPagoConfig `yaml:"mercadopago" mapstructure:"mercadopago"`
	Business    BusinessConfig    `yaml:"business" mapstructure:"business"`
	Watcher     WatcherConfig     `yaml:"watcher" mapstructure:"watcher"`
	Bot         BotConfig         `yaml:"bot" mapstructure:"bot"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// WhatsAppConfig configures the Cloud API client. With no token, outbound
// messages are only logged.
type WhatsAppConfig struct {
	GraphBase     string  `yaml:"graph_base" mapstructure:"graph_base"`
	Version       string  `yaml:"version" mapstructure:"version"`
	PhoneID       string  `yaml:"phone_id" mapstructure:"phone_id"`
	Token         string  `yaml:"token" mapstructure:"token"`
	VerifyToken   string  `yaml:"verify_token" mapstructure:"verify_token"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
}

// Enabled reports whether real messages can be sent.
func (w WhatsAppConfig) Enabled() bool {
	return w.Token != "" && w.PhoneID != ""
}

// MercadoPagoConfig configures payment links. With no access token the bot
// runs in demo mode.
type MercadoPagoConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	AccessToken string `yaml:"access_token" mapstructure:"access_token"`
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	// DurableDedup keeps processed payment ids in the database so they
	// survive restarts.
	DurableDedup bool `yaml:"durable_dedup" mapstructure:"durable_dedup"`
}

type BusinessConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	AdminPhone  string `yaml:"admin_phone" mapstructure:"admin_phone"`
	EnableMP    bool   `yaml:"enable_mp" mapstructure:"enable_mp"`
	EnableCash  bool   `yaml:"enable_cash" mapstructure:"enable_cash"`
	Zone        string `yaml:"zone" mapstructure:"zone"`
	CatalogFile string `yaml:"catalog_file" mapstructure:"catalog_file"`
}

type WatcherConfig struct {
	Tick        time.Duration `yaml:"tick" mapstructure:"tick"`
	NudgeAfter  time.Duration `yaml:"nudge_after" mapstructure:"nudge_after"`
	ExpireAfter time.Duration `yaml:"expire_after" mapstructure:"expire_after"`
}

type BotConfig struct {
	TroubleThreshold int `yaml:"trouble_threshold" mapstructure:"trouble_threshold"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "pamperito.db"},
		WhatsApp: WhatsAppConfig{
			GraphBase:     "https://graph.facebook.com",
			Version:       "v18.0",
			RatePerSecond: 20,
			Burst:         5,
		},
		MercadoPago: MercadoPagoConfig{BaseURL: "https://api.mercadopago.com"},
		Business: BusinessConfig{
			Name:       "Pamperito",
			EnableMP:   true,
			EnableCash: true,
			Zone:       "venado_tuerto",
		},
		Watcher: WatcherConfig{
			Tick:        60 * time.Second,
			NudgeAfter:  5 * time.Minute,
			ExpireAfter: 30 * time.Minute,
		},
		Bot: BotConfig{TroubleThreshold: 3},
	}
}

// Load reads configuration. An empty path skips the file and uses only
// defaults and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables bind even when
// the file omits a section.
func setDefaults(v *viper.Viper, d *Config) {
	defaults := map[string]any{
		"server.addr":               d.Server.Addr,
		"server.read_timeout":       d.Server.ReadTimeout,
		"server.write_timeout":      d.Server.WriteTimeout,
		"server.shutdown_timeout":   d.Server.ShutdownTimeout,
		"database.path":             d.Database.Path,
		"whatsapp.graph_base":       d.WhatsApp.GraphBase,
		"whatsapp.version":          d.WhatsApp.Version,
		"whatsapp.phone_id":         d.WhatsApp.PhoneID,
		"whatsapp.token":            d.WhatsApp.Token,
		"whatsapp.verify_token":     d.WhatsApp.VerifyToken,
		"whatsapp.rate_per_second":  d.WhatsApp.RatePerSecond,
		"whatsapp.burst":            d.WhatsApp.Burst,
		"mercadopago.base_url":      d.MercadoPago.BaseURL,
		"mercadopago.access_token":  d.MercadoPago.AccessToken,
		"mercadopago.webhook_url":   d.MercadoPago.WebhookURL,
		"mercadopago.durable_dedup": d.MercadoPago.DurableDedup,
		"business.name":             d.Business.Name,
		"business.admin_phone":      d.Business.AdminPhone,
		"business.enable_mp":        d.Business.EnableMP,
		"business.enable_cash":      d.Business.EnableCash,
		"business.zone":             d.Business.Zone,
		"business.catalog_file":     d.Business.CatalogFile,
		"watcher.tick":              d.Watcher.Tick,
		"watcher.nudge_after":       d.Watcher.NudgeAfter,
		"watcher.expire_after":      d.Watcher.ExpireAfter,
		"bot.trouble_threshold":     d.Bot.TroubleThreshold,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Validate rejects settings the process cannot run with. A missing admin
// phone or payment token is allowed and degrades the matching feature.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Watcher.Tick <= 0 {
		errs = append(errs, errors.New("watcher.tick must be positive"))
	}
	if c.Watcher.NudgeAfter <= 0 {
		errs = append(errs, errors.New("watcher.nudge_after must be positive"))
	}
	if c.Watcher.ExpireAfter <= 0 {
		errs = append(errs, errors.New("watcher.expire_after must be positive"))
	}
	if c.Watcher.NudgeAfter > 0 && c.Watcher.ExpireAfter > 0 && c.Watcher.NudgeAfter >= c.Watcher.ExpireAfter {
		errs = append(errs, errors.New("watcher.nudge_after must be shorter than watcher.expire_after"))
	}
	if c.Bot.TroubleThreshold < 1 {
		errs = append(errs, errors.New("bot.trouble_threshold must be at least 1"))
	}
	if c.WhatsApp.RatePerSecond <= 0 {
		errs = append(errs, errors.New("whatsapp.rate_per_second must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
