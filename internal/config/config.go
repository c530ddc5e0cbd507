// Package config loads service configuration from defaults, an optional YAML
// file and SOLAR_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SOLAR_SERVER_ADDR.
const EnvPrefix = "SOLAR"

// FileName is the config file looked up in the working directory.
const FileName = "solar-dashboard"

// Config is the typed service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Data     DataConfig     `mapstructure:"data"`
	Plant    PlantConfig    `mapstructure:"plant"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	TTS      TTSConfig      `mapstructure:"tts"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     string        `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DataConfig struct {
	Folder       string `mapstructure:"folder"`
	OutputFolder string `mapstructure:"output_folder"`
	SettingsFile string `mapstructure:"settings_file"`
}

type PlantConfig struct {
	Timezone          string  `mapstructure:"timezone"`
	CO2FactorKgPerKWh float64 `mapstructure:"co2_factor_kg_per_kwh"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type TTSConfig struct {
	OpenAIAPIKey string        `mapstructure:"openai_api_key"`
	Model        string        `mapstructure:"model"`
	Voice        string        `mapstructure:"voice"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type WhatsAppConfig struct {
	TwilioAccountSID string        `mapstructure:"twilio_account_sid"`
	TwilioAuthToken  string        `mapstructure:"twilio_auth_token"`
	From             string        `mapstructure:"from"`
	BaseURL          string        `mapstructure:"base_url"`
	RatePerMinute    float64       `mapstructure:"rate_per_minute"`
	Burst            int           `mapstructure:"burst"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// SetDefaults registers every known key so env overrides resolve on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("data.folder", "./data/input")
	v.SetDefault("data.output_folder", "./data/output")
	v.SetDefault("data.settings_file", "./data/settings.yaml")

	v.SetDefault("plant.timezone", "America/Argentina/Buenos_Aires")
	v.SetDefault("plant.co2_factor_kg_per_kwh", 0.5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("database.url", "")

	v.SetDefault("tts.openai_api_key", "")
	v.SetDefault("tts.model", "tts-1")
	v.SetDefault("tts.voice", "alloy")
	v.SetDefault("tts.base_url", "https://api.openai.com/v1")
	v.SetDefault("tts.timeout", 60*time.Second)

	v.SetDefault("whatsapp.twilio_account_sid", "")
	v.SetDefault("whatsapp.twilio_auth_token", "")
	v.SetDefault("whatsapp.from", "")
	v.SetDefault("whatsapp.base_url", "https://api.twilio.com/2010-04-01")
	v.SetDefault("whatsapp.rate_per_minute", 30)
	v.SetDefault("whatsapp.burst", 5)
	v.SetDefault("whatsapp.timeout", 15*time.Second)
}

// NewViper returns a viper instance with defaults and env binding. When path
// is empty the optional solar-dashboard.yaml in the working directory is read.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load reads and validates the configuration.
func Load(path string) (*Config, *viper.Viper, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, v, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: empty server.addr")
	}
	if c.Plant.CO2FactorKgPerKWh < 0 {
		return errors.New("config: negative plant.co2_factor_kg_per_kwh")
	}
	if c.WhatsApp.RatePerMinute < 0 || c.WhatsApp.Burst < 0 {
		return errors.New("config: negative whatsapp rate")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves plant.timezone. An empty zone means UTC.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Plant.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Plant.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: plant.timezone: %w", err)
	}
	return loc, nil
}

// Origins splits server.cors_origins on commas.
func (c ServerConfig) Origins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
