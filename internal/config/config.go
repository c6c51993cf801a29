package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrJWTSecretRequired = errors.New("JWT_SECRET environment variable is required (min 16 chars)")

type Config struct {
	Port        string
	Env         string
	JWTSecret   string
	HTTPTimeout time.Duration
	LogLevel    string
	LogPretty   bool
	CORSOrigins []string

	// Device descriptor sent on session exchange.
	GameVersion    string
	Platform       string
	PlayFabTitleID string
	AcceptLanguage string

	// Purchase defaults.
	ClientIDPurchase string
	EditionType      string
	BuildPlatform    int

	PurchaseRateLimit int
	BreakerEnabled    bool

	EnableMarketplaceAPI bool
	MarketplaceAPIBase   string

	// Upstream base URLs; empty means production hosts.
	AuthBaseURL         string
	EntitlementsBaseURL string
	StoreBaseURL        string
	PlayFabBaseURL      string

	logPrettySet bool
}

// IsProduction reports whether diagnostic details must be withheld.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// fileConfig mirrors the optional YAML overlay named by CONFIG_FILE.
type fileConfig struct {
	Server struct {
		Port        string   `yaml:"port"`
		Environment string   `yaml:"environment"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty *bool  `yaml:"pretty"`
	} `yaml:"log"`
	Upstream struct {
		TimeoutMS         int    `yaml:"timeout_ms"`
		AuthBaseURL       string `yaml:"auth_base_url"`
		EntitlementsURL   string `yaml:"entitlements_base_url"`
		StoreBaseURL      string `yaml:"store_base_url"`
		PlayFabBaseURL    string `yaml:"playfab_base_url"`
		BreakerEnabled    *bool  `yaml:"breaker_enabled"`
		MarketplaceBase   string `yaml:"marketplace_api_base"`
		EnableMarketplace *bool  `yaml:"enable_marketplace_api"`
	} `yaml:"upstream"`
	Minecraft struct {
		GameVersion    string `yaml:"game_version"`
		Platform       string `yaml:"platform"`
		PlayFabTitleID string `yaml:"playfab_title_id"`
		AcceptLanguage string `yaml:"accept_language"`
	} `yaml:"minecraft"`
	Purchase struct {
		ClientID      string `yaml:"client_id"`
		EditionType   string `yaml:"edition_type"`
		BuildPlatform int    `yaml:"build_platform"`
		RateLimit     int    `yaml:"rate_limit_per_minute"`
	} `yaml:"purchase"`
}

func defaults() *Config {
	return &Config{
		Port:              "8090",
		Env:               "development",
		HTTPTimeout:       15 * time.Second,
		LogLevel:          "info",
		CORSOrigins:       []string{"*"},
		GameVersion:       "1.21.62",
		Platform:          "Windows10",
		PlayFabTitleID:    "20ca2",
		AcceptLanguage:    "en-US",
		ClientIDPurchase:  "xlink_purchase_addon",
		EditionType:       "Android",
		BuildPlatform:     1,
		PurchaseRateLimit: 20,
		BreakerEnabled:    true,
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE
// overlay, then environment variables (highest precedence).
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	switch cfg.Env {
	case "development", "production", "test":
	default:
		return nil, fmt.Errorf("ENVIRONMENT must be one of development|production|test, got %q", cfg.Env)
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, ErrJWTSecretRequired
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT_MS must be positive")
	}
	if cfg.EnableMarketplaceAPI && cfg.MarketplaceAPIBase == "" {
		return nil, fmt.Errorf("MARKETPLACE_API_BASE is required when ENABLE_MARKETPLACE_API is set")
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.Port, f.Server.Port)
	setString(&cfg.Env, f.Server.Environment)
	if len(f.Server.CORSOrigins) > 0 {
		cfg.CORSOrigins = f.Server.CORSOrigins
	}
	setString(&cfg.LogLevel, f.Log.Level)
	if f.Log.Pretty != nil {
		cfg.LogPretty = *f.Log.Pretty
		cfg.logPrettySet = true
	}
	if f.Upstream.TimeoutMS > 0 {
		cfg.HTTPTimeout = time.Duration(f.Upstream.TimeoutMS) * time.Millisecond
	}
	setString(&cfg.AuthBaseURL, f.Upstream.AuthBaseURL)
	setString(&cfg.EntitlementsBaseURL, f.Upstream.EntitlementsURL)
	setString(&cfg.StoreBaseURL, f.Upstream.StoreBaseURL)
	setString(&cfg.PlayFabBaseURL, f.Upstream.PlayFabBaseURL)
	setString(&cfg.MarketplaceAPIBase, f.Upstream.MarketplaceBase)
	if f.Upstream.BreakerEnabled != nil {
		cfg.BreakerEnabled = *f.Upstream.BreakerEnabled
	}
	if f.Upstream.EnableMarketplace != nil {
		cfg.EnableMarketplaceAPI = *f.Upstream.EnableMarketplace
	}
	setString(&cfg.GameVersion, f.Minecraft.GameVersion)
	setString(&cfg.Platform, f.Minecraft.Platform)
	setString(&cfg.PlayFabTitleID, f.Minecraft.PlayFabTitleID)
	setString(&cfg.AcceptLanguage, f.Minecraft.AcceptLanguage)
	setString(&cfg.ClientIDPurchase, f.Purchase.ClientID)
	setString(&cfg.EditionType, f.Purchase.EditionType)
	if f.Purchase.BuildPlatform > 0 {
		cfg.BuildPlatform = f.Purchase.BuildPlatform
	}
	if f.Purchase.RateLimit > 0 {
		cfg.PurchaseRateLimit = f.Purchase.RateLimit
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, os.Getenv("SERVER_PORT"))
	setString(&cfg.Env, os.Getenv("ENVIRONMENT"))
	setString(&cfg.JWTSecret, os.Getenv("JWT_SECRET"))
	setString(&cfg.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&cfg.GameVersion, os.Getenv("MC_GAME_VERSION"))
	setString(&cfg.Platform, os.Getenv("MC_PLATFORM"))
	setString(&cfg.PlayFabTitleID, os.Getenv("PLAYFAB_TITLE_ID"))
	setString(&cfg.AcceptLanguage, os.Getenv("ACCEPT_LANGUAGE"))
	setString(&cfg.ClientIDPurchase, os.Getenv("CLIENT_ID_PURCHASE"))
	setString(&cfg.EditionType, os.Getenv("EDITION_TYPE"))
	setString(&cfg.MarketplaceAPIBase, os.Getenv("MARKETPLACE_API_BASE"))
	setString(&cfg.AuthBaseURL, os.Getenv("AUTH_BASE_URL"))
	setString(&cfg.EntitlementsBaseURL, os.Getenv("ENTITLEMENTS_BASE_URL"))
	setString(&cfg.StoreBaseURL, os.Getenv("STORE_BASE_URL"))
	setString(&cfg.PlayFabBaseURL, os.Getenv("PLAYFAB_BASE_URL"))

	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.CORSOrigins = parseCSV(v)
	}

	// LOG_PRETTY defaults to on outside production.
	if !cfg.logPrettySet {
		cfg.LogPretty = cfg.Env != "production"
	}
	if err := setBool(&cfg.LogPretty, "LOG_PRETTY"); err != nil {
		return err
	}
	if err := setBool(&cfg.BreakerEnabled, "BREAKER_ENABLED"); err != nil {
		return err
	}
	if err := setBool(&cfg.EnableMarketplaceAPI, "ENABLE_MARKETPLACE_API"); err != nil {
		return err
	}

	if v := os.Getenv("HTTP_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_TIMEOUT_MS: %w", err)
		}
		cfg.HTTPTimeout = time.Duration(ms) * time.Millisecond
	}
	if err := setInt(&cfg.BuildPlatform, "BUILD_PLAT"); err != nil {
		return err
	}
	if err := setInt(&cfg.PurchaseRateLimit, "PURCHASE_RATE_LIMIT"); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = i
	return nil
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
