package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Default() values.
type Config struct {
	Addr              string            `json:"addr" yaml:"addr" toml:"addr"`
	CatalogPath       string            `json:"catalog_path" yaml:"catalog_path" toml:"catalog_path"`
	MaxModels         int               `json:"max_models" yaml:"max_models" toml:"max_models"`
	SafetyMarginMB    int               `json:"vram_safety_margin_mb" yaml:"vram_safety_margin_mb" toml:"vram_safety_margin_mb"`
	DefaultEstimateMB int               `json:"default_estimate_mb" yaml:"default_estimate_mb" toml:"default_estimate_mb"`
	IdleTimeoutMin    int               `json:"idle_timeout_minutes" yaml:"idle_timeout_minutes" toml:"idle_timeout_minutes"`
	PollIntervalSec   int               `json:"poll_interval_seconds" yaml:"poll_interval_seconds" toml:"poll_interval_seconds"`
	AlertThresholdPct int               `json:"alert_threshold_pct" yaml:"alert_threshold_pct" toml:"alert_threshold_pct"`
	MaxQueueDepth     int               `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	ProviderRetries   int               `json:"provider_retries" yaml:"provider_retries" toml:"provider_retries"`
	BusEndpoint       string            `json:"bus_endpoint" yaml:"bus_endpoint" toml:"bus_endpoint"`
	Providers         map[string]string `json:"providers" yaml:"providers" toml:"providers"`
}

// Default returns the baseline configuration before file/env/flag overrides.
func Default() Config {
	return Config{
		Addr:              ":8080",
		CatalogPath:       "catalog.yaml",
		SafetyMarginMB:    2048,
		DefaultEstimateMB: 8192,
		IdleTimeoutMin:    5,
		PollIntervalSec:   2,
		AlertThresholdPct: 90,
		MaxQueueDepth:     64,
		ProviderRetries:   2,
		Providers:         map[string]string{},
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Merge overlays non-zero fields of over onto base.
func Merge(base, over Config) Config {
	if over.Addr != "" {
		base.Addr = over.Addr
	}
	if over.CatalogPath != "" {
		base.CatalogPath = over.CatalogPath
	}
	if over.MaxModels != 0 {
		base.MaxModels = over.MaxModels
	}
	if over.SafetyMarginMB != 0 {
		base.SafetyMarginMB = over.SafetyMarginMB
	}
	if over.DefaultEstimateMB != 0 {
		base.DefaultEstimateMB = over.DefaultEstimateMB
	}
	if over.IdleTimeoutMin != 0 {
		base.IdleTimeoutMin = over.IdleTimeoutMin
	}
	if over.PollIntervalSec != 0 {
		base.PollIntervalSec = over.PollIntervalSec
	}
	if over.AlertThresholdPct != 0 {
		base.AlertThresholdPct = over.AlertThresholdPct
	}
	if over.MaxQueueDepth != 0 {
		base.MaxQueueDepth = over.MaxQueueDepth
	}
	if over.ProviderRetries != 0 {
		base.ProviderRetries = over.ProviderRetries
	}
	if over.BusEndpoint != "" {
		base.BusEndpoint = over.BusEndpoint
	}
	for name, url := range over.Providers {
		if base.Providers == nil {
			base.Providers = map[string]string{}
		}
		base.Providers[name] = url
	}
	return base
}

// ApplyEnv overlays environment variables onto cfg. Unset or malformed
// variables leave the existing value in place.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("VRAMD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("BUS_ENDPOINT"); v != "" {
		cfg.BusEndpoint = v
	}
	envInt("MAX_MODELS", &cfg.MaxModels)
	envInt("VRAM_SAFETY_MARGIN_MB", &cfg.SafetyMarginMB)
	envInt("DEFAULT_ESTIMATE_MB", &cfg.DefaultEstimateMB)
	envInt("IDLE_TIMEOUT_MINUTES", &cfg.IdleTimeoutMin)
	envInt("POLL_INTERVAL_SECONDS", &cfg.PollIntervalSec)
	envInt("ALERT_THRESHOLD_PCT", &cfg.AlertThresholdPct)
	envInt("MAX_QUEUE_DEPTH", &cfg.MaxQueueDepth)
	if cfg.Providers == nil {
		cfg.Providers = map[string]string{}
	}
	for name, key := range map[string]string{
		"llm-runner":    "LLM_RUNNER_URL",
		"batch-engine":  "BATCH_ENGINE_URL",
		"speech-engine": "SPEECH_ENGINE_URL",
	} {
		if v := os.Getenv(key); v != "" {
			cfg.Providers[name] = v
		}
	}
	return cfg
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

// IdleTimeout returns the idle timeout as a duration.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMin) * time.Minute
}

// PollInterval returns the telemetry poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}
