package tool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moyoez/pairdrop-go/types"
)

const (
	DefaultEndpoint        = "wss://healthdocx-node.onrender.com/ws/transfer"
	DefaultControlPort     = 53318
	DefaultMaxFileSize     = 100 * 1024 * 1024 // 100 MiB
	defaultConnectTimeout  = 20000
	defaultTransferTimeout = 60000
	defaultMaxAttempts     = 3
	defaultInitialDelay    = 1000
	defaultReconnectMin    = 0 // no limit
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		Endpoint:               DefaultEndpoint,
		ConnectTimeoutMs:       defaultConnectTimeout,
		TransferTimeoutMs:      defaultTransferTimeout,
		MaxAttempts:            defaultMaxAttempts,
		InitialDelayMs:         defaultInitialDelay,
		MaxFileSizeBytes:       DefaultMaxFileSize,
		ControlPort:            DefaultControlPort,
		ReconnectMinIntervalMs: defaultReconnectMin,
	}
}

// LoadConfig reads path (./config.yaml when empty). A missing file is created with defaults.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %w", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	sanitizeConfig(&cfg)
	CurrentConfig = cfg
	return cfg, nil
}

// sanitizeConfig replaces unusable values with defaults, so a half-edited file still runs.
func sanitizeConfig(cfg *types.AppConfig) {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	fixInt := func(name string, v *int, fallback int) {
		if *v <= 0 {
			DefaultLogger.Warnf("Invalid %s %d in config, using %d", name, *v, fallback)
			*v = fallback
		}
	}
	fixInt("connectTimeoutMs", &cfg.ConnectTimeoutMs, def.ConnectTimeoutMs)
	fixInt("transferTimeoutMs", &cfg.TransferTimeoutMs, def.TransferTimeoutMs)
	fixInt("maxAttempts", &cfg.MaxAttempts, def.MaxAttempts)
	fixInt("initialDelayMs", &cfg.InitialDelayMs, def.InitialDelayMs)
	fixInt("controlPort", &cfg.ControlPort, def.ControlPort)
	if cfg.ReconnectMinIntervalMs < 0 {
		DefaultLogger.Warnf("Invalid reconnectMinIntervalMs %d in config, using %d", cfg.ReconnectMinIntervalMs, def.ReconnectMinIntervalMs)
		cfg.ReconnectMinIntervalMs = def.ReconnectMinIntervalMs
	}
	if cfg.MaxFileSizeBytes <= 0 {
		DefaultLogger.Warnf("Invalid maxFileSizeBytes %d in config, using %d", cfg.MaxFileSizeBytes, def.MaxFileSizeBytes)
		cfg.MaxFileSizeBytes = def.MaxFileSizeBytes
	}
}

// ApplyFlagOverrides lets CLI flags win over the config file.
func ApplyFlagOverrides(cfg *types.AppConfig, flags types.Config) {
	if flags.UseEndpoint != "" {
		cfg.Endpoint = flags.UseEndpoint
	}
	if flags.UseApiBase != "" {
		cfg.APIBase = flags.UseApiBase
	}
}

func writeConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}

// Millis converts a config millisecond value into a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
