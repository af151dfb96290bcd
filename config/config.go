package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig controla el comportamiento del engine de trading.
type EngineConfig struct {
	Mode                  string   `yaml:"mode"`               // paper | live
	TickSeconds           int      `yaml:"tick_seconds"`
	LearnMinutes          int      `yaml:"learn_minutes"`
	ReconcileMinutes      int      `yaml:"reconcile_minutes"`
	FeeRate               float64  `yaml:"fee_rate"`
	InitialCapital        float64  `yaml:"initial_capital"`
	DefaultVolatility     float64  `yaml:"default_volatility"` // anualizada, fallback sin datos
	VolWindowMinutes      int      `yaml:"vol_window_minutes"`
	VelocityWindowSeconds int      `yaml:"velocity_window_seconds"`
	MaxLiveOrdersPerCycle int      `yaml:"max_live_orders_per_cycle"`
	Assets                []string `yaml:"assets"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TickInterval devuelve el período del tick loop como time.Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickSeconds) * time.Second
}

// LearnInterval devuelve la cadencia del learner.
func (c *Config) LearnInterval() time.Duration {
	return time.Duration(c.Engine.LearnMinutes) * time.Minute
}

// ReconcileInterval devuelve la cadencia de reconciliación (solo live).
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Engine.ReconcileMinutes) * time.Minute
}

// VolWindow devuelve la ventana de volatilidad realizada.
func (c *Config) VolWindow() time.Duration {
	return time.Duration(c.Engine.VolWindowMinutes) * time.Minute
}

// VelocityWindow devuelve la ventana corta de velocity del spot.
func (c *Config) VelocityWindow() time.Duration {
	return time.Duration(c.Engine.VelocityWindowSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BOT_MODE"); v != "" {
		cfg.Engine.Mode = v
	}
	if v := os.Getenv("BOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.Mode == "" {
		cfg.Engine.Mode = "paper"
	}
	if cfg.Engine.TickSeconds <= 0 {
		cfg.Engine.TickSeconds = 10
	}
	if cfg.Engine.LearnMinutes <= 0 {
		cfg.Engine.LearnMinutes = 15
	}
	if cfg.Engine.ReconcileMinutes <= 0 {
		cfg.Engine.ReconcileMinutes = 5
	}
	if cfg.Engine.FeeRate <= 0 {
		cfg.Engine.FeeRate = 0.02 // 2% default conservador
	}
	if cfg.Engine.InitialCapital <= 0 {
		cfg.Engine.InitialCapital = 1000
	}
	if cfg.Engine.DefaultVolatility <= 0 {
		cfg.Engine.DefaultVolatility = 0.60
	}
	if cfg.Engine.VolWindowMinutes <= 0 {
		cfg.Engine.VolWindowMinutes = 30
	}
	if cfg.Engine.VelocityWindowSeconds <= 0 {
		cfg.Engine.VelocityWindowSeconds = 120
	}
	if cfg.Engine.MaxLiveOrdersPerCycle <= 0 {
		cfg.Engine.MaxLiveOrdersPerCycle = 2
	}
	if len(cfg.Engine.Assets) == 0 {
		cfg.Engine.Assets = []string{"BTC", "ETH"}
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "gembot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate rechaza combinaciones que no tienen modo de funcionar.
func (c *Config) validate() error {
	if c.Engine.Mode != "paper" && c.Engine.Mode != "live" {
		return fmt.Errorf("config: mode inválido %q (paper|live)", c.Engine.Mode)
	}
	return nil
}
