package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Network   NetworkConfig   `toml:"network"`
	Display   DisplayConfig   `toml:"display"`
	Field     FieldConfig     `toml:"field"`
	Physics   PhysicsConfig   `toml:"physics"`
	Assets    AssetsConfig    `toml:"assets"`
	Scripting ScriptingConfig `toml:"scripting"`
	Database  DatabaseConfig  `toml:"database"`
	Persist   PersistConfig   `toml:"persist"`
	Logging   LoggingConfig   `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	PublicURL string `toml:"public_url"` // base of the controller QR link
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	BindAddress        string        `toml:"bind_address"`
	TickRate           time.Duration `toml:"tick_rate"`
	InQueueSize        int           `toml:"in_queue_size"`
	OutQueueSize       int           `toml:"out_queue_size"`
	MaxMessagesPerTick int           `toml:"max_messages_per_tick"`
	SnapshotEvery      int           `toml:"snapshot_every"`
	WriteTimeout       time.Duration `toml:"write_timeout"`
	ReadTimeout        time.Duration `toml:"read_timeout"`
	AllowedOrigins     []string      `toml:"allowed_origins"`
}

// DisplayConfig sizes the viewport used until a display reports its own
// bounds. KeyHash is a bcrypt hash; when empty displays connect without a key.
type DisplayConfig struct {
	Width   float64 `toml:"width"`
	Height  float64 `toml:"height"`
	KeyHash string  `toml:"key_hash"`
}

// FieldConfig is the logical plane the entities move in. MotionScale is
// the number of motion units per field unit.
type FieldConfig struct {
	Width       float64       `toml:"width"`
	Height      float64       `toml:"height"`
	MotionScale float64       `toml:"motion_scale"`
	FireFlash   time.Duration `toml:"fire_flash"`
}

type PhysicsConfig struct {
	Gravity [3]float64 `toml:"gravity"`
}

type AssetsConfig struct {
	Root       string `toml:"root"`
	Manifest   string `toml:"manifest"`
	PlaneModel string `toml:"plane_model"` // manifest entry used for joining players
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type PersistConfig struct {
	FlushEvery int           `toml:"flush_every"`
	BatchSize  int           `toml:"batch_size"`
	Retention  time.Duration `toml:"retention"` // 0 keeps events forever
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Enabled           bool `toml:"enabled"`
	MessagesPerSecond int  `toml:"messages_per_second"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Defaults returns the built-in configuration used when no file overrides it.
func Defaults() *Config {
	return defaults()
}

func (c *Config) validate() error {
	if c.Network.TickRate <= 0 {
		return fmt.Errorf("network.tick_rate must be positive")
	}
	if c.Field.Width <= 0 || c.Field.Height <= 0 || c.Field.MotionScale == 0 {
		return fmt.Errorf("field dimensions and motion_scale must be non-zero")
	}
	if c.Network.SnapshotEvery <= 0 {
		c.Network.SnapshotEvery = 1
	}
	if c.Persist.FlushEvery <= 0 {
		c.Persist.FlushEvery = 1
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      "PlaneTilt",
			PublicURL: "http://localhost:3000/",
		},
		Network: NetworkConfig{
			BindAddress:        "0.0.0.0:3000",
			TickRate:           50 * time.Millisecond,
			InQueueSize:        128,
			OutQueueSize:       256,
			MaxMessagesPerTick: 32,
			SnapshotEvery:      2,
			WriteTimeout:       10 * time.Second,
			ReadTimeout:        60 * time.Second,
		},
		Display: DisplayConfig{
			Width:  800,
			Height: 600,
		},
		Field: FieldConfig{
			Width:       40,
			Height:      40,
			MotionScale: 20,
			FireFlash:   250 * time.Millisecond,
		},
		Physics: PhysicsConfig{
			Gravity: [3]float64{0, -9.82, 0},
		},
		Assets: AssetsConfig{
			Root:       "assets",
			Manifest:   "data/yaml/models.yaml",
			PlaneModel: "plane",
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Persist: PersistConfig{
			FlushEvery: 100,
			BatchSize:  512,
			Retention:  30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			MessagesPerSecond: 120,
		},
	}
}
