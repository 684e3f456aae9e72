package config

import (
	"time"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "GIMME_"

// Settings is everything the server process reads from configuration.
type Settings struct {
	Server ServerSettings `config:"server"`
	Log    LogSettings    `config:"log"`
	Sink   SinkSettings   `config:"sink"`
	Redis  RedisSettings  `config:"redis"`
}

type ServerSettings struct {
	Addr              string        `config:"addr"`
	// AdminAddr serves /metrics and /debug/diagnostics. Empty disables it.
	AdminAddr         string        `config:"admin_addr"`
	ReadTimeout       time.Duration `config:"read_timeout"`
	WriteTimeout      time.Duration `config:"write_timeout"`
	IdleTimeout       time.Duration `config:"idle_timeout"`
	ReadHeaderTimeout time.Duration `config:"read_header_timeout"`
	ShutdownTimeout   time.Duration `config:"shutdown_timeout"`
	// MaxActive caps concurrent requests. Zero disables the cap.
	MaxActive         int64         `config:"max_active"`
}

type LogSettings struct {
	// Level is one of debug, info, warn or error.
	Level string `config:"level"`
	// Format is json or text.
	Format string `config:"format"`
}

type SinkSettings struct {
	Buffer         int           `config:"buffer"`
	EnqueueTimeout time.Duration `config:"enqueue_timeout"`
	// StoreSize bounds the in-memory store of recent diagnostics. Zero
	// disables it.
	StoreSize int `config:"store_size"`
	// Metrics counts diagnostics by kind on the metrics registry.
	Metrics bool `config:"metrics"`
}

// RedisSettings enables the Redis diagnostic sink when Addr is set.
type RedisSettings struct {
	Addr     string `config:"addr"`
	Password string `config:"password"`
	DB       int    `config:"db"`
	Key      string `config:"key"`
	MaxLen   int64  `config:"max_len"`
}

func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Addr:              ":8080",
			AdminAddr:         ":9090",
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxActive:         1024,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "json",
		},
		Sink: SinkSettings{
			Buffer:         1024,
			EnqueueTimeout: 50 * time.Millisecond,
			StoreSize:      256,
			Metrics:        true,
		},
		Redis: RedisSettings{
			Key:    "gimme:diagnostics",
			MaxLen: 10000,
		},
	}
}

// Decode reads Settings from p over DefaultSettings.
func Decode(p Provider) (Settings, error) {
	s := DefaultSettings()
	if err := p.Unmarshal("", &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Load reads path, which may be empty or missing, and GIMME_ variables. The
// returned Configuration keeps watching path until closed.
func Load(path string, opts ...Option) (*Configuration, Settings, error) {
	options := []Option{WithEnvPrefix(EnvPrefix)}
	if path != "" {
		options = append(options, WithConfigFile(path))
	}
	cfg, err := New(append(options, opts...)...)
	if err != nil {
		return nil, Settings{}, err
	}
	s, err := Decode(cfg)
	if err != nil {
		_ = cfg.Close()
		return nil, Settings{}, err
	}
	return cfg, s, nil
}
