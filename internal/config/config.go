package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config carries every tunable of the import pipeline and the query
// executor. It is passed explicitly to the entry points that need it.
type Config struct {
	// DataDir holds the <relation>.tbl sources and the cached/ directory.
	DataDir string
	// UseSimdIntersection selects the lane-block intersection routines
	// instead of the scalar merge.
	UseSimdIntersection bool
	// LaneWidth of the intersection routines, 0 detects it from the CPU.
	LaneWidth int
	// VectorSize is the row count of one morsel for row-range work.
	VectorSize int
	// ClearCaches drops the OS page cache before every query.
	ClearCaches bool
	// Workers bounds the morsel worker pool.
	Workers int

	ListenAddr string
	// RateLimit caps API requests per second per client, 0 disables it.
	RateLimit   float64
	LogLevel    string
	Development bool
}

const (
	KeyDataDir     = "data-dir"
	KeySimd        = "simd-intersection"
	KeyLaneWidth   = "lane-width"
	KeyVectorSize  = "vector-size"
	KeyClearCaches = "clear-caches"
	KeyWorkers     = "workers"
	KeyListen      = "listen"
	KeyRateLimit   = "rate-limit"
	KeyLogLevel    = "log-level"
	KeyDevelopment = "development"
)

func Default() Config {
	return Config{
		DataDir:             ".",
		UseSimdIntersection: true,
		VectorSize:          1024,
		Workers:             runtime.NumCPU(),
		ListenAddr:          ":8080",
		RateLimit:           50,
		LogLevel:            "info",
	}
}

// NewViper returns a viper instance with defaults set and OFFSETDB_*
// environment variables bound, e.g. OFFSETDB_VECTOR_SIZE.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyDataDir, d.DataDir)
	v.SetDefault(KeySimd, d.UseSimdIntersection)
	v.SetDefault(KeyLaneWidth, d.LaneWidth)
	v.SetDefault(KeyVectorSize, d.VectorSize)
	v.SetDefault(KeyClearCaches, d.ClearCaches)
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyListen, d.ListenAddr)
	v.SetDefault(KeyRateLimit, d.RateLimit)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyDevelopment, d.Development)
	v.SetEnvPrefix("offsetdb")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads a Config out of v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DataDir:             v.GetString(KeyDataDir),
		UseSimdIntersection: v.GetBool(KeySimd),
		LaneWidth:           v.GetInt(KeyLaneWidth),
		VectorSize:          v.GetInt(KeyVectorSize),
		ClearCaches:         v.GetBool(KeyClearCaches),
		Workers:             v.GetInt(KeyWorkers),
		ListenAddr:          v.GetString(KeyListen),
		RateLimit:           v.GetFloat64(KeyRateLimit),
		LogLevel:            v.GetString(KeyLogLevel),
		Development:         v.GetBool(KeyDevelopment),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", c.VectorSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %g", c.RateLimit)
	}
	switch c.LaneWidth {
	case 0, 4, 8, 16:
	default:
		return fmt.Errorf("lane width must be 0, 4, 8 or 16, got %d", c.LaneWidth)
	}
	return nil
}
