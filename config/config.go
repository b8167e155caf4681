// Package config loads volcache sources from YAML files.
//
// A minimal procedural configuration:
//
//	source:
//	  kind: procedural
//	procedural:
//	  dimensions: [64, 128, 256]
//	  chunk_size: 32
//	cache:
//	  max_resident_bytes: 536870912
//
// A remote Zarr array behind HTTP:
//
//	source:
//	  kind: remote
//	remote:
//	  store: http
//	  url: https://example.org/embryo.zarr
//	  network_timeout: 10s
//	  object_cache_bytes: 67108864
//
// ${VAR} references are expanded from the environment before parsing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/volcache/codec"
)

// ErrInvalidConfig is returned for configurations that fail validation.
var ErrInvalidConfig = errors.New("invalid config")

// Source kinds.
const (
	KindProcedural = "procedural"
	KindRemote     = "remote"
)

// Remote store kinds.
const (
	StoreHTTP  = "http"
	StoreLocal = "local"
	StoreS3    = "s3"
	StoreMinio = "minio"
)

// Config is the root of a configuration file.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Cache      CacheConfig      `yaml:"cache"`
	Procedural ProceduralConfig `yaml:"procedural"`
	Remote     RemoteConfig     `yaml:"remote"`
	Log        LogConfig        `yaml:"log"`

	FocalLevel int `yaml:"focal_level"`
	Timepoint  int `yaml:"timepoint"`
	Channel    int `yaml:"channel"`
}

type SourceConfig struct {
	Kind string `yaml:"kind"`
}

type CacheConfig struct {
	Workers           int           `yaml:"workers"`
	MaxResidentChunks int           `yaml:"max_resident_chunks"`
	MaxResidentBytes  int64         `yaml:"max_resident_bytes"`
	BlockingWait      time.Duration `yaml:"blocking_wait"`
	MemoryLimitBytes  int64         `yaml:"memory_limit_bytes"`
}

type ProceduralConfig struct {
	Dimensions    []int64 `yaml:"dimensions"`
	ChunkSize     int64   `yaml:"chunk_size"`
	MaxIterations int     `yaml:"max_iterations"`
	Order         int     `yaml:"order"`
	MinScale      float64 `yaml:"min_scale"`
}

type RemoteConfig struct {
	Store string `yaml:"store"`

	// http
	URL string `yaml:"url"`
	// local
	Path string `yaml:"path"`
	// s3 and minio
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Insecure  bool   `yaml:"insecure"`

	Levels             int           `yaml:"levels"`
	Codec              string        `yaml:"codec"`
	MinScale           float64       `yaml:"min_scale"`
	NetworkTimeout     time.Duration `yaml:"network_timeout"`
	FetchConcurrency   int64         `yaml:"fetch_concurrency"`
	IOLimitBytesPerSec int64         `yaml:"io_limit_bytes_per_sec"`
	ObjectCacheBytes   int64         `yaml:"object_cache_bytes"`
	DiskCacheDir       string        `yaml:"disk_cache_dir"`
	DiskCacheBytes     int64         `yaml:"disk_cache_bytes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for omitted fields: a small
// procedural pyramid with text logging at info level.
func Default() Config {
	return Config{
		Source: SourceConfig{Kind: KindProcedural},
		Procedural: ProceduralConfig{
			Dimensions: []int64{32, 64, 128},
			ChunkSize:  32,
		},
		Remote: RemoteConfig{Store: StoreHTTP},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates the file at path. An empty path yields Default.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML data on top of Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	c.Remote.Store = strings.ToLower(strings.TrimSpace(c.Remote.Store))
	c.Remote.Codec = strings.ToLower(strings.TrimSpace(c.Remote.Codec))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate checks the configuration without touching any store.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Cache.Workers < 0 {
		add("cache.workers %d", c.Cache.Workers)
	}
	if c.Cache.MaxResidentChunks < 0 || c.Cache.MaxResidentBytes < 0 || c.Cache.MemoryLimitBytes < 0 {
		add("cache budgets must not be negative")
	}
	if c.Cache.BlockingWait < 0 {
		add("cache.blocking_wait %s", c.Cache.BlockingWait)
	}
	if c.FocalLevel < 0 || c.Timepoint < 0 || c.Channel < 0 {
		add("focal_level, timepoint and channel must not be negative")
	}
	if _, err := c.Log.level(); err != nil {
		add("log.level: %v", err)
	}
	if f := c.Log.Format; f != "" && f != "text" && f != "json" {
		add("log.format %q", f)
	}

	switch c.Source.Kind {
	case KindProcedural:
		p := c.Procedural
		if len(p.Dimensions) == 0 {
			add("procedural.dimensions is empty")
		}
		for i, d := range p.Dimensions {
			if d <= 0 {
				add("procedural.dimensions[%d] = %d", i, d)
			}
		}
		if p.ChunkSize <= 0 {
			add("procedural.chunk_size %d", p.ChunkSize)
		}
		if p.MaxIterations < 0 || p.Order < 0 || p.MinScale < 0 {
			add("procedural parameters must not be negative")
		}
		if c.FocalLevel >= len(p.Dimensions) && len(p.Dimensions) > 0 {
			add("focal_level %d with %d levels", c.FocalLevel, len(p.Dimensions))
		}
	case KindRemote:
		errs = append(errs, c.Remote.validate()...)
	default:
		add("source.kind %q", c.Source.Kind)
	}

	return errors.Join(errs...)
}

func (r RemoteConfig) validate() []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch r.Store {
	case StoreHTTP:
		if r.URL == "" {
			add("remote.url is required for store %q", r.Store)
		}
	case StoreLocal:
		if r.Path == "" {
			add("remote.path is required for store %q", r.Store)
		}
	case StoreS3:
		if r.Bucket == "" {
			add("remote.bucket is required for store %q", r.Store)
		}
	case StoreMinio:
		if r.Bucket == "" || r.Endpoint == "" {
			add("remote.bucket and remote.endpoint are required for store %q", r.Store)
		}
	default:
		add("remote.store %q", r.Store)
	}

	if r.Codec != "" {
		if _, err := codec.ByName(r.Codec); err != nil {
			add("remote.codec: %v", err)
		}
	}
	if r.Levels < 0 || r.MinScale < 0 || r.NetworkTimeout < 0 {
		add("remote parameters must not be negative")
	}
	if r.FetchConcurrency < 0 || r.IOLimitBytesPerSec < 0 || r.ObjectCacheBytes < 0 {
		add("remote limits must not be negative")
	}
	if r.DiskCacheDir != "" && r.DiskCacheBytes <= 0 {
		add("remote.disk_cache_bytes is required with remote.disk_cache_dir")
	}
	return errs
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	err := lvl.UnmarshalText([]byte(l.Level))
	return lvl, err
}
