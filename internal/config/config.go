// Package config loads the server's declarative JSON configuration and
// lets callers layer functional-option overrides on top of it, the same
// two-stage shape the teacher's own options.go applies: a GOPHerSettings-free
// base case with a handful of required/derived fields, then an ordered
// slice of Option funcs each mutating the config under construction.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/inhies/go-bytesize"
)

// Config is every deployment knob the server reads at startup. JSON tags
// name the on-disk config file's fields; Option overrides are applied
// after the file is parsed, so a deployment can keep most settings in
// the file and override a handful from flags/environment.
type Config struct {
	ListenAddr string `json:"listen_addr"`

	MasterDir   string `json:"master_dir"`
	RoutePrefix string `json:"route_prefix"`

	CacheDir        string  `json:"cache_dir"`
	MaxCacheSize    string  `json:"max_cache_size"` // e.g. "4GiB", parsed with go-bytesize
	MaxCacheBytes   int64   `json:"-"`
	MaxCacheFiles   int     `json:"max_cache_files"` // second eviction axis, alongside MaxCacheBytes
	CacheHysteresis float64 `json:"cache_hysteresis"`

	PolicyDir string `json:"policy_dir"`

	AllowUpscale  bool   `json:"allow_upscale"`
	ScaleQuality  string `json:"scale_quality"` // "fast" | "balanced" | "best"
	EncodeQuality int    `json:"encode_quality"`
	SkipMetadata  bool   `json:"skip_metadata"`

	CORSOrigins        []string `json:"cors_origins"`
	RateLimitBurst     int      `json:"rate_limit_burst"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`

	RenderWorkers        int `json:"render_workers"`         // 0 means 2*GOMAXPROCS
	RenderTimeoutSeconds int `json:"render_timeout_seconds"` // 0 disables the deadline

	PProfPort        int    `json:"pprof_port"`
	MetricsPort      int    `json:"metrics_port"`
	MetricsNamespace string `json:"metrics_namespace"`
	RequestLogLevel  int    `json:"request_log_level"` // 0=off 1=basic 2=verbose

	AdminEnabled bool `json:"admin_enabled"`

	DevMode bool `json:"dev_mode"`
}

// Default returns the zero-friction configuration the server falls back
// to when no config file is given, mirroring the teacher's own pattern
// of every With* Option layering onto sensible defaults.
func Default() Config {
	return Config{
		ListenAddr:         ":8080",
		MasterDir:          "./masters",
		RoutePrefix:        "/iiif",
		CacheDir:           "./cache",
		MaxCacheSize:       "4GiB",
		MaxCacheBytes:      4 << 30,
		MaxCacheFiles:      100_000,
		CacheHysteresis:    0.9,
		ScaleQuality:       "balanced",
		EncodeQuality:      90,
		RateLimitBurst:       20,
		RateLimitPerMinute:   80,
		RenderTimeoutSeconds: 30,
		RequestLogLevel:      1,
	}
}

// Load reads a JSON config file from path and resolves its byte-size
// strings, then applies opts in order.
func Load(path string, opts ...Option) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := cfg.resolveSizes(); err != nil {
		return Config{}, err
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg, nil
}

func (c *Config) resolveSizes() error {
	if c.MaxCacheSize == "" {
		return nil
	}
	bs, err := bytesize.Parse(c.MaxCacheSize)
	if err != nil {
		return fmt.Errorf("config: invalid max_cache_size %q: %w", c.MaxCacheSize, err)
	}
	c.MaxCacheBytes = int64(bs)
	return nil
}

// Option mutates a Config under construction, the same pattern as the
// teacher's garcon.Option.
type Option func(*Config)

// WithListenAddr overrides the HTTP listen address.
func WithListenAddr(addr string) Option {
	return func(c *Config) { c.ListenAddr = addr }
}

// WithCacheDir overrides the on-disk cache directory.
func WithCacheDir(dir string) Option {
	return func(c *Config) { c.CacheDir = dir }
}

// WithMaxCacheSize overrides the cache byte budget, parsed the same way
// as the config file's max_cache_size field.
func WithMaxCacheSize(size string) Option {
	return func(c *Config) {
		bs, err := bytesize.Parse(size)
		if err != nil {
			log.Panicf("config.WithMaxCacheSize(%q): %v", size, err)
		}
		c.MaxCacheSize = size
		c.MaxCacheBytes = int64(bs)
	}
}

// WithPolicyDir overrides the directory of .rego policy modules.
func WithPolicyDir(dir string) Option {
	return func(c *Config) { c.PolicyDir = dir }
}

// WithDev toggles development mode (rs/cors debug logging, and rate
// limits raised tenfold by the limiter), mirroring the teacher's
// WithDev(enable ...bool) zero-or-one-argument convention.
func WithDev(enable ...bool) Option {
	devMode := true
	if len(enable) > 0 {
		devMode = enable[0]
		if len(enable) >= 2 {
			log.Panic("config.WithDev() must be called with zero or one argument")
		}
	}
	return func(c *Config) { c.DevMode = devMode }
}

// WithLimiter overrides the per-IP rate limit, mirroring the teacher's
// WithLimiter(values ...int) variadic convention (burst[, perMinute]).
func WithLimiter(values ...int) Option {
	var burst, perMinute int
	switch len(values) {
	case 0:
		burst, perMinute = 20, 80
	case 1:
		burst = values[0]
		perMinute = 4 * burst
	case 2:
		burst, perMinute = values[0], values[1]
	default:
		log.Panic("config.WithLimiter() must be called with at most two arguments")
	}
	return func(c *Config) {
		c.RateLimitBurst = burst
		c.RateLimitPerMinute = perMinute
	}
}

// WithCORSOrigins overrides the allowed CORS origins.
func WithCORSOrigins(origins ...string) Option {
	return func(c *Config) { c.CORSOrigins = origins }
}

// WithPProf enables the pprof diagnostic server on the given port.
func WithPProf(port int) Option {
	return func(c *Config) { c.PProfPort = port }
}

// WithMetrics enables Prometheus export on the given port under namespace.
func WithMetrics(port int, namespace string) Option {
	return func(c *Config) {
		c.MetricsPort = port
		c.MetricsNamespace = namespace
	}
}
