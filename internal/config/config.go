package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	defaultPort           = "8000"
	defaultLogLevel       = "debug"
	defaultRateLimitRPS   = 25
	defaultRateLimitBurst = 50

	maxDurationSeconds = int64(math.MaxInt64 / time.Second)
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	AllowedOrigins       []string
	LogLevel             string
	Datasource           DatasourceConfig
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile string
	Port       *string
	LogLevel   *string
}

// LoadConfig reads the configuration document named by overrides.ConfigFile
// (if any) and resolves the final settings from it.
func LoadConfig(overrides *CLIOverrides) (Config, error) {
	store := NewStore(nil)
	if overrides != nil && overrides.ConfigFile != "" {
		loaded, err := LoadFile(overrides.ConfigFile, WithNumericText())
		if err != nil {
			return Config{}, err
		}
		store = loaded
	}
	return Resolve(store, overrides)
}

// Resolve builds a Config from defaults, environment variables, the store
// and CLI overrides, then validates it. A key that is present in the store
// but cannot be parsed fails the whole resolution.
func Resolve(store *Store, overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	applyEnvConfig(&cfg)

	if err := applyStore(&cfg, store); err != nil {
		return Config{}, fmt.Errorf("resolve settings: %w", err)
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		AllowedOrigins:       []string{"*"},
		LogLevel:             defaultLogLevel,
		Datasource:           defaultDatasource(),
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}

	if password := os.Getenv("DATASOURCE_PASSWORD"); password != "" {
		cfg.Datasource.Password = password
	}
}

func applyStore(cfg *Config, store *Store) error {
	r := settingsReader{store: store}

	r.str("server.port", &cfg.Port)
	r.duration("server.shutdown_grace_period", &cfg.ShutdownGracePeriod)
	r.duration("server.read_header_timeout", &cfg.ReadHeaderTimeout)
	r.duration("server.write_timeout", &cfg.WriteTimeout)
	r.duration("server.idle_timeout", &cfg.IdleTimeout)
	r.boolean("server.request_logging", &cfg.EnableRequestLogging)

	var rps int64
	if r.i64("server.rate_limit.rps", &rps) {
		cfg.RateLimitRPS = float64(rps)
	}
	var burst int64
	if r.i64("server.rate_limit.burst", &burst) {
		cfg.RateLimitBurst = int(burst)
	}
	r.array("server.cors.allowed_origins", &cfg.AllowedOrigins)

	if r.str("logging.level", &cfg.LogLevel) {
		cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	}

	applyDatasource(&r, &cfg.Datasource)

	return r.err
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(*overrides.LogLevel)
	}
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.LogLevel,
			validation.Required,
			validation.In("debug", "info", "warn", "error"),
		),
		validation.Field(&c.RateLimitRPS, validation.Min(0.0)),
		validation.Field(&c.RateLimitBurst, validation.Min(0)),
		validation.Field(&c.ShutdownGracePeriod, validation.Required),
		validation.Field(&c.Datasource),
	)
}

// settingsReader copies present values from a Store into settings fields
// and remembers the first parse error. Absent keys leave the field as is.
type settingsReader struct {
	store *Store
	err   error
}

func (r *settingsReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *settingsReader) str(key string, dst *string) bool {
	v, ok := r.store.GetString(key)
	if ok {
		*dst = v
	}
	return ok
}

func (r *settingsReader) boolean(key string, dst *bool) {
	v, ok, err := r.store.GetBool(key)
	switch {
	case err != nil:
		r.fail(err)
	case ok:
		*dst = v
	}
}

func (r *settingsReader) i64(key string, dst *int64) bool {
	v, ok, err := r.store.GetI64(key)
	if err != nil {
		r.fail(err)
		return false
	}
	if ok {
		*dst = v
	}
	return ok
}

func (r *settingsReader) u16(key string, dst *uint16) {
	v, ok, err := r.store.GetU16(key)
	switch {
	case err != nil:
		r.fail(err)
	case ok:
		*dst = v
	}
}

func (r *settingsReader) duration(key string, dst *time.Duration) {
	v, ok, err := r.store.GetDuration(key)
	switch {
	case err != nil:
		r.fail(err)
	case ok:
		*dst = v
	}
}

// seconds reads an integer number of seconds. Values that do not fit in a
// time.Duration are parse errors.
func (r *settingsReader) seconds(key string, dst *time.Duration) {
	var n int64
	if !r.i64(key, &n) {
		return
	}
	if n > maxDurationSeconds || n < -maxDurationSeconds {
		r.fail(&ParseError{Key: key, Value: strconv.FormatInt(n, 10), Type: "seconds", Err: strconv.ErrRange})
		return
	}
	*dst = time.Duration(n) * time.Second
}

func (r *settingsReader) array(key string, dst *[]string) {
	if values := r.store.GetArray(key); len(values) > 0 {
		*dst = values
	}
}
