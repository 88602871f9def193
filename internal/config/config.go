// Package config reads the pipeline worker configuration from the environment.
package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"github.com/askiada/go-pipeline-services/pkg/provider"
)

const prefix = "PIPELINE_"

var ErrInvalid = errors.New("invalid configuration")

type Kafka struct {
	Topic   string
	GroupID string
	Brokers []string
}

// Enabled reports whether input is read from Kafka instead of stdin.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type S3 struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

func (s S3) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// Remote is an optional HTTP step appended to the main phase.
type Remote struct {
	URL     string
	Method  string
	Timeout time.Duration
	Backoff time.Duration
	Retries int
	RPS     float64
}

func (r Remote) Enabled() bool {
	return r.URL != ""
}

type Config struct {
	Name                string
	ProviderMode        provider.Mode
	MetricsAddr         string
	DrawFile            string
	Steps               []string
	Kafka               Kafka
	S3                  S3
	Remote              Remote
	QueueCapacity       int
	PoolSize            int
	MaxJumps            int
	ShutdownTimeout     time.Duration
	LogLevel            zapcore.Level
	LogDevelopment      bool
	ShortCircuitOnError bool
}

// Load reads the optional env files, then the environment. A missing file is not an error.
// Variables already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Wrap(err, "unable to load env file")
	}

	return FromLookup(os.LookupEnv)
}

// FromLookup reads the configuration with lookup.
func FromLookup(lookup func(key string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		Name:                r.string("NAME", "text-clean"),
		Steps:               r.list("STEPS", "strip,normalize_whitespace,to_lower"),
		QueueCapacity:       r.int("QUEUE_CAPACITY", 1024),
		ProviderMode:        provider.Mode(r.string("PROVIDER_MODE", string(provider.ModePooled))),
		PoolSize:            r.int("POOL_SIZE", 0),
		MaxJumps:            r.int("MAX_JUMPS", 1000),
		ShortCircuitOnError: r.bool("SHORT_CIRCUIT_ON_ERROR", true),
		LogLevel:            r.level("LOG_LEVEL", zapcore.InfoLevel),
		LogDevelopment:      r.bool("LOG_DEV", false),
		MetricsAddr:         r.string("METRICS_ADDR", ""),
		DrawFile:            r.string("DRAW_FILE", ""),
		ShutdownTimeout:     r.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Kafka: Kafka{
			Brokers: r.list("KAFKA_BROKERS", ""),
			Topic:   r.string("KAFKA_TOPIC", ""),
			GroupID: r.string("KAFKA_GROUP_ID", "pipeline-worker"),
		},
		S3: S3{
			Endpoint:  r.string("S3_ENDPOINT", ""),
			AccessKey: r.string("S3_ACCESS_KEY", ""),
			SecretKey: r.string("S3_SECRET_KEY", ""),
			Bucket:    r.string("S3_BUCKET", ""),
			Prefix:    r.string("S3_PREFIX", "reports"),
			UseSSL:    r.bool("S3_USE_SSL", false),
		},
		Remote: Remote{
			URL:     r.string("REMOTE_URL", ""),
			Method:  r.string("REMOTE_METHOD", "POST"),
			Timeout: r.duration("REMOTE_TIMEOUT", time.Second),
			Backoff: r.duration("REMOTE_BACKOFF", 0),
			Retries: r.int("REMOTE_RETRIES", 0),
			RPS:     r.float("REMOTE_RPS", 0),
		},
	}

	if r.err != nil {
		return Config{}, r.err
	}

	err := cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the values that cannot be checked while parsing.
func (c Config) Validate() error {
	_, err := provider.ParseMode(string(c.ProviderMode))

	switch {
	case c.Name == "":
		return errors.Wrap(ErrInvalid, prefix+"NAME must be set")
	case err != nil:
		return errors.Wrap(ErrInvalid, err.Error())
	case c.QueueCapacity < 1:
		return errors.Wrapf(ErrInvalid, "%sQUEUE_CAPACITY must be >= 1, got %d", prefix, c.QueueCapacity)
	case c.PoolSize < 0:
		return errors.Wrapf(ErrInvalid, "%sPOOL_SIZE must be >= 0, got %d", prefix, c.PoolSize)
	case c.MaxJumps < 0:
		return errors.Wrapf(ErrInvalid, "%sMAX_JUMPS must be >= 0, got %d", prefix, c.MaxJumps)
	case len(c.Steps) == 0:
		return errors.Wrap(ErrInvalid, prefix+"STEPS must not be empty")
	case c.Remote.Retries < 0:
		return errors.Wrapf(ErrInvalid, "%sREMOTE_RETRIES must be >= 0, got %d", prefix, c.Remote.Retries)
	case c.S3.Enabled() && (c.S3.AccessKey == "" || c.S3.SecretKey == ""):
		return errors.Wrap(ErrInvalid, prefix+"S3_ACCESS_KEY and "+prefix+"S3_SECRET_KEY must be set")
	case len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "":
		return errors.Wrap(ErrInvalid, prefix+"KAFKA_TOPIC must be set")
	}

	return nil
}

// reader keeps the first parsing error.
type reader struct {
	lookup func(key string) (string, bool)
	err    error
}

func (r *reader) raw(key string) (string, bool) {
	value, ok := r.lookup(prefix + key)
	if !ok {
		return "", false
	}

	value = strings.TrimSpace(value)

	return value, value != ""
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = errors.Wrapf(ErrInvalid, "%s%s: %v", prefix, key, err)
	}
}

func (r *reader) string(key, def string) string {
	value, ok := r.raw(key)
	if !ok {
		return def
	}

	return value
}

func (r *reader) list(key, def string) []string {
	value := r.string(key, def)

	var items []string

	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}

	return items
}

func (r *reader) int(key string, def int) int {
	value, ok := r.raw(key)
	if !ok {
		return def
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, err)
		return def
	}

	return n
}

func (r *reader) float(key string, def float64) float64 {
	value, ok := r.raw(key)
	if !ok {
		return def
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}

	return f
}

func (r *reader) bool(key string, def bool) bool {
	value, ok := r.raw(key)
	if !ok {
		return def
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, err)
		return def
	}

	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	value, ok := r.raw(key)
	if !ok {
		return def
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, err)
		return def
	}

	return d
}

func (r *reader) level(key string, def zapcore.Level) zapcore.Level {
	value, ok := r.raw(key)
	if !ok {
		return def
	}

	lvl, err := zapcore.ParseLevel(value)
	if err != nil {
		r.fail(key, err)
		return def
	}

	return lvl
}
