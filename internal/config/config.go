package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is the configuration file looked up in the working directory.
	DefaultFile = "Config.yaml"
	// DefaultEnvPrefix is prepended, with an underscore, to every environment key.
	DefaultEnvPrefix = "APP"

	defaultBufferSize = 1024
	envSeparator      = "_"
)

// Format selects the encoding of log records.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// LoggingConfig is the optional `logging` section shared by every service.
type LoggingConfig struct {
	// Level is nil when unset or explicitly null; EffectiveLevel applies the default.
	Level      *zapcore.Level `mapstructure:"level"`
	Format     Format         `mapstructure:"format" validate:"required"`
	Path       string         `mapstructure:"path"`
	BufferSize int            `mapstructure:"buffer_size" validate:"gte=0"`
}

// DefaultLoggingConfig returns the configuration used when no logging section
// is present: info level, JSON records, standard output.
func DefaultLoggingConfig() LoggingConfig {
	level := zapcore.InfoLevel
	return LoggingConfig{
		Level:      &level,
		Format:     FormatJSON,
		BufferSize: defaultBufferSize,
	}
}

// EffectiveLevel returns the configured level or info when none is set.
func (c LoggingConfig) EffectiveLevel() zapcore.Level {
	if c.Level == nil {
		return zapcore.InfoLevel
	}
	return *c.Level
}

// QueueSize returns the capacity of the asynchronous log queue.
func (c LoggingConfig) QueueSize() int {
	if c.BufferSize <= 0 {
		return defaultBufferSize
	}
	return c.BufferSize
}

// AppConfig pairs the logging section with the application section T. Both
// are read from the same namespace: `logging` belongs to Logging, every other
// key belongs to App.
type AppConfig[T any] struct {
	Logging *LoggingConfig `mapstructure:"logging"`
	App     T              `mapstructure:",squash"`
}

// loggingSection is decoded in the first pass so that field errors are
// reported with their full key path.
type loggingSection struct {
	Logging *LoggingConfig `mapstructure:"logging"`
}

// Option customises a Loader.
type Option func(*Loader)

// WithFile overrides the configuration file path.
func WithFile(path string) Option {
	return func(l *Loader) {
		l.file = path
	}
}

// WithEnvPrefix overrides the environment variable prefix (without the trailing separator).
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithDefaults registers values used when neither the file nor the environment sets a key.
// Nested keys use dots, e.g. "rate_limit.rps".
func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) {
		for key, value := range defaults {
			l.defaults[key] = value
		}
	}
}

// Loader resolves configuration layers into an AppConfig.
type Loader struct {
	file      string
	envPrefix string
	defaults  map[string]any
	validate  *validator.Validate
}

// New creates a Loader reading DefaultFile and DefaultEnvPrefix unless overridden.
func New(opts ...Option) *Loader {
	l := &Loader{
		file:      DefaultFile,
		envPrefix: DefaultEnvPrefix,
		defaults:  make(map[string]any),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds a Loader from opts and resolves an AppConfig[T].
func Load[T any](opts ...Option) (*AppConfig[T], error) {
	return LoadWith[T](New(opts...))
}

// LoadWith resolves an AppConfig[T] using l.
// Precedence: Environment variables > YAML config > Defaults
func LoadWith[T any](l *Loader) (*AppConfig[T], error) {
	v := viper.New()
	for key, value := range l.defaults {
		v.SetDefault(key, value)
	}

	if err := l.mergeFile(v); err != nil {
		return nil, err
	}

	open := !hasFixedShape(reflect.TypeFor[T]())
	if err := l.bindEnv(v, reflect.TypeFor[AppConfig[T]](), open); err != nil {
		return nil, newError(StageEnvironment, err)
	}

	settings := v.AllSettings()
	cfg := &AppConfig[T]{}

	var decodeErr error
	var section loggingSection
	if err := decode(settings, &section); err != nil {
		decodeErr = multierr.Append(decodeErr, err)
	}
	cfg.Logging = section.Logging
	if err := decode(settings, &cfg.App); err != nil {
		decodeErr = multierr.Append(decodeErr, err)
	}
	if decodeErr != nil {
		return nil, newError(StageDecode, decodeErr)
	}

	if err := l.validateConfig(cfg.Logging, &cfg.App); err != nil {
		return nil, newError(StageValidate, err)
	}

	return cfg, nil
}

// mergeFile merges the YAML file into v. A missing file is not an error.
func (l *Loader) mergeFile(v *viper.Viper) error {
	if l.file == "" {
		return nil
	}

	raw, err := loadFromFile(l.file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return newError(StageFile, err)
	}
	if len(raw) == 0 {
		return nil
	}

	if err := v.MergeConfigMap(raw); err != nil {
		return newError(StageFile, fmt.Errorf("merge %s: %w", l.file, err))
	}
	return nil
}

// loadFromFile loads a YAML document into a generic map.
func loadFromFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", path, err)
	}
	return raw, nil
}

// validateConfig checks the `validate` struct tags of both sections.
func (l *Loader) validateConfig(logging *LoggingConfig, app any) error {
	var errs error
	if logging != nil {
		if err := l.validate.Struct(logging); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("logging: %w", err))
		}
	}

	if target, ok := structTarget(app); ok {
		if err := l.validate.Struct(target); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// structTarget returns a non-nil pointer to the struct behind v, if any.
// Application sections that are maps or scalars have no tags to validate.
func structTarget(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, false
	}
	return rv.Interface(), true
}

func envName(prefix, key string) string {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", envSeparator))
	if prefix == "" {
		return name
	}
	return prefix + envSeparator + name
}
