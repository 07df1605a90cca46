// Package bootstrap runs an application entry point inside the standard
// service lifecycle: configuration, logging and the shutdown signal are set
// up in a fixed order, and the log pipeline is always flushed on the way out.
package bootstrap

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eugenenazirov/svcharness/internal/config"
	"github.com/eugenenazirov/svcharness/internal/logging"
	"github.com/eugenenazirov/svcharness/internal/shutdown"
)

// Option configures Run.
type Option func(*options)

type options struct {
	config   []config.Option
	logging  []logging.Option
	registry *shutdown.Registry
}

// WithConfigFile overrides the YAML file read from the working directory.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.config = append(o.config, config.WithFile(path))
	}
}

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.config = append(o.config, config.WithEnvPrefix(prefix))
	}
}

// WithDefaults supplies the lowest-precedence configuration values.
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		o.config = append(o.config, config.WithDefaults(defaults))
	}
}

// WithStdout redirects records that would go to standard output.
func WithStdout(ws zapcore.WriteSyncer) Option {
	return func(o *options) {
		o.logging = append(o.logging, logging.WithStdout(ws))
	}
}

// WithSignalRegistry installs the interrupt handler on registry instead of
// the process-wide one.
func WithSignalRegistry(registry *shutdown.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// Run loads configuration, builds the root logger, installs the shutdown
// signal and hands all three to appMain. Setup failures panic with a message
// naming the failed stage. Whatever appMain returns is returned unchanged, and
// the log pipeline is flushed before Run returns or re-panics.
func Run[C, O any](appMain func(logger *zap.Logger, cfg C, sig *shutdown.Signal) O, opts ...Option) O {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load[C](o.config...)
	if err != nil {
		panic(fmt.Sprintf("unable to load application configuration: %v", err))
	}

	root, guard, err := logging.Build(cfg.Logging, o.logging...)
	if err != nil {
		panic(fmt.Sprintf("unable to open log destination: %v", err))
	}

	install := shutdown.Install
	if o.registry != nil {
		install = o.registry.Install
	}
	sig, err := install(root.Named("signal_handler"))
	if err != nil {
		root.Error("unable to set signal handler", zap.Error(err))
		release(guard)
		panic(fmt.Sprintf("unable to set signal handler: %v", err))
	}

	root.Info("application starting", zap.Any("config", cfg))

	// Runs on every way out of appMain, runtime.Goexit included.
	defer release(guard)
	defer func() {
		if r := recover(); r != nil {
			root.Error("application panicked", zap.Any("panic", r))
			root.Info("application exiting")
			release(guard)
			panic(r)
		}
	}()

	result := appMain(root.Named("main"), cfg.App, sig)

	root.Info("application exiting")
	release(guard)
	return result
}

// release flushes the pipeline. The logger is unusable afterwards, so a
// flush failure can only be reported on stderr.
func release(guard *logging.Guard) {
	if err := guard.Release(); err != nil {
		fmt.Fprintf(os.Stderr, "flush application logs: %v\n", err)
	}
}
