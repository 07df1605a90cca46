// Package logging builds the asynchronous, level-filtered zap logger used by
// the harness. Records below the configured level are discarded on the
// calling goroutine; everything else is encoded, queued and written by a
// background goroutine until the returned Guard is released.
package logging

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eugenenazirov/svcharness/internal/config"
)

// Option customises Build.
type Option func(*options)

type options struct {
	stdout   zapcore.WriteSyncer
	terminal bool
}

// WithStdout replaces the process standard output as the default destination.
// A replaced stdout is never treated as a terminal.
func WithStdout(ws zapcore.WriteSyncer) Option {
	return func(o *options) {
		o.stdout = ws
		o.terminal = false
	}
}

// Guard owns the asynchronous stage of a logger built by Build. Releasing it
// is the only way to guarantee queued records reach the destination.
type Guard struct {
	writer *asyncWriter
	file   *os.File

	once sync.Once
	err  error
}

// Release flushes all queued records, then syncs and closes an owned log
// file. Only the first call does any work; later calls return its result.
func (g *Guard) Release() error {
	g.once.Do(func() {
		err := g.writer.close()
		if g.file != nil {
			err = multierr.Append(err, g.file.Sync())
			err = multierr.Append(err, g.file.Close())
		}
		g.err = err
	})
	return g.err
}

// Dropped reports how many records were written after Release.
func (g *Guard) Dropped() uint64 {
	return g.writer.dropped.Load()
}

// Build creates the root logger described by cfg, or by
// config.DefaultLoggingConfig when cfg is nil.
func Build(cfg *config.LoggingConfig, opts ...Option) (*zap.Logger, *Guard, error) {
	if cfg == nil {
		def := config.DefaultLoggingConfig()
		cfg = &def
	}

	o := options{
		stdout:   zapcore.Lock(os.Stdout),
		terminal: !color.NoColor,
	}
	for _, opt := range opts {
		opt(&o)
	}

	dest, file, err := openDestination(cfg.Path, o.stdout)
	if err != nil {
		return nil, nil, err
	}

	encoder, err := newEncoder(cfg.Format, file == nil && o.terminal)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, nil, err
	}

	writer := newAsyncWriter(dest, cfg.QueueSize())
	core := zapcore.NewCore(encoder, writer, cfg.EffectiveLevel())
	logger := zap.New(core,
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	return logger, &Guard{writer: writer, file: file}, nil
}

// openDestination opens path in create-or-append mode, or falls back to stdout.
func openDestination(path string, stdout zapcore.WriteSyncer) (zapcore.WriteSyncer, *os.File, error) {
	if path == "" {
		return stdout, nil, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return file, file, nil
}

func newEncoder(format config.Format, decorate bool) (zapcore.Encoder, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.StacktraceKey = "stacktrace"

	switch format {
	case config.FormatJSON, "":
		return zapcore.NewJSONEncoder(encCfg), nil
	case config.FormatText:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if decorate {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		return zapcore.NewConsoleEncoder(encCfg), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}
