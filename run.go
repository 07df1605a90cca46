package svcharness

import (
	"go.uber.org/zap"

	"github.com/eugenenazirov/svcharness/internal/bootstrap"
	"github.com/eugenenazirov/svcharness/internal/config"
	"github.com/eugenenazirov/svcharness/internal/shutdown"
)

type (
	// Signal reports whether the process has been asked to stop.
	Signal = shutdown.Signal
	// Option configures Run.
	Option = bootstrap.Option
	// LoggingConfig is the `logging` configuration section.
	LoggingConfig = config.LoggingConfig
)

// ErrAlreadyInstalled is reported when the interrupt handler is installed twice.
var ErrAlreadyInstalled = shutdown.ErrAlreadyInstalled

var (
	WithConfigFile = bootstrap.WithConfigFile
	WithEnvPrefix  = bootstrap.WithEnvPrefix
	WithDefaults   = bootstrap.WithDefaults
	WithStdout     = bootstrap.WithStdout
)

// Run executes appMain inside the service lifecycle and returns its result.
// See the package documentation for the order of operations.
func Run[C, O any](appMain func(logger *zap.Logger, cfg C, sig *Signal) O, opts ...Option) O {
	return bootstrap.Run(appMain, opts...)
}
