// Package svcharness runs a service entry point inside a fixed lifecycle.
//
// Run loads configuration (Config.yaml in the working directory, then APP_*
// environment variables), builds an asynchronous zap logger from the optional
// `logging` section, installs the SIGINT handler and calls the entry point
// with a logger named "main", the application section of the configuration
// and the shutdown Signal. Startup and exit are logged, and buffered log
// records are flushed before Run returns, including when the entry point
// panics.
//
//	type Config struct {
//		Workers int `mapstructure:"workers" validate:"required"`
//	}
//
//	func main() {
//		svcharness.Run(func(logger *zap.Logger, cfg Config, sig *svcharness.Signal) error {
//			for !sig.ShouldStop() {
//				// work
//			}
//			return nil
//		})
//	}
package svcharness
