package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/eugenenazirov/svcharness"
	"github.com/eugenenazirov/svcharness/internal/application"
	"github.com/eugenenazirov/svcharness/internal/config"
)

type flags struct {
	configFile string
	envPrefix  string
}

func parseFlags(args []string) (flags, error) {
	kingpinApp := kingpin.New("svcharness-server", "Status service running inside the svcharness bootstrap harness")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").Default(config.DefaultFile).String()
	envPrefix := kingpinApp.Flag("env-prefix", "Prefix of environment variables overriding the config file").Default(config.DefaultEnvPrefix).String()

	if _, err := kingpinApp.Parse(args); err != nil {
		return flags{}, err
	}
	return flags{configFile: *configFile, envPrefix: *envPrefix}, nil
}

func main() {
	f, err := parseFlags(os.Args[1:])
	kingpin.FatalIfError(err, "invalid arguments")

	err = svcharness.Run(application.Main,
		svcharness.WithDefaults(application.Defaults()),
		svcharness.WithConfigFile(f.configFile),
		svcharness.WithEnvPrefix(f.envPrefix),
	)
	if err != nil {
		os.Exit(1)
	}
}
