package main

import (
	"testing"

	"github.com/eugenenazirov/svcharness/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	f, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags returned error: %v", err)
	}
	if f.configFile != config.DefaultFile {
		t.Fatalf("expected config file %s, got %s", config.DefaultFile, f.configFile)
	}
	if f.envPrefix != config.DefaultEnvPrefix {
		t.Fatalf("expected env prefix %s, got %s", config.DefaultEnvPrefix, f.envPrefix)
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	f, err := parseFlags([]string{"--config", "/etc/svc/Config.yaml", "--env-prefix", "SVC"})
	if err != nil {
		t.Fatalf("parseFlags returned error: %v", err)
	}
	if f.configFile != "/etc/svc/Config.yaml" {
		t.Fatalf("unexpected config file %s", f.configFile)
	}
	if f.envPrefix != "SVC" {
		t.Fatalf("unexpected env prefix %s", f.envPrefix)
	}
}

func TestParseFlagsRejectsUnknownFlag(t *testing.T) {
	if _, err := parseFlags([]string{"--port", "8080"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}
