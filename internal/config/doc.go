// Package config loads the layered service configuration: an optional YAML file
// in the working directory, then environment variables under a fixed prefix.
// Precedence: Environment variables > YAML config > Defaults. The result is an
// AppConfig that pairs the shared logging section with an application-defined
// section decoded from the same flattened namespace.
package config
