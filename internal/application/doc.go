// Package application wires the status API into an HTTP server and provides
// Main, the entry point the bootstrap harness runs. Main serves until the
// shutdown signal fires and then drains the server within the configured
// grace period.
package application
