// Package logging configures slog for the daemon and CLI. It provides a
// console handler with key=value output, a JSON handler for machine
// consumption, and shared attribute helpers so every component logs the
// same field names.
package logging
