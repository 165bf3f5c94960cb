// Package config loads, validates, and defaults the TOML configuration for
// the daemon and CLI.
package config
