// Package config loads, validates, and normalizes autodub configuration
// from TOML files, with provider credentials filled from the environment.
package config
