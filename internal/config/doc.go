// Package config loads, validates, and normalizes matte's TOML
// configuration.
//
// Configuration supplies defaults; command-line flags override individual
// values per run. Load applies defaults, expands ~ in path fields, and
// validates the result, so downstream code can rely on absolute paths and
// sane values.
package config
