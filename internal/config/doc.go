// Package config loads, normalizes, and validates Tessera launcher configuration.
//
// Launcher settings live in a TOML file decoded over repository defaults. The
// database service's runtime settings come from a second, optional INI file in
// the application home that is shared with the worker process; LoadServiceConfig
// merges it over compiled-in defaults.
//
// Always obtain paths through this package so downstream code receives expanded,
// absolute directories and platform-correct binary names.
package config
