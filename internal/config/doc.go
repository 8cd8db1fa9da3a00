// Package config loads, normalizes, and validates dubsync configuration.
//
// Configuration lives in a TOML file (default ~/.config/dubsync/config.toml)
// decoded on top of Default(). Load expands paths, applies environment
// fallbacks for credentials, and validates every section so downstream
// packages can trust the values they receive. The sync policy constants
// (merge gap, silence thresholds, speed cap, drift ceiling) are exposed here
// rather than hard-coded in the engine.
package config
