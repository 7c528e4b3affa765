// Package config loads, validates, and provides defaults for lumen's TOML
// configuration.
//
// Load resolves the config path (flag value, then ~/.config/lumen/config.toml,
// then ./lumen.toml), decodes it over Default(), normalizes paths and
// enumerations, and validates values that would otherwise fail mid-run. The
// embedded sample_config.toml documents every knob and backs `lumen config
// init`.
package config
