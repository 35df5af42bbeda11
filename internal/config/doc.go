// Package config loads lexwork configuration.
//
// Configuration comes from three sources, later ones winning:
//
//   - built-in defaults (Default)
//   - a TOML or YAML file, chosen by extension
//   - LEXWORK_* environment variables
//
// The watcher subpackage reports changes to the file so hosts can reload.
package config
