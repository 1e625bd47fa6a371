// Package file provides TOML-backed configuration with environment
// overrides. Values live in ~/.smartspd/config.toml; secrets such as the
// OpenAI API key come from the environment (optionally loaded from a .env
// file) and are never written to disk.
package file
