// Package config loads, normalizes, and validates pmxfactory configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// PMX_MOD_HOST_URL. The Config type centralizes the backend endpoints, plugin
// URIs, port layout, and journal settings the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs, canonical log formats, and clear validation errors.
package config
