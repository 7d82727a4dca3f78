// Package config loads relaysync settings from TOML files, .env files and
// RELAY_* environment variables.
//
// A single file serves both binaries: relaychat reads the [client] and
// [outbox] tables, relayd reads [server]. Environment overrides are applied
// after the file and log a warning, rather than failing, when a value cannot
// be parsed.
package config
