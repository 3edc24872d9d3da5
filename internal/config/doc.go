// Package config loads perch's TOML configuration.
//
// The file lives at ~/.config/perch/config.toml unless -config points
// elsewhere. A missing file is not an error, and every blank field falls back
// to its default:
//
//	server          = "127.0.0.1:8080"
//	capacity        = 10000
//	reconnect_delay = "2s"
//	status_poll     = "5s"
//	log_file        = "~/.local/state/perch/perch.log"
//
// Durations use Go syntax ("750ms", "1m"). Malformed TOML, unparseable or
// non-positive durations and a negative capacity all fail with a
// "parse config" error. Paths starting with ~ are expanded to the home
// directory and made absolute.
package config
