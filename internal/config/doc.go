// Package config holds the run settings of imgshare: size floor, the two
// concurrency bounds, egress proxies, corpus folders and target intake.
//
// A Config is built with NewConfig, optionally overlaid with a YAML file
// (.imgshare) and CLI flags, then checked once with Validate before any
// network call is made. Every validation error wraps
// model.ErrConfiguration.
package config
