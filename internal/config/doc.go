// Package config provides configuration structures and utilities for sitecrawl.
// It defines crawl settings, transport options, report preferences and the
// per-site overrides read from the .sitecrawl YAML file.
package config
