// Package config provides configuration structures and utilities for listingscan.
// It defines the gateway and site settings, browser and timing options,
// mapper bounds, and the YAML site profile that overrides selectors and
// block signatures without code changes.
package config
