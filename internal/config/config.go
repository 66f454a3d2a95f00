// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package config loads and validates the discovery engine's
// configuration from a layered Koanf stack: built-in defaults, an
// optional JSON config file, then environment variable overrides.
package config

import (
	"fmt"
	"time"
)

// DiscoverySearchProvider selects which search backend a discovery run
// uses.
type DiscoverySearchProvider string

const (
	SearchProviderPrimary  DiscoverySearchProvider = "primary"
	SearchProviderFallback DiscoverySearchProvider = "fallback"
	SearchProviderMock     DiscoverySearchProvider = "mock"
)

// DiscoveryMode is one of the three run modes a discovery run can
// operate in.
type DiscoveryMode string

const (
	ModeExplore  DiscoveryMode = "explore"
	ModeEnumerate DiscoveryMode = "enumerate"
	ModeVerify   DiscoveryMode = "verify"
)

// ExtractionMode is one of the three run modes an extraction run can
// operate in.
type ExtractionMode string

const (
	ExtractionEnrich  ExtractionMode = "enrich"
	ExtractionRefresh ExtractionMode = "refresh"
	ExtractionVerify  ExtractionMode = "verify"
)

// ExtractionTarget selects which venues an extraction run targets.
type ExtractionTarget string

const (
	TargetAll    ExtractionTarget = "all"
	TargetChain  ExtractionTarget = "chain"
	TargetVenues ExtractionTarget = "venues"
)

// DiscoveryConfig is the "discovery" section of the config file.
type DiscoveryConfig struct {
	Enabled       bool                     `koanf:"enabled" validate:"-"`
	Mode          DiscoveryMode            `koanf:"mode" validate:"omitempty,oneof=explore enumerate verify"`
	Platforms     []string                 `koanf:"platforms"`
	Countries     []string                 `koanf:"countries"`
	Chains        []string                 `koanf:"chains"`
	MaxQueries    int                      `koanf:"maxQueries" validate:"gte=0"`
	SearchProvider DiscoverySearchProvider `koanf:"searchProvider" validate:"omitempty,oneof=primary fallback mock"`
	DryRun        bool                     `koanf:"dryRun"`
}

// ExtractionConfig is the "extraction" section of the config file.
type ExtractionConfig struct {
	Mode      ExtractionMode   `koanf:"mode" validate:"omitempty,oneof=enrich refresh verify"`
	Target    ExtractionTarget `koanf:"target" validate:"omitempty,oneof=all chain venues"`
	ChainID   string           `koanf:"chainId"`
	VenueIDs  []string         `koanf:"venueIds"`
	MaxVenues int              `koanf:"maxVenues" validate:"gte=0"`
	Learn     bool             `koanf:"learn"`
}

// RateLimitConfig bounds one host's request pacing, matching SPEC_FULL
// §5's jittered-delay-plus-ceiling model.
type RateLimitConfig struct {
	MinDelay           time.Duration `koanf:"minDelay"`
	MaxDelay           time.Duration `koanf:"maxDelay"`
	BatchSize          int           `koanf:"batchSize" validate:"gt=0"`
	BatchDelay         time.Duration `koanf:"batchDelay"`
	MaxPerMinute       int           `koanf:"maxPerMinute" validate:"gte=0"`
	MaxPerHour         int           `koanf:"maxPerHour" validate:"gte=0"`
	MaxPerDay          int           `koanf:"maxPerDay" validate:"gte=0"`
	GlobalDailyCeiling int           `koanf:"globalDailyCeiling" validate:"gte=0"`
}

// DatabaseConfig points at the embedded DuckDB file backing every
// logical collection in SPEC_FULL §5.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ServerConfig is the admin/public HTTP surface.
type ServerConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port" validate:"gte=1,lte=65535"`
	CORSOrigins    []string `koanf:"corsOrigins"`
	MetricsEnabled bool     `koanf:"metricsEnabled"`
}

// NotificationConfig is the optional webhook fired on sync completion.
type NotificationConfig struct {
	WebhookURL string `koanf:"webhookUrl" validate:"omitempty,url"`
}

// EventsConfig is the internal event bus (Watermill over NATS
// JetStream) carrying run-report completion events. Disabled by
// default: run reports are still returned to the caller regardless,
// so the bus is additive, not load-bearing.
type EventsConfig struct {
	Enabled     bool   `koanf:"enabled"`
	NATSURL     string `koanf:"natsUrl"`
	StreamName  string `koanf:"streamName"`
	DurableName string `koanf:"durableName"`
}

// Config is the full, validated configuration tree.
type Config struct {
	Discovery    DiscoveryConfig    `koanf:"discovery"`
	Extraction   ExtractionConfig   `koanf:"extraction"`
	RateLimit    RateLimitConfig    `koanf:"rateLimit"`
	Database     DatabaseConfig     `koanf:"database"`
	Server       ServerConfig       `koanf:"server"`
	Notification NotificationConfig `koanf:"notification"`
	Events       EventsConfig       `koanf:"events"`
	LogLevel     string             `koanf:"logLevel"`
	LogFormat    string             `koanf:"logFormat"`
}

// Default returns a Config with every field at its SPEC_FULL-documented
// default. Defaults are applied first, then overridden by the config
// file, then by environment variables — see koanf.go.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Enabled:        true,
			Mode:           ModeExplore,
			Platforms:      []string{"uber-eats", "wolt", "lieferando", "just-eat", "deliveroo", "smood", "eat-ch"},
			MaxQueries:     100,
			SearchProvider: SearchProviderPrimary,
		},
		Extraction: ExtractionConfig{
			Mode:      ExtractionEnrich,
			Target:    TargetAll,
			MaxVenues: 50,
		},
		RateLimit: RateLimitConfig{
			MinDelay:           30 * time.Second,
			MaxDelay:           60 * time.Second,
			BatchSize:          5,
			BatchDelay:         5 * time.Minute,
			MaxPerMinute:       2,
			MaxPerHour:         60,
			MaxPerDay:          500,
			GlobalDailyCeiling: 200,
		},
		Database: DatabaseConfig{Path: "discovery.duckdb"},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8787,
			MetricsEnabled: true,
		},
		Events: EventsConfig{
			Enabled:     false,
			NATSURL:     "nats://127.0.0.1:4222",
			StreamName:  "DISCOVERY_EVENTS",
			DurableName: "discovery-engine",
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Validate checks structural invariants beyond what struct tags
// express (cross-field rules, enum closures not worth a validator
// plugin).
func (c *Config) Validate() error {
	if c.RateLimit.MinDelay > c.RateLimit.MaxDelay {
		return fmt.Errorf("config: rateLimit.minDelay (%s) must not exceed maxDelay (%s)", c.RateLimit.MinDelay, c.RateLimit.MaxDelay)
	}
	if c.Extraction.Target == TargetChain && c.Extraction.ChainID == "" {
		return fmt.Errorf("config: extraction.target=chain requires extraction.chainId")
	}
	if c.Extraction.Target == TargetVenues && len(c.Extraction.VenueIDs) == 0 {
		return fmt.Errorf("config: extraction.target=venues requires extraction.venueIds")
	}
	return nil
}
