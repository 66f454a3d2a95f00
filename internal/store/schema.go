// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package store

// createTables defines the nine logical collections named in
// SPEC_FULL §5, using DuckDB's native JSON type for the free-form
// confidence-factor and dietary-tag fields rather than a side table.
func (s *Store) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS discovered_venues (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			address_street TEXT,
			address_city TEXT NOT NULL,
			address_country TEXT NOT NULL,
			address_postal_code TEXT,
			latitude DOUBLE,
			longitude DOUBLE,
			platforms JSON NOT NULL,
			chain_id TEXT,
			confidence_score DOUBLE NOT NULL DEFAULT 0,
			confidence_factors JSON,
			status TEXT NOT NULL,
			rejection_reason TEXT,
			production_venue_id TEXT,
			promoted_at TIMESTAMPTZ,
			origin_strategy_id TEXT,
			origin_query TEXT,
			extraction_failures INTEGER NOT NULL DEFAULT 0,
			extraction_cooldown_until TIMESTAMPTZ,
			last_extracted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS discovered_dishes (
			id TEXT PRIMARY KEY,
			venue_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			category TEXT,
			product_tag TEXT,
			prices JSON,
			image_url TEXT,
			dietary_tags JSON,
			confidence_score DOUBLE NOT NULL DEFAULT 0,
			confidence_factors JSON,
			needs_review BOOLEAN NOT NULL DEFAULT false,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS production_venues (
			id TEXT PRIMARY KEY,
			staging_venue_id TEXT,
			name TEXT NOT NULL,
			type TEXT,
			address_street TEXT,
			address_city TEXT NOT NULL,
			address_country TEXT NOT NULL,
			address_postal_code TEXT,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			platforms JSON NOT NULL,
			chain_id TEXT,
			opening_hours JSON,
			hours_known BOOLEAN NOT NULL DEFAULT false,
			delivery_zones JSON,
			last_verified TIMESTAMPTZ,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS production_dishes (
			id TEXT PRIMARY KEY,
			staging_dish_id TEXT,
			venue_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			category TEXT,
			product_tag TEXT,
			prices JSON,
			image_url TEXT,
			dietary_tags JSON,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS discovery_strategies (
			id TEXT PRIMARY KEY,
			template TEXT NOT NULL,
			platform TEXT NOT NULL,
			country TEXT,
			tags JSON,
			uses INTEGER NOT NULL DEFAULT 0,
			successes INTEGER NOT NULL DEFAULT 0,
			false_positives INTEGER NOT NULL DEFAULT 0,
			deprecated BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS search_credentials (
			id TEXT PRIMARY KEY,
			api_key TEXT NOT NULL,
			search_engine_id TEXT NOT NULL,
			daily_quota INTEGER NOT NULL,
			queries_used_today INTEGER NOT NULL DEFAULT 0,
			last_reset_date TEXT NOT NULL,
			total_queries_all BIGINT NOT NULL DEFAULT 0,
			disabled BOOLEAN NOT NULL DEFAULT false,
			disabled_reason TEXT,
			consecutive_fails INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS sync_history (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			actor_id TEXT NOT NULL,
			promoted_venue_ids JSON,
			promoted_dish_ids JSON,
			added INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			errors JSON
		);`,
		`CREATE TABLE IF NOT EXISTS change_logs (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			action TEXT NOT NULL,
			collection TEXT NOT NULL,
			document_id TEXT NOT NULL,
			fields JSON,
			source_kind TEXT NOT NULL,
			source_actor_id TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS system_metadata (
			key TEXT PRIMARY KEY,
			value JSON NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS chains (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			verified_partner BOOLEAN NOT NULL DEFAULT false,
			countries JSON,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// createIndexes adds the lookups SPEC_FULL §5's operations need: status
// and country filters for the review queue, chain lookups for
// enumeration, created_at for retention sweeps, and the venue
// coordinate pair backing the /nearby prefilter.
func (s *Store) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_discovered_venues_status ON discovered_venues(status);`,
		`CREATE INDEX IF NOT EXISTS idx_discovered_venues_country ON discovered_venues(address_country);`,
		`CREATE INDEX IF NOT EXISTS idx_discovered_venues_chain ON discovered_venues(chain_id);`,
		`CREATE INDEX IF NOT EXISTS idx_discovered_venues_created_at ON discovered_venues(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_discovered_dishes_venue ON discovered_dishes(venue_id);`,
		`CREATE INDEX IF NOT EXISTS idx_discovered_dishes_status ON discovered_dishes(status);`,
		`CREATE INDEX IF NOT EXISTS idx_production_venues_coords ON production_venues(latitude, longitude);`,
		`CREATE INDEX IF NOT EXISTS idx_production_venues_chain ON production_venues(chain_id);`,
		`CREATE INDEX IF NOT EXISTS idx_production_venues_status ON production_venues(status);`,
		`CREATE INDEX IF NOT EXISTS idx_production_dishes_venue ON production_dishes(venue_id);`,
		`CREATE INDEX IF NOT EXISTS idx_search_credentials_engine ON search_credentials(search_engine_id);`,
		`CREATE INDEX IF NOT EXISTS idx_discovery_strategies_platform ON discovery_strategies(platform);`,
		`CREATE INDEX IF NOT EXISTS idx_change_logs_document ON change_logs(collection, document_id);`,
		`CREATE INDEX IF NOT EXISTS idx_change_logs_timestamp ON change_logs(timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_chains_verified_partner ON chains(verified_partner);`,
	}

	for _, stmt := range indexes {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
