// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package store provides the embedded-DuckDB persistence layer backing
// every logical collection the discovery engine manages: staging and
// production venues and dishes, discovery strategies, search
// credentials, sync history, change logs, and run metadata. Adapted
// from the teacher's internal/database package (connection setup,
// extension preloading, versioned migrations, prepared statement
// caching), generalized from media-analytics tables to the discovery
// domain's schema.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/plantedfoods/discovery-engine/internal/config"
	"github.com/plantedfoods/discovery-engine/internal/logging"
)

// Store wraps the DuckDB connection and provides data access methods
// for every collection in SPEC_FULL §5.
type Store struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	jsonAvailable bool

	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

// Open creates a new database connection, preloads extensions, and
// runs schema initialization and migrations.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("store: create database directory %s: %w", dbDir, err)
		}
	}

	if err := preloadExtensions(); err != nil {
		logging.Warn().Err(err).Msg("failed to preload DuckDB extensions, WAL replay may fail if database has pending changes")
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, runtime.NumCPU())

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{
		conn:          conn,
		cfg:           cfg,
		jsonAvailable: true,
		stmtCache:     make(map[string]*sql.Stmt),
	}

	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := s.initialize(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}

	return s, nil
}

// Conn returns the underlying *sql.DB for packages needing direct access.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// initialize installs extensions, creates tables, runs migrations, and
// creates indexes, then checkpoints to flush the WAL.
func (s *Store) initialize() error {
	if err := s.installExtensions(); err != nil {
		return err
	}
	if err := s.createTables(); err != nil {
		return err
	}
	if err := s.runMigrations(); err != nil {
		return err
	}
	if err := s.createIndexes(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("failed to checkpoint after schema initialization")
	}
	return nil
}

func (s *Store) installExtensions() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := s.conn.ExecContext(ctx, "INSTALL json; LOAD json;"); err != nil {
		s.jsonAvailable = false
		logging.Warn().Err(err).Msg("json extension unavailable, confidence factors will be stored as plain text")
	}
	return nil
}

// preloadExtensions loads DuckDB extensions in an in-memory database
// before opening the main database file, so a pending WAL that
// references extension functions replays cleanly. See the teacher's
// database.preloadExtensions for the underlying DuckDB WAL-replay bug
// this works around.
func preloadExtensions() error {
	if os.Getenv("CI") != "" {
		return nil
	}

	conn, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return fmt.Errorf("open in-memory preload database: %w", err)
	}
	defer func() {
		conn.SetMaxOpenConns(0)
		_ = conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = conn.ExecContext(ctx, "LOAD json;")
	return nil
}

// Checkpoint forces DuckDB to flush the WAL into the main database file.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, "CHECKPOINT;")
	return err
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes every cached prepared statement and the connection,
// checkpointing first so the WAL doesn't need replay on next startup.
func (s *Store) Close() error {
	s.stmtCacheMu.Lock()
	for _, stmt := range s.stmtCache {
		_ = stmt.Close()
	}
	s.stmtCache = make(map[string]*sql.Stmt)
	s.stmtCacheMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("failed to checkpoint database before close")
	}
	return s.conn.Close()
}

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
