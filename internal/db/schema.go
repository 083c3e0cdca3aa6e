package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// schema holds the DDL for every table the scanner owns. Statements are
// idempotent so Migrate can run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS simulation_state (
		id                 INTEGER PRIMARY KEY,
		version            INTEGER NOT NULL DEFAULT 0,
		base_date          DATE NOT NULL,
		trading_offset     INTEGER NOT NULL DEFAULT 0,
		is_cycling         BOOLEAN NOT NULL DEFAULT FALSE,
		cycling_started_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS scan_execution_state (
		id                  BIGSERIAL PRIMARY KEY,
		trading_date        DATE NOT NULL UNIQUE,
		ingestion_status    TEXT NOT NULL DEFAULT 'pending',
		scan_status         TEXT NOT NULL DEFAULT 'pending',
		data_source_status  TEXT NOT NULL DEFAULT 'unknown',
		execution_mode      TEXT,
		last_ingestion_time TIMESTAMPTZ,
		last_scan_time      TIMESTAMPTZ,
		stocks_ingested     INTEGER NOT NULL DEFAULT 0,
		signals_generated   INTEGER NOT NULL DEFAULT 0,
		error_message       TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS emergency_closure (
		date       DATE PRIMARY KEY,
		reason     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS stock_universe (
		symbol   TEXT PRIMARY KEY,
		name     TEXT NOT NULL DEFAULT '',
		sector   TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS stock_prices (
		id        BIGSERIAL PRIMARY KEY,
		symbol    TEXT NOT NULL,
		date      DATE NOT NULL,
		open      DOUBLE PRECISION NOT NULL,
		high      DOUBLE PRECISION NOT NULL,
		low       DOUBLE PRECISION NOT NULL,
		close     DOUBLE PRECISION NOT NULL,
		adj_close DOUBLE PRECISION NOT NULL,
		volume    BIGINT NOT NULL,
		UNIQUE (symbol, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_prices_symbol_date
		ON stock_prices (symbol, date DESC)`,

	`CREATE TABLE IF NOT EXISTS scanner_runs (
		id          UUID PRIMARY KEY,
		run_date    DATE NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		mode        TEXT NOT NULL,
		stocks_scanned    INTEGER NOT NULL DEFAULT 0,
		signals_generated INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS scan_results (
		id                 UUID PRIMARY KEY,
		run_id             UUID REFERENCES scanner_runs(id),
		symbol             TEXT NOT NULL,
		scan_date          DATE NOT NULL,
		rule_name          TEXT NOT NULL,
		rule_version       TEXT NOT NULL,
		confidence         DOUBLE PRECISION NOT NULL,
		parameter_snapshot TEXT NOT NULL,
		scanner_version    TEXT NOT NULL,
		metadata           JSONB,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_results_scan_date
		ON scan_results (scan_date DESC)`,
}

// Migrate applies the schema. Safe to call on every startup.
func (p *Pool) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	p.logger.Info("Database schema up to date", zap.Int("statements", len(schema)))
	return nil
}
