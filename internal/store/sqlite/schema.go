package sqlite

// SchemaSQL is the single source of truth for the engine's tables. Tests
// build their :memory: databases from this constant so repository code and
// test schemas cannot drift.
const SchemaSQL = `
-- Scored subjects. Enrichment results (coordinates, polyline) are written
-- back here atomically when a job completes.
CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	lat REAL,
	lng REAL,
	geo_label TEXT,
	polyline TEXT,
	enrich_status TEXT NOT NULL DEFAULT 'none'
		CHECK(enrich_status IN ('none', 'pending', 'done', 'failed')),
	enrich_error TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Raw signal counters/state per entity and scorer kind. Written by the
-- (external) event-ingestion path, read into snapshots by the scheduler.
CREATE TABLE IF NOT EXISTS signal_values (
	entity_id TEXT NOT NULL,
	scorer TEXT NOT NULL,
	name TEXT NOT NULL,
	value REAL NOT NULL DEFAULT 0,
	is_flag INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (entity_id, scorer, name)
);

-- Scorer outputs, one row per (entity, scorer, window). Recompute
-- overwrites, never appends.
CREATE TABLE IF NOT EXISTS score_results (
	entity_id TEXT NOT NULL,
	scorer TEXT NOT NULL,
	window TEXT NOT NULL,
	score REAL NOT NULL,
	band TEXT NOT NULL,
	breakdown TEXT NOT NULL DEFAULT '{}',
	signals TEXT NOT NULL DEFAULT '[]',
	badges TEXT NOT NULL DEFAULT '[]',
	snapshot TEXT NOT NULL DEFAULT '{}',
	computed_at DATETIME NOT NULL,
	PRIMARY KEY (entity_id, scorer, window)
);
CREATE INDEX IF NOT EXISTS idx_score_results_latest
	ON score_results (scorer, entity_id, computed_at DESC);

-- Anomalous recompute deltas awaiting manual audit.
CREATE TABLE IF NOT EXISTS anomaly_flags (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	scorer TEXT NOT NULL,
	prev_score REAL NOT NULL,
	new_score REAL NOT NULL,
	delta REAL NOT NULL,
	window TEXT NOT NULL,
	raised_at DATETIME NOT NULL
);

-- Append-only reputation ledger.
CREATE TABLE IF NOT EXISTS reputation_events (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	points INTEGER NOT NULL,
	occurred_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reputation_entity
	ON reputation_events (entity_id, occurred_at);

-- Durable enrichment queue. A successful job is deleted; dead letters stay
-- until requeued through the admin path.
CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('geocode', 'polyline')),
	query TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	attempts INTEGER NOT NULL DEFAULT 0,
	next_attempt_at DATETIME NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'dead_letter')),
	last_error TEXT,
	claim_token TEXT,
	claim_expires_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_due
	ON enrichment_jobs (status, next_attempt_at, priority);

-- Last-run timestamps for the recompute scheduler, durable across restarts.
CREATE TABLE IF NOT EXISTS scheduler_runs (
	name TEXT PRIMARY KEY,
	last_run_at DATETIME NOT NULL
);

-- Handoff records for the external notification subsystem.
CREATE TABLE IF NOT EXISTS notification_outbox (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
