package storage

// createTablesSQL is shared verbatim between the SQLite and Postgres
// backends; both engines accept this dialect of DDL.
const createTablesSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    model TEXT DEFAULT '',
    timestamp TEXT NOT NULL,
    token_count INTEGER DEFAULT 0,
    cost_usd DOUBLE PRECISION DEFAULT NULL,
    latency_ms DOUBLE PRECISION DEFAULT NULL
);

CREATE TABLE IF NOT EXISTS harness_runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    goal TEXT NOT NULL,
    targets TEXT NOT NULL,
    model TEXT NOT NULL,
    max_rounds INTEGER DEFAULT 8,
    final_answer TEXT,
    total_rounds INTEGER DEFAULT 0,
    was_capped BOOLEAN DEFAULT false,
    total_latency_ms BIGINT DEFAULT 0,
    error_count INTEGER DEFAULT 0,
    events_jsonl TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
CREATE INDEX IF NOT EXISTS idx_harness_runs_created ON harness_runs(created_at);
`

// percentile returns the p-th percentile of an ascending-sorted slice,
// using the same index formula as the donor: idx = min(len*p/100, len-1).
// Not a statistically rigorous interpolation, just a fast, deterministic
// pick matching the stored reference implementation's behavior.
func percentile(sortedAsc []float64, p float64) float64 {
	if len(sortedAsc) == 0 {
		return 0
	}
	idx := int(float64(len(sortedAsc)) * p / 100)
	if idx >= len(sortedAsc) {
		idx = len(sortedAsc) - 1
	}
	return sortedAsc[idx]
}
