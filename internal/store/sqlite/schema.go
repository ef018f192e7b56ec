package sqlite

// Timestamps are unix nanoseconds so ordering is exact.
const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	worker_id TEXT NOT NULL,
	spanish_raw TEXT NOT NULL,
	english_raw TEXT NOT NULL,
	english_formatted TEXT NOT NULL,
	category TEXT NOT NULL,
	urgency TEXT NOT NULL,
	delivery_id TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_delivery ON messages(delivery_id);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);

CREATE TABLE IF NOT EXISTS supervisor_replies (
	id TEXT PRIMARY KEY,
	message_id TEXT NOT NULL REFERENCES messages(id),
	english_raw TEXT NOT NULL,
	spanish_trans TEXT NOT NULL,
	action_summary TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_replies_message ON supervisor_replies(message_id);

CREATE TABLE IF NOT EXISTS supply_orders (
	id TEXT PRIMARY KEY,
	crew_id TEXT NOT NULL,
	item TEXT NOT NULL,
	normalized_item TEXT NOT NULL,
	quantity REAL,
	unit TEXT,
	supplier TEXT,
	cost REAL,
	ordered_at INTEGER NOT NULL,
	delivered_at INTEGER,
	notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_orders_history ON supply_orders(crew_id, normalized_item, ordered_at);

CREATE TABLE IF NOT EXISTS supply_requests (
	id TEXT PRIMARY KEY,
	original_message_id TEXT,
	crew_id TEXT NOT NULL,
	worker_id TEXT NOT NULL,
	item TEXT NOT NULL,
	normalized_item TEXT NOT NULL,
	quantity REAL,
	unit TEXT,
	urgency TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING',
	suggested_quantity REAL,
	suggested_supplier TEXT,
	estimated_total REAL,
	response_time_minutes INTEGER,
	approved_by TEXT,
	approved_at INTEGER,
	modified_quantity INTEGER,
	rejection_reason TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_status ON supply_requests(status, created_at);
CREATE INDEX IF NOT EXISTS idx_requests_worker ON supply_requests(worker_id, created_at);
`
