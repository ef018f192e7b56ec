package postgres

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	worker_id text NOT NULL,
	spanish_raw text NOT NULL,
	english_raw text NOT NULL,
	english_formatted text NOT NULL,
	category text NOT NULL,
	urgency text NOT NULL,
	delivery_id text,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_delivery ON messages (delivery_id);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages (created_at DESC);

CREATE TABLE IF NOT EXISTS supervisor_replies (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	message_id uuid NOT NULL REFERENCES messages (id),
	english_raw text NOT NULL,
	spanish_trans text NOT NULL,
	action_summary text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS supply_orders (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	crew_id text NOT NULL,
	item text NOT NULL,
	normalized_item text NOT NULL,
	quantity double precision,
	unit text,
	supplier text,
	cost double precision,
	ordered_at timestamptz NOT NULL DEFAULT now(),
	delivered_at timestamptz,
	notes text
);
CREATE INDEX IF NOT EXISTS idx_orders_history ON supply_orders (crew_id, normalized_item, ordered_at DESC);

CREATE TABLE IF NOT EXISTS supply_requests (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	original_message_id uuid,
	crew_id text NOT NULL,
	worker_id text NOT NULL,
	item text NOT NULL,
	normalized_item text NOT NULL,
	quantity double precision,
	unit text,
	urgency text NOT NULL CHECK (urgency IN ('normal', 'high', 'critical')),
	status text NOT NULL DEFAULT 'PENDING'
		CHECK (status IN ('PENDING', 'APPROVED', 'MODIFIED', 'REJECTED', 'QUESTIONED')),
	suggested_quantity double precision,
	suggested_supplier text,
	estimated_total double precision,
	response_time_minutes integer,
	approved_by text,
	approved_at timestamptz,
	modified_quantity integer CHECK (modified_quantity > 0),
	rejection_reason text,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_requests_open ON supply_requests (created_at DESC)
	WHERE status IN ('PENDING', 'QUESTIONED');
CREATE INDEX IF NOT EXISTS idx_requests_worker ON supply_requests (worker_id, created_at DESC);
`
