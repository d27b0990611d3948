package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS expenses (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    description          TEXT NOT NULL,
    amount               TEXT NOT NULL,
    due_date             TEXT NOT NULL,
    category             TEXT NOT NULL DEFAULT '',
    tag                  TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'paid')),
    notes                TEXT NOT NULL DEFAULT '',
    has_discount         INTEGER NOT NULL DEFAULT 0,
    discount_deadline    TEXT,
    discount_percent     TEXT,
    discount_amount      TEXT,
    is_recurring         INTEGER NOT NULL DEFAULT 0,
    frequency            TEXT NOT NULL DEFAULT '',
    series_id            TEXT NOT NULL DEFAULT '',
    paid_by              TEXT,
    paid_at              TEXT,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS budget_templates (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    category             TEXT NOT NULL,
    tag                  TEXT NOT NULL,
    base_amount          TEXT NOT NULL,
    february_amount      TEXT,
    june_amount          TEXT,
    december_amount      TEXT,
    active               INTEGER NOT NULL DEFAULT 1,
    notes                TEXT NOT NULL DEFAULT '',
    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL,
    UNIQUE (category, tag)
);

CREATE TABLE IF NOT EXISTS budgets (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    month                 INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
    year                  INTEGER NOT NULL,
    category              TEXT NOT NULL,
    tag                   TEXT NOT NULL,
    budgeted_amount       TEXT NOT NULL,
    spent_amount          TEXT NOT NULL DEFAULT '0',
    template_id           INTEGER REFERENCES budget_templates(id) ON DELETE SET NULL,
    created_automatically INTEGER NOT NULL DEFAULT 0,
    created_at            TEXT NOT NULL,
    UNIQUE (month, year, category, tag)
);

CREATE TABLE IF NOT EXISTS template_history (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    template_id          INTEGER NOT NULL,
    action               TEXT NOT NULL,
    actor                TEXT NOT NULL DEFAULT '',
    old_values           TEXT NOT NULL DEFAULT '',
    new_values           TEXT NOT NULL DEFAULT '',
    at                   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS instantiation_runs (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    month                INTEGER NOT NULL,
    year                 INTEGER NOT NULL,
    created              INTEGER NOT NULL DEFAULT 0,
    existing             INTEGER NOT NULL DEFAULT 0,
    errors               INTEGER NOT NULL DEFAULT 0,
    details              TEXT NOT NULL DEFAULT '',
    ran_at               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trend_alerts (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    category             TEXT NOT NULL,
    tag                  TEXT NOT NULL,
    trend_type           TEXT NOT NULL,
    severity             TEXT NOT NULL,
    message              TEXT NOT NULL,
    consecutive_months   INTEGER NOT NULL DEFAULT 1,
    average_percent_used REAL NOT NULL DEFAULT 0,
    excess_percent       REAL NOT NULL DEFAULT 0,
    detected_at          TEXT NOT NULL,
    resolved_at          TEXT,
    active               INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS settings (
    key                  TEXT PRIMARY KEY,
    value                TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    name                 TEXT NOT NULL UNIQUE,
    description          TEXT NOT NULL DEFAULT '',
    color                TEXT NOT NULL DEFAULT '#667eea',
    sort_order           INTEGER NOT NULL DEFAULT 0,
    active               INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_expenses_due ON expenses(due_date);
CREATE INDEX IF NOT EXISTS idx_expenses_key ON expenses(category, tag, status);
CREATE INDEX IF NOT EXISTS idx_expenses_series ON expenses(series_id);
CREATE INDEX IF NOT EXISTS idx_budgets_key ON budgets(category, tag);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trend_alerts_active ON trend_alerts(category, tag) WHERE active = 1;
`
