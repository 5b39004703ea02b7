package sqlite

const schema = `
-- Modules table
CREATE TABLE IF NOT EXISTS modules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE CHECK(length(name) <= 120),
    description TEXT NOT NULL DEFAULT '',
    owner TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Test cases table
CREATE TABLE IF NOT EXISTS test_cases (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL CHECK(length(title) <= 500),
    description TEXT NOT NULL DEFAULT '',
    preconditions TEXT NOT NULL DEFAULT '',
    steps TEXT NOT NULL DEFAULT '',
    expected_result TEXT NOT NULL DEFAULT '',
    module_id TEXT REFERENCES modules(id),
    priority INTEGER NOT NULL DEFAULT 2 CHECK(priority >= 0 AND priority <= 4),
    status TEXT NOT NULL DEFAULT 'draft' CHECK(status IN ('draft', 'active', 'deprecated')),
    automation TEXT NOT NULL DEFAULT 'manual' CHECK(automation IN ('manual', 'candidate', 'automated')),
    source TEXT NOT NULL DEFAULT 'manual' CHECK(source IN ('manual', 'feature_file', 'workbook')),
    source_ref TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deprecated_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_cases_module ON test_cases(module_id);
CREATE INDEX IF NOT EXISTS idx_cases_status ON test_cases(status);
CREATE INDEX IF NOT EXISTS idx_cases_automation ON test_cases(automation);
CREATE INDEX IF NOT EXISTS idx_cases_created_at ON test_cases(created_at);

-- Tags table
CREATE TABLE IF NOT EXISTS tags (
    case_id TEXT NOT NULL,
    tag TEXT NOT NULL,
    PRIMARY KEY (case_id, tag),
    FOREIGN KEY (case_id) REFERENCES test_cases(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);

-- Releases table
CREATE TABLE IF NOT EXISTS releases (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    version TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'planned' CHECK(status IN ('planned', 'in_progress', 'released')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    released_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_releases_status ON releases(status);

-- Release <-> test case links with execution results
CREATE TABLE IF NOT EXISTS release_cases (
    release_id TEXT NOT NULL,
    case_id TEXT NOT NULL,
    run_status TEXT NOT NULL DEFAULT 'not_run' CHECK(run_status IN ('not_run', 'pass', 'fail', 'blocked')),
    executed_by TEXT NOT NULL DEFAULT '',
    executed_at DATETIME,
    PRIMARY KEY (release_id, case_id),
    FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE CASCADE,
    FOREIGN KEY (case_id) REFERENCES test_cases(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_release_cases_case ON release_cases(case_id);
CREATE INDEX IF NOT EXISTS idx_release_cases_status ON release_cases(run_status);

-- JIRA story mirror
CREATE TABLE IF NOT EXISTS stories (
    key TEXT PRIMARY KEY,
    summary TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    assignee TEXT NOT NULL DEFAULT '',
    story_points REAL NOT NULL DEFAULT 0,
    synced_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- JIRA production ticket mirror
CREATE TABLE IF NOT EXISTS tickets (
    key TEXT PRIMARY KEY,
    summary TEXT NOT NULL,
    severity TEXT NOT NULL DEFAULT 'medium' CHECK(severity IN ('critical', 'high', 'medium', 'low')),
    status TEXT NOT NULL DEFAULT '',
    synced_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Release <-> story links
CREATE TABLE IF NOT EXISTS release_stories (
    release_id TEXT NOT NULL,
    story_key TEXT NOT NULL,
    PRIMARY KEY (release_id, story_key),
    FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE CASCADE,
    FOREIGN KEY (story_key) REFERENCES stories(key) ON DELETE CASCADE
);

-- Release <-> ticket links
CREATE TABLE IF NOT EXISTS release_tickets (
    release_id TEXT NOT NULL,
    ticket_key TEXT NOT NULL,
    PRIMARY KEY (release_id, ticket_key),
    FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE CASCADE,
    FOREIGN KEY (ticket_key) REFERENCES tickets(key) ON DELETE CASCADE
);

-- Story <-> test case links
CREATE TABLE IF NOT EXISTS story_cases (
    story_key TEXT NOT NULL,
    case_id TEXT NOT NULL,
    PRIMARY KEY (story_key, case_id),
    FOREIGN KEY (story_key) REFERENCES stories(key) ON DELETE CASCADE,
    FOREIGN KEY (case_id) REFERENCES test_cases(id) ON DELETE CASCADE
);

-- Workbooks table
CREATE TABLE IF NOT EXISTS workbooks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    source_file TEXT NOT NULL DEFAULT '',
    module_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'reviewing', 'approved', 'rejected')),
    row_count INTEGER NOT NULL DEFAULT 0,
    created_by TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Workbook rows table (candidate test cases awaiting review)
CREATE TABLE IF NOT EXISTS workbook_rows (
    id TEXT PRIMARY KEY,
    workbook_id TEXT NOT NULL,
    line_number INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    preconditions TEXT NOT NULL DEFAULT '',
    steps TEXT NOT NULL DEFAULT '',
    expected_result TEXT NOT NULL DEFAULT '',
    priority INTEGER NOT NULL DEFAULT 2 CHECK(priority >= 0 AND priority <= 4),
    tags TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'approved', 'rejected', 'duplicate')),
    duplicate_of TEXT NOT NULL DEFAULT '',
    similarity REAL NOT NULL DEFAULT 0,
    reviewed_by TEXT NOT NULL DEFAULT '',
    reviewed_at DATETIME,
    case_id TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (workbook_id) REFERENCES workbooks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_workbook_rows_workbook ON workbook_rows(workbook_id);
CREATE INDEX IF NOT EXISTS idx_workbook_rows_status ON workbook_rows(status);

-- Events table (audit trail)
-- entity_id spans test cases, modules, releases, workbooks, and JIRA keys,
-- so no foreign key here.
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    actor TEXT NOT NULL,
    old_value TEXT,
    new_value TEXT,
    comment TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_id);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);

-- Atomic ID counters (one row per entity prefix: tc, md, rel, wb)
CREATE TABLE IF NOT EXISTS id_counters (
    prefix TEXT PRIMARY KEY,
    last_id INTEGER NOT NULL DEFAULT 0
);

-- Config key/value table
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
